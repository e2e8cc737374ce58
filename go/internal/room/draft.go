package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft/engine"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// StartDraft freezes the config and seeds, starts the draft and arms the timer.
func (c *Coordinator) StartDraft(ctx context.Context, user, code string) error {
	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if r.Admin != user {
		return ErrNotAdmin
	}
	if r.Draft != nil {
		return ErrAlreadyStarted
	}
	players := r.Players()
	if len(players) == 0 {
		return ErrNoPlayers
	}
	if len(players) > c.cfg.MaxPlayers {
		return ErrTooManyPlayers
	}

	rng, release := c.shuffleRand()
	d, err := engine.Start(c.catalog, players, r.Config.MaxGambitsCount(), rng)
	release()
	if err != nil {
		return err
	}

	prevState := r.State
	r.State.OverworldSeed = seedOr(r.Config.OverworldSeed, c.seeds.Overworld)
	r.State.NetherSeed = seedOr(r.Config.NetherSeed, c.seeds.Nether)
	r.State.EndSeed = seedOr(r.Config.EndSeed, c.seeds.End)
	r.Draft = d

	b := c.newBatch(code)
	cfg, state := r.Config, r.State
	b.add(events.EventTypeRoomUpdate, events.RoomUpdatePayload{
		Update: events.RoomUpdateCommenced,
		Config: &cfg,
		State:  &state,
	})
	r.Draft = c.cascade(b, r.Draft)

	if err := c.saveRoom(ctx, r); err != nil {
		return err
	}
	if err := c.saveDraft(ctx, r); err != nil {
		// put the lobby back so a retry starts from the same room
		r.State = prevState
		if rbErr := c.saveRoom(ctx, r); rbErr != nil {
			log.Error().Err(rbErr).Str("room_code", code).Msg("failed to restore room after draft save failure")
		}
		return err
	}
	c.publish(b, r.Members)
	c.rearm(r, c.cfg.StartExtra)

	log.Info().
		Str("room_code", code).
		Strs("players", d.Players).
		Int("max_picks", d.MaxPicks).
		Msg("draft started")
	return nil
}

func seedOr(configured *string, draw func() string) string {
	if configured != nil && *configured != "" {
		return *configured
	}
	return draw()
}

// UpdateConfig merges payload into the lobby's config. It reports the keys
// that changed; nothing is saved or sent when none did.
func (c *Coordinator) UpdateConfig(ctx context.Context, user, code string, payload map[string]any) ([]string, error) {
	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if r.Admin != user {
		return nil, ErrNotAdmin
	}
	if r.Draft != nil {
		return nil, ErrAlreadyStarted
	}

	next, changed := MergeConfig(r.Config, payload)
	if len(changed) == 0 {
		return nil, nil
	}
	r.Config = next

	b := c.newBatch(code)
	b.add(events.EventTypeRoomUpdate, events.RoomUpdatePayload{Update: events.RoomUpdateConfig, Config: &next})
	if err := c.saveRoom(ctx, r); err != nil {
		return nil, err
	}
	c.publish(b, r.Members)

	log.Info().Str("room_code", code).Strs("changed", changed).Msg("room config updated")
	return changed, nil
}

// Pick commits user's selection of key, then forces picks for any skipped
// players whose turn follows.
func (c *Coordinator) Pick(ctx context.Context, user, code, key string) error {
	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if r.Draft == nil {
		return ErrNotDrafting
	}
	if err := engine.LegalPick(c.catalog, r.Draft, user, key); err != nil {
		return err
	}

	b := c.newBatch(code)
	d := c.commitPick(b, r.Draft, user, key, false)
	r.Draft = c.cascade(b, d)

	if err := c.saveDraft(ctx, r); err != nil {
		return err
	}
	c.publish(b, r.Members)
	c.rearm(r, 0)

	log.Info().Str("room_code", code).Str("user_id", user).Str("item_key", key).Msg("pick made")
	return nil
}

// ForcePick commits a fallback pick when a room's timer expires. An expiry
// armed before the latest pick is stale and ignored.
func (c *Coordinator) ForcePick(ctx context.Context, code string, expectedPicks int) error {
	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if errors.Is(err, ErrRoomNotFound) {
		log.Debug().Str("room_code", code).Msg("timer fired for a closed room")
		return nil
	}
	if err != nil {
		return err
	}
	if r.Draft == nil || r.Draft.Complete {
		return nil
	}
	if r.Draft.NumPicks() != expectedPicks {
		log.Debug().
			Str("room_code", code).
			Int("pick_count", r.Draft.NumPicks()).
			Int("expected", expectedPicks).
			Msg("stale timer expiry ignored")
		return nil
	}

	holder, _ := engine.Holder(r.Draft)
	key, err := c.strategy.SelectKey(c.catalog, r.Draft)
	if err != nil {
		log.Error().Err(err).Str("room_code", code).Str("user_id", holder).Msg("forced pick failed")
		return fmt.Errorf("force pick in %s: %w", code, err)
	}

	b := c.newBatch(code)
	d := c.commitPick(b, r.Draft, holder, key, true)
	r.Draft = c.cascade(b, d)

	if err := c.saveDraft(ctx, r); err != nil {
		return err
	}
	c.publish(b, r.Members)
	c.rearm(r, 0)

	log.Info().Str("room_code", code).Str("user_id", holder).Str("item_key", key).Msg("forced pick made")
	return nil
}

// SetGambit toggles one of user's gambits.
func (c *Coordinator) SetGambit(ctx context.Context, user, code, key string, enabled bool) error {
	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if r.Draft == nil {
		return ErrNotDrafting
	}
	if !r.Config.EnableGambits {
		return ErrGambitsDisabled
	}

	d, changed, err := engine.SetExtraSelection(c.catalog, r.Draft, user, key, enabled)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	r.Draft = d

	b := c.newBatch(code)
	b.add(events.EventTypeGambitUpdate, events.GambitUpdatePayload{UUID: user, Key: key, Enabled: enabled})
	if err := c.saveDraft(ctx, r); err != nil {
		return err
	}
	c.publish(b, r.Members)
	return nil
}

// commitPick applies a legal pick and records its events. The completion
// event directly follows the pick that completed the draft.
func (c *Coordinator) commitPick(b *batch, d *models.Draft, player, key string, forced bool) *models.Draft {
	next := engine.ApplyPick(d, player, key)
	b.add(events.EventTypeDraftPick, events.DraftPickPayload{
		Key:           key,
		Player:        player,
		Index:         len(next.Picks) - 1,
		Forced:        forced,
		Positions:     next.Position,
		NextPositions: next.NextPositions,
	})
	if next.Complete {
		b.add(events.EventTypeDraftComplete, events.DraftCompletePayload{
			TotalPicks: len(next.Picks),
			Picks:      next.Picks,
			Gambits:    next.Gambits,
		})
		log.Info().Str("room_code", b.code).Int("pick_count", len(next.Picks)).Msg("draft complete")
	}
	return next
}

// cascade forces picks while the holder is skipped. Exhausted pools stop it
// without a pick.
func (c *Coordinator) cascade(b *batch, d *models.Draft) *models.Draft {
	for {
		holder, ok := engine.Holder(d)
		if !ok || !d.IsSkipped(holder) {
			return d
		}
		key, err := c.strategy.SelectKey(c.catalog, d)
		if err != nil {
			log.Error().Err(err).Str("room_code", b.code).Str("user_id", holder).Msg("cascade pick failed")
			return d
		}
		d = c.commitPick(b, d, holder, key, true)
	}
}

// rearm restarts the pick countdown after the draft moved, or stops it once
// the draft is over.
func (c *Coordinator) rearm(r *models.Room, extra time.Duration) {
	if r.Draft == nil {
		return
	}
	if r.Draft.Complete {
		c.timer.Cancel(r.Code)
		return
	}
	if !r.Config.EnforceTimer {
		return
	}
	d := orchestrator.PickDuration(r.Config.PickTimeSec(), c.cfg.PickBuffer, extra)
	c.timer.Arm(r.Code, r.Draft.NumPicks(), d)
}
