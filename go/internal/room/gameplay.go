package room

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	advancementPrefix = "minecraft:"
	qualifierTag      = "oq1"
)

// SetReady records whether a drafted player has finished loading. Once every
// connected player is ready, gameplay start is signalled exactly once.
func (c *Coordinator) SetReady(ctx context.Context, user, code string, ready bool) error {
	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if !r.Playing() {
		return ErrDraftNotComplete
	}
	if !r.Draft.HasPlayer(user) {
		return ErrNotMember
	}

	was := slices.Contains(r.State.ReadyPlayers, user)
	if was == ready && r.State.HasSentStart {
		return nil
	}
	if ready && !was {
		r.State.ReadyPlayers = append(r.State.ReadyPlayers, user)
	}
	if !ready && was {
		r.State.ReadyPlayers = slices.DeleteFunc(r.State.ReadyPlayers, func(p string) bool { return p == user })
	}

	b := c.newBatch(code)
	if was != ready {
		b.add(events.EventTypeReadyUpdate, events.ReadyUpdatePayload{UUID: user, Ready: ready})
	}
	if !r.State.HasSentStart && c.allConnectedReady(r) {
		now := c.clock.Now().UTC()
		r.State.HasSentStart = true
		r.State.StartSentAt = &now

		state := r.State
		b.add(events.EventTypeRoomUpdate, events.RoomUpdatePayload{Update: events.RoomUpdateLoadingComplete, State: &state})
		log.Info().Str("room_code", code).Msg("sending game start")
	}
	if len(b.events) == 0 {
		return nil
	}

	if err := c.saveRoom(ctx, r); err != nil {
		return err
	}
	c.publish(b, r.Members)
	return nil
}

// allConnectedReady ignores players with no live channel to this room.
func (c *Coordinator) allConnectedReady(r *models.Room) bool {
	for _, p := range r.Draft.Players {
		if c.presence != nil && !c.presence.Connected(r.Code, p) {
			continue
		}
		if !slices.Contains(r.State.ReadyPlayers, p) {
			return false
		}
	}
	return true
}

// RecordAdvancement stores a player's newly earned advancement. Reaching the
// goal count marks the run finished and submits it as a completion.
func (c *Coordinator) RecordAdvancement(ctx context.Context, user, code, advancement string) error {
	adv, ok := normalizeAdvancement(advancement)
	if !ok {
		return ErrInvalidAdvancement
	}

	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if !r.Playing() || !r.State.HasSentStart {
		return ErrDraftNotComplete
	}
	if !r.Draft.HasPlayer(user) {
		return ErrNotMember
	}

	earned := r.State.PlayerAdvancements[user]
	if slices.Contains(earned, adv) {
		return nil
	}
	earned = append(earned, adv)
	r.State.PlayerAdvancements[user] = earned

	var completion *models.Completion
	if len(earned) >= c.cfg.GoalAdvancements {
		if _, done := r.State.HitGoalAt[user]; !done {
			now := c.clock.Now().UTC()
			r.State.HitGoalAt[user] = now
			completion = c.completionFor(ctx, r, user, now)
		}
	}

	b := c.newBatch(code)
	b.add(events.EventTypeAdvancement, events.AdvancementPayload{
		UUID:              user,
		LatestAdvancement: adv,
		Count:             len(earned),
	})
	if err := c.saveRoom(ctx, r); err != nil {
		return err
	}
	c.publish(b, r.Members)

	if completion != nil {
		if err := c.completions.RecordCompletion(ctx, *completion); err != nil {
			log.Error().Err(err).Str("room_code", code).Str("user_id", user).Msg("failed to record completion")
		}
	}
	return nil
}

// completionFor returns nil when the run cannot be submitted.
func (c *Coordinator) completionFor(ctx context.Context, r *models.Room, user string, end time.Time) *models.Completion {
	logger := log.With().Str("room_code", r.Code).Str("user_id", user).Logger()

	username, ok := c.usernames.ResolveUsername(ctx, user)
	if !ok {
		logger.Warn().Msg("no username; completion not recorded")
		return nil
	}
	if r.State.StartSentAt == nil {
		logger.Warn().Msg("no start time; completion not recorded")
		return nil
	}
	elapsed := end.Sub(*r.State.StartSentAt)
	if elapsed < c.cfg.MinRunDuration {
		logger.Info().Dur("elapsed", elapsed).Msg("run too short; completion not recorded")
		return nil
	}

	tag := ""
	if r.Config.OpenQualifierSubmission && len(r.Draft.Players) == 1 {
		tag = qualifierTag
	}
	return &models.Completion{
		PlayerID:    user,
		Username:    username,
		RoomCode:    r.Code,
		Duration:    elapsed,
		Tag:         tag,
		CompletedAt: end,
	}
}

// normalizeAdvancement strips the namespace and drops recipe unlocks.
func normalizeAdvancement(raw string) (string, bool) {
	adv, ok := strings.CutPrefix(raw, advancementPrefix)
	if !ok || adv == "" || strings.HasPrefix(adv, "recipe") {
		return "", false
	}
	return adv, true
}
