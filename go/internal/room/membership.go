package room

import (
	"context"
	"errors"
	"slices"

	"github.com/mcdev12/draftroom/go/internal/draft/engine"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Join adds user to the room. Joining twice is a no-op. Late joiners, and
// anyone missing from a non-empty restrict list, become spectators.
func (c *Coordinator) Join(ctx context.Context, code, user string) (*models.Room, error) {
	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if !r.AddMember(user) {
		return r, nil
	}

	restricted := len(r.Config.RestrictPlayers) > 0 && !slices.Contains(r.Config.RestrictPlayers, user)
	spectator := r.Status() != models.RoomStatusLobby || restricted
	if spectator {
		r.SetMemberStatus(user, models.MemberStatusSpectator)
	}

	b := c.newBatch(code)
	b.add(events.EventTypePlayerUpdate, events.PlayerUpdatePayload{UUID: user, Action: events.PlayerActionJoined})
	if spectator {
		b.add(events.EventTypePlayerUpdate, events.PlayerUpdatePayload{UUID: user, Action: events.PlayerActionSpectate})
	}

	if err := c.saveRoom(ctx, r); err != nil {
		return nil, err
	}
	c.publish(b, r.Members)

	log.Info().Str("room_code", code).Str("user_id", user).Bool("spectator", spectator).Msg("member joined")
	return r, nil
}

// Leave removes user from the room. An admin leaving the lobby closes it. A
// drafting player who leaves is skipped from then on; if they held the turn,
// picks are forced for them straight away.
func (c *Coordinator) Leave(ctx context.Context, code, user string) error {
	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if !r.IsMember(user) {
		return ErrNotMember
	}

	if user == r.Admin && r.Status() == models.RoomStatusLobby {
		return c.teardown(ctx, r, r.Members)
	}
	return c.removeMember(ctx, r, user, events.PlayerActionLeave)
}

// Kick removes member on the admin's behalf.
func (c *Coordinator) Kick(ctx context.Context, admin, code, member string) error {
	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if r.Admin != admin {
		return ErrNotAdmin
	}
	if member == admin {
		return ErrCannotKickSelf
	}
	if !r.IsMember(member) {
		return ErrNotMember
	}
	return c.removeMember(ctx, r, member, events.PlayerActionKick)
}

// removeMember runs with the room lock held. The departing member still
// receives the event announcing their departure.
func (c *Coordinator) removeMember(ctx context.Context, r *models.Room, member string, action events.PlayerAction) error {
	recipients := slices.Clone(r.Members)

	b := c.newBatch(r.Code)
	b.add(events.EventTypePlayerUpdate, events.PlayerUpdatePayload{UUID: member, Action: action})
	r.RemoveMember(member)
	r.State.ReadyPlayers = slices.DeleteFunc(r.State.ReadyPlayers, func(p string) bool { return p == member })

	draftChanged := false
	picksBefore := r.Draft.NumPicks()
	if r.Drafting() && r.Draft.HasPlayer(member) {
		r.Draft, draftChanged = engine.Skip(r.Draft, member)

		if engine.AllSkipped(r.Draft) {
			return c.closeOrKeep(ctx, r, recipients, b)
		}
		if holder, _ := engine.Holder(r.Draft); holder == member {
			r.Draft = c.cascade(b, r.Draft)
		}
	}

	if len(r.Members) == 0 {
		return c.closeOrKeep(ctx, r, recipients, b)
	}

	if err := c.saveRoom(ctx, r); err != nil {
		return err
	}
	if draftChanged {
		if err := c.saveDraft(ctx, r); err != nil {
			return err
		}
		if r.Draft.NumPicks() != picksBefore {
			c.rearm(r, 0)
		}
	}
	c.publish(b, recipients)

	log.Info().Str("room_code", r.Code).Str("user_id", member).Str("action", string(action)).Msg("member removed")
	return nil
}

// closeOrKeep tears the room down, or just persists the departure when
// gameplay has started and the room must be kept.
func (c *Coordinator) closeOrKeep(ctx context.Context, r *models.Room, recipients []string, b *batch) error {
	err := c.teardown(ctx, r, recipients)
	if !errors.Is(err, ErrGameplayStarted) {
		return err
	}

	log.Info().Str("room_code", r.Code).Msg("room kept after gameplay start")
	if err := c.saveRoom(ctx, r); err != nil {
		return err
	}
	if r.Draft != nil {
		if err := c.saveDraft(ctx, r); err != nil {
			return err
		}
	}
	c.publish(b, recipients)
	return nil
}

// SetStatus moves member between players and spectators while in the lobby.
func (c *Coordinator) SetStatus(ctx context.Context, admin, code, member string, status models.MemberStatus) error {
	if status != models.MemberStatusPlayer && status != models.MemberStatusSpectator {
		return ErrInvalidStatus
	}

	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if r.Admin != admin {
		return ErrNotAdmin
	}
	if r.Status() != models.RoomStatusLobby {
		return ErrAlreadyStarted
	}
	if !r.IsMember(member) {
		return ErrNotMember
	}
	if status == models.MemberStatusPlayer && len(r.Config.RestrictPlayers) > 0 &&
		!slices.Contains(r.Config.RestrictPlayers, member) {
		return ErrRestricted
	}
	if r.MemberStatus(member) == status {
		return nil
	}

	r.SetMemberStatus(member, status)
	action := events.PlayerActionPlayer
	if status == models.MemberStatusSpectator {
		action = events.PlayerActionSpectate
	}

	b := c.newBatch(code)
	b.add(events.EventTypePlayerUpdate, events.PlayerUpdatePayload{UUID: member, Action: action})
	if err := c.saveRoom(ctx, r); err != nil {
		return err
	}
	c.publish(b, r.Members)
	return nil
}
