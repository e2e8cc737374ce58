package models

import (
	"strconv"
	"time"

	"github.com/samber/lo"
)

// RoomStatus is derived from the room's draft.
type RoomStatus string

const (
	RoomStatusLobby    RoomStatus = "LOBBY"
	RoomStatusDrafting RoomStatus = "DRAFTING"
	RoomStatusPlaying  RoomStatus = "PLAYING"
)

// MemberStatus is a member's role inside a room.
type MemberStatus string

const (
	MemberStatusPlayer    MemberStatus = "player"
	MemberStatusSpectator MemberStatus = "spectate"
)

// RoomConfig holds the admin-editable room settings. Numeric settings are kept
// as strings to match what clients send.
type RoomConfig struct {
	EnforceTimer       bool   `json:"enforce_timer"`
	PickTime           string `json:"pick_time"`
	SpectatorsGetWorld bool   `json:"spectators_get_world"`

	EnableGambits bool   `json:"enable_gambits"`
	MaxGambits    string `json:"max_gambits"`

	OverworldSeed *string `json:"overworld_seed"`
	NetherSeed    *string `json:"nether_seed"`
	EndSeed       *string `json:"end_seed"`

	RestrictPlayers []string `json:"restrict_players"`

	LiveGame                bool `json:"live_game"`
	AdminStartsGame         bool `json:"admin_starts_game"`
	OpenQualifierSubmission bool `json:"open_qualifier_submission"`
}

// DefaultRoomConfig returns the settings a new room starts with.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		PickTime:        "30",
		EnableGambits:   true,
		MaxGambits:      "3",
		RestrictPlayers: []string{},
	}
}

// PickTimeSec returns the pick time in seconds, falling back to the default.
func (c RoomConfig) PickTimeSec() int {
	if n, err := strconv.Atoi(c.PickTime); err == nil && n > 0 {
		return n
	}
	return 30
}

// MaxGambitsCount returns the parsed gambit limit, zero when gambits are off.
func (c RoomConfig) MaxGambitsCount() int {
	if !c.EnableGambits {
		return 0
	}
	if n, err := strconv.Atoi(c.MaxGambits); err == nil && n >= 0 {
		return n
	}
	return 3
}

// RoomState is gameplay state that accrues after the draft starts.
type RoomState struct {
	OverworldSeed string `json:"overworld_seed"`
	NetherSeed    string `json:"nether_seed"`
	EndSeed       string `json:"end_seed"`

	PlayerAdvancements map[string][]string  `json:"player_advancements"`
	ReadyPlayers       []string             `json:"ready_players"`
	HasSentStart       bool                 `json:"has_sent_start"`
	StartSentAt        *time.Time           `json:"start_sent_at"`
	HitGoalAt          map[string]time.Time `json:"hit_goal_at"`
}

// NewRoomState returns an empty state with all collections allocated.
func NewRoomState() RoomState {
	return RoomState{
		PlayerAdvancements: map[string][]string{},
		ReadyPlayers:       []string{},
		HitGoalAt:          map[string]time.Time{},
	}
}

// Room is the session container.
type Room struct {
	Code       string     `json:"code"`
	Admin      string     `json:"admin"`
	Members    []string   `json:"members"`
	Spectators []string   `json:"spectators"`
	Config     RoomConfig `json:"config"`
	Draft      *Draft     `json:"-"` // persisted separately through SaveDraft
	State      RoomState  `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Status reports the room's lifecycle phase.
func (r *Room) Status() RoomStatus {
	switch r.Draft.Status() {
	case DraftStatusInProgress:
		return RoomStatusDrafting
	case DraftStatusCompleted:
		return RoomStatusPlaying
	default:
		return RoomStatusLobby
	}
}

// Drafting reports whether picks are still being made.
func (r *Room) Drafting() bool { return r.Status() == RoomStatusDrafting }

// Playing reports whether the draft is complete.
func (r *Room) Playing() bool { return r.Status() == RoomStatusPlaying }

// IsMember reports whether id belongs to the room.
func (r *Room) IsMember(id string) bool {
	return lo.Contains(r.Members, id)
}

// MemberStatus reports whether id is a player or a spectator.
func (r *Room) MemberStatus(id string) MemberStatus {
	if lo.Contains(r.Spectators, id) {
		return MemberStatusSpectator
	}
	return MemberStatusPlayer
}

// Players returns the members eligible to draft, in join order.
func (r *Room) Players() []string {
	return lo.Filter(r.Members, func(m string, _ int) bool {
		return r.MemberStatus(m) == MemberStatusPlayer
	})
}

// AddMember appends id if absent and reports whether it was added.
func (r *Room) AddMember(id string) bool {
	if r.IsMember(id) {
		return false
	}
	r.Members = append(r.Members, id)
	return true
}

// RemoveMember drops id from the member and spectator lists.
func (r *Room) RemoveMember(id string) {
	r.Members = lo.Without(r.Members, id)
	r.Spectators = lo.Without(r.Spectators, id)
}

// SetMemberStatus moves id between players and spectators.
func (r *Room) SetMemberStatus(id string, status MemberStatus) {
	r.Spectators = lo.Without(r.Spectators, id)
	if status == MemberStatusSpectator {
		r.Spectators = append(r.Spectators, id)
	}
}
