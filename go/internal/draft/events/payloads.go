package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// Event payload types that are shared between the room coordinator and gateway packages

// EventType represents the type of room event
type EventType string

const (
	EventTypeSnapshot      EventType = "snapshot"
	EventTypeRoomCreated   EventType = "room_created"
	EventTypeRoomUpdate    EventType = "room_update"
	EventTypePlayerUpdate  EventType = "player_update"
	EventTypeDraftPick     EventType = "draft_pick"
	EventTypeDraftComplete EventType = "draft_complete"
	EventTypeGambitUpdate  EventType = "gambit_update"
	EventTypeReadyUpdate   EventType = "ready_update"
	EventTypeAdvancement   EventType = "advancement_update"
)

// Event is the envelope every room event travels in.
type Event struct {
	ID        string          `json:"id"`
	RoomCode  string          `json:"room_code"`
	Type      EventType       `json:"variant"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New wraps payload in an Event stamped with a fresh id.
func New(roomCode string, eventType EventType, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      eventType,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

// RoomUpdateKind enumerates room_update events.
type RoomUpdateKind string

const (
	RoomUpdateClosed          RoomUpdateKind = "closed"
	RoomUpdateConfig          RoomUpdateKind = "config"
	RoomUpdateCommenced       RoomUpdateKind = "commenced"
	RoomUpdateLoadingComplete RoomUpdateKind = "loading_complete"
)

// PlayerAction enumerates player_update events.
type PlayerAction string

const (
	PlayerActionJoined   PlayerAction = "joined"
	PlayerActionLeave    PlayerAction = "leave"
	PlayerActionKick     PlayerAction = "kick"
	PlayerActionSpectate PlayerAction = "spectate"
	PlayerActionPlayer   PlayerAction = "player"
)

// RoomCreatedPayload is the payload for a room_created event
type RoomCreatedPayload struct {
	Code  string `json:"code"`
	Admin string `json:"admin"`
}

// RoomUpdatePayload is the payload for a room_update event
type RoomUpdatePayload struct {
	Update RoomUpdateKind     `json:"update"`
	Config *models.RoomConfig `json:"config,omitempty"`
	State  *models.RoomState  `json:"state,omitempty"`
}

// PlayerUpdatePayload is the payload for a player_update event
type PlayerUpdatePayload struct {
	UUID   string       `json:"uuid"`
	Action PlayerAction `json:"action"`
}

// DraftPickPayload is the payload for a draft_pick event
type DraftPickPayload struct {
	Key           string   `json:"key"`
	Player        string   `json:"player"`
	Index         int      `json:"index"`
	Forced        bool     `json:"forced"`
	Positions     []string `json:"positions"`
	NextPositions []string `json:"next_positions"`
}

// DraftCompletePayload is the payload for a draft_complete event
type DraftCompletePayload struct {
	TotalPicks int                 `json:"total_picks"`
	Picks      []models.DraftPick  `json:"picks"`
	Gambits    map[string][]string `json:"gambits"`
}

// GambitUpdatePayload is the payload for a gambit_update event
type GambitUpdatePayload struct {
	UUID    string `json:"uuid"`
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// ReadyUpdatePayload is the payload for a ready_update event
type ReadyUpdatePayload struct {
	UUID  string `json:"uuid"`
	Ready bool   `json:"ready"`
}

// AdvancementPayload is the payload for an advancement_update event
type AdvancementPayload struct {
	UUID              string `json:"uuid"`
	LatestAdvancement string `json:"latest_advancement"`
	Count             int    `json:"count"`
}

// SnapshotPayload is the full room state sent to a freshly connected channel.
type SnapshotPayload struct {
	Code       string            `json:"code"`
	Admin      string            `json:"admin"`
	Status     models.RoomStatus `json:"status"`
	Members    []string          `json:"members"`
	Spectators []string          `json:"spectators"`
	Usernames  map[string]string `json:"usernames"`
	Config     models.RoomConfig `json:"config"`
	State      models.RoomState  `json:"state"`
	Draft      *models.Draft     `json:"draft,omitempty"`
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event Event) (any, error) {
	var payload any
	switch event.Type {
	case EventTypeSnapshot:
		payload = &SnapshotPayload{}
	case EventTypeRoomCreated:
		payload = &RoomCreatedPayload{}
	case EventTypeRoomUpdate:
		payload = &RoomUpdatePayload{}
	case EventTypePlayerUpdate:
		payload = &PlayerUpdatePayload{}
	case EventTypeDraftPick:
		payload = &DraftPickPayload{}
	case EventTypeDraftComplete:
		payload = &DraftCompletePayload{}
	case EventTypeGambitUpdate:
		payload = &GambitUpdatePayload{}
	case EventTypeReadyUpdate:
		payload = &ReadyUpdatePayload{}
	case EventTypeAdvancement:
		payload = &AdvancementPayload{}
	default:
		return nil, nil // Unknown event type
	}
	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
