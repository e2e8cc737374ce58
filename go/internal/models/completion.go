package models

import "time"

// Completion is a finished run handed to the leaderboard.
type Completion struct {
	PlayerID    string        `json:"uuid"`
	Username    string        `json:"username"`
	RoomCode    string        `json:"room_code"`
	Duration    time.Duration `json:"duration"`
	Tag         string        `json:"tag,omitempty"`
	CompletedAt time.Time     `json:"completed_at"`
}
