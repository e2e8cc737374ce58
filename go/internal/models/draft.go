package models

import (
	"encoding/json"

	"github.com/samber/lo"
)

// DraftStatus defines the status of a room's draft.
type DraftStatus string

const (
	DraftStatusNotStarted DraftStatus = "NOT_STARTED"
	DraftStatusInProgress DraftStatus = "IN_PROGRESS"
	DraftStatusCompleted  DraftStatus = "COMPLETED"
)

// Draft is the session draft state. It is only ever advanced by the draft
// engine; callers treat it as a value and persist the copy they are handed.
type Draft struct {
	Players       []string            `json:"players"`
	Position      []string            `json:"position"`       // current turn queue
	NextPositions []string            `json:"next_positions"` // turn queue of the following round
	Picks         []DraftPick         `json:"draft"`
	Picked        []string            `json:"picked"` // item keys in pick order
	SkipPlayers   []string            `json:"skip_players"`
	Gambits       map[string][]string `json:"gambits"`
	MaxGambits    int                 `json:"max_gambits"`
	Quotas        map[string]int      `json:"quotas"` // pool key -> picks per player
	MaxPicks      int                 `json:"max_picks"`
	Complete      bool                `json:"complete"`
}

// Status reports where the draft is in its lifecycle.
func (d *Draft) Status() DraftStatus {
	switch {
	case d == nil:
		return DraftStatusNotStarted
	case d.Complete:
		return DraftStatusCompleted
	default:
		return DraftStatusInProgress
	}
}

// NumPicks returns the length of the pick log, zero for a nil draft.
func (d *Draft) NumPicks() int {
	if d == nil {
		return 0
	}
	return len(d.Picks)
}

// HasPlayer reports whether id is one of the drafting players.
func (d *Draft) HasPlayer(id string) bool {
	return lo.Contains(d.Players, id)
}

// IsSkipped reports whether id no longer picks manually.
func (d *Draft) IsSkipped(id string) bool {
	return lo.Contains(d.SkipPlayers, id)
}

// Clone returns a deep copy so engine transitions never alias the caller's state.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	c.Players = cloneStrings(d.Players)
	c.Position = cloneStrings(d.Position)
	c.NextPositions = cloneStrings(d.NextPositions)
	c.Picked = cloneStrings(d.Picked)
	c.SkipPlayers = cloneStrings(d.SkipPlayers)
	c.Picks = append(make([]DraftPick, 0, len(d.Picks)), d.Picks...)
	c.Gambits = make(map[string][]string, len(d.Gambits))
	for k, v := range d.Gambits {
		c.Gambits[k] = cloneStrings(v)
	}
	c.Quotas = make(map[string]int, len(d.Quotas))
	for k, v := range d.Quotas {
		c.Quotas[k] = v
	}
	return &c
}

// UnmarshalJSON rebuilds the derived picked list from the pick log.
func (d *Draft) UnmarshalJSON(data []byte) error {
	type alias Draft
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = Draft(a)

	d.Picked = make([]string, len(d.Picks))
	for i, p := range d.Picks {
		d.Picked[i] = p.Key
	}
	if d.Gambits == nil {
		d.Gambits = map[string][]string{}
	}
	if d.Quotas == nil {
		d.Quotas = map[string]int{}
	}
	return nil
}

func cloneStrings(s []string) []string {
	return append(make([]string, 0, len(s)), s...)
}
