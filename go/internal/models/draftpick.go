package models

// DraftPick represents a single pick in a draft.
type DraftPick struct {
	Key    string `json:"key"`    // catalog item key
	Player string `json:"player"` // participant who holds the item
	Index  int    `json:"index"`  // position in the pick log
}
