package room

import "errors"

// Rejections returned by the coordinator. Draft-level rejections come from the
// engine package and pass through unchanged.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotMember          = errors.New("not a member of this room")
	ErrNotAdmin           = errors.New("only the room admin can do that")
	ErrCannotKickSelf     = errors.New("the admin cannot kick themselves")
	ErrAlreadyStarted     = errors.New("the draft has already started")
	ErrNotDrafting        = errors.New("the draft has not started")
	ErrDraftNotComplete   = errors.New("the draft is not complete yet")
	ErrNoPlayers          = errors.New("at least one player is needed to start")
	ErrTooManyPlayers     = errors.New("too many players to start")
	ErrInvalidStatus      = errors.New("unknown member status")
	ErrRestricted         = errors.New("player is not on the room's player list")
	ErrGambitsDisabled    = errors.New("gambits are disabled in this room")
	ErrGameplayStarted    = errors.New("gameplay has started; the room cannot be closed")
	ErrInvalidAdvancement = errors.New("not a recognised advancement")
)
