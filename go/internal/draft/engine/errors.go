package engine

import "errors"

// Rejections. Each is surfaced to the caller as its own reason.
var (
	ErrNotYourTurn     = errors.New("it is not your turn to pick")
	ErrUnknownItem     = errors.New("item is not in the catalog")
	ErrNotPoolEligible = errors.New("item's pool is not part of this draft")
	ErrAlreadyPicked   = errors.New("item has already been picked")
	ErrQuotaExceeded   = errors.New("pick quota exceeded")
	ErrDraftComplete   = errors.New("draft is already complete")
	ErrUnknownGambit   = errors.New("gambit is not in the catalog")
	ErrNotParticipant  = errors.New("not a drafting participant")
)

var (
	// ErrConfiguration means a draft cannot be started with the given players and catalog.
	ErrConfiguration = errors.New("invalid draft configuration")

	// ErrExhaustedPools means no eligible item is left for the current holder even
	// though the draft is not complete. Pool accounting is inconsistent.
	ErrExhaustedPools = errors.New("no eligible items left in any pool")
)
