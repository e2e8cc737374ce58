package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/draftroom/go/internal/draft/engine"
	"github.com/mcdev12/draftroom/go/internal/identity"
	"github.com/mcdev12/draftroom/go/internal/room"
	"github.com/rs/zerolog/log"
)

var errBadRequest = errors.New("bad request")

// APIError is the body of every failed request.
type APIError struct {
	ErrorMessage string `json:"error_message"`
}

var statusByError = []struct {
	err    error
	status int
}{
	{identity.ErrMissingToken, http.StatusUnauthorized},
	{identity.ErrInvalidToken, http.StatusUnauthorized},

	{room.ErrRoomNotFound, http.StatusNotFound},

	{room.ErrNotMember, http.StatusForbidden},
	{room.ErrNotAdmin, http.StatusForbidden},
	{room.ErrCannotKickSelf, http.StatusForbidden},
	{room.ErrRestricted, http.StatusForbidden},
	{engine.ErrNotParticipant, http.StatusForbidden},
	{engine.ErrNotYourTurn, http.StatusForbidden},

	{room.ErrAlreadyStarted, http.StatusConflict},
	{room.ErrNotDrafting, http.StatusConflict},
	{room.ErrDraftNotComplete, http.StatusConflict},
	{room.ErrNoPlayers, http.StatusConflict},
	{room.ErrTooManyPlayers, http.StatusConflict},
	{room.ErrGambitsDisabled, http.StatusConflict},
	{room.ErrGameplayStarted, http.StatusConflict},
	{engine.ErrDraftComplete, http.StatusConflict},
	{engine.ErrAlreadyPicked, http.StatusConflict},
	{engine.ErrQuotaExceeded, http.StatusConflict},
	{engine.ErrConfiguration, http.StatusConflict},

	{errBadRequest, http.StatusBadRequest},
	{room.ErrInvalidStatus, http.StatusBadRequest},
	{room.ErrInvalidAdvancement, http.StatusBadRequest},
	{engine.ErrUnknownItem, http.StatusBadRequest},
	{engine.ErrNotPoolEligible, http.StatusBadRequest},
	{engine.ErrUnknownGambit, http.StatusBadRequest},
}

// statusFor maps a coordinator error onto an HTTP status.
func statusFor(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, APIError{ErrorMessage: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
