package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	defaultBoardSize = 50
	maxBoardSize     = 500
)

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultBoardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxBoardSize {
			writeError(w, r, fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, maxBoardSize))
			return
		}
		limit = n
	}

	board, err := s.board.Leaderboard(r.Context(), chi.URLParam(r, "tag"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
