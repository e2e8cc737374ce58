package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/draftroom/go/internal/identity"
	"github.com/mcdev12/draftroom/go/internal/room"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for room connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	identities        identity.Provider
	metrics           *CounterMetrics
}

// NewWebSocketHandler creates a new WebSocket handler. metrics may be nil.
func NewWebSocketHandler(cm *ConnectionManager, identities identity.Provider, metrics *CounterMetrics) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		identities:        identities,
		metrics:           metrics,
	}
}

// HandleRoomConnection upgrades a connection subscribed to ?room=<code>.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomCode := r.URL.Query().Get("room")
	if roomCode == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	who, err := h.identities.CurrentIdentity(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	err = h.connectionManager.Connect(w, r, who.UserID, roomCode)
	switch {
	case err == nil:
	case errors.Is(err, room.ErrRoomNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNotInRoom):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		// the upgrader has already written a response
		log.Error().
			Err(err).
			Str("room_code", roomCode).
			Str("user_id", who.UserID).
			Msg("failed to open WebSocket connection")
	}
}

type statsResponse struct {
	ConnectionStats
	Broadcast *MetricsSnapshot `json:"broadcast,omitempty"`
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{ConnectionStats: h.connectionManager.GetConnectionStats()}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		resp.Broadcast = &snap
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.HandleRoomConnection)
	r.Get("/ws/stats", h.HandleConnectionStats)
}
