package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/draftroom/go/internal/catalog"
	"github.com/mcdev12/draftroom/go/internal/identity"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// caller resolves the authenticated user or writes a 401.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	who, err := s.identities.CurrentIdentity(r)
	if err != nil {
		writeError(w, r, err)
		return identity.Identity{}, false
	}
	return who, true
}

func requiredQuery(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", errBadRequest, name)
	}
	return v, nil
}

func boolQuery(r *http.Request, name string) (bool, error) {
	raw, err := requiredQuery(r, name)
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, name)
	}
	return v, nil
}

// respondSnapshot writes the room's current snapshot.
func (s *Server) respondSnapshot(w http.ResponseWriter, r *http.Request, code string, status int) {
	snap, err := s.rooms.Snapshot(r.Context(), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, snap)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	rm, err := s.rooms.CreateRoom(r.Context(), who.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondSnapshot(w, r, rm.Code, http.StatusCreated)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	s.respondSnapshot(w, r, chi.URLParam(r, "code"), http.StatusOK)
}

func (s *Server) handleDestroyRoom(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.rooms.Destroy(r.Context(), who.UserID, chi.URLParam(r, "code")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")
	if _, err := s.rooms.Join(r.Context(), code, who.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	s.respondSnapshot(w, r, code, http.StatusOK)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.rooms.Leave(r.Context(), chi.URLParam(r, "code"), who.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	member, err := requiredQuery(r, "member")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.rooms.Kick(r.Context(), who.UserID, chi.URLParam(r, "code"), member); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	member, err := requiredQuery(r, "member")
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, err := requiredQuery(r, "status")
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.rooms.SetStatus(r.Context(), who.UserID, chi.URLParam(r, "code"), member, models.MemberStatus(status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type configureResponse struct {
	Changed []string `json:"changed"`
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	var payload map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&payload); err != nil {
		writeError(w, r, fmt.Errorf("%w: body must be a JSON object: %v", errBadRequest, err))
		return
	}
	changed, err := s.rooms.UpdateConfig(r.Context(), who.UserID, chi.URLParam(r, "code"), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if changed == nil {
		changed = []string{}
	}
	writeJSON(w, http.StatusOK, configureResponse{Changed: changed})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.rooms.StartDraft(r.Context(), who.UserID, chi.URLParam(r, "code")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	key, err := requiredQuery(r, "key")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.rooms.Pick(r.Context(), who.UserID, chi.URLParam(r, "code"), key); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGambit(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	key, err := requiredQuery(r, "key")
	if err != nil {
		writeError(w, r, err)
		return
	}
	enabled, err := boolQuery(r, "enabled")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.rooms.SetGambit(r.Context(), who.UserID, chi.URLParam(r, "code"), key, enabled); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	ready, err := boolQuery(r, "value")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.rooms.SetReady(r.Context(), who.UserID, chi.URLParam(r, "code"), ready); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdvancement(w http.ResponseWriter, r *http.Request) {
	who, ok := s.caller(w, r)
	if !ok {
		return
	}
	adv, err := requiredQuery(r, "advancement")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.rooms.RecordAdvancement(r.Context(), who.UserID, chi.URLParam(r, "code"), adv); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type draftablesResponse struct {
	Pools   []catalog.Pool          `json:"pools"`
	Items   map[string]catalog.Item `json:"items"`
	Gambits []catalog.Gambit        `json:"gambits"`
}

func (s *Server) handleDraftables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, draftablesResponse{
		Pools:   s.catalog.Pools(),
		Items:   s.catalog.Items(),
		Gambits: s.catalog.Gambits(),
	})
}

type tokenResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func (s *Server) handleDevToken(w http.ResponseWriter, r *http.Request) {
	userID, err := requiredQuery(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	username := r.URL.Query().Get("username")
	if username == "" {
		username = userID
	}
	token, err := s.devTokens.Generate(userID, username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Warn().Str("user_id", userID).Msg("issued dev token")
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, UserID: userID, Username: username})
}
