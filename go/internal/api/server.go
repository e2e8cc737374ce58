// Package api exposes the room coordinator over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcdev12/draftroom/go/internal/catalog"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/identity"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// Rooms is the part of the room coordinator the API drives.
type Rooms interface {
	CreateRoom(ctx context.Context, admin string) (*models.Room, error)
	Snapshot(ctx context.Context, code string) (events.SnapshotPayload, error)
	Destroy(ctx context.Context, user, code string) error
	Join(ctx context.Context, code, user string) (*models.Room, error)
	Leave(ctx context.Context, code, user string) error
	Kick(ctx context.Context, admin, code, member string) error
	SetStatus(ctx context.Context, admin, code, member string, status models.MemberStatus) error
	UpdateConfig(ctx context.Context, user, code string, payload map[string]any) ([]string, error)
	StartDraft(ctx context.Context, user, code string) error
	Pick(ctx context.Context, user, code, key string) error
	SetGambit(ctx context.Context, user, code, key string, enabled bool) error
	SetReady(ctx context.Context, user, code string, ready bool) error
	RecordAdvancement(ctx context.Context, user, code, advancement string) error
}

// TokenIssuer mints tokens for the dev login route.
type TokenIssuer interface {
	Generate(userID, username string) (string, error)
}

// Leaderboard lists the fastest recorded runs for a tag.
type Leaderboard interface {
	Leaderboard(ctx context.Context, tag string, limit int) ([]models.Completion, error)
}

// Server holds the HTTP handlers.
type Server struct {
	rooms      Rooms
	catalog    *catalog.Catalog
	identities identity.Provider
	health     *HealthChecker
	board      Leaderboard

	// devTokens is nil unless dev mode is on.
	devTokens TokenIssuer
}

// Option configures a Server.
type Option func(*Server)

// WithDevTokens enables POST /dev/token.
func WithDevTokens(issuer TokenIssuer) Option {
	return func(s *Server) { s.devTokens = issuer }
}

// WithLeaderboard enables GET /lb/{tag}.
func WithLeaderboard(b Leaderboard) Option {
	return func(s *Server) { s.board = b }
}

// WithHealth sets the checker behind GET /health.
func WithHealth(h *HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

func NewServer(rooms Rooms, cat *catalog.Catalog, identities identity.Provider, opts ...Option) *Server {
	s := &Server{
		rooms:      rooms,
		catalog:    cat,
		identities: identities,
		health:     NewHealthChecker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes mounts every API route on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/draftables", s.handleDraftables)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		r.Post("/rooms", s.handleCreateRoom)
		r.Route("/rooms/{code}", func(r chi.Router) {
			r.Get("/", s.handleGetRoom)
			r.Delete("/", s.handleDestroyRoom)
			r.Post("/join", s.handleJoin)
			r.Post("/leave", s.handleLeave)
			r.Post("/kick", s.handleKick)
			r.Post("/status", s.handleSetStatus)
			r.Post("/configure", s.handleConfigure)
			r.Post("/start", s.handleStart)
			r.Post("/pick", s.handlePick)
			r.Post("/gambit", s.handleGambit)
			r.Post("/ready", s.handleReady)
			r.Post("/advancement", s.handleAdvancement)
		})
	})

	if s.board != nil {
		r.Get("/lb/{tag}", s.handleLeaderboard)
	}
	if s.devTokens != nil {
		r.Post("/dev/token", s.handleDevToken)
	}
}

// Router builds a standalone router with the standard middleware.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	s.Routes(r)
	return r
}
