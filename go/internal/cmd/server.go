package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcdev12/draftroom/go/internal/api"
	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/mcdev12/draftroom/go/internal/draft/gateway"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg config.Config, services *Services) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerRoutes(r, cfg, services)

	// Wrap with CORS
	handler := c.Handler(r)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerRoutes(r chi.Router, cfg config.Config, services *Services) {
	health := api.NewHealthChecker().WithStore(services.Store)
	if services.Sink != nil {
		health = health.WithNATS(services.Sink)
	}

	opts := []api.Option{
		api.WithHealth(health),
		api.WithLeaderboard(services.Leaderboard),
	}
	if cfg.DevMode {
		opts = append(opts, api.WithDevTokens(services.JWT))
	}
	api.NewServer(services.Coordinator, services.Catalog, services.JWT, opts...).Routes(r)

	gateway.NewWebSocketHandler(services.Connections, services.JWT, services.Metrics).RegisterRoutes(r)
}
