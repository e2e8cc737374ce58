package main

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/catalog"
	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/mcdev12/draftroom/go/internal/draft/gateway"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/mcdev12/draftroom/go/internal/identity"
	"github.com/mcdev12/draftroom/go/internal/room"
	"github.com/mcdev12/draftroom/go/internal/storage"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Store        storage.Store
	Leaderboard  completionStore
	Catalog      *catalog.Catalog
	JWT          *identity.JWTManager
	Orchestrator *orchestrator.Orchestrator
	Coordinator  *room.Coordinator
	Connections  *gateway.ConnectionManager
	Broadcaster  *gateway.Broadcaster
	Metrics      *gateway.CounterMetrics
	Sink         *gateway.JetStreamSink

	closers []func() error
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Store → Coordinator ← Timers / Broadcaster ← Connections

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	store, completions, closers, err := setupStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Services{
		Store:       store,
		Leaderboard: completions,
		Catalog:     cat,
		closers:     closers,
	}

	clock := clockwork.NewRealClock()
	s.JWT = identity.NewJWTManager(cfg.JWTSecret, cfg.JWTMaxAge, clock)
	if err := s.JWT.Usernames().Restore(ctx, store); err != nil {
		s.Close()
		return nil, err
	}
	s.Metrics = gateway.NewCounterMetrics()

	broadcasterOpts := []gateway.BroadcasterOption{gateway.WithMetrics(s.Metrics)}
	if cfg.NATSEnabled {
		jsCfg := gateway.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		sink, err := gateway.NewJetStreamSink(ctx, jsCfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Sink = sink
		s.closers = append(s.closers, sink.Close)
		broadcasterOpts = append(broadcasterOpts, gateway.WithSink(sink))
	}

	s.Connections = gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), nil)
	s.Broadcaster = gateway.NewBroadcaster(s.Connections, gateway.DefaultBroadcasterConfig(), broadcasterOpts...)
	s.Orchestrator = orchestrator.NewOrchestrator(nil,
		orchestrator.WithClock(clock),
		orchestrator.WithWorkers(cfg.Workers),
	)

	rules := room.DefaultConfig()
	rules.MaxPlayers = cfg.MaxPlayers
	rules.PickBuffer = cfg.PickBuffer
	rules.StartExtra = cfg.StartExtra
	rules.GoalAdvancements = cfg.GoalAdvancements
	rules.MinRunDuration = cfg.MinRunDuration

	seed := time.Now().UnixNano()
	s.Coordinator = room.NewCoordinator(store, cat, s.Broadcaster, s.Orchestrator,
		room.WithClock(clock),
		room.WithConfig(rules),
		room.WithStrategy(orchestrator.NewRandomStrategy(seed)),
		room.WithPresence(s.Connections),
		room.WithUsernames(s.JWT.Usernames()),
		room.WithCompletions(completions),
		room.WithSeeds(room.NewRandomSeeds(seed+1)),
		room.WithRandSeed(seed+2),
	)
	s.Connections.SetSnapshotProvider(s.Coordinator)
	s.Orchestrator.SetForcer(s.Coordinator)

	return s, nil
}

// Start runs the background loops until ctx is cancelled.
func (s *Services) Start(ctx context.Context) {
	go s.Broadcaster.Start(ctx)
	go func() {
		if err := s.Orchestrator.Run(ctx); err != nil {
			log.Error().Err(err).Msg("orchestrator stopped")
		}
	}()
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close resource")
		}
	}
	s.closers = nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("pools", len(cat.Pools())).Msg("loaded catalog")
	return cat, nil
}
