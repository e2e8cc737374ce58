package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/mcdev12/draftroom/go/internal/api"
	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/mcdev12/draftroom/go/internal/room"
	"github.com/mcdev12/draftroom/go/internal/storage"
	"github.com/rs/zerolog/log"
)

// completionStore records finished runs and serves the leaderboard.
type completionStore interface {
	room.CompletionRecorder
	api.Leaderboard
}

// setupStore opens the configured store. The returned closers release it.
func setupStore(ctx context.Context, cfg config.Config) (storage.Store, completionStore, []func() error, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		return setupPostgres(ctx, cfg.Database)

	case config.StoreBadger:
		db, err := storage.OpenBadger(cfg.BadgerDir)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info().Str("dir", cfg.BadgerDir).Msg("opened badger store")
		return storage.NewBadgerStore(db), &storage.MemoryCompletions{}, []func() error{db.Close}, nil

	default:
		return storage.NewMemoryStore(), &storage.MemoryCompletions{}, nil, nil
	}
}

func setupPostgres(ctx context.Context, dbConfig config.DatabaseConfig) (storage.Store, completionStore, []func() error, error) {
	dsn := dbConfig.DSN()

	database, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	log.Info().
		Str("user", dbConfig.User).
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Name).
		Msg("connected to database")

	closers := []func() error{
		func() error { pool.Close(); return nil },
		database.Close,
	}
	return storage.NewPostgresStore(database), storage.NewPgxCompletionRecorder(pool), closers, nil
}
