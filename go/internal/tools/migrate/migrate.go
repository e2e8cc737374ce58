package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/mcdev12/draftroom/go/internal/storage"
)

func main() {
	ctx := context.Background()

	// 1) Connect using the server's DB_* settings
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 2) Apply the schema; every statement is idempotent
	if _, err := pool.Exec(ctx, storage.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Print summary
	var rooms, completions int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&rooms); err != nil {
		fmt.Fprintf(os.Stderr, "count rooms: %v\n", err)
		os.Exit(1)
	}
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM completions`).Scan(&completions); err != nil {
		fmt.Fprintf(os.Stderr, "count completions: %v\n", err)
		os.Exit(1)
	}
	var users int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		fmt.Fprintf(os.Stderr, "count users: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf(
		"Migration complete on %s: %d rooms, %d completions, %d users\n",
		cfg.Database.Name, rooms, completions, users,
	)
}
