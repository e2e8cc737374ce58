package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries binds the statements below to a *sql.DB or a *sql.Tx.
type queries struct {
	db dbtx
}

func newQueries(tx *sql.Tx) *queries {
	return &queries{db: tx}
}

const upsertRoom = `
INSERT INTO rooms (code, admin, members, spectators, config, state, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (code) DO UPDATE SET
    admin      = EXCLUDED.admin,
    members    = EXCLUDED.members,
    spectators = EXCLUDED.spectators,
    config     = EXCLUDED.config,
    state      = EXCLUDED.state,
    updated_at = now()`

const getRoom = `
SELECT code, admin, members, spectators, config, state, created_at
FROM rooms WHERE code = $1`

const getDraft = `SELECT draft FROM rooms WHERE code = $1`

const updateDraft = `UPDATE rooms SET draft = $2, updated_at = now() WHERE code = $1`

const deleteRoom = `DELETE FROM rooms WHERE code = $1`

const upsertUser = `
INSERT INTO users (user_id, username, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET
    username   = EXCLUDED.username,
    updated_at = now()`

const listUsers = `SELECT user_id, username FROM users`

// PostgresStore keeps one row per room with the draft in a nullable jsonb column.
type PostgresStore struct {
	db *sql.DB
	q  *queries
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: &queries{db: db}}
}

func (s *PostgresStore) LoadRoom(ctx context.Context, code string) (*models.Room, error) {
	var (
		room          models.Room
		config, state []byte
	)
	err := s.q.db.QueryRowContext(ctx, getRoom, code).Scan(
		&room.Code,
		&room.Admin,
		pq.Array(&room.Members),
		pq.Array(&room.Spectators),
		&config,
		&state,
		&room.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if err := json.Unmarshal(config, &room.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room config: %w", err)
	}
	if err := json.Unmarshal(state, &room.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room state: %w", err)
	}
	if room.Members == nil {
		room.Members = []string{}
	}
	if room.Spectators == nil {
		room.Spectators = []string{}
	}
	return &room, nil
}

func (s *PostgresStore) SaveRoom(ctx context.Context, room *models.Room) error {
	config, err := json.Marshal(room.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal room config: %w", err)
	}
	state, err := json.Marshal(room.State)
	if err != nil {
		return fmt.Errorf("failed to marshal room state: %w", err)
	}

	_, err = s.q.db.ExecContext(ctx, upsertRoom,
		room.Code,
		room.Admin,
		pq.Array(room.Members),
		pq.Array(room.Spectators),
		config,
		state,
		room.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadDraft(ctx context.Context, code string) (*models.Draft, error) {
	var raw pqtype.NullRawMessage
	err := s.q.db.QueryRowContext(ctx, getDraft, code).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	draft, err := sqlutil.FromNullJSON[models.Draft](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return draft, nil
}

func (s *PostgresStore) SaveDraft(ctx context.Context, code string, draft *models.Draft) error {
	raw, err := sqlutil.ToNullJSON(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	return sqlutil.InTx(ctx, s.db, nil, newQueries, func(q *queries) error {
		res, err := q.db.ExecContext(ctx, updateDraft, code, raw)
		if err != nil {
			return fmt.Errorf("failed to save draft: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) DeleteRoom(ctx context.Context, code string) error {
	if _, err := s.q.db.ExecContext(ctx, deleteRoom, code); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) SaveUsername(ctx context.Context, userID, username string) error {
	if _, err := s.q.db.ExecContext(ctx, upsertUser, userID, username); err != nil {
		return fmt.Errorf("failed to save username: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadUsernames(ctx context.Context) (map[string]string, error) {
	rows, err := s.q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to list usernames: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var userID, username string
		if err := rows.Scan(&userID, &username); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		names[userID] = username
	}
	return names, rows.Err()
}
