package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

const insertCompletion = `
INSERT INTO completions (player_id, username, room_code, duration_ms, tag, completed_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// MaxRunsPerPlayer caps how many of a player's runs, earliest first, count
// towards a leaderboard.
const MaxRunsPerPlayer = 5

const leaderboard = `
SELECT player_id, username, room_code, duration_ms, COALESCE(tag, ''), completed_at
FROM (
    SELECT *, ROW_NUMBER() OVER (PARTITION BY player_id ORDER BY completed_at) AS run
    FROM completions
    WHERE tag = $1
) ranked
WHERE run <= $2
ORDER BY duration_ms, completed_at
LIMIT $3`

// PgxCompletionRecorder writes finished runs to the completions table.
type PgxCompletionRecorder struct {
	pool *pgxpool.Pool
}

func NewPgxCompletionRecorder(pool *pgxpool.Pool) *PgxCompletionRecorder {
	return &PgxCompletionRecorder{pool: pool}
}

func (r *PgxCompletionRecorder) RecordCompletion(ctx context.Context, c models.Completion) error {
	_, err := r.pool.Exec(ctx, insertCompletion,
		c.PlayerID,
		c.Username,
		c.RoomCode,
		c.Duration.Milliseconds(),
		sqlutil.ToSqlString(c.Tag),
		c.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert completion: %w", err)
	}
	return nil
}

// Leaderboard returns the fastest runs recorded under tag.
func (r *PgxCompletionRecorder) Leaderboard(ctx context.Context, tag string, limit int) ([]models.Completion, error) {
	rows, err := r.pool.Query(ctx, leaderboard, tag, MaxRunsPerPlayer, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	out := []models.Completion{}
	for rows.Next() {
		var (
			c  models.Completion
			ms int64
		)
		if err := rows.Scan(&c.PlayerID, &c.Username, &c.RoomCode, &ms, &c.Tag, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		c.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}

// MemoryCompletions keeps completions in process. Used when no database is
// configured.
type MemoryCompletions struct {
	mu          sync.Mutex
	completions []models.Completion
}

func (m *MemoryCompletions) RecordCompletion(_ context.Context, c models.Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, c)
	log.Info().
		Str("user_id", c.PlayerID).
		Str("username", c.Username).
		Dur("duration", c.Duration).
		Str("tag", c.Tag).
		Msg("recorded completion")
	return nil
}

// All returns the recorded completions in order.
func (m *MemoryCompletions) All() []models.Completion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Completion(nil), m.completions...)
}

// Leaderboard returns the fastest runs recorded under tag.
func (m *MemoryCompletions) Leaderboard(_ context.Context, tag string, limit int) ([]models.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runs := make(map[string]int)
	out := []models.Completion{}
	for _, c := range m.completions {
		if c.Tag != tag || runs[c.PlayerID] >= MaxRunsPerPlayer {
			continue
		}
		runs[c.PlayerID]++
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b models.Completion) int {
		return cmp.Compare(a.Duration, b.Duration)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
