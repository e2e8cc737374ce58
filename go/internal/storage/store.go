// Package storage persists rooms and their drafts.
package storage

import (
	"context"
	"errors"

	"github.com/mcdev12/draftroom/go/internal/models"
)

var ErrNotFound = errors.New("room not found")

// Store loads and saves room state. LoadRoom never populates Room.Draft; the
// draft travels through LoadDraft and SaveDraft. LoadDraft returns nil without
// error for a room whose draft has not started.
type Store interface {
	LoadRoom(ctx context.Context, code string) (*models.Room, error)
	SaveRoom(ctx context.Context, room *models.Room) error
	LoadDraft(ctx context.Context, code string) (*models.Draft, error)
	SaveDraft(ctx context.Context, code string, draft *models.Draft) error
	DeleteRoom(ctx context.Context, code string) error
	Ping(ctx context.Context) error

	// SaveUsername and LoadUsernames persist the user id to username map
	// learned from verified tokens.
	SaveUsername(ctx context.Context, userID, username string) error
	LoadUsernames(ctx context.Context) (map[string]string, error)
}
