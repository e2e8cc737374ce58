package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/mcdev12/draftroom/go/internal/models"
)

type memoryRecord struct {
	room  []byte
	draft []byte
}

// MemoryStore keeps JSON encodings in a map so callers never share memory with
// what was saved.
type MemoryStore struct {
	mu        sync.RWMutex
	rooms     map[string]memoryRecord
	usernames map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:     make(map[string]memoryRecord),
		usernames: make(map[string]string),
	}
}

func (s *MemoryStore) LoadRoom(_ context.Context, code string) (*models.Room, error) {
	s.mu.RLock()
	rec, ok := s.rooms[code]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var room models.Room
	if err := json.Unmarshal(rec.room, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	return &room, nil
}

func (s *MemoryStore) SaveRoom(_ context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rooms[room.Code]
	rec.room = data
	s.rooms[room.Code] = rec
	return nil
}

func (s *MemoryStore) LoadDraft(_ context.Context, code string) (*models.Draft, error) {
	s.mu.RLock()
	rec, ok := s.rooms[code]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if rec.draft == nil {
		return nil, nil
	}

	var d models.Draft
	if err := json.Unmarshal(rec.draft, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", code, err)
	}
	return &d, nil
}

func (s *MemoryStore) SaveDraft(_ context.Context, code string, draft *models.Draft) error {
	var data []byte
	if draft != nil {
		var err error
		if data, err = json.Marshal(draft); err != nil {
			return fmt.Errorf("encode draft %s: %w", code, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[code]
	if !ok {
		return ErrNotFound
	}
	rec.draft = data
	s.rooms[code] = rec
	return nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) SaveUsername(_ context.Context, userID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usernames[userID] = username
	return nil
}

func (s *MemoryStore) LoadUsernames(context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.usernames), nil
}
