package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mcdev12/draftroom/go/internal/models"
)

const (
	roomPrefix  = "room:"
	draftPrefix = "draft:"
	userPrefix  = "user:"
)

// BadgerStore keeps rooms in an embedded badger database, one key for the room
// and one for its draft.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database in dir. An empty dir keeps
// everything in memory.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) LoadRoom(_ context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(roomPrefix + code))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &room)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}
	return &room, nil
}

func (s *BadgerStore) SaveRoom(_ context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(roomPrefix+room.Code), data)
	})
}

func (s *BadgerStore) LoadDraft(_ context.Context, code string) (*models.Draft, error) {
	var draft *models.Draft
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(roomPrefix + code)); err != nil {
			return err
		}
		item, err := txn.Get([]byte(draftPrefix + code))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			draft = &models.Draft{}
			return json.Unmarshal(val, draft)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft %s: %w", code, err)
	}
	return draft, nil
}

func (s *BadgerStore) SaveDraft(_ context.Context, code string, draft *models.Draft) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(roomPrefix + code)); err != nil {
			return err
		}
		key := []byte(draftPrefix + code)
		if draft == nil {
			return txn.Delete(key)
		}
		data, err := json.Marshal(draft)
		if err != nil {
			return fmt.Errorf("encode draft %s: %w", code, err)
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *BadgerStore) DeleteRoom(_ context.Context, code string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(roomPrefix + code)); err != nil {
			return err
		}
		return txn.Delete([]byte(draftPrefix + code))
	})
}

func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

func (s *BadgerStore) SaveUsername(_ context.Context, userID, username string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(userPrefix+userID), []byte(username))
	})
}

func (s *BadgerStore) LoadUsernames(context.Context) (map[string]string, error) {
	names := make(map[string]string)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(userPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			userID := strings.TrimPrefix(string(item.Key()), userPrefix)
			if err := item.Value(func(val []byte) error {
				names[userID] = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load usernames: %w", err)
	}
	return names, nil
}
