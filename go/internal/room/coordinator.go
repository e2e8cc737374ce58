// Package room serializes every mutation of a room. Each operation runs as
// lock, load, mutate, save, enqueue events, unlock.
package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/catalog"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/storage"
	"github.com/rs/zerolog/log"
)

// Broadcaster delivers events to the channels of the given members, in order.
type Broadcaster interface {
	Broadcast(roomCode string, members []string, evs ...events.Event)
}

// Timer arms and cancels the per-room pick countdown.
type Timer interface {
	Arm(roomCode string, pickCount int, d time.Duration)
	Cancel(roomCode string)
}

// Presence reports whether a participant has a live channel to a room.
type Presence interface {
	Connected(roomCode, participant string) bool
}

type UsernameResolver interface {
	ResolveUsername(ctx context.Context, participant string) (string, bool)
}

type CompletionRecorder interface {
	RecordCompletion(ctx context.Context, c models.Completion) error
}

// Config holds the coordinator's rules.
type Config struct {
	MaxPlayers       int
	PickBuffer       time.Duration
	StartExtra       time.Duration
	GoalAdvancements int
	MinRunDuration   time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxPlayers:       4,
		PickBuffer:       orchestrator.BufferPick,
		StartExtra:       orchestrator.StartExtra,
		GoalAdvancements: 80,
		MinRunDuration:   40 * time.Minute,
	}
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// Coordinator owns all room and draft state.
type Coordinator struct {
	store       storage.Store
	catalog     *catalog.Catalog
	broadcaster Broadcaster
	timer       Timer
	strategy    orchestrator.AutoPickStrategy
	presence    Presence
	usernames   UsernameResolver
	completions CompletionRecorder
	seeds       SeedSource
	clock       clockwork.Clock
	cfg         Config

	locksMu sync.Mutex
	locks   map[string]*roomLock

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithStrategy sets how forced picks are chosen.
func WithStrategy(s orchestrator.AutoPickStrategy) Option {
	return func(c *Coordinator) { c.strategy = s }
}

func WithPresence(p Presence) Option {
	return func(c *Coordinator) { c.presence = p }
}

func WithUsernames(u UsernameResolver) Option {
	return func(c *Coordinator) { c.usernames = u }
}

func WithCompletions(r CompletionRecorder) Option {
	return func(c *Coordinator) { c.completions = r }
}

func WithSeeds(s SeedSource) Option {
	return func(c *Coordinator) { c.seeds = s }
}

func WithConfig(cfg Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithRandSeed fixes the seed used to shuffle turn order.
func WithRandSeed(seed int64) Option {
	return func(c *Coordinator) { c.rng = rand.New(rand.NewSource(seed)) }
}

func NewCoordinator(store storage.Store, cat *catalog.Catalog, b Broadcaster, timer Timer, opts ...Option) *Coordinator {
	now := time.Now().UnixNano()
	c := &Coordinator{
		store:       store,
		catalog:     cat,
		broadcaster: b,
		timer:       timer,
		strategy:    orchestrator.NewRandomStrategy(now),
		usernames:   noUsernames{},
		completions: noCompletions{},
		seeds:       NewRandomSeeds(now + 1),
		clock:       clockwork.NewRealClock(),
		cfg:         DefaultConfig(),
		locks:       make(map[string]*roomLock),
		rng:         rand.New(rand.NewSource(now + 2)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the catalog drafts are played against.
func (c *Coordinator) Catalog() *catalog.Catalog {
	return c.catalog
}

// lock serializes operations on one room. The returned func releases it.
func (c *Coordinator) lock(code string) func() {
	c.locksMu.Lock()
	l, ok := c.locks[code]
	if !ok {
		l = &roomLock{}
		c.locks[code] = l
	}
	l.refs++
	c.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, code)
		}
		c.locksMu.Unlock()
	}
}

// load reads the room and attaches its draft.
func (c *Coordinator) load(ctx context.Context, code string) (*models.Room, error) {
	r, err := c.store.LoadRoom(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}
	d, err := c.store.LoadDraft(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load draft %s: %w", code, err)
	}
	r.Draft = d
	if r.State.PlayerAdvancements == nil {
		r.State.PlayerAdvancements = map[string][]string{}
	}
	if r.State.HitGoalAt == nil {
		r.State.HitGoalAt = map[string]time.Time{}
	}
	return r, nil
}

func (c *Coordinator) saveRoom(ctx context.Context, r *models.Room) error {
	if err := c.store.SaveRoom(ctx, r); err != nil {
		return fmt.Errorf("save room %s: %w", r.Code, err)
	}
	return nil
}

func (c *Coordinator) saveDraft(ctx context.Context, r *models.Room) error {
	if err := c.store.SaveDraft(ctx, r.Code, r.Draft); err != nil {
		return fmt.Errorf("save draft %s: %w", r.Code, err)
	}
	return nil
}

// batch collects the events of one operation so they are only published once
// the state behind them is saved.
type batch struct {
	code   string
	at     time.Time
	events []events.Event
}

func (c *Coordinator) newBatch(code string) *batch {
	return &batch{code: code, at: c.clock.Now()}
}

func (b *batch) add(t events.EventType, payload any) {
	ev, err := events.New(b.code, t, b.at, payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", b.code).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	b.events = append(b.events, ev)
}

func (c *Coordinator) publish(b *batch, recipients []string) {
	if len(b.events) == 0 {
		return
	}
	c.broadcaster.Broadcast(b.code, recipients, b.events...)
}

// teardown deletes the room and tells recipients it closed. It refuses once
// gameplay start was signalled.
func (c *Coordinator) teardown(ctx context.Context, r *models.Room, recipients []string) error {
	if r.State.HasSentStart {
		return ErrGameplayStarted
	}
	if err := c.store.DeleteRoom(ctx, r.Code); err != nil {
		return fmt.Errorf("delete room %s: %w", r.Code, err)
	}
	c.timer.Cancel(r.Code)

	b := c.newBatch(r.Code)
	b.add(events.EventTypeRoomUpdate, events.RoomUpdatePayload{Update: events.RoomUpdateClosed})
	c.publish(b, recipients)

	log.Info().Str("room_code", r.Code).Msg("room closed")
	return nil
}

// CreateRoom opens a lobby with admin as its only member.
func (c *Coordinator) CreateRoom(ctx context.Context, admin string) (*models.Room, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := newCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}

		r, err := c.createWithCode(ctx, code, admin)
		if errors.Is(err, errCodeTaken) {
			continue
		}
		return r, err
	}
	return nil, errors.New("could not allocate a room code")
}

var errCodeTaken = errors.New("room code taken")

func (c *Coordinator) createWithCode(ctx context.Context, code, admin string) (*models.Room, error) {
	unlock := c.lock(code)
	defer unlock()

	_, err := c.store.LoadRoom(ctx, code)
	if err == nil {
		return nil, errCodeTaken
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("check room code: %w", err)
	}

	r := &models.Room{
		Code:       code,
		Admin:      admin,
		Members:    []string{admin},
		Spectators: []string{},
		Config:     models.DefaultRoomConfig(),
		State:      models.NewRoomState(),
		CreatedAt:  c.clock.Now().UTC(),
	}
	if err := c.saveRoom(ctx, r); err != nil {
		return nil, err
	}

	b := c.newBatch(code)
	b.add(events.EventTypeRoomCreated, events.RoomCreatedPayload{Code: code, Admin: admin})
	c.publish(b, r.Members)

	log.Info().Str("room_code", code).Str("user_id", admin).Msg("room created")
	return r, nil
}

// Room returns the current state of a room.
func (c *Coordinator) Room(ctx context.Context, code string) (*models.Room, error) {
	unlock := c.lock(code)
	defer unlock()
	return c.load(ctx, code)
}

// Snapshot builds the full state a freshly connected channel receives.
func (c *Coordinator) Snapshot(ctx context.Context, code string) (events.SnapshotPayload, error) {
	r, err := c.Room(ctx, code)
	if err != nil {
		return events.SnapshotPayload{}, err
	}

	usernames := make(map[string]string, len(r.Members))
	for _, m := range r.Members {
		if name, ok := c.usernames.ResolveUsername(ctx, m); ok {
			usernames[m] = name
		}
	}
	return events.SnapshotPayload{
		Code:       r.Code,
		Admin:      r.Admin,
		Status:     r.Status(),
		Members:    r.Members,
		Spectators: r.Spectators,
		Usernames:  usernames,
		Config:     r.Config,
		State:      r.State,
		Draft:      r.Draft,
	}, nil
}

// Destroy closes a room on the admin's request.
func (c *Coordinator) Destroy(ctx context.Context, user, code string) error {
	unlock := c.lock(code)
	defer unlock()

	r, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if r.Admin != user {
		return ErrNotAdmin
	}
	return c.teardown(ctx, r, r.Members)
}

func (c *Coordinator) shuffleRand() (*rand.Rand, func()) {
	c.rngMu.Lock()
	return c.rng, c.rngMu.Unlock
}

type noUsernames struct{}

func (noUsernames) ResolveUsername(context.Context, string) (string, bool) { return "", false }

type noCompletions struct{}

func (noCompletions) RecordCompletion(context.Context, models.Completion) error { return nil }
