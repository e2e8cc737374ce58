package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	// BufferPick is added to every pick countdown so a client-side timer that
	// reaches zero still has a moment to submit.
	BufferPick = 1 * time.Second

	// StartExtra is added to the first countdown of a draft.
	StartExtra = 10 * time.Second

	defaultWorkers = 4
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Expiry is handed to a Forcer when a room's pick timer runs out.
type Expiry struct {
	RoomCode  string
	PickCount int // picks made when the timer was armed
}

// Forcer commits a fallback pick for a room whose timer expired. It must treat
// an expiry whose PickCount no longer matches the room as stale.
type Forcer interface {
	ForcePick(ctx context.Context, roomCode string, pickCount int) error
}

type armedTimer struct {
	timer clockwork.Timer
	stop  chan struct{}
}

// Orchestrator owns one cancelable pick timer per room and a worker pool that
// turns expiries into forced picks.
type Orchestrator struct {
	forcer     Forcer
	clock      Clock
	instanceID string // unique ID for this orchestrator instance

	// Worker pool configuration
	numWorkers int
	workCh     chan Expiry

	activeTimers   map[string]*armedTimer
	activeTimersMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock swaps the real clock, typically for a clockwork.FakeClock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithWorkers sets the size of the expiry worker pool.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.numWorkers = n
		}
	}
}

// NewOrchestrator creates a timer orchestrator. SetForcer must be called
// before Run when the forcer is built after the orchestrator.
func NewOrchestrator(forcer Forcer, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		forcer:       forcer,
		clock:        clockwork.NewRealClock(),
		instanceID:   uuid.New().String()[:8], // short ID for logging
		numWorkers:   defaultWorkers,
		activeTimers: make(map[string]*armedTimer),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.workCh = make(chan Expiry, o.numWorkers*2) // Buffer to prevent blocking
	return o
}

// SetForcer wires the component that commits forced picks.
func (o *Orchestrator) SetForcer(f Forcer) {
	o.forcer = f
}

// Now exposes the orchestrator's clock.
func (o *Orchestrator) Now() time.Time {
	return o.clock.Now()
}

// PickDuration is the countdown armed for a turn of pickTimeSec seconds.
func PickDuration(pickTimeSec int, buffer, extra time.Duration) time.Duration {
	return time.Duration(pickTimeSec)*time.Second + buffer + extra
}
