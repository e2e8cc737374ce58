package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/catalog"
	"github.com/mcdev12/draftroom/go/internal/draft/engine"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingForcer struct {
	calls chan Expiry
}

func (f *recordingForcer) ForcePick(_ context.Context, roomCode string, pickCount int) error {
	f.calls <- Expiry{RoomCode: roomCode, PickCount: pickCount}
	return nil
}

func setup(t *testing.T) (*Orchestrator, *clockwork.FakeClock, *recordingForcer) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	forcer := &recordingForcer{calls: make(chan Expiry, 8)}
	o := NewOrchestrator(forcer, WithClock(clock), WithWorkers(2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return o, clock, forcer
}

func waitTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func expectExpiry(t *testing.T, f *recordingForcer) Expiry {
	t.Helper()
	select {
	case exp := <-f.calls:
		return exp
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
		return Expiry{}
	}
}

func expectNoExpiry(t *testing.T, f *recordingForcer) {
	t.Helper()
	select {
	case exp := <-f.calls:
		t.Fatalf("unexpected expiry %+v", exp)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestArmFires(t *testing.T) {
	o, clock, forcer := setup(t)

	o.Arm("ROOM1", 3, 5*time.Second)
	assert.True(t, o.Armed("ROOM1"))
	waitTimers(t, clock, 1)

	clock.Advance(4 * time.Second)
	expectNoExpiry(t, forcer)

	clock.Advance(time.Second)
	assert.Equal(t, Expiry{RoomCode: "ROOM1", PickCount: 3}, expectExpiry(t, forcer))
	assert.Eventually(t, func() bool { return !o.Armed("ROOM1") }, time.Second, 5*time.Millisecond)
}

func TestArmReplacesExistingTimer(t *testing.T) {
	o, clock, forcer := setup(t)

	o.Arm("ROOM1", 0, 5*time.Second)
	o.Arm("ROOM1", 1, 10*time.Second)
	waitTimers(t, clock, 1)

	clock.Advance(5 * time.Second)
	expectNoExpiry(t, forcer)

	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, expectExpiry(t, forcer).PickCount)
	expectNoExpiry(t, forcer)
}

func TestCancel(t *testing.T) {
	o, clock, forcer := setup(t)

	o.Arm("ROOM1", 0, 5*time.Second)
	o.Arm("ROOM2", 0, 5*time.Second)
	waitTimers(t, clock, 2)

	o.Cancel("ROOM1")
	o.Cancel("UNKNOWN")
	assert.False(t, o.Armed("ROOM1"))

	clock.Advance(5 * time.Second)
	assert.Equal(t, "ROOM2", expectExpiry(t, forcer).RoomCode)
	expectNoExpiry(t, forcer)
}

func TestRunWithoutForcer(t *testing.T) {
	o := NewOrchestrator(nil)
	require.ErrorIs(t, o.Run(context.Background()), ErrNoForcer)
}

func TestPickDuration(t *testing.T) {
	assert.Equal(t, 31*time.Second, PickDuration(30, BufferPick, 0))
	assert.Equal(t, 41*time.Second, PickDuration(30, BufferPick, StartExtra))
}

func TestStrategies(t *testing.T) {
	cat, err := catalog.New(
		[]catalog.Pool{{Key: "A", Quota: 1, Items: []string{"A1", "A2"}}},
		[]catalog.Item{{Key: "A1", Pool: "A"}, {Key: "A2", Pool: "A"}},
		nil,
	)
	require.NoError(t, err)

	d := &models.Draft{
		Players:  []string{"p1"},
		Position: []string{"p1"},
		Picks:    []models.DraftPick{},
		Picked:   []string{"A1"},
		Quotas:   map[string]int{"A": 1},
		MaxPicks: 1,
	}

	key, err := FirstEligibleStrategy{}.SelectKey(cat, d)
	require.NoError(t, err)
	assert.Equal(t, "A2", key)

	key, err = NewRandomStrategy(1).SelectKey(cat, d)
	require.NoError(t, err)
	assert.Equal(t, "A2", key)

	d.Complete = true
	_, err = FirstEligibleStrategy{}.SelectKey(cat, d)
	require.ErrorIs(t, err, engine.ErrDraftComplete)
}
