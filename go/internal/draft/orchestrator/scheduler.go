package orchestrator

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Arm starts the pick countdown for a room, replacing any countdown already
// running for it. pickCount is the number of picks made so far; the forcer uses
// it to recognise an expiry that a manual pick has overtaken.
func (o *Orchestrator) Arm(roomCode string, pickCount int, d time.Duration) {
	if d <= 0 {
		d = BufferPick
	}

	timer := o.clock.NewTimer(d)
	armed := &armedTimer{timer: timer, stop: make(chan struct{})}

	// Atomically replace any existing timer for this room
	o.replaceTimer(roomCode, armed)

	go func(code string, at *armedTimer) {
		select {
		case <-at.timer.Chan():
			if !o.removeTimer(code, at) {
				// replaced between firing and removal
				return
			}
			exp := Expiry{RoomCode: code, PickCount: pickCount}
			select {
			case o.workCh <- exp:
				log.Debug().Str("room_code", code).Int("pick_count", pickCount).Msg("timer fired - enqueued for processing")
			case <-o.ctx.Done():
			}
		case <-at.stop:
			// Replaced or cancelled
		case <-o.ctx.Done():
			stopAndDrainTimer(at.timer)
			o.removeTimer(code, at)
			log.Debug().Str("room_code", code).Msg("timer cancelled due to shutdown")
		}
	}(roomCode, armed)

	log.Debug().
		Str("room_code", roomCode).
		Int("pick_count", pickCount).
		Dur("duration", d).
		Msg("armed pick timer")
}

// Cancel stops and forgets the countdown for a room.
func (o *Orchestrator) Cancel(roomCode string) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	if at, exists := o.activeTimers[roomCode]; exists {
		stopAndDrainTimer(at.timer)
		close(at.stop)
		delete(o.activeTimers, roomCode)
		log.Debug().Str("room_code", roomCode).Msg("cancelled pick timer")
	}
}

// Armed reports whether a countdown is running for a room.
func (o *Orchestrator) Armed(roomCode string) bool {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	_, ok := o.activeTimers[roomCode]
	return ok
}

// replaceTimer atomically replaces a timer for a room, properly cancelling any existing timer.
// This prevents race conditions where a new timer could slip in between Stop() and delete().
func (o *Orchestrator) replaceTimer(roomCode string, next *armedTimer) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	// Cancel any existing timer first
	if existing, exists := o.activeTimers[roomCode]; exists {
		stopAndDrainTimer(existing.timer)
		close(existing.stop)
		log.Debug().Str("room_code", roomCode).Msg("replaced existing timer")
	}

	o.activeTimers[roomCode] = next
}

// removeTimer forgets at if it is still the room's current timer.
func (o *Orchestrator) removeTimer(roomCode string, at *armedTimer) bool {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	if o.activeTimers[roomCode] != at {
		return false
	}
	delete(o.activeTimers, roomCode)
	return true
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent goroutine leaks.
// This follows the pattern recommended in the time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
