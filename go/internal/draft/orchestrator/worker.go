package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNoForcer is returned by Run when no Forcer was wired.
var ErrNoForcer = errors.New("orchestrator: no forcer configured")

// Run starts the expiry worker pool and blocks until ctx is done. Outstanding
// timers are stopped on the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.forcer == nil {
		return ErrNoForcer
	}

	log.Info().
		Str("instance", o.instanceID).
		Int("workers", o.numWorkers).
		Msg("pick timer orchestrator started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < o.numWorkers; i++ {
		wg.Add(1)
		go o.worker(workerCtx, &wg, i)
	}

	<-ctx.Done()
	log.Info().Str("instance", o.instanceID).Msg("orchestrator shutdown requested")

	o.Stop()
	cancelWorkers()
	wg.Wait()
	log.Info().Str("instance", o.instanceID).Msg("all workers shut down")
	return nil
}

// Stop cancels every outstanding timer. Timers armed afterwards never fire.
func (o *Orchestrator) Stop() {
	o.cancel()

	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	for code, at := range o.activeTimers {
		stopAndDrainTimer(at.timer)
		close(at.stop)
		log.Debug().Str("room_code", code).Msg("cancelled timer on shutdown")
	}
	o.activeTimers = make(map[string]*armedTimer)
}

// worker processes room expiries from the work channel
func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	log.Debug().
		Str("instance", o.instanceID).
		Int("worker_id", workerID).
		Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case exp := <-o.workCh:
			log.Info().
				Str("room_code", exp.RoomCode).
				Int("pick_count", exp.PickCount).
				Int("worker_id", workerID).
				Msg("worker handling timeout")

			if err := o.forcer.ForcePick(ctx, exp.RoomCode, exp.PickCount); err != nil {
				log.Error().
					Err(err).
					Str("room_code", exp.RoomCode).
					Str("instance", o.instanceID).
					Int("worker_id", workerID).
					Msg("worker timeout handling failed")
			}
		}
	}
}
