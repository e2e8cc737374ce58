package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	ErrChannelFull   = errors.New("channel send buffer full")
	ErrChannelClosed = errors.New("channel closed")
)

// Channel is one live real-time connection.
type Channel interface {
	ID() string
	// Room is the room the channel subscribed to.
	Room() string
	// Send queues data without blocking.
	Send(data []byte) error
}

// Registry resolves a participant to their live channels.
type Registry interface {
	ChannelsFor(participant string) []Channel
}

// EventSink receives every broadcast event. Each sink is fed from its own
// queue and goroutine, so a slow sink never delays channel delivery.
type EventSink interface {
	Publish(ctx context.Context, ev events.Event, data []byte) error
}

// Envelope is one Broadcast call: a batch of events for one room.
type Envelope struct {
	RoomCode string
	Members  []string
	Events   []events.Event
}

// BroadcasterConfig holds the broadcaster settings.
type BroadcasterConfig struct {
	QueueSize     int
	SinkQueueSize int
}

// DefaultBroadcasterConfig returns the default broadcaster settings.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{QueueSize: 1024, SinkQueueSize: 1024}
}

// Broadcaster delivers room events to member channels in emission order.
// Every envelope goes through one queue and one delivery loop, so events
// reach a channel in the order Broadcast was called. Broadcast never blocks:
// when the queue is full the envelope is dropped and clients resync from a
// snapshot.
type Broadcaster struct {
	registry Registry
	sinks    []*sinkWorker
	metrics  MetricsCollector
	cfg      BroadcasterConfig

	queue chan Envelope
	done  chan struct{}
}

type sinkItem struct {
	ev   events.Event
	data []byte
}

// sinkWorker feeds one EventSink from a bounded queue.
type sinkWorker struct {
	sink  EventSink
	queue chan sinkItem
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithSink adds an EventSink.
func WithSink(s EventSink) BroadcasterOption {
	return func(b *Broadcaster) {
		if s != nil {
			b.sinks = append(b.sinks, &sinkWorker{
				sink:  s,
				queue: make(chan sinkItem, b.cfg.SinkQueueSize),
			})
		}
	}
}

// WithMetrics swaps the no-op metrics collector.
func WithMetrics(m MetricsCollector) BroadcasterOption {
	return func(b *Broadcaster) { b.metrics = m }
}

// NewBroadcaster creates a broadcaster resolving channels through registry.
func NewBroadcaster(registry Registry, cfg BroadcasterConfig, opts ...BroadcasterOption) *Broadcaster {
	defaults := DefaultBroadcasterConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.SinkQueueSize <= 0 {
		cfg.SinkQueueSize = defaults.SinkQueueSize
	}
	b := &Broadcaster{
		registry: registry,
		metrics:  &NoOpMetricsCollector{},
		cfg:      cfg,
		queue:    make(chan Envelope, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Broadcast queues events for delivery to members' channels. It never blocks,
// since callers hold a room lock: a full queue or a stopped broadcaster drops
// the events with a warning.
func (b *Broadcaster) Broadcast(roomCode string, members []string, evs ...events.Event) {
	if len(evs) == 0 {
		return
	}
	select {
	case <-b.done:
		log.Warn().
			Str("room_code", roomCode).
			Int("events", len(evs)).
			Msg("broadcaster stopped, dropping events")
		return
	default:
	}

	env := Envelope{
		RoomCode: roomCode,
		Members:  append([]string(nil), members...),
		Events:   evs,
	}
	select {
	case b.queue <- env:
		b.metrics.RecordQueueDepth(len(b.queue))
	default:
		for _, ev := range evs {
			b.metrics.RecordDropped(string(ev.Type))
		}
		log.Warn().
			Str("room_code", roomCode).
			Int("events", len(evs)).
			Int("queue_size", cap(b.queue)).
			Msg("broadcast queue full, dropping events")
	}
}

// Start runs the delivery loop and one goroutine per sink until ctx is
// cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	log.Info().Int("sinks", len(b.sinks)).Msg("broadcaster started")

	var wg sync.WaitGroup
	for _, w := range b.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}
	defer func() {
		close(b.done)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("broadcaster shutting down")
			return
		case env := <-b.queue:
			b.deliver(env)
		}
	}
}

// deliver fans every event of env out to the room's channels, then hands it
// to the sink queues.
func (b *Broadcaster) deliver(env Envelope) {
	members := lo.Uniq(env.Members)

	for _, ev := range env.Events {
		start := time.Now()

		// Marshal the event once
		data, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).
				Str("room_code", env.RoomCode).
				Str("event_type", string(ev.Type)).
				Msg("failed to marshal event for broadcast")
			continue
		}

		sent := 0
		for _, member := range members {
			channels := b.registry.ChannelsFor(member)
			if len(channels) == 0 {
				log.Debug().
					Str("room_code", env.RoomCode).
					Str("user_id", member).
					Msg("member has no live channel, skipping")
				continue
			}
			for _, ch := range channels {
				if ch.Room() != env.RoomCode {
					continue
				}
				if err := ch.Send(data); err != nil {
					log.Warn().Err(err).
						Str("connection_id", ch.ID()).
						Str("user_id", member).
						Str("event_type", string(ev.Type)).
						Msg("failed to deliver event")
					b.metrics.RecordSendFailure(string(ev.Type))
					continue
				}
				sent++
			}
		}

		for _, w := range b.sinks {
			if !w.offer(sinkItem{ev: ev, data: data}) {
				b.metrics.RecordDropped(string(ev.Type))
				log.Warn().
					Str("room_code", env.RoomCode).
					Str("event_id", ev.ID).
					Msg("sink queue full, dropping event")
			}
		}

		b.metrics.RecordEventBroadcast(string(ev.Type), sent, time.Since(start))
		log.Debug().
			Str("event_type", string(ev.Type)).
			Str("room_code", env.RoomCode).
			Int("channels", sent).
			Msg("event broadcasted")
	}
}

func (w *sinkWorker) offer(item sinkItem) bool {
	select {
	case w.queue <- item:
		return true
	default:
		return false
	}
}

func (w *sinkWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-w.queue:
			if err := w.sink.Publish(ctx, item.ev, item.data); err != nil {
				log.Error().Err(err).
					Str("room_code", item.ev.RoomCode).
					Str("event_id", item.ev.ID).
					Msg("failed to publish event to sink")
			}
		}
	}
}
