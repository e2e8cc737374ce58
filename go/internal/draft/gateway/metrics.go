package gateway

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines the interface for collecting broadcast metrics
type MetricsCollector interface {
	RecordEventBroadcast(eventType string, channels int, duration time.Duration)
	RecordSendFailure(eventType string)
	RecordQueueDepth(depth int)
	RecordDropped(eventType string)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordEventBroadcast(eventType string, channels int, duration time.Duration) {
}
func (n *NoOpMetricsCollector) RecordSendFailure(eventType string) {}
func (n *NoOpMetricsCollector) RecordQueueDepth(depth int)         {}
func (n *NoOpMetricsCollector) RecordDropped(eventType string)     {}

// CounterMetrics keeps in-process counters, exposed through /ws/stats.
type CounterMetrics struct {
	broadcasts   atomic.Uint64
	deliveries   atomic.Uint64
	failures     atomic.Uint64
	dropped      atomic.Uint64
	maxQueue     atomic.Int64
	lastDuration atomic.Int64

	mu     sync.Mutex
	byType map[string]uint64
}

func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{byType: make(map[string]uint64)}
}

func (m *CounterMetrics) RecordEventBroadcast(eventType string, channels int, duration time.Duration) {
	m.broadcasts.Add(1)
	m.deliveries.Add(uint64(channels))
	m.lastDuration.Store(int64(duration))

	m.mu.Lock()
	m.byType[eventType]++
	m.mu.Unlock()
}

func (m *CounterMetrics) RecordSendFailure(eventType string) {
	m.failures.Add(1)
}

func (m *CounterMetrics) RecordDropped(eventType string) {
	m.dropped.Add(1)
}

func (m *CounterMetrics) RecordQueueDepth(depth int) {
	for {
		cur := m.maxQueue.Load()
		if int64(depth) <= cur || m.maxQueue.CompareAndSwap(cur, int64(depth)) {
			return
		}
	}
}

// MetricsSnapshot is a point-in-time copy of CounterMetrics.
type MetricsSnapshot struct {
	Events        uint64            `json:"events"`
	Deliveries    uint64            `json:"deliveries"`
	SendFailures  uint64            `json:"send_failures"`
	Dropped       uint64            `json:"dropped"`
	MaxQueueDepth int64             `json:"max_queue_depth"`
	LastFanOut    string            `json:"last_fan_out"`
	ByType        map[string]uint64 `json:"by_type"`
}

func (m *CounterMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	byType := make(map[string]uint64, len(m.byType))
	for k, v := range m.byType {
		byType[k] = v
	}
	m.mu.Unlock()

	return MetricsSnapshot{
		Events:        m.broadcasts.Load(),
		Deliveries:    m.deliveries.Load(),
		SendFailures:  m.failures.Load(),
		Dropped:       m.dropped.Load(),
		MaxQueueDepth: m.maxQueue.Load(),
		LastFanOut:    time.Duration(m.lastDuration.Load()).String(),
		ByType:        byType,
	}
}
