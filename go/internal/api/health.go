package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Pinger is a store that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionChecker reports whether an optional dependency is connected.
type ConnectionChecker interface {
	Connected() bool
}

type HealthStatus struct {
	Healthy        bool     `json:"healthy"`
	StoreConnected bool     `json:"store_connected"`
	NATSConnected  *bool    `json:"nats_connected,omitempty"`
	Errors         []string `json:"errors"`
}

type HealthChecker struct {
	store   Pinger
	nats    ConnectionChecker
	timeout time.Duration
}

// NewHealthChecker builds a checker; nil dependencies are not checked.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{timeout: 5 * time.Second}
}

func (h *HealthChecker) WithStore(p Pinger) *HealthChecker {
	h.store = p
	return h
}

func (h *HealthChecker) WithNATS(c ConnectionChecker) *HealthChecker {
	h.nats = c
	return h
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, StoreConnected: true, Errors: []string{}}

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			status.StoreConnected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("store ping failed: %v", err))
		}
	}

	if h.nats != nil {
		connected := h.nats.Connected()
		status.NATSConnected = &connected
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	return status
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.health.timeout)
	defer cancel()

	status := s.health.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
