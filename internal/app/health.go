package app

import (
	"sync/atomic"

	"github.com/florianilch/distill/internal/server"
)

// Health tracks whether the application accepts traffic. It is ready only
// between a successful start and the beginning of shutdown.
type Health struct {
	ready atomic.Bool
}

// Compile-time check that Health implements server.ReadinessChecker
var _ server.ReadinessChecker = (*Health)(nil)

// NewHealth creates a Health that is not ready.
func NewHealth() *Health {
	return &Health{}
}

// SetReady updates the readiness state.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the readiness state.
func (h *Health) IsReady() bool {
	return h.ready.Load()
}
