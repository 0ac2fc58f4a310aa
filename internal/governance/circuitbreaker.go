// Package governance provides the execution-safety primitives consulted by
// the tool runner: per-tool circuit breaking and invocation deadlines.
package governance

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is in the open state.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState represents the state of a circuit breaker.
type BreakerState string

const (
	// StateClosed indicates the circuit is closed and invocations are allowed.
	StateClosed BreakerState = "closed"
	// StateOpen indicates the circuit is open and invocations are rejected.
	StateOpen BreakerState = "open"
	// StateHalfOpen indicates the circuit is probing whether the tool has recovered.
	StateHalfOpen BreakerState = "half-open"
)

// BreakerConfig defines thresholds for circuit breaking.
type BreakerConfig struct {
	// MaxFailures is the consecutive-failure threshold before opening.
	MaxFailures int
	// CoolDown is how long the circuit stays open before transitioning to half-open.
	CoolDown time.Duration
	// HalfOpenProbes is the number of probe invocations allowed in half-open
	// state before forcing a decision (close on success, reopen on failure).
	HalfOpenProbes int
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:    5,
		CoolDown:       30 * time.Second,
		HalfOpenProbes: 1,
	}
}

// Breaker implements a consecutive-failure circuit breaker for one tool.
// Open circuits mark the tool unavailable rather than queueing work behind a
// failing invoker.
type Breaker struct {
	mu                  sync.Mutex
	config              BreakerConfig
	state               BreakerState
	consecutiveFailures int
	halfOpenProbes      int
	openUntil           time.Time
}

// NewBreaker creates a breaker with the provided configuration.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	if config.CoolDown <= 0 {
		config.CoolDown = DefaultBreakerConfig().CoolDown
	}
	if config.HalfOpenProbes <= 0 {
		config.HalfOpenProbes = DefaultBreakerConfig().HalfOpenProbes
	}
	return &Breaker{config: config, state: StateClosed}
}

// Allow reports whether an invocation may proceed. It returns ErrCircuitOpen
// while the circuit is open and inside its cool-down window.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Now().Before(b.openUntil) {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.halfOpenProbes = 0
		return nil
	case StateHalfOpen:
		if b.halfOpenProbes >= b.config.HalfOpenProbes {
			return ErrCircuitOpen
		}
		b.halfOpenProbes++
		return nil
	}
	return nil
}

// Record feeds the outcome of an allowed invocation back into the breaker.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.consecutiveFailures = 0
		b.state = StateClosed
		return
	}

	b.consecutiveFailures++
	if b.state == StateHalfOpen || b.consecutiveFailures >= b.config.MaxFailures {
		b.trip()
	}
}

// trip opens the circuit. Caller must hold the mutex.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openUntil = time.Now().Add(b.config.CoolDown)
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerManager hands out one breaker per tool, created lazily.
type BreakerManager struct {
	mu       sync.Mutex
	config   BreakerConfig
	breakers map[string]*Breaker
}

// NewBreakerManager creates a manager whose breakers share the given config.
func NewBreakerManager(config BreakerConfig) *BreakerManager {
	return &BreakerManager{
		config:   config,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker for the named tool, creating it on first use.
func (m *BreakerManager) For(tool string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[tool]
	if !ok {
		b = NewBreaker(m.config)
		m.breakers[tool] = b
	}
	return b
}
