package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow normally.
	StateClosed State = iota
	// StateOpen means calls are rejected without reaching the upstream.
	StateOpen
	// StateHalfOpen means a single probe call is allowed through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	// Default: 5
	Threshold int

	// Cooldown is how long the circuit stays open before a probe is allowed.
	// Default: 30 seconds
	Cooldown time.Duration

	// IsFailure decides whether an error counts against the upstream.
	// Default: all non-nil errors.
	IsFailure func(err error) bool

	// OnStateChange is called with the lock held; it must not call back into the breaker.
	OnStateChange func(from, to State)
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	config BreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probeActive bool
	now         func() time.Time
}

// NewBreaker creates a closed circuit breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &Breaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the circuit and clears the failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probeActive = false
	b.setStateLocked(StateClosed)
}

// allow reports whether a call may proceed, reserving the probe slot when half-open.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probeActive {
			return ErrCircuitOpen
		}
		b.probeActive = true
	}
	return nil
}

// record reports the outcome of a call admitted by allow. A cancelled call
// says nothing about the upstream and is released like an unused admission.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		b.releaseLocked()
		return
	}

	failed := b.config.IsFailure(err)

	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.config.Threshold {
			b.openedAt = b.now()
			b.setStateLocked(StateOpen)
		}

	case StateHalfOpen:
		b.probeActive = false
		if failed {
			b.openedAt = b.now()
			b.setStateLocked(StateOpen)
			return
		}
		b.failures = 0
		b.setStateLocked(StateClosed)
	}
}

// release returns an admission whose call never reached the upstream. The
// state and failure count are unchanged; a half-open breaker may probe again.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
}

func (b *Breaker) releaseLocked() {
	if b.state == StateHalfOpen {
		b.probeActive = false
	}
}

func (b *Breaker) currentStateLocked() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		b.probeActive = false
		b.setStateLocked(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) setStateLocked(state State) {
	if b.state == state {
		return
	}
	from := b.state
	b.state = state
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(from, state)
	}
}
