package resilience

import "errors"

// Sentinel errors for guarded calls.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when the client-side rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrConcurrencyLimit is returned when no call slot frees up before the deadline.
	ErrConcurrencyLimit = errors.New("resilience: concurrency limit reached")

	// ErrTimeout is returned when a call exceeds the guard timeout.
	ErrTimeout = errors.New("resilience: operation timed out")
)
