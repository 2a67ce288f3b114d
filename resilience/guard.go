package resilience

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a guarded call when GuardConfig.Timeout is unset.
const DefaultTimeout = 5 * time.Second

// GuardConfig configures a Guard. Zero values disable the optional parts.
type GuardConfig struct {
	// Name identifies the guarded upstream in health output.
	Name string

	// Timeout bounds each call.
	// Default: 5 seconds
	Timeout time.Duration

	// RatePerSecond enables a client-side token bucket when > 0.
	RatePerSecond float64

	// Burst is the token bucket size.
	// Default: 1 when RatePerSecond is set
	Burst int

	// MaxConcurrent caps in-flight calls when > 0. Waiting for a slot counts
	// against Timeout.
	MaxConcurrent int

	// BreakerFailures enables a circuit breaker that opens after this many
	// consecutive failures when > 0.
	BreakerFailures int

	// BreakerCooldown is how long the breaker stays open.
	// Default: 30 seconds
	BreakerCooldown time.Duration

	// IsFailure decides which errors count against the breaker.
	// Default: all non-nil errors except caller cancellation.
	IsFailure func(err error) bool

	// OnStateChange observes breaker transitions.
	OnStateChange func(from, to State)
}

// Guard applies the configured protections around a single upstream call.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: Do honors cancellation of ctx and derives a bounded child context for op.
// - Errors: rejections are reported with the package sentinels; op errors pass through.
type Guard struct {
	name    string
	timeout time.Duration
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	breaker *Breaker
}

// NewGuard creates a Guard from config.
func NewGuard(config GuardConfig) *Guard {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	g := &Guard{
		name:    config.Name,
		timeout: config.Timeout,
	}

	if config.RatePerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}

	if config.MaxConcurrent > 0 {
		g.sem = semaphore.NewWeighted(int64(config.MaxConcurrent))
	}

	if config.BreakerFailures > 0 {
		isFailure := config.IsFailure
		if isFailure == nil {
			isFailure = func(err error) bool {
				return err != nil && !errors.Is(err, context.Canceled)
			}
		}
		g.breaker = NewBreaker(BreakerConfig{
			Threshold:     config.BreakerFailures,
			Cooldown:      config.BreakerCooldown,
			IsFailure:     isFailure,
			OnStateChange: config.OnStateChange,
		})
	}

	return g
}

// Name returns the guarded upstream name.
func (g *Guard) Name() string {
	return g.name
}

// Timeout returns the per-call timeout.
func (g *Guard) Timeout() time.Duration {
	return g.timeout
}

// Breaker returns the circuit breaker, or nil when none is configured.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}

// Do runs op at most once.
//
// The order is: rate limiter, breaker admission, concurrency slot, op under
// timeout, breaker outcome. Rejections by the limiter, breaker or slot pool
// never reach op.
func (g *Guard) Do(ctx context.Context, op func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if g.limiter != nil && !g.limiter.Allow() {
		return ErrRateLimitExceeded
	}

	if g.breaker != nil {
		if err := g.breaker.allow(); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.run(ctx, callCtx, op)

	if g.breaker != nil {
		if notAttempted(ctx, err) {
			g.breaker.release()
		} else {
			g.breaker.record(err)
		}
	}
	return err
}

// notAttempted reports outcomes that say nothing about the upstream: the
// slot pool was full, or the caller gave up.
func notAttempted(ctx context.Context, err error) bool {
	return errors.Is(err, ErrConcurrencyLimit) || errors.Is(err, context.Canceled) || ctx.Err() != nil
}

func (g *Guard) run(parent, callCtx context.Context, op func(context.Context) error) error {
	if g.sem != nil {
		if err := g.sem.Acquire(callCtx, 1); err != nil {
			if parent.Err() != nil {
				return parent.Err()
			}
			return ErrConcurrencyLimit
		}
		defer g.sem.Release(1)
	}

	err := op(callCtx)
	if err != nil && parent.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}
