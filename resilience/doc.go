// Package resilience guards calls to unreliable upstream services.
//
// A Guard bounds every call with a timeout and can optionally add a
// client-side rate limiter, a concurrency cap and a circuit breaker:
//
//	g := resilience.NewGuard(resilience.GuardConfig{
//	    Name:            "funtranslations",
//	    Timeout:         5 * time.Second,
//	    RatePerSecond:   1,
//	    Burst:           5,
//	    MaxConcurrent:   4,
//	    BreakerFailures: 5,
//	    BreakerCooldown: time.Minute,
//	})
//
//	err := g.Do(ctx, func(ctx context.Context) error {
//	    return callTranslator(ctx)
//	})
//
// A Guard never retries. Each Do issues at most one call to op, so a failed
// lookup is repeated only when the caller asks again.
package resilience
