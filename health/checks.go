package health

import (
	"context"

	"github.com/jonwraymond/pokedex/resilience"
)

// Pinger is a component that can be probed, such as cache.RedisCache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports unhealthy when p cannot be reached.
func PingCheck(p Pinger) Checker {
	return CheckerFunc(func(ctx context.Context) Result {
		if err := p.Ping(ctx); err != nil {
			return Unhealthy("ping failed", err)
		}
		return Healthy("reachable")
	})
}

// StaticCheck always reports message as healthy, for in-process components.
func StaticCheck(message string) Checker {
	return CheckerFunc(func(context.Context) Result {
		return Healthy(message)
	})
}

// BreakerCheck reports the circuit breaker state of g. An open or probing
// breaker degrades the service; a guard without a breaker is always healthy.
func BreakerCheck(g *resilience.Guard) Checker {
	return CheckerFunc(func(context.Context) Result {
		b := g.Breaker()
		if b == nil {
			return Healthy("no circuit breaker").WithDetails(map[string]any{
				"timeout": g.Timeout().String(),
			})
		}

		details := map[string]any{
			"state":    b.State().String(),
			"failures": b.Failures(),
			"timeout":  g.Timeout().String(),
		}
		switch b.State() {
		case resilience.StateOpen:
			return Degraded(g.Name() + " circuit open").WithDetails(details)
		case resilience.StateHalfOpen:
			return Degraded(g.Name() + " circuit probing").WithDetails(details)
		default:
			return Healthy(g.Name() + " circuit closed").WithDetails(details)
		}
	})
}
