// Package health reports whether the pokedex can serve lookups.
//
// A Checker reports one component: the cache store, or the circuit breaker
// in front of an upstream. An Aggregator runs the registered checkers
// concurrently under a shared deadline, and Mount exposes the results on a
// chi router:
//
//	agg := health.NewAggregator()
//	agg.Register("cache", health.PingCheck(redisCache))
//	agg.Register("pokeapi", health.BreakerCheck(speciesGuard))
//	health.Mount(router, agg)
//
// /healthz is the liveness probe and /readyz the readiness probe; /health
// reports every check in detail.
// An open breaker degrades the service without failing readiness, because
// cached lookups still succeed.
package health
