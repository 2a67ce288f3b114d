package upstream

import (
	"errors"

	"github.com/jonwraymond/pokedex/resilience"
)

// CallFailed classifies an error returned by Endpoint, which means no
// response was obtained. label names the upstream in the message
// (e.g. "PokeAPI").
//
// Guard rejections keep their own wording; the local rate limiter maps to a
// rate-limited error. Everything else is reported as a network error.
func CallFailed(service, label string, err error) *Error {
	switch {
	case errors.Is(err, resilience.ErrRateLimitExceeded):
		return RateLimited(service, label+" request rejected locally. Rate limit exceeded.", err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return Unavailable(service, label+" is temporarily unavailable after repeated failures.", err)
	case errors.Is(err, resilience.ErrConcurrencyLimit):
		return Unavailable(service, label+" is busy: too many requests in flight.", err)
	case errors.Is(err, resilience.ErrTimeout):
		return Unavailable(service, label+" network error: request timed out", err)
	default:
		return Unavailable(service, label+" network error: "+err.Error(), err)
	}
}
