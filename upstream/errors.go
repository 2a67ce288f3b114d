package upstream

import (
	"errors"
)

// Sentinel errors for upstream classification.
var (
	// ErrNotFound indicates the requested entity does not exist upstream.
	ErrNotFound = errors.New("upstream: not found")

	// ErrServiceUnavailable indicates the upstream is degraded, unreachable,
	// rate limited or returned a payload that could not be parsed.
	ErrServiceUnavailable = errors.New("upstream: service unavailable")

	// ErrRateLimited marks a ServiceUnavailable caused by rate limiting.
	ErrRateLimited = errors.New("upstream: rate limit exceeded")
)

// Kind classifies an upstream failure.
type Kind int

const (
	// KindNotFound is terminal: not retried, not cached.
	KindNotFound Kind = iota
	// KindUnavailable is transient: never cached, safe to retry.
	KindUnavailable
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "service_unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified upstream failure.
//
// Error() returns Detail, which is the caller-visible message. Is/As see the
// kind sentinel, ErrRateLimited when RateLimited is set, and the cause.
type Error struct {
	Kind        Kind
	Service     string
	Detail      string
	RateLimited bool
	Err         error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Service + ": " + e.Err.Error()
	}
	return e.Service + ": " + e.Kind.String()
}

// Unwrap exposes the classification sentinels and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 3)
	switch e.Kind {
	case KindNotFound:
		errs = append(errs, ErrNotFound)
	case KindUnavailable:
		errs = append(errs, ErrServiceUnavailable)
	}
	if e.RateLimited {
		errs = append(errs, ErrRateLimited)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NotFound returns a terminal not-found error.
func NotFound(service, detail string) *Error {
	return &Error{Kind: KindNotFound, Service: service, Detail: detail}
}

// Unavailable returns a transient service-unavailable error wrapping cause.
func Unavailable(service, detail string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Service: service, Detail: detail, Err: cause}
}

// RateLimited returns a service-unavailable error carrying the rate-limit marker.
func RateLimited(service, detail string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Service: service, Detail: detail, RateLimited: true, Err: cause}
}

// IsNotFound reports whether err is classified as not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports whether err is classified as service unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// IsRateLimited reports whether err carries the rate-limit marker.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
