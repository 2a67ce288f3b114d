package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jonwraymond/pokedex/resilience"
)

func TestError_Classification(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name        string
		err         error
		notFound    bool
		unavailable bool
		rateLimited bool
		message     string
	}{
		{
			name:     "not found",
			err:      NotFound("pokeapi", "Pokemon 'missingno' not found."),
			notFound: true,
			message:  "Pokemon 'missingno' not found.",
		},
		{
			name:        "unavailable",
			err:         Unavailable("pokeapi", "PokeAPI network error: dial tcp: connection refused", cause),
			unavailable: true,
			message:     "PokeAPI network error: dial tcp: connection refused",
		},
		{
			name:        "rate limited",
			err:         RateLimited("funtranslations", "Translation API failed with status 429. Rate limit exceeded.", nil),
			unavailable: true,
			rateLimited: true,
			message:     "Translation API failed with status 429. Rate limit exceeded.",
		},
		{
			name:        "wrapped",
			err:         fmt.Errorf("service: %w", Unavailable("pokeapi", "PokeAPI failed with status 500", nil)),
			unavailable: true,
			message:     "service: PokeAPI failed with status 500",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNotFound(tc.err); got != tc.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tc.notFound)
			}
			if got := IsUnavailable(tc.err); got != tc.unavailable {
				t.Errorf("IsUnavailable = %v, want %v", got, tc.unavailable)
			}
			if got := IsRateLimited(tc.err); got != tc.rateLimited {
				t.Errorf("IsRateLimited = %v, want %v", got, tc.rateLimited)
			}
			if tc.err.Error() != tc.message {
				t.Errorf("Error() = %q, want %q", tc.err.Error(), tc.message)
			}
		})
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	err := Unavailable("pokeapi", "PokeAPI network error: context canceled", context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Error("errors.Is should reach the cause")
	}

	var ue *Error
	if !errors.As(fmt.Errorf("wrapped: %w", err), &ue) {
		t.Fatal("errors.As should find *Error")
	}
	if ue.Service != "pokeapi" || ue.Kind != KindUnavailable {
		t.Errorf("unexpected error fields: %+v", ue)
	}
}

func TestError_MessageFallback(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindUnavailable, Service: "pokeapi", Err: errors.New("eof")}, "pokeapi: eof"},
		{&Error{Kind: KindNotFound, Service: "pokeapi"}, "pokeapi: not_found"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}

func TestKind_String(t *testing.T) {
	if KindNotFound.String() != "not_found" || KindUnavailable.String() != "service_unavailable" {
		t.Error("unexpected kind strings")
	}
	if Kind(42).String() != "unknown" {
		t.Error("unknown kind should stringify as unknown")
	}
}

func TestCallFailed(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		rateLimited bool
		wantPrefix  string
	}{
		{"rate limiter", resilience.ErrRateLimitExceeded, true, "Translation API request rejected locally. Rate limit exceeded."},
		{"circuit open", resilience.ErrCircuitOpen, false, "Translation API is temporarily unavailable"},
		{"concurrency", resilience.ErrConcurrencyLimit, false, "Translation API is busy"},
		{"timeout", errors.Join(resilience.ErrTimeout, context.DeadlineExceeded), false, "Translation API network error: request timed out"},
		{"network", errors.New("connection refused"), false, "Translation API network error: connection refused"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CallFailed("funtranslations", "Translation API", tc.err)
			if !IsUnavailable(err) {
				t.Errorf("error should be ServiceUnavailable")
			}
			if IsRateLimited(err) != tc.rateLimited {
				t.Errorf("IsRateLimited = %v, want %v", IsRateLimited(err), tc.rateLimited)
			}
			if !errors.Is(err, tc.err) {
				t.Errorf("cause should be preserved")
			}
			if !strings.HasPrefix(err.Error(), tc.wantPrefix) {
				t.Errorf("message = %q, want prefix %q", err.Error(), tc.wantPrefix)
			}
		})
	}
}

func TestCallFailed_TimeoutDetailIsOneLine(t *testing.T) {
	cause := errors.Join(resilience.ErrTimeout, context.DeadlineExceeded)
	err := CallFailed("pokeapi", "PokeAPI", cause)

	if got, want := err.Error(), "PokeAPI network error: request timed out"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
	if !errors.Is(err, resilience.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout cause should be preserved")
	}
}
