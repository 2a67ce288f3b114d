package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads a value from the source of truth on a cache miss.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// LookupRecorder observes cache lookups, typically to feed hit/miss metrics.
type LookupRecorder interface {
	RecordLookup(ctx context.Context, kind string, hit bool)
}

// ErrorHandler observes cache failures that do not fail the lookup:
// corrupt entries, encode failures and failed writes.
type ErrorHandler func(ctx context.Context, key string, err error)

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// Kind labels lookups for the recorder (e.g. "species").
	Kind string

	// Policy decides the TTL of written entries.
	Policy Policy

	// Recorder observes hits and misses. Optional.
	Recorder LookupRecorder

	// OnError observes non-fatal cache failures. Optional.
	OnError ErrorHandler
}

// Loader is a read-through cache for values of type V, stored as JSON.
//
// Contract:
//   - Concurrency: safe for concurrent use. Concurrent misses for one key
//     share a single fetch, which ignores the cancellation of every caller;
//     each caller still returns on its own ctx.Done().
//   - Errors: fetch errors are returned unchanged and never cached; store
//     failures are reported to OnError and never fail the lookup.
//   - Writes: an entry is written only after fetch succeeds and the value
//     encodes cleanly.
type Loader[V any] struct {
	cache    Cache
	kind     string
	policy   Policy
	recorder LookupRecorder
	onError  ErrorHandler
	group    singleflight.Group
}

// NewLoader creates a Loader over c.
func NewLoader[V any](c Cache, config LoaderConfig) (*Loader[V], error) {
	if c == nil {
		return nil, ErrNilCache
	}
	return &Loader[V]{
		cache:    c,
		kind:     config.Kind,
		policy:   config.Policy,
		recorder: config.Recorder,
		onError:  config.OnError,
	}, nil
}

// Get returns the cached value for key, or calls fetch and caches its result.
func (l *Loader[V]) Get(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	if !l.policy.ShouldCache() || ValidateKey(key) != nil {
		return fetch(ctx)
	}

	if v, ok := l.lookup(ctx, key); ok {
		l.record(ctx, true)
		return v, nil
	}
	l.record(ctx, false)

	// The shared fetch outlives any one caller; fetch bounds it itself.
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		return l.load(shared, key, fetch)
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

// Invalidate removes the entry for key.
func (l *Loader[V]) Invalidate(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, key)
}

func (l *Loader[V]) lookup(ctx context.Context, key string) (V, bool) {
	var v V
	raw, ok := l.cache.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		l.report(ctx, key, fmt.Errorf("cache: decode %q: %w", key, err))
		_ = l.cache.Delete(ctx, key)
		var zero V
		return zero, false
	}
	return v, true
}

func (l *Loader[V]) load(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		l.report(ctx, key, fmt.Errorf("cache: encode %q: %w", key, err))
		return v, nil
	}

	if err := l.cache.Set(ctx, key, raw, l.policy.EffectiveTTL()); err != nil {
		l.report(ctx, key, err)
	}
	return v, nil
}

func (l *Loader[V]) record(ctx context.Context, hit bool) {
	if l.recorder != nil {
		l.recorder.RecordLookup(ctx, l.kind, hit)
	}
}

func (l *Loader[V]) report(ctx context.Context, key string, err error) {
	if l.onError != nil {
		l.onError(ctx, key, err)
	}
}
