package species

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jonwraymond/pokedex/cache"
	"github.com/jonwraymond/pokedex/upstream"
)

const (
	// ServiceName labels PokeAPI in errors and telemetry.
	ServiceName = "pokeapi"

	// CacheKind is the key segment for species entries.
	CacheKind = "species"

	// DefaultTTL is how long a fetched species stays cached.
	DefaultTTL = time.Hour

	apiLabel = "PokeAPI"
)

// Config configures a Client.
type Config struct {
	// Endpoint issues the PokeAPI requests. Required.
	Endpoint *upstream.Endpoint

	// Cache stores fetched species. Required.
	Cache cache.Cache

	// Keyer builds cache keys. The zero value uses cache.DefaultNamespace.
	Keyer cache.Keyer

	// TTL of cached species.
	// Default: 1 hour
	TTL time.Duration

	// Recorder observes cache hits and misses. Optional.
	Recorder cache.LookupRecorder

	// OnCacheError observes non-fatal cache failures. Optional.
	OnCacheError cache.ErrorHandler
}

// Client fetches species from PokeAPI through a read-through cache.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: every failure is an *upstream.Error; only successful, fully
//     parsed responses are cached.
type Client struct {
	endpoint *upstream.Endpoint
	keyer    cache.Keyer
	loader   *cache.Loader[Species]
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == nil {
		return nil, fmt.Errorf("species: %w", upstream.ErrNilEndpoint)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	loader, err := cache.NewLoader[Species](cfg.Cache, cache.LoaderConfig{
		Kind:     CacheKind,
		Policy:   cache.TTLPolicy(cfg.TTL),
		Recorder: cfg.Recorder,
		OnError:  cfg.OnCacheError,
	})
	if err != nil {
		return nil, fmt.Errorf("species: %w", err)
	}

	return &Client{endpoint: cfg.Endpoint, keyer: cfg.Keyer, loader: loader}, nil
}

// Fetch returns the species called name. Lookups are case-insensitive.
func (c *Client) Fetch(ctx context.Context, name string) (Species, error) {
	key := Normalize(name)
	if key == "" {
		return Species{}, upstream.NotFound(ServiceName, fmt.Sprintf("Pokemon '%s' not found.", name))
	}

	return c.loader.Get(ctx, c.CacheKey(key), func(ctx context.Context) (Species, error) {
		return c.fetch(ctx, key)
	})
}

// CacheKey returns the cache key for a normalized name.
func (c *Client) CacheKey(normalized string) string {
	return c.keyer.Key(CacheKind, normalized)
}

// Close releases the client's idle connections.
func (c *Client) Close() {
	c.endpoint.Close()
}

func (c *Client) fetch(ctx context.Context, name string) (Species, error) {
	resp, err := c.endpoint.Get(ctx, CacheKind, "/pokemon-species/"+url.PathEscape(name))
	if err != nil {
		return Species{}, upstream.CallFailed(ServiceName, apiLabel, err)
	}

	switch {
	case resp.Status == http.StatusNotFound:
		return Species{}, upstream.NotFound(ServiceName, fmt.Sprintf("Pokemon '%s' not found.", name))
	case !resp.OK():
		return Species{}, upstream.Unavailable(ServiceName, fmt.Sprintf("PokeAPI failed with status %d", resp.Status), nil)
	}

	s, err := parse(resp.Body, name)
	if err != nil {
		return Species{}, upstream.Unavailable(ServiceName, "PokeAPI returned an unexpected response format.", err)
	}
	return s, nil
}
