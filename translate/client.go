package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/pokedex/cache"
	"github.com/jonwraymond/pokedex/upstream"
)

const (
	// ServiceName labels funtranslations in errors and telemetry.
	ServiceName = "funtranslations"

	// CacheKind is the key segment for translation entries.
	CacheKind = "translation"

	// DefaultTTL is how long a translation stays cached. Translations of a
	// given (text, style) pair never change.
	DefaultTTL = 24 * time.Hour

	// APIKeyHeader carries the funtranslations API secret.
	APIKeyHeader = "X-Funtranslations-Api-Secret"

	apiLabel = "Translation API"
)

var errMissingTranslation = errors.New("translate: response lacks contents.translated")

// Config configures a Client.
type Config struct {
	// Endpoint issues the funtranslations requests. Required. The API key
	// header, when used, is set on the endpoint.
	Endpoint *upstream.Endpoint

	// Cache stores translations. Required.
	Cache cache.Cache

	// Keyer builds cache keys. The zero value uses cache.DefaultNamespace.
	Keyer cache.Keyer

	// TTL of cached translations.
	// Default: 24 hours
	TTL time.Duration

	// Recorder observes cache hits and misses. Optional.
	Recorder cache.LookupRecorder

	// OnCacheError observes non-fatal cache failures. Optional.
	OnCacheError cache.ErrorHandler
}

// Client translates text through funtranslations with a read-through cache.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: upstream failures are *upstream.Error values of kind
//     ServiceUnavailable; a 429 also carries upstream.ErrRateLimited. Only
//     successful translations are cached.
type Client struct {
	endpoint *upstream.Endpoint
	keyer    cache.Keyer
	loader   *cache.Loader[string]
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == nil {
		return nil, fmt.Errorf("translate: %w", upstream.ErrNilEndpoint)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	loader, err := cache.NewLoader[string](cfg.Cache, cache.LoaderConfig{
		Kind:     CacheKind,
		Policy:   cache.TTLPolicy(cfg.TTL),
		Recorder: cfg.Recorder,
		OnError:  cfg.OnCacheError,
	})
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	return &Client{endpoint: cfg.Endpoint, keyer: cfg.Keyer, loader: loader}, nil
}

// Translate returns text rewritten in style.
func (c *Client) Translate(ctx context.Context, text string, style Style) (string, error) {
	if !style.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, string(style))
	}
	return c.loader.Get(ctx, c.CacheKey(text, style), func(ctx context.Context) (string, error) {
		return c.translate(ctx, text, style)
	})
}

// CacheKey returns the cache key for a (text, style) pair.
func (c *Client) CacheKey(text string, style Style) string {
	return c.keyer.Key(CacheKind, string(style), cache.Digest(text))
}

// Close releases the client's idle connections.
func (c *Client) Close() {
	c.endpoint.Close()
}

type translateRequest struct {
	Text string `json:"text"`
}

type translateResponse struct {
	Contents *struct {
		Translated *string `json:"translated"`
	} `json:"contents"`
}

func (c *Client) translate(ctx context.Context, text string, style Style) (string, error) {
	resp, err := c.endpoint.PostJSON(ctx, string(style), "/"+string(style), translateRequest{Text: text})
	if err != nil {
		return "", upstream.CallFailed(ServiceName, apiLabel, err)
	}

	switch {
	case resp.Status == http.StatusTooManyRequests:
		return "", upstream.RateLimited(ServiceName,
			fmt.Sprintf("%s failed with status %d. Rate limit exceeded.", apiLabel, resp.Status), nil)
	case !resp.OK():
		return "", upstream.Unavailable(ServiceName,
			fmt.Sprintf("%s failed with status %d.", apiLabel, resp.Status), nil)
	}

	var body translateResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", malformed(err)
	}
	if body.Contents == nil || body.Contents.Translated == nil {
		return "", malformed(errMissingTranslation)
	}
	return *body.Contents.Translated, nil
}

func malformed(cause error) error {
	return upstream.Unavailable(ServiceName, apiLabel+" returned an unexpected response format.", cause)
}

// Header returns the request headers carrying apiKey, or nil without one.
func Header(apiKey string) http.Header {
	if apiKey == "" {
		return nil
	}
	h := http.Header{}
	h.Set(APIKeyHeader, apiKey)
	return h
}
