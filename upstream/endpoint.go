package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jonwraymond/pokedex/observe"
	"github.com/jonwraymond/pokedex/resilience"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 1 << 20

var (
	// ErrNilGuard indicates EndpointConfig.Guard is nil.
	ErrNilGuard = errors.New("upstream: guard is nil")

	// ErrNilEndpoint indicates a client was built without an Endpoint.
	ErrNilEndpoint = errors.New("upstream: endpoint is nil")
)

// EndpointConfig configures an Endpoint.
type EndpointConfig struct {
	// Name labels the upstream in telemetry (e.g. "pokeapi").
	Name string

	// BaseURL is prefixed to every request path.
	BaseURL string

	// Client performs requests.
	// Default: a new http.Client without its own timeout; the guard bounds calls.
	Client *http.Client

	// Guard bounds and protects each call. Required.
	Guard *resilience.Guard

	// Middleware instruments each call.
	// Default: no-op
	Middleware *observe.Middleware

	// Header is added to every request.
	Header http.Header

	// MaxBodyBytes caps the response body read.
	// Default: 1 MiB
	MaxBodyBytes int64
}

// Response is a fully read upstream response.
type Response struct {
	Status int
	Body   []byte
}

// OK reports whether Status is 2xx.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Endpoint issues HTTP requests to one upstream. Each request runs once
// through the guard and the middleware; the body is read before the guarded
// call returns.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: a non-nil error means no HTTP response was obtained (transport
//     failure, timeout or guard rejection). Any response, whatever its
//     status, is returned with a nil error.
type Endpoint struct {
	name    string
	baseURL string
	client  *http.Client
	guard   *resilience.Guard
	mw      *observe.Middleware
	header  http.Header
	maxBody int64
}

// NewEndpoint creates an Endpoint.
func NewEndpoint(cfg EndpointConfig) (*Endpoint, error) {
	if cfg.Guard == nil {
		return nil, ErrNilGuard
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Middleware == nil {
		cfg.Middleware = observe.NopMiddleware()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Endpoint{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		guard:   cfg.Guard,
		mw:      cfg.Middleware,
		header:  cfg.Header.Clone(),
		maxBody: cfg.MaxBodyBytes,
	}, nil
}

// Name returns the upstream name.
func (e *Endpoint) Name() string {
	return e.name
}

// Guard returns the endpoint's guard.
func (e *Endpoint) Guard() *resilience.Guard {
	return e.guard
}

// Get issues a GET for path.
func (e *Endpoint) Get(ctx context.Context, op, path string) (Response, error) {
	return e.Do(ctx, op, http.MethodGet, path, nil)
}

// PostJSON issues a POST for path with payload encoded as JSON.
func (e *Endpoint) PostJSON(ctx context.Context, op, path string, payload any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("upstream: encode request: %w", err)
	}
	return e.Do(ctx, op, http.MethodPost, path, body)
}

// Do issues one request. op names the operation for telemetry.
func (e *Endpoint) Do(ctx context.Context, op, method, path string, body []byte) (Response, error) {
	var resp Response
	call := func(callCtx context.Context) error {
		var err error
		resp, err = e.roundTrip(callCtx, method, path, body)
		if err != nil {
			return err
		}
		if resp.Status >= 500 || resp.Status == http.StatusTooManyRequests {
			return statusError(resp.Status)
		}
		return nil
	}

	err := e.mw.Wrap(observe.CallMeta{Upstream: e.name, Operation: op}, func(ctx context.Context) error {
		return e.guard.Do(ctx, call)
	})(ctx)

	var se statusError
	if errors.As(err, &se) {
		return resp, nil
	}
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Close releases idle connections.
func (e *Endpoint) Close() {
	e.client.CloseIdleConnections()
}

func (e *Endpoint) roundTrip(ctx context.Context, method, path string, body []byte) (Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
	if err != nil {
		return Response{}, err
	}
	for k, vs := range e.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := e.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, e.maxBody))
	if err != nil {
		return Response{}, err
	}
	return Response{Status: httpResp.StatusCode, Body: data}, nil
}

// statusError marks a response status that counts as a failed call for the
// breaker and telemetry. Do converts it back into a Response.
type statusError int

func (s statusError) Error() string {
	return fmt.Sprintf("upstream: status %d", int(s))
}
