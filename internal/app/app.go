// Package app wires the pokedex together from a config.Config and owns the
// lifecycle of everything it builds.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/pokedex/cache"
	"github.com/jonwraymond/pokedex/config"
	"github.com/jonwraymond/pokedex/health"
	"github.com/jonwraymond/pokedex/observe"
	"github.com/jonwraymond/pokedex/resilience"
	"github.com/jonwraymond/pokedex/server"
	"github.com/jonwraymond/pokedex/service"
	"github.com/jonwraymond/pokedex/species"
	"github.com/jonwraymond/pokedex/translate"
	"github.com/jonwraymond/pokedex/upstream"
)

// App is a fully constructed pokedex.
type App struct {
	cfg        config.Config
	observer   observe.Observer
	logger     observe.Logger
	store      cache.Cache
	keyer      cache.Keyer
	species    *species.Client
	translator *translate.Client
	service    *service.Service
	health     *health.Aggregator
	handler    *server.Server

	closers []func(context.Context) error
}

// Option customises construction.
type Option func(*options)

type options struct {
	store      cache.Cache
	httpClient *http.Client
}

// WithCache uses store instead of the configured backend. The caller keeps
// ownership of store.
func WithCache(store cache.Cache) Option {
	return func(o *options) { o.store = store }
}

// WithHTTPClient issues upstream requests through c.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New builds every component described by cfg. On failure, whatever was
// already built is closed.
func New(ctx context.Context, cfg config.Config, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, keyer: cache.NewKeyer(cfg.Cache.Namespace)}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.observer, err = observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return nil, fmt.Errorf("app: observer: %w", err)
	}
	a.closers = append(a.closers, a.observer.Shutdown)
	a.logger = a.observer.Logger()

	a.health = health.NewAggregator()
	if err := a.buildCache(o.store); err != nil {
		return nil, err
	}

	mw, err := observe.MiddlewareFromObserver(a.observer)
	if err != nil {
		return nil, fmt.Errorf("app: middleware: %w", err)
	}
	recorder, err := observe.NewCacheMetrics(a.observer.Meter())
	if err != nil {
		return nil, fmt.Errorf("app: cache metrics: %w", err)
	}

	if err := a.buildSpecies(o.httpClient, mw, recorder); err != nil {
		return nil, err
	}
	if err := a.buildTranslator(o.httpClient, mw, recorder); err != nil {
		return nil, err
	}

	a.service, err = service.New(a.species, a.translator)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	srvCfg := server.Config{
		Queries: a.service,
		Health:  a.health,
		Metrics: a.observer.MetricsHandler(),
		Keyer:   a.keyer,
		Logger:  a.logger,
	}
	if cfg.Server.AdminEnabled {
		srvCfg.Purger = a.store
	}
	a.handler, err = server.New(srvCfg)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a.logger.Info(ctx, "pokedex ready",
		observe.F("cache_backend", cfg.Cache.Backend),
		observe.F("namespace", a.keyer.Namespace()),
		observe.F("admin_enabled", cfg.Server.AdminEnabled),
	)
	return a, nil
}

func (a *App) buildCache(store cache.Cache) error {
	switch {
	case store != nil:
		a.store = store
		a.health.Register("cache", health.StaticCheck("injected"))
	case a.cfg.Cache.Backend == config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Cache.Redis.Addr,
			Password: a.cfg.Cache.Redis.Password,
			DB:       a.cfg.Cache.Redis.DB,
		})
		rc := cache.NewRedisCache(client, cache.WithRedisErrorHandler(
			func(ctx context.Context, op, key string, err error) {
				a.logger.Warn(ctx, "redis operation failed",
					observe.F("op", op),
					observe.F("key", key),
					observe.F("error", err),
				)
			}))
		a.store = rc
		a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
		a.health.Register("cache", health.PingCheck(rc))
	default:
		a.store = cache.NewMemoryCache()
		a.health.Register("cache", health.StaticCheck("in-memory"))
	}
	return nil
}

func (a *App) onCacheError(ctx context.Context, key string, err error) {
	a.logger.Warn(ctx, "cache write failed",
		observe.F("key", key),
		observe.F("error", err),
	)
}

func (a *App) onBreakerChange(name string) func(from, to resilience.State) {
	return func(from, to resilience.State) {
		a.logger.Warn(context.Background(), "circuit breaker state changed",
			observe.F("upstream", name),
			observe.F("from", from.String()),
			observe.F("to", to.String()),
		)
	}
}

func (a *App) buildSpecies(client *http.Client, mw *observe.Middleware, rec cache.LookupRecorder) error {
	sc := a.cfg.Species
	guard := resilience.NewGuard(resilience.GuardConfig{
		Name:            species.ServiceName,
		Timeout:         sc.Timeout,
		BreakerFailures: sc.BreakerFailures,
		BreakerCooldown: sc.BreakerCooldown,
		OnStateChange:   a.onBreakerChange(species.ServiceName),
	})
	ep, err := upstream.NewEndpoint(upstream.EndpointConfig{
		Name:       species.ServiceName,
		BaseURL:    sc.BaseURL,
		Client:     client,
		Guard:      guard,
		Middleware: mw,
	})
	if err != nil {
		return fmt.Errorf("app: species endpoint: %w", err)
	}

	a.species, err = species.NewClient(species.Config{
		Endpoint:     ep,
		Cache:        a.store,
		Keyer:        a.keyer,
		TTL:          sc.CacheTTL,
		Recorder:     rec,
		OnCacheError: a.onCacheError,
	})
	if err != nil {
		ep.Close()
		return fmt.Errorf("app: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { a.species.Close(); return nil })
	a.health.Register(species.ServiceName, health.BreakerCheck(guard))
	return nil
}

func (a *App) buildTranslator(client *http.Client, mw *observe.Middleware, rec cache.LookupRecorder) error {
	tc := a.cfg.Translator
	guard := resilience.NewGuard(resilience.GuardConfig{
		Name:            translate.ServiceName,
		Timeout:         tc.Timeout,
		RatePerSecond:   tc.RatePerSecond,
		Burst:           tc.Burst,
		MaxConcurrent:   tc.MaxConcurrent,
		BreakerFailures: tc.BreakerFailures,
		BreakerCooldown: tc.BreakerCooldown,
		OnStateChange:   a.onBreakerChange(translate.ServiceName),
	})
	ep, err := upstream.NewEndpoint(upstream.EndpointConfig{
		Name:       translate.ServiceName,
		BaseURL:    tc.BaseURL,
		Client:     client,
		Guard:      guard,
		Middleware: mw,
		Header:     translate.Header(tc.APIKey),
	})
	if err != nil {
		return fmt.Errorf("app: translator endpoint: %w", err)
	}

	a.translator, err = translate.NewClient(translate.Config{
		Endpoint:     ep,
		Cache:        a.store,
		Keyer:        a.keyer,
		TTL:          tc.CacheTTL,
		Recorder:     rec,
		OnCacheError: a.onCacheError,
	})
	if err != nil {
		ep.Close()
		return fmt.Errorf("app: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { a.translator.Close(); return nil })
	a.health.Register(translate.ServiceName, health.BreakerCheck(guard))
	return nil
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Service returns the query orchestrator.
func (a *App) Service() *service.Service { return a.service }

// Health returns the health aggregator.
func (a *App) Health() *health.Aggregator { return a.health }

// Cache returns the cache store.
func (a *App) Cache() cache.Cache { return a.store }

// Keyer returns the cache key builder.
func (a *App) Keyer() cache.Keyer { return a.keyer }

// Logger returns the application logger.
func (a *App) Logger() observe.Logger { return a.logger }

// HTTPServer returns an http.Server for the configured listener.
func (a *App) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         a.cfg.Server.ListenAddr,
		Handler:      a.handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully within
// server.shutdown_timeout.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := a.HTTPServer()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info(ctx, "listening", observe.F("addr", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.Info(shutdownCtx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases everything New built, in reverse order of construction.
// It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
