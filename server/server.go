// Package server exposes the pokedex queries over HTTP.
//
//	GET    /pokemon/{name}             basic species information
//	GET    /pokemon/{name}/translated  the same, description translated
//	DELETE /admin/cache?pattern=...    cache purge, when enabled
//
// Health probes and /metrics are mounted when configured. Failures are
// answered with a JSON body {"detail": "..."}: NotFound maps to 404,
// ServiceUnavailable to 503 and anything else to 500.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/pokedex/cache"
	"github.com/jonwraymond/pokedex/health"
	"github.com/jonwraymond/pokedex/observe"
	"github.com/jonwraymond/pokedex/service"
	"github.com/jonwraymond/pokedex/upstream"
)

// UnavailablePrefix precedes the detail of every 503 response.
const UnavailablePrefix = "External API Error: "

// ErrNilQueries indicates New was called without Queries.
var ErrNilQueries = errors.New("server: queries are nil")

// Queries answers the two lookups.
type Queries interface {
	BasicInfo(ctx context.Context, name string) (service.Info, error)
	TranslatedInfo(ctx context.Context, name string) (service.Info, error)
}

// Purger removes cache entries by glob pattern.
type Purger interface {
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// Config configures the router.
type Config struct {
	// Queries is required.
	Queries Queries

	// Health mounts the probe routes when set.
	Health *health.Aggregator

	// Metrics is served at /metrics when set.
	Metrics http.Handler

	// Purger enables DELETE /admin/cache when set. Patterns are confined to
	// Keyer's namespace.
	Purger Purger
	Keyer  cache.Keyer

	Logger observe.Logger
}

// Server routes pokedex requests.
type Server struct {
	router chi.Router
	q      Queries
	purger Purger
	keyer  cache.Keyer
	logger observe.Logger
}

// New builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.Queries == nil {
		return nil, ErrNilQueries
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	s := &Server{
		router: chi.NewRouter(),
		q:      cfg.Queries,
		purger: cfg.Purger,
		keyer:  cfg.Keyer,
		logger: cfg.Logger,
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/pokemon/{name}", s.handleBasic)
	r.Get("/pokemon/{name}/translated", s.handleTranslated)

	if cfg.Health != nil {
		health.Mount(r, cfg.Health)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.Purger != nil {
		r.Delete("/admin/cache", s.handlePurge)
	}

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleBasic(w http.ResponseWriter, r *http.Request) {
	s.answer(w, r, s.q.BasicInfo)
}

func (s *Server) handleTranslated(w http.ResponseWriter, r *http.Request) {
	s.answer(w, r, s.q.TranslatedInfo)
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request, query func(context.Context, string) (service.Info, error)) {
	// chi matches on RawPath when the request carried escapes Path cannot
	// represent; only then is the parameter still encoded.
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		var err error
		if name, err = url.PathUnescape(name); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid Pokemon name.")
			return
		}
	}

	info, err := query(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type purgeResponse struct {
	Pattern string `json:"pattern"`
	Deleted int    `json:"deleted"`
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = s.keyer.Namespace() + ":*"
	}
	if !strings.HasPrefix(pattern, s.keyer.Namespace()+":") {
		writeDetail(w, http.StatusBadRequest, "Pattern must start with "+s.keyer.Namespace()+":")
		return
	}

	n, err := s.purger.DeletePattern(r.Context(), pattern)
	if err != nil {
		s.logger.Error(r.Context(), "cache purge failed",
			observe.F("pattern", pattern),
			observe.F("error", err),
		)
		writeDetail(w, http.StatusInternalServerError, "Cache purge failed.")
		return
	}

	s.logger.Info(r.Context(), "cache purged",
		observe.F("pattern", pattern),
		observe.F("deleted", n),
	)
	writeJSON(w, http.StatusOK, purgeResponse{Pattern: pattern, Deleted: n})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case upstream.IsNotFound(err):
		writeDetail(w, http.StatusNotFound, err.Error())
	case upstream.IsUnavailable(err):
		writeDetail(w, http.StatusServiceUnavailable, UnavailablePrefix+err.Error())
	default:
		s.logger.Error(r.Context(), "unclassified query failure", observe.F("error", err))
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, detailResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
