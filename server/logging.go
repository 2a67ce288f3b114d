package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/pokedex/observe"
)

// logRequests logs one line per request once the handler returns. Server
// errors log at warn.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			fields := []observe.Field{
				observe.F("method", r.Method),
				observe.F("route", route),
				observe.F("path", r.URL.Path),
				observe.F("status", ww.Status()),
				observe.F("bytes", ww.BytesWritten()),
				observe.F("duration_ms", float64(time.Since(start).Microseconds())/1000),
				observe.F("request_id", middleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				s.logger.Warn(r.Context(), "request completed", fields...)
				return
			}
			s.logger.Info(r.Context(), "request completed", fields...)
		}()

		next.ServeHTTP(ww, r)
	})
}
