package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"taskboard/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type ctxKey int

const identityKey ctxKey = iota

// identityFrom returns the caller identity stored by requireIdentity.
func identityFrom(ctx context.Context) string {
	v, _ := ctx.Value(identityKey).(string)
	return v
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.IncHTTP(route)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := s.logger.Info()
		if status >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// requireIdentity reads the caller identity set by the upstream authenticator, makes sure
// an account exists for it and applies the per-identity rate limit.
func (s *HTTPServer) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := strings.TrimSpace(r.Header.Get(s.cfg.IdentityHeader))
		if identity == "" {
			writeError(w, http.StatusUnauthorized, "missing identity")
			return
		}

		if !s.limiter.allow(identity) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if err := s.accounts.EnsureAccount(r.Context(), identity); err != nil {
			s.logger.Error().Err(err).Str("identity", identity).Msg("failed to ensure account")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(base *zerolog.Logger, r *http.Request) *zerolog.Logger {
	l := base.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
	return &l
}
