package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"
)

const headerTraceID = "X-Trace-Id"

type traceIDKey struct{}

// traceID propagates the caller's X-Trace-Id or assigns a new one.
func traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerTraceID)
		if id == "" {
			id = xid.New().String()
		}

		ctx := context.WithValue(r.Context(), traceIDKey{}, id)
		w.Header().Set(headerTraceID, id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TraceIDFrom returns the request's trace id, or "" outside a request.
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("api: panic in handler",
					"err", rec,
					"stack", string(debug.Stack()),
					"trace_id", TraceIDFrom(r.Context()),
				)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// instrument logs every request and records it by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, code)
		}
		slog.Debug("api: request",
			"method", r.Method,
			"route", route,
			"code", code,
			"duration", time.Since(start),
			"trace_id", TraceIDFrom(r.Context()),
		)
	})
}
