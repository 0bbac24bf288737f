package httpengine

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/rpcwarden/internal/logger"
)

// requestLogger logs each request once it completes. Health probes are
// logged at DEBUG.
func requestLogger(engine string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			args := []any{
				logger.KeyEngine, engine,
				"request_id", middleware.GetReqID(r.Context()),
				logger.KeyMethod, r.Method,
				"path", r.URL.Path,
				logger.KeyStatus, ww.Status(),
				logger.KeyBytes, ww.BytesWritten(),
				logger.KeyDurationMs, float64(time.Since(start).Microseconds()) / 1000.0,
			}
			if r.URL.Path == "/healthz" {
				logger.Debug("HTTP request completed", args...)
				return
			}
			logger.Info("HTTP request completed", args...)
		})
	}
}

// recordStats feeds per-route request counts into rec.
func recordStats(rec StatsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			in := int(r.ContentLength)
			if in < 0 {
				in = 0
			}
			rec.RecordRequest(r.Method+" "+r.URL.Path, time.Since(start), in, ww.BytesWritten(), ww.Status() >= 500)
		})
	}
}
