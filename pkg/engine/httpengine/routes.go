package httpengine

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/rpcwarden/pkg/metrics"
	"github.com/marmos91/rpcwarden/pkg/stats"
)

// maxEchoBody caps the body accepted by POST /echo.
const maxEchoBody = 1 << 20

// StatsRecorder receives one record per served request.
type StatsRecorder interface {
	RecordRequest(method string, d time.Duration, bytesIn, bytesOut int, failed bool)
}

// ServiceRoutes mounts the demo service: GET /ping, POST /echo and
// GET /stats. Requests are recorded into st when it is non-nil.
func ServiceRoutes(st *stats.ServerStats) func(r chi.Router) {
	return func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if st != nil {
				r.Use(recordStats(st))
			}
			r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				_, _ = w.Write([]byte("pong"))
			})
			r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEchoBody))
				if err != nil {
					http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
					return
				}
				w.Header().Set("Content-Type", "application/octet-stream")
				_, _ = w.Write(body)
			})
		})
		r.Get("/stats", statsHandler(st))
	}
}

// MetricsRoutes mounts GET /metrics from the global registry and GET /stats.
func MetricsRoutes(st *stats.ServerStats) func(r chi.Router) {
	return func(r chi.Router) {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
		r.Get("/stats", statsHandler(st))
	}
}

func statsHandler(st *stats.ServerStats) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if st == nil {
			writeJSON(w, http.StatusNotFound, unhealthyResponse("stats not available"))
			return
		}
		writeJSON(w, http.StatusOK, st.Snapshot())
	}
}
