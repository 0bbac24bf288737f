package prometheus

import (
	"sync"
	"time"

	"github.com/marmos91/rpcwarden/pkg/lifecycle"
	"github.com/marmos91/rpcwarden/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterLifecycleMetricsConstructor(NewLifecycleMetrics)
	metrics.RegisterConnectionMetricsConstructor(NewConnectionMetrics)
}

// lifecycleMetrics is the Prometheus implementation of metrics.LifecycleMetrics.
type lifecycleMetrics struct {
	startups         *prometheus.CounterVec
	startupDuration  *prometheus.HistogramVec
	shutdowns        *prometheus.CounterVec
	shutdownDuration *prometheus.HistogramVec
	state            *prometheus.GaugeVec
}

// lifecycleBuckets span one check interval up to the default 30s timeout.
var lifecycleBuckets = []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 20, 30, 60}

var (
	lifecycleMu    sync.Mutex
	lifecycleByReg = map[*prometheus.Registry]*lifecycleMetrics{}
)

// NewLifecycleMetrics returns the lifecycle collectors bound to the active
// registry, creating them on first use. Returns nil if metrics are disabled.
func NewLifecycleMetrics() metrics.LifecycleMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	if m, ok := lifecycleByReg[reg]; ok {
		return m
	}

	f := promauto.With(reg)
	m := &lifecycleMetrics{
		startups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcwarden_startups_total",
			Help: "Engine startup attempts by outcome",
		}, []string{"engine", "outcome"}),
		startupDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpcwarden_startup_duration_seconds",
			Help:    "Time spent waiting for an engine to start",
			Buckets: lifecycleBuckets,
		}, []string{"engine"}),
		shutdowns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcwarden_shutdowns_total",
			Help: "Engine shutdown attempts by outcome",
		}, []string{"engine", "outcome"}),
		shutdownDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpcwarden_shutdown_duration_seconds",
			Help:    "Time spent waiting for an engine to stop",
			Buckets: lifecycleBuckets,
		}, []string{"engine"}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpcwarden_engine_state",
			Help: "Observed engine state (1 for the current state, 0 otherwise)",
		}, []string{"engine", "state"}),
	}
	lifecycleByReg[reg] = m
	return m
}

func (m *lifecycleMetrics) RecordStartup(engine, outcome string, d time.Duration) {
	m.startups.WithLabelValues(engine, outcome).Inc()
	m.startupDuration.WithLabelValues(engine).Observe(d.Seconds())
}

func (m *lifecycleMetrics) RecordShutdown(engine, outcome string, d time.Duration) {
	m.shutdowns.WithLabelValues(engine, outcome).Inc()
	m.shutdownDuration.WithLabelValues(engine).Observe(d.Seconds())
}

func (m *lifecycleMetrics) SetState(engine, state string) {
	for _, s := range lifecycle.States() {
		v := 0.0
		if s.String() == state {
			v = 1
		}
		m.state.WithLabelValues(engine, s.String()).Set(v)
	}
}
