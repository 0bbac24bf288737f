package prometheus

import (
	"sync"

	"github.com/marmos91/rpcwarden/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type connectionVecs struct {
	accepted    *prometheus.CounterVec
	closed      *prometheus.CounterVec
	forceClosed *prometheus.CounterVec
	active      *prometheus.GaugeVec
}

var (
	connMu    sync.Mutex
	connByReg = map[*prometheus.Registry]*connectionVecs{}
)

// connectionMetrics is the Prometheus implementation of
// metrics.ConnectionMetrics for a single engine.
type connectionMetrics struct {
	accepted    prometheus.Counter
	closed      prometheus.Counter
	forceClosed prometheus.Counter
	active      prometheus.Gauge
}

// NewConnectionMetrics returns connection collectors labelled with engine.
// Returns nil if metrics are disabled.
func NewConnectionMetrics(engine string) metrics.ConnectionMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	vecs := connectionVecsFor(reg)
	return &connectionMetrics{
		accepted:    vecs.accepted.WithLabelValues(engine),
		closed:      vecs.closed.WithLabelValues(engine),
		forceClosed: vecs.forceClosed.WithLabelValues(engine),
		active:      vecs.active.WithLabelValues(engine),
	}
}

func connectionVecsFor(reg *prometheus.Registry) *connectionVecs {
	connMu.Lock()
	defer connMu.Unlock()
	if v, ok := connByReg[reg]; ok {
		return v
	}

	f := promauto.With(reg)
	v := &connectionVecs{
		accepted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcwarden_connections_accepted_total",
			Help: "Total connections accepted by engine",
		}, []string{"engine"}),
		closed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcwarden_connections_closed_total",
			Help: "Total connections closed normally by engine",
		}, []string{"engine"}),
		forceClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcwarden_connections_force_closed_total",
			Help: "Connections closed after the drain timeout elapsed",
		}, []string{"engine"}),
		active: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpcwarden_connections_active",
			Help: "Currently open connections by engine",
		}, []string{"engine"}),
	}
	connByReg[reg] = v
	return v
}

func (m *connectionMetrics) RecordConnectionAccepted()    { m.accepted.Inc() }
func (m *connectionMetrics) RecordConnectionClosed()      { m.closed.Inc() }
func (m *connectionMetrics) RecordConnectionForceClosed() { m.forceClosed.Inc() }
func (m *connectionMetrics) SetActiveConnections(n int32) { m.active.Set(float64(n)) }
