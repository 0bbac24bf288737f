package prometheus

import (
	"github.com/marmos91/rpcwarden/pkg/metrics"
	"github.com/marmos91/rpcwarden/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
)

// statsCollector exposes a ServerStats snapshot on every scrape.
type statsCollector struct {
	stats *stats.ServerStats

	requests    *prometheus.Desc
	errors      *prometheus.Desc
	bytesIn     *prometheus.Desc
	bytesOut    *prometheus.Desc
	uptime      *prometheus.Desc
	methodCalls *prometheus.Desc
	methodErrs  *prometheus.Desc
}

// RegisterStats registers a collector for s on the active registry, with
// every series labelled engine=name. It is a no-op when metrics are disabled.
func RegisterStats(name string, s *stats.ServerStats) error {
	reg := metrics.GetRegistry()
	if reg == nil || s == nil {
		return nil
	}
	return reg.Register(newStatsCollector(name, s))
}

func newStatsCollector(name string, s *stats.ServerStats) *statsCollector {
	labels := prometheus.Labels{"engine": name}
	desc := func(metric, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc("rpcwarden_"+metric, help, variable, labels)
	}
	return &statsCollector{
		stats:       s,
		requests:    desc("requests_total", "Requests handled by the engine"),
		errors:      desc("request_errors_total", "Requests that returned an error"),
		bytesIn:     desc("request_bytes_total", "Request payload bytes received"),
		bytesOut:    desc("response_bytes_total", "Response payload bytes sent"),
		uptime:      desc("stats_uptime_seconds", "Seconds since the stats sink was created"),
		methodCalls: desc("method_calls_total", "Calls per method", "method"),
		methodErrs:  desc("method_errors_total", "Failed calls per method", "method"),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.errors
	ch <- c.bytesIn
	ch <- c.bytesOut
	ch <- c.uptime
	ch <- c.methodCalls
	ch <- c.methodErrs
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(snap.Requests))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(snap.Errors))
	ch <- prometheus.MustNewConstMetric(c.bytesIn, prometheus.CounterValue, float64(snap.BytesIn))
	ch <- prometheus.MustNewConstMetric(c.bytesOut, prometheus.CounterValue, float64(snap.BytesOut))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, snap.UptimeSeconds)

	for _, m := range snap.Methods {
		ch <- prometheus.MustNewConstMetric(c.methodCalls, prometheus.CounterValue, float64(m.Calls), m.Method)
		ch <- prometheus.MustNewConstMetric(c.methodErrs, prometheus.CounterValue, float64(m.Errors), m.Method)
	}
}
