package metrics

import "time"

// Lifecycle outcomes reported by RecordStartup and RecordShutdown.
const (
	OutcomeServing = "serving"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomeStopped = "stopped"
)

// LifecycleMetrics observes startup and shutdown of supervised engines.
//
// This interface is optional: a nil LifecycleMetrics disables collection
// with zero overhead.
type LifecycleMetrics interface {
	// RecordStartup records the outcome and duration of one Startup call.
	RecordStartup(engine, outcome string, d time.Duration)

	// RecordShutdown records the outcome and duration of one Shutdown call.
	RecordShutdown(engine, outcome string, d time.Duration)

	// SetState publishes the latest observed state of an engine.
	SetState(engine, state string)
}

// NewLifecycleMetrics creates a Prometheus-backed LifecycleMetrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or the
// prometheus implementation package has not been linked in.
func NewLifecycleMetrics() LifecycleMetrics {
	if !IsEnabled() || newPrometheusLifecycleMetrics == nil {
		return nil
	}
	return newPrometheusLifecycleMetrics()
}

// newPrometheusLifecycleMetrics is set by pkg/metrics/prometheus during
// package initialization. The indirection avoids an import cycle.
var newPrometheusLifecycleMetrics func() LifecycleMetrics

// RegisterLifecycleMetricsConstructor registers the Prometheus constructor.
func RegisterLifecycleMetricsConstructor(constructor func() LifecycleMetrics) {
	newPrometheusLifecycleMetrics = constructor
}
