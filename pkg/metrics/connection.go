package metrics

// ConnectionMetrics provides observability for engine connection handling.
//
// Engines accept a nil ConnectionMetrics, which disables collection.
type ConnectionMetrics interface {
	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the force-closed counter.
	// Called when connections are closed after the drain timeout.
	RecordConnectionForceClosed()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)
}

// NewConnectionMetrics creates Prometheus-backed connection metrics labelled
// with the engine name, or nil when metrics are disabled.
func NewConnectionMetrics(engine string) ConnectionMetrics {
	if !IsEnabled() || newPrometheusConnectionMetrics == nil {
		return nil
	}
	return newPrometheusConnectionMetrics(engine)
}

var newPrometheusConnectionMetrics func(engine string) ConnectionMetrics

// RegisterConnectionMetricsConstructor registers the Prometheus constructor.
func RegisterConnectionMetricsConstructor(constructor func(engine string) ConnectionMetrics) {
	newPrometheusConnectionMetrics = constructor
}
