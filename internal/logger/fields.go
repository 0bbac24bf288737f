package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so lifecycle and
// engine logs can be aggregated and queried uniformly.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Engine & Lifecycle
	// ========================================================================
	KeyEngine     = "engine"      // Engine name: framed, grpc, http, metrics
	KeyEngineType = "engine_type" // Engine implementation type
	KeyPort       = "port"        // Configured bind port
	KeyAddress    = "address"     // Bound listener address (host:port)
	KeyState      = "state"       // Observed engine state
	KeyOperation  = "operation"   // Lifecycle operation: startup, shutdown
	KeyOutcome    = "outcome"     // Lifecycle outcome: serving, failed, timeout, stopped
	KeyWaited     = "waited"      // Accumulated wait time inside a polling loop
	KeyTimeout    = "timeout"     // Configured timeout for the polling loop
	KeyInterval   = "interval"    // Configured check interval

	// ========================================================================
	// Connections & Requests
	// ========================================================================
	KeyClientAddr = "client_addr" // Remote address of a connection
	KeyActive     = "active"      // Active connection count
	KeyMethod     = "method"      // RPC method name
	KeyXID        = "xid"         // Request transaction ID
	KeyStatus     = "status"      // Reply status code
	KeyBytes      = "bytes"       // Payload size in bytes

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// Engine returns a slog.Attr for the engine name
func Engine(name string) slog.Attr {
	return slog.String(KeyEngine, name)
}

// Port returns a slog.Attr for the configured port
func Port(port int) slog.Attr {
	return slog.Int(KeyPort, port)
}

// Address returns a slog.Attr for a listener address
func Address(addr string) slog.Attr {
	return slog.String(KeyAddress, addr)
}

// State returns a slog.Attr for an engine state
func State(state string) slog.Attr {
	return slog.String(KeyState, state)
}

// Waited returns a slog.Attr for accumulated polling wait time
func Waited(d time.Duration) slog.Attr {
	return slog.Duration(KeyWaited, d)
}

// Timeout returns a slog.Attr for a configured timeout
func Timeout(d time.Duration) slog.Attr {
	return slog.Duration(KeyTimeout, d)
}

// Method returns a slog.Attr for an RPC method name
func Method(name string) slog.Attr {
	return slog.String(KeyMethod, name)
}

// DurationMs returns a slog.Attr for a duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
// A nil error yields an empty attribute, which handlers skip.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
