package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on lifecycle and engine spans.
const (
	AttrEngineName = "engine.name"
	AttrEngineType = "engine.type"
	AttrEnginePort = "engine.port"
	AttrEngineAddr = "engine.address"

	AttrLifecycleOperation = "lifecycle.operation" // startup, shutdown
	AttrLifecycleOutcome   = "lifecycle.outcome"   // serving, failed, timeout, stopped
	AttrLifecycleWaitedMs  = "lifecycle.waited_ms"
	AttrLifecycleTimeoutMs = "lifecycle.timeout_ms"

	AttrRPCMethod = "rpc.method"
	AttrRPCXID    = "rpc.xid"
	AttrRPCStatus = "rpc.status"

	AttrClientAddr = "client.address"
)

// Span names for lifecycle operations.
const (
	SpanStartup  = "lifecycle.startup"
	SpanShutdown = "lifecycle.shutdown"
)

// EngineName returns the engine.name attribute
func EngineName(name string) attribute.KeyValue {
	return attribute.String(AttrEngineName, name)
}

// EngineType returns the engine.type attribute
func EngineType(t string) attribute.KeyValue {
	return attribute.String(AttrEngineType, t)
}

// EnginePort returns the engine.port attribute
func EnginePort(port int) attribute.KeyValue {
	return attribute.Int(AttrEnginePort, port)
}

// EngineAddr returns the engine.address attribute
func EngineAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrEngineAddr, addr)
}

// Outcome returns the lifecycle.outcome attribute
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrLifecycleOutcome, outcome)
}

// Waited returns the lifecycle.waited_ms attribute
func Waited(d time.Duration) attribute.KeyValue {
	return attribute.Int64(AttrLifecycleWaitedMs, d.Milliseconds())
}

// Timeout returns the lifecycle.timeout_ms attribute
func Timeout(d time.Duration) attribute.KeyValue {
	return attribute.Int64(AttrLifecycleTimeoutMs, d.Milliseconds())
}

// RPCMethod returns the rpc.method attribute
func RPCMethod(method string) attribute.KeyValue {
	return attribute.String(AttrRPCMethod, method)
}

// RPCXID returns the rpc.xid attribute
func RPCXID(xid uint32) attribute.KeyValue {
	return attribute.Int64(AttrRPCXID, int64(xid))
}

// RPCStatus returns the rpc.status attribute
func RPCStatus(status uint32) attribute.KeyValue {
	return attribute.Int64(AttrRPCStatus, int64(status))
}

// ClientAddr returns the client.address attribute
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// StartLifecycleSpan starts a span for a lifecycle operation on an engine.
// operation is one of "startup" or "shutdown".
func StartLifecycleSpan(ctx context.Context, operation, engine string, port int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, 3+len(attrs))
	all = append(all,
		attribute.String(AttrLifecycleOperation, operation),
		EngineName(engine),
		EnginePort(port),
	)
	all = append(all, attrs...)
	return StartSpan(ctx, "lifecycle."+operation, trace.WithAttributes(all...))
}

// StartRPCSpan starts a server span for one framed RPC request
func StartRPCSpan(ctx context.Context, method string, xid uint32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, 2+len(attrs))
	all = append(all, RPCMethod(method), RPCXID(xid))
	all = append(all, attrs...)
	return StartSpan(ctx, "rpc."+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(all...),
	)
}
