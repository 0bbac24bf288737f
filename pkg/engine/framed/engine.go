// Package framed is a request/response engine speaking XDR envelopes over
// RPC record marking. Each connection processes calls one at a time, in
// arrival order.
package framed

import (
	"net"
	"time"

	"github.com/marmos91/rpcwarden/pkg/bufpool"
	"github.com/marmos91/rpcwarden/pkg/engine"
	"github.com/marmos91/rpcwarden/pkg/metrics"
	"github.com/marmos91/rpcwarden/pkg/stats"
)

// DefaultMaxFrameSize limits a single request message.
const DefaultMaxFrameSize = bufpool.DefaultLargeSize

// Timeouts bounds per-connection I/O. Zero disables a timeout.
type Timeouts struct {
	// Read bounds reading one request once its header arrived.
	Read time.Duration
	// Write bounds writing one reply.
	Write time.Duration
	// Idle closes a connection with no request for this long.
	Idle time.Duration
}

// Config configures a framed engine.
type Config struct {
	engine.Config

	// MaxFrameSize caps an assembled request message in bytes.
	MaxFrameSize int

	Timeouts Timeouts
}

// Engine is the framed RPC engine. It satisfies lifecycle.Engine.
type Engine struct {
	*engine.Base

	cfg   Config
	mux   *Mux
	stats *stats.ServerStats
}

// New creates a framed engine. The stats sink receives request and
// connection events and may be nil; recorders get connection events.
func New(cfg Config, name string, mux *Mux, st *stats.ServerStats, recorders ...metrics.ConnectionMetrics) *Engine {
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	if mux == nil {
		mux = NewMux()
	}

	all := recorders
	if st != nil {
		all = append([]metrics.ConnectionMetrics{st}, recorders...)
	}

	return &Engine{
		Base:  engine.NewBase(cfg.Config, name, all...),
		cfg:   cfg,
		mux:   mux,
		stats: st,
	}
}

// Serve accepts connections until Stop.
func (e *Engine) Serve() error {
	return e.ServeWithFactory(e)
}

// NewConnection implements engine.ConnectionFactory.
func (e *Engine) NewConnection(conn net.Conn) engine.ConnectionHandler {
	return &connection{engine: e, conn: conn}
}

// Mux returns the engine's method router.
func (e *Engine) Mux() *Mux { return e.mux }
