// Package engine provides the shared TCP lifecycle used by the framed engine:
// listener management, connection tracking and limits, and drain on stop.
//
// Every engine in the subpackages satisfies lifecycle.Engine with the same
// status semantics:
//
//   - IsStopped is true before Serve is entered and again once Serve has
//     returned with all resources released.
//   - IsServing is true from the moment the listener is ready until a stop
//     is requested.
//   - Stop before Serve makes Serve return nil without listening.
//   - A listen failure makes Serve return an error.
package engine

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/marmos91/rpcwarden/internal/logger"
	"github.com/marmos91/rpcwarden/pkg/metrics"
)

// DefaultDrainTimeout bounds how long Serve waits for open connections after
// a stop request before closing them.
const DefaultDrainTimeout = 10 * time.Second

// forceCloseGrace bounds the wait for handlers after connections were closed.
const forceCloseGrace = time.Second

// ConnectionHandler serves one accepted connection until it closes or ctx
// is cancelled.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory creates a handler for each accepted connection.
type ConnectionFactory interface {
	NewConnection(conn net.Conn) ConnectionHandler
}

// ConnectionFactoryFunc adapts a function to ConnectionFactory.
type ConnectionFactoryFunc func(conn net.Conn) ConnectionHandler

// NewConnection calls f(conn).
func (f ConnectionFactoryFunc) NewConnection(conn net.Conn) ConnectionHandler {
	return f(conn)
}

// Config holds the listener settings shared by TCP engines.
type Config struct {
	// BindAddress is the IP to bind. Empty binds all interfaces.
	BindAddress string

	// Port is the TCP port. 0 picks a free port (see Addr).
	Port int

	// MaxConnections caps concurrent connections. 0 means unlimited.
	MaxConnections int

	// DrainTimeout is how long to wait for open connections after Stop.
	DrainTimeout time.Duration

	// MetricsLogInterval periodically logs the connection count. 0 disables it.
	MetricsLogInterval time.Duration
}

// ListenAddress returns the host:port string passed to net.Listen.
func (c Config) ListenAddress() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// Base runs a TCP accept loop and tracks connections for graceful drain.
//
// All exported methods are safe for concurrent use. Stop is idempotent and
// never blocks.
type Base struct {
	Config Config
	name   string

	recorders []metrics.ConnectionMetrics

	listenerMu sync.RWMutex
	listener   net.Listener
	ready      chan struct{}
	readyOnce  sync.Once

	shutdown     chan struct{}
	shutdownOnce sync.Once

	requestCtx     context.Context
	cancelRequests context.CancelFunc

	running atomic.Bool
	serving atomic.Bool

	connWG    sync.WaitGroup
	connCount atomic.Int32
	conns     sync.Map // remote address -> net.Conn
	connSem   chan struct{}
}

// NewBase creates a stopped Base. Recorders receive connection events; nil
// entries are skipped.
func NewBase(cfg Config, name string, recorders ...metrics.ConnectionMetrics) *Base {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}

	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}

	var recs []metrics.ConnectionMetrics
	for _, r := range recorders {
		if r != nil {
			recs = append(recs, r)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Base{
		Config:         cfg,
		name:           name,
		recorders:      recs,
		ready:          make(chan struct{}),
		shutdown:       make(chan struct{}),
		requestCtx:     ctx,
		cancelRequests: cancel,
		connSem:        sem,
	}
}

// Name returns the engine name used in logs.
func (b *Base) Name() string { return b.name }

// IsServing reports whether the listener is accepting connections.
func (b *Base) IsServing() bool { return b.serving.Load() }

// IsStopped reports whether Serve is not running.
func (b *Base) IsStopped() bool { return !b.running.Load() }

// ShutdownRequested returns a channel closed once Stop has been called.
func (b *Base) ShutdownRequested() <-chan struct{} { return b.shutdown }

// Ready returns a channel closed once the listener is bound.
func (b *Base) Ready() <-chan struct{} { return b.ready }

// Addr returns the bound listener address, or "" when not listening.
func (b *Base) Addr() string {
	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// ActiveConnections returns the number of open connections.
func (b *Base) ActiveConnections() int32 { return b.connCount.Load() }

// ServeWithFactory binds the listener and accepts connections until Stop,
// then drains. It returns nil after a requested stop and an error when the
// listener cannot be created.
func (b *Base) ServeWithFactory(factory ConnectionFactory) error {
	b.running.Store(true)
	defer b.running.Store(false)
	defer b.serving.Store(false)

	select {
	case <-b.shutdown:
		return nil
	default:
	}

	ln, err := net.Listen("tcp", b.Config.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to create %s listener on port %d: %w", b.name, b.Config.Port, err)
	}

	b.listenerMu.Lock()
	select {
	case <-b.shutdown:
		b.listenerMu.Unlock()
		_ = ln.Close()
		return nil
	default:
	}
	b.listener = ln
	// Stop clears serving under listenerMu after closing shutdown.
	b.serving.Store(true)
	b.listenerMu.Unlock()

	b.readyOnce.Do(func() { close(b.ready) })
	logger.Info("Engine listening", logger.KeyEngine, b.name, logger.KeyAddress, ln.Addr().String())

	if b.Config.MetricsLogInterval > 0 {
		go b.logConnections()
	}

	retry := newAcceptBackoff()
	for {
		if b.connSem != nil {
			select {
			case b.connSem <- struct{}{}:
			case <-b.shutdown:
				b.drain()
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			b.release()
			select {
			case <-b.shutdown:
				b.drain()
				return nil
			default:
			}

			delay := retry.NextBackOff()
			logger.Debug("Accept failed", logger.KeyEngine, b.name, logger.KeyError, err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-b.shutdown:
			}
			continue
		}
		retry.Reset()

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}
		b.track(conn, factory.NewConnection(conn))
	}
}

// newAcceptBackoff doubles the delay after each failed Accept, from 5ms up
// to 1s, without jitter and without giving up.
func newAcceptBackoff() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(5*time.Millisecond),
		backoff.WithMaxInterval(time.Second),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
}

func (b *Base) release() {
	if b.connSem != nil {
		<-b.connSem
	}
}

func (b *Base) track(conn net.Conn, handler ConnectionHandler) {
	addr := conn.RemoteAddr().String()

	b.connWG.Add(1)
	active := b.connCount.Add(1)
	b.conns.Store(addr, conn)
	for _, r := range b.recorders {
		r.RecordConnectionAccepted()
		r.SetActiveConnections(active)
	}
	logger.Debug("Connection accepted", logger.KeyEngine, b.name, logger.KeyClientAddr, addr, logger.KeyActive, active)

	go func() {
		defer func() {
			_ = conn.Close()
			b.conns.Delete(addr)
			remaining := b.connCount.Add(-1)
			b.release()
			for _, r := range b.recorders {
				r.RecordConnectionClosed()
				r.SetActiveConnections(remaining)
			}
			logger.Debug("Connection closed", logger.KeyEngine, b.name, logger.KeyClientAddr, addr, logger.KeyActive, remaining)
			b.connWG.Done()
		}()
		handler.Serve(b.requestCtx)
	}()
}

// Stop requests shutdown: the listener is closed, blocked reads are
// interrupted and request contexts are cancelled. It returns immediately;
// Serve performs the drain.
func (b *Base) Stop() {
	b.shutdownOnce.Do(func() {
		b.listenerMu.Lock()
		b.serving.Store(false)
		close(b.shutdown)
		if b.listener != nil {
			if err := b.listener.Close(); err != nil {
				logger.Debug("Error closing listener", logger.KeyEngine, b.name, logger.KeyError, err)
			}
		}
		b.listenerMu.Unlock()

		b.interruptReads()
		b.cancelRequests()
		logger.Debug("Engine stop requested", logger.KeyEngine, b.name)
	})
}

// interruptReads sets a near deadline on every connection so handlers
// blocked in Read observe the shutdown.
func (b *Base) interruptReads() {
	deadline := time.Now().Add(100 * time.Millisecond)
	b.conns.Range(func(_, v any) bool {
		if conn, ok := v.(net.Conn); ok {
			_ = conn.SetReadDeadline(deadline)
		}
		return true
	})
}

// drain waits up to DrainTimeout for handlers, then force-closes the rest.
func (b *Base) drain() {
	active := b.connCount.Load()
	if active > 0 {
		logger.Info("Draining connections", logger.KeyEngine, b.name,
			logger.KeyActive, active, logger.KeyTimeout, b.Config.DrainTimeout)
	}

	done := make(chan struct{})
	go func() {
		b.connWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(b.Config.DrainTimeout):
	}

	logger.Warn("Drain timeout exceeded, closing connections", logger.KeyEngine, b.name,
		logger.KeyActive, b.connCount.Load(), logger.KeyTimeout, b.Config.DrainTimeout)
	b.forceClose()

	select {
	case <-done:
	case <-time.After(forceCloseGrace):
		logger.Warn("Handlers still running after force close", logger.KeyEngine, b.name,
			logger.KeyActive, b.connCount.Load())
	}
}

func (b *Base) forceClose() {
	closed := 0
	b.conns.Range(func(k, v any) bool {
		conn, ok := v.(net.Conn)
		if !ok {
			return true
		}
		if err := conn.Close(); err == nil {
			closed++
			for _, r := range b.recorders {
				r.RecordConnectionForceClosed()
			}
		} else {
			logger.Debug("Error force-closing connection", logger.KeyClientAddr, k, logger.KeyError, err)
		}
		return true
	})
	if closed > 0 {
		logger.Info("Force-closed connections", logger.KeyEngine, b.name, "count", closed)
	}
}

func (b *Base) logConnections() {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.shutdown:
			return
		case <-ticker.C:
			logger.Info("Engine connections", logger.KeyEngine, b.name, logger.KeyActive, b.connCount.Load())
		}
	}
}
