// Package grpcengine adapts a *grpc.Server to lifecycle.Engine.
//
// The standard health service is always registered; it reports SERVING
// while the engine serves and NOT_SERVING once a stop is requested.
package grpcengine

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/rpcwarden/internal/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultDrainTimeout bounds GracefulStop before falling back to Stop.
const DefaultDrainTimeout = 10 * time.Second

// Config configures the gRPC engine.
type Config struct {
	BindAddress  string
	Port         int
	DrainTimeout time.Duration

	// Options are passed to grpc.NewServer.
	Options []grpc.ServerOption
}

// Registrar registers services on the server before it starts serving.
type Registrar func(s *grpc.Server)

// Engine serves gRPC. It satisfies lifecycle.Engine.
type Engine struct {
	cfg    Config
	name   string
	server *grpc.Server
	health *health.Server

	mu        sync.Mutex
	listener  net.Listener
	stopOnce  sync.Once
	stopped   chan struct{}
	drainDone chan struct{}

	running  atomic.Bool
	serving  atomic.Bool
	draining atomic.Bool
}

// New builds the server, registers the health service and then every
// registrar in order.
func New(cfg Config, name string, registrars ...Registrar) *Engine {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}

	srv := grpc.NewServer(cfg.Options...)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	for _, r := range registrars {
		r(srv)
	}

	return &Engine{
		cfg:       cfg,
		name:      name,
		server:    srv,
		health:    hs,
		stopped:   make(chan struct{}),
		drainDone: make(chan struct{}),
	}
}

// Server returns the underlying gRPC server.
func (e *Engine) Server() *grpc.Server { return e.server }

// Serve listens and serves until Stop.
func (e *Engine) Serve() error {
	e.running.Store(true)
	defer e.running.Store(false)

	select {
	case <-e.stopped:
		return nil
	default:
	}

	addr := net.JoinHostPort(e.cfg.BindAddress, strconv.Itoa(e.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create %s listener on port %d: %w", e.name, e.cfg.Port, err)
	}

	e.mu.Lock()
	select {
	case <-e.stopped:
		e.mu.Unlock()
		_ = ln.Close()
		return nil
	default:
	}
	e.listener = ln
	e.mu.Unlock()

	e.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	e.serving.Store(true)
	logger.Info("Engine listening", logger.KeyEngine, e.name, logger.KeyAddress, ln.Addr().String())

	err = e.server.Serve(ln)
	e.serving.Store(false)

	// After a stop request Serve returns once the listener closes, before
	// in-flight RPCs finish; wait for the drain.
	select {
	case <-e.stopped:
		<-e.drainDone
	default:
	}

	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks the health service NOT_SERVING and drains in the background:
// GracefulStop, falling back to Stop after DrainTimeout. It does not block.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.serving.Store(false)
		e.draining.Store(true)
		close(e.stopped)
		e.mu.Unlock()

		e.health.Shutdown()
		go e.drain()
	})
}

func (e *Engine) drain() {
	defer func() {
		e.draining.Store(false)
		close(e.drainDone)
	}()

	done := make(chan struct{})
	go func() {
		e.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.cfg.DrainTimeout):
		logger.Warn("gRPC drain timeout exceeded, stopping", logger.KeyEngine, e.name,
			logger.KeyTimeout, e.cfg.DrainTimeout)
		e.server.Stop()
		<-done
	}
}

// IsServing reports whether the server is accepting RPCs.
func (e *Engine) IsServing() bool { return e.serving.Load() }

// IsStopped reports whether Serve is not running and no drain is pending.
func (e *Engine) IsStopped() bool { return !e.running.Load() && !e.draining.Load() }

// Addr returns the bound address, or "" before listening.
func (e *Engine) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}
