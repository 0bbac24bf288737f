// Package httpengine serves a chi router through an http.Server and adapts
// it to lifecycle.Engine. A /healthz endpoint is always mounted.
package httpengine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/rpcwarden/internal/logger"
)

// DefaultDrainTimeout bounds http.Server.Shutdown.
const DefaultDrainTimeout = 10 * time.Second

// Config configures the HTTP engine.
type Config struct {
	BindAddress       string
	Port              int
	DrainTimeout      time.Duration
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// Engine serves HTTP. It satisfies lifecycle.Engine.
type Engine struct {
	cfg    Config
	name   string
	router chi.Router
	server *http.Server

	mu        sync.Mutex
	listener  net.Listener
	stopOnce  sync.Once
	stopped   chan struct{}
	drainDone chan struct{}

	running  atomic.Bool
	serving  atomic.Bool
	draining atomic.Bool
}

// New creates an engine whose router already has request IDs, request
// logging, panic recovery and /healthz installed. mount registers the remaining routes and may be nil.
func New(cfg Config, name string, mount func(r chi.Router)) *Engine {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}

	e := &Engine{
		cfg:       cfg,
		name:      name,
		stopped:   make(chan struct{}),
		drainDone: make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(name))
	r.Use(middleware.Recoverer)
	r.Get("/healthz", e.handleHealth)
	if mount != nil {
		mount(r)
	}
	e.router = r

	e.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return e
}

// handleHealth answers GET /healthz. It reports unhealthy once a stop is
// requested so load balancers stop routing during the drain.
func (e *Engine) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !e.IsServing() {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("engine stopping"))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"engine": e.name,
	}))
}

// Router returns the engine's router.
func (e *Engine) Router() chi.Router { return e.router }

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

	e.serving.Store(true)
	logger.Info("Engine listening", logger.KeyEngine, e.name, logger.KeyAddress, ln.Addr().String())

	err = e.server.Serve(ln)
	e.serving.Store(false)

	select {
	case <-e.stopped:
		<-e.drainDone
	default:
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop starts a graceful Shutdown bounded by DrainTimeout in the
// background, closing remaining connections when it expires.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.serving.Store(false)
		e.draining.Store(true)
		close(e.stopped)
		e.mu.Unlock()

		go e.drain()
	})
}

func (e *Engine) drain() {
	defer func() {
		e.draining.Store(false)
		close(e.drainDone)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.DrainTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		logger.Warn("HTTP drain incomplete, closing", logger.KeyEngine, e.name, logger.KeyError, err)
		_ = e.server.Close()
	}
}

// IsServing reports whether the server is accepting requests.
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
