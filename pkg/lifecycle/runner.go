package lifecycle

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/marmos91/rpcwarden/internal/logger"
)

// Runner invokes an engine's Serve exactly once on its own goroutine.
//
// A returned error or a panic escaping Serve is kept as Err, flips the shared
// FailureSignal and is logged with the engine name and port. A nil return
// changes nothing. The goroutine is never joined implicitly; Done and Wait
// allow an explicit join.
type Runner struct {
	engine Engine
	name   string
	port   int
	signal *FailureSignal

	once sync.Once
	done chan struct{}

	mu  sync.Mutex
	err error
}

// NewRunner creates a runner for engine. signal must not be nil.
func NewRunner(engine Engine, name string, port int, signal *FailureSignal) *Runner {
	return &Runner{
		engine: engine,
		name:   name,
		port:   port,
		signal: signal,
		done:   make(chan struct{}),
	}
}

// Start launches Serve in the background. Calls after the first are no-ops.
func (r *Runner) Start() {
	r.once.Do(func() {
		go r.run()
	})
}

func (r *Runner) run() {
	defer close(r.done)
	defer func() {
		if p := recover(); p != nil {
			logger.Debug("Engine panic stack", logger.KeyEngine, r.name, "stack", string(debug.Stack()))
			r.fail(fmt.Errorf("serve panicked: %v", p))
		}
	}()

	if err := r.engine.Serve(); err != nil {
		r.fail(err)
	}
}

func (r *Runner) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()

	r.signal.Set()
	logger.Error("Engine failed",
		logger.KeyEngine, r.name,
		logger.KeyPort, r.port,
		logger.KeyError, err)
}

// Done is closed once Serve has returned. It never closes if Start was not called.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Err returns the failure captured from Serve, or nil.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Finished reports whether Serve has returned.
func (r *Runner) Finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until Serve returns or ctx is done, and returns the captured
// failure or the context error.
func (r *Runner) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
