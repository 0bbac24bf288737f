package lifecycle

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/marmos91/rpcwarden/internal/logger"
	"github.com/marmos91/rpcwarden/internal/telemetry"
	"github.com/marmos91/rpcwarden/pkg/metrics"
	"github.com/marmos91/rpcwarden/pkg/stats"
)

// Controller owns one engine and its runner and exposes the blocking
// Startup and Shutdown protocols.
//
// Startup and Shutdown are meant to be called by a single owner, once each
// and in that order. Concurrent calls are not supported.
type Controller struct {
	engine  Engine
	cfg     Config
	stats   *stats.ServerStats
	signal  *FailureSignal
	runner  *Runner
	metrics metrics.LifecycleMetrics
	strict  bool

	launched      atomic.Bool
	stopRequested atomic.Bool

	// sleep is swapped in tests to observe polling without wall-clock waits.
	sleep func(time.Duration)
}

// New creates a controller for engine. The stats sink is returned unchanged
// by Stats and may be nil.
func New(engine Engine, cfg Config, st *stats.ServerStats, opts ...Option) *Controller {
	c := &Controller{
		engine: engine,
		cfg:    cfg.withDefaults(),
		stats:  st,
		signal: NewFailureSignal(),
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.runner = NewRunner(engine, c.cfg.Name, c.cfg.Port, c.signal)
	return c
}

// Startup launches the engine and blocks until it is serving or has failed.
//
// It returns a *StartupTimeoutError when neither happens within the startup
// timeout. A failure before serving is logged and returns nil unless the
// controller was built WithStrictStartup; check Failed afterwards. A second
// call returns ErrAlreadyStarted.
func (c *Controller) Startup() error {
	if !c.launched.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, span := telemetry.StartLifecycleSpan(context.Background(), "startup", c.cfg.Name, c.cfg.Port,
		telemetry.Timeout(c.cfg.StartupTimeout))
	defer span.End()
	ctx = c.logContext(ctx, "startup")

	start := time.Now()
	c.runner.Start()

	var (
		waited  time.Duration
		serving bool
	)
	for {
		if c.engine.IsServing() {
			serving = true
			break
		}
		if c.signal.IsSet() {
			break
		}
		if waited > c.cfg.StartupTimeout {
			err := &StartupTimeoutError{Engine: c.cfg.Name, Timeout: c.cfg.StartupTimeout, Waited: waited}
			logger.ErrorCtx(ctx, "Engine did not start in time",
				logger.Waited(waited), logger.Timeout(c.cfg.StartupTimeout), elapsed(ctx))
			c.finishSpan(ctx, metrics.OutcomeTimeout, waited, err)
			c.record(true, metrics.OutcomeTimeout, time.Since(start))
			return err
		}

		logger.InfoCtx(ctx, "Waiting for engine to start", logger.Waited(waited))
		c.sleep(c.cfg.CheckInterval)
		waited += c.cfg.CheckInterval
	}

	if !serving {
		cause := c.runner.Err()
		logger.WarnCtx(ctx, "Engine failed to start", logger.Err(cause), elapsed(ctx))
		c.finishSpan(ctx, metrics.OutcomeFailed, waited, cause)
		c.record(true, metrics.OutcomeFailed, time.Since(start))
		if c.strict {
			return &EngineFailedError{Engine: c.cfg.Name, Port: c.cfg.Port, Cause: cause}
		}
		return nil
	}

	logger.InfoCtx(ctx, "Engine started", logger.Waited(waited), elapsed(ctx))
	c.finishSpan(ctx, metrics.OutcomeServing, waited, nil)
	c.record(true, metrics.OutcomeServing, time.Since(start))
	return nil
}

// Shutdown requests a stop and blocks until the engine is stopped and no
// longer serving. It returns a *ShutdownTimeoutError when that does not
// happen within the shutdown timeout. An engine that is already stopped
// returns immediately.
func (c *Controller) Shutdown() error {
	ctx, span := telemetry.StartLifecycleSpan(context.Background(), "shutdown", c.cfg.Name, c.cfg.Port,
		telemetry.Timeout(c.cfg.ShutdownTimeout))
	defer span.End()
	ctx = c.logContext(ctx, "shutdown")

	start := time.Now()
	c.stopRequested.Store(true)
	c.engine.Stop()

	var waited time.Duration
	for !(c.engine.IsStopped() && !c.engine.IsServing()) {
		if waited > c.cfg.ShutdownTimeout {
			err := &ShutdownTimeoutError{Engine: c.cfg.Name, Timeout: c.cfg.ShutdownTimeout, Waited: waited}
			logger.ErrorCtx(ctx, "Engine did not stop in time",
				logger.Waited(waited), logger.Timeout(c.cfg.ShutdownTimeout), elapsed(ctx))
			c.finishSpan(ctx, metrics.OutcomeTimeout, waited, err)
			c.record(false, metrics.OutcomeTimeout, time.Since(start))
			return err
		}

		logger.InfoCtx(ctx, "Waiting for engine to stop", logger.Waited(waited))
		c.sleep(c.cfg.CheckInterval)
		waited += c.cfg.CheckInterval
	}

	logger.InfoCtx(ctx, "Engine closed", logger.Waited(waited), elapsed(ctx))
	c.finishSpan(ctx, metrics.OutcomeStopped, waited, nil)
	c.record(false, metrics.OutcomeStopped, time.Since(start))
	return nil
}

func (c *Controller) logContext(ctx context.Context, op string) context.Context {
	lc := logger.NewLogContext(c.cfg.Name, c.cfg.Port).
		WithOperation(op).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	return logger.WithContext(ctx, lc)
}

// elapsed is the wall time of the current operation, taken from the log
// context opened by logContext.
func elapsed(ctx context.Context) slog.Attr {
	return logger.DurationMs(logger.FromContext(ctx).DurationMs())
}

func (c *Controller) finishSpan(ctx context.Context, outcome string, waited time.Duration, err error) {
	telemetry.SetAttributes(ctx, telemetry.Outcome(outcome), telemetry.Waited(waited))
	telemetry.RecordError(ctx, err)
}

func (c *Controller) record(startup bool, outcome string, d time.Duration) {
	if c.metrics == nil {
		return
	}
	if startup {
		c.metrics.RecordStartup(c.cfg.Name, outcome, d)
	} else {
		c.metrics.RecordShutdown(c.cfg.Name, outcome, d)
	}
	c.metrics.SetState(c.cfg.Name, c.State().String())
}

// State derives the engine's current state from its status methods, the
// failure signal and whether a stop was requested.
func (c *Controller) State() State {
	if c.signal.IsSet() {
		return StateFailed
	}

	stopping := c.stopRequested.Load()
	switch {
	case c.engine.IsServing() && stopping:
		return StateStopping
	case c.engine.IsServing():
		return StateServing
	case stopping && c.engine.IsStopped():
		return StateStopped
	case stopping:
		return StateStopping
	case c.launched.Load() && c.runner.Finished():
		return StateStopped
	default:
		return StateNotServing
	}
}

// Stats returns the statistics sink passed to New.
func (c *Controller) Stats() *stats.ServerStats {
	return c.stats
}

// Failed reports whether the runner recorded a failure.
func (c *Controller) Failed() bool {
	return c.signal.IsSet()
}

// Runner returns the handle of the background Serve goroutine.
func (c *Controller) Runner() *Runner {
	return c.runner
}

// Config returns the effective configuration, defaults applied.
func (c *Controller) Config() Config {
	return c.cfg
}
