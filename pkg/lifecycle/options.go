package lifecycle

import (
	"time"

	"github.com/marmos91/rpcwarden/pkg/metrics"
)

// Default polling parameters.
const (
	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultCheckInterval   = time.Second
)

// Config describes the supervised engine and the polling parameters.
// Zero durations are replaced by the defaults.
type Config struct {
	// Name identifies the engine in logs, spans and metric labels.
	Name string

	// Port is the configured bind port, reported when startup fails.
	Port int

	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration
	CheckInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "engine"
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	return c
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics reports startup/shutdown outcomes and engine state to m.
// A nil m disables reporting.
func WithMetrics(m metrics.LifecycleMetrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithStrictStartup makes Startup return an *EngineFailedError when Serve
// fails before the engine reports serving.
func WithStrictStartup() Option {
	return func(c *Controller) {
		c.strict = true
	}
}

// WithFailureSignal shares an existing signal with the controller's runner.
func WithFailureSignal(s *FailureSignal) Option {
	return func(c *Controller) {
		if s != nil {
			c.signal = s
		}
	}
}
