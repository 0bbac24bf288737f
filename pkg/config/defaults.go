package config

import (
	"strings"
	"time"

	"github.com/marmos91/rpcwarden/internal/bytesize"
	"github.com/marmos91/rpcwarden/internal/telemetry"
	"github.com/marmos91/rpcwarden/pkg/engine"
	"github.com/marmos91/rpcwarden/pkg/lifecycle"
)

// Default values not owned by another package.
const (
	DefaultEnginePort   = 4520
	DefaultMetricsPort  = 9090
	DefaultMaxFrameSize = bytesize.MiB
)

// ApplyDefaults fills zero-valued fields with defaults. Explicit values are
// preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyEngineDefaults(&cfg.Engine)
	applyLifecycleDefaults(&cfg.Lifecycle)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = append([]string(nil), telemetry.DefaultProfileTypes...)
	}
}

// applyMetricsDefaults sets the port only when metrics are enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.Type == "" {
		cfg.Type = EngineFramed
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Name == "" {
		cfg.Name = cfg.Type
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = engine.DefaultDrainTimeout
	}
	if cfg.Timeouts.Idle == 0 {
		cfg.Timeouts.Idle = 5 * time.Minute
	}
}

func applyLifecycleDefaults(cfg *LifecycleConfig) {
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = lifecycle.DefaultStartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = lifecycle.DefaultShutdownTimeout
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = lifecycle.DefaultCheckInterval
	}
}

// GetDefaultConfig returns a Config with all defaults applied. The engine
// listens on DefaultEnginePort.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Engine: EngineConfig{
			Port: DefaultEnginePort,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
