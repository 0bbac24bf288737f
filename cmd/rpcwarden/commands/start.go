package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/rpcwarden/internal/logger"
	"github.com/marmos91/rpcwarden/internal/telemetry"
	"github.com/marmos91/rpcwarden/pkg/config"
	"github.com/marmos91/rpcwarden/pkg/lifecycle"
	"github.com/marmos91/rpcwarden/pkg/metrics"
	"github.com/marmos91/rpcwarden/pkg/metrics/prometheus"
	"github.com/marmos91/rpcwarden/pkg/stats"
	"github.com/spf13/cobra"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the supervised engine",
	Long: `Start the configured engine in the foreground and supervise it.

Startup waits up to lifecycle.startup_timeout for the engine to report
serving. The process exits with status 1 if the engine fails while starting
or does not come up in time. SIGINT or SIGTERM drains the engine within
lifecycle.shutdown_timeout.

Examples:
  # Start with default config location
  rpcwarden start

  # Start with a custom config file and PID file
  rpcwarden start --config /etc/rpcwarden/config.yaml --pid-file /run/rpcwarden.pid

  # Override settings through the environment
  RPCWARDEN_ENGINE_TYPE=grpc RPCWARDEN_LOGGING_LEVEL=DEBUG rpcwarden start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: none)")
}

// supervised pairs an engine with its controller.
type supervised struct {
	name   string
	engine config.Engine
	ctrl   *lifecycle.Controller
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "rpcwarden",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "rpcwarden",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()),
		"level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// The registry must exist before engines and controllers look up their
	// collectors.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	st := stats.New()
	if err := prometheus.RegisterStats(cfg.Engine.Name, st); err != nil {
		return fmt.Errorf("failed to register stats collector: %w", err)
	}

	eng, err := config.NewEngine(cfg.Engine, st)
	if err != nil {
		return err
	}

	lifecycleMetrics := metrics.NewLifecycleMetrics()
	opts := append(cfg.Lifecycle.ControllerOptions(), lifecycle.WithMetrics(lifecycleMetrics))

	primary := supervised{
		name:   cfg.Engine.Name,
		engine: eng,
		ctrl:   lifecycle.New(eng, cfg.Lifecycle.ControllerConfig(cfg.Engine.Name, cfg.Engine.Port), st, opts...),
	}

	var aux *supervised
	if mEng := config.NewMetricsEngine(cfg.Metrics, st); mEng != nil {
		aux = &supervised{
			name:   "metrics",
			engine: mEng,
			ctrl: lifecycle.New(mEng, cfg.Lifecycle.ControllerConfig("metrics", cfg.Metrics.Port), nil,
				lifecycle.WithStrictStartup(), lifecycle.WithMetrics(lifecycleMetrics)),
		}
	}

	if pidFile != "" {
		if err := writePidFile(pidFile); err != nil {
			return err
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	if aux != nil {
		if err := startOne(aux); err != nil {
			return err
		}
		logger.Info("Metrics enabled", logger.KeyAddress, aux.engine.Addr())
	}

	if err := startOne(&primary); err != nil {
		return errors.Join(err, shutdownAll(aux))
	}
	logger.Info("Engine is running. Press Ctrl+C to stop.",
		logger.KeyEngine, primary.name, logger.KeyEngineType, cfg.Engine.Type, logger.KeyAddress, primary.engine.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown", "signal", sig.String())
	case <-primary.ctrl.Runner().Done():
		if runErr = primary.ctrl.Runner().Err(); runErr != nil {
			logger.Error("Engine stopped unexpectedly", logger.KeyEngine, primary.name, logger.KeyError, runErr)
		} else {
			logger.Warn("Engine stopped unexpectedly", logger.KeyEngine, primary.name)
			runErr = fmt.Errorf("engine %s exited", primary.name)
		}
	}

	return errors.Join(runErr, shutdownAll(&primary, aux))
}

// startOne runs Startup and turns a silent failure, or an engine that
// already exited, into an error so the process exits non-zero.
func startOne(s *supervised) error {
	if err := s.ctrl.Startup(); err != nil {
		_ = s.ctrl.Shutdown()
		return fmt.Errorf("failed to start %s: %w", s.name, err)
	}
	if state := s.ctrl.State(); state.IsTerminal() {
		_ = s.ctrl.Shutdown()
		cause := s.ctrl.Runner().Err()
		if cause == nil {
			cause = errExitedEarly
		}
		return fmt.Errorf("failed to start %s (%s): %w", s.name, state, cause)
	}
	return nil
}

var errExitedEarly = errors.New("engine exited during startup")

// shutdownAll stops every engine in order and joins their errors.
func shutdownAll(list ...*supervised) error {
	var errs []error
	for _, s := range list {
		if s == nil {
			continue
		}
		if err := s.ctrl.Shutdown(); err != nil {
			logger.Error("Shutdown failed", logger.KeyEngine, s.name, logger.KeyError, err)
			errs = append(errs, err)
			continue
		}
		logger.Info("Engine stopped gracefully", logger.KeyEngine, s.name)
	}
	return errors.Join(errs...)
}
