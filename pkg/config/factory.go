package config

import (
	"fmt"

	"github.com/marmos91/rpcwarden/pkg/engine"
	"github.com/marmos91/rpcwarden/pkg/engine/framed"
	"github.com/marmos91/rpcwarden/pkg/engine/grpcengine"
	"github.com/marmos91/rpcwarden/pkg/engine/httpengine"
	"github.com/marmos91/rpcwarden/pkg/lifecycle"
	"github.com/marmos91/rpcwarden/pkg/metrics"
	"github.com/marmos91/rpcwarden/pkg/stats"
	"google.golang.org/grpc"
)

// Engine is a supervised engine that can report its bound address.
type Engine interface {
	lifecycle.Engine
	Addr() string
}

// NewEngine builds the engine selected by cfg.Type. st receives request and
// connection events and may be nil.
func NewEngine(cfg EngineConfig, st *stats.ServerStats) (Engine, error) {
	switch cfg.Type {
	case EngineFramed:
		mux := framed.NewMux()
		framed.RegisterBuiltins(mux, st)
		return framed.New(framed.Config{
			Config: engine.Config{
				BindAddress:    cfg.BindAddress,
				Port:           cfg.Port,
				MaxConnections: cfg.MaxConnections,
				DrainTimeout:   cfg.DrainTimeout,

				MetricsLogInterval: cfg.MetricsLogInterval,
			},
			MaxFrameSize: cfg.MaxFrameSize.Int(),
			Timeouts: framed.Timeouts{
				Read:  cfg.Timeouts.Read,
				Write: cfg.Timeouts.Write,
				Idle:  cfg.Timeouts.Idle,
			},
		}, cfg.Name, mux, st, metrics.NewConnectionMetrics(cfg.Name)), nil

	case EngineGRPC:
		opts := []grpc.ServerOption{
			grpc.ChainUnaryInterceptor(grpcengine.UnaryInterceptor(st)),
			grpc.MaxRecvMsgSize(cfg.MaxFrameSize.Int()),
		}
		if cfg.Timeouts.Read > 0 {
			opts = append(opts, grpc.ConnectionTimeout(cfg.Timeouts.Read))
		}
		return grpcengine.New(grpcengine.Config{
			BindAddress:  cfg.BindAddress,
			Port:         cfg.Port,
			DrainTimeout: cfg.DrainTimeout,
			Options:      opts,
		}, cfg.Name), nil

	case EngineHTTP:
		return httpengine.New(httpengine.Config{
			BindAddress:  cfg.BindAddress,
			Port:         cfg.Port,
			DrainTimeout: cfg.DrainTimeout,
			ReadTimeout:  cfg.Timeouts.Read,
			WriteTimeout: cfg.Timeouts.Write,
			IdleTimeout:  cfg.Timeouts.Idle,
		}, cfg.Name, httpengine.ServiceRoutes(st)), nil

	default:
		return nil, fmt.Errorf("unknown engine type %q (want %s, %s or %s)",
			cfg.Type, EngineFramed, EngineGRPC, EngineHTTP)
	}
}

// NewMetricsEngine builds the HTTP engine serving /metrics, /stats and
// /healthz. It returns nil when metrics are disabled.
func NewMetricsEngine(cfg MetricsConfig, st *stats.ServerStats) *httpengine.Engine {
	if !cfg.Enabled {
		return nil
	}
	return httpengine.New(httpengine.Config{
		BindAddress: cfg.BindAddress,
		Port:        cfg.Port,
	}, "metrics", httpengine.MetricsRoutes(st))
}

// ControllerConfig maps the lifecycle section onto a lifecycle.Config for
// the named engine.
func (c LifecycleConfig) ControllerConfig(name string, port int) lifecycle.Config {
	return lifecycle.Config{
		Name:            name,
		Port:            port,
		StartupTimeout:  c.StartupTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
		CheckInterval:   c.CheckInterval,
	}
}

// ControllerOptions returns the options implied by the lifecycle section.
func (c LifecycleConfig) ControllerOptions() []lifecycle.Option {
	var opts []lifecycle.Option
	if c.StrictStartup {
		opts = append(opts, lifecycle.WithStrictStartup())
	}
	return opts
}
