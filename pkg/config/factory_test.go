package config

import (
	"testing"
	"time"

	"github.com/marmos91/rpcwarden/pkg/engine/framed"
	"github.com/marmos91/rpcwarden/pkg/engine/grpcengine"
	"github.com/marmos91/rpcwarden/pkg/engine/httpengine"
	"github.com/marmos91/rpcwarden/pkg/lifecycle"
	"github.com/marmos91/rpcwarden/pkg/stats"
)

func TestNewEngine_Types(t *testing.T) {
	tests := []struct {
		typ   string
		check func(Engine) bool
	}{
		{EngineFramed, func(e Engine) bool { _, ok := e.(*framed.Engine); return ok }},
		{EngineGRPC, func(e Engine) bool { _, ok := e.(*grpcengine.Engine); return ok }},
		{EngineHTTP, func(e Engine) bool { _, ok := e.(*httpengine.Engine); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			cfg := GetDefaultConfig().Engine
			cfg.Type = tt.typ
			cfg.Port = 0

			e, err := NewEngine(cfg, stats.New())
			if err != nil {
				t.Fatalf("NewEngine failed: %v", err)
			}
			if !tt.check(e) {
				t.Errorf("Unexpected engine implementation %T", e)
			}
			if !e.IsStopped() || e.IsServing() {
				t.Error("A new engine must report stopped and not serving")
			}
		})
	}
}

func TestNewEngine_Unknown(t *testing.T) {
	if _, err := NewEngine(EngineConfig{Type: "udp"}, nil); err == nil {
		t.Fatal("Expected error for unknown engine type")
	}
}

func TestNewEngine_Supervised(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Engine.BindAddress = "127.0.0.1"
	cfg.Engine.Port = 0
	cfg.Lifecycle.CheckInterval = 10 * time.Millisecond

	st := stats.New()
	e, err := NewEngine(cfg.Engine, st)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	ctrl := lifecycle.New(e, cfg.Lifecycle.ControllerConfig(cfg.Engine.Name, cfg.Engine.Port), st,
		cfg.Lifecycle.ControllerOptions()...)
	if err := ctrl.Startup(); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	if e.Addr() == "" {
		t.Error("Expected a bound address after startup")
	}
	if err := ctrl.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if ctrl.Stats() != st {
		t.Error("Stats must pass through the sink given to the controller")
	}
}

func TestNewMetricsEngine(t *testing.T) {
	if e := NewMetricsEngine(MetricsConfig{}, nil); e != nil {
		t.Error("Expected nil engine when metrics are disabled")
	}
	if e := NewMetricsEngine(MetricsConfig{Enabled: true, Port: 9090}, nil); e == nil {
		t.Error("Expected an engine when metrics are enabled")
	}
}

func TestLifecycleConfig_ControllerOptions(t *testing.T) {
	if n := len((LifecycleConfig{}).ControllerOptions()); n != 0 {
		t.Errorf("Expected no options, got %d", n)
	}
	if n := len((LifecycleConfig{StrictStartup: true}).ControllerOptions()); n != 1 {
		t.Errorf("Expected one option, got %d", n)
	}

	lc := LifecycleConfig{StartupTimeout: time.Second, ShutdownTimeout: 2 * time.Second, CheckInterval: time.Millisecond}
	got := lc.ControllerConfig("framed", 4520)
	if got.Name != "framed" || got.Port != 4520 || got.StartupTimeout != time.Second ||
		got.ShutdownTimeout != 2*time.Second || got.CheckInterval != time.Millisecond {
		t.Errorf("Unexpected controller config: %+v", got)
	}
}

func TestNewEngine_FramedSettings(t *testing.T) {
	cfg := GetDefaultConfig().Engine
	cfg.MaxConnections = 8
	cfg.DrainTimeout = 2 * time.Second
	cfg.MetricsLogInterval = 30 * time.Second

	e, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	fe, ok := e.(*framed.Engine)
	if !ok {
		t.Fatalf("Expected *framed.Engine, got %T", e)
	}
	if got := fe.Config; got.MaxConnections != 8 || got.DrainTimeout != 2*time.Second ||
		got.MetricsLogInterval != 30*time.Second || got.Port != DefaultEnginePort {
		t.Errorf("Engine settings not carried through: %+v", got)
	}
}
