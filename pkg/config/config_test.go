package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/rpcwarden/internal/bytesize"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
engine:
  type: grpc
  name: api
  port: 7000
  max_frame_size: 4MiB
  drain_timeout: 3s
  metrics_log_interval: 1m
lifecycle:
  startup_timeout: 10s
  shutdown_timeout: 5s
  check_interval: 250ms
  strict_startup: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected json format, got %q", cfg.Logging.Format)
	}
	if cfg.Engine.Type != EngineGRPC || cfg.Engine.Name != "api" || cfg.Engine.Port != 7000 {
		t.Errorf("Unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Engine.MaxFrameSize != 4*bytesize.MiB {
		t.Errorf("Expected 4MiB frame size, got %s", cfg.Engine.MaxFrameSize)
	}
	if cfg.Engine.DrainTimeout != 3*time.Second {
		t.Errorf("Expected 3s drain timeout, got %s", cfg.Engine.DrainTimeout)
	}
	if cfg.Engine.MetricsLogInterval != time.Minute {
		t.Errorf("Expected 1m metrics log interval, got %s", cfg.Engine.MetricsLogInterval)
	}
	if cfg.Lifecycle.StartupTimeout != 10*time.Second {
		t.Errorf("Expected 10s startup timeout, got %s", cfg.Lifecycle.StartupTimeout)
	}
	if cfg.Lifecycle.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected 5s shutdown timeout, got %s", cfg.Lifecycle.ShutdownTimeout)
	}
	if cfg.Lifecycle.CheckInterval != 250*time.Millisecond {
		t.Errorf("Expected 250ms check interval, got %s", cfg.Lifecycle.CheckInterval)
	}
	if !cfg.Lifecycle.StrictStartup {
		t.Error("Expected strict_startup to be true")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Port != DefaultEnginePort {
		t.Errorf("Expected default port %d, got %d", DefaultEnginePort, cfg.Engine.Port)
	}
	if cfg.Lifecycle.CheckInterval != time.Second {
		t.Errorf("Expected 1s check interval, got %s", cfg.Lifecycle.CheckInterval)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "engine:\n  type: framed\n")
	t.Setenv("RPCWARDEN_LIFECYCLE_STARTUP_TIMEOUT", "7s")
	t.Setenv("RPCWARDEN_ENGINE_TYPE", "http")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Lifecycle.StartupTimeout != 7*time.Second {
		t.Errorf("Expected env override of 7s, got %s", cfg.Lifecycle.StartupTimeout)
	}
	if cfg.Engine.Type != EngineHTTP {
		t.Errorf("Expected env override to http, got %q", cfg.Engine.Type)
	}
}

func TestLoad_ExplicitZeroPort(t *testing.T) {
	path := writeConfig(t, "engine:\n  port: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Port != 0 {
		t.Errorf("Expected explicit port 0 to be kept, got %d", cfg.Engine.Port)
	}
}

func TestLoad_InvalidInterval(t *testing.T) {
	path := writeConfig(t, `
lifecycle:
  startup_timeout: 1s
  check_interval: 2s
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Expected validation error when check_interval exceeds startup_timeout")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "logging: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Engine.Type = EngineHTTP
	cfg.Engine.Name = "web"
	cfg.Engine.MaxFrameSize = 512 * bytesize.KiB
	cfg.Lifecycle.StartupTimeout = 12 * time.Second

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Engine.Name != "web" || loaded.Engine.Type != EngineHTTP {
		t.Errorf("Engine not preserved: %+v", loaded.Engine)
	}
	if loaded.Engine.MaxFrameSize != 512*bytesize.KiB {
		t.Errorf("Expected 512KiB, got %s", loaded.Engine.MaxFrameSize)
	}
	if loaded.Lifecycle.StartupTimeout != 12*time.Second {
		t.Errorf("Expected 12s, got %s", loaded.Lifecycle.StartupTimeout)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := GetConfigDir(); got != filepath.Join(dir, "rpcwarden") {
		t.Errorf("Unexpected config dir %q", got)
	}
	if DefaultConfigExists() {
		t.Error("Expected no default config in a fresh directory")
	}
}
