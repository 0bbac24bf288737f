package config

import (
	"fmt"

	"github.com/marmos91/rpcwarden/internal/cli/output"
	"github.com/marmos91/rpcwarden/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the rpcwarden configuration file.

Checks for syntax errors, missing required fields and invalid values,
including a check interval longer than either lifecycle timeout.

Examples:
  rpcwarden config validate
  rpcwarden config validate --config /etc/rpcwarden/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Engine.Port == 0 {
		warnings = append(warnings, "engine.port is 0: the engine binds a random free port")
	}
	if cfg.Engine.DrainTimeout > cfg.Lifecycle.ShutdownTimeout {
		warnings = append(warnings, fmt.Sprintf(
			"engine.drain_timeout (%s) exceeds lifecycle.shutdown_timeout (%s): shutdown may time out while draining",
			cfg.Engine.DrainTimeout, cfg.Lifecycle.ShutdownTimeout))
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Engine.Port {
		warnings = append(warnings, "metrics.port equals engine.port")
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(w, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(w, "\nWarnings:")
		for _, msg := range warnings {
			_, _ = fmt.Fprintf(w, "  - %s\n", msg)
		}
	}

	_, _ = fmt.Fprintln(w, "\nConfiguration summary:")
	return output.PrintKeyValues(w, [][2]string{
		{"Engine", fmt.Sprintf("%s (%s)", cfg.Engine.Name, cfg.Engine.Type)},
		{"Port", fmt.Sprint(cfg.Engine.Port)},
		{"Startup timeout", cfg.Lifecycle.StartupTimeout.String()},
		{"Shutdown timeout", cfg.Lifecycle.ShutdownTimeout.String()},
		{"Check interval", cfg.Lifecycle.CheckInterval.String()},
		{"Strict startup", fmt.Sprint(cfg.Lifecycle.StrictStartup)},
		{"Log level", cfg.Logging.Level},
	})
}
