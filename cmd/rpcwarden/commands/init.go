package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/rpcwarden/internal/cli/prompt"
	"github.com/marmos91/rpcwarden/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample rpcwarden configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/rpcwarden/config.yaml.
Use --config to specify a custom path. When the file exists you are asked
before it is overwritten; --force skips the question.

Examples:
  # Initialize with default location
  rpcwarden init

  # Initialize with custom path
  rpcwarden init --config /etc/rpcwarden/config.yaml

  # Force overwrite existing config
  rpcwarden init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	force := initForce
	if _, err := os.Stat(configPath); err == nil && !force {
		ok, err := prompt.ConfirmOverwrite(configPath, false)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
		}
		force = true
	}

	if err := config.InitConfigToPath(configPath, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Pick an engine type (framed, grpc or http) and port")
	_, _ = fmt.Fprintln(out, "  2. Start the engine with: rpcwarden start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: rpcwarden start --config %s\n", configPath)
	return nil
}
