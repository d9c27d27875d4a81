package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/feedpager/pkg/config"
)

var (
	initForce bool
	initURL   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample feedpager configuration file holding the defaults.

By default, the configuration file is created at $XDG_CONFIG_HOME/feedpager/feedpager.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  feedpager init --url https://api.example.com/feed

  # Force overwrite existing config
  feedpager init --config ./feedpager.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().StringVar(&initURL, "url", "", "Page endpoint written to source.base_url")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check config file: %w", err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Source.BaseURL = initURL
	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	if initURL == "" {
		fmt.Fprintln(out, "Set source.base_url (or FEEDPAGER_SOURCE_BASE_URL) before running:")
	}
	fmt.Fprintf(out, "  feedpager run --config %s\n", path)
	return nil
}
