package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mlsorensen/bleframe/internal/config"
	"github.com/mlsorensen/bleframe/internal/logging"

	// Registers every device driver with the bleframe registry.
	_ "github.com/mlsorensen/bleframe/pkg/devices/all"
)

const appName = "bleframe"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootOptions is shared by every subcommand. cfg is filled in before a
// subcommand runs.
type rootOptions struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Decode measurement frames from a BLE peripheral",
		Long: `bleframe connects to a Bluetooth Low Energy peripheral, subscribes to its
notification characteristic and decodes the 13-byte measurement frames it sends.

Configuration comes from environment variables, then an optional YAML file
(--config), then defaults. Command flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL: debug|info|warn|error")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newMonitorCmd(opts))
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newExportCmd(opts))

	return rootCmd
}

// load reads the configuration and installs the default logger.
func (o *rootOptions) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if o.logLevel != "" {
		level, err := config.ParseLogLevel(o.logLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	o.cfg = cfg

	slog.SetDefault(logging.New(os.Stderr, cfg, version, appName))
	return nil
}
