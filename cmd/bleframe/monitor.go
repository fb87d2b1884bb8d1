package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mlsorensen/bleframe/internal/app"
	"github.com/mlsorensen/bleframe/internal/config"
)

type monitorFlags struct {
	device      string
	prefix      string
	exportDir   string
	sqlitePath  string
	mqttBroker  string
	metricsAddr string
	window      int
}

func newMonitorCmd(root *rootOptions) *cobra.Command {
	flags := &monitorFlags{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Connect to a device and decode its frames until interrupted",
		Long: `Connect to a peripheral and decode every notification it sends. Decoded
measurements go to the log and, when configured, to SQLite, MQTT and the
Prometheus endpoint. On Ctrl+C the session history is written as CSV to the
export directory.

A device name starting with MOCK uses the built-in simulator and needs no
Bluetooth adapter.`,
		Example: `  # Simulated device, export on exit
  bleframe monitor --device MOCK-1 --export-dir ./out

  # First device whose name starts with RAME, with metrics
  bleframe monitor --prefix RAME --metrics-addr :9100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := flags.apply(cmd, root.cfg)
			return runMonitor(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&flags.device, "device", "", "Exact device name (DEVICE_NAME)")
	cmd.Flags().StringVar(&flags.prefix, "prefix", "", "Device name prefix to scan for (DEVICE_PREFIX)")
	cmd.Flags().StringVar(&flags.exportDir, "export-dir", "", "Directory for the CSV export (EXPORT_DIR)")
	cmd.Flags().StringVar(&flags.sqlitePath, "sqlite", "", "SQLite database path (SQLITE_PATH)")
	cmd.Flags().StringVar(&flags.mqttBroker, "mqtt-broker", "", "MQTT broker host (MQTT_BROKER)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Listen address for /metrics (METRICS_ADDR)")
	cmd.Flags().IntVar(&flags.window, "window", 0, "Number of prior values kept (WINDOW_SIZE)")

	return cmd
}

// apply overrides cfg with the flags that were set on the command line.
func (f *monitorFlags) apply(cmd *cobra.Command, cfg config.Config) config.Config {
	changed := cmd.Flags().Changed
	if changed("device") {
		cfg.DeviceName = f.device
	}
	if changed("prefix") {
		cfg.DevicePrefix = f.prefix
	}
	if changed("export-dir") {
		cfg.ExportDir = f.exportDir
	}
	if changed("sqlite") {
		cfg.SQLitePath = f.sqlitePath
	}
	if changed("mqtt-broker") {
		cfg.MQTTBroker = f.mqttBroker
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if changed("window") && f.window > 0 {
		cfg.WindowSize = f.window
	}
	return cfg
}

func runMonitor(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting", "app", appName, "version", version)

	err := app.Run(ctx, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("shutting down")
	return nil
}
