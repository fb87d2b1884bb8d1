package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mlsorensen/bleframe/internal/export"
	"github.com/mlsorensen/bleframe/internal/store"
)

type exportFlags struct {
	sqlitePath string
	device     string
	dir        string
	prefix     string
	limit      int
	stdout     bool
	wipe       bool
}

func newExportCmd(root *rootOptions) *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored measurements of a device as CSV",
		Long: `Read the measurement history recorded by "monitor --sqlite" and write it as
CSV, newest first, in the same format as the export on exit.`,
		Example: `  bleframe export --sqlite history.db --device RAME-01 --dir ./out
  bleframe export --sqlite history.db --device RAME-01 --stdout --limit 20
  bleframe export --sqlite history.db --device RAME-01 --dir ./out --wipe`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("sqlite") {
				flags.sqlitePath = root.cfg.SQLitePath
			}
			if !cmd.Flags().Changed("device") {
				flags.device = root.cfg.DeviceName
			}
			if !cmd.Flags().Changed("dir") {
				flags.dir = root.cfg.ExportDir
			}
			if !cmd.Flags().Changed("prefix") {
				flags.prefix = root.cfg.ExportPrefix
			}
			return runExport(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.sqlitePath, "sqlite", "", "SQLite database path (SQLITE_PATH)")
	cmd.Flags().StringVar(&flags.device, "device", "", "Device name (DEVICE_NAME); empty lists stored devices")
	cmd.Flags().StringVar(&flags.dir, "dir", "", "Output directory (EXPORT_DIR)")
	cmd.Flags().StringVar(&flags.prefix, "prefix", export.DefaultPrefix, "File name prefix (EXPORT_PREFIX)")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Only the N most recent measurements (0 = all)")
	cmd.Flags().BoolVar(&flags.stdout, "stdout", false, "Write CSV to stdout instead of a file")
	cmd.Flags().BoolVar(&flags.wipe, "wipe", false, "Delete the device's stored measurements once exported")
	cmd.MarkFlagsMutuallyExclusive("wipe", "limit")

	return cmd
}

func runExport(cmd *cobra.Command, flags *exportFlags) error {
	if flags.sqlitePath == "" {
		return fmt.Errorf("required flag --sqlite not set")
	}

	st, err := store.Open(flags.sqlitePath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if flags.device == "" {
		devices, err := st.Devices(ctx)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(out, "No stored measurements")
			return nil
		}
		fmt.Fprintln(out, "Stored devices (use --device):")
		for _, d := range devices {
			fmt.Fprintf(out, "  %s\n", d)
		}
		return nil
	}

	history, err := st.List(ctx, flags.device, flags.limit)
	if err != nil {
		return err
	}

	if flags.stdout {
		if err := export.Write(out, history); err != nil {
			return err
		}
	} else {
		if flags.dir == "" {
			return fmt.Errorf("required flag --dir not set (or use --stdout)")
		}
		path, err := export.Save(flags.dir, flags.prefix, history, time.Now())
		if err != nil {
			return err
		}
		slog.Info("history exported", "path", path, "records", len(history))
		fmt.Fprintln(out, path)
	}

	if !flags.wipe {
		return nil
	}
	if err := st.Wipe(ctx, flags.device); err != nil {
		return err
	}
	slog.Info("stored history wiped", "device", flags.device, "records", len(history))
	return nil
}
