package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mlsorensen/bleframe"
)

type scanFlags struct {
	timeout  time.Duration
	prefixes []string
	output   string
}

func newScanCmd(root *rootOptions) *cobra.Command {
	flags := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List nearby BLE peripherals",
		Long: `Scan for advertising BLE peripherals and print the ones whose local name
starts with one of the given prefixes. Without --prefix every named device is listed.`,
		Example: `  # Scan for 15 seconds
  bleframe scan --timeout 15s

  # Only devices whose name starts with RAME
  bleframe scan --prefix RAME --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("timeout") {
				flags.timeout = root.cfg.ScanTimeout
			}
			if len(flags.prefixes) == 0 && root.cfg.DevicePrefix != "" {
				flags.prefixes = []string{root.cfg.DevicePrefix}
			}
			return runScan(cmd, flags)
		},
	}

	cmd.Flags().DurationVar(&flags.timeout, "timeout", 10*time.Second, "Scan duration (default SCAN_TIMEOUT)")
	cmd.Flags().StringSliceVar(&flags.prefixes, "prefix", nil, "Device name prefix to match (repeatable)")
	cmd.Flags().StringVar(&flags.output, "output", "text", "Output format: text|json")

	return cmd
}

func runScan(cmd *cobra.Command, flags *scanFlags) error {
	if flags.output != "text" && flags.output != "json" {
		return fmt.Errorf("invalid output format '%s'; must be 'text' or 'json'", flags.output)
	}

	prefixes := flags.prefixes
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}

	devices, err := bleframe.Scan(flags.timeout, prefixes...)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	out := cmd.OutOrStdout()
	if flags.output == "json" {
		type jsonDevice struct {
			Name string `json:"name"`
			ID   string `json:"id"`
			RSSI int    `json:"rssi"`
		}
		list := make([]jsonDevice, 0, len(devices))
		for _, d := range devices {
			list = append(list, jsonDevice{Name: d.Name, ID: d.ID, RSSI: d.RSSI})
		}
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	}

	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices found")
		return nil
	}
	fmt.Fprintf(out, "Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		fmt.Fprintf(out, "%d: Name: %s\n", i+1, d.Name)
		fmt.Fprintf(out, "   ID:   %s\n", d.ID)
		fmt.Fprintf(out, "   RSSI: %d\n", d.RSSI)
	}
	return nil
}
