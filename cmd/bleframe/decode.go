package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mlsorensen/bleframe/internal/export"
	"github.com/mlsorensen/bleframe/pkg/frame"
)

type decodeFlags struct {
	base64 bool
	output string
}

func newDecodeCmd() *cobra.Command {
	flags := &decodeFlags{}

	cmd := &cobra.Command{
		Use:   "decode <frame>...",
		Short: "Decode raw frames given on the command line",
		Long: `Decode one or more 13-byte frames without a device. Frames are hex by default
(spaces and colons are ignored) or base64 with --base64.

Every argument produces one line. Rejected frames are reported and make the
command exit non-zero after all arguments are processed.`,
		Example: `  bleframe decode 0d322b30303130353000000100
  bleframe decode --base64 DTIrMDAxMDUwAAABAA==
  bleframe decode --output json "0d 31 2d 30 31 32 35 30 30 00 ff ff 00"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, flags, args)
		},
	}

	cmd.Flags().BoolVar(&flags.base64, "base64", false, "Arguments are base64 instead of hex")
	cmd.Flags().StringVar(&flags.output, "output", "text", "Output format: text|json")

	return cmd
}

type decodedJSON struct {
	Input string  `json:"input"`
	SeqNb uint16  `json:"seq_nb"`
	Type  string  `json:"type,omitempty"`
	Value float64 `json:"value"`
	Error string  `json:"error,omitempty"`
}

func runDecode(cmd *cobra.Command, flags *decodeFlags, args []string) error {
	if flags.output != "text" && flags.output != "json" {
		return fmt.Errorf("invalid output format '%s'; must be 'text' or 'json'", flags.output)
	}

	out := cmd.OutOrStdout()
	rejected := 0
	for _, arg := range args {
		raw, err := decodeInput(arg, flags.base64)
		var r frame.Reading
		if err == nil {
			r, err = frame.Parse(raw)
		}
		if err != nil {
			rejected++
		}

		if flags.output == "json" {
			line := decodedJSON{Input: arg}
			if err != nil {
				line.Error = err.Error()
			} else {
				line.SeqNb, line.Type, line.Value = r.SeqNb, r.Type, r.Value
			}
			data, merr := json.Marshal(line)
			if merr != nil {
				return fmt.Errorf("marshal JSON: %w", merr)
			}
			fmt.Fprintf(out, "%s\n", data)
			continue
		}

		if err != nil {
			fmt.Fprintf(out, "%s: rejected: %v\n", arg, err)
			continue
		}
		fmt.Fprintf(out, "seq=%d type=%s value=%s\n", r.SeqNb, r.Type, export.FormatValue(r.Value))
	}

	if rejected > 0 {
		return fmt.Errorf("%d of %d frame(s) rejected", rejected, len(args))
	}
	return nil
}

func decodeInput(s string, isBase64 bool) ([]byte, error) {
	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		return b, nil
	}

	clean := strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}
