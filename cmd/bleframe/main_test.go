package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mlsorensen/bleframe"
	"github.com/mlsorensen/bleframe/internal/store"
	"github.com/mlsorensen/bleframe/pkg/frame"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDecodeCmd(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr string
	}{
		{
			name: "hex",
			args: []string{"decode", "0d322b30303130353000000100"},
			want: "seq=1 type=data value=1.05\n",
		},
		{
			name: "hex with separators",
			args: []string{"decode", "0d:31:2d:30:31:32:35:30:30:00:ff:ff:00"},
			want: "seq=65535 type=info value=-12.5\n",
		},
		{
			name: "base64",
			args: []string{"decode", "--base64", "DTIrMDAxMDUwAAABAA=="},
			want: "seq=1 type=data value=1.05\n",
		},
		{
			name: "json with absent type",
			args: []string{"decode", "--output", "json", "0d632b30303130353000000100"},
			want: `{"input":"0d632b30303130353000000100","seq_nb":1,"value":1.05}` + "\n",
		},
		{
			name:    "short frame rejected",
			args:    []string{"decode", "0d322b303031303530000001"},
			want:    "rejected",
			wantErr: "1 of 1 frame(s) rejected",
		},
		{
			name:    "bad hex",
			args:    []string{"decode", "zz"},
			want:    "invalid hex",
			wantErr: "rejected",
		},
		{
			name:    "bad output",
			args:    []string{"decode", "--output", "xml", "00"},
			wantErr: "invalid output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				if !strings.Contains(out, tt.want) {
					t.Fatalf("output = %q, want it to contain %q", out, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tt.want {
				t.Fatalf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "bleframe version dev\n") {
		t.Fatalf("output = %q", out)
	}
}

func TestExportCmd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)
	for i, v := range []float64{1.5, -2} {
		m := bleframe.Measurement{
			Reading:   frame.Reading{Type: frame.TypeData, Value: v, SeqNb: uint16(i + 1)},
			Timestamp: at,
		}
		if err := st.Insert(context.Background(), "RAME-01", m); err != nil {
			t.Fatal(err)
		}
	}
	st.Close()

	if _, err := execute(t, "export"); err == nil || !strings.Contains(err.Error(), "--sqlite") {
		t.Fatalf("missing --sqlite: err = %v", err)
	}

	out, err := execute(t, "export", "--sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "RAME-01") {
		t.Fatalf("device listing = %q", out)
	}

	out, err = execute(t, "export", "--sqlite", dbPath, "--device", "RAME-01", "--stdout")
	if err != nil {
		t.Fatal(err)
	}
	want := "2,04/03/2026,05:06:07,data,-2\n1,04/03/2026,05:06:07,data,1.5\n"
	if out != want {
		t.Fatalf("csv = %q, want %q", out, want)
	}

	outDir := filepath.Join(dir, "out")
	out, err = execute(t, "export", "--sqlite", dbPath, "--device", "RAME-01", "--dir", outDir, "--prefix", "x_")
	if err != nil {
		t.Fatal(err)
	}
	path := strings.TrimSpace(out)
	if filepath.Dir(path) != outDir || !strings.HasPrefix(filepath.Base(path), "x_") {
		t.Fatalf("saved to %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != want {
		t.Fatalf("file = %q, want %q", data, want)
	}

	if _, err := execute(t, "export", "--sqlite", dbPath, "--device", "RAME-01", "--stdout", "--wipe", "--limit", "1"); err == nil {
		t.Fatal("--wipe with --limit should be rejected")
	}

	out, err = execute(t, "export", "--sqlite", dbPath, "--device", "RAME-01", "--stdout", "--wipe")
	if err != nil {
		t.Fatal(err)
	}
	if out != want {
		t.Fatalf("csv before wipe = %q, want %q", out, want)
	}

	out, err = execute(t, "export", "--sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No stored measurements") {
		t.Fatalf("device listing after wipe = %q", out)
	}
}
