package export

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mlsorensen/bleframe"
	"github.com/mlsorensen/bleframe/pkg/frame"
)

var at = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func TestLine(t *testing.T) {
	tests := []struct {
		name string
		m    bleframe.Measurement
		want string
	}{
		{
			"data",
			bleframe.Measurement{Reading: frame.Reading{Type: "data", Value: 1.05, SeqNb: 1}, Timestamp: at},
			"1,03/02/2026,04:05:06,data,1.05\n",
		},
		{
			"negative info",
			bleframe.Measurement{Reading: frame.Reading{Type: "info", Value: -123.456, SeqNb: 65535}, Timestamp: at},
			"65535,03/02/2026,04:05:06,info,-123.456\n",
		},
		{
			"absent type",
			bleframe.Measurement{Reading: frame.Reading{Value: 10, SeqNb: 2}, Timestamp: at},
			"2,03/02/2026,04:05:06,,10\n",
		},
		{
			"negative zero",
			bleframe.Measurement{Reading: frame.Reading{Type: "data", Value: math.Copysign(0, -1)}, Timestamp: at},
			"0,03/02/2026,04:05:06,data,0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Line(tt.m); got != tt.want {
				t.Fatalf("Line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	if got, want := FileName(DefaultPrefix, at), "rame_data_2026_02_03-04h05m06s.csv"; got != want {
		t.Fatalf("FileName = %q, want %q", got, want)
	}
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	history := []bleframe.Measurement{
		{Reading: frame.Reading{Type: "data", Value: 2, SeqNb: 2}, Timestamp: at},
		{Reading: frame.Reading{Type: "data", Value: 1, SeqNb: 1}, Timestamp: at},
	}

	path, err := Save(dir, "", history, at)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != FileName(DefaultPrefix, at) {
		t.Fatalf("path = %s", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "2,03/02/2026,04:05:06,data,2\n1,03/02/2026,04:05:06,data,1\n"
	if string(got) != want {
		t.Fatalf("file = %q, want %q", got, want)
	}

	// a second save in the same second must not clobber the first
	if _, err := Save(dir, "", history, at); err == nil {
		t.Fatal("expected an error for an existing file")
	}
}

func TestWrite_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %q", buf.String())
	}
}
