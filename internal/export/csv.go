// Package export writes the history log to CSV, one line per measurement:
//
//	seqNb,dd/mm/yyyy,HH:MM:SS,type,value
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mlsorensen/bleframe"
)

// DefaultPrefix starts every exported file name.
const DefaultPrefix = "rame_data_"

const (
	dateLayout     = "02/01/2006"
	timeLayout     = "15:04:05"
	fileNameLayout = "2006_01_02-15h04m05s"
)

// FileName returns the export file name for a save made at t.
func FileName(prefix string, t time.Time) string {
	return prefix + t.Format(fileNameLayout) + ".csv"
}

// Line formats one measurement, including the trailing newline. Timestamps are
// written in their own location.
func Line(m bleframe.Measurement) string {
	return fmt.Sprintf("%d,%s,%s,%s,%s\n",
		m.SeqNb,
		m.Timestamp.Format(dateLayout),
		m.Timestamp.Format(timeLayout),
		m.Type,
		FormatValue(m.Value),
	)
}

// FormatValue prints the shortest decimal that round-trips, without exponent
// for the range a frame can carry. Negative zero prints as 0.
func FormatValue(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write writes history in the given order.
func Write(w io.Writer, history []bleframe.Measurement) error {
	bw := bufio.NewWriter(w)
	for _, m := range history {
		if _, err := bw.WriteString(Line(m)); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Save writes history to a new timestamped file in dir and returns its path.
func Save(dir, prefix string, history []bleframe.Measurement, now time.Time) (string, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, FileName(prefix, now))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if err := Write(f, history); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
