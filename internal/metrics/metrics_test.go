package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mlsorensen/bleframe"
	"github.com/mlsorensen/bleframe/pkg/frame"
)

func meas(typ string, seq uint16, v float64) bleframe.Measurement {
	return bleframe.Measurement{Reading: frame.Reading{Type: typ, Value: v, SeqNb: seq}}
}

func TestObserveFrame(t *testing.T) {
	m := New()
	m.ObserveFrame(make([]byte, 13), true)
	m.ObserveFrame(make([]byte, 12), false)
	m.ObserveFrame(nil, false)

	if got := testutil.ToFloat64(m.FramesReceived); got != 3 {
		t.Errorf("received = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.FramesRejected); got != 2 {
		t.Errorf("rejected = %v, want 2", got)
	}
}

func TestObserveMeasurement(t *testing.T) {
	m := New()

	m.ObserveMeasurement("a", meas("data", 1, 1.5))
	m.ObserveMeasurement("a", meas("data", 2, 2.5))
	m.ObserveMeasurement("a", meas("info", 5, 3.5)) // skips 3 and 4
	m.ObserveMeasurement("a", meas("", 6, -1))
	m.ObserveMeasurement("b", meas("data", 100, 7)) // first from b

	if got := testutil.ToFloat64(m.Measurements.WithLabelValues("data")); got != 3 {
		t.Errorf("data = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Measurements.WithLabelValues("info")); got != 1 {
		t.Errorf("info = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Measurements.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unknown = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SequenceGaps); got != 2 {
		t.Errorf("gaps = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LastValue.WithLabelValues("a")); got != -1 {
		t.Errorf("last a = %v, want -1", got)
	}
	if got := testutil.ToFloat64(m.LastValue.WithLabelValues("b")); got != 7 {
		t.Errorf("last b = %v, want 7", got)
	}
}

func TestSequenceGaps_wraparound(t *testing.T) {
	tests := []struct {
		name     string
		seqs     []uint16
		wantGaps float64
	}{
		{"wrap without gap", []uint16{65534, 65535, 0, 1}, 0},
		{"wrap with gap", []uint16{65534, 1}, 2},
		{"repeat", []uint16{7, 7}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			for _, s := range tt.seqs {
				m.ObserveMeasurement("dev", meas("data", s, 0))
			}
			if got := testutil.ToFloat64(m.SequenceGaps); got != tt.wantGaps {
				t.Fatalf("gaps = %v, want %v", got, tt.wantGaps)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveFrame(make([]byte, 13), true)
	m.ObserveMeasurement("dev", meas("data", 1, 1.05))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	for _, want := range []string{
		"bleframe_frames_received_total 1",
		`bleframe_measurements_total{type="data"} 1`,
		`bleframe_last_value{device="dev"} 1.05`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}
