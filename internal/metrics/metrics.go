package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mlsorensen/bleframe"
)

// Metrics counts frames and measurements. It implements bleframe.FrameObserver.
type Metrics struct {
	registry *prometheus.Registry

	FramesReceived prometheus.Counter
	FramesRejected prometheus.Counter
	Measurements   *prometheus.CounterVec
	SequenceGaps   prometheus.Counter
	LastValue      *prometheus.GaugeVec

	mu      sync.Mutex
	lastSeq map[string]uint16
}

var _ bleframe.FrameObserver = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bleframe_frames_received_total",
			Help: "Notifications received from the device.",
		}),
		FramesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bleframe_frames_rejected_total",
			Help: "Notifications dropped for a frame size mismatch.",
		}),
		Measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bleframe_measurements_total",
			Help: "Decoded measurements by type.",
		}, []string{"type"}),
		SequenceGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bleframe_sequence_gaps_total",
			Help: "Sequence numbers skipped between consecutive measurements.",
		}),
		LastValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bleframe_last_value",
			Help: "Most recent decoded value.",
		}, []string{"device"}),

		lastSeq: make(map[string]uint16),
	}

	m.registry.MustRegister(
		m.FramesReceived,
		m.FramesRejected,
		m.Measurements,
		m.SequenceGaps,
		m.LastValue,
	)
	return m
}

// ObserveFrame counts a raw notification.
func (m *Metrics) ObserveFrame(_ []byte, decoded bool) {
	m.FramesReceived.Inc()
	if !decoded {
		m.FramesRejected.Inc()
	}
}

// ObserveMeasurement records a decoded measurement and counts the sequence
// numbers missing since the previous one from the same device, modulo 2^16.
func (m *Metrics) ObserveMeasurement(device string, meas bleframe.Measurement) {
	typ := meas.Type
	if !meas.HasType() {
		typ = "unknown"
	}
	m.Measurements.WithLabelValues(typ).Inc()
	m.LastValue.WithLabelValues(device).Set(meas.Value)

	m.mu.Lock()
	prev, seen := m.lastSeq[device]
	m.lastSeq[device] = meas.SeqNb
	m.mu.Unlock()

	if !seen {
		return
	}
	// uint16 arithmetic wraps, so 65535 -> 0 is a step of one
	if gap := meas.SeqNb - prev - 1; gap != 0 && gap != 0xFFFF {
		m.SequenceGaps.Add(float64(gap))
	}
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve runs the metrics HTTP server until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
