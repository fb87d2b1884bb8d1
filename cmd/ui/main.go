package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/mlsorensen/bleframe"
	"github.com/mlsorensen/bleframe/internal/app"
	"github.com/mlsorensen/bleframe/internal/config"
	"github.com/mlsorensen/bleframe/internal/export"
	"github.com/mlsorensen/bleframe/internal/logging"
	"github.com/mlsorensen/bleframe/internal/session"

	// This tells the Go compiler to include the package, which runs its init()
	// function. The init() function, in turn, calls bleframe.Register().
	_ "github.com/mlsorensen/bleframe/pkg/devices/all"
)

const (
	appName = "bleframe-ui"
	version = "dev"
)

var errRunning = errors.New("already monitoring a device")

// monitor owns the device connection started from the UI.
type monitor struct {
	cfg  config.Config
	sess *session.Session

	mu     sync.Mutex
	dev    bleframe.Device
	cancel context.CancelFunc
	done   chan struct{}
}

// start selects and connects to the configured device, then feeds its
// measurements into the session until stop is called. onMeasurement runs on
// the consumer goroutine. onEnded runs there too if the device goes away on
// its own, after the monitor has released it.
func (m *monitor) start(onMeasurement app.MeasurementObserver, onEnded func(error)) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev != nil {
		return "", errRunning
	}

	found, err := app.SelectDevice(m.cfg)
	if err != nil {
		return "", err
	}
	dev, err := bleframe.NewDeviceForFound(found, bleframe.Options{
		ServiceUUID:        m.cfg.ServiceUUID,
		CharacteristicUUID: m.cfg.CharacteristicUUID,
	})
	if err != nil {
		return "", err
	}
	updates, err := dev.Connect()
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", found.Name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	pipe := &app.Pipeline{Device: found.Name, Session: m.sess, Observer: onMeasurement}
	go func() {
		defer close(done)
		n, linkErr := pipe.Consume(ctx, updates)
		slog.Info("update stream ended", "device", found.Name, "measurements", n)
		if ctx.Err() != nil || !m.release(done) {
			return
		}
		cancel()
		if err := dev.Disconnect(); err != nil {
			slog.Warn("disconnect", "device", dev.DeviceName(), "error", err)
		}
		if onEnded == nil {
			return
		}
		if linkErr != nil {
			onEnded(fmt.Errorf("%w: %w", app.ErrDeviceClosed, linkErr))
		} else {
			onEnded(fmt.Errorf("%s: %w", found.Name, app.ErrDeviceClosed))
		}
	}()

	m.dev, m.cancel, m.done = dev, cancel, done
	return dev.DeviceName(), nil
}

// release forgets the device started with done. It reports false when stop
// already took it.
func (m *monitor) release(done chan struct{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != done {
		return false
	}
	m.dev, m.cancel, m.done = nil, nil, nil
	return true
}

// stop disconnects the device, if any, and waits for the consumer to exit.
func (m *monitor) stop() {
	m.mu.Lock()
	dev, cancel, done := m.dev, m.cancel, m.done
	m.dev, m.cancel, m.done = nil, nil, nil
	m.mu.Unlock()

	if dev == nil {
		return
	}
	cancel()
	if err := dev.Disconnect(); err != nil {
		slog.Warn("disconnect", "device", dev.DeviceName(), "error", err)
	}
	<-done
}

// refresher redraws the view after every measurement.
type refresher struct{ v *view }

func (r refresher) ObserveMeasurement(string, bleframe.Measurement) {
	fyne.Do(r.v.refresh)
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stderr, cfg, version, appName))

	a := fyneapp.New()
	w := a.NewWindow("bleframe")

	sess := session.New(cfg.WindowSize)
	v := newView(sess)
	mon := &monitor{cfg: cfg, sess: sess}

	var startButton, stopButton *widget.Button
	startButton = widget.NewButton("Start", func() {
		startButton.Disable()
		v.setStatus("connecting...")
		go func() {
			name, err := mon.start(refresher{v}, func(err error) {
				slog.Error("device lost", "error", err)
				fyne.Do(func() {
					v.setStatus("disconnected")
					stopButton.Disable()
					startButton.Enable()
					dialog.ShowError(err, w)
				})
			})
			fyne.Do(func() {
				if err != nil {
					slog.Error("start monitoring", "error", err)
					v.setStatus("stopped")
					startButton.Enable()
					dialog.ShowError(err, w)
					return
				}
				v.setDevice(name)
				v.setStatus("connected")
				stopButton.Enable()
			})
		}()
	})
	stopButton = widget.NewButton("Stop", func() {
		stopButton.Disable()
		go func() {
			mon.stop()
			fyne.Do(func() {
				v.setStatus("stopped")
				startButton.Enable()
			})
		}()
	})
	stopButton.Disable()

	wipeButton := widget.NewButton("Wipe", func() {
		sess.Wipe()
		v.refresh()
	})

	saveButton := widget.NewButton("Save", func() {
		dir := cfg.ExportDir
		if dir == "" {
			dir = "."
		}
		path, err := export.Save(dir, cfg.ExportPrefix, sess.History(), time.Now())
		if err != nil {
			slog.Error("save history", "error", err)
			dialog.ShowError(err, w)
			return
		}
		slog.Info("history exported", "path", path, "records", sess.Len())
		dialog.ShowInformation("Saved", path, w)
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		slog.Info("shutdown signal received", "signal", sig.String())
		fyne.Do(a.Quit)
	}()

	w.SetContent(v.content(startButton, stopButton, wipeButton, saveButton))
	w.Resize(fyne.NewSize(420, 560))
	w.ShowAndRun()

	mon.stop()
}
