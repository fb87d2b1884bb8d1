package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mlsorensen/bleframe"
	"github.com/mlsorensen/bleframe/internal/config"
	"github.com/mlsorensen/bleframe/internal/export"
	"github.com/mlsorensen/bleframe/internal/metrics"
	"github.com/mlsorensen/bleframe/internal/mqtt"
	"github.com/mlsorensen/bleframe/internal/session"
	"github.com/mlsorensen/bleframe/internal/store"
	"github.com/mlsorensen/bleframe/pkg/devices/mock"
)

// SelectDevice resolves the device to monitor. Names starting with the mock
// prefix are used as is; anything else is looked up by scanning.
func SelectDevice(cfg config.Config) (*bleframe.FoundDevice, error) {
	if strings.HasPrefix(cfg.DeviceName, mock.Prefix) {
		return &bleframe.FoundDevice{Name: cfg.DeviceName, ID: cfg.DeviceName}, nil
	}

	var prefixes []string
	if cfg.DevicePrefix != "" {
		prefixes = append(prefixes, cfg.DevicePrefix)
	}

	slog.Info("scanning for device", "name", cfg.DeviceName, "prefixes", prefixes, "timeout", cfg.ScanTimeout)
	found, err := bleframe.ScanForOne(cfg.ScanTimeout, cfg.DeviceName, prefixes...)
	if err != nil {
		return nil, err
	}
	slog.Info("selected device", "name", found.Name, "id", found.ID, "rssi", found.RSSI)
	return found, nil
}

// Run monitors one device until ctx is done or the device goes away, then
// disconnects and exports the session history.
func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"deviceName", cfg.DeviceName,
		"devicePrefix", cfg.DevicePrefix,
		"scanTimeout", cfg.ScanTimeout,
		"windowSize", cfg.WindowSize,
		"exportDir", cfg.ExportDir,
		"sqlitePath", cfg.SQLitePath,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"metricsAddr", cfg.MetricsAddr,
	)

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				slog.Error("metrics server", "error", err)
			}
		}()
	}

	sess := session.New(cfg.WindowSize)
	pipe := &Pipeline{Session: sess, Observer: m}

	if cfg.SQLitePath != "" {
		st, err := store.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				slog.Error("db close", "error", err)
			}
		}()
		pipe.Recorder = st
	}

	if cfg.MQTTBroker != "" {
		client := NewMQTT(ctx, cfg)
		defer client.Disconnect()
		pipe.Publisher = client
	}

	found, err := SelectDevice(cfg)
	if err != nil {
		return err
	}
	pipe.Device = found.Name

	dev, err := bleframe.NewDeviceForFound(found, bleframe.Options{
		ServiceUUID:        cfg.ServiceUUID,
		CharacteristicUUID: cfg.CharacteristicUUID,
		Observer:           m,
	})
	if err != nil {
		return err
	}

	updates, err := dev.Connect()
	if err != nil {
		return fmt.Errorf("connect %s: %w", found.Name, err)
	}
	slog.Info("connected", "device", dev.DeviceName())

	n, linkErr := pipe.Consume(ctx, updates)

	if err := dev.Disconnect(); err != nil {
		slog.Warn("disconnect", "device", dev.DeviceName(), "error", err)
	}
	slog.Info("disconnected", "device", dev.DeviceName(), "measurements", n)

	if err := exportHistory(cfg, sess, time.Now()); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if linkErr != nil {
		return fmt.Errorf("device %s: %w: %w", found.Name, ErrDeviceClosed, linkErr)
	}
	return fmt.Errorf("device %s: %w", found.Name, ErrDeviceClosed)
}

// ErrDeviceClosed is returned by Run when the update stream ended before the
// context was cancelled, typically wrapping bleframe.ErrLinkLost.
var ErrDeviceClosed = errors.New("update stream closed")

// NewMQTT creates a client and tries to connect for a few seconds. A failed
// first attempt is logged; paho keeps retrying in the background.
func NewMQTT(ctx context.Context, cfg config.Config) *mqtt.Client {
	client := mqtt.NewClient(cfg)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	}
	return client
}

func exportHistory(cfg config.Config, sess *session.Session, now time.Time) error {
	if cfg.ExportDir == "" || sess.Len() == 0 {
		return nil
	}
	path, err := export.Save(cfg.ExportDir, cfg.ExportPrefix, sess.History(), now)
	if err != nil {
		return fmt.Errorf("export history: %w", err)
	}
	slog.Info("history exported", "path", path, "records", sess.Len())
	return nil
}
