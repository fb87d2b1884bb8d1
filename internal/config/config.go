package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	DeviceName         string
	DevicePrefix       string
	ScanTimeout        time.Duration
	ServiceUUID        string
	CharacteristicUUID string

	WindowSize   int
	ExportDir    string
	ExportPrefix string

	SQLitePath string

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	MetricsAddr string
}

// lookup returns the raw value for an environment-style key, or "".
type lookup func(key string) string

// LoadFromEnv reads the configuration from environment variables only.
func LoadFromEnv() (Config, error) {
	return Load("")
}

// Load reads the configuration. Values come from the environment, then from the
// YAML file at path (if path is not empty), then from defaults. File keys are
// the environment names in lower case, e.g. mqtt_broker.
func Load(path string) (Config, error) {
	file := func(string) string { return "" }
	if path != "" {
		values, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		file = func(key string) string { return values[strings.ToLower(key)] }
	}

	return parse(func(key string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(file(key))
	})
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("config file %s: key %q must be a scalar", path, k)
		case nil:
			continue
		}
		values[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return values, nil
}

func parse(get lookup) (Config, error) {
	str := func(key, def string) string {
		if v := get(key); v != "" {
			return v
		}
		return def
	}

	appEnv := str("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(str("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	scanTimeoutStr := str("SCAN_TIMEOUT", "10s")
	scanTimeout, err := time.ParseDuration(scanTimeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SCAN_TIMEOUT %q: %w", scanTimeoutStr, err)
	}
	if scanTimeout <= 0 {
		return Config{}, fmt.Errorf("SCAN_TIMEOUT must be positive, got %v", scanTimeout)
	}

	windowStr := str("WINDOW_SIZE", "4")
	window, err := strconv.Atoi(windowStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid WINDOW_SIZE %q: %w", windowStr, err)
	}
	if window < 1 {
		return Config{}, fmt.Errorf("WINDOW_SIZE must be at least 1, got %d", window)
	}

	mqttPortStr := str("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	if mqttPort < 1 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}

	return Config{
		AppEnv:   appEnv,
		LogLevel: level,

		DeviceName:         get("DEVICE_NAME"),
		DevicePrefix:       get("DEVICE_PREFIX"),
		ScanTimeout:        scanTimeout,
		ServiceUUID:        get("SERVICE_UUID"),
		CharacteristicUUID: get("CHARACTERISTIC_UUID"),

		WindowSize:   window,
		ExportDir:    get("EXPORT_DIR"),
		ExportPrefix: str("EXPORT_PREFIX", "rame_data_"),

		SQLitePath: get("SQLITE_PATH"),

		MQTTBroker:      get("MQTT_BROKER"),
		MQTTPort:        mqttPort,
		MQTTClientID:    str("MQTT_CLIENT_ID", "bleframe"),
		MQTTTopicPrefix: strings.Trim(str("MQTT_TOPIC_PREFIX", "bleframe"), "/"),

		MetricsAddr: get("METRICS_ADDR"),
	}, nil
}

// ParseLogLevel parses the LOG_LEVEL values.
func ParseLogLevel(s string) (slog.Level, error) {
	return parseLogLevel(s)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
