package bleframe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// FoundDevice is a peripheral seen while scanning.
type FoundDevice struct {
	Name    string
	ID      string
	RSSI    int
	Address bluetooth.Address
}

// BTAdapter is the adapter used by scanning and by the BLE drivers.
var BTAdapter = bluetooth.DefaultAdapter

var (
	enableOnce sync.Once
	enableErr  error
)

// TryEnableAdapter enables BTAdapter once per process.
func TryEnableAdapter() error {
	enableOnce.Do(func() {
		slog.Info("enabling bluetooth adapter")
		enableErr = BTAdapter.Enable()
	})
	if enableErr != nil {
		return fmt.Errorf("enable bluetooth adapter: %w", enableErr)
	}
	return nil
}

// ErrNoDevice is returned by ScanForOne when nothing matched before the timeout.
var ErrNoDevice = errors.New("no matching device found")

// ScanStream returns a channel that streams FoundDevice as they are discovered
// and stops scanning when the context is canceled.
func ScanStream(ctx context.Context, customPrefixes ...string) (<-chan FoundDevice, error) {
	if err := TryEnableAdapter(); err != nil {
		return nil, err
	}

	prefixesToScan := getPrefixes(customPrefixes...)
	deviceChan := make(chan FoundDevice)

	go func() {
		defer close(deviceChan)

		slog.Info("starting BLE scan", "prefixes", prefixesToScan)

		go func() {
			<-ctx.Done()
			if err := BTAdapter.StopScan(); err != nil {
				slog.Warn("failed to stop scan", "error", err)
			}
		}()

		err := BTAdapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			dev, ok := matchResult(result, prefixesToScan)
			if !ok {
				return
			}
			select {
			case deviceChan <- dev:
			case <-ctx.Done():
			}
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("scan failed", "error", err)
		}
	}()

	return deviceChan, nil
}

// Scan finds any bluetooth devices with given string prefixes in their name, blocks for duration.
// Results are unique by address; the last advertisement seen wins.
func Scan(duration time.Duration, customPrefixes ...string) ([]FoundDevice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	found, err := ScanStream(ctx, customPrefixes...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]FoundDevice)
	var order []string
	for dev := range found {
		if _, seen := byID[dev.ID]; !seen {
			slog.Info("found device", "name", dev.Name, "id", dev.ID, "rssi", dev.RSSI)
			order = append(order, dev.ID)
		}
		byID[dev.ID] = dev
	}

	results := make([]FoundDevice, 0, len(order))
	for _, id := range order {
		results = append(results, byID[id])
	}

	slog.Info("scan finished", "devices", len(results))
	return results, nil
}

// ScanForOne returns the first device whose name matches one of the prefixes.
// If name is set, only a device with exactly that name is accepted.
func ScanForOne(duration time.Duration, name string, customPrefixes ...string) (*FoundDevice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	found, err := ScanStream(ctx, customPrefixes...)
	if err != nil {
		return nil, err
	}

	for dev := range found {
		if name != "" && dev.Name != name {
			continue
		}
		cancel()
		// drain so the scan goroutine can exit
		go func() {
			for range found {
			}
		}()
		return &dev, nil
	}

	return nil, fmt.Errorf("%w within %s", ErrNoDevice, duration)
}

func matchResult(result bluetooth.ScanResult, prefixes []string) (FoundDevice, bool) {
	return matchAdvertisement(result.LocalName(), result.Address, result.RSSI, prefixes)
}

// matchAdvertisement accepts a named advertisement whose name starts with one
// of prefixes.
func matchAdvertisement(name string, addr bluetooth.Address, rssi int16, prefixes []string) (FoundDevice, bool) {
	if name == "" {
		return FoundDevice{}, false // Ignore packets without a name.
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return FoundDevice{
				Name:    name,
				ID:      addr.String(),
				RSSI:    int(rssi),
				Address: addr,
			}, true
		}
	}
	return FoundDevice{}, false
}

// getPrefixes returns customPrefixes, or the prefixes of every registered driver.
func getPrefixes(customPrefixes ...string) []string {
	if len(customPrefixes) > 0 {
		return customPrefixes
	}
	regLock.RLock()
	defer regLock.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		// no drivers linked in; accept every named device
		keys = append(keys, "")
	}
	return keys
}
