package bleframe

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mlsorensen/bleframe/pkg/frame"
)

// Measurement is a decoded frame stamped with the time it was received.
type Measurement struct {
	frame.Reading
	Timestamp time.Time
}

// Update is a single item on a device's update channel.
// Error is set instead of Measurement when the device reports a failure.
type Update struct {
	Measurement Measurement
	Error       error
}

// Device is a connected BLE peripheral that pushes frames over notifications.
type Device interface {
	// Connect establishes the connection and subscribes to notifications.
	// The returned channel is closed by Disconnect.
	Connect() (<-chan Update, error)

	// Disconnect terminates the connection. Safe to call more than once.
	Disconnect() error

	IsConnected() bool

	// DeviceName is the advertised local name of the peripheral.
	DeviceName() string
}

// FrameObserver is told about every notification a device receives.
type FrameObserver interface {
	ObserveFrame(raw []byte, decoded bool)
}

// Options tune how a driver finds the characteristic to subscribe to.
// Empty UUIDs mean "any".
type Options struct {
	ServiceUUID        string
	CharacteristicUUID string
	Observer           FrameObserver
}

// --- Implementation Registry ---

// Factory is a function that creates a new instance of a Device.
type Factory func(*FoundDevice, Options) Device

var (
	registry = make(map[string]Factory)
	regLock  = sync.RWMutex{}
)

// Register makes a driver available for devices whose name starts with namePrefix.
// This function should be called from the init() function of the driver's package.
// An empty prefix matches every device.
func Register(namePrefix string, factory Factory) {
	regLock.Lock()
	defer regLock.Unlock()

	if _, found := registry[namePrefix]; found {
		slog.Warn("device driver is being overwritten", "prefix", namePrefix)
	}
	registry[namePrefix] = factory
}

// NewDeviceForFound picks the registered driver with the longest prefix matching
// device.Name and creates a Device with it.
func NewDeviceForFound(device *FoundDevice, opts Options) (Device, error) {
	regLock.RLock()
	defer regLock.RUnlock()

	var (
		best    Factory
		bestLen = -1
	)
	for prefix, factory := range registry {
		if strings.HasPrefix(device.Name, prefix) && len(prefix) > bestLen {
			best, bestLen = factory, len(prefix)
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no driver found for device '%s'", device.Name)
	}

	return best(device, opts), nil
}
