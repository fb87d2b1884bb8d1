// Package notify drives any peripheral that pushes frames on a notify
// characteristic. It registers a catch-all prefix, so more specific drivers win.
package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mlsorensen/bleframe"
	"tinygo.org/x/bluetooth"
)

func init() {
	bleframe.Register("", New)
}

// This line is the compile-time check. It will fail to compile if
// *Device ever stops satisfying the bleframe.Device interface.
var _ bleframe.Device = (*Device)(nil)

// ErrNoNotifyCharacteristic is returned by Connect when no characteristic
// accepted a notification subscription.
var ErrNoNotifyCharacteristic = errors.New("no notifiable characteristic found")

type Device struct {
	name    string
	address bluetooth.Address
	opts    bleframe.Options

	mu        sync.Mutex
	connected bool
	btDevice  bluetooth.Device
	stream    *bleframe.Stream
	stopWatch func()
}

func New(device *bleframe.FoundDevice, opts bleframe.Options) bleframe.Device {
	return &Device{
		name:    device.Name,
		address: device.Address,
		opts:    opts,
	}
}

func (d *Device) DeviceName() string {
	return d.name
}

func (d *Device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Connect connects to the peripheral, subscribes to the first characteristic
// that accepts notifications, and returns the update channel.
func (d *Device) Connect() (<-chan bleframe.Update, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return nil, fmt.Errorf("device %s is already connected", d.name)
	}

	if err := bleframe.TryEnableAdapter(); err != nil {
		return nil, err
	}

	filters, err := parseFilters(d.opts)
	if err != nil {
		return nil, err
	}

	stream := bleframe.NewStream(d.name, d.opts.Observer)
	stopWatch := bleframe.WatchLink(d.address, func() { d.linkLost(stream) })

	slog.Info("connecting", "device", d.name, "address", d.address.String())
	d.btDevice, err = bleframe.BTAdapter.Connect(d.address, bluetooth.ConnectionParams{})
	if err != nil {
		stopWatch()
		stream.Close()
		return nil, fmt.Errorf("connect %s: %w", d.name, err)
	}

	d.stream = stream
	if err := d.subscribe(filters); err != nil {
		stopWatch()
		stream.Close()
		_ = d.btDevice.Disconnect()
		return nil, err
	}

	d.stopWatch = stopWatch
	d.connected = true
	return stream.Updates(), nil
}

// linkLost runs when the peripheral drops the connection on its own. The
// consumer gets ErrLinkLost and then a closed channel.
func (d *Device) linkLost(stream *bleframe.Stream) {
	d.mu.Lock()
	if !d.connected || d.stream != stream {
		d.mu.Unlock()
		return
	}
	d.connected = false
	d.mu.Unlock()

	slog.Warn("connection lost", "device", d.name)
	stream.Fail(fmt.Errorf("%s: %w", d.name, bleframe.ErrLinkLost))
	stream.Close()
}

// Disconnect closes the update channel and drops the BLE connection.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopWatch != nil {
		d.stopWatch()
		d.stopWatch = nil
	}
	if d.stream != nil {
		// also releases a linkLost still waiting to deliver its error
		d.stream.Close()
	}
	if !d.connected {
		return nil
	}
	d.connected = false

	slog.Info("disconnecting", "device", d.name)
	if err := d.btDevice.Disconnect(); err != nil {
		return fmt.Errorf("disconnect %s: %w", d.name, err)
	}
	return nil
}

type uuidFilters struct {
	services []bluetooth.UUID
	chars    []bluetooth.UUID
}

func parseFilters(opts bleframe.Options) (uuidFilters, error) {
	var f uuidFilters
	if opts.ServiceUUID != "" {
		u, err := bluetooth.ParseUUID(opts.ServiceUUID)
		if err != nil {
			return f, fmt.Errorf("invalid service UUID %q: %w", opts.ServiceUUID, err)
		}
		f.services = []bluetooth.UUID{u}
	}
	if opts.CharacteristicUUID != "" {
		u, err := bluetooth.ParseUUID(opts.CharacteristicUUID)
		if err != nil {
			return f, fmt.Errorf("invalid characteristic UUID %q: %w", opts.CharacteristicUUID, err)
		}
		f.chars = []bluetooth.UUID{u}
	}
	return f, nil
}

func (d *Device) subscribe(f uuidFilters) error {
	slog.Debug("discovering services", "device", d.name)
	services, err := d.btDevice.DiscoverServices(f.services)
	if err != nil {
		return fmt.Errorf("could not discover services: %w", err)
	}

	for _, service := range services {
		chars, err := service.DiscoverCharacteristics(f.chars)
		if err != nil {
			slog.Debug("could not discover characteristics", "service", service.UUID().String(), "error", err)
			continue
		}

		for _, char := range chars {
			if err := char.EnableNotifications(d.handleNotification); err != nil {
				slog.Debug("characteristic does not notify", "characteristic", char.UUID().String(), "error", err)
				continue
			}
			slog.Info("subscribed",
				"device", d.name,
				"service", service.UUID().String(),
				"characteristic", char.UUID().String(),
			)
			return nil
		}
	}

	return fmt.Errorf("%s: %w", d.name, ErrNoNotifyCharacteristic)
}

// handleNotification is the callback for all incoming BLE data.
// It assumes one notification callback contains one complete frame.
func (d *Device) handleNotification(buf []byte) {
	// the BLE stack may reuse buf after we return
	d.stream.HandleNotification(append([]byte(nil), buf...))
}
