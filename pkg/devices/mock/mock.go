// Package mock provides a simulated peripheral. It is intended for development
// and testing purposes when a physical device is not available.
//
// The simulation encodes real frames and feeds them through the same decode
// path as the BLE driver, including a malformed frame every tenth notification.
// DropAfter makes it lose the link the way an out-of-range peripheral would.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mlsorensen/bleframe"
	"github.com/mlsorensen/bleframe/pkg/frame"
)

// Prefix is the device name prefix the mock registers under.
const Prefix = "MOCK"

// This init function registers the mock device with the central registry.
// To use it, you must explicitly import this package.
func init() {
	bleframe.Register(Prefix, New)
}

// This line is the compile-time check. It will fail to compile if
// *Device ever stops satisfying the bleframe.Device interface.
var _ bleframe.Device = (*Device)(nil)

// DefaultInterval is how often the mock emits a notification.
const DefaultInterval = 750 * time.Millisecond

// Device is a simulated peripheral.
type Device struct {
	name     string
	opts     bleframe.Options
	interval time.Duration
	rnd      *rand.Rand

	mu        sync.Mutex
	connected bool
	value     float64
	seq       uint16
	sent      int
	dropAfter int
	stream    *bleframe.Stream
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a new, unconnected mock device.
func New(device *bleframe.FoundDevice, opts bleframe.Options) bleframe.Device {
	return NewWithInterval(device.Name, opts, DefaultInterval)
}

// NewWithInterval is New with a custom notification interval.
func NewWithInterval(name string, opts bleframe.Options, interval time.Duration) *Device {
	return &Device{
		name:     name,
		opts:     opts,
		interval: interval,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		value:    21.5,
	}
}

// DropAfter makes the device drop the connection after n notifications.
// n <= 0 never drops.
func (d *Device) DropAfter(n int) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropAfter = n
	return d
}

func (d *Device) DeviceName() string {
	return d.name
}

func (d *Device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Connect starts the simulation.
func (d *Device) Connect() (<-chan bleframe.Update, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return nil, fmt.Errorf("mock device is already connected")
	}

	slog.Info("mock: connecting", "device", d.name)
	if d.cancel != nil {
		d.cancel() // left over from a dropped link
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.stream = bleframe.NewStream(d.name, d.opts.Observer)
	d.sent = 0
	d.connected = true

	go d.simulate(ctx, d.stream, d.done)

	return d.stream.Updates(), nil
}

// simulate is the core loop that generates notifications.
func (d *Device) simulate(ctx context.Context, stream *bleframe.Stream, done chan struct{}) {
	defer close(done)
	defer slog.Info("mock: simulation stopped", "device", d.name)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			buf, last := d.next()
			stream.HandleNotification(buf)
			if last {
				d.linkLost(stream)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// next produces the raw bytes of the next notification, and whether the link
// drops after it.
func (d *Device) next() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sent++
	d.value += (d.rnd.Float64() - 0.5) * 4
	if d.value > 999 || d.value < -999 {
		d.value = 0
	}
	d.seq++

	code := frame.CodeData
	if d.sent%5 == 0 {
		code = frame.CodeInfo
	}

	buf, err := frame.Build(code, d.value, d.seq)
	if err != nil {
		// value is clamped above, so this is a programming error
		panic(err)
	}
	last := d.dropAfter > 0 && d.sent >= d.dropAfter
	if d.sent%10 == 0 {
		return buf[:frame.Length-1], last
	}
	return buf, last
}

func (d *Device) linkLost(stream *bleframe.Stream) {
	d.mu.Lock()
	if !d.connected || d.stream != stream {
		d.mu.Unlock()
		return
	}
	d.connected = false
	d.mu.Unlock()

	slog.Warn("mock: connection lost", "device", d.name)
	stream.Fail(fmt.Errorf("%s: %w", d.name, bleframe.ErrLinkLost))
	stream.Close()
}

// Disconnect stops the simulation and closes the update channel.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	if d.cancel == nil {
		d.mu.Unlock()
		return nil // Nothing to do
	}
	d.connected = false
	cancel, done, stream := d.cancel, d.done, d.stream
	d.cancel = nil
	d.mu.Unlock()

	slog.Info("mock: disconnecting", "device", d.name)
	cancel()
	stream.Close()
	<-done
	return nil
}
