package bleframe

import (
	"errors"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// ErrLinkLost is delivered on a device's update channel when the peripheral
// drops the connection. The channel is closed right after.
var ErrLinkLost = errors.New("connection lost")

type linkWatch struct {
	addr   string
	onLost func()
}

var (
	linkOnce     sync.Once
	linkMu       sync.Mutex
	linkWatchers = make(map[int]linkWatch)
	linkNextID   int
)

// WatchLink calls onLost once, on its own goroutine, when the peripheral at
// addr disconnects. It must be called before BTAdapter.Connect. The returned
// function stops watching and is safe to call more than once.
func WatchLink(addr bluetooth.Address, onLost func()) (stop func()) {
	linkOnce.Do(func() {
		BTAdapter.SetConnectHandler(handleConnectEvent)
	})
	return watchLink(addr.String(), onLost)
}

func watchLink(addr string, onLost func()) func() {
	linkMu.Lock()
	id := linkNextID
	linkNextID++
	linkWatchers[id] = linkWatch{addr: addr, onLost: onLost}
	linkMu.Unlock()

	return func() {
		linkMu.Lock()
		delete(linkWatchers, id)
		linkMu.Unlock()
	}
}

func handleConnectEvent(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	addr, known := deviceAddress(device)
	slog.Debug("peripheral disconnected", "address", addr)
	linkLost(addr, known)
}

// linkLost fires the watchers for addr. When the platform does not report
// which peripheral went away, every watcher fires.
func linkLost(addr string, known bool) {
	var fire []func()

	linkMu.Lock()
	for id, w := range linkWatchers {
		if !known || w.addr == addr {
			fire = append(fire, w.onLost)
			delete(linkWatchers, id)
		}
	}
	linkMu.Unlock()

	for _, fn := range fire {
		go fn()
	}
}
