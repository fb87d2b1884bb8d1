package bleframe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mlsorensen/bleframe/pkg/frame"
)

const streamBuffer = 20

// Stream turns raw notifications into Updates on a channel. Drivers create one
// per connection and call HandleNotification from their BLE callback.
type Stream struct {
	device   string
	observer FrameObserver
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	closed  bool
	updates chan Update
}

// NewStream creates an open stream. observer may be nil.
func NewStream(device string, observer FrameObserver) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		device:   device,
		observer: observer,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan Update, streamBuffer),
	}
}

// Updates is the receive side handed back from Device.Connect.
func (s *Stream) Updates() <-chan Update {
	return s.updates
}

// HandleNotification decodes one notification and delivers it. Rejected frames
// are logged and dropped. It blocks while the channel is full, until the
// consumer catches up or the stream is closed.
func (s *Stream) HandleNotification(buf []byte) {
	r, err := frame.Parse(buf)
	if s.observer != nil {
		s.observer.ObserveFrame(buf, err == nil)
	}
	if err != nil {
		slog.Debug("frame rejected", "device", s.device, "error", err, "data", fmt.Sprintf("% X", buf))
		return
	}

	s.send(Update{Measurement: Measurement{Reading: r, Timestamp: s.now()}})
}

// Fail delivers an error to the consumer.
func (s *Stream) Fail(err error) {
	s.send(Update{Error: err})
}

func (s *Stream) send(u Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	select {
	case s.updates <- u:
	case <-s.ctx.Done():
	}
}

// Close closes the update channel. Later notifications are dropped.
func (s *Stream) Close() {
	// unblock senders before taking the write lock
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
}
