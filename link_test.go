package bleframe

import (
	"testing"
	"time"
)

func waitFired(t *testing.T, ch <-chan struct{}, want bool) {
	t.Helper()
	select {
	case <-ch:
		if !want {
			t.Fatal("watcher fired unexpectedly")
		}
	case <-time.After(100 * time.Millisecond):
		if want {
			t.Fatal("watcher did not fire")
		}
	}
}

func TestLinkLost_matchesAddress(t *testing.T) {
	a, b := make(chan struct{}, 2), make(chan struct{}, 2)
	stopA := watchLink("AA:AA:AA:AA:AA:AA", func() { a <- struct{}{} })
	stopB := watchLink("BB:BB:BB:BB:BB:BB", func() { b <- struct{}{} })
	defer stopA()
	defer stopB()

	linkLost("AA:AA:AA:AA:AA:AA", true)
	waitFired(t, a, true)
	waitFired(t, b, false)

	// a watcher fires at most once
	linkLost("AA:AA:AA:AA:AA:AA", true)
	waitFired(t, a, false)

	// unknown address fires everything still watching
	linkLost("", false)
	waitFired(t, b, true)
}

func TestWatchLink_stop(t *testing.T) {
	fired := make(chan struct{}, 1)
	stop := watchLink("CC:CC:CC:CC:CC:CC", func() { fired <- struct{}{} })
	stop()
	stop()

	linkLost("CC:CC:CC:CC:CC:CC", true)
	waitFired(t, fired, false)
}
