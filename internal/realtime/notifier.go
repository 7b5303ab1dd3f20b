package realtime

import (
	"context"
	"sync"
	"time"
)

const DefaultErrorNoticeDelay = 10 * time.Second

// StatusNotifier turns [StatusChanged] signals into [Notification] signals.
//
// A dropped connection is only reported if it has not reopened within the delay. Terminal states are reported
// immediately.
type StatusNotifier struct {
	bus       *Bus
	delay     time.Duration
	afterFunc AfterFunc

	mu      sync.Mutex
	pending Timer
	seq     int
	warned  bool
}

func NewStatusNotifier(bus *Bus, delay time.Duration, after AfterFunc) *StatusNotifier {
	if delay < 0 {
		delay = DefaultErrorNoticeDelay
	}
	if after == nil {
		after = defaultAfterFunc
	}
	return &StatusNotifier{bus: bus, delay: delay, afterFunc: after}
}

// Run feeds status changes from the bus into Observe until ctx is done.
func (n *StatusNotifier) Run(ctx context.Context) {
	signals, cancel := n.bus.Subscribe(32)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			n.stop()
			return
		case s, ok := <-signals:
			if !ok {
				return
			}
			if sc, ok := s.(StatusChanged); ok {
				n.Observe(sc)
			}
		}
	}
}

func (n *StatusNotifier) Observe(s StatusChanged) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch s.Status {
	case StatusOpen:
		n.stopLocked()
		if n.warned {
			n.warned = false
			n.bus.Notify(LevelSuccess, "Reconnected", "Live updates resumed")
		}
	case StatusIdle:
		n.stopLocked()
		n.warned = false
	case StatusClosed:
		if n.pending != nil || n.warned {
			return
		}
		n.seq++
		seq := n.seq
		n.pending = n.afterFunc(n.delay, func() { n.fire(seq) })
	case StatusFailedAuth:
		n.terminalLocked("Signed out", "Your session expired. Log in again to resume live updates.")
	case StatusFailedAccess:
		n.terminalLocked("Access denied", "You no longer have access to this list.")
	case StatusFailed:
		n.terminalLocked("Connection lost", "Could not reconnect. Refresh to try again.")
	}
}

func (n *StatusNotifier) fire(seq int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if seq != n.seq || n.pending == nil {
		return
	}
	n.pending = nil
	n.warned = true
	n.bus.Notify(LevelWarning, "Connection lost", "Trying to reconnect...")
}

func (n *StatusNotifier) terminalLocked(title, message string) {
	n.stopLocked()
	n.warned = true
	n.bus.Notify(LevelError, title, message)
}

func (n *StatusNotifier) stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *StatusNotifier) stopLocked() {
	if n.pending != nil {
		n.pending.Stop()
		n.pending = nil
	}
	n.seq++
}
