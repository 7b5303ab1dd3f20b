package realtime

import (
	"fmt"
	"sync"
)

// Status is the lifecycle state of a [Manager].
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusOpen
	StatusClosed
	StatusFailedAuth
	StatusFailedAccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusFailedAuth:
		return "failed-auth"
	case StatusFailedAccess:
		return "failed-access"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the manager will not reconnect on its own from s.
func (s Status) Terminal() bool {
	return s == StatusFailedAuth || s == StatusFailedAccess || s == StatusFailed
}

// Level ranks a [Notification].
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Route names a place the UI can navigate to.
type Route string

const RouteSelector Route = "selector"

// Signal is one message on the [Bus]: [StatusChanged], [Notification], [Navigate] or [StateChanged].
type Signal interface {
	signal()
}

// StatusChanged is published on every [Manager] state transition.
type StatusChanged struct {
	ListID  int64
	Status  Status
	Attempt int
	Err     error
}

// Notification is a transient message for the user.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Navigate asks the UI to leave the current view.
type Navigate struct {
	To     Route
	Reason string
}

// StateChanged reports that list state held by the view changed. ListID is 0 for collection-wide changes.
type StateChanged struct {
	ListID int64
}

func (StatusChanged) signal() {}
func (Notification) signal()  {}
func (Navigate) signal()      {}
func (StateChanged) signal()  {}

// Bus fans signals out to subscribers. Publish never blocks: a subscriber whose buffer is full misses the signal.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Signal
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Signal)}
}

// Subscribe returns a channel receiving every signal published after the call and a func that unsubscribes and
// closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Signal, func()) {
	ch := make(chan Signal, max(buffer, 0))

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers s to every subscriber with room in its buffer.
func (b *Bus) Publish(s Signal) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Notify publishes a [Notification].
func (b *Bus) Notify(level Level, title, message string) {
	b.Publish(Notification{Level: level, Title: title, Message: message})
}
