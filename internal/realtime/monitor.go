package realtime

import (
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

const DefaultMonitorWindow = 10

// Monitor keeps sync statistics for the status line.
type Monitor struct {
	sync.Mutex
	requestDur *movingaverage.MovingAverage
	echoDur    *movingaverage.MovingAverage
	requests   int
	failures   int
	suppressed int
	applied    int
	malformed  int
	reconnects int
}

// Stats is a point-in-time copy of a [Monitor].
type Stats struct {
	Requests     int
	Failures     int
	Suppressed   int
	Applied      int
	Malformed    int
	Reconnects   int
	RequestAvgMS float64
	EchoAvgMS    float64
}

func NewMonitor(window int) *Monitor {
	if window <= 0 {
		window = DefaultMonitorWindow
	}
	return &Monitor{
		requestDur: movingaverage.New(window),
		echoDur:    movingaverage.New(window),
	}
}

func millis(d time.Duration) float64 {
	return float64(d/time.Microsecond) / 1000.0
}

// RequestDone records one REST mutation and its latency.
func (m *Monitor) RequestDone(dur time.Duration, err error) {
	if m == nil {
		return
	}
	m.Lock()
	defer m.Unlock()

	m.requests++
	if err != nil {
		m.failures++
		return
	}
	m.requestDur.Add(millis(dur))
}

// EchoSuppressed records a dropped echo and how long after the local write it arrived.
func (m *Monitor) EchoSuppressed(age time.Duration) {
	if m == nil {
		return
	}
	m.Lock()
	defer m.Unlock()

	m.suppressed++
	m.echoDur.Add(millis(age))
}

// RemoteApplied records a remote change applied to the view.
func (m *Monitor) RemoteApplied() {
	if m == nil {
		return
	}
	m.Lock()
	defer m.Unlock()
	m.applied++
}

// FrameRejected records a frame that failed to decode or whose handler failed.
func (m *Monitor) FrameRejected() {
	if m == nil {
		return
	}
	m.Lock()
	defer m.Unlock()
	m.malformed++
}

// Reconnecting records a scheduled reconnect.
func (m *Monitor) Reconnecting() {
	if m == nil {
		return
	}
	m.Lock()
	defer m.Unlock()
	m.reconnects++
}

func (m *Monitor) Snapshot() Stats {
	if m == nil {
		return Stats{}
	}
	m.Lock()
	defer m.Unlock()

	return Stats{
		Requests:     m.requests,
		Failures:     m.failures,
		Suppressed:   m.suppressed,
		Applied:      m.applied,
		Malformed:    m.malformed,
		Reconnects:   m.reconnects,
		RequestAvgMS: m.requestDur.Avg(),
		EchoAvgMS:    m.echoDur.Avg(),
	}
}
