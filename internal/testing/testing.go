// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing and records the last request it saw
type MockRoundTripper struct {
	mu       sync.Mutex
	response *http.Response
	err      error
	last     *http.Request
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = r
	return m.response, m.err
}

// LastRequest returns the most recent request passed to RoundTrip
func (m *MockRoundTripper) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// JSONResponse builds a response with the given status and body
func JSONResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// Clock is a manually advanced clock
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock() *Clock {
	return &Clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Timers records scheduled callbacks instead of running them; tests fire them by hand
type Timers struct {
	mu     sync.Mutex
	timers []*Timer
}

// Timer is one callback scheduled on [Timers]
type Timer struct {
	Delay   time.Duration
	f       func()
	stopped bool
	fired   bool
	owner   *Timers
}

// AfterFunc records f; it matches the signature of [time.AfterFunc] apart from the return type
func (ts *Timers) AfterFunc(d time.Duration, f func()) *Timer {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t := &Timer{Delay: d, f: f, owner: ts}
	ts.timers = append(ts.timers, t)
	return t
}

func (t *Timer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Len counts every timer ever scheduled
func (ts *Timers) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.timers)
}

// Delays lists the delay of every timer ever scheduled, in order
func (ts *Timers) Delays() []time.Duration {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]time.Duration, len(ts.timers))
	for i, t := range ts.timers {
		out[i] = t.Delay
	}
	return out
}

// Pending counts timers neither stopped nor fired
func (ts *Timers) Pending() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	n := 0
	for _, t := range ts.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// FireLast runs the most recently scheduled timer if it is still pending and reports whether it ran.
// The callback runs on the caller's goroutine.
func (ts *Timers) FireLast() bool {
	ts.mu.Lock()
	if len(ts.timers) == 0 {
		ts.mu.Unlock()
		return false
	}
	t := ts.timers[len(ts.timers)-1]
	if t.stopped || t.fired {
		ts.mu.Unlock()
		return false
	}
	t.fired = true
	ts.mu.Unlock()

	t.f()
	return true
}
