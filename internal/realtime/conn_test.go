package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/desertthunder/basket/internal/shared"
	tu "github.com/desertthunder/basket/internal/testing"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

type wsServer struct {
	*httptest.Server
	upgrades atomic.Int32
	mu       sync.Mutex
	requests []*http.Request
}

// newWSServer upgrades every request and hands the connection to serve. The connection is closed when serve returns.
func newWSServer(t *testing.T, serve func(conn *websocket.Conn)) *wsServer {
	t.Helper()
	s := &wsServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r)
		s.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.upgrades.Add(1)
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// idle reads until the client goes away.
func idle(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWith(code int) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(code, "bye")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		idle(conn)
	}
}

type handlerFunc func(Event) error

func (f handlerFunc) Handle(ev Event) error { return f(ev) }

type failingDialer struct{ calls atomic.Int32 }

func (d *failingDialer) DialContext(context.Context, string, http.Header) (*websocket.Conn, *http.Response, error) {
	d.calls.Add(1)
	return nil, nil, errors.New("connection refused")
}

type managerFixture struct {
	m        *Manager
	timers   *tu.Timers
	registry *SessionRegistry
	bus      *Bus
}

func newManagerFixture(t *testing.T, opts Options) *managerFixture {
	t.Helper()
	f := &managerFixture{timers: &tu.Timers{}, registry: NewSessionRegistry(), bus: NewBus()}
	if opts.ListID == 0 {
		opts.ListID = 5
	}
	if opts.Token == "" {
		opts.Token = "jwt"
	}
	if opts.MinConnectInterval == 0 {
		opts.MinConnectInterval = -1
	}
	opts.Registry = f.registry
	opts.Bus = f.bus
	opts.Logger = shared.NewLogger(discard{})
	opts.AfterFunc = func(d time.Duration, fn func()) Timer { return f.timers.AfterFunc(d, fn) }
	f.m = NewManager(opts)
	t.Cleanup(f.m.Disconnect)
	return f
}

func (f *managerFixture) waitFor(t *testing.T, s Status) {
	t.Helper()
	require.Eventually(t, func() bool { return f.m.Status() == s }, 2*time.Second, 5*time.Millisecond,
		"status %s, want %s", f.m.Status(), s)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "wss://api.example.com/api/v1/ws/lists/5?token=a%2Bb", Endpoint("wss://api.example.com/", 5, "a+b"))
}

func TestManagerConnect(t *testing.T) {
	t.Run("opens and captures the session id", func(t *testing.T) {
		srv := newWSServer(t, func(conn *websocket.Conn) {
			conn.WriteJSON(map[string]any{"type": "connection_established", "session_id": "sess-1", "list_id": 5})
			idle(conn)
		})
		f := newManagerFixture(t, Options{URL: srv.wsURL(), AutoReconnect: true})

		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusOpen)
		require.Eventually(t, func() bool { return f.registry.Get() == "sess-1" }, time.Second, 5*time.Millisecond)
		assert.Equal(t, "sess-1", f.m.SessionID())

		srv.mu.Lock()
		req := srv.requests[0]
		srv.mu.Unlock()
		assert.Equal(t, "/api/v1/ws/lists/5", req.URL.Path)
		assert.Equal(t, "jwt", req.URL.Query().Get("token"))

		f.m.Disconnect()
		assert.Equal(t, StatusIdle, f.m.Status())
		assert.Equal(t, "", f.registry.Get(), "registry reset on disconnect")
	})

	t.Run("connect twice yields one socket", func(t *testing.T) {
		srv := newWSServer(t, idle)
		f := newManagerFixture(t, Options{URL: srv.wsURL(), MinConnectInterval: time.Second})

		require.NoError(t, f.m.Connect())
		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusOpen)
		require.NoError(t, f.m.Connect())

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(1), srv.upgrades.Load())
	})

	t.Run("zero minimum connect interval uses the default", func(t *testing.T) {
		m := NewManager(Options{Logger: shared.NewLogger(discard{})})
		assert.Equal(t, rate.Every(DefaultMinConnectInterval), m.limiter.Limit())

		m = NewManager(Options{MinConnectInterval: -1, Logger: shared.NewLogger(discard{})})
		assert.Equal(t, rate.Inf, m.limiter.Limit())
	})

	t.Run("requires a token and a list", func(t *testing.T) {
		m := NewManager(Options{ListID: 5, Logger: shared.NewLogger(discard{})})
		assert.ErrorIs(t, m.Connect(), shared.ErrNotAuthenticated)

		m = NewManager(Options{Token: "jwt", Logger: shared.NewLogger(discard{})})
		assert.ErrorIs(t, m.Connect(), shared.ErrInvalidArgument)
		assert.Equal(t, StatusIdle, m.Status())
	})

	t.Run("send is refused until open", func(t *testing.T) {
		srv := newWSServer(t, func(conn *websocket.Conn) {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err == nil {
				conn.WriteJSON(map[string]any{"type": "error", "message": msg["hello"]})
			}
			idle(conn)
		})
		got := make(chan Event, 1)
		f := newManagerFixture(t, Options{
			URL:     srv.wsURL(),
			Handler: handlerFunc(func(ev Event) error { got <- ev; return nil }),
		})

		assert.ErrorIs(t, f.m.Send(map[string]string{"hello": "early"}), shared.ErrNotConnected)

		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusOpen)
		require.NoError(t, f.m.Send(map[string]string{"hello": "world"}))

		select {
		case ev := <-got:
			assert.Equal(t, ErrorMessage{Message: "world"}, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("no echo from server")
		}
	})

	t.Run("sends heartbeat pings while open", func(t *testing.T) {
		pings := make(chan struct{}, 4)
		srv := newWSServer(t, func(conn *websocket.Conn) {
			for {
				var msg map[string]any
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				if msg["type"] == "ping" {
					pings <- struct{}{}
					conn.WriteJSON(map[string]string{"type": "pong"})
				}
			}
		})
		f := newManagerFixture(t, Options{URL: srv.wsURL(), HeartbeatInterval: 20 * time.Millisecond})

		require.NoError(t, f.m.Connect())
		for range 2 {
			select {
			case <-pings:
			case <-time.After(2 * time.Second):
				t.Fatal("no heartbeat")
			}
		}
		assert.Equal(t, StatusOpen, f.m.Status())
	})

	t.Run("publishes every transition", func(t *testing.T) {
		srv := newWSServer(t, idle)
		f := newManagerFixture(t, Options{URL: srv.wsURL()})
		signals, cancel := f.bus.Subscribe(8)
		defer cancel()

		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusOpen)
		f.m.Disconnect()

		var seen []Status
		for len(signals) > 0 {
			seen = append(seen, (<-signals).(StatusChanged).Status)
		}
		assert.Equal(t, []Status{StatusConnecting, StatusOpen, StatusIdle}, seen)
	})
}

func TestManagerFrames(t *testing.T) {
	t.Run("malformed frames and handler failures keep the socket open", func(t *testing.T) {
		srv := newWSServer(t, func(conn *websocket.Conn) {
			conn.WriteMessage(websocket.TextMessage, []byte("not json"))
			conn.WriteJSON(map[string]any{"type": "item_change", "event_type": "updated", "list_id": 5, "item": map[string]any{"id": 1}})
			conn.WriteJSON(map[string]any{"type": "item_change", "event_type": "deleted", "list_id": 5, "item": map[string]any{"id": 2}})
			idle(conn)
		})
		var calls atomic.Int32
		monitor := NewMonitor(0)
		f := newManagerFixture(t, Options{
			URL:     srv.wsURL(),
			Monitor: monitor,
			Handler: handlerFunc(func(ev Event) error {
				switch calls.Add(1) {
				case 1:
					panic("boom")
				default:
					return errors.New("handler failed")
				}
			}),
		})

		require.NoError(t, f.m.Connect())
		require.Eventually(t, func() bool { return monitor.Snapshot().Malformed == 3 }, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, StatusOpen, f.m.Status())
	})

	t.Run("frames for another list are ignored", func(t *testing.T) {
		srv := newWSServer(t, func(conn *websocket.Conn) {
			conn.WriteJSON(map[string]any{"type": "item_change", "event_type": "created", "list_id": 6, "item": map[string]any{"id": 1}})
			conn.WriteJSON(map[string]any{"type": "item_change", "event_type": "created", "list_id": 5, "item": map[string]any{"id": 2}})
			idle(conn)
		})
		got := make(chan Event, 2)
		f := newManagerFixture(t, Options{URL: srv.wsURL(), Handler: handlerFunc(func(ev Event) error { got <- ev; return nil })})

		require.NoError(t, f.m.Connect())
		select {
		case ev := <-got:
			assert.Equal(t, int64(2), ev.(ItemChanged).Item.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("no frame delivered")
		}
	})
}

func TestManagerCloseCodes(t *testing.T) {
	t.Run("1008 is terminal authentication failure", func(t *testing.T) {
		srv := newWSServer(t, closeWith(websocket.ClosePolicyViolation))
		f := newManagerFixture(t, Options{URL: srv.wsURL(), AutoReconnect: true})

		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusFailedAuth)
		assert.ErrorIs(t, f.m.LastError(), shared.ErrAuthFailed)
		assert.Equal(t, 0, f.timers.Len(), "no retry scheduled")
	})

	t.Run("1003 is terminal access denied", func(t *testing.T) {
		srv := newWSServer(t, closeWith(websocket.CloseUnsupportedData))
		f := newManagerFixture(t, Options{URL: srv.wsURL(), AutoReconnect: true})

		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusFailedAccess)
		assert.ErrorIs(t, f.m.LastError(), shared.ErrAccessDenied)
		assert.Equal(t, 0, f.timers.Len())
	})

	t.Run("other codes retry", func(t *testing.T) {
		for _, code := range []int{websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseInternalServerErr} {
			srv := newWSServer(t, closeWith(code))
			f := newManagerFixture(t, Options{URL: srv.wsURL(), AutoReconnect: true, ReconnectInterval: 250 * time.Millisecond})

			require.NoError(t, f.m.Connect())
			require.Eventually(t, func() bool { return f.timers.Len() == 1 }, 2*time.Second, 5*time.Millisecond, "code %d", code)
			assert.Equal(t, StatusClosed, f.m.Status())
			assert.Equal(t, []time.Duration{250 * time.Millisecond}, f.timers.Delays())
			assert.Equal(t, 1, f.m.Attempts())
		}
	})

	t.Run("no retry without auto reconnect", func(t *testing.T) {
		srv := newWSServer(t, closeWith(websocket.CloseGoingAway))
		f := newManagerFixture(t, Options{URL: srv.wsURL()})

		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusClosed)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 0, f.timers.Len())
	})

	t.Run("rejected upgrade maps to the equivalent close code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer srv.Close()
		f := newManagerFixture(t, Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), AutoReconnect: true})

		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusFailedAuth)
	})
}

func TestManagerBackoff(t *testing.T) {
	t.Run("doubles each attempt and gives up after five", func(t *testing.T) {
		clk := tu.NewClock()
		dialer := &failingDialer{}
		f := newManagerFixture(t, Options{
			URL:                  "ws://unused",
			AutoReconnect:        true,
			ReconnectInterval:    time.Second,
			MaxReconnectAttempts: 5,
			MinConnectInterval:   time.Second,
			Dialer:               dialer,
			Now:                  clk.Now,
		})

		require.NoError(t, f.m.Connect())
		require.Eventually(t, func() bool { return f.timers.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

		for f.timers.FireLast() {
		}

		s := time.Second
		assert.Equal(t, []time.Duration{s, 2 * s, 4 * s, 8 * s, 16 * s}, f.timers.Delays())
		assert.Equal(t, int32(6), dialer.calls.Load())
		assert.Equal(t, StatusFailed, f.m.Status())
		assert.ErrorIs(t, f.m.LastError(), shared.ErrReconnectExhausted)
	})

	t.Run("connect after giving up starts a fresh attempt budget", func(t *testing.T) {
		dialer := &failingDialer{}
		f := newManagerFixture(t, Options{
			URL:                  "ws://unused",
			AutoReconnect:        true,
			MaxReconnectAttempts: 2,
			Dialer:               dialer,
		})

		require.NoError(t, f.m.Connect())
		require.Eventually(t, func() bool { return f.timers.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
		for f.timers.FireLast() {
		}
		require.Equal(t, StatusFailed, f.m.Status())
		require.Equal(t, 2, f.m.Attempts())

		require.NoError(t, f.m.Connect())
		require.Eventually(t, func() bool { return f.timers.Len() == 3 }, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, StatusClosed, f.m.Status())
		assert.Equal(t, 1, f.m.Attempts())
		assert.Equal(t, time.Second, f.timers.Delays()[2])
		assert.Equal(t, int32(4), dialer.calls.Load())
	})

	t.Run("delays are capped at the maximum", func(t *testing.T) {
		f := newManagerFixture(t, Options{
			URL:                  "ws://unused",
			AutoReconnect:        true,
			ReconnectInterval:    10 * time.Second,
			MaxReconnectDelay:    30 * time.Second,
			MaxReconnectAttempts: 4,
			Dialer:               &failingDialer{},
		})

		require.NoError(t, f.m.Connect())
		require.Eventually(t, func() bool { return f.timers.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
		for f.timers.FireLast() {
		}

		s := time.Second
		assert.Equal(t, []time.Duration{10 * s, 20 * s, 30 * s, 30 * s}, f.timers.Delays())
	})

	t.Run("retries wait out the minimum connect interval", func(t *testing.T) {
		clk := tu.NewClock()
		f := newManagerFixture(t, Options{
			URL:                "ws://unused",
			AutoReconnect:      true,
			ReconnectInterval:  100 * time.Millisecond,
			MinConnectInterval: time.Second,
			Dialer:             &failingDialer{},
			Now:                clk.Now,
		})

		require.NoError(t, f.m.Connect())
		require.Eventually(t, func() bool { return f.timers.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
		assert.InDelta(t, float64(time.Second), float64(f.timers.Delays()[0]), float64(time.Millisecond))
	})

	t.Run("attempt counter resets on open", func(t *testing.T) {
		var conns atomic.Int32
		srv := newWSServer(t, func(conn *websocket.Conn) {
			if conns.Add(1) == 1 {
				closeWith(websocket.CloseGoingAway)(conn)
				return
			}
			idle(conn)
		})
		f := newManagerFixture(t, Options{URL: srv.wsURL(), AutoReconnect: true})

		require.NoError(t, f.m.Connect())
		require.Eventually(t, func() bool { return f.timers.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, 1, f.m.Attempts())

		go f.timers.FireLast()
		f.waitFor(t, StatusOpen)
		assert.Equal(t, 0, f.m.Attempts())
	})

	t.Run("disconnect cancels a scheduled retry", func(t *testing.T) {
		f := newManagerFixture(t, Options{URL: "ws://unused", AutoReconnect: true, Dialer: &failingDialer{}})

		require.NoError(t, f.m.Connect())
		require.Eventually(t, func() bool { return f.timers.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

		f.m.Disconnect()
		assert.Equal(t, 0, f.timers.Pending())
		assert.Equal(t, StatusIdle, f.m.Status())
	})

	t.Run("reconnect waits one second then connects", func(t *testing.T) {
		srv := newWSServer(t, idle)
		f := newManagerFixture(t, Options{URL: srv.wsURL()})

		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusOpen)

		f.m.Reconnect()
		assert.Equal(t, StatusIdle, f.m.Status())
		assert.Equal(t, []time.Duration{time.Second}, f.timers.Delays())

		go f.timers.FireLast()
		f.waitFor(t, StatusOpen)
		assert.Equal(t, int32(2), srv.upgrades.Load())
	})

	t.Run("SetTarget switches lists", func(t *testing.T) {
		srv := newWSServer(t, idle)
		f := newManagerFixture(t, Options{URL: srv.wsURL()})

		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusOpen)

		f.m.SetTarget(6, "jwt")
		assert.Equal(t, StatusIdle, f.m.Status())
		require.NoError(t, f.m.Connect())
		f.waitFor(t, StatusOpen)

		srv.mu.Lock()
		defer srv.mu.Unlock()
		assert.Equal(t, "/api/v1/ws/lists/6", srv.requests[len(srv.requests)-1].URL.Path)
	})
}
