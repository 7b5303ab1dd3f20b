package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/desertthunder/basket/internal/shared"
)

const (
	writeWait      = 10 * time.Second
	reconnectDelay = time.Second
)

// Timer is the handle returned by an [AfterFunc]. [*time.Timer] satisfies it.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like [time.AfterFunc].
type AfterFunc func(d time.Duration, f func()) Timer

func defaultAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Dialer opens WebSocket connections. [*websocket.Dialer] satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Handler receives decoded change frames. [*Dispatcher] satisfies it.
type Handler interface {
	Handle(ev Event) error
}

// Options configures a [Manager]. Zero durations and counts use the package defaults.
type Options struct {
	// URL is the WebSocket base, e.g. "wss://lists.example.com".
	URL    string
	ListID int64
	Token  string

	AutoReconnect        bool
	ReconnectInterval    time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval    time.Duration
	// MinConnectInterval spaces connection attempts. A negative value disables the spacing.
	MinConnectInterval time.Duration

	Dialer   Dialer
	Handler  Handler
	Registry *SessionRegistry
	Bus      *Bus
	Monitor  *Monitor
	Logger   *log.Logger

	// AfterFunc and Now replace the wall clock in tests.
	AfterFunc AfterFunc
	Now       func() time.Time
}

// Manager owns the WebSocket for one list at a time.
//
// Connect is idempotent while a connection is in progress or open and attempts are spaced by the minimum
// connect interval whatever triggered them. Dropped connections are retried with exponential backoff unless the
// server closed with 1008 (authentication) or 1003 (access denied), which are terminal.
type Manager struct {
	opts    Options
	logger  *log.Logger
	limiter *rate.Limiter

	mu        sync.Mutex
	writeMu   sync.Mutex
	status    status
	gen       uint64
	conn      *websocket.Conn
	cancel    context.CancelFunc
	timer     Timer
	pending   *rate.Reservation
	attempts  int
	sessionID string
}

type status struct {
	state Status
	err   error
}

func NewManager(opts Options) *Manager {
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.MaxReconnectDelay <= 0 {
		opts.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: writeWait}
	}
	if opts.Registry == nil {
		opts.Registry = NewSessionRegistry()
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = defaultAfterFunc
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	if opts.MinConnectInterval == 0 {
		opts.MinConnectInterval = DefaultMinConnectInterval
	}

	limit := rate.Inf
	if opts.MinConnectInterval > 0 {
		limit = rate.Every(opts.MinConnectInterval)
	}

	return &Manager{
		opts:    opts,
		logger:  shared.WithLogger(opts.Logger, "component", "realtime"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Endpoint builds the WebSocket URL for a list.
func Endpoint(base string, listID int64, token string) string {
	return fmt.Sprintf("%s/api/v1/ws/lists/%d?token=%s", strings.TrimRight(base, "/"), listID, url.QueryEscape(token))
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.state
}

// LastError returns the error behind the most recent Closed or Failed state.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.err
}

// SessionID returns the id from the current handshake, or "".
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

func (m *Manager) ListID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts.ListID
}

// Attempts returns the number of reconnects scheduled since the last successful open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// SetTarget points the manager at another list or token. A change tears down the current connection.
func (m *Manager) SetTarget(listID int64, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if listID == m.opts.ListID && token == m.opts.Token {
		return
	}
	m.resetLocked()
	m.opts.ListID = listID
	m.opts.Token = token
}

// Connect starts connecting unless a connection for the current target is already connecting or open.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.opts.Token == "":
		return shared.ErrNotAuthenticated
	case m.opts.ListID <= 0:
		return fmt.Errorf("%w: list id", shared.ErrInvalidArgument)
	case m.status.state == StatusConnecting || m.status.state == StatusOpen:
		m.logger.Debug("connect ignored", "status", m.status.state)
		return nil
	}

	if m.status.state.Terminal() {
		m.attempts = 0
	}
	m.stopTimerLocked()
	m.gen++
	m.setStatusLocked(StatusConnecting, nil)
	m.scheduleLocked(m.gen, 0)
	return nil
}

// Disconnect stops timers, closes the socket and returns to Idle.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Reconnect disconnects and connects again after one second, clearing the attempt counter.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetLocked()
	gen := m.gen
	m.timer = m.opts.AfterFunc(reconnectDelay, func() {
		m.mu.Lock()
		current := gen == m.gen
		m.mu.Unlock()
		if current {
			if err := m.Connect(); err != nil {
				m.logger.Warn("reconnect failed", "err", err)
			}
		}
	})
}

// Send writes v as JSON. It returns [shared.ErrNotConnected] and sends nothing unless the socket is open.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	conn := m.conn
	open := m.status.state == StatusOpen
	m.mu.Unlock()

	if !open || conn == nil {
		return shared.ErrNotConnected
	}
	return m.write(conn, v)
}

func (m *Manager) write(conn *websocket.Conn, v any) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// resetLocked tears everything down and moves to Idle.
func (m *Manager) resetLocked() {
	m.gen++
	m.stopTimerLocked()
	m.closeConnLocked()
	m.attempts = 0
	m.clearSessionLocked()
	if m.status.state != StatusIdle {
		m.setStatusLocked(StatusIdle, nil)
	}
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.pending != nil {
		m.pending.CancelAt(m.opts.Now())
		m.pending = nil
	}
}

func (m *Manager) closeConnLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		m.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		m.conn.Close()
		m.conn = nil
	}
}

func (m *Manager) clearSessionLocked() {
	if m.sessionID != "" && m.opts.Registry.Get() == m.sessionID {
		m.opts.Registry.Set("")
	}
	m.sessionID = ""
}

func (m *Manager) setStatusLocked(s Status, err error) {
	m.status = status{state: s, err: err}
	m.logger.Debug("status", "list_id", m.opts.ListID, "status", s, "err", err)
	m.opts.Bus.Publish(StatusChanged{ListID: m.opts.ListID, Status: s, Attempt: m.attempts, Err: err})
}

// scheduleLocked dials after wait, pushed back further if the minimum connect interval has not elapsed.
func (m *Manager) scheduleLocked(gen uint64, wait time.Duration) {
	at := m.opts.Now().Add(wait)
	r := m.limiter.ReserveN(at, 1)
	wait += r.DelayFrom(at)

	if wait <= 0 {
		go m.dial(gen)
		return
	}

	m.pending = r
	m.timer = m.opts.AfterFunc(wait, func() { m.dial(gen) })
}

func (m *Manager) dial(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.timer, m.pending = nil, nil
	if m.status.state != StatusConnecting {
		m.setStatusLocked(StatusConnecting, nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	listID := m.opts.ListID
	endpoint := Endpoint(m.opts.URL, listID, m.opts.Token)
	m.mu.Unlock()

	conn, resp, err := m.opts.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		m.closed(gen, handshakeCloseCode(resp), err)
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.attempts = 0
	m.setStatusLocked(StatusOpen, nil)
	m.mu.Unlock()

	m.logger.Info("connected", "list_id", listID)
	go m.heartbeat(ctx, conn)
	m.readLoop(gen, conn)
}

func (m *Manager) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.closed(gen, closeCode(err), err)
			return
		}
		m.handleFrame(gen, data)
	}
}

func (m *Manager) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.write(conn, pingFrame); err != nil {
				m.logger.Debug("ping failed", "err", err)
				return
			}
		}
	}
}

// handleFrame decodes and routes one frame. Errors and panics stay inside the frame.
func (m *Manager) handleFrame(gen uint64, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("frame handler panicked", "panic", r)
			m.opts.Monitor.FrameRejected()
		}
	}()

	ev, err := Decode(data)
	if err != nil {
		m.logger.Warn("dropping frame", "err", err)
		m.opts.Monitor.FrameRejected()
		return
	}

	switch e := ev.(type) {
	case Pong:
		return
	case ConnectionEstablished:
		m.mu.Lock()
		if gen == m.gen {
			m.sessionID = e.SessionID
			m.opts.Registry.Set(e.SessionID)
		}
		m.mu.Unlock()
		m.logger.Debug("session established", "session_id", e.SessionID)
		return
	}

	listID := m.ListID()
	if id := eventListID(ev); id != 0 && id != listID {
		m.logger.Debug("ignoring frame for another list", "list_id", id)
		return
	}

	if m.opts.Handler == nil {
		return
	}
	if err := m.opts.Handler.Handle(ev); err != nil {
		m.logger.Warn("frame handler failed", "err", err)
		m.opts.Monitor.FrameRejected()
	}
}

// closed moves a dropped connection to Closed and then to a terminal state or a scheduled retry.
func (m *Manager) closed(gen uint64, code int, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}

	m.closeConnLocked()
	m.clearSessionLocked()
	m.setStatusLocked(StatusClosed, cause)

	switch code {
	case websocket.ClosePolicyViolation:
		m.setStatusLocked(StatusFailedAuth, fmt.Errorf("%w: %v", shared.ErrAuthFailed, cause))
		return
	case websocket.CloseUnsupportedData:
		m.setStatusLocked(StatusFailedAccess, fmt.Errorf("%w: %v", shared.ErrAccessDenied, cause))
		return
	}

	if !m.opts.AutoReconnect {
		return
	}
	if m.attempts >= m.opts.MaxReconnectAttempts {
		m.logger.Warn("giving up", "list_id", m.opts.ListID, "attempts", m.attempts)
		m.setStatusLocked(StatusFailed, fmt.Errorf("%w: %v", shared.ErrReconnectExhausted, cause))
		return
	}

	wait := Backoff(m.opts.ReconnectInterval, m.attempts, m.opts.MaxReconnectDelay)
	m.attempts++
	m.opts.Monitor.Reconnecting()
	m.logger.Info("reconnecting", "list_id", m.opts.ListID, "attempt", m.attempts, "in", wait, "code", code)
	m.scheduleLocked(gen, wait)
}

func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}

// handshakeCloseCode maps a rejected upgrade to the close code the server would have sent after upgrading.
func handshakeCloseCode(resp *http.Response) int {
	if resp == nil {
		return websocket.CloseAbnormalClosure
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return websocket.ClosePolicyViolation
	case http.StatusForbidden, http.StatusNotFound:
		return websocket.CloseUnsupportedData
	default:
		return websocket.CloseAbnormalClosure
	}
}

func eventListID(ev Event) int64 {
	switch e := ev.(type) {
	case ItemChanged:
		return e.ListID
	case ListChanged:
		return e.ListID
	}
	return 0
}
