package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/basket/internal/realtime"
	"github.com/desertthunder/basket/internal/shared"
)

const (
	HeaderSessionID = "x-session-id"
	HeaderRequestID = "X-Request-ID"
)

// Options configures a [Client].
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	Sessions *realtime.SessionRegistry
	Tracker  *realtime.Tracker
	Monitor  *realtime.Monitor
	Logger   *log.Logger

	// Transport is the base transport under the bearer token. Defaults to [http.DefaultTransport].
	Transport http.RoundTripper
}

// Client talks to the shopping list REST API.
type Client struct {
	baseURL  string
	timeout  time.Duration
	base     http.RoundTripper
	sessions *realtime.SessionRegistry
	tracker  *realtime.Tracker
	monitor  *realtime.Monitor
	logger   *log.Logger

	mu         sync.RWMutex
	token      string
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:8000"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Sessions == nil {
		opts.Sessions = realtime.NewSessionRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	c := &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		timeout:  opts.Timeout,
		base:     opts.Transport,
		sessions: opts.Sessions,
		tracker:  opts.Tracker,
		monitor:  opts.Monitor,
		logger:   shared.WithLogger(opts.Logger, "component", "api"),
	}
	c.SetToken(opts.Token)
	return c
}

// SetToken swaps the bearer token. An empty token sends unauthenticated requests.
func (c *Client) SetToken(token string) {
	base := &http.Client{Transport: c.base, Timeout: c.timeout}

	hc := base
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		hc = oauth2.NewClient(ctx, src)
		hc.Timeout = c.timeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.httpClient = hc
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) client() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient
}

// Sessions returns the registry whose value tags outgoing requests.
func (c *Client) Sessions() *realtime.SessionRegistry { return c.sessions }

// APIError is a non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// Unwrap maps the status to a shared sentinel so callers can use [errors.Is].
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return shared.ErrNotAuthenticated
	case http.StatusForbidden:
		return shared.ErrAccessDenied
	case http.StatusNotFound:
		if strings.Contains(e.Path, "/items") {
			return shared.ErrItemNotFound
		}
		return shared.ErrListNotFound
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// detail extracts a message from the API's {"detail": ...} error body.
func detail(body []byte) string {
	var errResp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var msg string
	if err := json.Unmarshal(errResp.Detail, &msg); err == nil {
		return msg
	}
	return string(errResp.Detail)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderRequestID, shared.GenerateID())
	if sid := c.sessions.Get(); sid != "" {
		req.Header.Set(HeaderSessionID, sid)
	}

	c.logger.Debug("request", "method", method, "path", path, "request_id", req.Header.Get(HeaderRequestID))

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Detail: detail(data)}
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// IsAuthError reports whether err means the token is missing, expired or rejected.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrTokenExpired)
}

// Tracker returns the tracker mutations report to, or nil.
func (c *Client) Tracker() *realtime.Tracker { return c.tracker }
