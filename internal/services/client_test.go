package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/realtime"
	"github.com/desertthunder/basket/internal/shared"
	tu "github.com/desertthunder/basket/internal/testing"
)

var (
	ann = models.User{ID: 1, Email: "ann@example.com", FullName: "Ann"}
	ben = models.User{ID: 2, Email: "ben@example.com", FullName: "Ben"}
)

func groceries() models.ShoppingList {
	return models.ShoppingList{
		ID:      5,
		Name:    "Groceries",
		OwnerID: ann.ID,
		Members: []models.User{ann, ben},
		Items:   []models.Item{{ID: 7, ListID: 5, Name: "Eggs"}},
	}
}

type fixture struct {
	api      *tu.FakeAPI
	client   *Client
	tracker  *realtime.Tracker
	sessions *realtime.SessionRegistry
	monitor  *realtime.Monitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	api := tu.NewFakeAPI(t)
	token := api.AddUser(ann, "secret")
	api.AddUser(ben, "hunter2")
	api.AddList(groceries())

	f := &fixture{
		api:      api,
		tracker:  realtime.NewTracker(realtime.TrackerOptions{}),
		sessions: realtime.NewSessionRegistry(),
		monitor:  realtime.NewMonitor(0),
	}
	f.client = NewClient(Options{
		BaseURL:  api.URL,
		Token:    token,
		Sessions: f.sessions,
		Tracker:  f.tracker,
		Monitor:  f.monitor,
		Logger:   shared.NewLogger(&strings.Builder{}),
	})
	return f
}

func TestClient(t *testing.T) {
	t.Run("NewClient", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			c := NewClient(Options{})
			assert.Equal(t, "http://localhost:8000", c.baseURL)
			assert.NotNil(t, c.Sessions())
			assert.Empty(t, c.Token())
		})

		t.Run("Trims Trailing Slash", func(t *testing.T) {
			c := NewClient(Options{BaseURL: "https://api.example.com/"})
			assert.Equal(t, "https://api.example.com", c.baseURL)
		})
	})

	t.Run("Headers", func(t *testing.T) {
		t.Run("Sends Bearer Token And Request ID", func(t *testing.T) {
			f := newFixture(t)

			_, err := f.client.Lists(context.Background())
			require.NoError(t, err)

			reqs := f.api.Requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, "Bearer "+f.client.Token(), reqs[0].Authorization)
			assert.Len(t, reqs[0].RequestID, 36)
			assert.Empty(t, reqs[0].SessionID)
		})

		t.Run("Request IDs Are Unique", func(t *testing.T) {
			f := newFixture(t)

			for range 3 {
				_, err := f.client.Lists(context.Background())
				require.NoError(t, err)
			}

			seen := map[string]bool{}
			for _, r := range f.api.Requests() {
				seen[r.RequestID] = true
			}
			assert.Len(t, seen, 3)
		})

		t.Run("Tags Session ID From Registry", func(t *testing.T) {
			f := newFixture(t)
			f.sessions.Set("sess-1")

			_, err := f.client.List(context.Background(), 5)
			require.NoError(t, err)

			f.sessions.Set("")
			_, err = f.client.List(context.Background(), 5)
			require.NoError(t, err)

			reqs := f.api.Requests()
			require.Len(t, reqs, 2)
			assert.Equal(t, "sess-1", reqs[0].SessionID)
			assert.Empty(t, reqs[1].SessionID)
		})

		t.Run("SetToken Swaps Credentials", func(t *testing.T) {
			f := newFixture(t)
			f.client.SetToken("")

			_, err := f.client.Lists(context.Background())
			assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
			assert.True(t, IsAuthError(err))

			reqs := f.api.Requests()
			require.Len(t, reqs, 1)
			assert.Empty(t, reqs[0].Authorization)
		})

		t.Run("Through Mock Transport", func(t *testing.T) {
			mock := tu.NewMockRoundTripper(tu.JSONResponse(http.StatusOK, `[]`), nil)
			sessions := realtime.NewSessionRegistry()
			sessions.Set("abc")
			c := NewClient(Options{BaseURL: "http://api.test", Token: "tok", Transport: mock, Sessions: sessions})

			lists, err := c.Lists(context.Background())
			require.NoError(t, err)
			assert.Empty(t, lists)

			req := mock.LastRequest()
			require.NotNil(t, req)
			assert.Equal(t, "/api/v1/lists", req.URL.Path)
			assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
			assert.Equal(t, "abc", req.Header.Get(HeaderSessionID))
			assert.Equal(t, "application/json", req.Header.Get("Accept"))
		})
	})

	t.Run("Errors", func(t *testing.T) {
		t.Run("Transport Failure", func(t *testing.T) {
			mock := tu.NewMockRoundTripper(nil, errors.New("connection refused"))
			c := NewClient(Options{BaseURL: "http://api.test", Token: "tok", Transport: mock})

			_, err := c.Lists(context.Background())
			assert.ErrorIs(t, err, shared.ErrAPIRequest)
		})

		t.Run("Body Read Failure", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &tu.FCloser{}}
			c := NewClient(Options{BaseURL: "http://api.test", Transport: tu.NewMockRoundTripper(resp, nil)})

			_, err := c.Lists(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to read response")
		})

		t.Run("Invalid JSON", func(t *testing.T) {
			mock := tu.NewMockRoundTripper(tu.JSONResponse(http.StatusOK, `{not json`), nil)
			c := NewClient(Options{BaseURL: "http://api.test", Transport: mock})

			_, err := c.Lists(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to decode response")
		})

		t.Run("Not Found Distinguishes Lists And Items", func(t *testing.T) {
			f := newFixture(t)

			_, err := f.client.List(context.Background(), 999)
			assert.ErrorIs(t, err, shared.ErrListNotFound)

			_, err = f.client.ToggleItem(context.Background(), 5, 999)
			assert.ErrorIs(t, err, shared.ErrItemNotFound)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "Item 999 not found", apiErr.Detail)
		})

		t.Run("Non Member Is Denied", func(t *testing.T) {
			f := newFixture(t)
			f.api.AddList(models.ShoppingList{ID: 6, Name: "Ben's", OwnerID: ben.ID, Members: []models.User{ben}})

			_, err := f.client.List(context.Background(), 6)
			assert.ErrorIs(t, err, shared.ErrAccessDenied)
		})
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		path   string
		want   error
	}{
		{"Unauthorized", http.StatusUnauthorized, "/api/v1/lists", shared.ErrNotAuthenticated},
		{"Forbidden", http.StatusForbidden, "/api/v1/lists/1", shared.ErrAccessDenied},
		{"List Not Found", http.StatusNotFound, "/api/v1/lists/1", shared.ErrListNotFound},
		{"Item Not Found", http.StatusNotFound, "/api/v1/lists/1/items/2", shared.ErrItemNotFound},
		{"Bad Gateway", http.StatusBadGateway, "/api/v1/lists", shared.ErrServiceUnavailable},
		{"Unavailable", http.StatusServiceUnavailable, "/api/v1/lists", shared.ErrServiceUnavailable},
		{"Unprocessable", http.StatusUnprocessableEntity, "/api/v1/lists", shared.ErrAPIRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{Method: http.MethodGet, Path: tt.path, Status: tt.status}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("Message", func(t *testing.T) {
		err := &APIError{Method: "GET", Path: "/x", Status: 500, Detail: "boom"}
		assert.Equal(t, "GET /x: status 500: boom", err.Error())

		err.Detail = ""
		assert.Equal(t, "GET /x: status 500", err.Error())
	})
}

func TestDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"String Detail", `{"detail": "List not found"}`, "List not found"},
		{"Validation Detail", `{"detail": [{"msg": "field required"}]}`, `[{"msg": "field required"}]`},
		{"Plain Text", "Internal Server Error\n", "Internal Server Error"},
		{"Empty Object", `{}`, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detail([]byte(tt.body)))
		})
	}
}
