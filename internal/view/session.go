package view

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/realtime"
	"github.com/desertthunder/basket/internal/services"
	"github.com/desertthunder/basket/internal/shared"
)

// ListCache keeps the last fetched lists across restarts. [*repositories.ListCacheRepository] satisfies it.
type ListCache interface {
	Replace(lists []models.ShoppingList) error
	Save(list models.ShoppingList) error
	Delete(id int64) error
}

// SessionOptions wires a [Session]. Client is required; the rest default to in-memory instances.
type SessionOptions struct {
	Client  *services.Client
	Store   SelectionStore
	Cache   ListCache
	Bus     *realtime.Bus
	Monitor *realtime.Monitor
	Logger  *log.Logger

	// Connection is the template for the live connection. Handler, Registry, Bus, Monitor and Logger are
	// filled in by the session.
	Connection realtime.Options

	// ErrorNoticeDelay mutes a dropped connection before it is reported. Zero uses the realtime default.
	ErrorNoticeDelay time.Duration
	SweepInterval    time.Duration
}

// Session is the composition root for one signed-in user: it routes user actions through the REST client,
// applies their results to the [Coordinator] and keeps the live connection on the selected list.
type Session struct {
	client     *services.Client
	view       *Coordinator
	conn       *realtime.Manager
	dispatcher *realtime.Dispatcher
	tracker    *realtime.Tracker
	notifier   *realtime.StatusNotifier
	cache      ListCache
	bus        *realtime.Bus
	monitor    *realtime.Monitor
	logger     *log.Logger
	sweep      time.Duration

	mu   sync.RWMutex
	user models.User
}

func NewSession(opts SessionOptions) *Session {
	if opts.Bus == nil {
		opts.Bus = realtime.NewBus()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Second
	}
	if opts.ErrorNoticeDelay <= 0 {
		opts.ErrorNoticeDelay = realtime.DefaultErrorNoticeDelay
	}

	s := &Session{
		client:  opts.Client,
		cache:   opts.Cache,
		bus:     opts.Bus,
		monitor: opts.Monitor,
		logger:  shared.WithLogger(opts.Logger, "component", "session"),
		sweep:   opts.SweepInterval,
	}

	s.tracker = opts.Client.Tracker()
	if s.tracker == nil {
		s.logger.Warn("client has no tracker, echoes of local writes will be applied twice")
		s.tracker = realtime.NewTracker(realtime.TrackerOptions{})
	}

	s.view = NewCoordinator(opts.Store, opts.Bus, opts.Logger)
	s.dispatcher = realtime.NewDispatcher(realtime.DispatcherOptions{
		Tracker: s.tracker,
		View:    s.view,
		Bus:     opts.Bus,
		Monitor: opts.Monitor,
		Logger:  opts.Logger,
		Self:    s.UserID,
		OnLeave: s.left,
	})

	connOpts := opts.Connection
	connOpts.Handler = s.dispatcher
	connOpts.Registry = opts.Client.Sessions()
	connOpts.Bus = opts.Bus
	connOpts.Monitor = opts.Monitor
	connOpts.Logger = opts.Logger
	s.conn = realtime.NewManager(connOpts)

	s.notifier = realtime.NewStatusNotifier(opts.Bus, opts.ErrorNoticeDelay, connOpts.AfterFunc)
	return s
}

func (s *Session) View() *Coordinator            { return s.view }
func (s *Session) Bus() *realtime.Bus            { return s.bus }
func (s *Session) Connection() *realtime.Manager { return s.conn }
func (s *Session) Client() *services.Client      { return s.client }

// UserID returns the signed-in user's id, or 0 before [Session.Refresh].
func (s *Session) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.ID
}

func (s *Session) User() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Run sweeps expired tracker entries and turns connection status into notices until ctx is done.
func (s *Session) Run(ctx context.Context) {
	go s.tracker.Run(ctx, s.sweep)
	s.notifier.Run(ctx)
}

// fail reports a failed user action and returns err.
func (s *Session) fail(action string, err error) error {
	s.logger.Error(action+" failed", "err", err)
	s.bus.Notify(realtime.LevelError, "Request failed", fmt.Sprintf("Could not %s: %v", action, err))
	return err
}

// Refresh loads the user and their lists, restores the selected list and connects to it.
func (s *Session) Refresh(ctx context.Context) error {
	if _, err := services.CheckToken(s.client.Token(), time.Now()); err != nil {
		return err
	}

	me, err := s.client.Me(ctx)
	if err != nil {
		return s.fail("load your account", err)
	}
	s.mu.Lock()
	s.user = *me
	s.mu.Unlock()

	lists, err := s.client.Lists(ctx)
	if err != nil {
		return s.fail("load lists", err)
	}
	if s.cache != nil {
		if err := s.cache.Replace(lists); err != nil {
			s.logger.Warn("could not cache lists", "err", err)
		}
	}

	if id := s.view.Load(lists); id != 0 {
		return s.Open(ctx, id)
	}
	return nil
}

// Open fetches a list with its items, selects it and moves the live connection to it.
func (s *Session) Open(ctx context.Context, listID int64) error {
	list, err := s.client.List(ctx, listID)
	if err != nil {
		return s.fail("open the list", err)
	}
	s.view.UpsertList(*list)
	if s.cache != nil {
		if err := s.cache.Save(*list); err != nil {
			s.logger.Warn("could not cache list", "list_id", listID, "err", err)
		}
	}

	if err := s.view.Select(listID); err != nil {
		return err
	}

	if s.conn.ListID() != listID {
		s.tracker.Reset()
	}
	s.conn.SetTarget(listID, s.client.Token())
	return s.conn.Connect()
}

// Close returns to the list selector and drops the live connection.
func (s *Session) Close() {
	s.conn.Disconnect()
	s.view.ClearSelection()
}

// left drops the live connection and cached copy of a list that was deleted or shared away remotely.
func (s *Session) left(listID int64) {
	if s.conn.ListID() == listID {
		s.conn.Disconnect()
	}
	s.uncache(listID)
}

func (s *Session) uncache(listID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(listID); err != nil {
		s.logger.Warn("could not drop cached list", "list_id", listID, "err", err)
	}
}

// Logout drops the connection, forgets the token and empties the view.
func (s *Session) Logout() {
	s.conn.Disconnect()
	s.conn.SetTarget(0, "")
	s.client.SetToken("")
	s.tracker.Reset()
	s.view.Load(nil)

	s.mu.Lock()
	s.user = models.User{}
	s.mu.Unlock()
}

// AddItem creates an item and shows it immediately. The broadcast echo is dropped by the dispatcher.
func (s *Session) AddItem(ctx context.Context, listID int64, in models.ItemInput) (*models.Item, error) {
	item, err := s.client.CreateItem(ctx, listID, in)
	if err != nil {
		return nil, s.fail("add "+in.Name, err)
	}
	s.view.AddItem(listID, *item)
	return item, nil
}

func (s *Session) UpdateItem(ctx context.Context, listID, itemID int64, in models.ItemInput) (*models.Item, error) {
	item, err := s.client.UpdateItem(ctx, listID, itemID, in)
	if err != nil {
		return nil, s.fail("update the item", err)
	}
	s.view.ReplaceItem(listID, *item)
	return item, nil
}

func (s *Session) ToggleItem(ctx context.Context, listID, itemID int64) (*models.Item, error) {
	item, err := s.client.ToggleItem(ctx, listID, itemID)
	if err != nil {
		return nil, s.fail("toggle the item", err)
	}
	s.view.ReplaceItem(listID, *item)
	return item, nil
}

func (s *Session) DeleteItem(ctx context.Context, listID, itemID int64) error {
	if err := s.client.DeleteItem(ctx, listID, itemID); err != nil {
		return s.fail("delete the item", err)
	}
	s.view.RemoveItem(listID, itemID)
	return nil
}

func (s *Session) CreateList(ctx context.Context, in models.ListInput) (*models.ShoppingList, error) {
	list, err := s.client.CreateList(ctx, in)
	if err != nil {
		return nil, s.fail("create "+in.Name, err)
	}
	s.view.UpsertList(*list)
	return list, nil
}

// RenameList renames a list. The selected list and the collection both show the new name.
func (s *Session) RenameList(ctx context.Context, listID int64, name string) (*models.ShoppingList, error) {
	in := models.ListInput{Name: name}
	if current, ok := s.view.List(listID); ok {
		in.Description = current.Description
	}

	list, err := s.client.UpdateList(ctx, listID, in)
	if err != nil {
		return nil, s.fail("rename the list", err)
	}
	s.view.UpsertList(*list)
	return list, nil
}

// DeleteList deletes a list, leaving it first when it is open.
func (s *Session) DeleteList(ctx context.Context, listID int64) error {
	if err := s.client.DeleteList(ctx, listID); err != nil {
		return s.fail("delete the list", err)
	}
	if s.view.SelectedID() == listID {
		s.conn.Disconnect()
	}
	s.view.RemoveList(listID)
	s.uncache(listID)
	return nil
}

func (s *Session) ShareList(ctx context.Context, listID int64, email string) (*models.ShoppingList, error) {
	list, err := s.client.ShareList(ctx, listID, email)
	if err != nil {
		return nil, s.fail("share the list", err)
	}
	s.view.UpsertList(*list)
	return list, nil
}

// RemoveMember revokes a member's access. Removing yourself leaves the list.
func (s *Session) RemoveMember(ctx context.Context, listID, userID int64) error {
	if err := s.client.RemoveMember(ctx, listID, userID); err != nil {
		return s.fail("remove the member", err)
	}

	if userID == s.UserID() {
		if s.view.SelectedID() == listID {
			s.conn.Disconnect()
		}
		s.view.RemoveList(listID)
		s.uncache(listID)
		return nil
	}

	if list, ok := s.view.List(listID); ok {
		members := make([]models.User, 0, len(list.Members))
		for _, m := range list.Members {
			if m.ID != userID {
				members = append(members, m)
			}
		}
		list.Members = members
		s.view.UpsertList(list)
	}
	return nil
}
