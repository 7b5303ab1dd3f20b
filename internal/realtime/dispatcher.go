package realtime

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/shared"
)

// ViewState is the list state the dispatcher mutates for remote changes.
type ViewState interface {
	List(listID int64) (models.ShoppingList, bool)
	UpsertList(list models.ShoppingList)
	RemoveList(listID int64) (models.ShoppingList, bool)
	AddItem(listID int64, item models.Item) bool
	ReplaceItem(listID int64, item models.Item) bool
	RemoveItem(listID, itemID int64) (models.Item, bool)
}

// DispatcherOptions configures a [Dispatcher].
type DispatcherOptions struct {
	Tracker *Tracker
	View    ViewState
	Bus     *Bus
	Monitor *Monitor
	Logger  *log.Logger
	// Self returns the signed-in user's id, or 0 when unknown.
	Self func() int64
	// OnLeave runs after a list the user can no longer see is dropped from the view.
	OnLeave func(listID int64)
}

// Dispatcher drops echoes of this client's own writes and applies everything else to the view.
type Dispatcher struct {
	tracker *Tracker
	view    ViewState
	bus     *Bus
	monitor *Monitor
	logger  *log.Logger
	self    func() int64
	onLeave func(listID int64)
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Tracker == nil {
		opts.Tracker = NewTracker(TrackerOptions{})
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Self == nil {
		opts.Self = func() int64 { return 0 }
	}
	if opts.OnLeave == nil {
		opts.OnLeave = func(int64) {}
	}
	return &Dispatcher{
		tracker: opts.Tracker,
		view:    opts.View,
		bus:     opts.Bus,
		monitor: opts.Monitor,
		logger:  shared.WithLogger(opts.Logger, "component", "dispatcher"),
		self:    opts.Self,
		onLeave: opts.OnLeave,
	}
}

// Handle routes one decoded event.
func (d *Dispatcher) Handle(ev Event) error {
	switch e := ev.(type) {
	case ItemChanged:
		return d.itemChanged(e)
	case ListChanged:
		return d.listChanged(e)
	case ErrorMessage:
		d.bus.Notify(LevelError, "Server error", e.Message)
		return nil
	case Pong, ConnectionEstablished:
		return nil
	default:
		return fmt.Errorf("%w: unhandled event %T", shared.ErrMalformedFrame, ev)
	}
}

// suppressed reports whether key belongs to a recent local write. Created keys are only looked up.
func (d *Dispatcher) suppressed(key string, event EventType) bool {
	age, ok := d.tracker.match(key, event != EventCreated)
	if ok {
		d.echo(key, age)
	}
	return ok
}

func (d *Dispatcher) echo(key string, age time.Duration) {
	d.logger.Debug("echo suppressed", "key", key, "age", age)
	d.monitor.EchoSuppressed(age)
}

func (d *Dispatcher) itemChanged(e ItemChanged) error {
	if e.Item == nil || e.Event == "" {
		d.logger.Debug("item change without payload", "event", e.Event)
		return nil
	}
	if !e.Event.ItemEvent() {
		return fmt.Errorf("%w: item event %q", shared.ErrMalformedFrame, e.Event)
	}

	item := *e.Item
	listID := e.ListID
	if listID == 0 {
		listID = item.ListID
	}

	if e.Event == EventCreated {
		if age, ok := d.tracker.takeCreate(); ok {
			d.echo("create-flag", age)
			return nil
		}
	}
	if d.suppressed(ItemKey(e.Event, item.ID), e.Event) {
		if sibling, ok := e.Event.updateSibling(); ok {
			d.tracker.Consume(ItemKey(sibling, item.ID))
		}
		return nil
	}

	actor := d.actor(listID, e.UserID)
	switch e.Event {
	case EventCreated:
		d.view.AddItem(listID, item)
		d.bus.Notify(LevelInfo, "Item added", fmt.Sprintf("%s added %s", actor, item.Name))
	case EventUpdated, EventCategoryChanged:
		d.view.ReplaceItem(listID, item)
		d.bus.Notify(LevelInfo, "Item updated", fmt.Sprintf("%s updated %s", actor, item.Name))
	case EventDeleted:
		name := item.Name
		if removed, ok := d.view.RemoveItem(listID, item.ID); ok && name == "" {
			name = removed.Name
		}
		d.bus.Notify(LevelInfo, "Item removed", fmt.Sprintf("%s removed %s", actor, name))
	}

	d.monitor.RemoteApplied()
	return nil
}

func (d *Dispatcher) listChanged(e ListChanged) error {
	if e.Event == "" {
		d.logger.Debug("list change without event type")
		return nil
	}
	if !e.Event.ListEvent() {
		return fmt.Errorf("%w: list event %q", shared.ErrMalformedFrame, e.Event)
	}

	listID := e.ListID
	if listID == 0 && e.List != nil {
		listID = e.List.ID
	}
	if listID == 0 {
		return fmt.Errorf("%w: list change without list id", shared.ErrMalformedFrame)
	}

	if d.suppressed(ListKey(e.Event, listID), e.Event) {
		return nil
	}

	switch e.Event {
	case EventDeleted:
		d.leave(listID, e.List, "List deleted", "%s was deleted")
	case EventMemberRemoved:
		if self := d.self(); self != 0 && e.RemovedUserID != nil && *e.RemovedUserID == self {
			d.leave(listID, e.List, "Access removed", "You were removed from %s")
			break
		}
		if e.List != nil {
			d.view.UpsertList(*e.List)
		}
		d.bus.Notify(LevelInfo, "Member removed", fmt.Sprintf("A member left %s", d.listName(listID, e.List)))
	case EventShared:
		if e.List != nil {
			d.view.UpsertList(*e.List)
		}
		d.bus.Notify(LevelInfo, "List shared", fmt.Sprintf("%s was shared with %s", d.listName(listID, e.List), e.NewMemberEmail))
	default:
		if e.List == nil {
			return nil
		}
		before, known := d.view.List(listID)
		d.view.UpsertList(*e.List)
		if known && before.Name != e.List.Name {
			d.bus.Notify(LevelInfo, "List renamed", fmt.Sprintf("%s renamed %s to %s", d.actor(listID, e.UserID), before.Name, e.List.Name))
		} else {
			d.bus.Notify(LevelInfo, "List updated", fmt.Sprintf("%s was updated", e.List.Name))
		}
	}

	d.monitor.RemoteApplied()
	return nil
}

// leave removes a list the user can no longer see and sends them back to the selector.
func (d *Dispatcher) leave(listID int64, payload *models.ShoppingList, title, format string) {
	name := d.listName(listID, payload)
	d.view.RemoveList(listID)
	d.onLeave(listID)
	d.bus.Publish(Navigate{To: RouteSelector, Reason: title})
	d.bus.Notify(LevelWarning, title, fmt.Sprintf(format, name))
}

func (d *Dispatcher) listName(listID int64, payload *models.ShoppingList) string {
	if l, ok := d.view.List(listID); ok && l.Name != "" {
		return l.Name
	}
	if payload != nil && payload.Name != "" {
		return payload.Name
	}
	return fmt.Sprintf("list #%d", listID)
}

// actor names who made a change, falling back to "Someone".
func (d *Dispatcher) actor(listID int64, userID *int64) string {
	if userID == nil {
		return "Someone"
	}
	if l, ok := d.view.List(listID); ok {
		if m, ok := l.Member(*userID); ok {
			return m.DisplayName()
		}
	}
	return "Someone"
}
