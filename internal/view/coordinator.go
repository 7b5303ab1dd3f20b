package view

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/realtime"
	"github.com/desertthunder/basket/internal/shared"
)

// SelectionStore persists the last active list. [*repositories.PreferenceRepository] satisfies it.
type SelectionStore interface {
	LastActiveList() (int64, bool, error)
	SetLastActiveList(id int64) error
	ClearLastActiveList() error
}

// Coordinator holds the list collection and the selected list.
//
// The selected list is stored as an id into the collection, never as a separate copy, so a change to the
// selected list is visible through both [Coordinator.Selected] and [Coordinator.Lists].
type Coordinator struct {
	store  SelectionStore
	bus    *realtime.Bus
	logger *log.Logger

	mu       sync.RWMutex
	lists    []models.ShoppingList
	selected int64
}

var _ realtime.ViewState = (*Coordinator)(nil)

// NewCoordinator creates an empty [Coordinator]. A nil store keeps the selection in memory only.
func NewCoordinator(store SelectionStore, bus *realtime.Bus, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{store: store, bus: bus, logger: shared.WithLogger(logger, "component", "view")}
}

func (c *Coordinator) changed(listID int64) {
	c.bus.Publish(realtime.StateChanged{ListID: listID})
}

func (c *Coordinator) indexLocked(id int64) int {
	for i := range c.lists {
		if c.lists[i].ID == id {
			return i
		}
	}
	return -1
}

// Load replaces the collection and restores the persisted selection, falling back to the first list when the
// stored list is gone. It returns the selected id, or 0 when there are no lists.
func (c *Coordinator) Load(lists []models.ShoppingList) int64 {
	c.mu.Lock()
	c.lists = make([]models.ShoppingList, 0, len(lists))
	for _, l := range lists {
		c.lists = append(c.lists, l.Clone())
	}

	c.selected = 0
	if id, ok := c.restoreLocked(); ok && c.indexLocked(id) >= 0 {
		c.selected = id
	} else if len(c.lists) > 0 {
		c.selected = c.lists[0].ID
		c.persistLocked(c.selected)
	}
	selected := c.selected
	c.mu.Unlock()

	c.changed(0)
	return selected
}

func (c *Coordinator) restoreLocked() (int64, bool) {
	if c.store == nil {
		return 0, false
	}
	id, ok, err := c.store.LastActiveList()
	if err != nil {
		c.logger.Warn("could not restore last active list", "err", err)
		return 0, false
	}
	return id, ok
}

func (c *Coordinator) persistLocked(id int64) {
	if c.store == nil {
		return
	}

	var err error
	if id == 0 {
		err = c.store.ClearLastActiveList()
	} else {
		err = c.store.SetLastActiveList(id)
	}
	if err != nil {
		c.logger.Warn("could not persist last active list", "list_id", id, "err", err)
	}
}

// Lists returns a copy of the collection in load order.
func (c *Coordinator) Lists() []models.ShoppingList {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.ShoppingList, len(c.lists))
	for i, l := range c.lists {
		out[i] = l.Clone()
	}
	return out
}

func (c *Coordinator) List(listID int64) (models.ShoppingList, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexLocked(listID)
	if i < 0 {
		return models.ShoppingList{}, false
	}
	return c.lists[i].Clone(), true
}

// Selected returns the selected list. It is false on the list selector.
func (c *Coordinator) Selected() (models.ShoppingList, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexLocked(c.selected)
	if i < 0 {
		return models.ShoppingList{}, false
	}
	return c.lists[i].Clone(), true
}

func (c *Coordinator) SelectedID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// Select opens a list from the collection and persists the choice.
func (c *Coordinator) Select(listID int64) error {
	c.mu.Lock()
	if c.indexLocked(listID) < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", shared.ErrListNotFound, listID)
	}
	c.selected = listID
	c.persistLocked(listID)
	c.mu.Unlock()

	c.changed(listID)
	return nil
}

// ClearSelection returns to the list selector. The persisted choice is kept for the next load.
func (c *Coordinator) ClearSelection() {
	c.mu.Lock()
	c.selected = 0
	c.mu.Unlock()

	c.changed(0)
}

// UpsertList replaces a list or appends a new one. Items and members missing from list are kept from the
// existing entry, since list payloads do not always carry them.
func (c *Coordinator) UpsertList(list models.ShoppingList) {
	list = list.Clone()

	c.mu.Lock()
	if i := c.indexLocked(list.ID); i >= 0 {
		if list.Items == nil {
			list.Items = c.lists[i].Items
		}
		if list.Members == nil {
			list.Members = c.lists[i].Members
		}
		c.lists[i] = list
	} else {
		c.lists = append(c.lists, list)
	}
	c.mu.Unlock()

	c.changed(list.ID)
}

// RenameList sets a list's name. It is false when the list is unknown.
func (c *Coordinator) RenameList(listID int64, name string) bool {
	c.mu.Lock()
	i := c.indexLocked(listID)
	if i >= 0 {
		c.lists[i].Name = name
	}
	c.mu.Unlock()

	if i < 0 {
		return false
	}
	c.changed(listID)
	return true
}

// RemoveList drops a list. Removing the selected list clears the selection and its persisted id.
func (c *Coordinator) RemoveList(listID int64) (models.ShoppingList, bool) {
	c.mu.Lock()
	i := c.indexLocked(listID)
	if i < 0 {
		c.mu.Unlock()
		return models.ShoppingList{}, false
	}

	removed := c.lists[i]
	c.lists = append(c.lists[:i], c.lists[i+1:]...)
	if c.selected == listID {
		c.selected = 0
		c.persistLocked(0)
	}
	c.mu.Unlock()

	c.changed(listID)
	return removed, true
}

// AddItem appends item to a list. It is a no-op returning false when the list is unknown or already holds an
// item with the same id.
func (c *Coordinator) AddItem(listID int64, item models.Item) bool {
	c.mu.Lock()
	i := c.indexLocked(listID)
	if i < 0 || c.lists[i].FindItem(item.ID) >= 0 {
		c.mu.Unlock()
		return false
	}
	c.lists[i].Items = append(c.lists[i].Items, item)
	c.mu.Unlock()

	c.changed(listID)
	return true
}

// ReplaceItem swaps in the new copy of an item, appending it if the list did not have it yet.
func (c *Coordinator) ReplaceItem(listID int64, item models.Item) bool {
	c.mu.Lock()
	i := c.indexLocked(listID)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	l := &c.lists[i]
	if j := l.FindItem(item.ID); j >= 0 {
		l.Items[j] = item
	} else {
		l.Items = append(l.Items, item)
	}
	c.mu.Unlock()

	c.changed(listID)
	return true
}

func (c *Coordinator) RemoveItem(listID, itemID int64) (models.Item, bool) {
	c.mu.Lock()
	i := c.indexLocked(listID)
	if i < 0 {
		c.mu.Unlock()
		return models.Item{}, false
	}
	l := &c.lists[i]
	j := l.FindItem(itemID)
	if j < 0 {
		c.mu.Unlock()
		return models.Item{}, false
	}
	removed := l.Items[j]
	l.Items = append(l.Items[:j], l.Items[j+1:]...)
	c.mu.Unlock()

	c.changed(listID)
	return removed, true
}
