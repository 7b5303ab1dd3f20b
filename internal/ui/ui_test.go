package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/realtime"
	"github.com/desertthunder/basket/internal/services"
	"github.com/desertthunder/basket/internal/shared"
	"github.com/desertthunder/basket/internal/view"
)

func groceries() models.ShoppingList {
	return models.ShoppingList{
		ID:      5,
		Name:    "Groceries",
		Members: []models.User{{ID: 1, Email: "ann@example.com"}},
		Items: []models.Item{
			{ID: 7, ListID: 5, Name: "Eggs", Quantity: "12"},
			{ID: 8, ListID: 5, Name: "Milk", Completed: true},
		},
	}
}

func newTestModel(t *testing.T) *Model {
	t.Helper()

	logger := shared.NewLogger(&strings.Builder{})
	session := view.NewSession(view.SessionOptions{
		Client: services.NewClient(services.Options{Logger: logger}),
		Logger: logger,
	})
	m := NewModel(context.Background(), session)
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	return m
}

func TestModelSignals(t *testing.T) {
	t.Run("Status Changes Update Indicator", func(t *testing.T) {
		m := newTestModel(t)

		m.Update(signalMsg(realtime.StatusChanged{ListID: 5, Status: realtime.StatusOpen}))
		assert.Equal(t, realtime.StatusOpen, m.status)
	})

	t.Run("Notification Is Shown", func(t *testing.T) {
		m := newTestModel(t)
		m.loading = false

		m.Update(signalMsg(realtime.Notification{Level: realtime.LevelInfo, Title: "Item added", Message: "Ben added Milk"}))
		require.NotNil(t, m.notice)
		assert.Contains(t, m.View(), "Ben added Milk")
	})

	t.Run("Navigate Returns To Selector", func(t *testing.T) {
		m := newTestModel(t)
		m.session.View().Load([]models.ShoppingList{groceries()})
		require.NoError(t, m.session.View().Select(5))
		m.view = ItemsView

		m.Update(signalMsg(realtime.Navigate{To: realtime.RouteSelector, Reason: "List deleted"}))
		assert.Equal(t, SelectorView, m.view)
		assert.Zero(t, m.session.View().SelectedID())
		assert.Equal(t, realtime.StatusIdle, m.session.Connection().Status())
	})

	t.Run("State Changes Rebuild Lists", func(t *testing.T) {
		m := newTestModel(t)

		m.session.View().Load([]models.ShoppingList{groceries()})
		m.Update(signalMsg(realtime.StateChanged{}))

		assert.Len(t, m.lists.Items(), 1)
		assert.Len(t, m.items.Items(), 2)
		assert.Equal(t, "Groceries", m.items.Title)
	})

	t.Run("Signal Command Reads The Bus", func(t *testing.T) {
		m := newTestModel(t)
		cmd := m.waitForSignal()

		m.session.Bus().Notify(realtime.LevelWarning, "Connection lost", "retrying")
		msg, ok := cmd().(Msg)
		require.True(t, ok)
		assert.Equal(t, MsgSignal, msg.kind)
	})

	t.Run("Closed Subscription", func(t *testing.T) {
		m := newTestModel(t)
		m.Close()

		msg := m.waitForSignal()().(Msg)
		assert.Equal(t, MsgSignalsClosed, msg.kind)
	})
}

func TestModelKeys(t *testing.T) {
	t.Run("Refresh Failure Shows Error", func(t *testing.T) {
		m := newTestModel(t)

		m.Update(refreshedMsg(errors.New("boom")))
		assert.Contains(t, m.View(), "boom")
	})

	t.Run("Refreshed With Selection Opens Items", func(t *testing.T) {
		m := newTestModel(t)
		m.session.View().Load([]models.ShoppingList{groceries()})

		m.Update(refreshedMsg(nil))
		assert.Equal(t, ItemsView, m.view)
		assert.Contains(t, m.View(), "Eggs")
	})

	t.Run("Add Item Input", func(t *testing.T) {
		m := newTestModel(t)
		m.session.View().Load([]models.ShoppingList{groceries()})
		m.Update(refreshedMsg(nil))

		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
		assert.Equal(t, AddView, m.view)
		assert.Contains(t, m.View(), "Add to 'Groceries'")

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Nil(t, cmd)
		assert.Equal(t, ItemsView, m.view)
	})

	t.Run("Escape From Add", func(t *testing.T) {
		m := newTestModel(t)
		m.view = AddView

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.Equal(t, ItemsView, m.view)
	})

	t.Run("Back Leaves The List", func(t *testing.T) {
		m := newTestModel(t)
		m.session.View().Load([]models.ShoppingList{groceries()})
		m.Update(refreshedMsg(nil))

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.Equal(t, SelectorView, m.view)
		assert.Zero(t, m.session.View().SelectedID())
	})

	t.Run("Quit", func(t *testing.T) {
		m := newTestModel(t)
		m.loading = false

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})
}

func TestEntries(t *testing.T) {
	l := groceries()

	e := listEntry{list: l}
	assert.Equal(t, "Groceries", e.Title())
	assert.Equal(t, "1 of 2 left • 1 members", e.Description())

	items := itemEntries(l.Items)
	require.Len(t, items, 2)
	assert.Equal(t, "12", items[0].(itemEntry).Description())
	assert.Contains(t, items[1].(itemEntry).Title(), "Milk")
}
