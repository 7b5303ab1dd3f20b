package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/realtime"
	"github.com/desertthunder/basket/internal/view"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SelectorView ViewState = iota
	ItemsView
	AddView
)

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	session *view.Session
	signals <-chan realtime.Signal
	cancel  func()

	view    ViewState
	width   int
	height  int
	lists   list.Model
	items   list.Model
	input   textinput.Model
	status  realtime.Status
	notice  *realtime.Notification
	loading bool
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a TUI model over session. It subscribes to the session's bus until [Model.Close].
func NewModel(ctx context.Context, session *view.Session) *Model {
	signals, cancel := session.Bus().Subscribe(128)

	lists := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	lists.Title = "Shopping Lists"
	items := list.New(nil, list.NewDefaultDelegate(), 0, 0)

	input := textinput.New()
	input.Placeholder = "Milk"
	input.CharLimit = 120

	return &Model{
		ctx:     ctx,
		session: session,
		signals: signals,
		cancel:  cancel,
		view:    SelectorView,
		lists:   lists,
		items:   items,
		input:   input,
		loading: true,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Close unsubscribes from the bus.
func (m *Model) Close() {
	m.cancel()
}

// Init loads the user's lists and starts listening for signals.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.waitForSignal())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.lists.SetSize(msg.Width-4, msg.Height-8)
		m.items.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SelectorView:
			return m.handleSelectorKeys(msg)
		case ItemsView:
			return m.handleItemsKeys(msg)
		case AddView:
			return m.handleAddKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgRefreshed:
		m.loading = false
		m.err = msg.err()
		m.sync()
		if m.session.View().SelectedID() != 0 {
			m.view = ItemsView
		}
		return m, nil

	case MsgOpened:
		m.loading = false
		if err := msg.err(); err == nil {
			m.view = ItemsView
		}
		m.sync()
		return m, nil

	case MsgActionDone:
		return m, nil

	case MsgSignal:
		m.apply(msg.data.(realtime.Signal))
		return m, m.waitForSignal()

	case MsgSignalsClosed:
		return m, nil
	}
	return m, nil
}

// apply folds one bus signal into the model.
func (m *Model) apply(s realtime.Signal) {
	switch s := s.(type) {
	case realtime.StatusChanged:
		m.status = s.Status
	case realtime.Notification:
		m.notice = &s
	case realtime.Navigate:
		if s.To == realtime.RouteSelector {
			m.session.Close()
			m.view = SelectorView
			m.input.Blur()
		}
	case realtime.StateChanged:
		m.sync()
	}
}

// sync rebuilds both lists from the coordinator.
func (m *Model) sync() {
	coord := m.session.View()
	m.lists.SetItems(listEntries(coord.Lists()))

	selected, ok := coord.Selected()
	if !ok {
		m.items.SetItems(nil)
		return
	}
	m.items.Title = selected.Name
	m.items.SetItems(itemEntries(selected.Items))
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.err))
	}
	if m.loading {
		return styles.help.Render("Loading lists...")
	}

	switch m.view {
	case SelectorView:
		return m.renderSelector()
	case ItemsView:
		return m.renderItems()
	case AddView:
		return m.renderAdd()
	default:
		return ""
	}
}

func (m *Model) handleSelectorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.lists.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.loading = true
		m.err = nil
		return m, m.refresh()
	case key.Matches(msg, m.keys.enter):
		if e, ok := m.lists.SelectedItem().(listEntry); ok {
			m.loading = true
			return m, m.open(e.list.ID)
		}
		return m, nil
	}

	return m.updateLists(msg)
}

func (m *Model) handleItemsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.items.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	listID := m.session.View().SelectedID()
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.session.Close()
		m.view = SelectorView
		return m, nil
	case key.Matches(msg, m.keys.add):
		m.view = AddView
		m.input.SetValue("")
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.toggle):
		if e, ok := m.items.SelectedItem().(itemEntry); ok {
			return m, m.action(func(ctx context.Context) error {
				_, err := m.session.ToggleItem(ctx, listID, e.item.ID)
				return err
			})
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if e, ok := m.items.SelectedItem().(itemEntry); ok {
			return m, m.action(func(ctx context.Context) error {
				return m.session.DeleteItem(ctx, listID, e.item.ID)
			})
		}
		return m, nil
	case key.Matches(msg, m.keys.reconnect):
		m.session.Connection().Reconnect()
		return m, nil
	}

	return m.updateLists(msg)
}

func (m *Model) handleAddKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.input.Blur()
		m.view = ItemsView
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		name := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		m.view = ItemsView
		if name == "" {
			return m, nil
		}
		listID := m.session.View().SelectedID()
		return m, m.action(func(ctx context.Context) error {
			_, err := m.session.AddItem(ctx, listID, models.ItemInput{Name: name})
			return err
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SelectorView:
		m.lists, cmd = m.lists.Update(msg)
	case ItemsView:
		m.items, cmd = m.items.Update(msg)
	}
	return m, cmd
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg(m.session.Refresh(m.ctx))
	}
}

func (m *Model) open(listID int64) tea.Cmd {
	return func() tea.Msg {
		return openedMsg(m.session.Open(m.ctx, listID))
	}
}

func (m *Model) action(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(fn(m.ctx))
	}
}

// waitForSignal blocks on the bus subscription and delivers the next signal.
func (m *Model) waitForSignal() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.signals
		if !ok {
			return signalsClosedMsg()
		}
		return signalMsg(s)
	}
}

func (m *Model) renderNotice() string {
	if m.notice == nil {
		return ""
	}
	return styles.level(m.notice.Level).Render(fmt.Sprintf("%s: %s", m.notice.Title, m.notice.Message))
}

func (m *Model) renderSelector() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n\n%s", m.lists.View(), m.renderNotice(), helpView)
}

func (m *Model) renderItems() string {
	header := fmt.Sprintf("%s  %s", styles.status(m.status), styles.help.Render(m.session.User().DisplayName()))
	helpKeys := []key.Binding{m.keys.add, m.keys.toggle, m.keys.remove, m.keys.back, m.keys.quit}
	if m.status.Terminal() {
		helpKeys = append(helpKeys, m.keys.reconnect)
	}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", header, m.items.View(), m.renderNotice(), helpView)
}

func (m *Model) renderAdd() string {
	title := styles.title.Render(fmt.Sprintf("Add to '%s'", m.items.Title))
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.input.View(), styles.help.Render("enter to add • esc to cancel"))
}
