package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/basket/internal/realtime"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgRefreshed MsgKind = iota
	MsgOpened
	MsgActionDone
	MsgSignal
	MsgSignalsClosed
)

// refreshedMsg is the constructor for [MsgRefreshed]
func refreshedMsg(err error) Msg {
	return Msg{kind: MsgRefreshed, data: err}
}

// openedMsg is the constructor for [MsgOpened]
func openedMsg(err error) Msg {
	return Msg{kind: MsgOpened, data: err}
}

// actionDoneMsg is the constructor for [MsgActionDone]. Failures already reached the bus as notifications.
func actionDoneMsg(err error) Msg {
	return Msg{kind: MsgActionDone, data: err}
}

// signalMsg is the constructor for [MsgSignal]
func signalMsg(s realtime.Signal) Msg {
	return Msg{kind: MsgSignal, data: s}
}

func signalsClosedMsg() Msg {
	return Msg{kind: MsgSignalsClosed}
}

func (m Msg) err() error {
	err, _ := m.data.(error)
	return err
}
