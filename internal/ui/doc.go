// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [SelectorView] : pick one of the user's lists
//  2. [ItemsView] : the live list, with a connection indicator and the latest notification
//  3. [AddView] : a text input for a new item
//
// The [Model] implements bubbletea's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Signals from the session's bus (connection status, notifications, navigation and state changes) are read by a
// [tea.Cmd] that blocks on the subscription channel and re-arms itself after every signal.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
