// Package view holds the client's list state and composes the pieces that change it.
//
// [Coordinator] is the single owner of the list collection and the selected list. User actions reach it through
// [Session] after the REST call succeeds; remote changes reach it through the realtime dispatcher. Both paths
// publish [realtime.StateChanged] so a UI can redraw.
package view
