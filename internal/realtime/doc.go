// Package realtime keeps one shopping list in sync with the server over a WebSocket.
//
// The pieces, leaf first:
//   - [SessionRegistry] holds the server-assigned session id that REST calls attach as x-session-id
//   - [Tracker] remembers this client's recent writes so their broadcast echoes can be dropped
//   - [Decode] turns inbound frames into typed [Event] values
//   - [Manager] owns the socket: dialing, backoff, heartbeat and close-code handling
//   - [Dispatcher] filters echoes and applies remote changes to a [ViewState]
//   - [Bus] carries [Signal] values (status, notifications, navigation) to the UI
//   - [StatusNotifier] turns status changes into user-facing notices
//   - [Monitor] keeps moving averages of request and echo latency
package realtime
