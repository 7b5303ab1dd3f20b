// Package services implements [Client], the HTTP client for the shopping list API.
//
// # Authentication
//
// Requests carry "Authorization: Bearer <token>" through an [oauth2.Transport] fed by a static token source.
// [ParseClaims] reads the user id and expiry from the token without verifying it; the server remains the judge.
//
// # Session tagging
//
// Every request carries X-Request-ID. Once the realtime connection has completed its handshake, requests also
// carry x-session-id so the server can leave the originating socket out of its broadcast.
//
// # Mutations
//
// Every write goes through a single wrapper that records the write with the [realtime.Tracker] before the call
// (or arms the ignore-next-create flag for creates), tags the request and records the created id afterwards.
// Call sites cannot skip the bookkeeping.
//
// # Error Handling
//
// Non-2xx responses become [*APIError], which unwraps to the matching sentinel from the shared package:
//   - [shared.ErrNotAuthenticated] : 401
//   - [shared.ErrAccessDenied] : 403
//   - [shared.ErrListNotFound] / [shared.ErrItemNotFound] : 404
//   - [shared.ErrServiceUnavailable] : 502, 503, 504
//   - [shared.ErrAPIRequest] : anything else
//
// Failed calls are never retried.
package services
