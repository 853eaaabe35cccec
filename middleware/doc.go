// Package middleware exposes the HTTP adapters the fileshare transport stacks in
// front of its handlers.
//
// # Adapters
//
//   - [RequireOwnerToken]: reads the Authorization bearer token and injects it into
//     the request context for the status handler.
//   - [ClientIP]: resolves the caller's address and attaches it with
//     fileshare.WithClientIP so the engine can throttle per client.
//   - [CORS]: adds permissive cross-origin headers and answers preflight requests.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into request context values. It does NOT
// verify tokens or make throttling decisions; both are delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or verify owner tokens (delegates to Engine.SessionStatus).
//   - Access Redis.
package middleware
