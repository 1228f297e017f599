// Package client provides HTTP clients for the FlowCanvas service and
// the execution engine.
//
// Client speaks the versioned graph API: every mutation carries the
// version the caller last observed, and a stale write comes back as a
// CONFLICT error with both versions. After a conflict the caller must
// refresh before mutating again; the client never retries a stale
// write on its own.
package client
