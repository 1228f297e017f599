// Package graph implements the workflow graph editing core: an explicit
// editing Session over a persisted GraphConfig, the edge consistency
// engine that keeps input/output declarations bidirectionally
// symmetric, deterministic auto-layout, and structural validation.
//
// All mutations are copy-on-write: a mutation builds a new node
// collection, validates and reconciles it, and only then commits it to
// the session. A failed mutation leaves the session exactly as it was.
//
// Sessions carry no ambient global state. Every operation takes the
// session (and, for persistence calls, a context) explicitly, so
// multiple graphs can be edited concurrently by independent sessions.
package graph
