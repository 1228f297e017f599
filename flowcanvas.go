// Package flowcanvas provides a top-level convenience entry point for
// editing agent workflow graphs with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/flowcanvas"
//
//	session := flowcanvas.NewSession()          // in-memory, for tools and tests
//	session := flowcanvas.NewSessionWithStore(s, logger)
//
// This is a thin wrapper around [graph.NewSession] backed by an
// in-memory store; use the graph and persistence packages directly when
// you need a durable backend.
package flowcanvas

import (
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/graph"
	"github.com/BaSui01/flowcanvas/persistence"
)

// Version is the flowcanvas library version.
const Version = "0.1.0"

// NewSession creates an editing session over a fresh in-memory store
// with a no-op logger.
func NewSession() *graph.Session {
	return graph.NewSession(persistence.NewMemoryGraphStore(), zap.NewNop())
}

// NewSessionWithStore creates an editing session over the given
// persistence backend. A nil logger falls back to a no-op logger.
func NewSessionWithStore(store graph.Persistence, logger *zap.Logger) *graph.Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return graph.NewSession(store, logger)
}
