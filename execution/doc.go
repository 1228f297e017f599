// Package execution interprets the opaque per-conversation payload
// reported by the server-side execution engine into a
// presentation-agnostic view: per-node statuses, level-grouped
// scheduling, recursively expanded subgraph traces, and per-node
// global-output histories.
//
// The package never executes anything. It reads engine state and
// derives views; a missed or out-of-order read only causes transient
// staleness because every read fully replaces the interpreted view.
package execution
