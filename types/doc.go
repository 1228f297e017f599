// Package types defines the core data model shared across FlowCanvas:
// workflow graph configurations, agent nodes, execution results reported
// by the engine, and the structured error taxonomy used at every API
// boundary.
//
// The types in this package are plain data carriers. Structural
// invariants (name uniqueness, edge symmetry, subgraph self-reference)
// are enforced by the graph package on every mutation; persistence
// version semantics live in the persistence package.
package types
