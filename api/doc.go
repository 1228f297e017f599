// Package api defines the wire types of the FlowCanvas HTTP surface.
//
// Every mutating request carries the version its author last observed;
// responses return the new version. A stale write is answered with
// HTTP 409 and an error payload carrying both the current and the
// expected version.
package api
