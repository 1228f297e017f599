// Package handlers implements the HTTP handlers of the FlowCanvas API:
// graph CRUD under optimistic concurrency, the MCP server registry,
// execution state reads and streaming, and health checks.
package handlers
