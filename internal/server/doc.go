// Package server manages the lifecycle of the FlowCanvas HTTP
// listener: non-blocking start, an optional connection cap,
// asynchronous failure reporting and signal-driven graceful shutdown.
package server
