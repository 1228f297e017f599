// Package telemetry wires the OpenTelemetry SDK for traces and
// metrics. When disabled the global providers stay noop and nothing
// dials out.
package telemetry
