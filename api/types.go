package api

import (
	"time"

	"github.com/BaSui01/flowcanvas/graph"
	"github.com/BaSui01/flowcanvas/types"
)

// Response is the unified API response envelope.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo is the wire form of a types.Error.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`

	// Current and Expected are set for CONFLICT errors.
	Current  int64 `json:"current_version,omitempty"`
	Expected int64 `json:"expected_version,omitempty"`
}

// ListGraphsResponse carries the stored graph names.
type ListGraphsResponse struct {
	Graphs []string `json:"graphs"`
}

// GraphResponse carries one graph and its version.
type GraphResponse struct {
	Config  types.GraphConfig `json:"config"`
	Version int64             `json:"version"`
}

// PutGraphRequest writes a graph under the CAS contract.
type PutGraphRequest struct {
	Config  types.GraphConfig `json:"config"`
	Version int64             `json:"version"`
}

// RenameGraphRequest moves a graph to a new name.
type RenameGraphRequest struct {
	NewName string `json:"new_name"`
	Version int64  `json:"version"`
}

// GraphStatsResponse carries the prompt token statistics of a graph at
// the version they were computed from.
type GraphStatsResponse struct {
	Stats   graph.GraphStats `json:"stats"`
	Version int64            `json:"version"`
}

// VersionResponse carries the version assigned by a successful write.
type VersionResponse struct {
	Version int64 `json:"version"`
}

// RegistryResponse carries the MCP server registry and its version.
type RegistryResponse struct {
	Registry types.ServerRegistry `json:"registry"`
	Version  int64                `json:"version"`
}

// PutServerRequest adds or updates one MCP server entry.
type PutServerRequest struct {
	Server  types.MCPServer `json:"server"`
	Version int64           `json:"version"`
}
