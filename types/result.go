package types

// ToolCall records a single tool invocation reported by the engine.
// The payload is opaque to the core; its presence alone marks progress.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    string         `json:"result,omitempty"`
}

// NodeResult is the opaque per-node payload the execution engine
// reports for one node of a running conversation.
type NodeResult struct {
	// Output is the node's textual result, empty while pending.
	Output string `json:"output,omitempty"`
	// ToolCalls lists tool invocations made while producing the output.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// Error is non-empty when the node failed. It wins over Output.
	Error string `json:"error,omitempty"`
	// Level is the engine's execution bucket for this node, if reported.
	Level *int `json:"level,omitempty"`
	// Subgraph marks a result that carries a nested execution trace.
	Subgraph bool `json:"subgraph,omitempty"`
	// Children is the nested trace for subgraph results, keyed by the
	// child graph's node names.
	Children map[string]NodeResult `json:"children,omitempty"`
}

// FileRef points at an attachment produced during a conversation.
type FileRef struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// ExecutionRecord is the full per-conversation payload polled from the
// execution engine. The core only reads it; the engine owns it.
type ExecutionRecord struct {
	GraphName      string                `json:"graph_name"`
	ConversationID string                `json:"conversation_id"`
	Input          string                `json:"input,omitempty"`
	Output         string                `json:"output,omitempty"`
	NodeResults    map[string]NodeResult `json:"node_results,omitempty"`
	GlobalOutputs  map[string][]string   `json:"global_outputs,omitempty"`
	Completed      bool                  `json:"completed"`
	Error          string                `json:"error,omitempty"`
	Attachments    []FileRef             `json:"attachments,omitempty"`
}
