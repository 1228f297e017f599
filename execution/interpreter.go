package execution

import (
	"sort"
	"strings"

	"github.com/BaSui01/flowcanvas/types"
)

// Status is the derived execution state of a single node.
type Status string

const (
	// StatusPending means the node has produced nothing yet.
	StatusPending Status = "pending"
	// StatusRunning means the node is in the current scheduling
	// frontier of an uncompleted conversation.
	StatusRunning Status = "running"
	// StatusCompleted means the node produced output or tool calls.
	StatusCompleted Status = "completed"
	// StatusError means the engine reported a node failure.
	StatusError Status = "error"
)

// Terminal reports whether the status will not change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// NodeState is the interpreted state of one node in a conversation.
type NodeState struct {
	Name      string           `json:"name"`
	Status    Status           `json:"status"`
	Output    string           `json:"output,omitempty"`
	ToolCalls []types.ToolCall `json:"tool_calls,omitempty"`
	Error     string           `json:"error,omitempty"`
	// Level is the resolved execution bucket; unreported levels
	// collapse to 0.
	Level int `json:"level"`
	// Children holds the recursively interpreted trace of a subgraph
	// node, nil otherwise.
	Children map[string]*NodeState `json:"children,omitempty"`
}

// GraphState is the full interpreted view of one conversation. Each
// poll produces a fresh GraphState that replaces the previous one.
type GraphState struct {
	GraphName      string                `json:"graph_name"`
	ConversationID string                `json:"conversation_id"`
	Input          string                `json:"input,omitempty"`
	Output         string                `json:"output,omitempty"`
	Completed      bool                  `json:"completed"`
	Error          string                `json:"error,omitempty"`
	Nodes          map[string]*NodeState `json:"nodes"`
	Levels         []LevelGroup          `json:"levels"`
	Outputs        *OutputHistory        `json:"global_outputs,omitempty"`
	Attachments    []types.FileRef       `json:"attachments,omitempty"`
}

// Interpret derives the presentation-agnostic state of a conversation
// from the engine's raw record, using the given scheduling mode for the
// level view and running-frontier derivation.
func Interpret(record types.ExecutionRecord, mode Mode) *GraphState {
	state := &GraphState{
		GraphName:      record.GraphName,
		ConversationID: record.ConversationID,
		Input:          record.Input,
		Output:         record.Output,
		Completed:      record.Completed,
		Error:          record.Error,
		Nodes:          interpretNodes(record.NodeResults),
		Outputs:        NewOutputHistory(),
		Attachments:    record.Attachments,
	}
	state.Outputs.Replace(record.GlobalOutputs)
	state.Levels = ScheduleView(state.Nodes, mode)
	if !record.Completed {
		markRunning(state.Levels, mode)
	}
	return state
}

// interpretNodes converts raw results into node states, recursing into
// subgraph traces with identical rules. Recursion depth is bounded only
// by the data the engine actually supplied.
func interpretNodes(results map[string]types.NodeResult) map[string]*NodeState {
	states := make(map[string]*NodeState, len(results))
	for name, result := range results {
		states[name] = interpretNode(name, result)
	}
	return states
}

func interpretNode(name string, result types.NodeResult) *NodeState {
	state := &NodeState{
		Name:      name,
		Status:    deriveStatus(result),
		Output:    result.Output,
		ToolCalls: result.ToolCalls,
		Error:     result.Error,
	}
	if result.Level != nil {
		state.Level = *result.Level
	}
	if result.Subgraph {
		state.Children = interpretNodes(result.Children)
	}
	return state
}

// deriveStatus applies the status rules: an error always wins, then any
// non-whitespace output or any tool call counts as completed.
func deriveStatus(result types.NodeResult) Status {
	if result.Error != "" {
		return StatusError
	}
	if strings.TrimSpace(result.Output) != "" || len(result.ToolCalls) > 0 {
		return StatusCompleted
	}
	return StatusPending
}

// markRunning promotes pending nodes in the scheduling frontier to
// running: in parallel mode every pending node of the first incomplete
// level, in sequential mode only the first by name.
func markRunning(levels []LevelGroup, mode Mode) {
	for i := range levels {
		if !levels[i].Runnable {
			return
		}
		pending := false
		for _, node := range levels[i].Nodes {
			if node.Status != StatusPending {
				continue
			}
			pending = true
			node.Status = StatusRunning
			if mode == ModeSequential {
				return
			}
		}
		if pending {
			return
		}
	}
}

// sortedNames returns map keys in deterministic order.
func sortedNames(states map[string]*NodeState) []string {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
