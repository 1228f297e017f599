package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowcanvas/types"
)

func intPtr(i int) *int { return &i }

func TestInterpret_StatusRules(t *testing.T) {
	record := types.ExecutionRecord{
		GraphName:      "pipeline",
		ConversationID: "conv-1",
		Completed:      true,
		NodeResults: map[string]types.NodeResult{
			"a": {Output: "x"},
			"b": {ToolCalls: []types.ToolCall{{Name: "search"}}},
			"c": {Error: "boom", Output: "partial output"},
			"d": {Output: "   \n\t"},
		},
	}

	state := Interpret(record, ModeParallel)

	assert.Equal(t, StatusCompleted, state.Nodes["a"].Status)
	assert.Equal(t, StatusCompleted, state.Nodes["b"].Status)
	// An error wins regardless of any output also present.
	assert.Equal(t, StatusError, state.Nodes["c"].Status)
	// Whitespace-only output does not count as progress.
	assert.Equal(t, StatusPending, state.Nodes["d"].Status)
}

func TestInterpret_SubgraphRecursion(t *testing.T) {
	record := types.ExecutionRecord{
		GraphName:      "outer",
		ConversationID: "conv-2",
		NodeResults: map[string]types.NodeResult{
			"nested": {
				Subgraph: true,
				Output:   "inner done",
				Children: map[string]types.NodeResult{
					"inner-a": {Output: "ok"},
					"inner-b": {
						Subgraph: true,
						Children: map[string]types.NodeResult{
							"leaf": {Error: "deep failure"},
						},
					},
				},
			},
		},
	}

	state := Interpret(record, ModeParallel)
	nested := state.Nodes["nested"]
	require.NotNil(t, nested)
	require.Len(t, nested.Children, 2)
	assert.Equal(t, StatusCompleted, nested.Children["inner-a"].Status)
	leaf := nested.Children["inner-b"].Children["leaf"]
	require.NotNil(t, leaf)
	assert.Equal(t, StatusError, leaf.Status)
}

func TestInterpret_RunningFrontierParallel(t *testing.T) {
	record := types.ExecutionRecord{
		Completed: false,
		NodeResults: map[string]types.NodeResult{
			"a": {Output: "done", Level: intPtr(0)},
			"b": {Level: intPtr(1)},
			"c": {Level: intPtr(1)},
			"d": {Level: intPtr(2)},
		},
	}

	state := Interpret(record, ModeParallel)
	assert.Equal(t, StatusCompleted, state.Nodes["a"].Status)
	assert.Equal(t, StatusRunning, state.Nodes["b"].Status)
	assert.Equal(t, StatusRunning, state.Nodes["c"].Status)
	// Level 2 waits for level 1 to finish.
	assert.Equal(t, StatusPending, state.Nodes["d"].Status)
}

func TestInterpret_RunningFrontierSequential(t *testing.T) {
	record := types.ExecutionRecord{
		Completed: false,
		NodeResults: map[string]types.NodeResult{
			"beta":  {Level: intPtr(0)},
			"alpha": {Level: intPtr(0)},
		},
	}

	state := Interpret(record, ModeSequential)
	// Name order decides who runs first within a level.
	assert.Equal(t, StatusRunning, state.Nodes["alpha"].Status)
	assert.Equal(t, StatusPending, state.Nodes["beta"].Status)
}

func TestInterpret_CompletedConversationHasNoRunningNodes(t *testing.T) {
	record := types.ExecutionRecord{
		Completed: true,
		NodeResults: map[string]types.NodeResult{
			"a": {},
		},
	}

	state := Interpret(record, ModeParallel)
	assert.Equal(t, StatusPending, state.Nodes["a"].Status)
}

func TestInterpret_GlobalOutputsSnapshot(t *testing.T) {
	record := types.ExecutionRecord{
		GlobalOutputs: map[string][]string{
			"looper": {"first", "second", "third"},
		},
	}

	state := Interpret(record, ModeParallel)
	assert.Equal(t, []string{"first", "second", "third"}, state.Outputs.All("looper"))
	assert.Equal(t, []string{"second", "third"}, state.Outputs.LatestN("looper", 2))
}
