package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowcanvas/types"
)

func TestAutoLayout_DepthColumns(t *testing.T) {
	nodes := []types.AgentNode{
		node("1", "fetch", []string{"start"}, []string{"summarize", "classify"}),
		node("2", "summarize", []string{"fetch"}, []string{"report"}),
		node("3", "classify", []string{"fetch"}, []string{"report"}),
		node("4", "report", []string{"summarize", "classify"}, []string{"end"}),
	}

	positions, warnings := AutoLayout(nodes, LayoutOptions{ColumnWidth: 100, RowHeight: 50})
	require.Empty(t, warnings)
	require.Len(t, positions, 4)

	assert.Equal(t, types.Position{X: 0, Y: 0}, positions["fetch"])
	// Same depth, name order decides the row.
	assert.Equal(t, types.Position{X: 100, Y: 0}, positions["classify"])
	assert.Equal(t, types.Position{X: 100, Y: 50}, positions["summarize"])
	assert.Equal(t, types.Position{X: 200, Y: 0}, positions["report"])
}

func TestAutoLayout_Deterministic(t *testing.T) {
	nodes := []types.AgentNode{
		node("1", "b", []string{"start"}, []string{"a"}),
		node("2", "a", []string{"b"}, nil),
		node("3", "c", []string{"start"}, nil),
	}

	first, _ := AutoLayout(nodes, DefaultLayoutOptions())
	second, _ := AutoLayout(nodes, DefaultLayoutOptions())
	assert.Equal(t, first, second)
}

func TestAutoLayout_EmptyGraphWarnsInsteadOfFailing(t *testing.T) {
	positions, warnings := AutoLayout(nil, DefaultLayoutOptions())
	assert.Empty(t, positions)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "no nodes")
}

func TestAutoLayout_CycleAmongNonEntryNodesTerminates(t *testing.T) {
	nodes := []types.AgentNode{
		node("1", "a", []string{"b"}, []string{"b"}),
		node("2", "b", []string{"a"}, []string{"a"}),
	}

	positions, warnings := AutoLayout(nodes, LayoutOptions{ColumnWidth: 100, RowHeight: 50})
	assert.Empty(t, warnings)
	// No path from an entry: both collapse to depth 0.
	assert.Equal(t, types.Position{X: 0, Y: 0}, positions["a"])
	assert.Equal(t, types.Position{X: 0, Y: 50}, positions["b"])
}

func TestAutoLayout_CycleReachableFromEntryTerminates(t *testing.T) {
	nodes := []types.AgentNode{
		node("1", "ingest", []string{"start"}, []string{"review"}),
		node("2", "review", []string{"ingest", "revise"}, []string{"revise"}),
		node("3", "revise", []string{"review"}, []string{"review"}),
	}

	first, warnings := AutoLayout(nodes, DefaultLayoutOptions())
	assert.Empty(t, warnings)
	require.Len(t, first, 3)
	second, _ := AutoLayout(nodes, DefaultLayoutOptions())
	assert.Equal(t, first, second)
}

func TestAutoLayout_UnreachableNodeGetsDepthZero(t *testing.T) {
	nodes := []types.AgentNode{
		node("1", "main", []string{"start"}, []string{"next"}),
		node("2", "next", []string{"main"}, nil),
		node("3", "island", nil, nil),
	}

	positions, _ := AutoLayout(nodes, LayoutOptions{ColumnWidth: 100, RowHeight: 50})
	assert.Equal(t, float64(0), positions["island"].X)
	assert.Equal(t, float64(100), positions["next"].X)
}
