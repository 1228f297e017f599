package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/flowcanvas/types"
)

func TestTokenCounter_Stats(t *testing.T) {
	counter, err := NewTokenCounter()
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}

	cfg := types.GraphConfig{
		Name: "pipeline",
		Nodes: []types.AgentNode{
			{Name: "a", SystemPrompt: "You are a careful researcher.", UserPrompt: "Summarize the findings."},
			{Name: "b"},
		},
	}

	stats := counter.Stats(&cfg)
	assert.Len(t, stats.Nodes, 2)
	assert.Positive(t, stats.Nodes[0].SystemTokens)
	assert.Positive(t, stats.Nodes[0].UserTokens)
	assert.Zero(t, stats.Nodes[1].SystemTokens)
	assert.Equal(t, stats.Nodes[0].SystemTokens+stats.Nodes[0].UserTokens, stats.TotalTokens)
	assert.Zero(t, counter.Count(""))
}
