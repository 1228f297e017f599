package graph

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/BaSui01/flowcanvas/types"
)

// defaultEncoding is the tokenizer used for prompt size estimates.
// Close enough across current chat models for editor-side accounting.
const defaultEncoding = "cl100k_base"

// NodeStats summarizes one node's prompt sizes in tokens.
type NodeStats struct {
	Name         string `json:"name"`
	SystemTokens int    `json:"system_tokens"`
	UserTokens   int    `json:"user_tokens"`
}

// GraphStats summarizes prompt sizes across a whole graph.
type GraphStats struct {
	Nodes       []NodeStats `json:"nodes"`
	TotalTokens int         `json:"total_tokens"`
}

// TokenCounter estimates prompt token counts for graph nodes.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter backed by the default encoding.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", defaultEncoding, err)
	}
	return &TokenCounter{enc: enc}, nil
}

// Count returns the token count of a single text payload.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Stats computes per-node and total prompt token counts for a graph,
// in node declaration order.
func (c *TokenCounter) Stats(cfg *types.GraphConfig) GraphStats {
	stats := GraphStats{Nodes: make([]NodeStats, 0, len(cfg.Nodes))}
	for i := range cfg.Nodes {
		ns := NodeStats{
			Name:         cfg.Nodes[i].Name,
			SystemTokens: c.Count(cfg.Nodes[i].SystemPrompt),
			UserTokens:   c.Count(cfg.Nodes[i].UserPrompt),
		}
		stats.TotalTokens += ns.SystemTokens + ns.UserTokens
		stats.Nodes = append(stats.Nodes, ns)
	}
	return stats
}
