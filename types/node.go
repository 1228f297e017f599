package types

import "strings"

// Sentinel node names marking the graph boundary. "start" in a node's
// InputNodes means the node receives the external input; "end" in its
// OutputNodes means its output leaves the graph. Neither is backed by a
// real AgentNode, and user-chosen node names may not collide with them.
const (
	SentinelStart = "start"
	SentinelEnd   = "end"
)

// invalidNameChars are forbidden in node and graph names because names
// are used as reference keys in edges, templates, and storage paths.
const invalidNameChars = `/\.`

// VariantKind identifies which arm of a node variant is populated.
type VariantKind string

const (
	// VariantAgent is an LLM-backed node.
	VariantAgent VariantKind = "agent"
	// VariantSubgraph delegates execution to another workflow graph.
	VariantSubgraph VariantKind = "subgraph"
)

// NodeVariant is a tagged union: exactly one of ModelName or
// SubgraphName is populated, selected by Kind.
type NodeVariant struct {
	Kind         VariantKind `json:"kind" yaml:"kind"`
	ModelName    string      `json:"model_name,omitempty" yaml:"model_name,omitempty"`
	SubgraphName string      `json:"subgraph_name,omitempty" yaml:"subgraph_name,omitempty"`
}

// AgentVariant builds the agent arm of the union.
func AgentVariant(modelName string) NodeVariant {
	return NodeVariant{Kind: VariantAgent, ModelName: modelName}
}

// SubgraphVariant builds the subgraph arm of the union.
func SubgraphVariant(subgraphName string) NodeVariant {
	return NodeVariant{Kind: VariantSubgraph, SubgraphName: subgraphName}
}

// Normalize clears the inactive arm so that switching variants never
// leaks the previous arm's field into serialization.
func (v NodeVariant) Normalize() NodeVariant {
	switch v.Kind {
	case VariantSubgraph:
		v.ModelName = ""
	default:
		v.Kind = VariantAgent
		v.SubgraphName = ""
	}
	return v
}

// ContextMode selects how much of a referenced node's output history a
// consumer receives.
type ContextMode string

const (
	// ContextModeAll passes every accumulated output.
	ContextModeAll ContextMode = "all"
	// ContextModeLatestN passes only the most recent N outputs.
	ContextModeLatestN ContextMode = "latest_n"
)

// Position is a 2-D canvas coordinate. Presentation only; it has no
// bearing on execution.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// AgentNode is a node in a workflow graph.
//
// Name is the durable identity: edges reference neighbors by name, and
// the execution engine reports results keyed by name. ID is a local
// editing-session handle only and is never persisted.
type AgentNode struct {
	// ID is assigned fresh on every load/add and stripped on save.
	ID string `json:"-" yaml:"-"`
	// Name uniquely identifies the node within its graph.
	Name string `json:"name" yaml:"name"`
	// Variant selects agent or subgraph behavior.
	Variant NodeVariant `json:"variant" yaml:"variant"`
	// MCPServers lists external tool-provider identifiers available to
	// this node.
	MCPServers []string `json:"mcp_servers,omitempty" yaml:"mcp_servers,omitempty"`
	// SystemPrompt and UserPrompt are opaque text payloads.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt,omitempty" yaml:"user_prompt,omitempty"`
	// InputNodes and OutputNodes are directed edges by neighbor name.
	// They may contain the SentinelStart / SentinelEnd markers.
	InputNodes  []string `json:"input_nodes,omitempty" yaml:"input_nodes,omitempty"`
	OutputNodes []string `json:"output_nodes,omitempty" yaml:"output_nodes,omitempty"`
	// OutputEnabled exposes this node's output as a graph-visible result.
	OutputEnabled bool `json:"output_enabled" yaml:"output_enabled"`
	// GlobalOutput makes this node's output selectable as shared context
	// by other nodes.
	GlobalOutput bool `json:"global_output" yaml:"global_output"`
	// Context lists names of nodes whose output this node consumes.
	Context     []string    `json:"context,omitempty" yaml:"context,omitempty"`
	ContextMode ContextMode `json:"context_mode,omitempty" yaml:"context_mode,omitempty"`
	// ContextN is meaningful only when ContextMode is latest_n.
	ContextN int `json:"context_n,omitempty" yaml:"context_n,omitempty"`
	// Handoffs is the loop repeat count; nil or 1 means no looping.
	Handoffs *int `json:"handoffs,omitempty" yaml:"handoffs,omitempty"`
	// Level is the explicit execution bucket; lower runs earlier.
	Level *int `json:"level,omitempty" yaml:"level,omitempty"`
	// Save tags the output persistence format.
	Save string `json:"save,omitempty" yaml:"save,omitempty"`
	// Position is the canvas coordinate.
	Position Position `json:"position" yaml:"position"`
}

// IsEntry reports whether the node receives the external graph input.
func (n *AgentNode) IsEntry() bool {
	return containsName(n.InputNodes, SentinelStart)
}

// IsExit reports whether the node's output leaves the graph.
func (n *AgentNode) IsExit() bool {
	return containsName(n.OutputNodes, SentinelEnd)
}

// Clone returns a deep copy of the node. Mutations in the graph package
// are copy-on-write; Clone is the unit of that discipline.
func (n *AgentNode) Clone() AgentNode {
	c := *n
	c.MCPServers = cloneStrings(n.MCPServers)
	c.InputNodes = cloneStrings(n.InputNodes)
	c.OutputNodes = cloneStrings(n.OutputNodes)
	c.Context = cloneStrings(n.Context)
	if n.Handoffs != nil {
		h := *n.Handoffs
		c.Handoffs = &h
	}
	if n.Level != nil {
		l := *n.Level
		c.Level = &l
	}
	return c
}

// ValidateName checks a node or graph name against the shared naming
// rules: non-empty, no path-separator or delimiter characters, and not
// a reserved sentinel word.
func ValidateName(name string) *Error {
	if strings.TrimSpace(name) == "" {
		return NewError(ErrInvalidName, "name must not be empty")
	}
	if strings.ContainsAny(name, invalidNameChars) {
		return NewErrorf(ErrInvalidName, "name %q must not contain any of %q", name, invalidNameChars)
	}
	if name == SentinelStart || name == SentinelEnd {
		return NewErrorf(ErrReservedName, "name %q is reserved for the graph boundary", name)
	}
	return nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
