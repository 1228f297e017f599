package types

// GraphConfig is a complete workflow graph: a unique name, a free-form
// description, an end template, and an unordered node collection.
//
// EndTemplate may reference node names through {name} placeholders.
// Referential integrity of those placeholders against the current node
// set is a presentation concern and is not enforced here.
type GraphConfig struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	EndTemplate string      `json:"end_template,omitempty" yaml:"end_template,omitempty"`
	Nodes       []AgentNode `json:"nodes" yaml:"nodes"`
}

// Clone returns a deep copy of the graph.
func (g *GraphConfig) Clone() GraphConfig {
	c := *g
	if g.Nodes != nil {
		c.Nodes = make([]AgentNode, len(g.Nodes))
		for i := range g.Nodes {
			c.Nodes[i] = g.Nodes[i].Clone()
		}
	}
	return c
}

// Node returns the node with the given name, or nil.
func (g *GraphConfig) Node(name string) *AgentNode {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i]
		}
	}
	return nil
}

// NodeByID returns the node with the given local ID, or nil.
func (g *GraphConfig) NodeByID(id string) *AgentNode {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// NodeNames returns the names of all nodes in declaration order.
func (g *GraphConfig) NodeNames() []string {
	names := make([]string, len(g.Nodes))
	for i := range g.Nodes {
		names[i] = g.Nodes[i].Name
	}
	return names
}
