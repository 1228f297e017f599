package graph

import (
	"github.com/BaSui01/flowcanvas/types"
)

// ValidateGraph checks a graph configuration against the structural
// rules enforced at the store boundary: a valid graph name, valid and
// unique node names, and no subgraph node referencing its own graph.
//
// Transitive cycles through chains of subgraphs are deliberately not
// checked here; only direct self-reference is rejected.
func ValidateGraph(cfg *types.GraphConfig) error {
	if err := types.ValidateName(cfg.Name); err != nil {
		return err
	}
	seen := make(map[string]bool, len(cfg.Nodes))
	for i := range cfg.Nodes {
		node := &cfg.Nodes[i]
		if err := validateNode(cfg, node); err != nil {
			return err
		}
		if seen[node.Name] {
			return types.NewErrorf(types.ErrDuplicateName, "node name %q is already used in graph %q", node.Name, cfg.Name)
		}
		seen[node.Name] = true
	}
	return nil
}

func validateNode(cfg *types.GraphConfig, node *types.AgentNode) error {
	if err := types.ValidateName(node.Name); err != nil {
		return err
	}
	if node.Variant.Kind == types.VariantSubgraph && node.Variant.SubgraphName == cfg.Name {
		return types.NewErrorf(types.ErrSelfReference,
			"subgraph node %q must not reference its own graph %q", node.Name, cfg.Name)
	}
	if node.ContextMode == types.ContextModeLatestN && node.ContextN <= 0 {
		return types.NewErrorf(types.ErrValidation,
			"node %q uses context mode %q with non-positive n", node.Name, types.ContextModeLatestN)
	}
	if node.Handoffs != nil && *node.Handoffs <= 0 {
		return types.NewErrorf(types.ErrValidation, "node %q has non-positive handoffs", node.Name)
	}
	if node.Level != nil && *node.Level < 0 {
		return types.NewErrorf(types.ErrValidation, "node %q has negative level", node.Name)
	}
	return nil
}

// validateContextSelection checks that every context reference names a
// node whose output is globally visible at selection time. References
// that later lose global visibility are tolerated and left in place;
// only new selections are checked.
func validateContextSelection(nodes []types.AgentNode, self string, context []string) error {
	byName := make(map[string]*types.AgentNode, len(nodes))
	for i := range nodes {
		byName[nodes[i].Name] = &nodes[i]
	}
	for _, name := range context {
		if name == self {
			return types.NewErrorf(types.ErrValidation, "node %q cannot consume its own output as context", self)
		}
		peer, ok := byName[name]
		if !ok {
			return types.NewErrorf(types.ErrValidation, "context references unknown node %q", name)
		}
		if !peer.GlobalOutput {
			return types.NewErrorf(types.ErrValidation,
				"context references node %q whose output is not global", name)
		}
	}
	return nil
}
