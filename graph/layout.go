package graph

import (
	"sort"

	"github.com/BaSui01/flowcanvas/types"
)

// LayoutOptions controls the auto-layout grid geometry.
type LayoutOptions struct {
	// ColumnWidth is the horizontal distance between depth columns.
	ColumnWidth float64
	// RowHeight is the vertical distance between nodes in a column.
	RowHeight float64
}

// DefaultLayoutOptions returns the default canvas grid geometry.
func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{ColumnWidth: 280, RowHeight: 140}
}

// AutoLayout computes non-overlapping canvas positions for every node
// from its topological depth.
//
// Depth is the length of the longest path from any entry node (one
// whose InputNodes contain the "start" sentinel), following InputNodes
// backward. Nodes with no path from an entry, and nodes whose depth
// cannot be resolved within a nodeCount hop bound (cycles among
// non-entry nodes), get depth 0. Nodes are grouped into columns by
// depth and ordered by name within a column, so the result is fully
// deterministic.
//
// An empty node set is not an error: AutoLayout returns no positions
// and a caller-visible warning instead.
func AutoLayout(nodes []types.AgentNode, opts LayoutOptions) (map[string]types.Position, []string) {
	if len(nodes) == 0 {
		return map[string]types.Position{}, []string{"graph has no nodes to lay out"}
	}
	if opts.ColumnWidth <= 0 {
		opts.ColumnWidth = DefaultLayoutOptions().ColumnWidth
	}
	if opts.RowHeight <= 0 {
		opts.RowHeight = DefaultLayoutOptions().RowHeight
	}

	depths := nodeDepths(nodes)

	// Group into columns by depth, name-ordered for determinism.
	columns := make(map[int][]string)
	for name, d := range depths {
		columns[d] = append(columns[d], name)
	}
	positions := make(map[string]types.Position, len(nodes))
	for d, names := range columns {
		sort.Strings(names)
		for row, name := range names {
			positions[name] = types.Position{
				X: float64(d) * opts.ColumnWidth,
				Y: float64(row) * opts.RowHeight,
			}
		}
	}
	return positions, nil
}

// nodeDepths computes the longest-path depth per node name.
func nodeDepths(nodes []types.AgentNode) map[string]int {
	byName := make(map[string]*types.AgentNode, len(nodes))
	names := make([]string, 0, len(nodes))
	for i := range nodes {
		byName[nodes[i].Name] = &nodes[i]
		names = append(names, nodes[i].Name)
	}
	// Deterministic traversal order regardless of input order.
	sort.Strings(names)

	reachable := entryReachable(nodes, byName)
	maxHops := len(nodes)

	memo := make(map[string]int, len(nodes))
	onPath := make(map[string]bool, len(nodes))

	var solve func(name string, hops int) int
	solve = func(name string, hops int) int {
		if d, ok := memo[name]; ok {
			return d
		}
		// A revisit on the active path or an exhausted hop budget means
		// the depth cannot be resolved; treat it as 0 without caching so
		// other paths are unaffected.
		if onPath[name] || hops > maxHops {
			return 0
		}
		node := byName[name]
		onPath[name] = true
		best := 0
		for _, pred := range node.InputNodes {
			if pred == types.SentinelStart {
				continue
			}
			if _, ok := byName[pred]; !ok {
				continue
			}
			if !reachable[pred] {
				continue
			}
			if d := solve(pred, hops+1) + 1; d > best {
				best = d
			}
		}
		onPath[name] = false
		memo[name] = best
		return best
	}

	depths := make(map[string]int, len(nodes))
	for _, name := range names {
		if !reachable[name] {
			depths[name] = 0
			continue
		}
		depths[name] = solve(name, 0)
	}
	return depths
}

// entryReachable returns the set of node names reachable by forward
// traversal from entry nodes. BFS over the successor relation, so it
// terminates on cyclic graphs.
func entryReachable(nodes []types.AgentNode, byName map[string]*types.AgentNode) map[string]bool {
	reachable := make(map[string]bool, len(nodes))
	var queue []string
	for i := range nodes {
		if nodes[i].IsEntry() {
			reachable[nodes[i].Name] = true
			queue = append(queue, nodes[i].Name)
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, succ := range byName[name].OutputNodes {
			if succ == types.SentinelEnd || reachable[succ] {
				continue
			}
			if _, ok := byName[succ]; !ok {
				continue
			}
			reachable[succ] = true
			queue = append(queue, succ)
		}
	}
	return reachable
}
