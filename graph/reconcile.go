package graph

import (
	"github.com/BaSui01/flowcanvas/types"
)

// Reconcile repairs the bidirectional edge invariant over a node
// collection and returns the repaired copy. The input is not mutated.
//
// After Reconcile, for any two nodes A and B:
//
//	B.Name ∈ A.OutputNodes  ⇔  A.Name ∈ B.InputNodes
//
// Sentinels are exempt: "start" may appear in InputNodes and "end" in
// OutputNodes without a backing node. Repair is a union: an edge
// declared on either side is completed on the other. Self-edges,
// duplicates, misplaced sentinels, and references to names that no
// longer exist are dropped. Reconcile is idempotent.
func Reconcile(nodes []types.AgentNode) []types.AgentNode {
	out := make([]types.AgentNode, len(nodes))
	byName := make(map[string]int, len(nodes))
	for i := range nodes {
		out[i] = nodes[i].Clone()
		byName[nodes[i].Name] = i
	}

	for i := range out {
		out[i].InputNodes = cleanEdgeList(out[i].InputNodes, out[i].Name, byName, types.SentinelStart)
		out[i].OutputNodes = cleanEdgeList(out[i].OutputNodes, out[i].Name, byName, types.SentinelEnd)
	}

	// Complete half-declared edges on the peer side.
	for i := range out {
		for _, target := range out[i].OutputNodes {
			j, ok := byName[target]
			if !ok {
				continue
			}
			out[j].InputNodes = appendMissing(out[j].InputNodes, out[i].Name)
		}
		for _, source := range out[i].InputNodes {
			j, ok := byName[source]
			if !ok {
				continue
			}
			out[j].OutputNodes = appendMissing(out[j].OutputNodes, out[i].Name)
		}
	}

	return out
}

// connectNodes adds a directed edge between two nodes of the collection
// by local ID, with set semantics on both sides. Unknown IDs and
// self-connections are no-ops so that stale references from concurrent
// UI edits never fail the whole operation.
func connectNodes(nodes []types.AgentNode, sourceID, targetID string) []types.AgentNode {
	si, ti, ok := edgeEndpoints(nodes, sourceID, targetID)
	if !ok {
		return nodes
	}
	out := cloneNodes(nodes)
	out[si].OutputNodes = appendMissing(out[si].OutputNodes, out[ti].Name)
	out[ti].InputNodes = appendMissing(out[ti].InputNodes, out[si].Name)
	return out
}

// disconnectNodes removes a directed edge between two nodes by local
// ID, from both sides. The exact inverse of connectNodes, with the same
// no-op tolerance.
func disconnectNodes(nodes []types.AgentNode, sourceID, targetID string) []types.AgentNode {
	si, ti, ok := edgeEndpoints(nodes, sourceID, targetID)
	if !ok {
		return nodes
	}
	out := cloneNodes(nodes)
	out[si].OutputNodes = removeName(out[si].OutputNodes, out[ti].Name)
	out[ti].InputNodes = removeName(out[ti].InputNodes, out[si].Name)
	return out
}

func edgeEndpoints(nodes []types.AgentNode, sourceID, targetID string) (int, int, bool) {
	si, ti := -1, -1
	for i := range nodes {
		switch nodes[i].ID {
		case sourceID:
			si = i
		case targetID:
			ti = i
		}
	}
	if si < 0 || ti < 0 || si == ti {
		return 0, 0, false
	}
	return si, ti, true
}

// cleanEdgeList deduplicates an edge list in order, dropping self
// references, names with no backing node, and sentinels other than the
// one allowed on this side.
func cleanEdgeList(edges []string, self string, byName map[string]int, allowedSentinel string) []string {
	if edges == nil {
		return []string{}
	}
	seen := make(map[string]bool, len(edges))
	out := make([]string, 0, len(edges))
	for _, name := range edges {
		if name == self || seen[name] {
			continue
		}
		if name == types.SentinelStart || name == types.SentinelEnd {
			if name != allowedSentinel {
				continue
			}
		} else if _, ok := byName[name]; !ok {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func appendMissing(list []string, name string) []string {
	for _, n := range list {
		if n == name {
			return list
		}
	}
	return append(list, name)
}

func removeName(list []string, name string) []string {
	out := list[:0]
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func cloneNodes(nodes []types.AgentNode) []types.AgentNode {
	out := make([]types.AgentNode, len(nodes))
	for i := range nodes {
		out[i] = nodes[i].Clone()
	}
	return out
}
