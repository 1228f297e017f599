package execution

import "sort"

// Mode selects how nodes within a level are scheduled.
type Mode string

const (
	// ModeParallel runs all nodes of a level concurrently.
	ModeParallel Mode = "parallel"
	// ModeSequential runs nodes of a level one at a time, name order.
	ModeSequential Mode = "sequential"
)

// LevelGroup is one execution bucket of the scheduling view.
type LevelGroup struct {
	// Level is the bucket index; lower levels run earlier.
	Level int `json:"level"`
	// Nodes are the bucket members, name-ordered for determinism.
	Nodes []*NodeState `json:"nodes"`
	// Runnable reports whether every node at a strictly lower level has
	// reached a terminal status, so this bucket may execute.
	Runnable bool `json:"runnable"`
	// Next names the node that runs next in sequential mode: the first
	// non-terminal member by name of a runnable group. Empty otherwise.
	Next string `json:"next,omitempty"`
}

// ScheduleView groups node states by level, ascending, and computes
// per-group runnability. The view only reports the grouping for
// visualization; nothing is executed here.
func ScheduleView(states map[string]*NodeState, mode Mode) []LevelGroup {
	byLevel := make(map[int][]*NodeState)
	for _, name := range sortedNames(states) {
		node := states[name]
		byLevel[node.Level] = append(byLevel[node.Level], node)
	}

	levels := make([]int, 0, len(byLevel))
	for level := range byLevel {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	groups := make([]LevelGroup, 0, len(levels))
	lowerTerminal := true
	for _, level := range levels {
		group := LevelGroup{
			Level:    level,
			Nodes:    byLevel[level],
			Runnable: lowerTerminal,
		}
		allTerminal := true
		for _, node := range group.Nodes {
			if !node.Status.Terminal() {
				allTerminal = false
				if mode == ModeSequential && group.Runnable && group.Next == "" {
					group.Next = node.Name
				}
			}
		}
		groups = append(groups, group)
		lowerTerminal = lowerTerminal && allTerminal
	}
	return groups
}
