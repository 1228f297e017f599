package execution

import (
	"encoding/json"
	"sync"

	"github.com/BaSui01/flowcanvas/types"
)

// OutputHistory buckets node outputs by node name into append-only
// history lists. A node executed inside a handoff loop accumulates one
// entry per iteration, in arrival order.
type OutputHistory struct {
	mu      sync.RWMutex
	entries map[string][]string
}

// NewOutputHistory creates an empty history.
func NewOutputHistory() *OutputHistory {
	return &OutputHistory{entries: make(map[string][]string)}
}

// Replace substitutes the entire history with the engine's canonical
// snapshot. Used on every poll: the last read wins.
func (h *OutputHistory) Replace(snapshot map[string][]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make(map[string][]string, len(snapshot))
	for name, outputs := range snapshot {
		h.entries[name] = append([]string(nil), outputs...)
	}
}

// Append records additional outputs for a node, preserving arrival
// order.
func (h *OutputHistory) Append(name string, outputs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[name] = append(h.entries[name], outputs...)
}

// All returns the full output history of a node, oldest first. A nil
// history reads as empty.
func (h *OutputHistory) All(name string) []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.entries[name]...)
}

// LatestN returns at most n most recent outputs of a node, oldest of
// the window first.
func (h *OutputHistory) LatestN(name string, n int) []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	outputs := h.entries[name]
	if n <= 0 || n >= len(outputs) {
		return append([]string(nil), outputs...)
	}
	return append([]string(nil), outputs[len(outputs)-n:]...)
}

// ForNode returns a node's history filtered by its configured context
// mode.
func (h *OutputHistory) ForNode(name string, mode types.ContextMode, n int) []string {
	if mode == types.ContextModeLatestN {
		return h.LatestN(name, n)
	}
	return h.All(name)
}

// Names returns the nodes with at least one recorded output.
func (h *OutputHistory) Names() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.entries))
	for name := range h.entries {
		names = append(names, name)
	}
	return names
}

// MarshalJSON encodes the history as a plain name-to-outputs map so the
// aggregation survives the wire.
func (h *OutputHistory) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("null"), nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return json.Marshal(h.entries)
}

// UnmarshalJSON rehydrates a history from its wire map form.
func (h *OutputHistory) UnmarshalJSON(data []byte) error {
	var snapshot map[string][]string
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	h.Replace(snapshot)
	return nil
}
