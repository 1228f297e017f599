package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/flowcanvas/types"
)

type memoryGraph struct {
	cfg     types.GraphConfig
	version int64
}

// MemoryGraphStore is an in-memory implementation of GraphStore.
// Suitable for development and testing.
type MemoryGraphStore struct {
	mu          sync.RWMutex
	graphs      map[string]memoryGraph
	registry    types.ServerRegistry
	registryVer int64
	closed      bool
}

// NewMemoryGraphStore creates an empty in-memory store.
func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{graphs: make(map[string]memoryGraph)}
}

func (s *MemoryGraphStore) ListGraphs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.NewError(types.ErrStoreClosed, "store is closed")
	}
	names := make([]string, 0, len(s.graphs))
	for name := range s.graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryGraphStore) GetGraph(ctx context.Context, name string) (types.GraphConfig, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.GraphConfig{}, 0, types.NewError(types.ErrStoreClosed, "store is closed")
	}
	stored, ok := s.graphs[name]
	if !ok {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	return stored.cfg.Clone(), stored.version, nil
}

func (s *MemoryGraphStore) PutGraph(ctx context.Context, cfg types.GraphConfig, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, types.NewError(types.ErrStoreClosed, "store is closed")
	}
	current := s.graphs[cfg.Name].version
	if current != expectedVersion {
		return 0, types.NewConflictError(current, expectedVersion)
	}
	next := current + 1
	s.graphs[cfg.Name] = memoryGraph{cfg: cfg.Clone(), version: next}
	return next, nil
}

func (s *MemoryGraphStore) DeleteGraph(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.NewError(types.ErrStoreClosed, "store is closed")
	}
	if _, ok := s.graphs[name]; !ok {
		return types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	delete(s.graphs, name)
	return nil
}

func (s *MemoryGraphStore) RenameGraph(ctx context.Context, oldName, newName string, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, types.NewError(types.ErrStoreClosed, "store is closed")
	}
	stored, ok := s.graphs[oldName]
	if !ok {
		return 0, types.NewErrorf(types.ErrNotFound, "graph %q not found", oldName)
	}
	if _, taken := s.graphs[newName]; taken {
		return 0, types.NewErrorf(types.ErrDuplicateName, "graph %q already exists", newName)
	}
	if stored.version != expectedVersion {
		return 0, types.NewConflictError(stored.version, expectedVersion)
	}
	cfg := stored.cfg.Clone()
	cfg.Name = newName
	next := stored.version + 1
	delete(s.graphs, oldName)
	s.graphs[newName] = memoryGraph{cfg: cfg, version: next}
	return next, nil
}

func (s *MemoryGraphStore) GetRegistry(ctx context.Context) (types.ServerRegistry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.ServerRegistry{}, 0, types.NewError(types.ErrStoreClosed, "store is closed")
	}
	return s.registry.Clone(), s.registryVer, nil
}

func (s *MemoryGraphStore) PutRegistry(ctx context.Context, reg types.ServerRegistry, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, types.NewError(types.ErrStoreClosed, "store is closed")
	}
	if s.registryVer != expectedVersion {
		return 0, types.NewConflictError(s.registryVer, expectedVersion)
	}
	s.registry = reg.Clone()
	s.registryVer++
	return s.registryVer, nil
}

func (s *MemoryGraphStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.NewError(types.ErrStoreClosed, "store is closed")
	}
	return nil
}

func (s *MemoryGraphStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ GraphStore = (*MemoryGraphStore)(nil)
