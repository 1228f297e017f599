package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/flowcanvas/types"
)

const graphFileExt = ".json"

// storedGraph is the on-disk envelope of one graph.
type storedGraph struct {
	Version int64             `json:"version"`
	Config  types.GraphConfig `json:"config"`
}

// storedRegistry is the on-disk envelope of the MCP server registry.
type storedRegistry struct {
	Version  int64                `json:"version"`
	Registry types.ServerRegistry `json:"registry"`
}

// FileGraphStore is a file-based implementation of GraphStore. One JSON
// file per graph, loaded into memory at startup; every write is an
// atomic temp-file-then-rename of the affected file. Graph names never
// contain path separators or dots, so the name doubles as the file
// stem.
type FileGraphStore struct {
	baseDir string
	mu      sync.RWMutex
	graphs  map[string]storedGraph
	reg     storedRegistry
	closed  bool
}

// NewFileGraphStore creates a file store rooted at config.BaseDir.
func NewFileGraphStore(config StoreConfig) (*FileGraphStore, error) {
	baseDir := filepath.Join(config.BaseDir, "graphs")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create graph store directory: %w", err)
	}
	store := &FileGraphStore{
		baseDir: baseDir,
		graphs:  make(map[string]storedGraph),
	}
	if err := store.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load graphs from disk: %w", err)
	}
	return store, nil
}

func (s *FileGraphStore) loadFromDisk() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), graphFileExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			return err
		}
		if entry.Name() == "registry"+graphFileExt {
			if err := json.Unmarshal(data, &s.reg); err != nil {
				return fmt.Errorf("corrupt registry file: %w", err)
			}
			continue
		}
		var stored storedGraph
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("corrupt graph file %s: %w", entry.Name(), err)
		}
		s.graphs[stored.Config.Name] = stored
	}
	return nil
}

func (s *FileGraphStore) graphPath(name string) string {
	return filepath.Join(s.baseDir, "graph-"+name+graphFileExt)
}

func (s *FileGraphStore) registryPath() string {
	return filepath.Join(s.baseDir, "registry"+graphFileExt)
}

// writeFileAtomic writes data via a temp file and rename.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func (s *FileGraphStore) ListGraphs(ctx context.Context) ([]string, error) {
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

func (s *FileGraphStore) GetGraph(ctx context.Context, name string) (types.GraphConfig, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.GraphConfig{}, 0, types.NewError(types.ErrStoreClosed, "store is closed")
	}
	stored, ok := s.graphs[name]
	if !ok {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	return stored.Config.Clone(), stored.Version, nil
}

func (s *FileGraphStore) PutGraph(ctx context.Context, cfg types.GraphConfig, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, types.NewError(types.ErrStoreClosed, "store is closed")
	}
	current := s.graphs[cfg.Name].Version
	if current != expectedVersion {
		return 0, types.NewConflictError(current, expectedVersion)
	}
	stored := storedGraph{Version: current + 1, Config: cfg.Clone()}
	if err := writeFileAtomic(s.graphPath(cfg.Name), stored); err != nil {
		return 0, types.NewErrorf(types.ErrTransport, "failed to write graph %q", cfg.Name).WithCause(err)
	}
	s.graphs[cfg.Name] = stored
	return stored.Version, nil
}

func (s *FileGraphStore) DeleteGraph(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.NewError(types.ErrStoreClosed, "store is closed")
	}
	if _, ok := s.graphs[name]; !ok {
		return types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	if err := os.Remove(s.graphPath(name)); err != nil && !os.IsNotExist(err) {
		return types.NewErrorf(types.ErrTransport, "failed to delete graph %q", name).WithCause(err)
	}
	delete(s.graphs, name)
	return nil
}

func (s *FileGraphStore) RenameGraph(ctx context.Context, oldName, newName string, expectedVersion int64) (int64, error) {
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
	if stored.Version != expectedVersion {
		return 0, types.NewConflictError(stored.Version, expectedVersion)
	}
	next := storedGraph{Version: stored.Version + 1, Config: stored.Config.Clone()}
	next.Config.Name = newName
	if err := writeFileAtomic(s.graphPath(newName), next); err != nil {
		return 0, types.NewErrorf(types.ErrTransport, "failed to write graph %q", newName).WithCause(err)
	}
	if err := os.Remove(s.graphPath(oldName)); err != nil && !os.IsNotExist(err) {
		return 0, types.NewErrorf(types.ErrTransport, "failed to remove graph %q", oldName).WithCause(err)
	}
	delete(s.graphs, oldName)
	s.graphs[newName] = next
	return next.Version, nil
}

func (s *FileGraphStore) GetRegistry(ctx context.Context) (types.ServerRegistry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.ServerRegistry{}, 0, types.NewError(types.ErrStoreClosed, "store is closed")
	}
	return s.reg.Registry.Clone(), s.reg.Version, nil
}

func (s *FileGraphStore) PutRegistry(ctx context.Context, reg types.ServerRegistry, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, types.NewError(types.ErrStoreClosed, "store is closed")
	}
	if s.reg.Version != expectedVersion {
		return 0, types.NewConflictError(s.reg.Version, expectedVersion)
	}
	next := storedRegistry{Version: s.reg.Version + 1, Registry: reg.Clone()}
	if err := writeFileAtomic(s.registryPath(), next); err != nil {
		return 0, types.NewError(types.ErrTransport, "failed to write server registry").WithCause(err)
	}
	s.reg = next
	return next.Version, nil
}

func (s *FileGraphStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.NewError(types.ErrStoreClosed, "store is closed")
	}
	_, err := os.Stat(s.baseDir)
	return err
}

func (s *FileGraphStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ GraphStore = (*FileGraphStore)(nil)
