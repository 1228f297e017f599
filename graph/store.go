package graph

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/types"
)

// Persistence is the versioned persistence surface a Session talks to.
// Implementations must honor optimistic-concurrency semantics: Put and
// Rename succeed only when expectedVersion matches the stored version,
// and reject stale writes with a types.Error carrying code CONFLICT.
type Persistence interface {
	ListGraphs(ctx context.Context) ([]string, error)
	GetGraph(ctx context.Context, name string) (types.GraphConfig, int64, error)
	PutGraph(ctx context.Context, cfg types.GraphConfig, expectedVersion int64) (int64, error)
	DeleteGraph(ctx context.Context, name string) error
	RenameGraph(ctx context.Context, oldName, newName string, expectedVersion int64) (int64, error)
}

// NodePatch is a partial node update. Nil fields are left untouched.
type NodePatch struct {
	Name          *string
	Variant       *types.NodeVariant
	MCPServers    *[]string
	SystemPrompt  *string
	UserPrompt    *string
	OutputEnabled *bool
	GlobalOutput  *bool
	Context       *[]string
	ContextMode   *types.ContextMode
	ContextN      *int
	Handoffs      *int
	Level         *int
	Save          *string
	Position      *types.Position
	// Entry and Exit toggle membership of the "start" / "end" sentinels
	// in the node's edge sets. Toggling is idempotent.
	Entry *bool
	Exit  *bool
}

// Session is an editing session over a single graph. One graph is
// edited at a time per session; independent sessions may edit different
// graphs concurrently. All mutations are synchronous, atomic and
// copy-on-write: on any error the in-memory graph is unchanged.
type Session struct {
	persist  Persistence
	logger   *zap.Logger
	cfg      types.GraphConfig
	version  int64
	dirty    bool
	open     bool
	selected string
	known    []string
}

// NewSession creates an editing session backed by the given persistence
// surface.
func NewSession(persist Persistence, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		persist: persist,
		logger:  logger.With(zap.String("component", "graph_session")),
	}
}

// Open reports whether a graph is currently loaded or created.
func (s *Session) Open() bool { return s.open }

// Dirty reports whether the session has unsaved structural edits.
func (s *Session) Dirty() bool { return s.dirty }

// Version returns the persistence version last observed for the open
// graph.
func (s *Session) Version() int64 { return s.version }

// Graph returns a deep copy of the open graph configuration.
func (s *Session) Graph() types.GraphConfig { return s.cfg.Clone() }

// Graphs returns the graph listing cached at the last save or refresh.
func (s *Session) Graphs() []string { return cloneStringsList(s.known) }

// Select marks a node (by local ID) as the current selection.
func (s *Session) Select(id string) { s.selected = id }

// Selected returns the local ID of the selected node, if any.
func (s *Session) Selected() string { return s.selected }

// Create starts a new, empty graph in this session. The graph exists
// only in memory until the first Save.
func (s *Session) Create(name, description string) error {
	if err := types.ValidateName(name); err != nil {
		return err
	}
	s.cfg = types.GraphConfig{Name: name, Description: description, Nodes: []types.AgentNode{}}
	s.version = 0
	s.dirty = true
	s.open = true
	s.selected = ""
	s.logger.Info("graph created", zap.String("graph", name))
	return nil
}

// Load replaces the session contents with the persisted graph. Every
// node is hydrated with a fresh local ID.
func (s *Session) Load(ctx context.Context, name string) error {
	cfg, version, err := s.persist.GetGraph(ctx, name)
	if err != nil {
		return err
	}
	for i := range cfg.Nodes {
		cfg.Nodes[i].ID = uuid.New().String()
	}
	s.cfg = cfg
	s.version = version
	s.dirty = false
	s.open = true
	s.selected = ""
	s.logger.Info("graph loaded",
		zap.String("graph", name),
		zap.Int64("version", version),
		zap.Int("nodes", len(cfg.Nodes)),
	)
	return nil
}

// AddNode adds a node built from the patch, fills unset collections
// with empty containers, and assigns a fresh local ID. The returned
// node is the committed copy.
func (s *Session) AddNode(patch NodePatch) (types.AgentNode, error) {
	if !s.open {
		return types.AgentNode{}, types.NewError(types.ErrValidation, "no graph is open")
	}
	node := types.AgentNode{
		ID:          uuid.New().String(),
		MCPServers:  []string{},
		InputNodes:  []string{},
		OutputNodes: []string{},
		Context:     []string{},
		ContextMode: types.ContextModeAll,
	}
	applyPatch(&node, patch)

	candidate := append(cloneNodes(s.cfg.Nodes), node)
	if err := s.commit(candidate, node.Name, patch.Context); err != nil {
		return types.AgentNode{}, err
	}
	committed := s.cfg.NodeByID(node.ID)
	s.logger.Debug("node added", zap.String("graph", s.cfg.Name), zap.String("node", committed.Name))
	return committed.Clone(), nil
}

// UpdateNode merges a partial patch into the node with the given local
// ID. Renaming a node rewrites every reference to it held by its peers
// so edge symmetry survives the rename.
func (s *Session) UpdateNode(id string, patch NodePatch) error {
	if !s.open {
		return types.NewError(types.ErrValidation, "no graph is open")
	}
	candidate := cloneNodes(s.cfg.Nodes)
	idx := -1
	for i := range candidate {
		if candidate[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.NewErrorf(types.ErrNotFound, "node %s not found in graph %q", id, s.cfg.Name)
	}

	oldName := candidate[idx].Name
	applyPatch(&candidate[idx], patch)
	if newName := candidate[idx].Name; newName != oldName {
		for i := range candidate {
			if i == idx {
				continue
			}
			candidate[i].InputNodes = renameRef(candidate[i].InputNodes, oldName, newName)
			candidate[i].OutputNodes = renameRef(candidate[i].OutputNodes, oldName, newName)
			candidate[i].Context = renameRef(candidate[i].Context, oldName, newName)
		}
	}
	if err := s.commit(candidate, candidate[idx].Name, patch.Context); err != nil {
		return err
	}
	s.logger.Debug("node updated", zap.String("graph", s.cfg.Name), zap.String("node", candidate[idx].Name))
	return nil
}

// RemoveNode deletes the node and strips its name from every remaining
// node's edge sets. Removing the selected node clears the selection.
func (s *Session) RemoveNode(id string) error {
	if !s.open {
		return types.NewError(types.ErrValidation, "no graph is open")
	}
	candidate := make([]types.AgentNode, 0, len(s.cfg.Nodes))
	found := false
	var name string
	for i := range s.cfg.Nodes {
		if s.cfg.Nodes[i].ID == id {
			found = true
			name = s.cfg.Nodes[i].Name
			continue
		}
		candidate = append(candidate, s.cfg.Nodes[i].Clone())
	}
	if !found {
		return types.NewErrorf(types.ErrNotFound, "node %s not found in graph %q", id, s.cfg.Name)
	}
	if err := s.commit(candidate, "", nil); err != nil {
		return err
	}
	if s.selected == id {
		s.selected = ""
	}
	s.logger.Debug("node removed", zap.String("graph", s.cfg.Name), zap.String("node", name))
	return nil
}

// Connect adds a directed edge between two nodes by local ID, on both
// sides. Unknown IDs are tolerated as a no-op so stale references from
// concurrent UI edits never fail an operation.
func (s *Session) Connect(sourceID, targetID string) error {
	return s.rewire(sourceID, targetID, connectNodes)
}

// Disconnect removes a directed edge between two nodes by local ID,
// from both sides. The exact inverse of Connect, with the same no-op
// tolerance.
func (s *Session) Disconnect(sourceID, targetID string) error {
	return s.rewire(sourceID, targetID, disconnectNodes)
}

func (s *Session) rewire(sourceID, targetID string, op func([]types.AgentNode, string, string) []types.AgentNode) error {
	if !s.open {
		return types.NewError(types.ErrValidation, "no graph is open")
	}
	if _, _, ok := edgeEndpoints(s.cfg.Nodes, sourceID, targetID); !ok {
		s.logger.Debug("edge change ignored, endpoint missing",
			zap.String("source", sourceID), zap.String("target", targetID))
		return nil
	}
	return s.commit(op(s.cfg.Nodes, sourceID, targetID), "", nil)
}

// AutoLayout assigns grid positions computed from topological depth and
// returns any caller-visible warnings.
func (s *Session) AutoLayout(opts LayoutOptions) ([]string, error) {
	if !s.open {
		return nil, types.NewError(types.ErrValidation, "no graph is open")
	}
	positions, warnings := AutoLayout(s.cfg.Nodes, opts)
	if len(positions) == 0 {
		return warnings, nil
	}
	candidate := cloneNodes(s.cfg.Nodes)
	for i := range candidate {
		if pos, ok := positions[candidate[i].Name]; ok {
			candidate[i].Position = pos
		}
	}
	if err := s.commit(candidate, "", nil); err != nil {
		return warnings, err
	}
	return warnings, nil
}

// Save submits the open graph as a whole-structure replace guarded by
// the last observed version.
//
// On a version conflict the session re-fetches the canonical graph,
// replacing local data and version, and returns the conflict error so
// the edit can be redone against fresh state; the original mutation is
// never silently re-applied. On transport failure the dirty flag stays
// set so the identical save can be retried.
func (s *Session) Save(ctx context.Context) error {
	if !s.open {
		return types.NewError(types.ErrValidation, "no graph is open")
	}
	out := s.cfg.Clone()
	for i := range out.Nodes {
		out.Nodes[i].Variant = out.Nodes[i].Variant.Normalize()
		out.Nodes[i].ID = ""
	}

	newVersion, err := s.persist.PutGraph(ctx, out, s.version)
	if err != nil {
		if types.IsConflict(err) {
			s.logger.Warn("save rejected by concurrent edit",
				zap.String("graph", s.cfg.Name),
				zap.Int64("expected_version", s.version),
			)
			if refreshErr := s.Load(ctx, s.cfg.Name); refreshErr != nil {
				s.logger.Error("refresh after conflict failed", zap.Error(refreshErr))
			}
			return err
		}
		s.logger.Error("save failed", zap.String("graph", s.cfg.Name), zap.Error(err))
		return err
	}

	s.version = newVersion
	s.dirty = false
	s.refreshListing(ctx)
	s.logger.Info("graph saved", zap.String("graph", s.cfg.Name), zap.Int64("version", newVersion))
	return nil
}

// Delete removes a persisted graph. Deleting the open graph also
// clears the in-memory copy.
func (s *Session) Delete(ctx context.Context, name string) error {
	if err := s.persist.DeleteGraph(ctx, name); err != nil {
		return err
	}
	if s.open && s.cfg.Name == name {
		s.cfg = types.GraphConfig{}
		s.version = 0
		s.dirty = false
		s.open = false
		s.selected = ""
	}
	s.refreshListing(ctx)
	s.logger.Info("graph deleted", zap.String("graph", name))
	return nil
}

// Rename renames a persisted graph under the optimistic-concurrency
// protocol. Renaming the open graph updates the session in place.
func (s *Session) Rename(ctx context.Context, oldName, newName string) error {
	if err := types.ValidateName(newName); err != nil {
		return err
	}
	version := s.version
	if !s.open || s.cfg.Name != oldName {
		_, v, err := s.persist.GetGraph(ctx, oldName)
		if err != nil {
			return err
		}
		version = v
	}
	newVersion, err := s.persist.RenameGraph(ctx, oldName, newName, version)
	if err != nil {
		return err
	}
	if s.open && s.cfg.Name == oldName {
		s.cfg.Name = newName
		s.version = newVersion
	}
	s.refreshListing(ctx)
	s.logger.Info("graph renamed", zap.String("from", oldName), zap.String("to", newName))
	return nil
}

// RefreshList re-fetches the canonical graph listing.
func (s *Session) RefreshList(ctx context.Context) error {
	names, err := s.persist.ListGraphs(ctx)
	if err != nil {
		return err
	}
	s.known = names
	return nil
}

func (s *Session) refreshListing(ctx context.Context) {
	if err := s.RefreshList(ctx); err != nil {
		s.logger.Warn("listing refresh failed", zap.Error(err))
	}
}

// commit validates, reconciles and installs a candidate node
// collection. The session is untouched when validation fails.
// contextOwner names the node whose context selection changed in this
// mutation, if any; only that fresh selection is checked against
// invariant 5, so existing stale references survive later GlobalOutput
// changes.
func (s *Session) commit(candidate []types.AgentNode, contextOwner string, contextPatch *[]string) error {
	cfg := s.cfg
	cfg.Nodes = candidate
	if err := ValidateGraph(&cfg); err != nil {
		return err
	}
	if contextPatch != nil {
		if err := validateContextSelection(candidate, contextOwner, *contextPatch); err != nil {
			return err
		}
	}
	s.cfg.Nodes = Reconcile(candidate)
	s.dirty = true
	return nil
}

func applyPatch(node *types.AgentNode, patch NodePatch) {
	if patch.Name != nil {
		node.Name = *patch.Name
	}
	if patch.Variant != nil {
		node.Variant = patch.Variant.Normalize()
	}
	if patch.MCPServers != nil {
		node.MCPServers = cloneStringsList(*patch.MCPServers)
	}
	if patch.SystemPrompt != nil {
		node.SystemPrompt = *patch.SystemPrompt
	}
	if patch.UserPrompt != nil {
		node.UserPrompt = *patch.UserPrompt
	}
	if patch.OutputEnabled != nil {
		node.OutputEnabled = *patch.OutputEnabled
	}
	if patch.GlobalOutput != nil {
		node.GlobalOutput = *patch.GlobalOutput
	}
	if patch.Context != nil {
		node.Context = cloneStringsList(*patch.Context)
	}
	if patch.ContextMode != nil {
		node.ContextMode = *patch.ContextMode
	}
	if patch.ContextN != nil {
		node.ContextN = *patch.ContextN
	}
	if patch.Handoffs != nil {
		h := *patch.Handoffs
		node.Handoffs = &h
	}
	if patch.Level != nil {
		l := *patch.Level
		node.Level = &l
	}
	if patch.Save != nil {
		node.Save = *patch.Save
	}
	if patch.Position != nil {
		node.Position = *patch.Position
	}
	if patch.Entry != nil {
		node.InputNodes = toggleSentinel(node.InputNodes, types.SentinelStart, *patch.Entry)
	}
	if patch.Exit != nil {
		node.OutputNodes = toggleSentinel(node.OutputNodes, types.SentinelEnd, *patch.Exit)
	}
}

// toggleSentinel inserts or removes a sentinel marker, idempotently.
func toggleSentinel(list []string, sentinel string, present bool) []string {
	if present {
		return appendMissing(list, sentinel)
	}
	return removeName(list, sentinel)
}

func renameRef(list []string, oldName, newName string) []string {
	for i, n := range list {
		if n == oldName {
			list[i] = newName
		}
	}
	return list
}

func cloneStringsList(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
