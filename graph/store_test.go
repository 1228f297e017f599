package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowcanvas/types"
)

// fakePersistence is a minimal in-memory Persistence with CAS version
// semantics for session tests.
type fakePersistence struct {
	graphs   map[string]types.GraphConfig
	versions map[string]int64
	putErr   error
	puts     int
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{
		graphs:   make(map[string]types.GraphConfig),
		versions: make(map[string]int64),
	}
}

func (f *fakePersistence) ListGraphs(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.graphs))
	for name := range f.graphs {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakePersistence) GetGraph(ctx context.Context, name string) (types.GraphConfig, int64, error) {
	cfg, ok := f.graphs[name]
	if !ok {
		return types.GraphConfig{}, 0, types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	return cfg.Clone(), f.versions[name], nil
}

func (f *fakePersistence) PutGraph(ctx context.Context, cfg types.GraphConfig, expectedVersion int64) (int64, error) {
	f.puts++
	if f.putErr != nil {
		return 0, f.putErr
	}
	current := f.versions[cfg.Name]
	if current != expectedVersion {
		return 0, types.NewConflictError(current, expectedVersion)
	}
	f.graphs[cfg.Name] = cfg.Clone()
	f.versions[cfg.Name] = current + 1
	return current + 1, nil
}

func (f *fakePersistence) DeleteGraph(ctx context.Context, name string) error {
	if _, ok := f.graphs[name]; !ok {
		return types.NewErrorf(types.ErrNotFound, "graph %q not found", name)
	}
	delete(f.graphs, name)
	delete(f.versions, name)
	return nil
}

func (f *fakePersistence) RenameGraph(ctx context.Context, oldName, newName string, expectedVersion int64) (int64, error) {
	cfg, ok := f.graphs[oldName]
	if !ok {
		return 0, types.NewErrorf(types.ErrNotFound, "graph %q not found", oldName)
	}
	if _, exists := f.graphs[newName]; exists {
		return 0, types.NewErrorf(types.ErrDuplicateName, "graph %q already exists", newName)
	}
	if current := f.versions[oldName]; current != expectedVersion {
		return 0, types.NewConflictError(current, expectedVersion)
	}
	cfg.Name = newName
	f.graphs[newName] = cfg
	delete(f.graphs, oldName)
	f.versions[newName] = f.versions[oldName] + 1
	delete(f.versions, oldName)
	return f.versions[newName], nil
}

func newTestSession(t *testing.T) (*Session, *fakePersistence) {
	t.Helper()
	persist := newFakePersistence()
	sess := NewSession(persist, nil)
	require.NoError(t, sess.Create("pipeline", "test graph"))
	return sess, persist
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func variantPtr(v types.NodeVariant) *types.NodeVariant { return &v }

func TestSession_AddNodeFillsDefaults(t *testing.T) {
	sess, _ := newTestSession(t)

	added, err := sess.AddNode(NodePatch{Name: strPtr("researcher"), Entry: boolPtr(true)})
	require.NoError(t, err)

	assert.NotEmpty(t, added.ID)
	assert.Equal(t, []string{types.SentinelStart}, added.InputNodes)
	assert.NotNil(t, added.OutputNodes)
	assert.NotNil(t, added.MCPServers)
	assert.Equal(t, types.ContextModeAll, added.ContextMode)
	assert.True(t, sess.Dirty())
}

func TestSession_AddNodeRejectsDuplicateAndBadNames(t *testing.T) {
	sess, _ := newTestSession(t)

	_, err := sess.AddNode(NodePatch{Name: strPtr("writer")})
	require.NoError(t, err)

	_, err = sess.AddNode(NodePatch{Name: strPtr("writer")})
	assert.True(t, types.IsCode(err, types.ErrDuplicateName))

	_, err = sess.AddNode(NodePatch{Name: strPtr("bad/name")})
	assert.True(t, types.IsCode(err, types.ErrInvalidName))

	_, err = sess.AddNode(NodePatch{Name: strPtr("start")})
	assert.True(t, types.IsCode(err, types.ErrReservedName))

	// Failed adds leave the graph unchanged.
	assert.Len(t, sess.Graph().Nodes, 1)
}

func TestSession_AddNodeRejectsSelfReferentialSubgraph(t *testing.T) {
	sess, _ := newTestSession(t)

	_, err := sess.AddNode(NodePatch{
		Name:    strPtr("nested"),
		Variant: variantPtr(types.SubgraphVariant("pipeline")),
	})
	assert.True(t, types.IsCode(err, types.ErrSelfReference))
}

func TestSession_ConnectAndRemoveRepairsEdges(t *testing.T) {
	sess, _ := newTestSession(t)

	a, err := sess.AddNode(NodePatch{Name: strPtr("a")})
	require.NoError(t, err)
	b, err := sess.AddNode(NodePatch{Name: strPtr("b")})
	require.NoError(t, err)

	require.NoError(t, sess.Connect(a.ID, b.ID))
	g := sess.Graph()
	assert.Equal(t, []string{"b"}, g.Node("a").OutputNodes)
	assert.Equal(t, []string{"a"}, g.Node("b").InputNodes)

	require.NoError(t, sess.RemoveNode(a.ID))
	g = sess.Graph()
	require.Nil(t, g.Node("a"))
	assert.Empty(t, g.Node("b").InputNodes)
}

func TestSession_ConnectUnknownIDIsNoOp(t *testing.T) {
	sess, _ := newTestSession(t)
	a, err := sess.AddNode(NodePatch{Name: strPtr("a")})
	require.NoError(t, err)

	require.NoError(t, sess.Connect(a.ID, "stale-id"))
	require.NoError(t, sess.Disconnect("stale-id", a.ID))
	g := sess.Graph()
	assert.Empty(t, g.Node("a").OutputNodes)
}

func TestSession_SentinelToggleRoundTrip(t *testing.T) {
	sess, _ := newTestSession(t)
	a, err := sess.AddNode(NodePatch{Name: strPtr("a")})
	require.NoError(t, err)
	b, err := sess.AddNode(NodePatch{Name: strPtr("b")})
	require.NoError(t, err)
	require.NoError(t, sess.Connect(b.ID, a.ID))

	g := sess.Graph()
	before := g.Node("a").InputNodes

	require.NoError(t, sess.UpdateNode(a.ID, NodePatch{Entry: boolPtr(true)}))
	g = sess.Graph()
	assert.Contains(t, g.Node("a").InputNodes, types.SentinelStart)
	// Toggling on twice is idempotent.
	require.NoError(t, sess.UpdateNode(a.ID, NodePatch{Entry: boolPtr(true)}))

	require.NoError(t, sess.UpdateNode(a.ID, NodePatch{Entry: boolPtr(false)}))
	g = sess.Graph()
	assert.ElementsMatch(t, before, g.Node("a").InputNodes)
}

func TestSession_UpdateNodeRenameRewritesReferences(t *testing.T) {
	sess, _ := newTestSession(t)
	a, err := sess.AddNode(NodePatch{Name: strPtr("a"), GlobalOutput: boolPtr(true)})
	require.NoError(t, err)
	b, err := sess.AddNode(NodePatch{Name: strPtr("b"), Context: ptrStrings("a")})
	require.NoError(t, err)
	require.NoError(t, sess.Connect(a.ID, b.ID))

	require.NoError(t, sess.UpdateNode(a.ID, NodePatch{Name: strPtr("alpha")}))
	g := sess.Graph()
	assert.Equal(t, []string{"alpha"}, g.Node("b").InputNodes)
	assert.Equal(t, []string{"alpha"}, g.Node("b").Context)
}

func TestSession_ContextRequiresGlobalOutputAtSelectionTime(t *testing.T) {
	sess, _ := newTestSession(t)
	a, err := sess.AddNode(NodePatch{Name: strPtr("a")})
	require.NoError(t, err)
	b, err := sess.AddNode(NodePatch{Name: strPtr("b")})
	require.NoError(t, err)

	// Selecting a non-global node as context fails.
	err = sess.UpdateNode(b.ID, NodePatch{Context: ptrStrings("a")})
	assert.True(t, types.IsCode(err, types.ErrValidation))

	require.NoError(t, sess.UpdateNode(a.ID, NodePatch{GlobalOutput: boolPtr(true)}))
	require.NoError(t, sess.UpdateNode(b.ID, NodePatch{Context: ptrStrings("a")}))

	// Turning global output back off does not retroactively prune the
	// stale reference.
	require.NoError(t, sess.UpdateNode(a.ID, NodePatch{GlobalOutput: boolPtr(false)}))
	g := sess.Graph()
	assert.Equal(t, []string{"a"}, g.Node("b").Context)
}

func TestSession_SaveClearsDirtyAndStripsIDs(t *testing.T) {
	sess, persist := newTestSession(t)
	_, err := sess.AddNode(NodePatch{Name: strPtr("a")})
	require.NoError(t, err)

	require.NoError(t, sess.Save(context.Background()))
	assert.False(t, sess.Dirty())
	assert.Equal(t, int64(1), sess.Version())
	assert.Contains(t, sess.Graphs(), "pipeline")

	stored := persist.graphs["pipeline"]
	require.Len(t, stored.Nodes, 1)
	assert.Empty(t, stored.Nodes[0].ID)
}

func TestSession_SaveConflictForcesRefresh(t *testing.T) {
	sess, persist := newTestSession(t)
	_, err := sess.AddNode(NodePatch{Name: strPtr("a")})
	require.NoError(t, err)
	require.NoError(t, sess.Save(context.Background()))

	// A concurrent editor bumps the stored version.
	stored := persist.graphs["pipeline"]
	other := stored.Clone()
	other.Description = "edited elsewhere"
	_, err = persist.PutGraph(context.Background(), other, 1)
	require.NoError(t, err)

	_, err = sess.AddNode(NodePatch{Name: strPtr("mine")})
	require.NoError(t, err)
	err = sess.Save(context.Background())
	require.Error(t, err)

	fe, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrConflict, fe.Code)
	assert.Equal(t, int64(2), fe.Current)
	assert.Equal(t, int64(1), fe.Expected)

	// The session replaced its local state with the canonical copy and
	// did not re-send the stale mutation.
	assert.False(t, sess.Dirty())
	assert.Equal(t, int64(2), sess.Version())
	g := sess.Graph()
	assert.Equal(t, "edited elsewhere", g.Description)
	assert.Nil(t, g.Node("mine"))
}

func TestSession_TransportFailureKeepsDirty(t *testing.T) {
	sess, persist := newTestSession(t)
	_, err := sess.AddNode(NodePatch{Name: strPtr("a")})
	require.NoError(t, err)

	persist.putErr = types.NewError(types.ErrTransport, "save failed").WithCause(context.DeadlineExceeded)
	err = sess.Save(context.Background())
	assert.True(t, types.IsCode(err, types.ErrTransport))
	assert.True(t, sess.Dirty())

	// The identical save succeeds once transport recovers.
	persist.putErr = nil
	require.NoError(t, sess.Save(context.Background()))
	assert.False(t, sess.Dirty())
}

func TestSession_DeleteOpenGraphClearsSession(t *testing.T) {
	sess, _ := newTestSession(t)
	a, err := sess.AddNode(NodePatch{Name: strPtr("a")})
	require.NoError(t, err)
	sess.Select(a.ID)
	require.NoError(t, sess.Save(context.Background()))

	require.NoError(t, sess.Delete(context.Background(), "pipeline"))
	assert.False(t, sess.Open())
	assert.Empty(t, sess.Selected())

	err = sess.Delete(context.Background(), "pipeline")
	assert.True(t, types.IsNotFound(err))
}

func TestSession_LoadHydratesFreshIDs(t *testing.T) {
	sess, _ := newTestSession(t)
	_, err := sess.AddNode(NodePatch{Name: strPtr("a")})
	require.NoError(t, err)
	require.NoError(t, sess.Save(context.Background()))

	other := NewSession(sess.persist, nil)
	require.NoError(t, other.Load(context.Background(), "pipeline"))
	g := other.Graph()
	require.Len(t, g.Nodes, 1)
	assert.NotEmpty(t, g.Nodes[0].ID)
	assert.False(t, other.Dirty())
}

func TestSession_RenameOpenGraph(t *testing.T) {
	sess, _ := newTestSession(t)
	require.NoError(t, sess.Save(context.Background()))

	require.NoError(t, sess.Rename(context.Background(), "pipeline", "pipeline-v2"))
	assert.Equal(t, "pipeline-v2", sess.Graph().Name)

	err := sess.Rename(context.Background(), "pipeline-v2", "bad.name")
	assert.True(t, types.IsCode(err, types.ErrInvalidName))
}

func ptrStrings(values ...string) *[]string {
	return &values
}
