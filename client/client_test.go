package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/api/handlers"
	"github.com/BaSui01/flowcanvas/execution"
	"github.com/BaSui01/flowcanvas/graph"
	"github.com/BaSui01/flowcanvas/internal/metrics"
	"github.com/BaSui01/flowcanvas/persistence"
	"github.com/BaSui01/flowcanvas/types"
)

type fixedFetcher struct {
	record types.ExecutionRecord
}

func (f *fixedFetcher) FetchExecution(context.Context, string) (types.ExecutionRecord, error) {
	return f.record, nil
}

func newTestService(t *testing.T, fetcher execution.Fetcher) (*Client, persistence.GraphStore) {
	t.Helper()
	store := persistence.NewMemoryGraphStore()
	router := handlers.NewRouter(handlers.RouterOptions{
		Store:          store,
		Fetcher:        fetcher,
		StreamInterval: 10 * time.Millisecond,
		Metrics:        metrics.NewCollector("test", prometheus.NewRegistry(), zap.NewNop()),
		Logger:         zap.NewNop(),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return New(Options{BaseURL: server.URL, Logger: zap.NewNop()}), store
}

func sampleGraph(name string) types.GraphConfig {
	return types.GraphConfig{
		Name: name,
		Nodes: []types.AgentNode{{
			Name:        "writer",
			Variant:     types.AgentVariant("gpt-4o"),
			InputNodes:  []string{types.SentinelStart},
			OutputNodes: []string{types.SentinelEnd},
			ContextMode: types.ContextModeAll,
		}},
	}
}

func TestClient_GraphLifecycle(t *testing.T) {
	c, _ := newTestService(t, nil)
	ctx := context.Background()

	v, err := c.PutGraph(ctx, sampleGraph("pipeline"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	cfg, version, err := c.GetGraph(ctx, "pipeline")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, "pipeline", cfg.Name)

	names, err := c.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pipeline"}, names)

	v, err = c.RenameGraph(ctx, "pipeline", "renamed", version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	require.NoError(t, c.DeleteGraph(ctx, "renamed"))
	_, _, err = c.GetGraph(ctx, "renamed")
	assert.True(t, types.IsNotFound(err))
}

func TestClient_StaleWriteSurfacesConflictVersions(t *testing.T) {
	c, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := c.PutGraph(ctx, sampleGraph("contested"), 0)
	require.NoError(t, err)

	_, err = c.PutGraph(ctx, sampleGraph("contested"), 0)
	require.Error(t, err)
	fe, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrConflict, fe.Code)
	assert.Equal(t, int64(1), fe.Current)
	assert.Equal(t, int64(0), fe.Expected)
	assert.Equal(t, http.StatusConflict, fe.HTTPStatus)
}

func TestClient_TransportErrorIsRetryable(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})

	_, err := c.ListGraphs(context.Background())
	require.Error(t, err)
	fe, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrTransport, fe.Code)
	assert.True(t, fe.Retryable)
}

func TestClient_ServerRegistryFlow(t *testing.T) {
	c, _ := newTestService(t, nil)
	ctx := context.Background()

	server := types.MCPServer{Name: "search", Transport: "http", URL: "http://localhost:9000"}
	v, err := c.AddServer(ctx, server, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	server.URL = "http://localhost:9001"
	v, err = c.UpdateServer(ctx, server, v)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	reg, version, err := c.GetRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	require.Len(t, reg.Servers, 1)
	assert.Equal(t, "http://localhost:9001", reg.Servers[0].URL)

	// Stale registry mutation is rejected, not merged.
	_, err = c.AddServer(ctx, types.MCPServer{Name: "files", Transport: "stdio"}, 1)
	assert.True(t, types.IsConflict(err))

	v, err = c.DeleteServer(ctx, "search", version)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func addAgentNode(t *testing.T, s *graph.Session, name string) {
	t.Helper()
	variant := types.AgentVariant("gpt-4o")
	_, err := s.AddNode(graph.NodePatch{Name: &name, Variant: &variant})
	require.NoError(t, err)
}

// A session editing through the client follows the full conflict
// protocol: the losing save is replaced by the canonical state and the
// next save starts from the refreshed version.
func TestClient_SessionConflictRoundTrip(t *testing.T) {
	c, _ := newTestService(t, nil)

	alice := graph.NewSession(c, zap.NewNop())
	bob := graph.NewSession(c, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, alice.Create("shared", "collab graph"))
	addAgentNode(t, alice, "drafter")
	require.NoError(t, alice.Save(ctx))

	require.NoError(t, bob.Load(ctx, "shared"))
	addAgentNode(t, bob, "reviewer")
	require.NoError(t, bob.Save(ctx))

	// Alice edits on top of the stale version and loses the race.
	addAgentNode(t, alice, "editor")
	err := alice.Save(ctx)
	require.Error(t, err)
	assert.True(t, types.IsConflict(err))

	// The forced refresh pulled Bob's node and dropped Alice's edit.
	refreshed := alice.Graph()
	assert.NotNil(t, refreshed.Node("reviewer"))
	assert.Nil(t, refreshed.Node("editor"))
	assert.Equal(t, int64(2), alice.Version())

	// Editing again from the refreshed state succeeds.
	addAgentNode(t, alice, "editor")
	require.NoError(t, alice.Save(ctx))
	assert.Equal(t, int64(3), alice.Version())
}

func TestClient_ExecutionViews(t *testing.T) {
	fetcher := &fixedFetcher{record: types.ExecutionRecord{
		GraphName:      "pipeline",
		ConversationID: "conv-1",
		Completed:      true,
		Output:         "done",
		NodeResults:    map[string]types.NodeResult{"a": {Output: "x"}},
	}}
	c, _ := newTestService(t, fetcher)
	ctx := context.Background()

	state, err := c.GetExecution(ctx, "conv-1")
	require.NoError(t, err)
	assert.True(t, state.Completed)
	assert.Equal(t, execution.StatusCompleted, state.Nodes["a"].Status)

	var streamed []*execution.GraphState
	err = c.StreamExecution(ctx, "conv-1", func(s *execution.GraphState) error {
		streamed = append(streamed, s)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, streamed, 1)
	assert.Equal(t, "done", streamed[0].Output)
}

func TestEngineClient_FetchExecution(t *testing.T) {
	record := types.ExecutionRecord{
		GraphName:      "pipeline",
		ConversationID: "conv-9",
		NodeResults:    map[string]types.NodeResult{"a": {Output: "x"}},
	}
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/executions/conv-9":
			_ = json.NewEncoder(w).Encode(record)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer engine.Close()

	c := NewEngineClient(engine.URL, time.Second)

	got, err := c.FetchExecution(context.Background(), "conv-9")
	require.NoError(t, err)
	assert.Equal(t, "pipeline", got.GraphName)
	require.Contains(t, got.NodeResults, "a")

	_, err = c.FetchExecution(context.Background(), "missing")
	assert.True(t, types.IsNotFound(err))
}
