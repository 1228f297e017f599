package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/api"
	"github.com/BaSui01/flowcanvas/graph"
	"github.com/BaSui01/flowcanvas/internal/metrics"
	"github.com/BaSui01/flowcanvas/persistence"
	"github.com/BaSui01/flowcanvas/types"
)

func newTestRouter(t *testing.T) (http.Handler, persistence.GraphStore) {
	t.Helper()
	store := persistence.NewMemoryGraphStore()
	collector := metrics.NewCollector("test", prometheus.NewRegistry(), zap.NewNop())
	router := NewRouter(RouterOptions{
		Store:   store,
		Metrics: collector,
		Version: "test",
		Logger:  zap.NewNop(),
	})
	return router, store
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, api.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope api.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return rec, envelope
}

func decodeData(t *testing.T, envelope api.Response, dst any) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func validPutRequest(version int64) api.PutGraphRequest {
	return api.PutGraphRequest{
		Version: version,
		Config: types.GraphConfig{
			Nodes: []types.AgentNode{{
				Name:        "writer",
				Variant:     types.AgentVariant("gpt-4o"),
				InputNodes:  []string{types.SentinelStart},
				OutputNodes: []string{types.SentinelEnd},
				ContextMode: types.ContextModeAll,
			}},
		},
	}
}

func TestGraphsHandler_PutGetRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, envelope := doJSON(t, router, http.MethodPut, "/api/v1/graphs/pipeline", validPutRequest(0))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, envelope.Success)

	var put api.VersionResponse
	decodeData(t, envelope, &put)
	assert.Equal(t, int64(1), put.Version)

	rec, envelope = doJSON(t, router, http.MethodGet, "/api/v1/graphs/pipeline", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got api.GraphResponse
	decodeData(t, envelope, &got)
	assert.Equal(t, "pipeline", got.Config.Name)
	assert.Equal(t, int64(1), got.Version)
	require.Len(t, got.Config.Nodes, 1)
}

func TestGraphsHandler_StalePutReturnsConflict(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPut, "/api/v1/graphs/pipeline", validPutRequest(0))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope := doJSON(t, router, http.MethodPut, "/api/v1/graphs/pipeline", validPutRequest(0))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(types.ErrConflict), envelope.Error.Code)
	assert.Equal(t, int64(1), envelope.Error.Current)
	assert.Equal(t, int64(0), envelope.Error.Expected)
}

func TestGraphsHandler_InvalidGraphRejected(t *testing.T) {
	router, store := newTestRouter(t)

	req := validPutRequest(0)
	req.Config.Nodes = append(req.Config.Nodes, req.Config.Nodes[0])

	rec, envelope := doJSON(t, router, http.MethodPut, "/api/v1/graphs/pipeline", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(types.ErrDuplicateName), envelope.Error.Code)

	_, _, err := store.GetGraph(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "pipeline")
	assert.True(t, types.IsNotFound(err))
}

func TestGraphsHandler_PutReconcilesEdges(t *testing.T) {
	router, _ := newTestRouter(t)

	req := api.PutGraphRequest{
		Config: types.GraphConfig{
			Nodes: []types.AgentNode{
				{
					Name:        "a",
					Variant:     types.AgentVariant("gpt-4o"),
					OutputNodes: []string{"b"},
					ContextMode: types.ContextModeAll,
				},
				{
					Name:        "b",
					Variant:     types.AgentVariant("gpt-4o"),
					ContextMode: types.ContextModeAll,
				},
			},
		},
	}

	rec, _ := doJSON(t, router, http.MethodPut, "/api/v1/graphs/sym", req)
	require.Equal(t, http.StatusOK, rec.Code)

	_, envelope := doJSON(t, router, http.MethodGet, "/api/v1/graphs/sym", nil)
	var got api.GraphResponse
	decodeData(t, envelope, &got)

	b := got.Config.Node("b")
	require.NotNil(t, b)
	assert.Contains(t, b.InputNodes, "a")
}

func TestGraphsHandler_ListAndDelete(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, name := range []string{"beta", "alpha"} {
		rec, _ := doJSON(t, router, http.MethodPut, "/api/v1/graphs/"+name, validPutRequest(0))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	_, envelope := doJSON(t, router, http.MethodGet, "/api/v1/graphs", nil)
	var list api.ListGraphsResponse
	decodeData(t, envelope, &list)
	assert.Equal(t, []string{"alpha", "beta"}, list.Graphs)

	rec, _ := doJSON(t, router, http.MethodDelete, "/api/v1/graphs/alpha", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/v1/graphs/alpha", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGraphsHandler_Rename(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPut, "/api/v1/graphs/old", validPutRequest(0))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope := doJSON(t, router, http.MethodPost, "/api/v1/graphs/old/rename",
		api.RenameGraphRequest{NewName: "new", Version: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	var renamed api.VersionResponse
	decodeData(t, envelope, &renamed)
	assert.Equal(t, int64(2), renamed.Version)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/graphs/old", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Reserved sentinel names are rejected as graph names too.
	rec, envelope = doJSON(t, router, http.MethodPost, "/api/v1/graphs/new/rename",
		api.RenameGraphRequest{NewName: "start", Version: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(types.ErrReservedName), envelope.Error.Code)
}

func TestGraphsHandler_Stats(t *testing.T) {
	if _, err := graph.NewTokenCounter(); err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}
	router, _ := newTestRouter(t)

	req := validPutRequest(0)
	req.Config.Nodes[0].SystemPrompt = "You are a careful researcher."
	req.Config.Nodes[0].UserPrompt = "Summarize the findings."
	rec, _ := doJSON(t, router, http.MethodPut, "/api/v1/graphs/pipeline", req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope := doJSON(t, router, http.MethodGet, "/api/v1/graphs/pipeline/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats api.GraphStatsResponse
	decodeData(t, envelope, &stats)
	assert.Equal(t, int64(1), stats.Version)
	require.Len(t, stats.Stats.Nodes, 1)
	assert.Equal(t, "writer", stats.Stats.Nodes[0].Name)
	assert.Positive(t, stats.Stats.Nodes[0].SystemTokens)
	assert.Positive(t, stats.Stats.Nodes[0].UserTokens)
	assert.Equal(t,
		stats.Stats.Nodes[0].SystemTokens+stats.Stats.Nodes[0].UserTokens,
		stats.Stats.TotalTokens)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/graphs/missing/stats", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(out.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "pass", status.Checks["store"].Status)
}
