package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/execution"
	"github.com/BaSui01/flowcanvas/internal/metrics"
	"github.com/BaSui01/flowcanvas/persistence"
	"github.com/BaSui01/flowcanvas/types"
)

type stubFetcher struct {
	record types.ExecutionRecord
	err    error
}

func (f *stubFetcher) FetchExecution(context.Context, string) (types.ExecutionRecord, error) {
	return f.record, f.err
}

func newExecutionRouter(t *testing.T, fetcher execution.Fetcher) http.Handler {
	t.Helper()
	return NewRouter(RouterOptions{
		Store:          persistence.NewMemoryGraphStore(),
		Fetcher:        fetcher,
		Mode:           execution.ModeParallel,
		StreamInterval: 10 * time.Millisecond,
		Metrics:        metrics.NewCollector("test", prometheus.NewRegistry(), zap.NewNop()),
		Logger:         zap.NewNop(),
	})
}

func TestExecutionHandler_GetInterpretsRecord(t *testing.T) {
	fetcher := &stubFetcher{record: types.ExecutionRecord{
		GraphName:      "pipeline",
		ConversationID: "conv-1",
		Completed:      true,
		NodeResults: map[string]types.NodeResult{
			"a": {Output: "x"},
			"c": {Error: "boom"},
		},
	}}
	router := newExecutionRouter(t, fetcher)

	_, envelope := doJSON(t, router, http.MethodGet, "/api/v1/executions/conv-1", nil)
	require.True(t, envelope.Success)

	var state execution.GraphState
	decodeData(t, envelope, &state)
	assert.Equal(t, "pipeline", state.GraphName)
	assert.Equal(t, execution.StatusCompleted, state.Nodes["a"].Status)
	assert.Equal(t, execution.StatusError, state.Nodes["c"].Status)
}

func TestExecutionHandler_GetPropagatesFetchError(t *testing.T) {
	fetcher := &stubFetcher{err: types.NewError(types.ErrTransport, "engine unavailable")}
	router := newExecutionRouter(t, fetcher)

	rec, envelope := doJSON(t, router, http.MethodGet, "/api/v1/executions/conv-1", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(types.ErrTransport), envelope.Error.Code)
}

func TestExecutionHandler_StreamSendsSnapshotsUntilCompleted(t *testing.T) {
	fetcher := &stubFetcher{record: types.ExecutionRecord{
		GraphName:      "pipeline",
		ConversationID: "conv-1",
		Completed:      true,
		Output:         "final answer",
		NodeResults:    map[string]types.NodeResult{"a": {Output: "x"}},
	}}
	router := newExecutionRouter(t, fetcher)

	server := httptest.NewServer(router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(server.URL, "http", "ws", 1) + "/api/v1/executions/conv-1/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var state execution.GraphState
	require.NoError(t, json.Unmarshal(data, &state))
	assert.True(t, state.Completed)
	assert.Equal(t, "final answer", state.Output)
	assert.Equal(t, execution.StatusCompleted, state.Nodes["a"].Status)

	// The stream closes after the terminal snapshot.
	_, _, err = conn.Read(ctx)
	assert.Error(t, err)
}
