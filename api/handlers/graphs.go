package handlers

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/api"
	"github.com/BaSui01/flowcanvas/graph"
	"github.com/BaSui01/flowcanvas/internal/metrics"
	"github.com/BaSui01/flowcanvas/persistence"
	"github.com/BaSui01/flowcanvas/types"
)

// GraphsHandler serves the graph CRUD endpoints. Every write is
// validated and reconciled before it reaches the store, so only graphs
// satisfying the structural invariants are ever persisted.
type GraphsHandler struct {
	store   persistence.GraphStore
	metrics *metrics.Collector
	logger  *zap.Logger

	// The tokenizer loads its encoding lazily on the first stats
	// request; the load outcome is cached either way.
	counterOnce sync.Once
	counter     *graph.TokenCounter
	counterErr  error
}

// NewGraphsHandler creates a graphs handler.
func NewGraphsHandler(store persistence.GraphStore, collector *metrics.Collector, logger *zap.Logger) *GraphsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphsHandler{
		store:   store,
		metrics: collector,
		logger:  logger.With(zap.String("component", "graphs_handler")),
	}
}

// HandleList serves GET /api/v1/graphs.
func (h *GraphsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	names, err := h.store.ListGraphs(r.Context())
	if err != nil {
		h.metrics.RecordGraphOp("list", "error", time.Since(start))
		WriteAnyError(w, err, h.logger)
		return
	}
	h.metrics.RecordGraphOp("list", "ok", time.Since(start))
	WriteSuccess(w, api.ListGraphsResponse{Graphs: names})
}

// HandleGet serves GET /api/v1/graphs/{name}.
func (h *GraphsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("name")
	cfg, version, err := h.store.GetGraph(r.Context(), name)
	if err != nil {
		h.metrics.RecordGraphOp("get", "error", time.Since(start))
		WriteAnyError(w, err, h.logger)
		return
	}
	h.metrics.RecordGraphOp("get", "ok", time.Since(start))
	WriteSuccess(w, api.GraphResponse{Config: cfg, Version: version})
}

// HandlePut serves PUT /api/v1/graphs/{name}. The path name wins over
// any name in the body.
func (h *GraphsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req api.PutGraphRequest
	if ferr := decodeBody(r, &req); ferr != nil {
		WriteError(w, ferr, h.logger)
		return
	}
	req.Config.Name = r.PathValue("name")

	if err := graph.ValidateGraph(&req.Config); err != nil {
		h.metrics.RecordGraphOp("put", "invalid", time.Since(start))
		WriteAnyError(w, err, h.logger)
		return
	}
	req.Config.Nodes = graph.Reconcile(req.Config.Nodes)

	version, err := h.store.PutGraph(r.Context(), req.Config, req.Version)
	if err != nil {
		if types.IsConflict(err) {
			h.metrics.RecordSaveConflict()
			h.metrics.RecordGraphOp("put", "conflict", time.Since(start))
		} else {
			h.metrics.RecordGraphOp("put", "error", time.Since(start))
		}
		WriteAnyError(w, err, h.logger)
		return
	}
	h.metrics.RecordGraphOp("put", "ok", time.Since(start))
	h.logger.Info("graph saved",
		zap.String("graph", req.Config.Name),
		zap.Int64("version", version))
	WriteSuccess(w, api.VersionResponse{Version: version})
}

// HandleDelete serves DELETE /api/v1/graphs/{name}.
func (h *GraphsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("name")
	if err := h.store.DeleteGraph(r.Context(), name); err != nil {
		h.metrics.RecordGraphOp("delete", "error", time.Since(start))
		WriteAnyError(w, err, h.logger)
		return
	}
	h.metrics.RecordGraphOp("delete", "ok", time.Since(start))
	h.logger.Info("graph deleted", zap.String("graph", name))
	WriteSuccess(w, nil)
}

// HandleStats serves GET /api/v1/graphs/{name}/stats with per-node
// prompt token counts.
func (h *GraphsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	counter, err := h.tokenCounter()
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternal, "tokenizer unavailable").WithCause(err), h.logger)
		return
	}

	name := r.PathValue("name")
	cfg, version, err := h.store.GetGraph(r.Context(), name)
	if err != nil {
		h.metrics.RecordGraphOp("stats", "error", time.Since(start))
		WriteAnyError(w, err, h.logger)
		return
	}
	h.metrics.RecordGraphOp("stats", "ok", time.Since(start))
	WriteSuccess(w, api.GraphStatsResponse{Stats: counter.Stats(&cfg), Version: version})
}

func (h *GraphsHandler) tokenCounter() (*graph.TokenCounter, error) {
	h.counterOnce.Do(func() {
		h.counter, h.counterErr = graph.NewTokenCounter()
	})
	return h.counter, h.counterErr
}

// HandleRename serves POST /api/v1/graphs/{name}/rename.
func (h *GraphsHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	oldName := r.PathValue("name")
	var req api.RenameGraphRequest
	if ferr := decodeBody(r, &req); ferr != nil {
		WriteError(w, ferr, h.logger)
		return
	}
	if err := types.ValidateName(req.NewName); err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	version, err := h.store.RenameGraph(r.Context(), oldName, req.NewName, req.Version)
	if err != nil {
		if types.IsConflict(err) {
			h.metrics.RecordSaveConflict()
			h.metrics.RecordGraphOp("rename", "conflict", time.Since(start))
		} else {
			h.metrics.RecordGraphOp("rename", "error", time.Since(start))
		}
		WriteAnyError(w, err, h.logger)
		return
	}
	h.metrics.RecordGraphOp("rename", "ok", time.Since(start))
	h.logger.Info("graph renamed",
		zap.String("from", oldName),
		zap.String("to", req.NewName),
		zap.Int64("version", version))
	WriteSuccess(w, api.VersionResponse{Version: version})
}
