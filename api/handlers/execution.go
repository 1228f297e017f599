package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/execution"
	"github.com/BaSui01/flowcanvas/internal/metrics"
)

// ExecutionHandler serves interpreted execution state: one-shot reads
// and a websocket stream of GraphState snapshots.
type ExecutionHandler struct {
	fetcher  execution.Fetcher
	mode     execution.Mode
	interval time.Duration
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewExecutionHandler creates an execution handler. A zero interval
// streams one snapshot per second.
func NewExecutionHandler(fetcher execution.Fetcher, mode execution.Mode, interval time.Duration, collector *metrics.Collector, logger *zap.Logger) *ExecutionHandler {
	if mode == "" {
		mode = execution.ModeParallel
	}
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecutionHandler{
		fetcher:  fetcher,
		mode:     mode,
		interval: interval,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "execution_handler")),
	}
}

// HandleGet serves GET /api/v1/executions/{conversation_id}.
func (h *ExecutionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("conversation_id")
	record, err := h.fetcher.FetchExecution(r.Context(), id)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	h.metrics.RecordPollCycle()
	WriteSuccess(w, execution.Interpret(record, h.mode))
}

// HandleStream serves GET /api/v1/executions/{conversation_id}/stream.
// It upgrades to a websocket and pushes interpreted snapshots until the
// conversation completes or the client goes away.
func (h *ExecutionHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("conversation_id")
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	h.metrics.WSClientConnected()
	defer h.metrics.WSClientDisconnected()
	defer conn.Close(websocket.StatusNormalClosure, "stream finished")

	h.logger.Info("execution stream opened", zap.String("conversation", id))
	if err := h.stream(r.Context(), conn, id); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("execution stream ended",
			zap.String("conversation", id), zap.Error(err))
	}
}

func (h *ExecutionHandler) stream(ctx context.Context, conn *websocket.Conn, id string) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		record, err := h.fetcher.FetchExecution(ctx, id)
		if err != nil {
			return err
		}
		h.metrics.RecordPollCycle()
		state := execution.Interpret(record, h.mode)

		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			return err
		}
		if state.Completed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
