package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/flowcanvas/execution"
	"github.com/BaSui01/flowcanvas/types"
)

// EngineClient reads raw execution records from the workflow engine.
// It satisfies execution.Fetcher, so it can back both the poller and
// the service's execution endpoints.
type EngineClient struct {
	baseURL string
	http    *http.Client
}

// NewEngineClient creates a client for the engine at baseURL. A zero
// timeout means 10s.
func NewEngineClient(baseURL string, timeout time.Duration) *EngineClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EngineClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

var _ execution.Fetcher = (*EngineClient)(nil)

// FetchExecution reads the execution record of one conversation.
func (c *EngineClient) FetchExecution(ctx context.Context, conversationID string) (types.ExecutionRecord, error) {
	path := c.baseURL + "/executions/" + url.PathEscape(conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return types.ExecutionRecord{}, types.NewError(types.ErrTransport, "failed to build engine request").WithCause(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.ExecutionRecord{}, types.NewErrorf(types.ErrTransport, "engine read for %q failed", conversationID).
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return types.ExecutionRecord{}, types.NewErrorf(types.ErrNotFound, "conversation %q not found", conversationID)
	default:
		return types.ExecutionRecord{}, types.NewErrorf(types.ErrTransport, "engine returned status %d", resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500)
	}

	var record types.ExecutionRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return types.ExecutionRecord{}, types.NewError(types.ErrTransport, "malformed execution record").WithCause(err)
	}
	return record, nil
}
