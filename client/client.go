package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/api"
	"github.com/BaSui01/flowcanvas/execution"
	"github.com/BaSui01/flowcanvas/graph"
	"github.com/BaSui01/flowcanvas/types"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the service root, e.g. "http://localhost:8080".
	BaseURL string
	// Token is an optional bearer token sent on every request.
	Token string
	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration
	// HTTPClient overrides the underlying client. Timeout is ignored
	// when set.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the FlowCanvas HTTP API. It implements the
// graph.Persistence surface, so an editing Session can run directly
// against a remote service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a client for the given service.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    httpClient,
		logger:  logger.With(zap.String("component", "flowcanvas_client")),
	}
}

// do sends one request and decodes the response envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return types.NewError(types.ErrTransport, "failed to encode request").WithCause(err)
		}
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return types.NewError(types.ErrTransport, "failed to build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.NewErrorf(types.ErrTransport, "%s %s failed", method, path).
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	var envelope api.Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return types.NewErrorf(types.ErrTransport, "%s %s returned a malformed response", method, path).
			WithCause(err)
	}

	if !envelope.Success {
		return envelopeError(envelope.Error, resp.StatusCode)
	}
	if out != nil {
		raw, err := json.Marshal(envelope.Data)
		if err != nil {
			return types.NewError(types.ErrTransport, "failed to re-encode response data").WithCause(err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return types.NewErrorf(types.ErrTransport, "%s %s returned unexpected data", method, path).
				WithCause(err)
		}
	}
	return nil
}

// envelopeError rebuilds a types.Error from the wire form.
func envelopeError(info *api.ErrorInfo, httpStatus int) *types.Error {
	if info == nil {
		return types.NewErrorf(types.ErrTransport, "request failed with status %d", httpStatus).
			WithHTTPStatus(httpStatus)
	}
	err := &types.Error{
		Code:       types.ErrorCode(info.Code),
		Message:    info.Message,
		HTTPStatus: httpStatus,
		Retryable:  info.Retryable,
		Current:    info.Current,
		Expected:   info.Expected,
	}
	if info.Details != "" {
		err.Cause = fmt.Errorf("%s", info.Details)
	}
	return err
}

// ListGraphs returns the stored graph names.
func (c *Client) ListGraphs(ctx context.Context) ([]string, error) {
	var out api.ListGraphsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/graphs", nil, &out); err != nil {
		return nil, err
	}
	return out.Graphs, nil
}

// GetGraph fetches one graph and its version.
func (c *Client) GetGraph(ctx context.Context, name string) (types.GraphConfig, int64, error) {
	var out api.GraphResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/graphs/"+url.PathEscape(name), nil, &out); err != nil {
		return types.GraphConfig{}, 0, err
	}
	return out.Config, out.Version, nil
}

// PutGraph writes a graph under the CAS contract and returns the new
// version.
func (c *Client) PutGraph(ctx context.Context, cfg types.GraphConfig, expectedVersion int64) (int64, error) {
	var out api.VersionResponse
	req := api.PutGraphRequest{Config: cfg, Version: expectedVersion}
	if err := c.do(ctx, http.MethodPut, "/api/v1/graphs/"+url.PathEscape(cfg.Name), req, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

// GetGraphStats fetches the prompt token statistics of a graph and the
// version they were computed from.
func (c *Client) GetGraphStats(ctx context.Context, name string) (graph.GraphStats, int64, error) {
	var out api.GraphStatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/graphs/"+url.PathEscape(name)+"/stats", nil, &out); err != nil {
		return graph.GraphStats{}, 0, err
	}
	return out.Stats, out.Version, nil
}

// DeleteGraph removes a graph.
func (c *Client) DeleteGraph(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/graphs/"+url.PathEscape(name), nil, nil)
}

// RenameGraph moves a graph to a new name.
func (c *Client) RenameGraph(ctx context.Context, oldName, newName string, expectedVersion int64) (int64, error) {
	var out api.VersionResponse
	req := api.RenameGraphRequest{NewName: newName, Version: expectedVersion}
	if err := c.do(ctx, http.MethodPost, "/api/v1/graphs/"+url.PathEscape(oldName)+"/rename", req, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

// GetRegistry fetches the MCP server registry and its version.
func (c *Client) GetRegistry(ctx context.Context) (types.ServerRegistry, int64, error) {
	var out api.RegistryResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/servers", nil, &out); err != nil {
		return types.ServerRegistry{}, 0, err
	}
	return out.Registry, out.Version, nil
}

// AddServer registers a new MCP server under the registry CAS contract.
func (c *Client) AddServer(ctx context.Context, server types.MCPServer, expectedVersion int64) (int64, error) {
	var out api.VersionResponse
	req := api.PutServerRequest{Server: server, Version: expectedVersion}
	if err := c.do(ctx, http.MethodPost, "/api/v1/servers", req, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

// UpdateServer replaces an existing MCP server entry.
func (c *Client) UpdateServer(ctx context.Context, server types.MCPServer, expectedVersion int64) (int64, error) {
	var out api.VersionResponse
	req := api.PutServerRequest{Server: server, Version: expectedVersion}
	if err := c.do(ctx, http.MethodPut, "/api/v1/servers/"+url.PathEscape(server.Name), req, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

// DeleteServer removes an MCP server entry.
func (c *Client) DeleteServer(ctx context.Context, name string, expectedVersion int64) (int64, error) {
	var out api.VersionResponse
	path := fmt.Sprintf("/api/v1/servers/%s?version=%d", url.PathEscape(name), expectedVersion)
	if err := c.do(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

// Client doubles as the persistence surface of an editing session.
var _ graph.Persistence = (*Client)(nil)

// GetExecution fetches the interpreted state of a conversation.
func (c *Client) GetExecution(ctx context.Context, conversationID string) (*execution.GraphState, error) {
	var out execution.GraphState
	if err := c.do(ctx, http.MethodGet, "/api/v1/executions/"+url.PathEscape(conversationID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
