package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/execution"
	"github.com/BaSui01/flowcanvas/types"
)

// StreamExecution subscribes to the websocket stream of a conversation
// and invokes fn for every interpreted snapshot. It returns nil when
// the server closes the stream after the terminal snapshot, or the
// context error on cancellation.
func (c *Client) StreamExecution(ctx context.Context, conversationID string, fn func(*execution.GraphState) error) error {
	wsURL := httpToWS(c.baseURL) + "/api/v1/executions/" + url.PathEscape(conversationID) + "/stream"

	var dialOpts *websocket.DialOptions
	if c.token != "" {
		dialOpts = &websocket.DialOptions{
			HTTPHeader: map[string][]string{"Authorization": {"Bearer " + c.token}},
		}
	}
	conn, _, err := websocket.Dial(ctx, wsURL, dialOpts)
	if err != nil {
		return types.NewError(types.ErrTransport, "failed to open execution stream").
			WithCause(err).
			WithRetryable(true)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	c.logger.Debug("execution stream opened", zap.String("conversation", conversationID))
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return types.NewError(types.ErrTransport, "execution stream interrupted").
				WithCause(err).
				WithRetryable(true)
		}

		var state execution.GraphState
		if err := json.Unmarshal(data, &state); err != nil {
			return types.NewError(types.ErrTransport, "malformed execution snapshot").WithCause(err)
		}
		if err := fn(&state); err != nil {
			return err
		}
		if state.Completed {
			return nil
		}
	}
}

func httpToWS(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
