package cpanel

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Client issues panel API calls through a Runner and unwraps the
// response envelopes.
type Client struct {
	runner Runner
	logger *zap.Logger
}

func NewClient(runner Runner, logger *zap.Logger) *Client {
	return &Client{
		runner: runner,
		logger: logger,
	}
}

// WHM runs a root-scoped WHM API 1 function and returns its data payload.
func (c *Client) WHM(ctx context.Context, fn string, args ...string) (json.RawMessage, error) {
	argv := append([]string{"--output=json", fn}, args...)
	out, err := c.runner.Run(ctx, ToolWHMAPI, argv...)
	if err != nil {
		return nil, err
	}
	return ParseWHMEnvelope(out)
}

// UAPI runs a UAPI function scoped to one account and returns its data
// payload.
func (c *Client) UAPI(ctx context.Context, user, module, fn string, args ...string) (json.RawMessage, error) {
	argv := append([]string{"--output=json", "--user=" + user, module, fn}, args...)
	out, err := c.runner.Run(ctx, ToolUAPI, argv...)
	if err != nil {
		return nil, err
	}
	return ParseUAPIEnvelope(out)
}
