package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sflowg/reciperun/runtime"
)

func init() {
	defaultRegistry.register("mcp", newMCPStep)
}

// MCPServerRef is the {url|command, args?, headers?} server descriptor.
type MCPServerRef struct {
	URL     string            `json:"url,omitempty" validate:"omitempty,url_format"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// MCPConfig is the decoded config for the mcp step.
type MCPConfig struct {
	Server     MCPServerRef   `json:"server" validate:"required"`
	ToolName   string         `json:"tool_name" validate:"required"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	OutputKey  string         `json:"output_key" validate:"required"`
	TimeoutSec int            `json:"timeout,omitempty"`
}

// Client is the seam between the mcp step and a concrete MCP transport.
// Only an HTTP-based transport is shipped here; the step depends on this
// interface so stdio/subprocess transports can be substituted without
// touching step logic.
type Client interface {
	CallTool(ctx context.Context, serverRef MCPServerRef, toolName string, args map[string]any) (any, error)
}

type mcpStep struct {
	deps   runtime.Deps
	cfg    MCPConfig
	client Client
}

func newMCPStep(deps runtime.Deps, raw map[string]any) (runtime.Step, error) {
	var cfg MCPConfig
	if err := runtime.DecodeStepConfig(raw, &cfg); err != nil {
		return nil, runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}
	return &mcpStep{deps: deps, cfg: cfg, client: &httpMCPClient{}}, nil
}

func (s *mcpStep) Execute(ctx context.Context, rc *runtime.Context) error {
	runCtx := ctx
	if s.cfg.TimeoutSec > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSec)*time.Second)
		defer cancel()
	}

	result, err := s.client.CallTool(runCtx, s.cfg.Server, s.cfg.ToolName, s.cfg.Arguments)
	if err != nil {
		return runtime.NewFlowError(
			runtime.KindMCPError,
			fmt.Sprintf("tool %q on %s: %v", s.cfg.ToolName, s.cfg.Server.URL, err),
			err,
		)
	}

	rc.Set(s.cfg.OutputKey, result)
	return nil
}

// httpMCPClient is the default HTTP-transport Client implementation: it
// posts a JSON-RPC style tool-call envelope to server.URL and decodes the
// JSON result. Negotiation of tool schemas and the stdio transport variant
// are out of scope; this is the minimal HTTP leg needed to exercise the
// mcp step end to end.
type httpMCPClient struct{}

type toolCallRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func (c *httpMCPClient) CallTool(ctx context.Context, server MCPServerRef, toolName string, args map[string]any) (any, error) {
	if server.URL == "" {
		return nil, fmt.Errorf("mcp server has no url (stdio transport not supported by this client)")
	}

	client := resty.New()
	req := client.R().SetContext(ctx).SetBody(toolCallRequest{Tool: toolName, Arguments: args})
	for k, v := range server.Headers {
		req.SetHeader(k, v)
	}

	resp, err := req.Post(server.URL)
	if err != nil {
		return nil, fmt.Errorf("request to %s: %w", server.URL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("mcp server returned status %d: %s", resp.StatusCode(), resp.String())
	}

	var result any
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode mcp response: %w", err)
	}
	return result, nil
}
