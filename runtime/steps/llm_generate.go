package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sflowg/reciperun/runtime"
	"github.com/sflowg/reciperun/runtime/llm"
)

func init() {
	defaultRegistry.register("llm_generate", newLLMGenerateStep)
}

// LLMGenerateConfig is the decoded config for the llm_generate step.
// OutputFormat is kept as raw JSON since its shape varies: the literal
// strings "text"/"files", an object schema, or a single-element list
// wrapping an object schema.
type LLMGenerateConfig struct {
	Prompt       string                `json:"prompt" validate:"required"`
	Model        string                `json:"model,omitempty"`
	MaxTokens    string                `json:"max_tokens,omitempty"`
	MCPServers   []llm.MCPServerConfig `json:"mcp_servers,omitempty"`
	OutputFormat any                   `json:"output_format" validate:"required"`
	OutputKey    string                `json:"output_key,omitempty"`
}

type llmGenerateStep struct {
	deps   runtime.Deps
	cfg    LLMGenerateConfig
	facade *llm.Facade
}

// Facade is package-level so a CLI entrypoint can swap in real provider
// clients without every step construction needing to thread them through.
var Facade *llm.Facade

func newLLMGenerateStep(deps runtime.Deps, raw map[string]any) (runtime.Step, error) {
	var cfg LLMGenerateConfig
	if err := runtime.DecodeStepConfig(raw, &cfg); err != nil {
		return nil, runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}
	return &llmGenerateStep{deps: deps, cfg: cfg, facade: Facade}, nil
}

func (s *llmGenerateStep) Execute(ctx context.Context, rc *runtime.Context) error {
	if s.facade == nil {
		return runtime.NewFlowError(runtime.KindLLMError, "no LLM facade configured", nil)
	}

	prompt, err := s.deps.Renderer.Render(s.cfg.Prompt, rc)
	if err != nil {
		return err
	}

	model := s.cfg.Model
	if model != "" {
		model, err = s.deps.Renderer.Render(model, rc)
		if err != nil {
			return err
		}
	}

	outputKey := s.cfg.OutputKey
	if outputKey != "" {
		outputKey, err = s.deps.Renderer.Render(outputKey, rc)
		if err != nil {
			return err
		}
	}

	var maxTokens *int
	if s.cfg.MaxTokens != "" {
		rendered, err := s.deps.Renderer.Render(s.cfg.MaxTokens, rc)
		if err != nil {
			return err
		}
		var n int
		if _, scanErr := fmt.Sscanf(rendered, "%d", &n); scanErr == nil {
			maxTokens = &n
		}
	}

	servers := make([]llm.MCPServerConfig, len(s.cfg.MCPServers))
	copy(servers, s.cfg.MCPServers)
	for i := range servers {
		rendered, err := s.deps.Renderer.Render(servers[i].URL, rc)
		if err != nil {
			return err
		}
		servers[i].URL = rendered
	}
	servers = append(servers, configuredMCPServers(rc)...)

	output, err := parseOutputFormat(s.cfg.OutputFormat)
	if err != nil {
		return runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}

	value, err := s.facade.Generate(ctx, prompt, model, output, maxTokens, servers)
	if err != nil {
		return runtime.NewFlowError(runtime.KindLLMError, fmt.Sprintf("model %q: %v", model, err), err)
	}

	if outputKey != "" {
		rc.Set(outputKey, value)
	}
	return nil
}

// parseOutputFormat interprets the config's output_format field: the
// literal strings "text"/"files", a JSON-object schema, or a single-element
// array wrapping an object schema.
func parseOutputFormat(raw any) (llm.OutputSpec, error) {
	switch v := raw.(type) {
	case string:
		switch v {
		case "text":
			return llm.OutputSpec{Kind: llm.OutputText}, nil
		case "files":
			return llm.OutputSpec{Kind: llm.OutputFiles}, nil
		}
		return llm.OutputSpec{}, fmt.Errorf("unrecognized output_format string %q", v)

	case map[string]any:
		return llm.OutputSpec{Kind: llm.OutputObject, Schema: v}, nil

	case []any:
		if len(v) != 1 {
			return llm.OutputSpec{}, fmt.Errorf("output_format list must have exactly one schema element")
		}
		schema, ok := v[0].(map[string]any)
		if !ok {
			return llm.OutputSpec{}, fmt.Errorf("output_format list element must be an object schema")
		}
		return llm.OutputSpec{Kind: llm.OutputList, Schema: schema}, nil

	default:
		return llm.OutputSpec{}, fmt.Errorf("unsupported output_format type %T", raw)
	}
}

// configuredMCPServers reads config().mcp_servers, decoding it into the
// same shape used by step-level mcp_servers entries.
func configuredMCPServers(rc *runtime.Context) []llm.MCPServerConfig {
	raw, ok := rc.Config()["mcp_servers"]
	if !ok {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var servers []llm.MCPServerConfig
	if err := json.Unmarshal(b, &servers); err != nil {
		return nil
	}
	return servers
}
