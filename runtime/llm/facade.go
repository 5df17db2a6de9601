// Package llm implements the LLM Dispatch Facade: it resolves a model id to
// a provider client, performs the call, and shapes the result according to
// the requested output type. Concrete provider authentication and wire
// formats are intentionally thin — only enough to exercise dispatch,
// transport, and schema validation, which is what is in scope here.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// OutputKind classifies what shape Generate should return.
type OutputKind int

const (
	OutputText OutputKind = iota
	OutputFiles
	OutputObject
	OutputList
)

// OutputSpec describes the requested output shape. Schema is only
// meaningful for OutputObject/OutputList.
type OutputSpec struct {
	Kind   OutputKind
	Schema map[string]any
}

// FileSpec mirrors the shared FileSpec artifact shape produced for
// output_format="files".
type FileSpec struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// MCPServerConfig is the shape of one entry in a step's mcp_servers list.
type MCPServerConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ProviderClient is the seam between the facade and a concrete LLM backend.
// Implementations own their own authentication and wire format; the facade
// only needs raw text back, which it then reshapes/validates.
type ProviderClient interface {
	Complete(ctx context.Context, model, prompt string, maxTokens *int, mcpServers []MCPServerConfig) (string, error)
}

// Facade dispatches generate calls to the provider named in a model id.
type Facade struct {
	providers map[string]ProviderClient
}

// NewFacade builds a Facade with the given provider clients keyed by
// provider name ("openai", "azure", "anthropic", "ollama").
func NewFacade(providers map[string]ProviderClient) *Facade {
	return &Facade{providers: providers}
}

// ParseModelID splits "<provider>/<model>" or "<provider>/<model>/<deployment>".
func ParseModelID(modelID string) (provider, model, deployment string, err error) {
	parts := strings.SplitN(modelID, "/", 3)
	if len(parts) < 2 {
		return "", "", "", fmt.Errorf("model id %q must be <provider>/<model>[/<deployment>]", modelID)
	}
	provider = parts[0]
	model = parts[1]
	if len(parts) == 3 {
		deployment = parts[2]
	}
	switch provider {
	case "openai", "azure", "anthropic", "ollama":
	default:
		return "", "", "", fmt.Errorf("unknown provider %q", provider)
	}
	return provider, model, deployment, nil
}

// Generate dispatches prompt to the provider named by modelID and shapes the
// result according to output.
func (f *Facade) Generate(
	ctx context.Context,
	prompt string,
	modelID string,
	output OutputSpec,
	maxTokens *int,
	mcpServers []MCPServerConfig,
) (any, error) {
	provider, model, deployment, err := ParseModelID(modelID)
	if err != nil {
		return nil, err
	}

	client, ok := f.providers[provider]
	if !ok {
		return nil, fmt.Errorf("no client registered for provider %q", provider)
	}

	target := model
	if deployment != "" {
		target = model + "/" + deployment
	}

	raw, err := client.Complete(ctx, target, prompt, maxTokens, mcpServers)
	if err != nil {
		return nil, fmt.Errorf("provider %q call failed: %w", provider, err)
	}

	switch output.Kind {
	case OutputText:
		return raw, nil

	case OutputFiles:
		var files []FileSpec
		if err := json.Unmarshal([]byte(raw), &files); err != nil {
			return nil, fmt.Errorf("decode files output: %w", err)
		}
		return files, nil

	case OutputObject:
		return validateAndDecode(raw, output.Schema)

	case OutputList:
		wrapped := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"items": map[string]any{
					"type":  "array",
					"items": output.Schema,
				},
			},
			"required": []string{"items"},
		}
		decoded, err := validateAndDecode(raw, wrapped)
		if err != nil {
			return nil, err
		}
		m, ok := decoded.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("list output decoded to %T, expected object wrapper", decoded)
		}
		return m["items"], nil

	default:
		return nil, fmt.Errorf("unsupported output kind %v", output.Kind)
	}
}

func validateAndDecode(raw string, schema map[string]any) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("decode structured output: %w", err)
	}

	if schema != nil {
		compiler := jsonschema.NewCompiler()
		schemaBytes, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("marshal output schema: %w", err)
		}
		if err := compiler.AddResource("schema.json", strings.NewReader(string(schemaBytes))); err != nil {
			return nil, fmt.Errorf("load output schema: %w", err)
		}
		compiled, err := compiler.Compile("schema.json")
		if err != nil {
			return nil, fmt.Errorf("compile output schema: %w", err)
		}
		if err := compiled.Validate(value); err != nil {
			return nil, fmt.Errorf("structured output failed schema validation: %w", err)
		}
	}

	return value, nil
}

// HTTPProviderClient is a reference ProviderClient using a JSON completion
// endpoint over resty. Concrete request/response wire formats vary by
// provider in production; this is the minimal shape needed to exercise
// transport and dispatch.
type HTTPProviderClient struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

// NewHTTPProviderClient builds a client bound to baseURL, authenticating
// with apiKey via a bearer Authorization header.
func NewHTTPProviderClient(baseURL, apiKey string, timeout time.Duration) *HTTPProviderClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(timeout)
	return &HTTPProviderClient{client: client, baseURL: baseURL, apiKey: apiKey}
}

type completionRequest struct {
	Model      string            `json:"model"`
	Prompt     string            `json:"prompt"`
	MaxTokens  *int              `json:"max_tokens,omitempty"`
	MCPServers []MCPServerConfig `json:"mcp_servers,omitempty"`
}

type completionResponse struct {
	Output string `json:"output"`
}

// Complete implements ProviderClient.
func (c *HTTPProviderClient) Complete(ctx context.Context, model, prompt string, maxTokens *int, mcpServers []MCPServerConfig) (string, error) {
	var result completionResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(completionRequest{Model: model, Prompt: prompt, MaxTokens: maxTokens, MCPServers: mcpServers}).
		SetResult(&result).
		Post("/v1/completions")
	if err != nil {
		return "", fmt.Errorf("request to %s: %w", c.baseURL, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("provider returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Output, nil
}
