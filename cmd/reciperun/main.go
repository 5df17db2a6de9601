// Command reciperun executes a single recipe file against a context seeded
// from --context key=value pairs and the process environment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sflowg/reciperun/runtime"
	"github.com/sflowg/reciperun/runtime/llm"
	"github.com/sflowg/reciperun/runtime/steps"
	"github.com/spf13/cobra"
)

var contextPairs []string

func main() {
	root := &cobra.Command{
		Use:   "reciperun <recipe-path>",
		Short: "Execute a recipe file",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	root.Flags().StringArrayVar(&contextPairs, "context", nil, "context artifact as key=value, repeatable")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	artifacts, err := parseContextPairs(contextPairs)
	if err != nil {
		return err
	}

	rc := runtime.NewContext(artifacts, loadConfigFromEnv())

	registry := runtime.NewRegistry()
	steps.RegisterAll(registry)
	steps.Facade = llm.NewFacade(defaultProviders())

	renderer := runtime.NewRenderer()
	exec := runtime.NewExecutor(logger, registry, renderer)

	if err := exec.Execute(context.Background(), args[0], rc); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func parseContextPairs(pairs []string) (map[string]any, error) {
	out := map[string]any{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --context value %q, expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

// loadConfigFromEnv surfaces the provider endpoint/key environment variables
// a recipe's llm_generate/mcp steps may need. Concrete .env loading and
// broader config file support are out of scope here.
func loadConfigFromEnv() map[string]any {
	config := map[string]any{}
	for _, provider := range []string{"OPENAI", "AZURE", "ANTHROPIC", "OLLAMA"} {
		if key := os.Getenv(provider + "_API_KEY"); key != "" {
			config[strings.ToLower(provider)+"_api_key"] = key
		}
		if url := os.Getenv(provider + "_BASE_URL"); url != "" {
			config[strings.ToLower(provider)+"_base_url"] = url
		}
	}
	return config
}

func defaultProviders() map[string]llm.ProviderClient {
	providers := map[string]llm.ProviderClient{}
	for provider, envPrefix := range map[string]string{
		"openai":    "OPENAI",
		"azure":     "AZURE",
		"anthropic": "ANTHROPIC",
		"ollama":    "OLLAMA",
	} {
		baseURL := os.Getenv(envPrefix + "_BASE_URL")
		if baseURL == "" {
			continue
		}
		providers[provider] = llm.NewHTTPProviderClient(baseURL, os.Getenv(envPrefix+"_API_KEY"), 60*time.Second)
	}
	return providers
}
