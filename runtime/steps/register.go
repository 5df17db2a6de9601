// Package steps provides the concrete step types: read_files, write_files,
// set_context, shell, mcp, llm_generate, execute_recipe, conditional, loop,
// and parallel. Each file registers its factory with defaultRegistry at
// package init time; call RegisterAll to wire them into a runtime.Registry.
package steps

import "github.com/sflowg/reciperun/runtime"

type stepRegistration struct {
	stepType string
	factory  runtime.Factory
}

var defaultRegistryEntries []stepRegistration

type registryBuilder struct{}

var defaultRegistry = registryBuilder{}

func (registryBuilder) register(stepType string, factory runtime.Factory) {
	defaultRegistryEntries = append(defaultRegistryEntries, stepRegistration{stepType: stepType, factory: factory})
}

// RegisterAll wires every built-in step type into reg.
func RegisterAll(reg *runtime.Registry) {
	for _, entry := range defaultRegistryEntries {
		reg.Register(entry.stepType, entry.factory)
	}
}
