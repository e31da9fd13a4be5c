package tools

import (
	"github.com/leadflowhq/leadflow/pkg/llms"
	"github.com/leadflowhq/leadflow/pkg/registry"
)

// Registry holds the tools available to one agent.
type Registry struct {
	*registry.NamedRegistry[Tool]
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{NamedRegistry: registry.New[Tool]()}
}

// Add registers each tool under its declared name.
func (r *Registry) Add(toolList ...Tool) error {
	for _, tool := range toolList {
		if err := r.Register(tool.Info().Name, tool); err != nil {
			return err
		}
	}
	return nil
}

// Definitions projects the registered tools into the completion request
// schema format.
func (r *Registry) Definitions() []llms.ToolDefinition {
	toolList := r.List()
	definitions := make([]llms.ToolDefinition, 0, len(toolList))
	for _, tool := range toolList {
		info := tool.Info()
		definitions = append(definitions, llms.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.Parameters,
		})
	}
	return definitions
}
