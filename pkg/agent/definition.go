package agent

import (
	"fmt"

	"github.com/leadflowhq/leadflow/pkg/conversation"
	"github.com/leadflowhq/leadflow/pkg/registry"
	"github.com/leadflowhq/leadflow/pkg/tools"
)

// Sentinel describes a system transcript entry an agent's tool handlers
// write after a side effect. The status endpoint scans for these to report
// what a conversation has saved.
type Sentinel struct {
	// Content is the exact system-entry content marking the side effect,
	// e.g. "product_saved".
	Content string

	// IDMetadataKey names the metadata field carrying the created entity's
	// id, e.g. "product_id".
	IDMetadataKey string
}

// Definition configures one agent: its prompt, its tool set, and how its
// side effects appear in the transcript. The runtime is shared; agents
// differ only in their definitions.
type Definition struct {
	// Type is the agent identifier used in routes and conversations,
	// e.g. "product_definer".
	Type string

	// SystemPrompt is prepended to every context window.
	SystemPrompt string

	// HistoryWindow is the maximum number of transcript entries included in
	// the context window.
	HistoryWindow int

	// TokenBudget optionally bounds the context window by token count in
	// addition to entry count. Zero disables the bound.
	TokenBudget int

	// Tools holds the agent's registered tool handlers.
	Tools *tools.Registry

	// Sentinels lists the side-effect markers this agent's handlers write.
	Sentinels []Sentinel
}

// Validate checks a definition is complete enough to serve.
func (d *Definition) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("agent type is required")
	}
	if d.SystemPrompt == "" {
		return fmt.Errorf("agent %s: system prompt is required", d.Type)
	}
	if d.HistoryWindow <= 0 {
		return fmt.Errorf("agent %s: history window must be positive", d.Type)
	}
	if d.Tools == nil {
		return fmt.Errorf("agent %s: tool registry is required", d.Type)
	}
	return nil
}

// Registry holds the agent definitions served by one process.
type Registry struct {
	*registry.NamedRegistry[*Definition]
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{NamedRegistry: registry.New[*Definition]()}
}

// Add validates and registers each definition under its type.
func (r *Registry) Add(definitions ...*Definition) error {
	for _, def := range definitions {
		if err := def.Validate(); err != nil {
			return err
		}
		if err := r.Register(def.Type, def); err != nil {
			return err
		}
	}
	return nil
}

// Summarize scans a transcript for the definition's sentinels and builds
// the status payload: a saved flag per sentinel plus the recorded entity
// ids.
func Summarize(def *Definition, entries []conversation.Entry) map[string]any {
	summary := make(map[string]any, len(def.Sentinels)*2)
	for _, sentinel := range def.Sentinels {
		saved := false
		var id any
		for _, entry := range entries {
			if entry.Role != conversation.RoleSystem || entry.Content != sentinel.Content {
				continue
			}
			saved = true
			if sentinel.IDMetadataKey != "" {
				if v, ok := entry.Metadata[sentinel.IDMetadataKey]; ok {
					id = v
				}
			}
		}
		summary[sentinel.Content] = saved
		if sentinel.IDMetadataKey != "" && id != nil {
			summary[sentinel.IDMetadataKey] = id
		}
	}
	return summary
}
