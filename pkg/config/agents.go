package config

import "fmt"

// AgentConfig overrides per-agent runtime settings. The agent set itself is
// built in; config adjusts prompts and context bounds.
type AgentConfig struct {
	// SystemPrompt replaces the built-in prompt when set.
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`

	// HistoryWindow is the number of transcript entries included in the
	// model context.
	HistoryWindow int `yaml:"history_window,omitempty" json:"history_window,omitempty"`

	// TokenBudget optionally bounds the context by token count after the
	// window bound is applied. Zero disables the token bound.
	TokenBudget int `yaml:"token_budget,omitempty" json:"token_budget,omitempty"`
}

// SetDefaults applies default values.
func (c *AgentConfig) SetDefaults() {
	if c.HistoryWindow == 0 {
		c.HistoryWindow = 20
	}
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	if c == nil {
		return nil
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("history_window must be non-negative")
	}
	if c.TokenBudget < 0 {
		return fmt.Errorf("token_budget must be non-negative")
	}
	return nil
}
