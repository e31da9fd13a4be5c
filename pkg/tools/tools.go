package tools

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Session identifies the conversation a tool executes within. Handlers use
// it for ownership scoping on their persistence writes.
type Session struct {
	ConversationID string
	UserID         string
	TeamID         string
}

// ToolInfo describes a tool to the model. Parameters is a JSON Schema
// object in the completion API's function-parameters format.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolResult is the outcome of one tool execution. Success false with a
// populated Error means the handler failed; the turn continues either way.
type ToolResult struct {
	Success  bool           `json:"success"`
	Content  string         `json:"content,omitempty"`
	Error    string         `json:"error,omitempty"`
	ToolName string         `json:"tool_name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Tool is one registered side-effecting handler.
type Tool interface {
	Info() ToolInfo
	Execute(ctx context.Context, session Session, args map[string]any) (ToolResult, error)
}

// DecodeArgs converts loosely-typed tool arguments into a typed struct,
// matching fields by json tag. Numbers arriving as float64 are coerced to
// the target type.
func DecodeArgs(args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
