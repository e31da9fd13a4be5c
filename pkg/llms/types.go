// Package llms implements the completion backend client. The streaming path
// emits raw stream events; reconstruction of tool calls happens downstream
// in the agent runtime.
package llms

import "context"

// Message is a role-tagged message sent to the completion backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles understood by the backend and the transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolDefinition describes a callable tool advertised to the model.
// Parameters is a JSON-schema-shaped description of the arguments.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// StreamEventType discriminates StreamEvent.
type StreamEventType string

const (
	// StreamEventText carries a text fragment.
	StreamEventText StreamEventType = "text"

	// StreamEventToolCallDelta carries a partial tool invocation fragment
	// tagged with its slot index. Name and Arguments fragments accumulate
	// across events with the same index; neither is complete on its own.
	StreamEventToolCallDelta StreamEventType = "tool_call_delta"

	// StreamEventDone signals turn completion.
	StreamEventDone StreamEventType = "done"

	// StreamEventError signals a backend failure mid-stream.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is the discriminated union produced by GenerateStreaming.
// Events are only valid within the request that produced them and are
// never persisted.
type StreamEvent struct {
	Type StreamEventType

	// Text fragment, for StreamEventText.
	Text string

	// Tool-call delta fields, for StreamEventToolCallDelta.
	Index     int
	ID        string
	Name      string
	Arguments string

	// FinishReason and Tokens, for StreamEventDone.
	FinishReason string
	Tokens       int

	// Err, for StreamEventError.
	Err error
}

// RawToolCall is a complete (non-streamed) tool invocation as returned by
// the backend's non-streaming API. Arguments is an unparsed JSON string.
type RawToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Provider is the completion backend capability. One instance is
// constructed at process start and passed by reference to every call site.
type Provider interface {
	// Generate performs a blocking completion and returns the assistant
	// text, any complete tool calls, and total token usage.
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []RawToolCall, int, error)

	// GenerateStreaming starts a streaming completion. The returned
	// channel is closed after a StreamEventDone or StreamEventError.
	GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamEvent, error)

	// ModelName reports the configured model.
	ModelName() string
}
