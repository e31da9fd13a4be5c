package agent

import "github.com/leadflowhq/leadflow/pkg/tools"

// Emitter is the runtime's view of the client-facing event stream. The
// server package implements it over SSE. An error from any method means
// the client is gone; the runtime stops emitting but treats it as a normal
// early termination.
type Emitter interface {
	// EmitContent forwards one assistant text delta.
	EmitContent(delta string) error

	// EmitToolResult reports one tool execution outcome.
	EmitToolResult(result tools.ToolResult) error

	// EmitComplete marks a clean end of turn.
	EmitComplete() error

	// EmitError reports a turn-fatal failure.
	EmitError(message string) error
}
