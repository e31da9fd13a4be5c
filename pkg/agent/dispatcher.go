package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/leadflowhq/leadflow/pkg/conversation"
	"github.com/leadflowhq/leadflow/pkg/observability"
	"github.com/leadflowhq/leadflow/pkg/tools"
)

// Dispatcher executes finalized tool invocations sequentially and records
// each outcome in the transcript. One handler's failure never aborts the
// remaining invocations.
type Dispatcher struct {
	store conversation.Store
}

// NewDispatcher creates a dispatcher writing outcomes to the given store.
func NewDispatcher(store conversation.Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// Dispatch runs each invocation's handler in array order. Handlers may
// depend on earlier ones (save an entity before marking the conversation
// completed), so there is no concurrency here. Unknown tool names are
// skipped. Every executed invocation produces a system transcript entry
// and, when the emitter is still writable, a tool_result frame.
func (d *Dispatcher) Dispatch(ctx context.Context, def *Definition, session tools.Session, invocations []Invocation, emitter Emitter) {
	owner := conversation.Owner{UserID: session.UserID, TeamID: session.TeamID}

	tracer := observability.GetTracer("leadflow.agent")
	ctx, span := tracer.Start(ctx, observability.SpanToolDispatch,
		trace.WithAttributes(
			attribute.String(observability.AttrAgentType, def.Type),
			attribute.String(observability.AttrConversationID, session.ConversationID),
			attribute.Int("tool.invocations", len(invocations)),
		),
	)
	defer span.End()

	for _, invocation := range invocations {
		tool, ok := def.Tools.Get(invocation.Name)
		if !ok {
			slog.Debug("Ignoring unknown tool", "tool", invocation.Name, "agent", def.Type)
			continue
		}

		startTime := time.Now()
		result, err := tool.Execute(ctx, session, invocation.Args)
		observability.GetGlobalMetrics().RecordToolExecution(ctx, invocation.Name, time.Since(startTime), err)

		if err != nil {
			result = tools.ToolResult{
				Success:  false,
				ToolName: invocation.Name,
				Error:    err.Error(),
			}
		}
		if result.ToolName == "" {
			result.ToolName = invocation.Name
		}

		entry := conversation.Entry{
			Role:     conversation.RoleSystem,
			Content:  result.Content,
			Metadata: result.Metadata,
		}
		if !result.Success {
			entry.Content = fmt.Sprintf("%s_failed", invocation.Name)
			if entry.Metadata == nil {
				entry.Metadata = map[string]any{}
			}
			entry.Metadata["error"] = result.Error
			slog.Warn("Tool execution failed",
				"tool", invocation.Name,
				"conversation", session.ConversationID,
				"error", result.Error)
		}

		if _, appendErr := d.store.AppendMessage(ctx, session.ConversationID, owner, entry); appendErr != nil {
			slog.Error("Failed to record tool outcome",
				"tool", invocation.Name,
				"conversation", session.ConversationID,
				"error", appendErr)
		}

		if emitErr := emitter.EmitToolResult(result); emitErr != nil {
			slog.Debug("Client gone during tool result emission", "conversation", session.ConversationID)
		}
	}
}
