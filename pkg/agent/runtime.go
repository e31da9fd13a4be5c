package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leadflowhq/leadflow/pkg/conversation"
	"github.com/leadflowhq/leadflow/pkg/llms"
	"github.com/leadflowhq/leadflow/pkg/observability"
	"github.com/leadflowhq/leadflow/pkg/tools"
)

// Runtime drives one conversational turn: load context, stream the
// completion, reconstruct tool calls, dispatch them, and persist the
// result. Every agent shares this runtime and differs only in its
// Definition.
//
// Turns for the same conversation must be serialized by the caller; the
// transcript's read-before-write idempotence checks are not protected by a
// transactional lock.
type Runtime struct {
	provider   llms.Provider
	store      conversation.Store
	dispatcher *Dispatcher
}

// NewRuntime creates a runtime on an injected provider and store.
func NewRuntime(provider llms.Provider, store conversation.Store) *Runtime {
	return &Runtime{
		provider:   provider,
		store:      store,
		dispatcher: NewDispatcher(store),
	}
}

// StartConversation opens a new conversation for an agent.
func (r *Runtime) StartConversation(ctx context.Context, def *Definition, owner conversation.Owner, contextRef, contextKind string) (*conversation.Conversation, error) {
	return r.store.CreateConversation(ctx, owner, def.Type, contextRef, contextKind)
}

// ProcessTurn handles one user message end to end. Text deltas are
// forwarded to the emitter as they arrive, but the assistant entry and any
// tool side effects are only persisted after the backend signals turn
// completion: an abandoned stream leaves nothing behind but the user
// message.
//
// A client disconnect (emitter write failure or context cancellation) is a
// normal early termination, not an error.
func (r *Runtime) ProcessTurn(ctx context.Context, def *Definition, owner conversation.Owner, conversationID, userMessage string, emitter Emitter) error {
	startTime := time.Now()

	tracer := observability.GetTracer("leadflow.agent")
	ctx, span := tracer.Start(ctx, observability.SpanTurn,
		trace.WithAttributes(
			attribute.String(observability.AttrAgentType, def.Type),
			attribute.String(observability.AttrConversationID, conversationID),
		),
	)
	defer span.End()

	conv, err := r.store.AppendMessage(ctx, conversationID, owner, conversation.Entry{
		Role:    conversation.RoleUser,
		Content: userMessage,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append user message")
		return fmt.Errorf("failed to record user message: %w", err)
	}

	messages := BuildContext(def.SystemPrompt, conv.Transcript, def.HistoryWindow, def.TokenBudget)

	events, err := r.provider.GenerateStreaming(ctx, messages, def.Tools.Definitions())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start stream")
		observability.GetGlobalMetrics().RecordTurn(ctx, def.Type, time.Since(startTime), 0, err)
		if emitErr := emitter.EmitError(err.Error()); emitErr != nil {
			slog.Debug("Client gone before error emission", "conversation", conversationID)
		}
		return fmt.Errorf("failed to start completion stream: %w", err)
	}

	assembler := NewAssembler()
	clientGone := false

	for event := range events {
		if event.Type == llms.StreamEventError {
			span.RecordError(event.Err)
			span.SetStatus(codes.Error, "stream error")
			observability.GetGlobalMetrics().RecordTurn(ctx, def.Type, time.Since(startTime), 0, event.Err)
			if !clientGone {
				if emitErr := emitter.EmitError(event.Err.Error()); emitErr != nil {
					slog.Debug("Client gone before error emission", "conversation", conversationID)
				}
			}
			return fmt.Errorf("completion stream failed: %w", event.Err)
		}

		assembler.Feed(event)

		if event.Type == llms.StreamEventText {
			if emitErr := emitter.EmitContent(event.Text); emitErr != nil {
				clientGone = true
				slog.Info("Client disconnected mid-stream, abandoning turn",
					"conversation", conversationID)
				break
			}
		}
	}

	if !assembler.Finished() {
		// Abandoned before turn-finished: persist nothing beyond the user
		// message so the transcript never carries unconfirmed text.
		observability.GetGlobalMetrics().RecordTurn(ctx, def.Type, time.Since(startTime), 0, nil)
		span.SetStatus(codes.Ok, "abandoned")
		return nil
	}

	session := tools.Session{
		ConversationID: conversationID,
		UserID:         owner.UserID,
		TeamID:         owner.TeamID,
	}
	r.dispatcher.Dispatch(ctx, def, session, assembler.Finalize(), emitter)

	if text := assembler.Text(); text != "" {
		if _, err := r.store.AppendMessage(ctx, conversationID, owner, conversation.Entry{
			Role:    conversation.RoleAssistant,
			Content: text,
		}); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "append assistant message")
			return fmt.Errorf("failed to record assistant message: %w", err)
		}
	}

	if !clientGone {
		if emitErr := emitter.EmitComplete(); emitErr != nil {
			slog.Debug("Client gone before completion frame", "conversation", conversationID)
		}
	}

	span.SetAttributes(
		attribute.String("turn.finish_reason", assembler.FinishReason()),
		attribute.Int("turn.tokens", assembler.Tokens()),
	)
	span.SetStatus(codes.Ok, "completed")
	observability.GetGlobalMetrics().RecordTurn(ctx, def.Type, time.Since(startTime), assembler.Tokens(), nil)

	return nil
}
