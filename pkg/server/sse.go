package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/leadflowhq/leadflow/pkg/tools"
)

// SSE event names sent to clients.
const (
	EventContent    = "content"
	EventToolResult = "tool_result"
	EventComplete   = "complete"
	EventError      = "error"
)

// ErrEmitterClosed is returned for any write after the stream ended,
// including writes after a client disconnect.
var ErrEmitterClosed = fmt.Errorf("sse: stream closed")

// SSEEmitter owns one HTTP response for the duration of a turn. It moves
// through open → streaming → closed; once closed (explicitly or by a
// write failure), every further write returns ErrEmitterClosed instead of
// touching the response.
type SSEEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool

	heartbeatStop chan struct{}
}

// NewSSEEmitter wraps a response writer. The writer must support flushing;
// callers check this before sending any headers.
func NewSSEEmitter(w http.ResponseWriter) (*SSEEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer does not support streaming")
	}
	return &SSEEmitter{w: w, flusher: flusher}, nil
}

// Open sends the SSE headers and an initial comment frame. Nothing may be
// written to the response before Open; validation failures must be rejected
// with plain HTTP statuses first.
func (e *SSEEmitter) Open() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.w.Header().Set("Content-Type", "text/event-stream")
	e.w.Header().Set("Cache-Control", "no-cache")
	e.w.Header().Set("Connection", "keep-alive")
	e.w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	fmt.Fprint(e.w, ": connected\n\n")
	e.flusher.Flush()
}

// StartHeartbeat emits comment frames on the given interval until Close.
// Heartbeats carry no payload; they only defeat idle-connection timeouts in
// intermediary proxies.
func (e *SSEEmitter) StartHeartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}

	e.mu.Lock()
	if e.closed || e.heartbeatStop != nil {
		e.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	e.heartbeatStop = stop
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.mu.Lock()
				if e.closed {
					e.mu.Unlock()
					return
				}
				_, err := fmt.Fprint(e.w, ": heartbeat\n\n")
				if err == nil {
					e.flusher.Flush()
				} else {
					e.closed = true
				}
				e.mu.Unlock()
			}
		}
	}()
}

// Emit writes one `event: <name>\ndata: <json>\n\n` frame. A write failure
// marks the stream closed; the caller sees ErrEmitterClosed from then on.
func (e *SSEEmitter) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: failed to marshal payload: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEmitterClosed
	}

	if _, err := fmt.Fprintf(e.w, "event: %s\n", event); err != nil {
		e.closed = true
		return ErrEmitterClosed
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		e.closed = true
		return ErrEmitterClosed
	}
	e.flusher.Flush()
	return nil
}

// Close stops the heartbeat and marks the stream ended. Idempotent.
func (e *SSEEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.heartbeatStop != nil {
		close(e.heartbeatStop)
		e.heartbeatStop = nil
	}
	e.closed = true
}

// turnEmitter adapts the SSE emitter to the runtime's event interface for
// one conversation.
type turnEmitter struct {
	sse            *SSEEmitter
	conversationID string

	// status reports the conversation's lifecycle status at completion
	// time; tool handlers may have transitioned it during the turn.
	status func() string
}

func (t *turnEmitter) EmitContent(delta string) error {
	return t.sse.Emit(EventContent, map[string]any{"delta": delta})
}

func (t *turnEmitter) EmitToolResult(result tools.ToolResult) error {
	payload := map[string]any{
		"tool":    result.ToolName,
		"success": result.Success,
	}
	if result.Success {
		payload["metadata"] = result.Metadata
	} else {
		payload["error"] = result.Error
	}
	return t.sse.Emit(EventToolResult, payload)
}

func (t *turnEmitter) EmitComplete() error {
	payload := map[string]any{"conversation_id": t.conversationID}
	if t.status != nil {
		payload["status"] = t.status()
	}
	return t.sse.Emit(EventComplete, payload)
}

func (t *turnEmitter) EmitError(message string) error {
	if err := t.sse.Emit(EventError, map[string]any{"message": message}); err != nil {
		slog.Debug("Error frame lost to closed stream", "conversation", t.conversationID)
		return err
	}
	return nil
}
