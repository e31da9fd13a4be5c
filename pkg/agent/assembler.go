package agent

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/leadflowhq/leadflow/pkg/llms"
)

// Invocation is a fully reconstructed tool call, ready for dispatch. Args
// is only populated once the raw argument string parsed as JSON.
type Invocation struct {
	Index int
	ID    string
	Name  string
	Args  map[string]any
}

// slot accumulates one tool call's fragments. Name and argument fragments
// for the same slot index concatenate across stream chunks.
type slot struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// Assembler reconstructs tool calls and assistant text from raw stream
// deltas. Text deltas are additionally returned to the caller for live
// forwarding; nothing assembled here is committed until Finalize.
type Assembler struct {
	text     strings.Builder
	slots    map[int]*slot
	order    []int
	finished bool
	reason   string
	tokens   int
}

// NewAssembler creates an empty accumulator for one turn.
func NewAssembler() *Assembler {
	return &Assembler{slots: make(map[int]*slot)}
}

// Feed consumes one stream event. Done and error events only record state;
// the caller decides what ends the loop.
func (a *Assembler) Feed(event llms.StreamEvent) {
	switch event.Type {
	case llms.StreamEventText:
		a.text.WriteString(event.Text)

	case llms.StreamEventToolCallDelta:
		s, ok := a.slots[event.Index]
		if !ok {
			s = &slot{}
			a.slots[event.Index] = s
			a.order = append(a.order, event.Index)
		}
		if event.ID != "" {
			s.id = event.ID
		}
		// Continuation fragments often carry an empty name; appending
		// preserves an already-known name.
		s.name.WriteString(event.Name)
		s.args.WriteString(event.Arguments)

	case llms.StreamEventDone:
		a.finished = true
		a.reason = event.FinishReason
		a.tokens = event.Tokens
	}
}

// Text returns the assistant text accumulated so far.
func (a *Assembler) Text() string {
	return a.text.String()
}

// Finished reports whether a turn-finished event was seen.
func (a *Assembler) Finished() bool {
	return a.finished
}

// FinishReason returns the backend's stated reason for ending the turn.
func (a *Assembler) FinishReason() string {
	return a.reason
}

// Tokens returns the total token usage reported on the turn-finished
// event, zero if the backend never reported usage.
func (a *Assembler) Tokens() int {
	return a.tokens
}

// Finalize parses every accumulated slot in the order the slots were first
// opened. A slot whose arguments fail to parse as JSON is dropped with a
// warning; it never aborts the other invocations. An empty argument string
// parses as an empty map.
func (a *Assembler) Finalize() []Invocation {
	invocations := make([]Invocation, 0, len(a.order))
	for _, index := range a.order {
		s := a.slots[index]

		args := make(map[string]any)
		if raw := s.args.String(); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				slog.Warn("Dropping tool invocation with malformed arguments",
					"tool", s.name.String(),
					"slot", index,
					"error", err)
				continue
			}
		}

		invocations = append(invocations, Invocation{
			Index: index,
			ID:    s.id,
			Name:  s.name.String(),
			Args:  args,
		})
	}
	return invocations
}
