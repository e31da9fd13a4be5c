package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/pkg/llms"
)

func text(s string) llms.StreamEvent {
	return llms.StreamEvent{Type: llms.StreamEventText, Text: s}
}

func toolDelta(index int, id, name, args string) llms.StreamEvent {
	return llms.StreamEvent{
		Type:      llms.StreamEventToolCallDelta,
		Index:     index,
		ID:        id,
		Name:      name,
		Arguments: args,
	}
}

func done(reason string) llms.StreamEvent {
	return llms.StreamEvent{Type: llms.StreamEventDone, FinishReason: reason}
}

func feedAll(a *Assembler, events ...llms.StreamEvent) {
	for _, e := range events {
		a.Feed(e)
	}
}

func TestAssemblerAccumulatesText(t *testing.T) {
	a := NewAssembler()
	feedAll(a, text("Hello, "), text("world"), done("stop"))

	assert.Equal(t, "Hello, world", a.Text())
	assert.True(t, a.Finished())
	assert.Equal(t, "stop", a.FinishReason())
	assert.Empty(t, a.Finalize())
}

func TestAssemblerReconstructsSplitToolCall(t *testing.T) {
	a := NewAssembler()
	feedAll(a,
		toolDelta(0, "call_1", "save_", ""),
		toolDelta(0, "", "entity", `{"na`),
		toolDelta(0, "", "", `me":"Acme"}`),
		done("tool_calls"),
	)

	invocations := a.Finalize()
	require.Len(t, invocations, 1)
	assert.Equal(t, "save_entity", invocations[0].Name)
	assert.Equal(t, "call_1", invocations[0].ID)
	assert.Equal(t, map[string]any{"name": "Acme"}, invocations[0].Args)
}

func TestAssemblerEmptyNameFragmentsKeepKnownName(t *testing.T) {
	a := NewAssembler()
	feedAll(a,
		toolDelta(0, "call_1", "save_lead", `{`),
		toolDelta(0, "", "", `"name":"Jane"}`),
		done("tool_calls"),
	)

	invocations := a.Finalize()
	require.Len(t, invocations, 1)
	assert.Equal(t, "save_lead", invocations[0].Name)
}

func TestAssemblerFinalizesInSlotOpenOrder(t *testing.T) {
	// Fragments for slot 1 interleave with slot 0, and slot 1 opens second;
	// the finalized order follows first-open order regardless.
	a := NewAssembler()
	feedAll(a,
		toolDelta(0, "call_a", "allocate_budget", `{"total"`),
		toolDelta(1, "call_b", "save_campaign", `{}`),
		toolDelta(0, "", "", `:5000}`),
		done("tool_calls"),
	)

	invocations := a.Finalize()
	require.Len(t, invocations, 2)
	assert.Equal(t, "allocate_budget", invocations[0].Name)
	assert.Equal(t, "save_campaign", invocations[1].Name)
	assert.Equal(t, map[string]any{"total": float64(5000)}, invocations[0].Args)
}

func TestAssemblerInterleavedTextAndToolFragments(t *testing.T) {
	a := NewAssembler()
	feedAll(a,
		text("Thinking"),
		toolDelta(0, "call_1", "qualify_lead", `{"answers"`),
		text(" about it"),
		toolDelta(0, "", "", `:{}}`),
		done("tool_calls"),
	)

	assert.Equal(t, "Thinking about it", a.Text())
	invocations := a.Finalize()
	require.Len(t, invocations, 1)
	assert.Equal(t, "qualify_lead", invocations[0].Name)
}

func TestAssemblerDropsMalformedArguments(t *testing.T) {
	a := NewAssembler()
	feedAll(a,
		toolDelta(0, "call_bad", "save_product", `{"name": truncated`),
		toolDelta(1, "call_ok", "save_lead", `{"name":"Jane"}`),
		done("tool_calls"),
	)

	invocations := a.Finalize()
	require.Len(t, invocations, 1)
	assert.Equal(t, "save_lead", invocations[0].Name)
}

func TestAssemblerEmptyArgumentsParseAsEmptyMap(t *testing.T) {
	a := NewAssembler()
	feedAll(a, toolDelta(0, "call_1", "fetch_campaign_stats", ""), done("tool_calls"))

	invocations := a.Finalize()
	require.Len(t, invocations, 1)
	assert.NotNil(t, invocations[0].Args)
	assert.Empty(t, invocations[0].Args)
}

func TestAssemblerNotFinishedWithoutDone(t *testing.T) {
	a := NewAssembler()
	feedAll(a, text("partial"))

	assert.False(t, a.Finished())
}

func TestAssemblerRetainsReportedTokenUsage(t *testing.T) {
	a := NewAssembler()
	feedAll(a, text("hi"), llms.StreamEvent{
		Type:         llms.StreamEventDone,
		FinishReason: "stop",
		Tokens:       42,
	})

	assert.True(t, a.Finished())
	assert.Equal(t, 42, a.Tokens())
}
