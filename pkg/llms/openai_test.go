package llms

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/pkg/config"
)

func testLLMConfig(host string) *config.LLMConfig {
	cfg := &config.LLMConfig{
		Model:  "gpt-4o",
		Host:   host,
		APIKey: "test-key",
	}
	cfg.SetDefaults()
	cfg.Host = host
	return cfg
}

func collectEvents(t *testing.T, ch <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for event := range ch {
		events = append(events, event)
	}
	return events
}

func sseServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "hello there",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "save_lead", "arguments": "{\"name\":\"Ada\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(testLLMConfig(server.URL))

	text, calls, tokens, err := provider.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, 15, tokens)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "save_lead", calls[0].Name)
	assert.Equal(t, `{"name":"Ada"}`, calls[0].Arguments)
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "bad key", "type": "invalid_request_error", "code": "invalid_api_key"}}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(testLLMConfig(server.URL))

	_, _, _, err := provider.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.Contains(t, err.Error(), "invalid_api_key")
}

func TestGenerateStreamingTextDeltas(t *testing.T) {
	server := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"total_tokens":12}}`,
	})
	defer server.Close()

	provider := NewOpenAIProvider(testLLMConfig(server.URL))

	ch, err := provider.GenerateStreaming(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 3)
	assert.Equal(t, StreamEvent{Type: StreamEventText, Text: "Hel"}, events[0])
	assert.Equal(t, StreamEvent{Type: StreamEventText, Text: "lo"}, events[1])
	assert.Equal(t, StreamEventDone, events[2].Type)
	assert.Equal(t, "stop", events[2].FinishReason)
	assert.Equal(t, 12, events[2].Tokens)
}

func TestGenerateStreamingForwardsToolCallFragments(t *testing.T) {
	// Name and arguments arrive split across chunks for the same slot, and a
	// second call opens at a different index. The provider must forward every
	// fragment untouched.
	server := sseServer(t, []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"allocate_budget","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"total\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"save_campaign","arguments":"{}"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"5000}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	})
	defer server.Close()

	provider := NewOpenAIProvider(testLLMConfig(server.URL))

	ch, err := provider.GenerateStreaming(context.Background(), []Message{{Role: RoleUser, Content: "plan"}}, nil)
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 5)

	assert.Equal(t, StreamEventToolCallDelta, events[0].Type)
	assert.Equal(t, 0, events[0].Index)
	assert.Equal(t, "call_a", events[0].ID)
	assert.Equal(t, "allocate_budget", events[0].Name)

	assert.Equal(t, 0, events[1].Index)
	assert.Equal(t, "", events[1].Name)
	assert.Equal(t, `{"total":`, events[1].Arguments)

	assert.Equal(t, 1, events[2].Index)
	assert.Equal(t, "call_b", events[2].ID)

	assert.Equal(t, 0, events[3].Index)
	assert.Equal(t, "5000}", events[3].Arguments)

	assert.Equal(t, StreamEventDone, events[4].Type)
	assert.Equal(t, "tool_calls", events[4].FinishReason)
}

func TestGenerateStreamingAPIError(t *testing.T) {
	server := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"par"}}]}`,
		`{"error":{"message":"rate limited mid-stream","type":"rate_limit_error"}}`,
	})
	defer server.Close()

	provider := NewOpenAIProvider(testLLMConfig(server.URL))

	ch, err := provider.GenerateStreaming(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 2)
	assert.Equal(t, StreamEventText, events[0].Type)
	assert.Equal(t, StreamEventError, events[1].Type)
	assert.Contains(t, events[1].Err.Error(), "rate limited mid-stream")
}

func TestGenerateStreamingSkipsMalformedChunks(t *testing.T) {
	server := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"ok"}}]}`,
		`{not json`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	})
	defer server.Close()

	provider := NewOpenAIProvider(testLLMConfig(server.URL))

	ch, err := provider.GenerateStreaming(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 2)
	assert.Equal(t, "ok", events[0].Text)
	assert.Equal(t, StreamEventDone, events[1].Type)
}

func TestBuildRequestIncludesTools(t *testing.T) {
	provider := NewOpenAIProvider(testLLMConfig("http://localhost"))

	request := provider.buildRequest([]Message{{Role: RoleSystem, Content: "be helpful"}}, true, []ToolDefinition{
		{Name: "qualify_lead", Description: "Score a lead", Parameters: map[string]any{"type": "object"}},
	})

	assert.True(t, request.Stream)
	require.Len(t, request.Tools, 1)
	assert.Equal(t, "function", request.Tools[0].Type)
	assert.Equal(t, "qualify_lead", request.Tools[0].Function.Name)
	assert.Equal(t, "auto", request.ToolChoice)
	require.NotNil(t, request.MaxTokens)
	assert.Equal(t, 4096, *request.MaxTokens)
}

func TestBuildRequestStreamUsageOptions(t *testing.T) {
	provider := NewOpenAIProvider(testLLMConfig("http://localhost"))

	streamed := provider.buildRequest([]Message{{Role: RoleUser, Content: "hi"}}, true, nil)
	require.NotNil(t, streamed.StreamOptions)
	assert.True(t, streamed.StreamOptions.IncludeUsage)

	blocking := provider.buildRequest([]Message{{Role: RoleUser, Content: "hi"}}, false, nil)
	assert.Nil(t, blocking.StreamOptions)
}

func TestGenerateStreamingReportsUsageFromFinalChunk(t *testing.T) {
	// The usage chunk arrives after the finish_reason chunk with an empty
	// choices array, the shape include_usage produces.
	server := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"hi"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`{"choices":[],"usage":{"prompt_tokens":30,"completion_tokens":12,"total_tokens":42}}`,
	})
	defer server.Close()

	provider := NewOpenAIProvider(testLLMConfig(server.URL))

	ch, err := provider.GenerateStreaming(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 2)
	assert.Equal(t, StreamEventDone, events[1].Type)
	assert.Equal(t, "stop", events[1].FinishReason)
	assert.Equal(t, 42, events[1].Tokens)
}
