package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saveLeadArgs struct {
	Name  string  `json:"name" jsonschema:"required,description=Full name of the lead"`
	Email string  `json:"email,omitempty"`
	Score float64 `json:"score,omitempty"`
}

type stubTool struct {
	name string
}

func (t *stubTool) Info() ToolInfo {
	return ToolInfo{
		Name:        t.name,
		Description: "stub",
		Parameters:  MustSchemaFor(&saveLeadArgs{}),
	}
}

func (t *stubTool) Execute(ctx context.Context, session Session, args map[string]any) (ToolResult, error) {
	return ToolResult{Success: true, ToolName: t.name}, nil
}

func TestDecodeArgs(t *testing.T) {
	args := map[string]any{
		"name":  "Jane Doe",
		"email": "jane@example.com",
		"score": float64(85),
	}

	var decoded saveLeadArgs
	require.NoError(t, DecodeArgs(args, &decoded))
	assert.Equal(t, "Jane Doe", decoded.Name)
	assert.Equal(t, "jane@example.com", decoded.Email)
	assert.Equal(t, float64(85), decoded.Score)
}

func TestDecodeArgsIgnoresUnknownFields(t *testing.T) {
	var decoded saveLeadArgs
	require.NoError(t, DecodeArgs(map[string]any{"name": "Jane", "unknown": true}, &decoded))
	assert.Equal(t, "Jane", decoded.Name)
}

func TestSchemaFor(t *testing.T) {
	schema := MustSchemaFor(&saveLeadArgs{})

	assert.Equal(t, "object", schema["type"])

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, properties, "name")
	assert.Contains(t, properties, "email")
	assert.Contains(t, properties, "score")

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "name")
}

func TestRegistryDefinitions(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(&stubTool{name: "save_lead"}, &stubTool{name: "qualify_lead"}))

	definitions := reg.Definitions()
	require.Len(t, definitions, 2)
	// Lexical order from the underlying registry.
	assert.Equal(t, "qualify_lead", definitions[0].Name)
	assert.Equal(t, "save_lead", definitions[1].Name)
	assert.NotNil(t, definitions[0].Parameters)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(&stubTool{name: "save_lead"}))
	assert.Error(t, reg.Add(&stubTool{name: "save_lead"}))
}
