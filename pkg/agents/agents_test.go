package agents

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/pkg/config"
	"github.com/leadflowhq/leadflow/pkg/conversation"
	"github.com/leadflowhq/leadflow/pkg/llms"
	"github.com/leadflowhq/leadflow/pkg/records"
	"github.com/leadflowhq/leadflow/pkg/tools"
)

// stubProvider serves the blocking completion path with a canned answer.
type stubProvider struct {
	text   string
	tokens int
	calls  [][]llms.Message
}

func (p *stubProvider) Generate(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition) (string, []llms.RawToolCall, int, error) {
	p.calls = append(p.calls, messages)
	return p.text, nil, p.tokens, nil
}

func (p *stubProvider) GenerateStreaming(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition) (<-chan llms.StreamEvent, error) {
	return nil, errors.New("not used")
}

func (p *stubProvider) ModelName() string { return "stub" }

func testStores(t *testing.T) (records.Store, conversation.Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	recordStore, err := records.NewSQLStore(db, "sqlite")
	require.NoError(t, err)

	convStore, err := conversation.NewSQLStore(db, "sqlite")
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return recordStore, convStore
}

var testOwner = conversation.Owner{UserID: "user-1", TeamID: "team-1"}

func testSession(conversationID string) tools.Session {
	return tools.Session{
		ConversationID: conversationID,
		UserID:         "user-1",
		TeamID:         "team-1",
	}
}

func TestBuildRegistryContainsAllAgents(t *testing.T) {
	recordStore, convStore := testStores(t)

	registry, err := BuildRegistry(config.Default(), recordStore, convStore, &stubProvider{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		TypeProductDefiner,
		TypeCampaignAdvisor,
		TypeLeadDiscovery,
		TypePerformanceAnalyzer,
	}, registry.Names())

	advisor, ok := registry.Get(TypeCampaignAdvisor)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"allocate_budget", "save_campaign"}, advisor.Tools.Names())

	analyzer, ok := registry.Get(TypePerformanceAnalyzer)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"fetch_campaign_stats", "summarize_performance"}, analyzer.Tools.Names())
}

func TestBuildRegistryAppliesOverrides(t *testing.T) {
	recordStore, convStore := testStores(t)

	cfg := config.Default()
	cfg.Agents = map[string]*config.AgentConfig{
		TypeLeadDiscovery: {SystemPrompt: "custom prompt", HistoryWindow: 5},
	}

	registry, err := BuildRegistry(cfg, recordStore, convStore, &stubProvider{})
	require.NoError(t, err)

	def, ok := registry.Get(TypeLeadDiscovery)
	require.True(t, ok)
	assert.Equal(t, "custom prompt", def.SystemPrompt)
	assert.Equal(t, 5, def.HistoryWindow)
}

func TestSaveProductCompletesConversation(t *testing.T) {
	recordStore, convStore := testStores(t)

	conv, err := convStore.CreateConversation(context.Background(), testOwner, TypeProductDefiner, "", "")
	require.NoError(t, err)

	tool := &saveProductTool{records: recordStore, conversations: convStore}
	result, err := tool.Execute(context.Background(), testSession(conv.ID), map[string]any{
		"name":        "Acme CRM",
		"description": "CRM for plumbers",
		"category":    "crm",
		"price_point": "mid",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, SentinelProductSaved, result.Content)
	assert.NotEmpty(t, result.Metadata[MetaProductID])

	saved, err := recordStore.GetByName(context.Background(), records.Owner{UserID: "user-1", TeamID: "team-1"}, records.KindProduct, "Acme CRM")
	require.NoError(t, err)
	assert.Equal(t, "CRM for plumbers", saved.Data["description"])

	updated, err := convStore.Get(context.Background(), conv.ID, testOwner)
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusCompleted, updated.Status)
}

func TestSaveProductIsIdempotent(t *testing.T) {
	recordStore, convStore := testStores(t)

	conv, err := convStore.CreateConversation(context.Background(), testOwner, TypeProductDefiner, "", "")
	require.NoError(t, err)

	tool := &saveProductTool{records: recordStore, conversations: convStore}
	args := map[string]any{"name": "Acme CRM", "description": "v1"}

	first, err := tool.Execute(context.Background(), testSession(conv.ID), args)
	require.NoError(t, err)
	second, err := tool.Execute(context.Background(), testSession(conv.ID), args)
	require.NoError(t, err)

	// The retry resolves to the same record.
	assert.Equal(t, first.Metadata[MetaProductID], second.Metadata[MetaProductID])
}

func TestAllocateBudgetToolReportsInsufficientBudget(t *testing.T) {
	tool := &allocateBudgetTool{}

	result, err := tool.Execute(context.Background(), testSession("conv-1"), map[string]any{
		"total_budget": float64(50),
		"platforms":    []any{"linkedin", "twitter"},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "insufficient budget")
	assert.Equal(t, 250.0, result.Metadata["smallest_minimum"])
}

func TestAllocateBudgetToolSuccess(t *testing.T) {
	tool := &allocateBudgetTool{}

	result, err := tool.Execute(context.Background(), testSession("conv-1"), map[string]any{
		"total_budget": float64(10000),
		"platforms":    []any{"google_ads", "facebook"},
		"icp":          map[string]any{"audience": "b2c"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "budget_allocated", result.Content)
	assert.NotNil(t, result.Metadata["allocations"])
}

func TestQualifyLeadTool(t *testing.T) {
	tool := &qualifyLeadTool{}

	result, err := tool.Execute(context.Background(), testSession("conv-1"), map[string]any{
		"answers": map[string]any{
			"budget":    "approved $20k",
			"timeline":  "immediately",
			"authority": "I'm the CEO",
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, SentinelLeadQualified, result.Content)
	assert.NotZero(t, result.Metadata["score"])
	assert.NotEmpty(t, result.Metadata["classification"])
}

func TestSaveLeadTool(t *testing.T) {
	recordStore, _ := testStores(t)

	tool := &saveLeadTool{records: recordStore}
	result, err := tool.Execute(context.Background(), testSession("conv-1"), map[string]any{
		"name":    "Jane Doe",
		"company": "Doe Plumbing",
		"email":   "jane@doe.example",
		"qualification": map[string]any{
			"score":          float64(85),
			"classification": "hot",
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, SentinelLeadSaved, result.Content)

	saved, err := recordStore.GetByName(context.Background(), records.Owner{UserID: "user-1", TeamID: "team-1"}, records.KindLead, "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "Doe Plumbing", saved.Data["company"])
}

func TestFetchCampaignStats(t *testing.T) {
	recordStore, _ := testStores(t)

	campaign, err := recordStore.Create(context.Background(), records.Owner{UserID: "user-1", TeamID: "team-1"}, records.KindCampaign, "Spring", map[string]any{
		"stats": map[string]any{"impressions": float64(1200), "leads": float64(30)},
	})
	require.NoError(t, err)

	tool := &fetchCampaignStatsTool{records: recordStore}
	result, err := tool.Execute(context.Background(), testSession("conv-1"), map[string]any{
		"campaign_id": campaign.ID,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	stats := result.Metadata["stats"].(map[string]any)
	assert.Equal(t, float64(30), stats["leads"])

	missing, err := tool.Execute(context.Background(), testSession("conv-1"), map[string]any{
		"campaign_id": "no-such-campaign",
	})
	require.NoError(t, err)
	assert.False(t, missing.Success)
	assert.Contains(t, missing.Error, "not found")
}

func TestSummarizePerformance(t *testing.T) {
	recordStore, _ := testStores(t)

	campaign, err := recordStore.Create(context.Background(), records.Owner{UserID: "user-1", TeamID: "team-1"}, records.KindCampaign, "Spring", map[string]any{
		"stats": map[string]any{"impressions": float64(1200), "leads": float64(30), "spend": float64(900)},
	})
	require.NoError(t, err)

	provider := &stubProvider{text: "Spring generated 30 leads at $30 each.", tokens: 57}
	tool := &summarizePerformanceTool{records: recordStore, provider: provider}

	result, err := tool.Execute(context.Background(), testSession("conv-1"), map[string]any{
		"campaign_id": campaign.ID,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Spring generated 30 leads at $30 each.", result.Content)
	assert.Equal(t, campaign.ID, result.Metadata[MetaCampaignID])
	assert.Equal(t, 57, result.Metadata["tokens"])

	// The completion saw the campaign data, not just the id.
	require.Len(t, provider.calls, 1)
	messages := provider.calls[0]
	require.Len(t, messages, 2)
	assert.Equal(t, llms.RoleSystem, messages[0].Role)
	assert.Contains(t, messages[1].Content, "Spring")
	assert.Contains(t, messages[1].Content, "impressions")
}

func TestSummarizePerformanceMissingCampaign(t *testing.T) {
	recordStore, _ := testStores(t)

	provider := &stubProvider{text: "unused"}
	tool := &summarizePerformanceTool{records: recordStore, provider: provider}

	result, err := tool.Execute(context.Background(), testSession("conv-1"), map[string]any{
		"campaign_id": "no-such-campaign",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
	assert.Empty(t, provider.calls)
}
