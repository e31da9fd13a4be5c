package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leadflowhq/leadflow/pkg/agent"
	"github.com/leadflowhq/leadflow/pkg/llms"
	"github.com/leadflowhq/leadflow/pkg/records"
	"github.com/leadflowhq/leadflow/pkg/tools"
)

const performanceAnalyzerPrompt = `You are a campaign performance analyst. The user will ask about how their campaigns are doing. Use fetch_campaign_stats to pull the numbers for a campaign, then explain the results in plain language: cost per lead, conversion trends, and where budget is over- or under-performing. Suggest concrete adjustments. For a shareable writeup of one campaign, use summarize_performance.

These are analysis conversations; there is nothing to save.`

const summaryPrompt = `You are a marketing analyst writing a short performance summary for a stakeholder who has not seen the dashboard. Cover lead volume, cost per lead, and one concrete recommendation. Three to five sentences, no preamble.`

// performanceAnalyzer runs pure analysis turns: the conversation never
// transitions to completed and no sentinels are written.
func performanceAnalyzer(recordStore records.Store, provider llms.Provider) *agent.Definition {
	return &agent.Definition{
		Type:          TypePerformanceAnalyzer,
		SystemPrompt:  performanceAnalyzerPrompt,
		HistoryWindow: defaultHistoryWindow,
		Tools: mustRegistry(
			&fetchCampaignStatsTool{records: recordStore},
			&summarizePerformanceTool{records: recordStore, provider: provider},
		),
	}
}

type fetchCampaignStatsArgs struct {
	CampaignID string `json:"campaign_id" jsonschema:"required,description=Id of the campaign to inspect"`
}

type fetchCampaignStatsTool struct {
	records records.Store
}

func (t *fetchCampaignStatsTool) Info() tools.ToolInfo {
	return tools.ToolInfo{
		Name:        "fetch_campaign_stats",
		Description: "Fetch the performance stats block for one campaign.",
		Parameters:  tools.MustSchemaFor(&fetchCampaignStatsArgs{}),
	}
}

func (t *fetchCampaignStatsTool) Execute(ctx context.Context, session tools.Session, args map[string]any) (tools.ToolResult, error) {
	var in fetchCampaignStatsArgs
	if err := tools.DecodeArgs(args, &in); err != nil {
		return tools.ToolResult{}, err
	}
	if in.CampaignID == "" {
		return tools.ToolResult{}, fmt.Errorf("campaign_id is required")
	}

	record, err := t.records.Get(ctx, recordOwnerOf(session), in.CampaignID)
	if errors.Is(err, records.ErrNotFound) {
		return tools.ToolResult{
			Success:  false,
			ToolName: "fetch_campaign_stats",
			Error:    fmt.Sprintf("campaign %s not found", in.CampaignID),
		}, nil
	}
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("failed to fetch campaign: %w", err)
	}

	stats, _ := record.Data["stats"].(map[string]any)

	return tools.ToolResult{
		Success:  true,
		ToolName: "fetch_campaign_stats",
		Content:  "campaign_stats_fetched",
		Metadata: map[string]any{
			MetaCampaignID: record.ID,
			"name":         record.Name,
			"stats":        stats,
		},
	}, nil
}

type summarizePerformanceArgs struct {
	CampaignID string `json:"campaign_id" jsonschema:"required,description=Id of the campaign to summarize"`
}

// summarizePerformanceTool produces a prose summary of one campaign via a
// second, non-streamed completion. The summary lands in the tool result, so
// the surrounding turn stays a normal streaming turn.
type summarizePerformanceTool struct {
	records  records.Store
	provider llms.Provider
}

func (t *summarizePerformanceTool) Info() tools.ToolInfo {
	return tools.ToolInfo{
		Name:        "summarize_performance",
		Description: "Write a short stakeholder-ready summary of one campaign's performance.",
		Parameters:  tools.MustSchemaFor(&summarizePerformanceArgs{}),
	}
}

func (t *summarizePerformanceTool) Execute(ctx context.Context, session tools.Session, args map[string]any) (tools.ToolResult, error) {
	var in summarizePerformanceArgs
	if err := tools.DecodeArgs(args, &in); err != nil {
		return tools.ToolResult{}, err
	}
	if in.CampaignID == "" {
		return tools.ToolResult{}, fmt.Errorf("campaign_id is required")
	}

	record, err := t.records.Get(ctx, recordOwnerOf(session), in.CampaignID)
	if errors.Is(err, records.ErrNotFound) {
		return tools.ToolResult{
			Success:  false,
			ToolName: "summarize_performance",
			Error:    fmt.Sprintf("campaign %s not found", in.CampaignID),
		}, nil
	}
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("failed to fetch campaign: %w", err)
	}

	statsJSON, err := json.Marshal(record.Data)
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("failed to encode campaign data: %w", err)
	}

	summary, _, tokens, err := t.provider.Generate(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: summaryPrompt},
		{Role: llms.RoleUser, Content: fmt.Sprintf("Campaign %q:\n%s", record.Name, statsJSON)},
	}, nil)
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("failed to generate summary: %w", err)
	}

	return tools.ToolResult{
		Success:  true,
		ToolName: "summarize_performance",
		Content:  summary,
		Metadata: map[string]any{
			MetaCampaignID: record.ID,
			"name":         record.Name,
			"tokens":       tokens,
		},
	}, nil
}
