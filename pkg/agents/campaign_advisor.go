package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leadflowhq/leadflow/pkg/agent"
	"github.com/leadflowhq/leadflow/pkg/conversation"
	"github.com/leadflowhq/leadflow/pkg/records"
	"github.com/leadflowhq/leadflow/pkg/scoring"
	"github.com/leadflowhq/leadflow/pkg/tools"
)

const campaignAdvisorPrompt = `You are a paid-media campaign advisor. Help the user plan an ad campaign for their product: gather the total budget, candidate platforms, and the ideal customer profile, then call allocate_budget to compute a recommended split with rationale.

Walk the user through the allocation. When they approve it, call save_campaign with the campaign name, product id, and the approved allocations, and confirm the campaign is saved.`

func campaignAdvisor(recordStore records.Store, convStore conversation.Store) *agent.Definition {
	return &agent.Definition{
		Type:          TypeCampaignAdvisor,
		SystemPrompt:  campaignAdvisorPrompt,
		HistoryWindow: defaultHistoryWindow,
		Tools: mustRegistry(
			&allocateBudgetTool{},
			&saveCampaignTool{records: recordStore, conversations: convStore},
		),
		Sentinels: []agent.Sentinel{
			{Content: SentinelCampaignSaved, IDMetadataKey: MetaCampaignID},
		},
	}
}

type allocateBudgetArgs struct {
	TotalBudget float64     `json:"total_budget" jsonschema:"required,description=Total campaign budget in dollars"`
	Platforms   []string    `json:"platforms" jsonschema:"required,description=Candidate ad platforms such as google_ads or linkedin"`
	ICP         scoring.ICP `json:"icp,omitempty" jsonschema:"description=Ideal customer profile to allocate against"`
}

// allocateBudgetTool is a pure computation: no persistence, no idempotence
// concerns. An insufficient budget is reported as a failed result so the
// model can relay the minimum viable spend to the user.
type allocateBudgetTool struct{}

func (t *allocateBudgetTool) Info() tools.ToolInfo {
	return tools.ToolInfo{
		Name:        "allocate_budget",
		Description: "Split a total budget across ad platforms proportionally to their fit with the ideal customer profile, with per-platform rationale and lead estimates.",
		Parameters:  tools.MustSchemaFor(&allocateBudgetArgs{}),
	}
}

func (t *allocateBudgetTool) Execute(ctx context.Context, session tools.Session, args map[string]any) (tools.ToolResult, error) {
	var in allocateBudgetArgs
	if err := tools.DecodeArgs(args, &in); err != nil {
		return tools.ToolResult{}, err
	}

	allocations, err := scoring.AllocateBudget(in.TotalBudget, in.Platforms, in.ICP)
	if err != nil {
		var insufficient *scoring.InsufficientBudgetError
		if errors.As(err, &insufficient) {
			return tools.ToolResult{
				Success:  false,
				ToolName: "allocate_budget",
				Error:    insufficient.Error(),
				Metadata: map[string]any{
					"smallest_minimum": insufficient.SmallestMinimum,
					"platform":         insufficient.Platform,
				},
			}, nil
		}
		return tools.ToolResult{}, err
	}

	return tools.ToolResult{
		Success:  true,
		ToolName: "allocate_budget",
		Content:  "budget_allocated",
		Metadata: map[string]any{"allocations": allocations},
	}, nil
}

type saveCampaignArgs struct {
	Name        string               `json:"name" jsonschema:"required,description=Campaign name"`
	ProductID   string               `json:"product_id,omitempty" jsonschema:"description=Id of the product this campaign promotes"`
	Allocations []scoring.Allocation `json:"allocations" jsonschema:"required,description=Approved budget allocations"`
}

type saveCampaignTool struct {
	records       records.Store
	conversations conversation.Store
}

func (t *saveCampaignTool) Info() tools.ToolInfo {
	return tools.ToolInfo{
		Name:        "save_campaign",
		Description: "Save the approved campaign plan. Call only after the user approves the allocation.",
		Parameters:  tools.MustSchemaFor(&saveCampaignArgs{}),
	}
}

func (t *saveCampaignTool) Execute(ctx context.Context, session tools.Session, args map[string]any) (tools.ToolResult, error) {
	var in saveCampaignArgs
	if err := tools.DecodeArgs(args, &in); err != nil {
		return tools.ToolResult{}, err
	}
	if in.Name == "" {
		return tools.ToolResult{}, fmt.Errorf("campaign name is required")
	}

	allocations := make([]map[string]any, len(in.Allocations))
	totalBudget := 0.0
	for i, a := range in.Allocations {
		totalBudget += a.Amount
		allocations[i] = map[string]any{
			"platform":        a.Platform,
			"amount":          a.Amount,
			"rationale":       a.Rationale,
			"estimated_leads": a.EstimatedLeads,
		}
	}

	data := map[string]any{
		"product_id":   in.ProductID,
		"total_budget": totalBudget,
		"allocations":  allocations,
		"stats": map[string]any{
			"impressions": 0,
			"clicks":      0,
			"leads":       0,
			"spend":       0.0,
		},
	}

	record, err := t.records.Create(ctx, recordOwnerOf(session), records.KindCampaign, in.Name, data)
	if errors.Is(err, records.ErrDuplicate) {
		record, err = t.records.GetByName(ctx, recordOwnerOf(session), records.KindCampaign, in.Name)
	}
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("failed to save campaign: %w", err)
	}

	if err := t.conversations.SetStatus(ctx, session.ConversationID, ownerOf(session), conversation.StatusCompleted); err != nil {
		slog.Warn("Campaign saved but conversation status update failed",
			"conversation", session.ConversationID, "error", err)
	}

	return tools.ToolResult{
		Success:  true,
		ToolName: "save_campaign",
		Content:  SentinelCampaignSaved,
		Metadata: map[string]any{
			MetaCampaignID: record.ID,
			"name":         record.Name,
		},
	}, nil
}
