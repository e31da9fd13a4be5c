package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadflowhq/leadflow/pkg/agent"
	"github.com/leadflowhq/leadflow/pkg/records"
	"github.com/leadflowhq/leadflow/pkg/scoring"
	"github.com/leadflowhq/leadflow/pkg/tools"
)

const leadDiscoveryPrompt = `You are a lead discovery assistant conducting a qualification conversation with a prospective customer. Ask about their budget, timeline, decision-making authority, the challenge they are trying to solve, and what they use today. One question at a time, conversational, never interrogative.

When you have answers for all five areas, call qualify_lead with them. Then collect the prospect's name, company, and email and call save_lead with the qualification attached.`

func leadDiscovery(recordStore records.Store) *agent.Definition {
	return &agent.Definition{
		Type:          TypeLeadDiscovery,
		SystemPrompt:  leadDiscoveryPrompt,
		HistoryWindow: defaultHistoryWindow,
		Tools: mustRegistry(
			&qualifyLeadTool{},
			&saveLeadTool{records: recordStore},
		),
		Sentinels: []agent.Sentinel{
			{Content: SentinelLeadQualified},
			{Content: SentinelLeadSaved, IDMetadataKey: MetaLeadID},
		},
	}
}

type qualifyLeadArgs struct {
	Answers scoring.Answers `json:"answers" jsonschema:"required,description=The prospect's answers to the five discovery questions"`
}

// qualifyLeadTool runs the weighted scorer over the discovery answers. The
// score and classification land in the sentinel metadata so the status
// endpoint can report them without re-scoring.
type qualifyLeadTool struct{}

func (t *qualifyLeadTool) Info() tools.ToolInfo {
	return tools.ToolInfo{
		Name:        "qualify_lead",
		Description: "Score the prospect's discovery answers and classify the lead as hot, warm, or cold.",
		Parameters:  tools.MustSchemaFor(&qualifyLeadArgs{}),
	}
}

func (t *qualifyLeadTool) Execute(ctx context.Context, session tools.Session, args map[string]any) (tools.ToolResult, error) {
	var in qualifyLeadArgs
	if err := tools.DecodeArgs(args, &in); err != nil {
		return tools.ToolResult{}, err
	}

	qual := scoring.QualifyLead(in.Answers)

	return tools.ToolResult{
		Success:  true,
		ToolName: "qualify_lead",
		Content:  SentinelLeadQualified,
		Metadata: map[string]any{
			"score":          qual.Score,
			"classification": qual.Classification,
			"reasoning":      qual.Reasoning,
		},
	}, nil
}

type saveLeadArgs struct {
	Name          string         `json:"name" jsonschema:"required,description=Prospect full name"`
	Company       string         `json:"company,omitempty"`
	Email         string         `json:"email,omitempty"`
	Qualification map[string]any `json:"qualification,omitempty" jsonschema:"description=Qualification outcome from qualify_lead"`
}

type saveLeadTool struct {
	records records.Store
}

func (t *saveLeadTool) Info() tools.ToolInfo {
	return tools.ToolInfo{
		Name:        "save_lead",
		Description: "Save the qualified lead with their contact details.",
		Parameters:  tools.MustSchemaFor(&saveLeadArgs{}),
	}
}

func (t *saveLeadTool) Execute(ctx context.Context, session tools.Session, args map[string]any) (tools.ToolResult, error) {
	var in saveLeadArgs
	if err := tools.DecodeArgs(args, &in); err != nil {
		return tools.ToolResult{}, err
	}
	if in.Name == "" {
		return tools.ToolResult{}, fmt.Errorf("lead name is required")
	}

	data := map[string]any{
		"company":       in.Company,
		"email":         in.Email,
		"qualification": in.Qualification,
	}

	record, err := t.records.Create(ctx, recordOwnerOf(session), records.KindLead, in.Name, data)
	if errors.Is(err, records.ErrDuplicate) {
		record, err = t.records.GetByName(ctx, recordOwnerOf(session), records.KindLead, in.Name)
	}
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("failed to save lead: %w", err)
	}

	return tools.ToolResult{
		Success:  true,
		ToolName: "save_lead",
		Content:  SentinelLeadSaved,
		Metadata: map[string]any{
			MetaLeadID: record.ID,
			"name":     record.Name,
		},
	}, nil
}
