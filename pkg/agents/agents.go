// Package agents defines the four marketing agents served by the runtime:
// their prompts, tool bindings, and side-effect sentinels. The runtime
// itself lives in pkg/agent; everything here is configuration plus the
// agent-specific tool handlers.
package agents

import (
	"fmt"

	"github.com/leadflowhq/leadflow/pkg/agent"
	"github.com/leadflowhq/leadflow/pkg/config"
	"github.com/leadflowhq/leadflow/pkg/conversation"
	"github.com/leadflowhq/leadflow/pkg/llms"
	"github.com/leadflowhq/leadflow/pkg/records"
	"github.com/leadflowhq/leadflow/pkg/tools"
)

// Agent type identifiers, used in routes and conversation rows.
const (
	TypeProductDefiner      = "product_definer"
	TypeCampaignAdvisor     = "campaign_advisor"
	TypeLeadDiscovery       = "lead_discovery"
	TypePerformanceAnalyzer = "performance_analyzer"
)

// Sentinel contents and their metadata id keys.
const (
	SentinelProductSaved  = "product_saved"
	SentinelCampaignSaved = "campaign_saved"
	SentinelLeadQualified = "lead_qualified"
	SentinelLeadSaved     = "lead_saved"

	MetaProductID  = "product_id"
	MetaCampaignID = "campaign_id"
	MetaLeadID     = "lead_id"
)

// BuildRegistry assembles the agent registry from the built-in definitions,
// applying any per-agent configuration overrides.
func BuildRegistry(cfg *config.Config, recordStore records.Store, convStore conversation.Store, provider llms.Provider) (*agent.Registry, error) {
	definitions := []*agent.Definition{
		productDefiner(recordStore, convStore),
		campaignAdvisor(recordStore, convStore),
		leadDiscovery(recordStore),
		performanceAnalyzer(recordStore, provider),
	}

	for _, def := range definitions {
		if override, ok := cfg.Agents[def.Type]; ok {
			if override.SystemPrompt != "" {
				def.SystemPrompt = override.SystemPrompt
			}
			if override.HistoryWindow > 0 {
				def.HistoryWindow = override.HistoryWindow
			}
			if override.TokenBudget > 0 {
				def.TokenBudget = override.TokenBudget
			}
		}
	}

	registry := agent.NewRegistry()
	if err := registry.Add(definitions...); err != nil {
		return nil, fmt.Errorf("failed to register agents: %w", err)
	}
	return registry, nil
}

// ownerOf projects a tool session onto the conversation/record owner.
func ownerOf(session tools.Session) conversation.Owner {
	return conversation.Owner{UserID: session.UserID, TeamID: session.TeamID}
}

func recordOwnerOf(session tools.Session) records.Owner {
	return records.Owner{UserID: session.UserID, TeamID: session.TeamID}
}

func mustRegistry(toolList ...tools.Tool) *tools.Registry {
	reg := tools.NewRegistry()
	if err := reg.Add(toolList...); err != nil {
		panic(err)
	}
	return reg
}

const defaultHistoryWindow = 20
