package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leadflowhq/leadflow/pkg/agent"
	"github.com/leadflowhq/leadflow/pkg/conversation"
	"github.com/leadflowhq/leadflow/pkg/records"
	"github.com/leadflowhq/leadflow/pkg/tools"
)

const productDefinerPrompt = `You are a product marketing strategist. Guide the user through defining their product for a marketing campaign: what it is, who it serves, what category it competes in, and how it is priced.

Ask focused questions one at a time. Once you have a clear picture covering name, description, category, and price point, call the save_product tool with the final definition and confirm to the user that their product is saved.`

func productDefiner(recordStore records.Store, convStore conversation.Store) *agent.Definition {
	return &agent.Definition{
		Type:          TypeProductDefiner,
		SystemPrompt:  productDefinerPrompt,
		HistoryWindow: defaultHistoryWindow,
		Tools: mustRegistry(&saveProductTool{
			records:       recordStore,
			conversations: convStore,
		}),
		Sentinels: []agent.Sentinel{
			{Content: SentinelProductSaved, IDMetadataKey: MetaProductID},
		},
	}
}

type saveProductArgs struct {
	Name        string `json:"name" jsonschema:"required,description=Product name"`
	Description string `json:"description" jsonschema:"required,description=What the product does and for whom"`
	Category    string `json:"category,omitempty" jsonschema:"description=Market category the product competes in"`
	PricePoint  string `json:"price_point,omitempty" jsonschema:"description=Pricing positioning such as budget or premium"`
}

// saveProductTool persists the product definition and closes out the
// conversation. Re-running the same call is safe: a name collision resolves
// to the existing record.
type saveProductTool struct {
	records       records.Store
	conversations conversation.Store
}

func (t *saveProductTool) Info() tools.ToolInfo {
	return tools.ToolInfo{
		Name:        "save_product",
		Description: "Save the finalized product definition. Call once the user has confirmed name, description, category, and price point.",
		Parameters:  tools.MustSchemaFor(&saveProductArgs{}),
	}
}

func (t *saveProductTool) Execute(ctx context.Context, session tools.Session, args map[string]any) (tools.ToolResult, error) {
	var in saveProductArgs
	if err := tools.DecodeArgs(args, &in); err != nil {
		return tools.ToolResult{}, err
	}
	if in.Name == "" {
		return tools.ToolResult{}, fmt.Errorf("product name is required")
	}

	data := map[string]any{
		"description": in.Description,
		"category":    in.Category,
		"price_point": in.PricePoint,
	}

	record, err := t.records.Create(ctx, recordOwnerOf(session), records.KindProduct, in.Name, data)
	if errors.Is(err, records.ErrDuplicate) {
		record, err = t.records.GetByName(ctx, recordOwnerOf(session), records.KindProduct, in.Name)
	}
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("failed to save product: %w", err)
	}

	if err := t.conversations.SetStatus(ctx, session.ConversationID, ownerOf(session), conversation.StatusCompleted); err != nil {
		slog.Warn("Product saved but conversation status update failed",
			"conversation", session.ConversationID, "error", err)
	}

	return tools.ToolResult{
		Success:  true,
		ToolName: "save_product",
		Content:  SentinelProductSaved,
		Metadata: map[string]any{
			MetaProductID: record.ID,
			"name":        record.Name,
		},
	}, nil
}
