package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/leadflowhq/leadflow/pkg/conversation"
	"github.com/leadflowhq/leadflow/pkg/llms"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// tokenCount estimates prompt size with the cl100k tokenizer, falling back
// to a character heuristic when the encoding is unavailable (offline
// environments).
func tokenCount(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// BuildContext assembles the bounded message window for the next turn: the
// system prompt first, then the role/content projection of the most recent
// transcript entries. System entries are included verbatim since they carry
// tool-call bookkeeping the model may need to see. Older entries are simply
// dropped, never summarized.
//
// window bounds the entry count; tokenBudget, when positive, additionally
// drops the oldest in-window entries until the projected messages fit.
func BuildContext(systemPrompt string, entries []conversation.Entry, window, tokenBudget int) []llms.Message {
	if window > 0 && len(entries) > window {
		entries = entries[len(entries)-window:]
	}

	if tokenBudget > 0 {
		used := tokenCount(systemPrompt)
		// Walk newest to oldest so the most recent entries survive.
		start := len(entries)
		for i := len(entries) - 1; i >= 0; i-- {
			cost := tokenCount(entries[i].Content)
			if used+cost > tokenBudget {
				break
			}
			used += cost
			start = i
		}
		entries = entries[start:]
	}

	messages := make([]llms.Message, 0, len(entries)+1)
	messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: systemPrompt})
	for _, entry := range entries {
		messages = append(messages, llms.Message{Role: entry.Role, Content: entry.Content})
	}
	return messages
}
