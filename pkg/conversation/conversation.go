package conversation

import (
	"context"
	"errors"
	"time"
)

// Lifecycle statuses. Archival is a status transition; rows are only
// removed by HardDelete.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// Transcript entry roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ErrNotFound is returned when a conversation does not exist or the caller
// does not own it. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("conversation not found or access denied")

// Owner identifies the caller for access control. Every store operation is
// scoped to both the user and their team.
type Owner struct {
	UserID string
	TeamID string
}

// Entry is one transcript message. Entries are append-only: once written,
// content never changes. Metadata carries structured side-channel data such
// as created entity ids.
type Entry struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Conversation is one agent interaction with its ordered transcript.
type Conversation struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	TeamID      string         `json:"team_id"`
	AgentType   string         `json:"agent_type"`
	ContextRef  string         `json:"context_ref,omitempty"`
	ContextKind string         `json:"context_kind,omitempty"`
	Status      string         `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Transcript  []Entry        `json:"transcript"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// Store is the transcript persistence contract. Implementations enforce
// owner/team scoping on every operation and return ErrNotFound on either a
// missing row or an ownership mismatch.
type Store interface {
	CreateConversation(ctx context.Context, owner Owner, agentType, contextRef, contextKind string) (*Conversation, error)
	Get(ctx context.Context, id string, owner Owner) (*Conversation, error)
	AppendMessage(ctx context.Context, id string, owner Owner, entry Entry) (*Conversation, error)
	ListMessages(ctx context.Context, id string, owner Owner) ([]Entry, error)
	SetStatus(ctx context.Context, id string, owner Owner, status string) error
	HardDelete(ctx context.Context, id string, owner Owner) error
	Close() error
}
