package records

import (
	"context"
	"errors"
	"time"
)

// Record kinds persisted by the agent tool handlers.
const (
	KindProduct  = "product"
	KindCampaign = "campaign"
	KindLead     = "lead"
)

var (
	// ErrNotFound is returned for a missing record or an ownership mismatch.
	ErrNotFound = errors.New("record not found or access denied")

	// ErrDuplicate is returned when a (team, kind, name) triple already
	// exists.
	ErrDuplicate = errors.New("record with this name already exists")
)

// Owner identifies the caller. Records are team-scoped: any team member can
// read a record, the owner id records who created it.
type Owner struct {
	UserID string
	TeamID string
}

// Record is one stored business entity. Data holds the kind-specific
// payload; the store does not interpret it.
type Record struct {
	ID        string         `json:"id"`
	TeamID    string         `json:"team_id"`
	OwnerID   string         `json:"owner_id"`
	Kind      string         `json:"kind"`
	Name      string         `json:"name"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store persists records with (team, kind, name) uniqueness.
type Store interface {
	Create(ctx context.Context, owner Owner, kind, name string, data map[string]any) (*Record, error)
	Get(ctx context.Context, owner Owner, id string) (*Record, error)
	GetByName(ctx context.Context, owner Owner, kind, name string) (*Record, error)
	Update(ctx context.Context, owner Owner, id string, data map[string]any) (*Record, error)
	List(ctx context.Context, owner Owner, kind string) ([]*Record, error)
	Close() error
}
