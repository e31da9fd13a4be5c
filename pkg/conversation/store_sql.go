package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/pkg/config"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore implements Store with a SQL backend.
// Supports PostgreSQL, MySQL, and SQLite via database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect string // "postgres", "mysql", or "sqlite"
}

// conversationRow represents the database schema for conversations. The
// transcript and metadata are JSON-encoded TEXT columns, compatible with
// all three databases.
type conversationRow struct {
	ID          string
	OwnerID     string
	TeamID      string
	AgentType   string
	ContextRef  string
	ContextKind string
	Status      string
	Metadata    string
	Transcript  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const createConversationsTableSQL = `
CREATE TABLE IF NOT EXISTS conversations (
    id VARCHAR(255) PRIMARY KEY,
    owner_id VARCHAR(255) NOT NULL,
    team_id VARCHAR(255) NOT NULL,
    agent_type VARCHAR(100) NOT NULL,
    context_ref VARCHAR(255),
    context_kind VARCHAR(100),
    status VARCHAR(50) NOT NULL,
    metadata TEXT,
    transcript TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_id, team_id);
CREATE INDEX IF NOT EXISTS idx_conversations_status ON conversations(status);
CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at);
`

// NewSQLStore creates a SQL-backed conversation store on an existing
// connection.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// NewSQLStoreFromConfig opens a connection from configuration and creates
// the store.
func NewSQLStoreFromConfig(cfg *config.DatabaseConfig) (*SQLStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewSQLStore(db, cfg.Driver)
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, createConversationsTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// CreateConversation implements Store.
func (s *SQLStore) CreateConversation(ctx context.Context, owner Owner, agentType, contextRef, contextKind string) (*Conversation, error) {
	if owner.UserID == "" || owner.TeamID == "" {
		return nil, fmt.Errorf("owner user and team ids are required")
	}
	if agentType == "" {
		return nil, fmt.Errorf("agent_type is required")
	}

	now := time.Now().UTC()
	conv := &Conversation{
		ID:          uuid.NewString(),
		OwnerID:     owner.UserID,
		TeamID:      owner.TeamID,
		AgentType:   agentType,
		ContextRef:  contextRef,
		ContextKind: contextKind,
		Status:      StatusActive,
		Transcript:  make([]Entry, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	row, err := conversationToRow(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize conversation: %w", err)
	}

	query := `
INSERT INTO conversations (id, owner_id, team_id, agent_type, context_ref, context_kind, status, metadata, transcript, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	if s.dialect == "postgres" {
		query = `
INSERT INTO conversations (id, owner_id, team_id, agent_type, context_ref, context_kind, status, metadata, transcript, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
	}

	_, err = s.db.ExecContext(ctx, query,
		row.ID, row.OwnerID, row.TeamID, row.AgentType,
		row.ContextRef, row.ContextKind, row.Status,
		row.Metadata, row.Transcript,
		row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	return conv, nil
}

// Get implements Store. The query is scoped to the owner so a mismatch is
// indistinguishable from a missing row.
func (s *SQLStore) Get(ctx context.Context, id string, owner Owner) (*Conversation, error) {
	query := `
SELECT id, owner_id, team_id, agent_type, context_ref, context_kind, status, metadata, transcript, created_at, updated_at
FROM conversations
WHERE id = ? AND owner_id = ? AND team_id = ?
`
	if s.dialect == "postgres" {
		query = `
SELECT id, owner_id, team_id, agent_type, context_ref, context_kind, status, metadata, transcript, created_at, updated_at
FROM conversations
WHERE id = $1 AND owner_id = $2 AND team_id = $3
`
	}

	var row conversationRow
	var contextRef, contextKind sql.NullString
	err := s.db.QueryRowContext(ctx, query, id, owner.UserID, owner.TeamID).Scan(
		&row.ID, &row.OwnerID, &row.TeamID, &row.AgentType,
		&contextRef, &contextKind, &row.Status,
		&row.Metadata, &row.Transcript,
		&row.CreatedAt, &row.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	row.ContextRef = contextRef.String
	row.ContextKind = contextKind.String

	return rowToConversation(&row)
}

// AppendMessage implements Store. The entry id and timestamp are filled in
// when absent.
func (s *SQLStore) AppendMessage(ctx context.Context, id string, owner Owner, entry Entry) (*Conversation, error) {
	conv, err := s.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	conv.Transcript = append(conv.Transcript, entry)
	conv.UpdatedAt = time.Now().UTC()

	transcriptJSON, err := json.Marshal(conv.Transcript)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}

	query := `
UPDATE conversations
SET transcript = ?, updated_at = ?
WHERE id = ? AND owner_id = ? AND team_id = ?
`
	if s.dialect == "postgres" {
		query = `
UPDATE conversations
SET transcript = $1, updated_at = $2
WHERE id = $3 AND owner_id = $4 AND team_id = $5
`
	}

	_, err = s.db.ExecContext(ctx, query, string(transcriptJSON), conv.UpdatedAt, id, owner.UserID, owner.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return conv, nil
}

// ListMessages implements Store.
func (s *SQLStore) ListMessages(ctx context.Context, id string, owner Owner) ([]Entry, error) {
	conv, err := s.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	return conv.Transcript, nil
}

// SetStatus implements Store.
func (s *SQLStore) SetStatus(ctx context.Context, id string, owner Owner, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid status: %s", status)
	}

	query := `
UPDATE conversations
SET status = ?, updated_at = ?
WHERE id = ? AND owner_id = ? AND team_id = ?
`
	if s.dialect == "postgres" {
		query = `
UPDATE conversations
SET status = $1, updated_at = $2
WHERE id = $3 AND owner_id = $4 AND team_id = $5
`
	}

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id, owner.UserID, owner.TeamID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}

	return nil
}

// HardDelete implements Store. This is the only operation that physically
// removes a conversation.
func (s *SQLStore) HardDelete(ctx context.Context, id string, owner Owner) error {
	query := `DELETE FROM conversations WHERE id = ? AND owner_id = ? AND team_id = ?`
	if s.dialect == "postgres" {
		query = `DELETE FROM conversations WHERE id = $1 AND owner_id = $2 AND team_id = $3`
	}

	result, err := s.db.ExecContext(ctx, query, id, owner.UserID, owner.TeamID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func conversationToRow(conv *Conversation) (*conversationRow, error) {
	metadataJSON, err := json.Marshal(conv.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	transcriptJSON, err := json.Marshal(conv.Transcript)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcript: %w", err)
	}

	return &conversationRow{
		ID:          conv.ID,
		OwnerID:     conv.OwnerID,
		TeamID:      conv.TeamID,
		AgentType:   conv.AgentType,
		ContextRef:  conv.ContextRef,
		ContextKind: conv.ContextKind,
		Status:      conv.Status,
		Metadata:    string(metadataJSON),
		Transcript:  string(transcriptJSON),
		CreatedAt:   conv.CreatedAt,
		UpdatedAt:   conv.UpdatedAt,
	}, nil
}

func rowToConversation(row *conversationRow) (*Conversation, error) {
	conv := &Conversation{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		TeamID:      row.TeamID,
		AgentType:   row.AgentType,
		ContextRef:  row.ContextRef,
		ContextKind: row.ContextKind,
		Status:      row.Status,
		Transcript:  make([]Entry, 0),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}

	if row.Metadata != "" && row.Metadata != "null" && row.Metadata != "{}" {
		if err := json.Unmarshal([]byte(row.Metadata), &conv.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	if row.Transcript != "" && row.Transcript != "null" && row.Transcript != "[]" {
		if err := json.Unmarshal([]byte(row.Transcript), &conv.Transcript); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
		}
	}

	return conv, nil
}
