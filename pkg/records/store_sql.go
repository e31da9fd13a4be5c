package records

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
	dialect string
}

const createRecordsTableSQL = `
CREATE TABLE IF NOT EXISTS records (
    id VARCHAR(255) PRIMARY KEY,
    team_id VARCHAR(255) NOT NULL,
    owner_id VARCHAR(255) NOT NULL,
    kind VARCHAR(100) NOT NULL,
    name VARCHAR(255) NOT NULL,
    data TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (team_id, kind, name)
);

CREATE INDEX IF NOT EXISTS idx_records_team_kind ON records(team_id, kind);
`

// NewSQLStore creates a SQL-backed record store on an existing connection.
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

	_, err := s.db.ExecContext(ctx, createRecordsTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Create implements Store. The uniqueness check is a read-before-write so
// ErrDuplicate is returned consistently across drivers.
func (s *SQLStore) Create(ctx context.Context, owner Owner, kind, name string, data map[string]any) (*Record, error) {
	if owner.UserID == "" || owner.TeamID == "" {
		return nil, fmt.Errorf("owner user and team ids are required")
	}
	if kind == "" || name == "" {
		return nil, fmt.Errorf("kind and name are required")
	}

	if _, err := s.GetByName(ctx, owner, kind, name); err == nil {
		return nil, ErrDuplicate
	} else if err != ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	record := &Record{
		ID:        uuid.NewString(),
		TeamID:    owner.TeamID,
		OwnerID:   owner.UserID,
		Kind:      kind,
		Name:      name,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}

	query := `
INSERT INTO records (id, team_id, owner_id, kind, name, data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`
	if s.dialect == "postgres" {
		query = `
INSERT INTO records (id, team_id, owner_id, kind, name, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	}

	_, err = s.db.ExecContext(ctx, query,
		record.ID, record.TeamID, record.OwnerID, record.Kind, record.Name,
		string(dataJSON), record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}

	return record, nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, owner Owner, id string) (*Record, error) {
	query := `
SELECT id, team_id, owner_id, kind, name, data, created_at, updated_at
FROM records
WHERE id = ? AND team_id = ?
`
	if s.dialect == "postgres" {
		query = `
SELECT id, team_id, owner_id, kind, name, data, created_at, updated_at
FROM records
WHERE id = $1 AND team_id = $2
`
	}

	return s.queryOne(ctx, query, id, owner.TeamID)
}

// GetByName implements Store.
func (s *SQLStore) GetByName(ctx context.Context, owner Owner, kind, name string) (*Record, error) {
	query := `
SELECT id, team_id, owner_id, kind, name, data, created_at, updated_at
FROM records
WHERE team_id = ? AND kind = ? AND name = ?
`
	if s.dialect == "postgres" {
		query = `
SELECT id, team_id, owner_id, kind, name, data, created_at, updated_at
FROM records
WHERE team_id = $1 AND kind = $2 AND name = $3
`
	}

	return s.queryOne(ctx, query, owner.TeamID, kind, name)
}

// Update implements Store. Only the data payload changes; kind and name are
// immutable.
func (s *SQLStore) Update(ctx context.Context, owner Owner, id string, data map[string]any) (*Record, error) {
	record, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}

	record.Data = data
	record.UpdatedAt = time.Now().UTC()

	query := `
UPDATE records
SET data = ?, updated_at = ?
WHERE id = ? AND team_id = ?
`
	if s.dialect == "postgres" {
		query = `
UPDATE records
SET data = $1, updated_at = $2
WHERE id = $3 AND team_id = $4
`
	}

	_, err = s.db.ExecContext(ctx, query, string(dataJSON), record.UpdatedAt, id, owner.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	return record, nil
}

// List implements Store, returning the team's records of one kind, newest
// first.
func (s *SQLStore) List(ctx context.Context, owner Owner, kind string) ([]*Record, error) {
	query := `
SELECT id, team_id, owner_id, kind, name, data, created_at, updated_at
FROM records
WHERE team_id = ? AND kind = ?
ORDER BY created_at DESC
`
	if s.dialect == "postgres" {
		query = `
SELECT id, team_id, owner_id, kind, name, data, created_at, updated_at
FROM records
WHERE team_id = $1 AND kind = $2
ORDER BY created_at DESC
`
	}

	rows, err := s.db.QueryContext(ctx, query, owner.TeamID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}

	return result, rows.Err()
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) queryOne(ctx context.Context, query string, args ...any) (*Record, error) {
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, args...).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return record, nil
}

func scanRecord(scan func(...any) error) (*Record, error) {
	var record Record
	var dataJSON string
	err := scan(
		&record.ID, &record.TeamID, &record.OwnerID, &record.Kind, &record.Name,
		&dataJSON, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dataJSON != "" && dataJSON != "null" {
		if err := json.Unmarshal([]byte(dataJSON), &record.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}

	return &record, nil
}
