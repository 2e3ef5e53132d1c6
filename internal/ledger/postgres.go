package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XavierBriggs/Pythia/pkg/models"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS api_usage (
		month         TEXT PRIMARY KEY,
		count         INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
		last_api_call TIMESTAMPTZ,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresStore keeps one row per month.
// Increments are a single upsert, so the database serializes concurrent writers.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed usage store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the api_usage table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create api_usage table: %w", err)
	}
	return nil
}

// Get reads the month's row
func (s *PostgresStore) Get(ctx context.Context, month string) (*models.UsageRecord, error) {
	query := `
		SELECT month, count, last_api_call
		FROM api_usage
		WHERE month = $1
	`

	record, err := scanUsage(s.db.QueryRowContext(ctx, query, month))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query api_usage: %w", err)
	}
	return record, nil
}

// Increment upserts the month's row and returns the new count
func (s *PostgresStore) Increment(ctx context.Context, month string, at time.Time) (int, error) {
	query := `
		INSERT INTO api_usage (month, count, last_api_call, updated_at)
		VALUES ($1, 1, $2, $2)
		ON CONFLICT (month)
		DO UPDATE SET
			count = api_usage.count + 1,
			last_api_call = EXCLUDED.last_api_call,
			updated_at = EXCLUDED.updated_at
		RETURNING count
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, month, at).Scan(&count); err != nil {
		return 0, fmt.Errorf("upsert api_usage: %w", err)
	}
	return count, nil
}

// Recent returns rows ordered by month descending
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]models.UsageRecord, error) {
	query := `
		SELECT month, count, last_api_call
		FROM api_usage
		ORDER BY month DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query api_usage history: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		record, err := scanUsage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api_usage: %w", err)
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUsage(row rowScanner) (*models.UsageRecord, error) {
	var (
		record   models.UsageRecord
		lastCall sql.NullTime
	)
	if err := row.Scan(&record.Month, &record.Count, &lastCall); err != nil {
		return nil, err
	}
	if lastCall.Valid {
		t := lastCall.Time
		record.LastAPICall = &t
	}
	return &record, nil
}
