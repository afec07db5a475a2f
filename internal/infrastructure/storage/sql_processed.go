package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"PulseIngest/internal/ports"
)

const processedTable = "processed_urls"

// SQLProcessedStore keeps the processed-URL set in a single-column table.
// Rows are only ever inserted; duplicate URLs are harmless.
type SQLProcessedStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.ProcessedStore = (*SQLProcessedStore)(nil)

// OpenSQLProcessedStore opens driver ("sqlite" or "postgres") and ensures the table exists.
func OpenSQLProcessedStore(ctx context.Context, driver, dsn string) (*SQLProcessedStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	store := NewSQLProcessedStore(db, driver)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLProcessedStore wires a sql.DB implementation.
func NewSQLProcessedStore(db *sql.DB, driver string) *SQLProcessedStore {
	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == "postgres" {
		placeholder = sq.Dollar
	}
	return &SQLProcessedStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     time.Now,
	}
}

// Migrate creates the table when missing.
func (s *SQLProcessedStore) Migrate(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS ` + processedTable + ` (
		url TEXT NOT NULL,
		processed_at TIMESTAMP NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", processedTable, err)
	}
	return nil
}

// Load returns every URL recorded so far.
func (s *SQLProcessedStore) Load(ctx context.Context) (map[string]struct{}, error) {
	query, args, err := s.builder.Select("url").From(processedTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}

	result := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan url: %w", err)
		}
		result[u] = struct{}{}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// Mark appends url to the set.
func (s *SQLProcessedStore) Mark(ctx context.Context, url string) error {
	query, args, err := s.builder.
		Insert(processedTable).
		Columns("url", "processed_at").
		Values(url, s.now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert processed: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLProcessedStore) Close() error {
	return s.db.Close()
}
