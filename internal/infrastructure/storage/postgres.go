package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"paperfeeder/internal/domain"
	"paperfeeder/internal/ports"
)

// PostgresRepository records delivered items so later runs can skip them.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ItemRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the delivered-items table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}

	query := `CREATE TABLE IF NOT EXISTS delivered_items (
        dedup_key TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        url TEXT NOT NULL,
        source TEXT NOT NULL,
        relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
        delivered_at TIMESTAMPTZ NOT NULL
    )`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// AlreadyDelivered returns a map with the keys that exist in storage.
func (r *PostgresRepository) AlreadyDelivered(ctx context.Context, keys []string) (map[string]bool, error) {
	if r.db == nil || len(keys) == 0 {
		return map[string]bool{}, nil
	}

	query := `SELECT dedup_key FROM delivered_items WHERE dedup_key = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.StringArray(keys))
	if err != nil {
		return nil, fmt.Errorf("query delivered: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		result[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// SaveDelivered upserts the delivered item snapshot.
func (r *PostgresRepository) SaveDelivered(ctx context.Context, item domain.Item, deliveredAt time.Time) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("delivered_items").
		Columns("dedup_key", "title", "url", "source", "relevance_score", "delivered_at").
		Values(item.DedupKey(), item.Title, item.URL, string(item.Source), item.RelevanceScore, deliveredAt).
		Suffix(`ON CONFLICT (dedup_key) DO UPDATE
            SET relevance_score = EXCLUDED.relevance_score,
                delivered_at = EXCLUDED.delivered_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert delivered: %w", err)
	}
	return nil
}
