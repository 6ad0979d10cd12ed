package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/aurzen/unearthedarcana/internal/ports"
)

const settingsTable = "community_settings"

// PostgresStore persists per-community settings in a single key/value
// table. Each key is written last-writer-wins; there is no multi-key
// transaction, matching what the delivery sequence tolerates.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ConfigStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects to Postgres, verifies the connection, and ensures the
// settings table exists.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := NewPostgresStore(db)
	if err := store.Ensure(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Ensure creates the settings table when it is absent.
func (s *PostgresStore) Ensure(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS community_settings (
        community  TEXT NOT NULL,
        key        TEXT NOT NULL,
        value      TEXT NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (community, key)
    )`)
	if err != nil {
		return fmt.Errorf("ensure settings table: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Get returns the value for (community, key), reporting absence distinctly
// from failure.
func (s *PostgresStore) Get(ctx context.Context, community, key string) (string, bool, error) {
	query, args, err := s.builder.
		Select("value").
		From(settingsTable).
		Where(sq.Eq{"community": community, "key": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build get query: %w", err)
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", community, key, err)
	}

	return value, true, nil
}

// Set upserts the value for (community, key).
func (s *PostgresStore) Set(ctx context.Context, community, key, value string) error {
	query, args, err := s.builder.
		Insert(settingsTable).
		Columns("community", "key", "value").
		Values(community, key, value).
		Suffix("ON CONFLICT (community, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build set query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set %s/%s: %w", community, key, err)
	}
	return nil
}

// Delete removes the value for (community, key); deleting an absent key
// is not an error.
func (s *PostgresStore) Delete(ctx context.Context, community, key string) error {
	query, args, err := s.builder.
		Delete(settingsTable).
		Where(sq.Eq{"community": community, "key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s/%s: %w", community, key, err)
	}
	return nil
}

// Communities lists every community with at least one stored setting.
func (s *PostgresStore) Communities(ctx context.Context) ([]string, error) {
	query, args, err := s.builder.
		Select("DISTINCT community").
		From(settingsTable).
		OrderBy("community").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build communities query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query communities: %w", err)
	}
	defer rows.Close()

	var communities []string
	for rows.Next() {
		var community string
		if err := rows.Scan(&community); err != nil {
			return nil, fmt.Errorf("scan community: %w", err)
		}
		communities = append(communities, community)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return communities, nil
}
