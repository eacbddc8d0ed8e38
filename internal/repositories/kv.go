package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"spoton/internal/shared"
)

// KVRepository stores string values under unique keys in sqlite. It backs
// both credential persistence and the pending state token.
//
// Get returns "" for an absent key, matching [statetoken.KV].
type KVRepository struct {
	db *sql.DB
}

// NewKVRepository creates a new [KVRepository] with the given database connection
func NewKVRepository(db *sql.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get retrieves the value stored under key, or "" when the key is absent
func (r *KVRepository) Get(ctx context.Context, key string) (string, error) {
	query := `
		SELECT value FROM kv WHERE key = ?
	`

	var value string
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query kv entry: %w", err)
	}

	return value, nil
}

// Set stores value under key, replacing any existing value
func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	now := time.Now()

	query := `
		INSERT INTO kv (id, key, value, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, shared.GenerateID(), key, value, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert kv entry: %w", err)
	}

	return nil
}

// Delete removes the entry stored under key. Deleting an absent key is not
// an error.
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	query := `
		DELETE FROM kv WHERE key = ?
	`

	_, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}

	return nil
}
