package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/aprendices-roster/internal/models"
)

// PostgresStore is the durable key-value store backed by client_storage.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs the store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the stored value and whether it exists.
func (s *PostgresStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	const query = `SELECT value FROM client_storage WHERE scope = $1 AND key = $2`
	var value string
	if err := s.db.GetContext(ctx, &value, query, scope, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get client storage %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value.
func (s *PostgresStore) Set(ctx context.Context, scope, key, value string) error {
	const query = `INSERT INTO client_storage (scope, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, query, scope, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set client storage %s: %w", key, err)
	}
	return nil
}

// Delete removes keys of a scope.
func (s *PostgresStore) Delete(ctx context.Context, scope string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM client_storage WHERE scope = ? AND key IN (?)`, scope, keys)
	if err != nil {
		return fmt.Errorf("build client storage delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("delete client storage: %w", err)
	}
	return nil
}

// Usage counts populated keys and stored bytes of a scope.
func (s *PostgresStore) Usage(ctx context.Context, scope string) (models.StoreUsage, error) {
	const query = `SELECT COUNT(*) AS items, COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) AS used FROM client_storage WHERE scope = $1`
	var row struct {
		Items int `db:"items"`
		Used  int `db:"used"`
	}
	if err := s.db.GetContext(ctx, &row, query, scope); err != nil {
		return models.StoreUsage{}, fmt.Errorf("client storage usage: %w", err)
	}
	return models.StoreUsage{Items: row.Items, Bytes: row.Used}, nil
}
