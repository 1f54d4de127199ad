// Package sqlite keeps the credential record in a local sqlite database, one
// row per key.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Backend struct {
	db *sql.DB
}

// New opens the database at dsn and applies pending migrations.
func New(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}

	// A single connection serialises writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db}
	if err := b.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (s *Backend) Close() error { return s.db.Close() }

func (s *Backend) Get(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM credentials`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan credential row: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	return values, nil
}

// Put replaces every row in one transaction.
func (s *Backend) Put(ctx context.Context, values map[string]string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
			return fmt.Errorf("failed to clear credentials: %w", err)
		}

		now := time.Now().UTC()
		for key, value := range values {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)`,
				key, value, now,
			); err != nil {
				return fmt.Errorf("failed to insert credential %q: %w", key, err)
			}
		}
		return nil
	})
}

func (s *Backend) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success.
func (s *Backend) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
