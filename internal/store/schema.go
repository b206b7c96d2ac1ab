package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion tracks the layout defined in schema.sql. Bump it whenever the
// layout changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an incompatible
// release.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// initSchema applies the schema to a fresh database and verifies the recorded
// version on an existing one.
func (s *Store) initSchema(ctx context.Context) error {
	version, err := s.currentVersion(ctx)
	if err != nil {
		return err
	}

	switch version {
	case 0:
		return s.applySchema(ctx)
	case schemaVersion:
		return nil
	default:
		return fmt.Errorf("%w: found %d, want %d (remove %s to start fresh)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
}

// currentVersion reports the recorded schema version, or 0 for a database
// that has no schema yet.
func (s *Store) currentVersion(ctx context.Context) (int, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("inspect schema: %w", err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) applySchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
