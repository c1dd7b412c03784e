package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapgov/pkg/core"
)

func encodeSchema(schema core.Schema) (sql.NullString, error) {
	if schema == nil {
		return sql.NullString{}, nil
	}
	data, err := schema.Canonical()
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode schema: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeSchema(raw sql.NullString) (core.Schema, error) {
	if !raw.Valid {
		return nil, nil
	}
	schema := core.Schema{}
	if err := json.Unmarshal([]byte(raw.String), &schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return schema, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Load implements core.SchemaStore.
func (s *Store) Load(ctx context.Context, name string) (*core.RegistryEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, name)
}

func (s *Store) load(ctx context.Context, q queryer, name string) (*core.RegistryEntry, error) {
	var (
		raw     sql.NullString
		version string
	)
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT schema_json, version FROM schema_registry WHERE dataset = ?`),
		name,
	).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schema for %s: %w", name, err)
	}

	schema, err := decodeSchema(raw)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	return &core.RegistryEntry{Schema: schema, Version: version}, nil
}

// Save implements core.SchemaStore. The entry is upserted and appended to the
// version history in one transaction.
func (s *Store) Save(ctx context.Context, name string, entry core.RegistryEntry) error {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.save(ctx, tx, name, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema for %s: %w", name, err)
	}
	s.logger.Debug("schema saved", slog.String("dataset", name), slog.String("version", entry.Version))
	return nil
}

// Update implements core.SchemaStore. The read and the write share one
// transaction. PostgreSQL serialises writers of the same dataset with a
// transaction-scoped advisory lock, which also covers datasets that have no
// row yet. SQLite transactions begin IMMEDIATE and so hold the write lock
// from the first statement.
func (s *Store) Update(ctx context.Context, name string, fn func(*core.RegistryEntry) (*core.RegistryEntry, error)) error {
	if err := s.ready(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.dialect == DialectPostgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, name); err != nil {
			return fmt.Errorf("failed to lock schema for %s: %w", name, err)
		}
	}

	current, err := s.load(ctx, tx, name)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	if err := s.save(ctx, tx, name, *next); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema for %s: %w", name, err)
	}
	s.logger.Debug("schema saved", slog.String("dataset", name), slog.String("version", next.Version))
	return nil
}

func (s *Store) save(ctx context.Context, q queryer, name string, entry core.RegistryEntry) error {
	raw, err := encodeSchema(entry.Schema)
	if err != nil {
		return err
	}
	now := s.now()

	_, err = q.ExecContext(ctx, s.rebind(`
		INSERT INTO schema_registry (dataset, schema_json, version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (dataset) DO UPDATE SET
			schema_json = excluded.schema_json,
			version = excluded.version,
			updated_at = excluded.updated_at
	`), name, raw, entry.Version, now)
	if err != nil {
		return fmt.Errorf("failed to save schema for %s: %w", name, err)
	}

	_, err = q.ExecContext(ctx, s.rebind(`
		INSERT INTO schema_versions (dataset, version, schema_json, recorded_at)
		VALUES (?, ?, ?, ?)
	`), name, entry.Version, raw, now)
	if err != nil {
		return fmt.Errorf("failed to record schema version for %s: %w", name, err)
	}
	return nil
}

// List implements core.SchemaStore.
func (s *Store) List(ctx context.Context) (map[string]core.RegistryEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT dataset, schema_json, version FROM schema_registry ORDER BY dataset`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := map[string]core.RegistryEntry{}
	for rows.Next() {
		var (
			name, version string
			raw           sql.NullString
		)
		if err := rows.Scan(&name, &raw, &version); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		schema, err := decodeSchema(raw)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", name, err)
		}
		entries[name] = core.RegistryEntry{Schema: schema, Version: version}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	return entries, nil
}

// History implements core.SchemaHistory. Versions are returned oldest first.
func (s *Store) History(ctx context.Context, name string) ([]core.SchemaVersion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT version, schema_json, recorded_at
		FROM schema_versions
		WHERE dataset = ?
		ORDER BY id
	`), name)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema history for %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	var versions []core.SchemaVersion
	for rows.Next() {
		v := core.SchemaVersion{Dataset: name}
		var raw sql.NullString
		if err := rows.Scan(&v.Version, &raw, &v.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schema version: %w", err)
		}
		if v.Schema, err = decodeSchema(raw); err != nil {
			return nil, fmt.Errorf("dataset %s version %s: %w", name, v.Version, err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query schema history for %s: %w", name, err)
	}
	return versions, nil
}
