package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-nft-indexer/internal/storage/postgres"
)

// migrationLockID serializes concurrent workers running migrations at startup.
const migrationLockID = 0x6e66745f696478

const createLedger = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// RunPostgresMigrations applies embedded migrations that schema_migrations
// has not recorded yet. Each file runs in its own transaction together with
// its ledger row. It returns the versions applied by this call.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	if err := ensureLedger(ctx, pool); err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range files {
		ok, err := applyPostgres(ctx, pool, m)
		if err != nil {
			return applied, err
		}
		if ok {
			applied = append(applied, m.version)
		}
	}
	return applied, nil
}

// ensureLedger creates schema_migrations under the migration lock;
// concurrent CREATE TABLE IF NOT EXISTS can still collide in the catalog.
func ensureLedger(ctx context.Context, pool *postgres.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema_migrations: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockMigrations(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, createLedger); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema_migrations: %w", err)
	}
	return nil
}

func lockMigrations(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(migrationLockID)); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	return nil
}

func applyPostgres(ctx context.Context, pool *postgres.Pool, m migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin migration %s: %w", m.version, err)
	}
	defer tx.Rollback(ctx)

	if err := lockMigrations(ctx, tx); err != nil {
		return false, err
	}

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.version, err)
	}
	if exists {
		return false, nil
	}

	// simple protocol so a file may hold several statements
	if _, err := tx.Exec(ctx, m.sql, pgx.QueryExecModeSimpleProtocol); err != nil {
		return false, fmt.Errorf("apply migration %s: %w", m.version, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
		return false, fmt.Errorf("record migration %s: %w", m.version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", m.version, err)
	}
	return true, nil
}
