package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"arcade-pot/internal/storage/postgres"
)

const createSchemaMigrations = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// RunPostgresMigrations applies embedded SQL files not yet recorded in
// schema_migrations, each in its own transaction.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(postgresFS, "postgres")
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaMigrations); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range files {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, m.name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil // already applied
			}
			_, err = tx.Exec(ctx, m.sql)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
