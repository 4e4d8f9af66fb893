package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/arklim/workspace-directory/internal/repository/postgres/migrations"
)

const (
	migrationTable = schema + ".schema_migrations"
	upMarker       = "-- +migrate Up"
	downMarker     = "-- +migrate Down"
)

type migrationRunner interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Migrate applies the embedded migrations in file name order, each at most once.
// It returns the names of the migrations applied by this call.
func Migrate(ctx context.Context, db migrationRunner) ([]string, error) {
	return applyMigrations(ctx, db, migrations.FS)
}

func applyMigrations(ctx context.Context, db migrationRunner, source fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	bootstrap := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, schema, migrationTable)
	if _, err := db.Exec(ctx, bootstrap); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, name := range files {
		var done bool
		if err := db.QueryRow(ctx, fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE name = $1)", migrationTable), name).Scan(&done); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", name, err)
		}
		if done {
			continue
		}

		content, err := fs.ReadFile(source, name)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}
		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		if err := applyOne(ctx, db, name, up); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}

	return applied, nil
}

func applyOne(ctx context.Context, db migrationRunner, name, up string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}

	if _, err := tx.Exec(ctx, up); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("exec migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (name) VALUES ($1) ON CONFLICT DO NOTHING", migrationTable), name); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

// upSection returns the SQL between the Up and Down markers.
func upSection(content string) string {
	start := strings.Index(content, upMarker)
	if start == -1 {
		return content
	}
	content = content[start+len(upMarker):]
	if end := strings.Index(content, downMarker); end != -1 {
		content = content[:end]
	}
	return content
}

func readEmbedded(name string) (string, error) {
	content, err := fs.ReadFile(migrations.FS, name)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
