package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationPattern matches the up scripts under db/migrations.
const MigrationPattern = "*_*.up.sql"

// ApplyMigrations executes every up migration in dir in lexical order. The scripts
// are written to be idempotent, so re-running them is safe.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, MigrationPattern))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migration files found in %s", dir)
	}
	sort.Strings(files)

	applied := make([]string, 0, len(files))
	for _, path := range files {
		payload, err := os.ReadFile(path)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", path, err)
		}
		if _, err := pool.Exec(ctx, string(payload)); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", path, err)
		}
		applied = append(applied, filepath.Base(path))
	}
	return applied, nil
}
