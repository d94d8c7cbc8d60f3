package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// MigrationsFS is set by the migrations package to embed the SQL files into
// the binary.
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS containing migration
// files. "." means the files sit at the root of the embedded filesystem.
var MigrationsDir = "."

// Migration represents a single schema migration.
type Migration struct {
	// Version is extracted from the filename prefix.
	// Format: YYYYMMDD_HHMMSS (e.g. 20260830_120000).
	Version string

	// Name is the human-readable migration name from the filename.
	Name string

	// UpSQL is the SQL applied by this migration.
	UpSQL string
}

// MigrationRecord is a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Migrate applies all pending migrations in version order, each in its own
// transaction. If migration N fails, 1..N-1 stay committed, N is rolled
// back, and N+1 onwards are not attempted; re-running Migrate after fixing
// the problem continues from N.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := db.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w",
				migration.Version, migration.Name, err)
		}
	}
	return nil
}

// ensureMigrationsTable creates the schema_migrations bookkeeping table.
func (db *DB) ensureMigrationsTable(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	return nil
}

// appliedVersions returns the set of already-applied migration versions.
func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// applyMigration runs one migration inside a transaction and records it.
func (db *DB) applyMigration(ctx context.Context, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op if committed

	if _, err := tx.ExecContext(ctx, migration.UpSQL); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES (?)`, migration.Version); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	return tx.Commit()
}

// loadMigrations reads all *.up.sql files from MigrationsFS, sorted by
// version.
func loadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		migration, err := parseMigration(name)
		if err != nil {
			return nil, err
		}

		path := name
		if MigrationsDir != "." {
			path = MigrationsDir + "/" + name
		}
		data, err := fs.ReadFile(MigrationsFS, path)
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", name, err)
		}
		migration.UpSQL = string(data)
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigration extracts version and name from a migration filename.
// Expected format: YYYYMMDD_HHMMSS_description.up.sql.
func parseMigration(filename string) (Migration, error) {
	base := strings.TrimSuffix(filename, ".up.sql")
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 3 {
		return Migration{}, fmt.Errorf("invalid migration filename %q (want YYYYMMDD_HHMMSS_description.up.sql)", filename)
	}
	return Migration{
		Version: parts[0] + "_" + parts[1],
		Name:    parts[2],
	}, nil
}
