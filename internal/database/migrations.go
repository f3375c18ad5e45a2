package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migration is a versioned pair of up/down SQL scripts.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord is a row of the schema_migrations table.
type MigrationRecord struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// Migrator applies and rolls back schema migrations.
type Migrator struct {
	pool       *Pool
	migrations []Migration
}

// NewMigrator creates a Migrator with the feedback schema embedded in the binary.
func NewMigrator(pool *Pool) (*Migrator, error) {
	migrations, err := LoadMigrations(embeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return &Migrator{pool: pool, migrations: migrations}, nil
}

// Migrations returns the known migrations sorted by version.
func (m *Migrator) Migrations() []Migration {
	return m.migrations
}

// LoadMigrations reads NNN_name.up.sql / NNN_name.down.sql files from dir.
// Files that do not follow the naming scheme are ignored.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		version, name, direction, ok := parseMigrationFile(entry.Name())
		if !ok {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, m.Name, name)
		}

		if direction == "up" {
			m.UpSQL = string(content)
		} else {
			m.DownSQL = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %d (%s) has no up script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationFile splits "001_create_feedback.up.sql" into its parts.
func parseMigrationFile(filename string) (version int, name, direction string, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return 0, "", "", false
	}

	switch {
	case strings.HasSuffix(base, ".up"):
		direction = "up"
	case strings.HasSuffix(base, ".down"):
		direction = "down"
	default:
		return 0, "", "", false
	}
	base = strings.TrimSuffix(base, "."+direction)

	versionStr, name, found := strings.Cut(base, "_")
	if !found || name == "" {
		return 0, "", "", false
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil || version <= 0 {
		return 0, "", "", false
	}
	return version, name, direction, true
}

// EnsureMigrationsTable creates the migrations tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationsTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	return err
}

// AppliedMigrations returns the list of applied migrations.
func (m *Migrator) AppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := m.pool.Query(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		if err := rows.Scan(&r.Version, &r.Name, &r.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Up applies all pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, migration := range pendingMigrations(m.migrations, applied) {
		if err := m.apply(ctx, migration.Version, migration.Name, migration.UpSQL, true); err != nil {
			return count, fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		count++
	}
	return count, nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}

	last := applied[len(applied)-1]
	for _, migration := range m.migrations {
		if migration.Version == last.Version {
			return m.apply(ctx, migration.Version, migration.Name, migration.DownSQL, false)
		}
	}
	return fmt.Errorf("migration %d not found", last.Version)
}

// pendingMigrations returns known migrations missing from the applied records.
func pendingMigrations(known []Migration, applied []MigrationRecord) []Migration {
	done := make(map[int]bool, len(applied))
	for _, r := range applied {
		done[r.Version] = true
	}

	var pending []Migration
	for _, migration := range known {
		if !done[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending
}

// apply runs one script and updates the tracking table in a single transaction.
func (m *Migrator) apply(ctx context.Context, version int, name, script string, up bool) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if script != "" {
		if _, err := tx.Exec(ctx, script); err != nil {
			return fmt.Errorf("failed to execute SQL: %w", err)
		}
	}

	if up {
		_, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, version, name)
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
	}
	if err != nil {
		return fmt.Errorf("failed to update migration record: %w", err)
	}

	return tx.Commit(ctx)
}
