package persistence

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// DefaultMigrations returns the migration scripts compiled into the binary,
// rooted at the script directory.
func DefaultMigrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(err) // unreachable: the subdirectory name is a compile-time constant
	}
	return sub
}

// createLedgerSQL defines the append-only migration ledger. The runner owns
// this table; migration scripts never touch it.
const createLedgerSQL = `CREATE TABLE IF NOT EXISTS SchemaVersion (
	version INTEGER PRIMARY KEY,
	description TEXT,
	applied_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
)`

// Migration is one discovered schema script. Version comes from the leading
// "<N>_" token of the filename.
type Migration struct {
	Version int
	Name    string
}

// Runner applies ordered schema migrations and records each one in the
// SchemaVersion ledger atomically with the script it belongs to.
type Runner struct {
	db       *sql.DB
	fsys     fs.FS
	logger   *zap.Logger
	importFn func() error
}

// NewRunner returns a Runner reading scripts from fsys. Pass
// DefaultMigrations() for the embedded set or os.DirFS(dir) for scripts on
// disk.
func NewRunner(db *sql.DB, fsys fs.FS) *Runner {
	return &Runner{db: db, fsys: fsys, logger: zap.NewNop()}
}

// WithLogger attaches a logger for migration progress.
func (r *Runner) WithLogger(logger *zap.Logger) *Runner {
	r.logger = logger
	return r
}

// WithImporter registers the hook Initialize runs after migrating a fresh
// database when legacy conversion is requested.
func (r *Runner) WithImporter(fn func() error) *Runner {
	r.importFn = fn
	return r
}

// AppliedVersions returns the ascending list of migration versions recorded
// in the ledger. A database without a SchemaVersion table has no versions;
// the check is a pure read and never creates the table.
func (r *Runner) AppliedVersions() ([]int, error) {
	exists, err := r.ledgerExists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return []int{}, nil
	}

	rows, err := r.db.Query("SELECT version FROM SchemaVersion ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied versions: %w", err)
	}
	defer rows.Close()

	versions := []int{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan applied version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over applied versions: %w", err)
	}
	return versions, nil
}

func (r *Runner) ledgerExists() (bool, error) {
	var name string
	err := r.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'SchemaVersion'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check for schema ledger: %w", err)
	}
	return true, nil
}

// Discover lists the migration scripts available in the source, sorted
// ascending by version. Files without a numeric "<N>_" prefix are skipped
// with a warning.
func (r *Runner) Discover() ([]Migration, error) {
	names, err := fs.Glob(r.fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migration scripts: %w", err)
	}

	var migs []Migration
	for _, name := range names {
		version, ok := parseMigrationVersion(name)
		if !ok {
			r.logger.Warn("skipping migration script without numeric prefix", zap.String("file", name))
			continue
		}
		migs = append(migs, Migration{Version: version, Name: name})
	}

	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })
	return migs, nil
}

func parseMigrationVersion(name string) (int, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Apply runs a single migration script in one transaction and appends its
// ledger row inside that same transaction. A failed script rolls back
// entirely and leaves no ledger trace.
func (r *Runner) Apply(m Migration) (err error) {
	script, err := fs.ReadFile(r.fsys, m.Name)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", m.Name, err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(createLedgerSQL); err != nil {
		return fmt.Errorf("failed to ensure schema ledger: %w", err)
	}
	if _, err = tx.Exec(string(script)); err != nil {
		return fmt.Errorf("migration to version %d failed: %w", m.Version, err)
	}
	if _, err = tx.Exec(
		"INSERT INTO SchemaVersion (version, description) VALUES (?, ?)",
		m.Version, migrationDescription(m.Name),
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}

// migrationDescription turns "2_usage_tracking.sql" into "usage tracking".
func migrationDescription(name string) string {
	desc := strings.TrimSuffix(name, ".sql")
	if _, rest, found := strings.Cut(desc, "_"); found {
		desc = rest
	}
	return strings.ReplaceAll(desc, "_", " ")
}

// Initialize brings the database schema up to date. Pending migrations are
// applied strictly ascending; the first failure halts the pass, and later
// versions are not attempted. Already-applied versions are never re-run.
//
// When convertLegacy is true, the database had no applied migrations before
// this pass, and an importer hook is registered, the hook runs exactly once
// after every migration has succeeded.
func (r *Runner) Initialize(convertLegacy bool) error {
	applied, err := r.AppliedVersions()
	if err != nil {
		return err
	}
	wasFresh := len(applied) == 0

	available, err := r.Discover()
	if err != nil {
		return err
	}

	appliedSet := make(map[int]bool, len(applied))
	for _, v := range applied {
		appliedSet[v] = true
	}

	pending := 0
	for _, m := range available {
		if appliedSet[m.Version] {
			continue
		}
		r.logger.Info("applying migration",
			zap.Int("version", m.Version),
			zap.String("file", m.Name))
		if err := r.Apply(m); err != nil {
			return err
		}
		pending++
	}
	if pending == 0 {
		r.logger.Debug("schema up to date", zap.Int("applied", len(applied)))
	}

	if convertLegacy && wasFresh && r.importFn != nil {
		r.logger.Info("fresh database, running legacy import")
		if err := r.importFn(); err != nil {
			return fmt.Errorf("legacy import failed: %w", err)
		}
	}
	return nil
}
