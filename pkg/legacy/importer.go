package legacy

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptstore/pkg/persistence"
)

// Result tallies one import batch: files converted into rows, files skipped
// because their prompt type already exists, and files that failed.
type Result struct {
	Converted int
	Skipped   int
	Failed    int
}

// Importer loads legacy prompt files into the store. Each file runs in its
// own transaction, so a bad file rolls back only its own rows and the batch
// continues.
type Importer struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewImporter creates an importer over an open database handle.
func NewImporter(db *sql.DB) *Importer {
	return &Importer{db: db, logger: zap.NewNop()}
}

// WithLogger attaches a logger for per-file progress and warnings.
func (im *Importer) WithLogger(logger *zap.Logger) *Importer {
	im.logger = logger
	return im
}

// ImportFS imports the named JSON files from fsys. A nil names slice imports
// every *.json file at the root of fsys, sorted by name.
func (im *Importer) ImportFS(fsys fs.FS, names []string) *Result {
	if names == nil {
		globbed, err := fs.Glob(fsys, "*.json")
		if err != nil {
			im.logger.Warn("failed to list prompt files", zap.Error(err))
			return &Result{}
		}
		sort.Strings(globbed)
		names = globbed
	}

	res := &Result{}
	for _, name := range names {
		file, err := ParsePromptFile(fsys, name)
		if err != nil {
			im.logger.Warn("failed to parse prompt file", zap.String("file", name), zap.Error(err))
			res.Failed++
			continue
		}
		im.importParsed(res, name, file)
	}
	return res
}

// ImportDirs imports the legacy JSON files found in the old and new prompt
// directories. When both hold a file with the same name, the new directory's
// copy wins. A missing directory contributes nothing.
func (im *Importer) ImportDirs(oldDir, newDir string) (*Result, error) {
	paths := make(map[string]string) // filename -> chosen full path
	for _, dir := range []string{oldDir, newDir} {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read legacy directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			// Later directories win; newDir is scanned last.
			paths[entry.Name()] = filepath.Join(dir, entry.Name())
		}
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	res := &Result{}
	for _, name := range names {
		data, err := os.ReadFile(paths[name])
		if err != nil {
			im.logger.Warn("failed to read prompt file", zap.String("path", paths[name]), zap.Error(err))
			res.Failed++
			continue
		}
		file, err := parsePromptData(name, data)
		if err != nil {
			im.logger.Warn("failed to parse prompt file", zap.String("file", name), zap.Error(err))
			res.Failed++
			continue
		}
		im.importParsed(res, name, file)
	}
	return res, nil
}

func (im *Importer) importParsed(res *Result, name string, file *PromptFile) {
	converted, err := im.importFile(file)
	if err != nil {
		im.logger.Warn("failed to import prompt file", zap.String("file", name), zap.Error(err))
		res.Failed++
		return
	}
	if converted {
		res.Converted++
	} else {
		res.Skipped++
	}
}

// importFile writes one parsed file's rows in a single transaction. Returns
// false without writing when the prompt type already exists.
func (im *Importer) importFile(file *PromptFile) (converted bool, err error) {
	for _, key := range file.SkippedLevels {
		im.logger.Warn("dropping urgency level outside 1-10",
			zap.String("type", file.Name), zap.String("level", key))
	}
	if len(file.Levels) == 0 {
		return false, fmt.Errorf("no usable urgency levels for %q", file.Name)
	}

	var existingID int64
	lookupErr := im.db.QueryRow("SELECT id FROM Prompts WHERE type = ?", file.Name).Scan(&existingID)
	if lookupErr == nil {
		im.logger.Debug("prompt type already present, skipping", zap.String("type", file.Name))
		return false, nil
	}
	if !errors.Is(lookupErr, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to check for existing prompt %q: %w", file.Name, lookupErr)
	}

	author := file.Author
	if author == "" {
		author = persistence.DefaultAuthor
	}
	version := file.Version
	if version == "" {
		version = persistence.DefaultVersion
	}
	title := file.Description
	if title == "" {
		title = capitalize(file.Name)
	}
	now := time.Now().UTC()

	tx, err := im.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.Exec(`
		INSERT INTO Prompts (type, title, template, description, author, version, created_date, updated_date, category_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.Name, title, file.RepresentativeTemplate(), title, author, version,
		now, now, persistence.DefaultCategoryID)
	if err != nil {
		return false, fmt.Errorf("failed to insert prompt %q: %w", file.Name, err)
	}
	var promptID int64
	promptID, err = res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read new prompt id: %w", err)
	}

	for _, lt := range file.Levels {
		if _, err = tx.Exec(`
			INSERT INTO PromptVersions (prompt_id, version_num, template, created_date, author)
			VALUES (?, ?, ?, ?, ?)`,
			promptID, lt.Level, lt.Template, now, author); err != nil {
			return false, fmt.Errorf("failed to insert version %d of %q: %w", lt.Level, file.Name, err)
		}
	}

	for _, tag := range file.Tags {
		var tagID int64
		tagID, err = ensureTag(tx, tag)
		if err != nil {
			return false, err
		}
		if _, err = tx.Exec(
			"INSERT OR IGNORE INTO PromptTagAssociation (prompt_id, tag_id) VALUES (?, ?)",
			promptID, tagID); err != nil {
			return false, fmt.Errorf("failed to tag prompt %q with %q: %w", file.Name, tag, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit prompt %q: %w", file.Name, err)
	}
	im.logger.Info("imported legacy prompt",
		zap.String("type", file.Name),
		zap.Int("levels", len(file.Levels)),
		zap.Int("tags", len(file.Tags)))
	return true, nil
}

// ensureTag resolves a tag name to its id inside tx, creating the tag with
// the legacy "<name> tag" description when absent.
func ensureTag(tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM Tags WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up tag %q: %w", name, err)
	}

	res, err := tx.Exec("INSERT INTO Tags (name, description) VALUES (?, ?)", name, name+" tag")
	if err != nil {
		return 0, fmt.Errorf("failed to create tag %q: %w", name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new tag id: %w", err)
	}
	return id, nil
}
