package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// promptColumns is the canonical select list for Prompts rows.
const promptColumns = "id, type, title, template, description, author, version, created_date, updated_date, category_id"

// PromptRepository provides CRUD access to the prompt catalog: prompts, their
// tags, urgency-level versions, and categories. Reads acquire a connection
// per statement; Save and Delete run inside a single transaction.
type PromptRepository struct {
	db *sql.DB
}

// NewPromptRepository creates a repository over an open database handle.
func NewPromptRepository(db *sql.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// GetByID fetches one prompt with its tags hydrated. A missing row is
// reported as (nil, false, nil), not as an error.
func (r *PromptRepository) GetByID(id int64) (*Prompt, bool, error) {
	row := r.db.QueryRow("SELECT "+promptColumns+" FROM Prompts WHERE id = ?", id)
	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get prompt %d: %w", id, err)
	}
	if err := r.loadTags(p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// GetByType fetches the prompt with the given business identifier. A missing
// row is reported as (nil, false, nil).
func (r *PromptRepository) GetByType(promptType string) (*Prompt, bool, error) {
	row := r.db.QueryRow("SELECT "+promptColumns+" FROM Prompts WHERE type = ?", promptType)
	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get prompt %q: %w", promptType, err)
	}
	if err := r.loadTags(p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// GetAll returns every prompt ordered by type, tags hydrated.
func (r *PromptRepository) GetAll() ([]*Prompt, error) {
	rows, err := r.db.Query("SELECT " + promptColumns + " FROM Prompts ORDER BY type")
	if err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over prompts: %w", err)
	}

	// Hydrate tags only after the row set is fully drained; the pool runs a
	// single connection.
	for _, p := range prompts {
		if err := r.loadTags(p); err != nil {
			return nil, err
		}
	}
	return prompts, nil
}

// Save validates and persists a prompt in one transaction. A zero ID inserts
// and backfills p.ID; a non-zero ID updates the existing row and fails if it
// vanished. Tag associations are rewritten wholesale to match p.Tags, with
// unknown tags created on the fly. Nothing is written when validation fails.
func (r *PromptRepository) Save(p *Prompt) (err error) {
	if err = p.Validate(); err != nil {
		return err
	}

	if p.Author == "" {
		p.Author = DefaultAuthor
	}
	if p.Version == "" {
		p.Version = DefaultVersion
	}
	now := time.Now().UTC()
	if p.CreatedDate.IsZero() {
		p.CreatedDate = now
	}
	p.UpdatedDate = now

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if p.ID == 0 {
		var res sql.Result
		res, err = tx.Exec(`
			INSERT INTO Prompts (type, title, template, description, author, version, created_date, updated_date, category_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Type, p.Title, p.Template, p.Description, p.Author, p.Version,
			p.CreatedDate, p.UpdatedDate, p.CategoryID)
		if err != nil {
			return fmt.Errorf("failed to insert prompt %q: %w", p.Type, err)
		}
		p.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read new prompt id: %w", err)
		}
	} else {
		var res sql.Result
		res, err = tx.Exec(`
			UPDATE Prompts
			SET type = ?, title = ?, template = ?, description = ?, author = ?, version = ?, updated_date = ?, category_id = ?
			WHERE id = ?`,
			p.Type, p.Title, p.Template, p.Description, p.Author, p.Version,
			p.UpdatedDate, p.CategoryID, p.ID)
		if err != nil {
			return fmt.Errorf("failed to update prompt %d: %w", p.ID, err)
		}
		var affected int64
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			err = fmt.Errorf("prompt %d not found", p.ID)
			return err
		}
	}

	// Associations are rewritten wholesale so the stored set matches p.Tags
	// exactly, including removals.
	if _, err = tx.Exec("DELETE FROM PromptTagAssociation WHERE prompt_id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to clear tag associations for prompt %d: %w", p.ID, err)
	}
	for _, name := range p.Tags {
		var tagID int64
		tagID, err = ensureTagTx(tx, name, "")
		if err != nil {
			return err
		}
		if _, err = tx.Exec(
			"INSERT OR IGNORE INTO PromptTagAssociation (prompt_id, tag_id) VALUES (?, ?)",
			p.ID, tagID); err != nil {
			return fmt.Errorf("failed to associate tag %q with prompt %d: %w", name, p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prompt %q: %w", p.Type, err)
	}
	return nil
}

// Delete removes a prompt by id. Foreign key cascades take the prompt's
// associations and versions with it. Returns false when no row existed.
func (r *PromptRepository) Delete(id int64) (bool, error) {
	res, err := r.db.Exec("DELETE FROM Prompts WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete prompt %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check delete result: %w", err)
	}
	return affected > 0, nil
}

// VersionsByPromptID returns a prompt's urgency-level snapshots ordered by
// level.
func (r *PromptRepository) VersionsByPromptID(promptID int64) ([]*PromptVersion, error) {
	rows, err := r.db.Query(`
		SELECT id, prompt_id, version_num, template, created_date, author
		FROM PromptVersions
		WHERE prompt_id = ?
		ORDER BY version_num`, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions for prompt %d: %w", promptID, err)
	}
	defer rows.Close()

	var versions []*PromptVersion
	for rows.Next() {
		var v PromptVersion
		var author sql.NullString
		if err := rows.Scan(&v.ID, &v.PromptID, &v.VersionNum, &v.Template, &v.CreatedDate, &author); err != nil {
			return nil, fmt.Errorf("failed to scan prompt version: %w", err)
		}
		v.Author = author.String
		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over prompt versions: %w", err)
	}
	return versions, nil
}

// SaveVersion upserts an urgency-level snapshot keyed on
// (prompt_id, version_num) and backfills v.ID.
func (r *PromptRepository) SaveVersion(v *PromptVersion) error {
	if v.VersionNum < UrgencyMin || v.VersionNum > UrgencyMax {
		return fmt.Errorf("version_num %d outside urgency range %d-%d", v.VersionNum, UrgencyMin, UrgencyMax)
	}
	if v.CreatedDate.IsZero() {
		v.CreatedDate = time.Now().UTC()
	}
	if v.Author == "" {
		v.Author = DefaultAuthor
	}

	_, err := r.db.Exec(`
		INSERT INTO PromptVersions (prompt_id, version_num, template, created_date, author)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(prompt_id, version_num) DO UPDATE SET
			template = excluded.template,
			created_date = excluded.created_date,
			author = excluded.author`,
		v.PromptID, v.VersionNum, v.Template, v.CreatedDate, v.Author)
	if err != nil {
		return fmt.Errorf("failed to save version %d of prompt %d: %w", v.VersionNum, v.PromptID, err)
	}

	if err := r.db.QueryRow(
		"SELECT id FROM PromptVersions WHERE prompt_id = ? AND version_num = ?",
		v.PromptID, v.VersionNum).Scan(&v.ID); err != nil {
		return fmt.Errorf("failed to read version id: %w", err)
	}
	return nil
}

// EnsureCategory returns the id of the named category, creating it first if
// necessary.
func (r *PromptRepository) EnsureCategory(name, description string) (int64, error) {
	var id int64
	err := r.db.QueryRow("SELECT id FROM Categories WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up category %q: %w", name, err)
	}

	res, err := r.db.Exec("INSERT INTO Categories (name, description) VALUES (?, ?)", name, description)
	if err != nil {
		return 0, fmt.Errorf("failed to create category %q: %w", name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new category id: %w", err)
	}
	return id, nil
}

// Categories returns all categories ordered by name.
func (r *PromptRepository) Categories() ([]*Category, error) {
	rows, err := r.db.Query("SELECT id, name, description FROM Categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var cats []*Category
	for rows.Next() {
		var c Category
		var desc sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Description = desc.String
		cats = append(cats, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over categories: %w", err)
	}
	return cats, nil
}

// LinkCategories records a parent-child edge in the category hierarchy.
// Linking a category to itself is rejected; re-linking an existing edge is a
// no-op.
func (r *PromptRepository) LinkCategories(parentID, childID int64) error {
	if parentID == childID {
		return fmt.Errorf("category %d cannot be its own parent", parentID)
	}
	if _, err := r.db.Exec(
		"INSERT OR IGNORE INTO CategoryHierarchy (parent_id, child_id) VALUES (?, ?)",
		parentID, childID); err != nil {
		return fmt.Errorf("failed to link categories %d -> %d: %w", parentID, childID, err)
	}
	return nil
}

// ChildCategories returns the direct children of a category, ordered by name.
func (r *PromptRepository) ChildCategories(parentID int64) ([]*Category, error) {
	rows, err := r.db.Query(`
		SELECT c.id, c.name, c.description
		FROM Categories c
		JOIN CategoryHierarchy ch ON c.id = ch.child_id
		WHERE ch.parent_id = ?
		ORDER BY c.name`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query child categories of %d: %w", parentID, err)
	}
	defer rows.Close()

	var cats []*Category
	for rows.Next() {
		var c Category
		var desc sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan child category: %w", err)
		}
		c.Description = desc.String
		cats = append(cats, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over child categories: %w", err)
	}
	return cats, nil
}

// loadTags hydrates p.Tags with the prompt's tag names in sorted order.
func (r *PromptRepository) loadTags(p *Prompt) error {
	rows, err := r.db.Query(`
		SELECT t.name
		FROM Tags t
		JOIN PromptTagAssociation pta ON t.id = pta.tag_id
		WHERE pta.prompt_id = ?
		ORDER BY t.name`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to query tags for prompt %d: %w", p.ID, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan tag name: %w", err)
		}
		tags = append(tags, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over tags: %w", err)
	}
	p.Tags = tags
	return nil
}

// ensureTagTx resolves a tag name to its id inside tx, creating the tag when
// it does not exist yet. New tags get a "<name> tag" description unless the
// caller supplies one.
func ensureTagTx(tx *sql.Tx, name, description string) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM Tags WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up tag %q: %w", name, err)
	}

	if description == "" {
		description = name + " tag"
	}
	res, err := tx.Exec("INSERT INTO Tags (name, description) VALUES (?, ?)", name, description)
	if err != nil {
		return 0, fmt.Errorf("failed to create tag %q: %w", name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new tag id: %w", err)
	}
	return id, nil
}

// scanPrompt reads one Prompts row from a row scanner. Tags are hydrated
// separately.
func scanPrompt(row interface{ Scan(dest ...any) error }) (*Prompt, error) {
	var p Prompt
	var description, author, version sql.NullString
	var categoryID sql.NullInt64
	err := row.Scan(&p.ID, &p.Type, &p.Title, &p.Template, &description, &author,
		&version, &p.CreatedDate, &p.UpdatedDate, &categoryID)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Author = author.String
	p.Version = version.String
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	return &p, nil
}
