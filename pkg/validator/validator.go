// Package validator inspects a prompt store's SQLite schema for structural
// problems: circular foreign-key references, orphaned tables, unindexed
// foreign-key columns, and naming or typing drift. All checks are read-only;
// findings are human-readable strings, and only query failures are errors.
package validator

import (
	"database/sql"
	"fmt"
	"strings"
)

// ledgerTable is migration-runner infrastructure, not domain schema, and is
// excluded from every structural check.
const ledgerTable = "SchemaVersion"

// Validator runs structural checks against an open database handle. It never
// mutates schema or data.
type Validator struct {
	db *sql.DB
}

// New creates a Validator over an open database handle.
func New(db *sql.DB) *Validator {
	return &Validator{db: db}
}

// Validate runs every structural check and returns the combined findings in
// check order: circular references, orphaned tables, missing foreign-key
// indexes, schema conventions. An empty slice means the schema is clean.
func (v *Validator) Validate() ([]string, error) {
	findings := []string{}
	checks := []func() ([]string, error){
		v.CheckCircularReferences,
		v.CheckOrphanedTables,
		v.CheckIndexCoverage,
		v.CheckTableSchemas,
	}
	for _, check := range checks {
		results, err := check()
		if err != nil {
			return nil, err
		}
		findings = append(findings, results...)
	}
	return findings, nil
}

// Tables returns the user tables subject to validation, alphabetically,
// excluding SQLite internals and the migration ledger.
func (v *Validator) Tables() ([]string, error) {
	rows, err := v.db.Query(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> ?
		ORDER BY name`, ledgerTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over tables: %w", err)
	}
	return tables, nil
}

// CheckCircularReferences builds the foreign-key digraph and reports every
// dependency cycle exactly once, formatted "A -> B -> C -> A". Chains are
// deduplicated up to rotation, with the reported chain starting at the
// lexicographically smallest table.
func (v *Validator) CheckCircularReferences() ([]string, error) {
	tables, err := v.Tables()
	if err != nil {
		return nil, err
	}

	adjacency := make(map[string][]string, len(tables))
	for _, table := range tables {
		fks, err := v.foreignKeys(table)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, fk := range fks {
			if !seen[fk.RefTable] {
				seen[fk.RefTable] = true
				adjacency[table] = append(adjacency[table], fk.RefTable)
			}
		}
	}

	var findings []string
	reported := make(map[string]bool)
	visited := make(map[string]bool)
	onPath := make(map[string]int) // table -> index in the current path
	var path []string

	var walk func(table string)
	walk = func(table string) {
		onPath[table] = len(path)
		path = append(path, table)

		for _, ref := range adjacency[table] {
			if start, ok := onPath[ref]; ok {
				cycle := canonicalRotation(path[start:])
				key := strings.Join(cycle, "->")
				if !reported[key] {
					reported[key] = true
					chain := strings.Join(append(cycle, cycle[0]), " -> ")
					findings = append(findings, "Circular reference: "+chain)
				}
				continue
			}
			if !visited[ref] {
				walk(ref)
			}
		}

		path = path[:len(path)-1]
		delete(onPath, table)
		visited[table] = true
	}

	for _, table := range tables {
		if !visited[table] {
			walk(table)
		}
	}
	return findings, nil
}

// canonicalRotation rotates a cycle so it starts at its lexicographically
// smallest table, giving every rotation of the same cycle one canonical form.
func canonicalRotation(cycle []string) []string {
	smallest := 0
	for i, table := range cycle {
		if table < cycle[smallest] {
			smallest = i
		}
	}
	rotated := make([]string, 0, len(cycle))
	rotated = append(rotated, cycle[smallest:]...)
	rotated = append(rotated, cycle[:smallest]...)
	return rotated
}

// CheckOrphanedTables reports tables that neither declare a foreign key nor
// are referenced by any other table's foreign key.
func (v *Validator) CheckOrphanedTables() ([]string, error) {
	tables, err := v.Tables()
	if err != nil {
		return nil, err
	}

	connected := make(map[string]bool)
	for _, table := range tables {
		fks, err := v.foreignKeys(table)
		if err != nil {
			return nil, err
		}
		for _, fk := range fks {
			connected[table] = true
			connected[fk.RefTable] = true
		}
	}

	var findings []string
	for _, table := range tables {
		if !connected[table] {
			findings = append(findings, "Orphaned table: "+table)
		}
	}
	return findings, nil
}

// CheckIndexCoverage verifies that every foreign-key column leads at least
// one index on its table. SQLite's implicit UNIQUE and composite-PK indexes
// count as coverage.
func (v *Validator) CheckIndexCoverage() ([]string, error) {
	tables, err := v.Tables()
	if err != nil {
		return nil, err
	}

	var findings []string
	for _, table := range tables {
		fks, err := v.foreignKeys(table)
		if err != nil {
			return nil, err
		}
		if len(fks) == 0 {
			continue
		}
		leads, err := v.indexLeadColumns(table)
		if err != nil {
			return nil, err
		}
		for _, fk := range fks {
			if leads[fk.From] {
				continue
			}
			refColumn := fk.RefColumn
			if refColumn == "" {
				// FK declared against the referenced table's implicit PK.
				refColumn = "id"
			}
			findings = append(findings, fmt.Sprintf("Missing index on %s(%s) for FK to %s(%s)",
				table, fk.From, fk.RefTable, refColumn))
		}
	}
	return findings, nil
}

// CheckTableSchemas enforces the store's conventions: every table declares a
// primary key, column names stay snake_case, and id columns are INTEGER.
func (v *Validator) CheckTableSchemas() ([]string, error) {
	tables, err := v.Tables()
	if err != nil {
		return nil, err
	}

	var findings []string
	for _, table := range tables {
		columns, err := v.tableColumns(table)
		if err != nil {
			return nil, err
		}

		hasPK := false
		for _, col := range columns {
			if col.PK > 0 {
				hasPK = true
				break
			}
		}
		if !hasPK {
			findings = append(findings, fmt.Sprintf("Table %s has no PRIMARY KEY", table))
		}

		for _, col := range columns {
			if col.Name != strings.ToLower(col.Name) {
				findings = append(findings, fmt.Sprintf("Column %s.%s uses uppercase (should be snake_case)",
					table, col.Name))
			}
			isID := col.Name == "id" || strings.HasSuffix(col.Name, "_id")
			if isID && !strings.Contains(strings.ToUpper(col.Type), "INTEGER") {
				findings = append(findings, fmt.Sprintf("Column %s.%s is an ID but not INTEGER type",
					table, col.Name))
			}
		}
	}
	return findings, nil
}

// foreignKey is one row of PRAGMA foreign_key_list for a table.
type foreignKey struct {
	From      string // declaring column
	RefTable  string // referenced table
	RefColumn string // referenced column; empty when the FK targets the implicit PK
}

func (v *Validator) foreignKeys(table string) ([]foreignKey, error) {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var fks []foreignKey
	for rows.Next() {
		var id, seq int
		var refTable, from, onUpdate, onDelete, match string
		var to sql.NullString
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key of %s: %w", table, err)
		}
		fks = append(fks, foreignKey{From: from, RefTable: refTable, RefColumn: to.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over foreign keys of %s: %w", table, err)
	}
	return fks, nil
}

// indexLeadColumns returns the set of columns leading at least one index on
// the table.
func (v *Validator) indexLeadColumns(table string) (map[string]bool, error) {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA index_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("failed to scan index of %s: %w", table, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over indexes of %s: %w", table, err)
	}

	leads := make(map[string]bool, len(names))
	for _, name := range names {
		column, err := v.firstIndexColumn(name)
		if err != nil {
			return nil, err
		}
		if column != "" {
			leads[column] = true
		}
	}
	return leads, nil
}

// firstIndexColumn returns the name of an index's leading column, or "" for
// expression indexes.
func (v *Validator) firstIndexColumn(index string) (string, error) {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA index_info(%q)", index))
	if err != nil {
		return "", fmt.Errorf("failed to read index info of %s: %w", index, err)
	}
	defer rows.Close()

	first := ""
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return "", fmt.Errorf("failed to scan index info of %s: %w", index, err)
		}
		if seqno == 0 {
			first = name.String
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating over index info of %s: %w", index, err)
	}
	return first, nil
}

// column is one row of PRAGMA table_info for a table.
type column struct {
	Name string
	Type string
	PK   int
}

func (v *Validator) tableColumns(table string) ([]column, error) {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []column
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		columns = append(columns, column{Name: name, Type: colType, PK: pk})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over columns of %s: %w", table, err)
	}
	return columns, nil
}
