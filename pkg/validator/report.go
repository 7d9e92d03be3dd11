package validator

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RequiredTables lists every table a fully migrated store must contain.
var RequiredTables = []string{
	"Prompts",
	"Tags",
	"PromptTagAssociation",
	"Categories",
	"CategoryHierarchy",
	"PromptVersions",
	"PromptUsage",
	"PromptScores",
	"LlmModels",
	"Benchmarks",
	"BenchmarkResults",
	"DocumentationContext",
}

// RequiredIndices lists the hot-path indices the store relies on.
var RequiredIndices = []string{
	"idx_prompts_type",
	"idx_prompts_category",
	"idx_prompt_tag_prompt_id",
	"idx_prompt_tag_tag_id",
}

const defaultTimingIterations = 5

// CheckRequiredSchema verifies the presence of every required table and
// index and runs SQLite's foreign-key consistency sweep. Every line carries
// an ASCII "[OK]" or "[FAIL]" marker; "[FAIL]" lines count as issues.
func (v *Validator) CheckRequiredSchema() ([]string, error) {
	tables, err := v.namesOf("table")
	if err != nil {
		return nil, err
	}
	indices, err := v.namesOf("index")
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, table := range RequiredTables {
		if tables[table] {
			lines = append(lines, fmt.Sprintf("[OK] Table %s exists", table))
		} else {
			lines = append(lines, fmt.Sprintf("[FAIL] Table %s missing", table))
		}
	}
	for _, index := range RequiredIndices {
		if indices[index] {
			lines = append(lines, fmt.Sprintf("[OK] Index %s exists", index))
		} else {
			lines = append(lines, fmt.Sprintf("[FAIL] Index %s missing", index))
		}
	}

	violations, err := v.foreignKeyViolations()
	if err != nil {
		return nil, err
	}
	if len(violations) == 0 {
		lines = append(lines, "[OK] Foreign key check passed")
	} else {
		lines = append(lines, violations...)
	}
	return lines, nil
}

func (v *Validator) namesOf(kind string) (map[string]bool, error) {
	rows, err := v.db.Query(
		"SELECT name FROM sqlite_master WHERE type = ? AND name NOT LIKE 'sqlite_%'", kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema objects: %w", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan schema object name: %w", err)
		}
		names[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over schema objects: %w", err)
	}
	return names, nil
}

// foreignKeyViolations runs PRAGMA foreign_key_check and formats one [FAIL]
// line per violating row.
func (v *Validator) foreignKeyViolations() ([]string, error) {
	rows, err := v.db.Query("PRAGMA foreign_key_check")
	if err != nil {
		return nil, fmt.Errorf("failed to run foreign key check: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var table, parent string
		var rowid, fkid sql.NullInt64
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key violation: %w", err)
		}
		lines = append(lines, fmt.Sprintf("[FAIL] Foreign key violation in %s (row %d) referencing %s",
			table, rowid.Int64, parent))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over foreign key violations: %w", err)
	}
	return lines, nil
}

// QueryTiming is the measured average latency of one canned catalog query.
// Err is set when the query could not run at all; timings are informational
// and never fail the validation.
type QueryTiming struct {
	Name      string
	AvgMillis float64
	Err       string
}

// MeasureQueryTimings times the canned catalog queries, averaging each over
// the given number of iterations (defaulting to 5 when non-positive). The
// queries only read.
func (v *Validator) MeasureQueryTimings(iterations int) []QueryTiming {
	if iterations <= 0 {
		iterations = defaultTimingIterations
	}

	canned := []struct {
		name  string
		query string
	}{
		{"prompt lookup by type", "SELECT id, title FROM Prompts WHERE type = 'research'"},
		{"prompts with category", "SELECT p.id, c.name FROM Prompts p LEFT JOIN Categories c ON p.category_id = c.id"},
		{"tags per prompt", "SELECT p.type, t.name FROM Prompts p JOIN PromptTagAssociation pta ON p.id = pta.prompt_id JOIN Tags t ON pta.tag_id = t.id"},
		{"usage rollup", "SELECT prompt_id, COUNT(*) FROM PromptUsage GROUP BY prompt_id"},
	}

	timings := make([]QueryTiming, 0, len(canned))
	for _, c := range canned {
		timing := QueryTiming{Name: c.name}
		start := time.Now()
		for i := 0; i < iterations; i++ {
			if err := v.drainQuery(c.query); err != nil {
				timing.Err = err.Error()
				break
			}
		}
		if timing.Err == "" {
			elapsed := time.Since(start)
			timing.AvgMillis = elapsed.Seconds() * 1000 / float64(iterations)
		}
		timings = append(timings, timing)
	}
	return timings
}

func (v *Validator) drainQuery(query string) error {
	rows, err := v.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// Report aggregates everything the validate command produces for one
// database: required-schema lines, structural findings, and query timings.
type Report struct {
	DatabasePath string
	GeneratedAt  time.Time
	SchemaLines  []string
	Issues       []string
	Timings      []QueryTiming
}

// BuildReport runs the full validation suite against db and assembles the
// report. Only query or connection failures return an error; findings land
// in the report.
func BuildReport(db *sql.DB, dbPath string) (*Report, error) {
	v := New(db)

	schemaLines, err := v.CheckRequiredSchema()
	if err != nil {
		return nil, err
	}
	issues, err := v.Validate()
	if err != nil {
		return nil, err
	}

	return &Report{
		DatabasePath: dbPath,
		GeneratedAt:  time.Now().UTC(),
		SchemaLines:  schemaLines,
		Issues:       issues,
		Timings:      v.MeasureQueryTimings(defaultTimingIterations),
	}, nil
}

// IssueCount is the number of structural issues plus failed schema lines.
func (r *Report) IssueCount() int {
	count := len(r.Issues)
	for _, line := range r.SchemaLines {
		if strings.HasPrefix(line, "[FAIL]") {
			count++
		}
	}
	return count
}

// Passed reports whether the database validated clean.
func (r *Report) Passed() bool {
	return r.IssueCount() == 0
}

// Markdown renders the report document. Output is plain ASCII so it survives
// constrained terminals and CI artifacts.
func (r *Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# Database Schema Validation Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Database: %s\n\n", r.DatabasePath)

	b.WriteString("## Schema Validation Results\n\n")
	for _, line := range r.SchemaLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	b.WriteString("## Structural Issues\n\n")
	if len(r.Issues) == 0 {
		b.WriteString("No structural issues found.\n")
	} else {
		for _, issue := range r.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	b.WriteByte('\n')

	b.WriteString("## Performance Test Results\n\n")
	b.WriteString("| Query | Avg Time (ms) |\n")
	b.WriteString("|-------|---------------|\n")
	for _, t := range r.Timings {
		if t.Err != "" {
			fmt.Fprintf(&b, "| %s | ERROR: %s |\n", t.Name, t.Err)
			continue
		}
		fmt.Fprintf(&b, "| %s | %.3f |\n", t.Name, t.AvgMillis)
	}
	b.WriteByte('\n')

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "Issues found: %d\n", r.IssueCount())
	if r.Passed() {
		b.WriteString("Overall: PASS\n")
	} else {
		b.WriteString("Overall: FAIL\n")
	}
	return b.String()
}

// Write renders the report to path, creating parent directories as needed.
func (r *Report) Write(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(r.Markdown()), 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// DefaultReportPath places the report file beside the database it describes.
func DefaultReportPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "schema_validation_report.md")
}
