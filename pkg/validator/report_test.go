package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRequiredSchemaCleanStore(t *testing.T) {
	v := New(openMigrated(t))

	lines, err := v.CheckRequiredSchema()
	require.NoError(t, err)

	// Every required table and index, plus the foreign key sweep.
	require.Len(t, lines, len(RequiredTables)+len(RequiredIndices)+1)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "[OK]"), "unexpected line %q", line)
	}
	assert.Contains(t, lines, "[OK] Table Prompts exists")
	assert.Contains(t, lines, "[OK] Index idx_prompts_type exists")
	assert.Contains(t, lines, "[OK] Foreign key check passed")
}

func TestCheckRequiredSchemaEmptyDatabase(t *testing.T) {
	v := New(openScratch(t, "CREATE TABLE unrelated (id INTEGER PRIMARY KEY);"))

	lines, err := v.CheckRequiredSchema()
	require.NoError(t, err)

	fails := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "[FAIL]") {
			fails++
		}
	}
	assert.Equal(t, len(RequiredTables)+len(RequiredIndices), fails)
	assert.Contains(t, lines, "[FAIL] Table Prompts missing")
	assert.Contains(t, lines, "[FAIL] Index idx_prompt_tag_tag_id missing")
}

func TestCheckRequiredSchemaReportsForeignKeyViolations(t *testing.T) {
	db := openMigrated(t)

	// Sneak a violating row in with enforcement off; the pool holds a single
	// connection, so the pragma applies to the one that matters.
	_, err := db.Exec("PRAGMA foreign_keys = OFF")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO PromptUsage (prompt_id, session_uuid) VALUES (999, 'orphan-session')")
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	lines, err := New(db).CheckRequiredSchema()
	require.NoError(t, err)

	var violation string
	for _, line := range lines {
		if strings.Contains(line, "Foreign key violation") {
			violation = line
			break
		}
	}
	require.NotEmpty(t, violation, "no violation line in %v", lines)
	assert.True(t, strings.HasPrefix(violation, "[FAIL]"))
	assert.Contains(t, violation, "PromptUsage")
	assert.Contains(t, violation, "referencing Prompts")
	assert.NotContains(t, lines, "[OK] Foreign key check passed")
}

func TestMeasureQueryTimings(t *testing.T) {
	v := New(openMigrated(t))

	timings := v.MeasureQueryTimings(2)
	require.Len(t, timings, 4)
	for _, timing := range timings {
		assert.Empty(t, timing.Err, "query %q failed", timing.Name)
		assert.GreaterOrEqual(t, timing.AvgMillis, 0.0)
	}

	names := make([]string, 0, len(timings))
	for _, timing := range timings {
		names = append(names, timing.Name)
	}
	assert.Contains(t, names, "prompt lookup by type")
	assert.Contains(t, names, "usage rollup")
}

func TestMeasureQueryTimingsRecordsErrors(t *testing.T) {
	v := New(openScratch(t, "CREATE TABLE unrelated (id INTEGER PRIMARY KEY);"))

	timings := v.MeasureQueryTimings(1)
	require.Len(t, timings, 4)
	for _, timing := range timings {
		assert.NotEmpty(t, timing.Err, "query %q should fail without the schema", timing.Name)
	}
}

func TestBuildReportCleanStore(t *testing.T) {
	db := openMigrated(t)

	report, err := BuildReport(db, "store.db")
	require.NoError(t, err)

	assert.True(t, report.Passed())
	assert.Equal(t, 0, report.IssueCount())
	assert.Equal(t, "store.db", report.DatabasePath)
	assert.False(t, report.GeneratedAt.IsZero())

	md := report.Markdown()
	assert.Contains(t, md, "# Database Schema Validation Report")
	assert.Contains(t, md, "## Schema Validation Results")
	assert.Contains(t, md, "## Structural Issues")
	assert.Contains(t, md, "No structural issues found.")
	assert.Contains(t, md, "## Performance Test Results")
	assert.Contains(t, md, "## Summary")
	assert.Contains(t, md, "Issues found: 0")
	assert.Contains(t, md, "Overall: PASS")
}

func TestBuildReportBrokenStore(t *testing.T) {
	db := openScratch(t, "CREATE TABLE loner (id INTEGER PRIMARY KEY, note TEXT);")

	report, err := BuildReport(db, "broken.db")
	require.NoError(t, err)

	assert.False(t, report.Passed())
	assert.Contains(t, report.Issues, "Orphaned table: loner")

	md := report.Markdown()
	assert.Contains(t, md, "Overall: FAIL")
	assert.Contains(t, md, "- Orphaned table: loner")
	assert.Contains(t, md, "ERROR")
}

func TestIssueCountCombinesSources(t *testing.T) {
	report := &Report{
		SchemaLines: []string{
			"[OK] Table Prompts exists",
			"[FAIL] Table Tags missing",
			"[FAIL] Index idx_prompts_type missing",
		},
		Issues: []string{"Orphaned table: loner"},
	}
	assert.Equal(t, 3, report.IssueCount())
	assert.False(t, report.Passed())
}

func TestReportWriteCreatesDirectories(t *testing.T) {
	report := &Report{
		DatabasePath: "store.db",
		GeneratedAt:  time.Now().UTC(),
		SchemaLines:  []string{"[OK] Table Prompts exists"},
	}

	path := filepath.Join(t.TempDir(), "reports", "nested", "validation.md")
	require.NoError(t, report.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Database Schema Validation Report")
	assert.Contains(t, string(data), "Database: store.db")
}

func TestDefaultReportPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("data", "schema_validation_report.md"),
		DefaultReportPath(filepath.Join("data", "prompts.db")))
	assert.Equal(t, "schema_validation_report.md", DefaultReportPath("prompts.db"))
}
