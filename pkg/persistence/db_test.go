package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesParentDirectories(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "store.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		t.Errorf("parent directory was not created: %v", err)
	}
}

func TestOpenEnforcesForeignKeys(t *testing.T) {
	db := createTestDB(t)

	// Prompts.category_id references Categories; a bogus id must be refused.
	_, err := db.Exec(`
		INSERT INTO Prompts (type, title, template, category_id)
		VALUES ('fk-probe', 'FK probe', 'body', 99999)`)
	if err == nil {
		t.Fatal("expected foreign key violation, got nil error")
	}
}

func TestInitializeDatabaseAppliesAllMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store.db")

	db, err := InitializeDatabase(dbPath)
	if err != nil {
		t.Fatalf("InitializeDatabase failed: %v", err)
	}
	defer db.Close()

	versions, err := NewRunner(db, DefaultMigrations()).AppliedVersions()
	if err != nil {
		t.Fatalf("AppliedVersions failed: %v", err)
	}
	want := []int{1, 2, 3, 4}
	if len(versions) != len(want) {
		t.Fatalf("applied versions = %v, want %v", versions, want)
	}
	for i, v := range want {
		if versions[i] != v {
			t.Errorf("applied versions = %v, want %v", versions, want)
			break
		}
	}

	// The initial migration seeds the default category.
	var name string
	if err := db.QueryRow("SELECT name FROM Categories WHERE id = ?", DefaultCategoryID).Scan(&name); err != nil {
		t.Fatalf("default category missing: %v", err)
	}
	if name != "General" {
		t.Errorf("default category = %q, want %q", name, "General")
	}
}

func TestInitializeDatabaseIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store.db")

	db, err := InitializeDatabase(dbPath)
	if err != nil {
		t.Fatalf("first InitializeDatabase failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO Prompts (type, title, template) VALUES ('keep', 'Keep', 'body')"); err != nil {
		t.Fatalf("failed to insert marker row: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close database: %v", err)
	}

	db, err = InitializeDatabase(dbPath)
	if err != nil {
		t.Fatalf("second InitializeDatabase failed: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM Prompts WHERE type = 'keep'").Scan(&count); err != nil {
		t.Fatalf("failed to count marker rows: %v", err)
	}
	if count != 1 {
		t.Errorf("marker row count = %d, want 1", count)
	}
}
