package persistence

import (
	"errors"
	"strings"
	"testing"
)

func TestSaveInsertAndGetByID(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	p := &Prompt{
		Type:     "research",
		Title:    "Research Assistant",
		Template: "Research {topic} and summarize the findings.",
		Tags:     []string{"research", "analysis"},
	}
	if err := repo.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("Save did not backfill the prompt id")
	}
	if p.Author != DefaultAuthor {
		t.Errorf("author = %q, want default %q", p.Author, DefaultAuthor)
	}
	if p.Version != DefaultVersion {
		t.Errorf("version = %q, want default %q", p.Version, DefaultVersion)
	}
	if p.CreatedDate.IsZero() || p.UpdatedDate.IsZero() {
		t.Error("Save did not stamp created/updated dates")
	}

	got, found, err := repo.GetByID(p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !found {
		t.Fatal("GetByID did not find the saved prompt")
	}
	if got.Type != p.Type || got.Title != p.Title || got.Template != p.Template {
		t.Errorf("got %+v, want %+v", got, p)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "analysis" || got.Tags[1] != "research" {
		t.Errorf("tags = %v, want [analysis research]", got.Tags)
	}
}

func TestSaveUpdateRewritesTags(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	p := &Prompt{
		Type:     "development",
		Title:    "Dev Helper",
		Template: "Write {language} code.",
		Tags:     []string{"coding", "development"},
	}
	if err := repo.Save(p); err != nil {
		t.Fatalf("initial Save failed: %v", err)
	}
	created := p.CreatedDate

	p.Title = "Development Helper"
	p.Tags = []string{"coding", "review"}
	if err := repo.Save(p); err != nil {
		t.Fatalf("update Save failed: %v", err)
	}

	got, found, err := repo.GetByID(p.ID)
	if err != nil || !found {
		t.Fatalf("GetByID failed: found=%v err=%v", found, err)
	}
	if got.Title != "Development Helper" {
		t.Errorf("title = %q, want updated value", got.Title)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "coding" || got.Tags[1] != "review" {
		t.Errorf("tags = %v, want [coding review]", got.Tags)
	}
	if !got.CreatedDate.Equal(created) {
		t.Errorf("created date changed on update: %v -> %v", created, got.CreatedDate)
	}

	// The dropped tag keeps its Tags row; only the association goes away.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM Tags WHERE name = 'development'").Scan(&count); err != nil {
		t.Fatalf("failed to count tags: %v", err)
	}
	if count != 1 {
		t.Errorf("dropped tag rows = %d, want 1", count)
	}
}

func TestSaveRejectsIncompletePrompt(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	err := repo.Save(&Prompt{Type: "  ", Title: "Has Title", Template: ""})
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(verr.Fields) != 2 || verr.Fields[0] != "type" || verr.Fields[1] != "template" {
		t.Errorf("missing fields = %v, want [type template]", verr.Fields)
	}

	// Nothing may have been written.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM Prompts").Scan(&count); err != nil {
		t.Fatalf("failed to count prompts: %v", err)
	}
	if count != 0 {
		t.Errorf("prompt rows after rejected save = %d, want 0", count)
	}
}

func TestSaveUpdateOfVanishedPrompt(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	p := &Prompt{ID: 9999, Type: "ghost", Title: "Ghost", Template: "gone"}
	err := repo.Save(p)
	if err == nil {
		t.Fatal("expected error updating a nonexistent prompt")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want mention of not found", err)
	}
}

func TestGetByTypeMissing(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	p, found, err := repo.GetByType("nonexistent")
	if err != nil {
		t.Fatalf("GetByType failed: %v", err)
	}
	if found || p != nil {
		t.Errorf("found=%v p=%v, want miss", found, p)
	}
}

func TestGetAllOrdersByType(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	for _, typ := range []string{"zeta", "alpha", "mid"} {
		p := &Prompt{Type: typ, Title: strings.ToUpper(typ), Template: "body"}
		if err := repo.Save(p); err != nil {
			t.Fatalf("Save %q failed: %v", typ, err)
		}
	}

	prompts, err := repo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(prompts) != 3 {
		t.Fatalf("GetAll returned %d prompts, want 3", len(prompts))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, p := range prompts {
		if p.Type != want[i] {
			t.Errorf("prompt %d type = %q, want %q", i, p.Type, want[i])
		}
	}
}

func TestDeleteCascades(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	p := &Prompt{Type: "doomed", Title: "Doomed", Template: "body", Tags: []string{"transient"}}
	if err := repo.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	v := &PromptVersion{PromptID: p.ID, VersionNum: 5, Template: "level five"}
	if err := repo.SaveVersion(v); err != nil {
		t.Fatalf("SaveVersion failed: %v", err)
	}

	deleted, err := repo.Delete(p.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Fatal("Delete reported no row removed")
	}

	var versions, associations int
	if err := db.QueryRow("SELECT COUNT(*) FROM PromptVersions WHERE prompt_id = ?", p.ID).Scan(&versions); err != nil {
		t.Fatalf("failed to count versions: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM PromptTagAssociation WHERE prompt_id = ?", p.ID).Scan(&associations); err != nil {
		t.Fatalf("failed to count associations: %v", err)
	}
	if versions != 0 || associations != 0 {
		t.Errorf("after delete: versions=%d associations=%d, want 0/0", versions, associations)
	}

	deleted, err = repo.Delete(p.ID)
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if deleted {
		t.Error("second Delete reported a row removed")
	}
}

func TestSaveVersionUpsert(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	p := &Prompt{Type: "versioned", Title: "Versioned", Template: "base"}
	if err := repo.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	first := &PromptVersion{PromptID: p.ID, VersionNum: 7, Template: "old body"}
	if err := repo.SaveVersion(first); err != nil {
		t.Fatalf("first SaveVersion failed: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("SaveVersion did not backfill the version id")
	}

	second := &PromptVersion{PromptID: p.ID, VersionNum: 7, Template: "new body"}
	if err := repo.SaveVersion(second); err != nil {
		t.Fatalf("second SaveVersion failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert changed the row id: %d -> %d", first.ID, second.ID)
	}

	versions, err := repo.VersionsByPromptID(p.ID)
	if err != nil {
		t.Fatalf("VersionsByPromptID failed: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("version rows = %d, want 1", len(versions))
	}
	if versions[0].Template != "new body" {
		t.Errorf("template = %q, want the upserted body", versions[0].Template)
	}
	if versions[0].Author != DefaultAuthor {
		t.Errorf("author = %q, want default %q", versions[0].Author, DefaultAuthor)
	}
}

func TestSaveVersionRejectsOutOfRangeUrgency(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	p := &Prompt{Type: "ranged", Title: "Ranged", Template: "base"}
	if err := repo.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for _, level := range []int{0, 11, -3} {
		v := &PromptVersion{PromptID: p.ID, VersionNum: level, Template: "body"}
		if err := repo.SaveVersion(v); err == nil {
			t.Errorf("SaveVersion accepted urgency %d", level)
		}
	}
}

func TestVersionsByPromptIDOrdersByLevel(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	p := &Prompt{Type: "ordered", Title: "Ordered", Template: "base"}
	if err := repo.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for _, level := range []int{9, 2, 5} {
		v := &PromptVersion{PromptID: p.ID, VersionNum: level, Template: "body"}
		if err := repo.SaveVersion(v); err != nil {
			t.Fatalf("SaveVersion %d failed: %v", level, err)
		}
	}

	versions, err := repo.VersionsByPromptID(p.ID)
	if err != nil {
		t.Fatalf("VersionsByPromptID failed: %v", err)
	}
	want := []int{2, 5, 9}
	if len(versions) != len(want) {
		t.Fatalf("version rows = %d, want %d", len(versions), len(want))
	}
	for i, v := range versions {
		if v.VersionNum != want[i] {
			t.Errorf("version %d level = %d, want %d", i, v.VersionNum, want[i])
		}
	}
}

func TestEnsureCategoryIsIdempotent(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	first, err := repo.EnsureCategory("Engineering", "Technical prompts")
	if err != nil {
		t.Fatalf("first EnsureCategory failed: %v", err)
	}
	second, err := repo.EnsureCategory("Engineering", "ignored on lookup")
	if err != nil {
		t.Fatalf("second EnsureCategory failed: %v", err)
	}
	if first != second {
		t.Errorf("EnsureCategory ids differ: %d vs %d", first, second)
	}

	cats, err := repo.Categories()
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	// The migration seeds "General"; we added one more.
	if len(cats) != 2 {
		t.Fatalf("categories = %d, want 2", len(cats))
	}
	if cats[0].Name != "Engineering" || cats[1].Name != "General" {
		t.Errorf("category order = [%s %s], want [Engineering General]", cats[0].Name, cats[1].Name)
	}
}

func TestLinkCategories(t *testing.T) {
	db := createTestDB(t)
	repo := NewPromptRepository(db)

	parent, err := repo.EnsureCategory("Parent", "")
	if err != nil {
		t.Fatalf("EnsureCategory failed: %v", err)
	}
	child, err := repo.EnsureCategory("Child", "")
	if err != nil {
		t.Fatalf("EnsureCategory failed: %v", err)
	}

	if err := repo.LinkCategories(parent, parent); err == nil {
		t.Error("LinkCategories accepted a self-link")
	}

	if err := repo.LinkCategories(parent, child); err != nil {
		t.Fatalf("LinkCategories failed: %v", err)
	}
	// Repeating the same edge is a no-op, not an error.
	if err := repo.LinkCategories(parent, child); err != nil {
		t.Fatalf("repeated LinkCategories failed: %v", err)
	}

	children, err := repo.ChildCategories(parent)
	if err != nil {
		t.Fatalf("ChildCategories failed: %v", err)
	}
	if len(children) != 1 || children[0].Name != "Child" {
		t.Errorf("children = %+v, want [Child]", children)
	}
}
