package checklist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeChecklistFile(t *testing.T, dir, framework, standard, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, framework), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, framework, standard+".json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write checklist: %v", err)
	}
}

func TestFileRepoLoad(t *testing.T) {
	dir := t.TempDir()
	writeChecklistFile(t, dir, "IFRS", "IAS_40", `{
		"sections": [
			{
				"section": "measurement",
				"title": "Investment Property",
				"items": [
					{"id": "q1", "question": "Is investment property measured at fair value?", "reference": "IAS 40.33"}
				]
			}
		]
	}`)

	repo := NewFileRepo(dir)
	cl, err := repo.Load(context.Background(), "IFRS", "IAS_40")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cl.Framework != "IFRS" || cl.Standard != "IAS_40" {
		t.Fatalf("identity = %s/%s", cl.Framework, cl.Standard)
	}
	if cl.QuestionCount() != 1 {
		t.Fatalf("question count = %d, want 1", cl.QuestionCount())
	}
	if cl.Sections[0].Items[0].Reference != "IAS 40.33" {
		t.Fatalf("reference = %q", cl.Sections[0].Items[0].Reference)
	}
}

func TestFileRepoMissingStandard(t *testing.T) {
	repo := NewFileRepo(t.TempDir())
	_, err := repo.Load(context.Background(), "IFRS", "IAS_99")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFileRepoMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeChecklistFile(t, dir, "IFRS", "IAS_1", `{"sections": [`)

	repo := NewFileRepo(dir)
	if _, err := repo.Load(context.Background(), "IFRS", "IAS_1"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFileRepoMissingSections(t *testing.T) {
	dir := t.TempDir()
	writeChecklistFile(t, dir, "IFRS", "IAS_1", `{}`)

	repo := NewFileRepo(dir)
	if _, err := repo.Load(context.Background(), "IFRS", "IAS_1"); err == nil {
		t.Fatal("expected error for checklist without sections")
	}
}

func TestFileRepoRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "secret.json")
	if err := os.WriteFile(outside, []byte(`{"sections": []}`), 0o644); err != nil {
		t.Fatalf("write outside file: %v", err)
	}

	repo := NewFileRepo(filepath.Join(dir, "checklists"))
	if _, err := repo.Load(context.Background(), "..", "secret"); err == nil {
		t.Fatal("traversal should not resolve to a file outside the root")
	}
	if _, err := repo.Load(context.Background(), "IFRS", "../secret"); err == nil {
		t.Fatal("traversal in the standard id should not load")
	}
}
