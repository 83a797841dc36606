package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fbosch/docs-cache/internal/types"
)

func writeConfig(t *testing.T, path string, cfg types.Config) {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAddSourceAppendsAndPersists(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "docs.json")
	writeConfig(t, configPath, types.Config{Sources: []types.Source{}})

	src := types.Source{ID: "docs", Repo: "https://github.com/org/repo.git", Ref: "main"}
	if err := AddSource(configPath, src); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	cfg, err := NewFileConfigStore(configPath).Load()
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].ID != "docs" {
		t.Errorf("Sources = %+v, want one entry with id 'docs'", cfg.Sources)
	}
}

func TestAddSourceRejectsDuplicateID(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "docs.json")
	writeConfig(t, configPath, types.Config{Sources: []types.Source{
		{ID: "docs", Repo: "https://github.com/org/repo.git"},
	}})

	err := AddSource(configPath, types.Source{ID: "docs", Repo: "https://github.com/org/other.git"})
	if err == nil {
		t.Fatal("expected a duplicate id to be rejected")
	}
}

func TestAddSourceRejectsUnsafeID(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "docs.json")
	writeConfig(t, configPath, types.Config{Sources: []types.Source{}})

	err := AddSource(configPath, types.Source{ID: "bad/id", Repo: "https://github.com/org/repo.git"})
	if err == nil {
		t.Fatal("expected an unsafe id to be rejected")
	}
}

func TestAddSourceRejectsUnsafeRepoURL(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "docs.json")
	writeConfig(t, configPath, types.Config{Sources: []types.Source{}})

	err := AddSource(configPath, types.Source{ID: "docs", Repo: "not-a-valid-url"})
	if err == nil {
		t.Fatal("expected an unsafe repo URL to be rejected")
	}
}

func TestRemoveSourceDeletesMatchingEntry(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "docs.json")
	writeConfig(t, configPath, types.Config{Sources: []types.Source{
		{ID: "keep", Repo: "https://github.com/org/keep.git"},
		{ID: "drop", Repo: "https://github.com/org/drop.git"},
	}})

	if err := RemoveSource(configPath, "drop"); err != nil {
		t.Fatalf("RemoveSource: %v", err)
	}

	cfg, err := NewFileConfigStore(configPath).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].ID != "keep" {
		t.Errorf("Sources = %+v, want only 'keep'", cfg.Sources)
	}
}

func TestRemoveSourceErrorsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "docs.json")
	writeConfig(t, configPath, types.Config{Sources: []types.Source{}})

	if err := RemoveSource(configPath, "nonexistent"); err == nil {
		t.Error("expected an error when removing a source that doesn't exist")
	}
}

func TestCleanRemovesCachedDirAndLockEntry(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "docs.json")
	cacheRoot := filepath.Join(dir, ".docs")
	sourceDir := filepath.Join(cacheRoot, "docs")
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sourceDir, "file.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	lockStore := NewFileLockStore(filepath.Join(dir, LockFileName))
	if err := lockStore.Save(types.Lock{Sources: map[string]types.LockEntry{
		"docs": {Repo: "https://github.com/org/repo.git"},
	}}); err != nil {
		t.Fatal(err)
	}

	if err := Clean(configPath, cacheRoot, "docs"); err != nil {
		t.Fatalf("Clean: %v", err)
	}

	if _, err := os.Stat(sourceDir); !os.IsNotExist(err) {
		t.Error("expected the cached directory to be removed")
	}
	lock, err := lockStore.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lock.Sources["docs"]; ok {
		t.Error("expected the lock entry to be removed")
	}
}

func TestPruneRemovesOrphanedEntriesAndDirectories(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "docs.json")
	cacheRoot := filepath.Join(dir, ".docs")
	writeConfig(t, configPath, types.Config{Sources: []types.Source{
		{ID: "live", Repo: "https://github.com/org/live.git"},
	}})

	orphanDir := filepath.Join(cacheRoot, "orphan")
	if err := os.MkdirAll(orphanDir, 0o755); err != nil {
		t.Fatal(err)
	}

	lockStore := NewFileLockStore(filepath.Join(dir, LockFileName))
	if err := lockStore.Save(types.Lock{Sources: map[string]types.LockEntry{
		"live":   {Repo: "https://github.com/org/live.git"},
		"orphan": {Repo: "https://github.com/org/orphan.git"},
	}}); err != nil {
		t.Fatal(err)
	}

	removed, err := Prune(configPath, cacheRoot)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 1 || removed[0] != "orphan" {
		t.Errorf("removed = %v, want [orphan]", removed)
	}
	if _, err := os.Stat(orphanDir); !os.IsNotExist(err) {
		t.Error("expected the orphaned cache directory to be removed")
	}

	lock, err := lockStore.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lock.Sources["orphan"]; ok {
		t.Error("expected the orphan lock entry to be pruned")
	}
	if _, ok := lock.Sources["live"]; !ok {
		t.Error("expected the live lock entry to survive pruning")
	}
}
