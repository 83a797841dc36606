package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fbosch/docs-cache/internal/types"
)

// AddSource appends src to the config file at configPath, rejecting a
// duplicate id, an unsafe id, or an unsafe repo URL. Validation beyond
// those checks happens later, at the next Planner.Plan() call.
func AddSource(configPath string, src types.Source) error {
	store := NewFileConfigStore(configPath)
	cfg, err := store.Load()
	if err != nil {
		return NewConfigError(src.ID, err, "failed to load config", "")
	}
	for _, existing := range cfg.Sources {
		if existing.ID == src.ID {
			return NewConfigError(src.ID, fmt.Errorf("source %q already exists", src.ID), "", "use a different id, or remove the existing source first")
		}
	}
	if err := ValidateSourceID(src.ID); err != nil {
		return NewConfigError(src.ID, err, "invalid source id", "use alphanumerics, hyphens, or underscores only")
	}
	if err := ValidateRepoURL(src.Repo); err != nil {
		return NewConfigError(src.ID, err, "invalid repo URL", "")
	}
	cfg.Sources = append(cfg.Sources, src)
	rawStore := NewJSONStore(configPath, false, func() types.Config { return types.Config{} })
	return rawStore.Save(cfg)
}

// RemoveSource deletes the source with id from the config file. The
// caller decides separately whether to also clean its cached directory
// and lock entry (Clean).
func RemoveSource(configPath, id string) error {
	store := NewFileConfigStore(configPath)
	cfg, err := store.Load()
	if err != nil {
		return NewConfigError(id, err, "failed to load config", "")
	}
	kept := cfg.Sources[:0]
	found := false
	for _, s := range cfg.Sources {
		if s.ID == id {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return NewConfigError(id, fmt.Errorf("no source %q in config", id), "", "")
	}
	cfg.Sources = kept
	rawStore := NewJSONStore(configPath, false, func() types.Config { return types.Config{} })
	return rawStore.Save(cfg)
}

// Clean removes the materialized directory and lock entry for id,
// leaving the config's source declaration (if any) untouched. It backs
// the CLI's "clean" subcommand; "remove" does not call it.
func Clean(configPath, cacheRoot, id string) error {
	sourceDir := filepath.Join(cacheRoot, id)
	if err := os.RemoveAll(sourceDir); err != nil {
		return NewFilesystemError(id, err, "failed to remove cached directory", "")
	}
	lockPath := filepath.Join(filepath.Dir(configPath), LockFileName)
	lockStore := NewFileLockStore(lockPath)
	lock, err := lockStore.Load()
	if err != nil {
		return NewConfigError(id, err, "failed to load lock file", "")
	}
	delete(lock.Sources, id)
	return lockStore.Save(lock)
}

// Prune removes lock entries and materialized directories for any
// source id no longer declared in the config, returning the ids it
// removed.
func Prune(configPath, cacheRoot string) ([]string, error) {
	configStore := NewFileConfigStore(configPath)
	cfg, err := configStore.Load()
	if err != nil {
		return nil, NewConfigError("", err, "failed to load config", "")
	}
	liveIDs := make(map[string]bool, len(cfg.Sources))
	for _, s := range cfg.Sources {
		liveIDs[s.ID] = true
	}

	lockPath := filepath.Join(filepath.Dir(configPath), LockFileName)
	lockStore := NewFileLockStore(lockPath)
	lock, err := lockStore.Load()
	if err != nil {
		return nil, NewConfigError("", err, "failed to load lock file", "")
	}

	var removed []string
	for id := range lock.Sources {
		if !liveIDs[id] {
			removed = append(removed, id)
		}
	}

	pruned := PruneLockEntries(lock, liveIDs)
	if err := lockStore.Save(pruned); err != nil {
		return nil, NewFilesystemError("", err, "failed to write pruned lock file", "")
	}

	for _, id := range removed {
		if err := os.RemoveAll(filepath.Join(cacheRoot, id)); err != nil {
			return removed, NewFilesystemError(id, err, "failed to remove orphaned cached directory", "")
		}
	}
	return removed, nil
}
