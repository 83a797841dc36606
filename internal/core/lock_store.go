package core

import (
	"time"

	"github.com/fbosch/docs-cache/internal/types"
)

// LockStore loads and saves the JSON lock file.
type LockStore interface {
	Load() (types.Lock, error)
	Save(types.Lock) error
	Path() string
}

// FileLockStore implements LockStore against a JSONStore[types.Lock].
type FileLockStore struct {
	store *JSONStore[types.Lock]
}

// NewFileLockStore binds a lock store to lockPath. Missing lock files are
// treated as an empty lock (first sync has no prior state).
func NewFileLockStore(lockPath string) *FileLockStore {
	return &FileLockStore{
		store: NewJSONStore(lockPath, true, func() types.Lock {
			return types.Lock{Version: types.LockVersion, Sources: map[string]types.LockEntry{}}
		}),
	}
}

// Path returns the lock file path.
func (s *FileLockStore) Path() string { return s.store.Path() }

// Load reads the lock file, normalizing a nil Sources map to empty.
func (s *FileLockStore) Load() (types.Lock, error) {
	lock, err := s.store.Load()
	if err != nil {
		return lock, err
	}
	if lock.Sources == nil {
		lock.Sources = map[string]types.LockEntry{}
	}
	if lock.Version == 0 {
		lock.Version = types.LockVersion
	}
	return lock, nil
}

// Save writes the lock file.
func (s *FileLockStore) Save(lock types.Lock) error {
	return s.store.Save(lock)
}

// MergeLockEntries folds this run's results into the prior lock. A run
// that only touches a subset of sources — via an id filter, or because a
// required source was skipped by policy — must not discard the entries
// belonging to sources it did not touch. updated holds one entry per
// source that was actually synced or verified this run; prior holds
// everything from the last successful write.
func MergeLockEntries(prior types.Lock, updated map[string]types.LockEntry, toolVersion string, generatedAt time.Time) types.Lock {
	merged := types.Lock{
		Version:     types.LockVersion,
		GeneratedAt: generatedAt,
		ToolVersion: toolVersion,
		Sources:     map[string]types.LockEntry{},
	}
	for id, entry := range prior.Sources {
		merged.Sources[id] = entry
	}
	for id, entry := range updated {
		merged.Sources[id] = entry
	}
	return merged
}

// PruneLockEntries removes entries for source ids no longer present in
// the config's source list.
func PruneLockEntries(lock types.Lock, liveIDs map[string]bool) types.Lock {
	pruned := lock
	pruned.Sources = map[string]types.LockEntry{}
	for id, entry := range lock.Sources {
		if liveIDs[id] {
			pruned.Sources[id] = entry
		}
	}
	return pruned
}
