package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fbosch/docs-cache/internal/types"
	"github.com/google/uuid"
)

// MaterializeResult is the Materializer's output.
type MaterializeResult struct {
	Bytes          int64
	FileCount      int
	ManifestSha256 string
}

// Materializer walks a working tree, filters it per a ResolvedSource's
// include/exclude/cap rules, and swaps the result into place under
// <cacheRoot>/<id>/ atomically.
type Materializer struct {
	FS         FileSystem
	LockOpts   LockOptions
}

// NewMaterializer wires a Materializer against the OS filesystem with
// the default lock timeout.
func NewMaterializer() *Materializer {
	return &Materializer{FS: NewOSFileSystem(), LockOpts: DefaultLockOptions()}
}

// walkCandidate is one file selected during the walk, before staging.
type walkCandidate struct {
	relPath string // post-unwrap relative path, forward-slash
	absPath string // absolute path in the working tree
	size    int64
}

// Materialize walks workingDir, filters per resolved, stages the result,
// and atomically swaps it into <cacheRoot>/<id>/.
func (m *Materializer) Materialize(workingDir, cacheRoot string, resolved types.ResolvedSource) (MaterializeResult, error) {
	candidates, err := m.walk(workingDir, resolved)
	if err != nil {
		return MaterializeResult{}, err
	}

	var totalBytes int64
	for _, c := range candidates {
		totalBytes += c.size
	}
	if totalBytes > resolved.MaxBytes {
		return MaterializeResult{}, NewFilesystemError(resolved.ID,
			fmt.Errorf("materialized size %d exceeds maxBytes %d", totalBytes, resolved.MaxBytes),
			"byte cap exceeded", "raise maxBytes or narrow include/exclude patterns")
	}
	if len(candidates) > resolved.MaxFiles {
		return MaterializeResult{}, NewFilesystemError(resolved.ID,
			fmt.Errorf("file count %d exceeds maxFiles %d", len(candidates), resolved.MaxFiles),
			"file count cap exceeded", "raise maxFiles or narrow include/exclude patterns")
	}

	stagingDir := filepath.Join(cacheRoot, fmt.Sprintf(".tmp-%s-%s", resolved.ID, uuid.NewString()))
	if err := m.FS.MkdirAll(stagingDir, 0o755); err != nil {
		return MaterializeResult{}, NewFilesystemError(resolved.ID, err, "failed to create staging directory", "")
	}
	cleanupStaging := true
	defer func() {
		if cleanupStaging {
			_ = m.FS.RemoveAll(stagingDir)
		}
	}()

	manifest := types.Manifest{Entries: make([]types.ManifestEntry, 0, len(candidates))}
	for _, c := range candidates {
		dst := filepath.Join(stagingDir, filepath.FromSlash(c.relPath))
		n, err := m.FS.CopyFile(c.absPath, dst)
		if err != nil {
			return MaterializeResult{}, NewFilesystemError(resolved.ID, err, fmt.Sprintf("failed copying %q", c.relPath), "")
		}
		manifest.Entries = append(manifest.Entries, types.ManifestEntry{Path: c.relPath, Size: n})
	}
	SortManifest(&manifest)

	manifestBytes, err := SerializeManifest(manifest)
	if err != nil {
		return MaterializeResult{}, NewIntegrityError(resolved.ID, err, "failed to serialize manifest", "")
	}
	if err := os.WriteFile(filepath.Join(stagingDir, ManifestFileName), manifestBytes, 0o644); err != nil {
		return MaterializeResult{}, NewFilesystemError(resolved.ID, err, "failed to write manifest file", "")
	}

	manifestHash, err := ManifestHash(manifest)
	if err != nil {
		return MaterializeResult{}, NewIntegrityError(resolved.ID, err, "failed to compute manifest hash", "")
	}

	target := filepath.Join(cacheRoot, resolved.ID)
	if err := m.swap(stagingDir, target, resolved.ID); err != nil {
		return MaterializeResult{}, err
	}
	cleanupStaging = false

	return MaterializeResult{
		Bytes:          manifest.TotalBytes(),
		FileCount:      manifest.FileCount(),
		ManifestSha256: manifestHash,
	}, nil
}

// walk enumerates workingDir: include minus .git and exclude, symlinks
// never followed or materialized, hidden segments skipped when
// ignoreHidden, single-root-dir rebase when unwrapSingleRootDir applies.
func (m *Materializer) walk(workingDir string, resolved types.ResolvedSource) ([]walkCandidate, error) {
	var all []walkCandidate
	err := filepath.Walk(workingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(workingDir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		relSlash := filepath.ToSlash(rel)

		if relSlash == ".git" || strings.HasPrefix(relSlash, ".git/") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		lst, lerr := os.Lstat(path)
		if lerr != nil {
			return lerr
		}
		if lst.Mode()&os.ModeSymlink != 0 {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		if len(resolved.Include) > 0 && !MatchesAny(relSlash, resolved.Include) {
			return nil
		}
		if MatchesAny(relSlash, resolved.Exclude) {
			return nil
		}
		if resolved.IgnoreHidden && hasHiddenSegment(relSlash) {
			return nil
		}

		all = append(all, walkCandidate{relPath: relSlash, absPath: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, NewFilesystemError(resolved.ID, err, "failed walking working tree", "")
	}

	if resolved.UnwrapSingleRootDir {
		all = unwrapSingleRootDir(all)
	}
	return all, nil
}

// hasHiddenSegment reports whether any "/"-delimited segment of p begins
// with a dot.
func hasHiddenSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// unwrapSingleRootDir rebases candidates under their common top-level
// directory, but only when every candidate shares exactly one top-level
// directory and none sit directly at the root.
func unwrapSingleRootDir(candidates []walkCandidate) []walkCandidate {
	if len(candidates) == 0 {
		return candidates
	}
	var root string
	for _, c := range candidates {
		idx := strings.IndexByte(c.relPath, '/')
		if idx < 0 {
			return candidates // top-level regular file present, no unwrap
		}
		top := c.relPath[:idx]
		if root == "" {
			root = top
		} else if root != top {
			return candidates // more than one top-level directory
		}
	}
	rebased := make([]walkCandidate, len(candidates))
	prefix := root + "/"
	for i, c := range candidates {
		rebased[i] = c
		rebased[i].relPath = strings.TrimPrefix(c.relPath, prefix)
	}
	return rebased
}

// swap acquires an exclusive lock on target, backup-renames the existing
// target (if any), renames staging into place, restores the backup on
// failure, and best-effort-removes the backup on success.
func (m *Materializer) swap(stagingDir, target, sourceID string) error {
	lock := NewFileLock(target + ".lock")
	if err := lock.Acquire(context.Background(), m.LockOpts); err != nil {
		return NewFilesystemError(sourceID, err, "failed to acquire swap lock", "a concurrent run may be holding it; retry once it finishes")
	}
	defer func() { _ = lock.Release() }()

	backupDir := ""
	if _, err := m.FS.Stat(target); err == nil {
		backupDir = target + ".bak-" + uuid.NewString()
		if err := m.FS.Rename(target, backupDir); err != nil {
			return NewFilesystemError(sourceID, err, "failed to back up existing target before swap", "")
		}
	}

	if err := m.FS.Rename(stagingDir, target); err != nil {
		if backupDir != "" {
			if restoreErr := m.FS.Rename(backupDir, target); restoreErr != nil {
				return NewFilesystemError(sourceID, fmt.Errorf("swap failed (%v) and restore failed (%v)", err, restoreErr), "cache left in an inconsistent state", "manually inspect "+target+" and "+backupDir)
			}
		}
		return NewFilesystemError(sourceID, err, "failed to swap staged materialization into place", "")
	}

	if backupDir != "" {
		if err := m.FS.RemoveAll(backupDir); err != nil {
			log.Printf("warning: best-effort backup cleanup failed for %s: %v", backupDir, err)
		}
	}
	return nil
}
