package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fbosch/docs-cache/internal/types"
	git "github.com/fbosch/docs-cache/pkg/git-plumbing"
	"github.com/google/uuid"
)

// WorkingTree is the Fetcher's result: a directory holding the tree at
// resolvedCommit, and the cleanup that removes every staging artifact
// the fetch created.
type WorkingTree struct {
	Dir     string
	Cleanup func()
}

// Fetcher obtains a working tree for (repo, ref, resolvedCommit) via a
// persistent bare/partial object cache, trying the archive path before
// falling back to clone-and-checkout.
type Fetcher struct {
	// ObjectCacheDir is the persistent, cross-project bare-repo cache
	// root. Defaults to PersistentCacheEnvVar or a platform cache dir.
	ObjectCacheDir string
	// StagingRoot is where working-tree staging directories are created.
	// Defaults to os.TempDir().
	StagingRoot string
}

// NewFetcher resolves the persistent object cache directory from
// PersistentCacheEnvVar, falling back to os.UserCacheDir()/docs-cache/git.
func NewFetcher() *Fetcher {
	dir := os.Getenv(PersistentCacheEnvVar)
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, "docs-cache", "git")
	}
	return &Fetcher{ObjectCacheDir: dir, StagingRoot: os.TempDir()}
}

// repoCacheKey hashes the repo URL to a stable, filesystem-safe directory
// name for the persistent object cache.
func repoCacheKey(repoURL string) string {
	sum := sha256.Sum256([]byte(repoURL))
	return hex.EncodeToString(sum[:])
}

// Fetch obtains a working tree for resolved at remote.ResolvedCommit.
// Tries the archive path first, then falls through to clone-and-checkout
// against the persistent object cache (populating it lazily).
func (f *Fetcher) Fetch(ctx context.Context, resolved types.ResolvedSource, remote types.RemoteResolution) (WorkingTree, error) {
	stagingDir, err := os.MkdirTemp(f.StagingRoot, "docs-cache-fetch-"+resolved.ID+"-")
	if err != nil {
		return WorkingTree{}, NewFilesystemError(resolved.ID, err, "failed to create staging directory", "")
	}
	cleanup := func() { _ = os.RemoveAll(stagingDir) }

	if err := f.ensureObjectCache(ctx, resolved, remote); err != nil {
		cleanup()
		return WorkingTree{}, err
	}

	if err := f.tryArchive(ctx, resolved, remote, stagingDir); err == nil {
		return WorkingTree{Dir: stagingDir, Cleanup: cleanup}, nil
	}

	if err := f.cloneAndCheckout(ctx, resolved, remote, stagingDir); err != nil {
		cleanup()
		return WorkingTree{}, NewNetworkError(resolved.ID, err, "clone-and-checkout fallback failed", "check the remote is reachable and the commit exists")
	}

	return WorkingTree{Dir: stagingDir, Cleanup: cleanup}, nil
}

// cachePath returns this repo's slot in the persistent object cache.
func (f *Fetcher) cachePath(repoURL string) string {
	return filepath.Join(f.ObjectCacheDir, repoCacheKey(repoURL))
}

// ensureObjectCache creates or incrementally updates the persistent bare
// clone for resolved.Repo, fetching resolvedCommit if it is missing.
func (f *Fetcher) ensureObjectCache(ctx context.Context, resolved types.ResolvedSource, remote types.RemoteResolution) error {
	cacheDir := f.cachePath(resolved.Repo)
	if _, err := os.Stat(filepath.Join(cacheDir, "HEAD")); err != nil {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return NewFilesystemError(resolved.ID, err, "failed to create persistent object cache directory", "")
		}
		g := git.New(cacheDir)
		if err := g.Clone(ctx, resolved.Repo, &git.CloneOpts{Bare: true, Filter: "blob:none"}); err != nil {
			return NewNetworkError(resolved.ID, err, "failed to populate persistent object cache", "check the remote URL and network connectivity")
		}
		return nil
	}

	g := git.New(cacheDir)
	if _, err := g.ResolveRef(ctx, remote.ResolvedCommit+"^{commit}"); err == nil {
		return nil
	}
	if err := g.FetchAll(ctx, "origin"); err != nil {
		return NewNetworkError(resolved.ID, err, "incremental fetch of persistent object cache failed", "")
	}
	return nil
}

// tryArchive attempts the fast path: ask the remote (or, failing that,
// the local object cache) for a tarball of the commit and extract it
// directly into stagingDir.
func (f *Fetcher) tryArchive(ctx context.Context, resolved types.ResolvedSource, remote types.RemoteResolution, stagingDir string) error {
	tarPath := filepath.Join(f.StagingRoot, "docs-cache-archive-"+uuid.NewString()+".tar")
	defer func() { _ = os.Remove(tarPath) }()

	g := git.New("")
	if err := g.Archive(ctx, git.ArchiveOpts{Remote: resolved.Repo, Commit: remote.ResolvedCommit}, tarPath); err != nil {
		cacheDir := f.cachePath(resolved.Repo)
		gc := git.New(cacheDir)
		gc.AllowLocalTransport = true
		if err2 := gc.Archive(ctx, git.ArchiveOpts{Remote: cacheDir, Commit: remote.ResolvedCommit}, tarPath); err2 != nil {
			return fmt.Errorf("archive unsupported by remote and local cache: %w", err2)
		}
	}

	return extractTar(tarPath, stagingDir)
}

// cloneAndCheckout clones the persistent object cache (falling back to
// the live remote if the cache slot doesn't exist) into stagingDir using
// a blobless, single-branch, depth-limited, no-tags configuration, then
// checks out resolvedCommit — restricted to a sparse-checkout cone when
// the include patterns permit it.
func (f *Fetcher) cloneAndCheckout(ctx context.Context, resolved types.ResolvedSource, remote types.RemoteResolution, stagingDir string) error {
	cacheDir := f.cachePath(resolved.Repo)
	source := cacheDir
	g := git.New(stagingDir)
	if _, err := os.Stat(filepath.Join(cacheDir, "HEAD")); err == nil {
		g.AllowLocalTransport = true
	} else {
		source = resolved.Repo
	}

	opts := &git.CloneOpts{
		Filter:       "blob:none",
		SingleBranch: resolved.Ref,
		NoTags:       true,
		Depth:        1,
		NoCheckout:   true,
	}
	if err := g.Clone(ctx, source, opts); err != nil {
		return fmt.Errorf("clone failed: %w", err)
	}

	cone, patterns := sparsePolicy(resolved.Include)
	if patterns != nil {
		if err := g.SparseCheckoutInit(ctx, cone); err != nil {
			return fmt.Errorf("sparse-checkout init failed: %w", err)
		}
		if err := g.SparseCheckoutSet(ctx, patterns); err != nil {
			return fmt.Errorf("sparse-checkout set failed: %w", err)
		}
	}

	if err := g.Checkout(ctx, remote.ResolvedCommit); err != nil {
		return fmt.Errorf("checkout %s failed: %w", remote.ResolvedCommit, err)
	}
	return nil
}

// sparsePolicy picks cone mode when every pattern resolves to a non-empty
// fixed directory prefix (see fixedPrefix), no-cone mode with the raw
// patterns otherwise (any other wildcard, or a top-level file pattern),
// or a full checkout (false, nil) when include is empty.
func sparsePolicy(include []string) (cone bool, patterns []string) {
	if len(include) == 0 {
		return false, nil
	}
	allFixed := true
	prefixes := make([]string, 0, len(include))
	seen := make(map[string]struct{})
	for _, p := range include {
		prefix, ok := fixedPrefix(p)
		if !ok {
			allFixed = false
			break
		}
		if prefix == "" {
			allFixed = false
			break
		}
		if _, dup := seen[prefix]; dup {
			continue
		}
		seen[prefix] = struct{}{}
		prefixes = append(prefixes, prefix)
	}
	if allFixed && len(prefixes) > 0 {
		return true, prefixes
	}
	return false, include
}
