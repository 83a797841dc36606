package git

import (
	"context"
	"fmt"
	"strings"
)

// CloneOpts configures a clone operation.
type CloneOpts struct {
	Filter      string // e.g., "blob:none" for blobless clone
	NoCheckout  bool
	Depth       int
	SingleBranch string
	NoTags      bool
	Bare        bool
}

// Init initializes a new git repository.
func (g *Git) Init(ctx context.Context) error {
	return g.RunSilent(ctx, "init")
}

// AddRemote adds a named remote.
func (g *Git) AddRemote(ctx context.Context, name, url string) error {
	return g.RunSilent(ctx, "remote", "add", name, url)
}

// Clone clones a repository into this directory. No hooks run: clone
// never invokes a checkout hook, and --no-local is implied by the engine
// never passing a same-filesystem file:// URL except against the
// persistent object cache itself.
func (g *Git) Clone(ctx context.Context, url string, opts *CloneOpts) error {
	args := []string{"clone"}
	if opts != nil {
		if opts.Filter != "" {
			args = append(args, "--filter="+opts.Filter)
		}
		if opts.NoCheckout {
			args = append(args, "--no-checkout")
		}
		if opts.Depth > 0 {
			args = append(args, "--depth", fmt.Sprintf("%d", opts.Depth))
		}
		if opts.SingleBranch != "" {
			args = append(args, "--single-branch", "--branch", opts.SingleBranch)
		}
		if opts.NoTags {
			args = append(args, "--no-tags")
		}
		if opts.Bare {
			args = append(args, "--bare")
		}
	}
	args = append(args, url, ".")
	return g.RunSilent(ctx, args...)
}

// LsRemote lists refs advertised by a remote without cloning it. Used by
// the Planner to resolve a branch/tag name to a commit hash in online
// mode, without ever fetching objects.
func (g *Git) LsRemote(ctx context.Context, url string) (string, error) {
	return g.Run(ctx, "ls-remote", url)
}

// ParseLsRemoteOutput extracts the commit hash for ref out of `git
// ls-remote` output. When both a lightweight and a dereferenced
// ("^{}") entry exist for the same ref (annotated tags), the
// dereferenced entry — which points at the commit, not the tag object —
// is preferred. Otherwise the first matching line wins.
func ParseLsRemoteOutput(output, ref string) (string, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "", fmt.Errorf("ls-remote returned no output for ref %q", ref)
	}

	var firstMatch, derefMatch string
	suffix := "/" + ref
	for _, line := range strings.Split(trimmed, "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), "\t", 2)
		if len(fields) != 2 {
			continue
		}
		hash, refName := fields[0], fields[1]
		name := strings.TrimSuffix(refName, "^{}")
		if name == ref || strings.HasSuffix(name, suffix) {
			if name != refName {
				derefMatch = hash
				continue
			}
			if firstMatch == "" {
				firstMatch = hash
			}
		}
	}
	if derefMatch != "" {
		return derefMatch, nil
	}
	if firstMatch != "" {
		return firstMatch, nil
	}
	return "", fmt.Errorf("no ref matching %q found in ls-remote output", ref)
}

// ArchiveOpts configures a remote archive fetch.
type ArchiveOpts struct {
	Remote string // remote name or URL
	Commit string // commit-ish to archive
	Prefix string // optional path prefix to restrict the archive to
}

// Archive requests a tar stream of a commit from remote via `git
// archive --remote`, writing it to destTarPath. Not every remote
// supports the upload-archive service; callers should treat a non-zero
// exit as "archive unsupported or failed" and fall back to clone.
func (g *Git) Archive(ctx context.Context, opts ArchiveOpts, destTarPath string) error {
	args := []string{"archive", "--remote=" + opts.Remote, "--format=tar", "-o", destTarPath, opts.Commit}
	if opts.Prefix != "" {
		args = append(args, "--", opts.Prefix)
	}
	return g.RunSilent(ctx, args...)
}

// SparseCheckoutInit enables sparse-checkout in cone or no-cone mode.
func (g *Git) SparseCheckoutInit(ctx context.Context, cone bool) error {
	args := []string{"sparse-checkout", "init"}
	if cone {
		args = append(args, "--cone")
	} else {
		args = append(args, "--no-cone")
	}
	return g.RunSilent(ctx, args...)
}

// SparseCheckoutSet declares the set of cone-mode directories or
// no-cone-mode patterns to populate the working tree with.
func (g *Git) SparseCheckoutSet(ctx context.Context, patterns []string) error {
	args := append([]string{"sparse-checkout", "set"}, patterns...)
	return g.RunSilent(ctx, args...)
}

// Fetch fetches from a remote with optional depth.
func (g *Git) Fetch(ctx context.Context, remote, ref string, depth int) error {
	args := []string{"fetch"}
	if depth > 0 {
		args = append(args, "--depth", fmt.Sprintf("%d", depth))
	}
	args = append(args, remote, ref)
	return g.RunSilent(ctx, args...)
}

// FetchAll fetches all refs from a remote.
func (g *Git) FetchAll(ctx context.Context, remote string) error {
	return g.RunSilent(ctx, "fetch", remote)
}

// Checkout checks out a ref (branch, tag, or commit hash).
func (g *Git) Checkout(ctx context.Context, ref string) error {
	return g.RunSilent(ctx, "checkout", ref)
}
