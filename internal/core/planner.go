package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fbosch/docs-cache/internal/types"
	git "github.com/fbosch/docs-cache/pkg/git-plumbing"
)

// RemoteResolver resolves a (repo, ref) pair to a full commit hash
// against the live remote. Swappable for tests.
type RemoteResolver interface {
	Resolve(ctx context.Context, repo, ref string) (types.RemoteResolution, error)
}

// GitRemoteResolver resolves refs via `git ls-remote`, invoked through
// the sanitized git-plumbing wrapper.
type GitRemoteResolver struct{}

// Resolve runs ls-remote against repo and extracts the commit for ref.
func (GitRemoteResolver) Resolve(ctx context.Context, repo, ref string) (types.RemoteResolution, error) {
	g := git.New("")
	out, err := g.LsRemote(ctx, repo)
	if err != nil {
		return types.RemoteResolution{}, fmt.Errorf("ls-remote %s: %w", RedactURL(repo), err)
	}
	hash, err := git.ParseLsRemoteOutput(out, ref)
	if err != nil {
		return types.RemoteResolution{}, fmt.Errorf("resolve ref %q against %s: %w", ref, RedactURL(repo), err)
	}
	return types.RemoteResolution{Repo: repo, Ref: ref, ResolvedCommit: hash}, nil
}

// PlannerOptions configures one planning pass.
type PlannerOptions struct {
	CacheDir     string
	IDFilter     []string // empty means all sources
	Offline      bool
	Timeout      time.Duration
	FailOnMiss   bool
	AllowedHosts []string // empty means DefaultAllowedHosts
}

// PlanResult is one source's planning outcome.
type PlanResult struct {
	Resolved  types.ResolvedSource
	RulesHash string
	Remote    types.RemoteResolution
	Status    types.Status
	PriorEntry *types.LockEntry
	Err        error
}

// Plan is the Planner's full output for one run.
type Plan struct {
	Results    []PlanResult
	UnknownIDs []string // names in IDFilter matching no configured source
}

// Planner loads config, resolves sources against Defaults, computes
// RulesHash, and diffs each against the lock to emit a Status.
type Planner struct {
	Config   ConfigStore
	Lock     LockStore
	Resolver RemoteResolver
	FS       FileSystem
}

// NewPlanner wires a Planner against the given config/lock paths, using
// the default git-backed remote resolver and OS filesystem.
func NewPlanner(configPath string) *Planner {
	lockPath := filepath.Join(filepath.Dir(configPath), LockFileName)
	return &Planner{
		Config:   NewFileConfigStore(configPath),
		Lock:     NewFileLockStore(lockPath),
		Resolver: GitRemoteResolver{},
		FS:       NewOSFileSystem(),
	}
}

// Plan executes one planning pass.
func (p *Planner) Plan(ctx context.Context, opts PlannerOptions) (Plan, error) {
	cfg, err := p.Config.Load()
	if err != nil {
		return Plan{}, NewConfigError("", err, "failed to load config", "check the config file is valid JSON")
	}

	overlay, err := LoadProjectDefaults(p.Config.Path())
	if err != nil {
		return Plan{}, NewConfigError("", err, "failed to load .docsrc overlay", "fix or remove the .docsrc file")
	}
	defaults := MergeDefaults(cfg.Defaults, overlay)

	cacheDir := cfg.CacheDir
	if opts.CacheDir != "" {
		cacheDir = opts.CacheDir
	}
	projectRoot := filepath.Dir(p.Config.Path())
	absCacheDir := cacheDir
	if !filepath.IsAbs(absCacheDir) {
		absCacheDir = filepath.Join(projectRoot, cacheDir)
	}

	lock, err := p.Lock.Load()
	if err != nil {
		return Plan{}, NewConfigError("", err, "failed to load lock file", "")
	}

	allowedHosts := opts.AllowedHosts
	if len(allowedHosts) == 0 {
		allowedHosts = DefaultAllowedHosts
	}

	selected, unknown := selectSources(cfg.Sources, opts.IDFilter)

	plan := Plan{UnknownIDs: unknown}

	type job struct {
		idx      int
		resolved types.ResolvedSource
	}
	jobs := make([]job, 0, len(selected))
	plan.Results = make([]PlanResult, len(selected))

	// An unsafe id, repo URL, or target path means the config itself is
	// invalid, so validation failures abort the whole run rather than
	// being attached to the one offending source.
	for i, src := range selected {
		resolved := ResolveSource(src, defaults)
		plan.Results[i] = PlanResult{Resolved: resolved}

		if err := ValidateResolvedSource(resolved, projectRoot, absCacheDir); err != nil {
			return Plan{}, err
		}
		rulesHash, err := RulesHash(resolved)
		if err != nil {
			return Plan{}, NewConfigError(resolved.ID, err, "failed to compute rules hash", "")
		}
		plan.Results[i].RulesHash = rulesHash
		jobs = append(jobs, job{idx: i, resolved: resolved})
	}

	type outcome struct {
		idx    int
		remote types.RemoteResolution
		status types.Status
		err    error
	}
	outcomes := make(chan outcome, len(jobs))

	for _, j := range jobs {
		go func(j job) {
			prior, hasPrior := lock.Sources[j.resolved.ID]
			var priorPtr *types.LockEntry
			if hasPrior {
				entryCopy := prior
				priorPtr = &entryCopy
			}
			plan.Results[j.idx].PriorEntry = priorPtr

			if opts.Offline {
				status := p.offlineStatus(j.resolved, absCacheDir, hasPrior)
				resolvedCommit := OfflineCommitSentinel
				if hasPrior {
					resolvedCommit = prior.ResolvedCommit
				}
				outcomes <- outcome{
					idx:    j.idx,
					remote: types.RemoteResolution{Repo: j.resolved.Repo, Ref: j.resolved.Ref, ResolvedCommit: resolvedCommit},
					status: status,
				}
				return
			}

			host := ExtractHost(j.resolved.Repo)
			if !HostAllowed(host, allowedHosts) {
				outcomes <- outcome{idx: j.idx, err: NewNetworkError(j.resolved.ID, fmt.Errorf("%w: %q", ErrHostNotAllowed, host), "", "add the host to the allow-list or use an allowed remote")}
				return
			}

			resolveCtx := ctx
			var cancel context.CancelFunc
			if opts.Timeout > 0 {
				resolveCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}

			remote, err := p.Resolver.Resolve(resolveCtx, j.resolved.Repo, j.resolved.Ref)
			if err != nil {
				outcomes <- outcome{idx: j.idx, err: NewNetworkError(j.resolved.ID, err, "failed to resolve ref against remote", "check the ref exists and the remote is reachable")}
				return
			}

			var status types.Status
			switch {
			case !hasPrior:
				status = types.StatusMissing
			case prior.ResolvedCommit == remote.ResolvedCommit && prior.RulesSha256 == plan.Results[j.idx].RulesHash:
				status = types.StatusUpToDate
			default:
				status = types.StatusChanged
			}

			outcomes <- outcome{idx: j.idx, remote: remote, status: status}
		}(j)
	}

	for range jobs {
		o := <-outcomes
		if o.err != nil {
			plan.Results[o.idx].Err = o.err
			continue
		}
		plan.Results[o.idx].Remote = o.remote
		plan.Results[o.idx].Status = o.status
	}

	if opts.FailOnMiss {
		for _, r := range plan.Results {
			if r.Err != nil {
				continue
			}
			if r.Resolved.Required && r.Status == types.StatusMissing {
				return plan, NewPolicyError(r.Resolved.ID, ErrRequiredSourceMissing, "", "fetch the source or relax the required/fail-on-miss policy")
			}
		}
	}

	return plan, nil
}

// offlineStatus reports up-to-date iff a LockEntry exists and the
// materialized directory has a manifest.
func (p *Planner) offlineStatus(resolved types.ResolvedSource, cacheDir string, hasPrior bool) types.Status {
	if !hasPrior {
		return types.StatusMissing
	}
	sourceDir := filepath.Join(cacheDir, resolved.ID)
	if _, err := os.Stat(filepath.Join(sourceDir, ManifestFileName)); err != nil {
		return types.StatusMissing
	}
	return types.StatusUpToDate
}

// selectSources applies an id filter, returning (selected, unknownIDs).
// An unknown id in the filter is reported but not fatal.
func selectSources(all []types.Source, idFilter []string) ([]types.Source, []string) {
	if len(idFilter) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(idFilter))
	for _, id := range idFilter {
		want[id] = true
	}
	byID := make(map[string]bool, len(all))
	var selected []types.Source
	for _, s := range all {
		byID[s.ID] = true
		if want[s.ID] {
			selected = append(selected, s)
		}
	}
	var unknown []string
	for _, id := range idFilter {
		if !byID[id] {
			unknown = append(unknown, id)
		}
	}
	return selected, unknown
}
