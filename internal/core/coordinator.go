package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fbosch/docs-cache/internal/types"
	"golang.org/x/sync/errgroup"
)

// TOCRenderer is the external collaborator the Coordinator invokes after
// a successful materialization. The core never implements rendering
// itself.
type TOCRenderer interface {
	Render(sourceDir string, resolved types.ResolvedSource) error
}

// NoOpTOCRenderer satisfies TOCRenderer when no CLI collaborator is wired
// (tests, or library callers that don't want a TOC written).
type NoOpTOCRenderer struct{}

// Render does nothing.
func (NoOpTOCRenderer) Render(string, types.ResolvedSource) error { return nil }

// CoordinatorOptions configures one sync run.
type CoordinatorOptions struct {
	CacheDir     string
	IDFilter     []string
	Offline      bool
	Timeout      time.Duration
	FailOnMiss   bool
	WorkerCount  int
	AllowedHosts []string
	Progress     types.ProgressTracker
}

// SourceOutcome is the Coordinator's final per-source report.
type SourceOutcome struct {
	ID             string
	Status         types.Status
	Bytes          int64
	FileCount      int
	ManifestSha256 string
	Warnings       []string
	Err            error
}

// RunResult is the Coordinator's overall report.
type RunResult struct {
	Outcomes     []SourceOutcome
	UnknownIDs   []string
	WarningCount int
}

// Coordinator is the only component with side effects on global on-disk
// state: the lock, the cache root, and target projections. It drives the
// Planner, Fetcher, Reuse Probe, Materializer, and Target Projector
// through one full run.
type Coordinator struct {
	Planner      *Planner
	Fetcher      *Fetcher
	ReuseProbe   *ReuseProbe
	Materializer *Materializer
	Projector    *TargetProjector
	Lock         LockStore
	TOC          TOCRenderer
	ToolVersion  string
}

// NewCoordinator wires a Coordinator against configPath using default
// component implementations.
func NewCoordinator(configPath, toolVersion string) *Coordinator {
	lockPath := filepath.Join(filepath.Dir(configPath), LockFileName)
	return &Coordinator{
		Planner:      NewPlanner(configPath),
		Fetcher:      NewFetcher(),
		ReuseProbe:   NewReuseProbe(),
		Materializer: NewMaterializer(),
		Projector:    NewTargetProjector(),
		Lock:         NewFileLockStore(lockPath),
		TOC:          NoOpTOCRenderer{},
		ToolVersion:  toolVersion,
	}
}

// Run executes one full sync.
func (c *Coordinator) Run(ctx context.Context, opts CoordinatorOptions) (RunResult, error) {
	workerCount := opts.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}

	plan, err := c.Planner.Plan(ctx, PlannerOptions{
		CacheDir:     opts.CacheDir,
		IDFilter:     opts.IDFilter,
		Offline:      opts.Offline,
		Timeout:      opts.Timeout,
		FailOnMiss:   opts.FailOnMiss,
		AllowedHosts: opts.AllowedHosts,
	})
	if err != nil {
		return RunResult{}, err
	}

	cfg, err := c.Planner.Config.Load()
	if err != nil {
		return RunResult{}, NewConfigError("", err, "failed to reload config for cache root", "")
	}
	cacheDir := cfg.CacheDir
	if opts.CacheDir != "" {
		cacheDir = opts.CacheDir
	}
	projectRoot := filepath.Dir(c.Planner.Config.Path())
	cacheRoot := cacheDir
	if !filepath.IsAbs(cacheRoot) {
		cacheRoot = filepath.Join(projectRoot, cacheDir)
	}
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return RunResult{}, NewFilesystemError("", err, "failed to create cache root", "")
	}

	outcomes := make([]SourceOutcome, len(plan.Results))
	for i, r := range plan.Results {
		outcomes[i] = SourceOutcome{ID: r.Resolved.ID, Status: r.Status, Err: r.Err}
	}

	jobIdx := c.selectJobs(plan, cacheRoot)

	if opts.Progress != nil {
		opts.Progress.SetTotal(len(jobIdx))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)
	var mu sync.Mutex

	for _, i := range jobIdx {
		i := i
		r := plan.Results[i]
		g.Go(func() error {
			out := c.runJob(gctx, r, cacheRoot)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			if opts.Progress != nil {
				opts.Progress.Increment(out.ID)
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range plan.Results {
		if outcomes[i].Err != nil {
			continue
		}
		if r.Resolved.TargetDir == "" {
			continue
		}
		sourceDir := filepath.Join(cacheRoot, r.Resolved.ID)
		targetPath := r.Resolved.TargetDir
		if !filepath.IsAbs(targetPath) {
			targetPath = filepath.Join(projectRoot, targetPath)
		}
		warning, perr := c.Projector.Project(sourceDir, targetPath, r.Resolved, cacheRoot)
		if perr != nil {
			outcomes[i].Err = perr
			continue
		}
		if warning != "" {
			outcomes[i].Warnings = append(outcomes[i].Warnings, warning)
		}
	}

	warningCount := 0
	for i := range outcomes {
		if outcomes[i].Err != nil {
			continue
		}
		issues := verifySource(cacheRoot, outcomes[i].ID)
		if len(issues) > 0 {
			r := findResult(plan, outcomes[i].ID)
			forced := c.runJob(ctx, forceResult(r), cacheRoot)
			if forced.Err != nil {
				outcomes[i].Warnings = append(outcomes[i].Warnings, fmt.Sprintf("verification repair failed: %v", forced.Err))
				warningCount++
			} else {
				outcomes[i] = forced
				if residual := verifySource(cacheRoot, outcomes[i].ID); len(residual) > 0 {
					outcomes[i].Warnings = append(outcomes[i].Warnings, residual...)
					warningCount += len(residual)
				}
			}
		}
	}

	prior, err := c.Lock.Load()
	if err != nil {
		return RunResult{}, NewConfigError("", err, "failed to reload lock before write", "")
	}
	updated := make(map[string]types.LockEntry, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			continue
		}
		r := plan.Results[i]
		entry := types.LockEntry{
			Repo:           r.Resolved.Repo,
			Ref:            r.Resolved.Ref,
			ResolvedCommit: r.Remote.ResolvedCommit,
			Bytes:          o.Bytes,
			FileCount:      o.FileCount,
			ManifestSha256: o.ManifestSha256,
			RulesSha256:    r.RulesHash,
			UpdatedAt:      currentTime(),
		}
		if entry.ManifestSha256 == "" {
			// No job ran for this source this run (already up-to-date with
			// a materialized directory present) — carry the prior entry's
			// fingerprints forward unchanged.
			if existing, ok := prior.Sources[r.Resolved.ID]; ok {
				entry.ManifestSha256 = existing.ManifestSha256
				entry.Bytes = existing.Bytes
				entry.FileCount = existing.FileCount
			}
		}
		updated[r.Resolved.ID] = entry
	}

	// Sources untouched by a filtered run, and any not present in this
	// plan at all, retain their prior entries via MergeLockEntries.
	newLock := MergeLockEntries(prior, updated, c.ToolVersion, currentTime())
	if err := c.Lock.Save(newLock); err != nil {
		return RunResult{}, NewFilesystemError("", err, "failed to write lock file", "")
	}

	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		r := findResult(plan, o.ID)
		sourceDir := filepath.Join(cacheRoot, o.ID)
		if err := c.TOC.Render(sourceDir, r.Resolved); err != nil {
			warningCount++
		}
	}

	return RunResult{Outcomes: outcomes, UnknownIDs: plan.UnknownIDs, WarningCount: warningCount}, nil
}

// selectJobs builds the initial job set: every source that is not
// up-to-date, plus any up-to-date source whose materialized directory
// is absent.
func (c *Coordinator) selectJobs(plan Plan, cacheRoot string) []int {
	var jobs []int
	for i, r := range plan.Results {
		if r.Err != nil {
			continue
		}
		if r.Status != types.StatusUpToDate {
			jobs = append(jobs, i)
			continue
		}
		if _, err := os.Stat(filepath.Join(cacheRoot, r.Resolved.ID, ManifestFileName)); err != nil {
			jobs = append(jobs, i)
		}
	}
	return jobs
}

// runJob invokes the Fetcher, then attempts the Reuse Probe, then falls
// through to the Materializer. The Fetcher's cleanup runs
// unconditionally.
func (c *Coordinator) runJob(ctx context.Context, r PlanResult, cacheRoot string) SourceOutcome {
	out := SourceOutcome{ID: r.Resolved.ID}

	tree, err := c.Fetcher.Fetch(ctx, r.Resolved, r.Remote)
	if err != nil {
		out.Err = err
		return out
	}
	defer tree.Cleanup()

	if r.PriorEntry != nil && r.PriorEntry.RulesSha256 == r.RulesHash {
		if _, statErr := os.Stat(filepath.Join(cacheRoot, r.Resolved.ID, ManifestFileName)); statErr == nil {
			probeResult, perr := c.ReuseProbe.Probe(tree.Dir, r.Resolved, *r.PriorEntry)
			if perr == nil && probeResult.Reusable {
				out.Status = types.StatusUpToDate
				out.Bytes = probeResult.Bytes
				out.FileCount = probeResult.FileCount
				out.ManifestSha256 = probeResult.ManifestSha256
				return out
			}
		}
	}

	result, err := c.Materializer.Materialize(tree.Dir, cacheRoot, r.Resolved)
	if err != nil {
		out.Err = err
		return out
	}
	out.Status = types.StatusChanged
	out.Bytes = result.Bytes
	out.FileCount = result.FileCount
	out.ManifestSha256 = result.ManifestSha256
	return out
}

// verifySource re-reads a materialized source's manifest and confirms
// every entry's path still exists on disk with a matching size.
func verifySource(cacheRoot, id string) []string {
	sourceDir := filepath.Join(cacheRoot, id)
	manifest, err := ReadManifestFile(sourceDir)
	if err != nil {
		return []string{fmt.Sprintf("unable to read manifest for %q: %v", id, err)}
	}
	var issues []string
	for _, e := range manifest.Entries {
		full := filepath.Join(sourceDir, filepath.FromSlash(e.Path))
		info, err := os.Stat(full)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: missing file %q", id, e.Path))
			continue
		}
		if info.Size() != e.Size {
			issues = append(issues, fmt.Sprintf("%s: size mismatch for %q (want %d, got %d)", id, e.Path, e.Size, info.Size()))
		}
	}
	return issues
}

// findResult looks up a PlanResult by source id.
func findResult(plan Plan, id string) PlanResult {
	for _, r := range plan.Results {
		if r.Resolved.ID == id {
			return r
		}
	}
	return PlanResult{}
}

// forceResult marks a PlanResult as requiring materialization regardless
// of its RulesHash match, used for the verify/repair retry pass.
func forceResult(r PlanResult) PlanResult {
	r.PriorEntry = nil
	return r
}

// currentTime is the single call site for "now" in the Coordinator, kept
// as its own function so tests can substitute a fixed clock.
var currentTime = func() time.Time { return time.Now() }
