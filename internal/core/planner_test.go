package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fbosch/docs-cache/internal/types"
)

// fakeResolver is a RemoteResolver double: resolutions keys by repo URL,
// falling back to a fixed commit when the repo has no entry, or returning
// err unconditionally when set.
type fakeResolver struct {
	resolutions map[string]types.RemoteResolution
	err         error
	calls       []string
}

func (f *fakeResolver) Resolve(_ context.Context, repo, ref string) (types.RemoteResolution, error) {
	f.calls = append(f.calls, repo)
	if f.err != nil {
		return types.RemoteResolution{}, f.err
	}
	if r, ok := f.resolutions[repo]; ok {
		return r, nil
	}
	return types.RemoteResolution{Repo: repo, Ref: ref, ResolvedCommit: "deadbeefcafe"}, nil
}

func writeTestConfig(t *testing.T, dir string, cfg types.Config) string {
	t.Helper()
	path := filepath.Join(dir, "docs.json")
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func buildPlanner(configPath string, resolver RemoteResolver) *Planner {
	lockPath := filepath.Join(filepath.Dir(configPath), LockFileName)
	return &Planner{
		Config:   NewFileConfigStore(configPath),
		Lock:     NewFileLockStore(lockPath),
		Resolver: resolver,
		FS:       NewOSFileSystem(),
	}
}

func newTestPlanner(t *testing.T, configPath string, resolver RemoteResolver) *Planner {
	t.Helper()
	return buildPlanner(configPath, resolver)
}

func basicSource(id string) types.Source {
	maxBytes := int64(1 << 20)
	maxFiles := 1000
	return types.Source{ID: id, Repo: "https://github.com/org/" + id + ".git", Ref: "main", MaxBytes: &maxBytes, MaxFiles: &maxFiles}
}

func TestPlannerPlanOnlineNewSourceIsMissing(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, types.Config{Sources: []types.Source{basicSource("docs")}})
	p := newTestPlanner(t, configPath, &fakeResolver{})

	plan, err := p.Plan(context.Background(), PlannerOptions{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(plan.Results))
	}
	if plan.Results[0].Status != types.StatusMissing {
		t.Errorf("Status = %q, want %q", plan.Results[0].Status, types.StatusMissing)
	}
}

func TestPlannerPlanOnlineUpToDateWhenCommitAndRulesMatch(t *testing.T) {
	dir := t.TempDir()
	src := basicSource("docs")
	configPath := writeTestConfig(t, dir, types.Config{Sources: []types.Source{src}})

	resolved := ResolveSource(src, types.Defaults{})
	rulesHash, err := RulesHash(resolved)
	if err != nil {
		t.Fatal(err)
	}

	lockPath := filepath.Join(dir, LockFileName)
	lock := types.Lock{
		Version: types.LockVersion,
		Sources: map[string]types.LockEntry{
			"docs": {Repo: resolved.Repo, Ref: resolved.Ref, ResolvedCommit: "deadbeefcafe", RulesSha256: rulesHash},
		},
	}
	if err := NewFileLockStore(lockPath).Save(lock); err != nil {
		t.Fatal(err)
	}

	p := newTestPlanner(t, configPath, &fakeResolver{})
	plan, err := p.Plan(context.Background(), PlannerOptions{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Results[0].Status != types.StatusUpToDate {
		t.Errorf("Status = %q, want %q", plan.Results[0].Status, types.StatusUpToDate)
	}
}

func TestPlannerPlanOnlineChangedWhenCommitDiffers(t *testing.T) {
	dir := t.TempDir()
	src := basicSource("docs")
	configPath := writeTestConfig(t, dir, types.Config{Sources: []types.Source{src}})

	resolved := ResolveSource(src, types.Defaults{})
	rulesHash, err := RulesHash(resolved)
	if err != nil {
		t.Fatal(err)
	}
	lockPath := filepath.Join(dir, LockFileName)
	lock := types.Lock{
		Version: types.LockVersion,
		Sources: map[string]types.LockEntry{
			"docs": {Repo: resolved.Repo, Ref: resolved.Ref, ResolvedCommit: "oldcommit", RulesSha256: rulesHash},
		},
	}
	if err := NewFileLockStore(lockPath).Save(lock); err != nil {
		t.Fatal(err)
	}

	p := newTestPlanner(t, configPath, &fakeResolver{})
	plan, err := p.Plan(context.Background(), PlannerOptions{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Results[0].Status != types.StatusChanged {
		t.Errorf("Status = %q, want %q", plan.Results[0].Status, types.StatusChanged)
	}
}

func TestPlannerPlanRejectsDisallowedHost(t *testing.T) {
	dir := t.TempDir()
	src := types.Source{ID: "docs", Repo: "https://example.invalid/org/docs.git", Ref: "main"}
	maxBytes := int64(1 << 20)
	src.MaxBytes = &maxBytes
	configPath := writeTestConfig(t, dir, types.Config{Sources: []types.Source{src}})

	p := newTestPlanner(t, configPath, &fakeResolver{})
	plan, err := p.Plan(context.Background(), PlannerOptions{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Results[0].Err == nil {
		t.Fatal("expected a disallowed-host error")
	}
	if !IsKind(plan.Results[0].Err, KindNetwork) {
		t.Errorf("expected a network-kind error, got %v", plan.Results[0].Err)
	}
}

func TestPlannerPlanOfflineMissingWithoutPriorEntry(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, types.Config{Sources: []types.Source{basicSource("docs")}})

	p := newTestPlanner(t, configPath, &fakeResolver{})
	plan, err := p.Plan(context.Background(), PlannerOptions{Offline: true})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Results[0].Status != types.StatusMissing {
		t.Errorf("Status = %q, want %q", plan.Results[0].Status, types.StatusMissing)
	}
	if plan.Results[0].Remote.ResolvedCommit != OfflineCommitSentinel {
		t.Errorf("ResolvedCommit = %q, want sentinel %q", plan.Results[0].Remote.ResolvedCommit, OfflineCommitSentinel)
	}
}

func TestPlannerPlanOfflineUpToDateWhenManifestPresent(t *testing.T) {
	dir := t.TempDir()
	src := basicSource("docs")
	configPath := writeTestConfig(t, dir, types.Config{Sources: []types.Source{src}})
	cacheDir := filepath.Join(dir, DefaultCacheDir)

	resolved := ResolveSource(src, types.Defaults{})
	rulesHash, err := RulesHash(resolved)
	if err != nil {
		t.Fatal(err)
	}
	lockPath := filepath.Join(dir, LockFileName)
	lock := types.Lock{
		Version: types.LockVersion,
		Sources: map[string]types.LockEntry{
			"docs": {Repo: resolved.Repo, Ref: resolved.Ref, ResolvedCommit: "oldcommit", RulesSha256: rulesHash},
		},
	}
	if err := NewFileLockStore(lockPath).Save(lock); err != nil {
		t.Fatal(err)
	}
	sourceDir := filepath.Join(cacheDir, "docs")
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sourceDir, ManifestFileName), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPlanner(t, configPath, &fakeResolver{})
	plan, err := p.Plan(context.Background(), PlannerOptions{Offline: true})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Results[0].Status != types.StatusUpToDate {
		t.Errorf("Status = %q, want %q", plan.Results[0].Status, types.StatusUpToDate)
	}
	if plan.Results[0].Remote.ResolvedCommit != "oldcommit" {
		t.Errorf("ResolvedCommit = %q, want the prior pinned commit", plan.Results[0].Remote.ResolvedCommit)
	}
}

func TestPlannerPlanFailOnMissAbortsForRequiredSource(t *testing.T) {
	dir := t.TempDir()
	src := basicSource("docs")
	required := true
	src.Required = &required
	configPath := writeTestConfig(t, dir, types.Config{Sources: []types.Source{src}})

	p := newTestPlanner(t, configPath, &fakeResolver{})
	_, err := p.Plan(context.Background(), PlannerOptions{Offline: true, FailOnMiss: true})
	if err == nil {
		t.Fatal("expected a policy error aborting the run")
	}
	if !IsKind(err, KindPolicy) {
		t.Errorf("expected a policy-kind error, got %v", err)
	}
}

func TestPlannerPlanAbortsOnInvalidSourceID(t *testing.T) {
	dir := t.TempDir()
	src := basicSource("bad/id")
	configPath := writeTestConfig(t, dir, types.Config{Sources: []types.Source{src}})

	p := newTestPlanner(t, configPath, &fakeResolver{})
	_, err := p.Plan(context.Background(), PlannerOptions{})
	if err == nil {
		t.Fatal("expected config validation to abort the whole plan")
	}
	if !IsKind(err, KindConfig) {
		t.Errorf("expected a config-kind error, got %v", err)
	}
}

func TestPlannerPlanReportsUnknownIDFilter(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, types.Config{Sources: []types.Source{basicSource("docs")}})

	p := newTestPlanner(t, configPath, &fakeResolver{})
	plan, err := p.Plan(context.Background(), PlannerOptions{IDFilter: []string{"docs", "ghost"}})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Results) != 1 {
		t.Fatalf("got %d results, want 1 (id filter should narrow the set)", len(plan.Results))
	}
	if len(plan.UnknownIDs) != 1 || plan.UnknownIDs[0] != "ghost" {
		t.Errorf("UnknownIDs = %v, want [ghost]", plan.UnknownIDs)
	}
}

func TestPlannerPlanTimeoutExceededIsNetworkError(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, types.Config{Sources: []types.Source{basicSource("docs")}})

	resolver := &fakeResolver{err: context.DeadlineExceeded}
	p := newTestPlanner(t, configPath, resolver)
	plan, err := p.Plan(context.Background(), PlannerOptions{Timeout: time.Millisecond})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Results[0].Err == nil || !IsKind(plan.Results[0].Err, KindNetwork) {
		t.Errorf("expected a network-kind error for the unresolvable ref, got %v", plan.Results[0].Err)
	}
}
