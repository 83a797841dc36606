// Command docs-cache pins, fetches, and materializes external
// documentation trees into a local, content-addressed cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/fbosch/docs-cache/internal/core"
	"github.com/fbosch/docs-cache/internal/tui"
	"github.com/fbosch/docs-cache/internal/types"
	"github.com/fbosch/docs-cache/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(core.ExitInvalidArguments)
	}

	command := os.Args[1]
	switch command {
	case "--help", "-h", "help":
		printHelp()
		os.Exit(core.ExitSuccess)
	case "--version":
		fmt.Printf("docs-cache %s\n", version.GetFullVersion())
		os.Exit(core.ExitSuccess)
	}

	flags, rest := parseCommonFlags(os.Args[2:])
	cb := newCallback(flags)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	configPath := resolveConfigPath()

	var err error
	switch command {
	case "init":
		err = runInit(configPath, cb)
	case "sync":
		err = runSync(ctx, configPath, rest, cb)
	case "verify":
		err = runSync(ctx, configPath, append(rest, "--verify-only"), cb)
	case "status":
		err = runStatus(ctx, configPath, rest, cb)
	case "add":
		err = runAdd(configPath, rest, cb)
	case "remove":
		err = runRemove(configPath, rest, cb)
	case "clean":
		err = runClean(configPath, rest, cb)
	case "prune":
		err = runPrune(configPath, cb)
	case "watch":
		err = runWatch(ctx, configPath, rest, cb)
	default:
		cb.ShowError("Unknown command", fmt.Sprintf("%q is not a docs-cache command", command))
		os.Exit(core.ExitInvalidArguments)
	}

	if err != nil {
		cb.ShowError("Run failed", err.Error())
		os.Exit(core.ExitGeneralError)
	}
	os.Exit(core.ExitSuccess)
}

// parseCommonFlags extracts --yes/--quiet/--json, returning the rest
// unconsumed for the subcommand to parse itself.
func parseCommonFlags(args []string) (core.NonInteractiveFlags, []string) {
	flags := core.NonInteractiveFlags{}
	var remaining []string
	for _, arg := range args {
		switch arg {
		case "--yes", "-y":
			flags.Yes = true
		case "--quiet", "-q":
			flags.Mode = core.OutputQuiet
		case "--json":
			flags.Mode = core.OutputJSON
		default:
			remaining = append(remaining, arg)
		}
	}
	return flags, remaining
}

// newCallback picks the interactive TUI callback when stdout is a
// terminal and no non-interactive flag was set, otherwise the scripted
// one.
func newCallback(flags core.NonInteractiveFlags) tui.UICallback {
	if flags.Mode == core.OutputNormal && flags.Yes == false && tui.IsInteractive() {
		return tui.NewTUICallback()
	}
	return tui.NewNonInteractiveTUICallback(flags)
}

func resolveConfigPath() string {
	if v := os.Getenv("DOCS_CACHE_CONFIG"); v != "" {
		return v
	}
	return core.ConfigFileName
}

func flagValue(args []string, name string) (string, bool) {
	prefix := "--" + name + "="
	for _, a := range args {
		if strings.HasPrefix(a, prefix) {
			return strings.TrimPrefix(a, prefix), true
		}
	}
	return "", false
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == "--"+name {
			return true
		}
	}
	return false
}

func runInit(configPath string, cb tui.UICallback) error {
	if _, err := os.Stat(configPath); err == nil {
		cb.ShowWarning("Already initialized", configPath+" already exists")
		return nil
	}
	cfg := types.Config{CacheDir: core.DefaultCacheDir, Sources: []types.Source{}}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, append(data, '\n'), 0o644); err != nil {
		return err
	}
	cb.ShowSuccess("Wrote " + configPath)
	return nil
}

func newCoordinator(configPath string, cb tui.UICallback) *core.Coordinator {
	c := core.NewCoordinator(configPath, version.GetVersion())
	c.TOC = core.NewMarkdownTOCRenderer()
	return c
}

func runSync(ctx context.Context, configPath string, args []string, cb tui.UICallback) error {
	c := newCoordinator(configPath, cb)
	opts := core.CoordinatorOptions{
		Offline:    hasFlag(args, "offline"),
		FailOnMiss: hasFlag(args, "fail-on-miss"),
	}
	if v, ok := flagValue(args, "only"); ok {
		opts.IDFilter = strings.Split(v, ",")
	}
	if v, ok := flagValue(args, "workers"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			opts.WorkerCount = n
		}
	}
	opts.Progress = cb.StartProgress(0, "sync")

	result, err := c.Run(ctx, opts)
	if err != nil {
		opts.Progress.Fail(err)
		return err
	}

	failed := 0
	for _, o := range result.Outcomes {
		if o.Err != nil {
			failed++
			cb.ShowError(o.ID, o.Err.Error())
		}
		for _, w := range o.Warnings {
			cb.ShowWarning(o.ID, w)
		}
	}
	opts.Progress.Complete()

	if cb.GetOutputMode() == core.OutputJSON {
		data := map[string]interface{}{
			"outcomes":      result.Outcomes,
			"unknownIds":    result.UnknownIDs,
			"warningCount":  result.WarningCount,
			"failedSources": failed,
		}
		return cb.FormatJSON(core.JSONOutput{Status: "success", Data: data})
	}

	if failed > 0 {
		return fmt.Errorf("%d source(s) failed to sync", failed)
	}
	cb.ShowSuccess(fmt.Sprintf("Synced %d source(s), %d warning(s)", len(result.Outcomes), result.WarningCount))
	return nil
}

func runStatus(ctx context.Context, configPath string, args []string, cb tui.UICallback) error {
	planner := core.NewPlanner(configPath)
	plan, err := planner.Plan(ctx, core.PlannerOptions{Offline: hasFlag(args, "offline")})
	if err != nil {
		return err
	}
	if cb.GetOutputMode() == core.OutputJSON {
		return cb.FormatJSON(core.JSONOutput{Status: "success", Data: map[string]interface{}{"results": plan.Results}})
	}
	for _, r := range plan.Results {
		if r.Err != nil {
			cb.ShowError(r.Resolved.ID, r.Err.Error())
			continue
		}
		fmt.Printf("%-20s %s\n", r.Resolved.ID, r.Status)
	}
	return nil
}

func runAdd(configPath string, args []string, cb tui.UICallback) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: docs-cache add <id> <repo> [--ref=...] [--target=...]")
	}
	src := types.Source{ID: args[0], Repo: args[1]}
	if v, ok := flagValue(args, "ref"); ok {
		src.Ref = v
	}
	if v, ok := flagValue(args, "target"); ok {
		src.TargetDir = v
	}
	if err := core.AddSource(configPath, src); err != nil {
		return err
	}
	cb.ShowSuccess("Added source " + src.ID)
	return nil
}

func runRemove(configPath string, args []string, cb tui.UICallback) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docs-cache remove <id>")
	}
	id := args[0]
	if err := core.RemoveSource(configPath, id); err != nil {
		return err
	}
	cb.ShowSuccess("Removed source " + id)
	return nil
}

func runClean(configPath string, args []string, cb tui.UICallback) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docs-cache clean <id>")
	}
	if !cb.IsAutoApprove() && !cb.AskConfirmation("Clean cached data", "This removes the materialized directory and lock entry for "+args[0]) {
		return nil
	}
	cacheRoot := core.DefaultCacheDir
	if err := core.Clean(configPath, cacheRoot, args[0]); err != nil {
		return err
	}
	cb.ShowSuccess("Cleaned " + args[0])
	return nil
}

func runPrune(configPath string, cb tui.UICallback) error {
	removed, err := core.Prune(configPath, core.DefaultCacheDir)
	if err != nil {
		return err
	}
	cb.ShowSuccess(fmt.Sprintf("Pruned %d orphaned source(s)", len(removed)))
	return nil
}

func runWatch(ctx context.Context, configPath string, args []string, cb tui.UICallback) error {
	w := core.NewWatcher(configPath)
	cb.ShowSuccess("Watching " + configPath + " for changes")
	return w.Run(ctx, func() {
		if err := runSync(ctx, configPath, args, cb); err != nil {
			cb.ShowError("Watch-triggered sync failed", err.Error())
		}
	})
}

func printHelp() {
	fmt.Println(`docs-cache — a deterministic local cache for external documentation trees

Usage:
  docs-cache init                       write a starter docs.json
  docs-cache sync [--only=id,id]        fetch and materialize all sources
  docs-cache verify                     run the same full sync as "sync" (fetch, materialize,
                                        then re-check directories against the lock); there
                                        is no check-only mode
  docs-cache status [--offline]         show each source's up-to-date/changed/missing status
  docs-cache add <id> <repo>            add a source to the config
  docs-cache remove <id>                remove a source from the config
  docs-cache clean <id>                 remove a source's cached directory and lock entry
  docs-cache prune                      remove lock entries for sources no longer configured
  docs-cache watch                      re-sync whenever the config file changes

Flags:
  --yes, -y       auto-approve confirmations
  --quiet, -q     suppress non-error output
  --json          structured JSON output`)
}
