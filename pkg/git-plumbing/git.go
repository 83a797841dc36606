package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// BinaryEnvVar overrides the git executable path, for testability.
const BinaryEnvVar = "DOCS_CACHE_GIT_BIN"

// Git represents a git repository at a specific directory.
type Git struct {
	Dir     string // working directory
	Verbose bool   // log commands to stderr

	// AllowLocalTransport permits the file:// transport, needed only when
	// cloning from the persistent on-disk object cache.
	AllowLocalTransport bool
}

// New creates a Git instance for the given directory.
func New(dir string) *Git {
	return &Git{Dir: dir}
}

func binaryPath() string {
	if bin := os.Getenv(BinaryEnvVar); bin != "" {
		return bin
	}
	return "git"
}

// safeArgs prepends the global flags that disable hook execution and
// detached-HEAD advice. Terminal prompting and the local file-transport
// restriction are applied through the environment (sanitizedEnvFor), not
// here.
func safeArgs(args []string) []string {
	prefix := []string{
		"-c", "core.hooksPath=/dev/null",
		"-c", "advice.detachedHead=false",
	}
	return append(prefix, args...)
}

// Run executes a git command and returns trimmed stdout.
func (g *Git) Run(ctx context.Context, args ...string) (string, error) {
	if g.Verbose {
		fmt.Fprintf(os.Stderr, "[DEBUG] git %s (in %s)\n", strings.Join(args, " "), g.Dir)
	}
	cmd := exec.CommandContext(ctx, binaryPath(), safeArgs(args)...)
	cmd.Dir = g.Dir
	cmd.Env = sanitizedEnvFor(g.AllowLocalTransport)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", &GitError{
				Args:   args,
				Stderr: string(exitErr.Stderr),
				Err:    err,
			}
		}
		return "", err
	}
	return strings.TrimRight(string(out), " \t\r\n"), nil
}

// RunLines executes a git command and returns stdout split by newlines.
func (g *Git) RunLines(ctx context.Context, args ...string) ([]string, error) {
	out, err := g.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// RunSilent executes a git command, discarding output on success.
// On error, includes combined stdout+stderr in the error message.
func (g *Git) RunSilent(ctx context.Context, args ...string) error {
	if g.Verbose {
		fmt.Fprintf(os.Stderr, "[DEBUG] git %s (in %s)\n", strings.Join(args, " "), g.Dir)
	}
	cmd := exec.CommandContext(ctx, binaryPath(), safeArgs(args)...)
	cmd.Dir = g.Dir
	cmd.Env = sanitizedEnvFor(g.AllowLocalTransport)
	if output, err := cmd.CombinedOutput(); err != nil {
		return &GitError{
			Args:   args,
			Stderr: string(output),
			Err:    err,
		}
	}
	return nil
}

// IsInstalled returns true if the git binary is available on PATH.
func IsInstalled() bool {
	_, err := exec.LookPath(binaryPath())
	return err == nil
}

// sanitizedEnvFor returns a minimized environment: the ambient GIT_*
// variables that would redirect commands at the wrong repository are
// stripped, and terminal prompting and the local file-transport protocol
// are disabled unless allowLocalTransport is set by the one caller (the
// Fetcher cloning from the on-disk object cache) that legitimately needs it.
func sanitizedEnvFor(allowLocalTransport bool) []string {
	var env []string
	for _, e := range os.Environ() {
		key := strings.SplitN(e, "=", 2)[0]
		switch strings.ToUpper(key) {
		// When git-plumbing runs inside a git hook (pre-commit, post-merge,
		// etc.), GIT_DIR and GIT_INDEX_FILE point at the outer repo and
		// override cmd.Dir, causing commands to target the wrong repository.
		case "GIT_DIR", "GIT_INDEX_FILE", "GIT_WORK_TREE",
			"GIT_OBJECT_DIRECTORY", "GIT_ALTERNATE_OBJECT_DIRECTORIES":
			continue
		}
		env = append(env, e)
	}
	env = append(env,
		"GIT_TERMINAL_PROMPT=0",
		"GIT_ASKPASS=",
		"GIT_SSH_COMMAND=ssh -o BatchMode=yes -o StrictHostKeyChecking=accept-new",
	)
	if !allowLocalTransport {
		env = append(env, "GIT_ALLOW_PROTOCOL=https:ssh")
	} else {
		env = append(env, "GIT_ALLOW_PROTOCOL=https:ssh:file")
	}
	return env
}
