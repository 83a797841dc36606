package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure into one of the five taxonomy kinds the
// engine reports: config, network, filesystem, integrity, policy.
type ErrorKind string

// Error kinds.
const (
	KindConfig     ErrorKind = "config"
	KindNetwork    ErrorKind = "network"
	KindFilesystem ErrorKind = "filesystem"
	KindIntegrity  ErrorKind = "integrity"
	KindPolicy     ErrorKind = "policy"
)

// SourceError is a failure attributable to one source id. Every failure
// reports the source id, the kind, and a concise one-line cause.
type SourceError struct {
	SourceID string
	Kind     ErrorKind
	Cause    error
	Context  string
	Fix      string
}

// Error renders the three-line "Error / Context / Fix" message.
func (e *SourceError) Error() string {
	msg := fmt.Sprintf("Error: [%s] %s: %v", e.SourceID, e.Kind, e.Cause)
	if e.Context != "" {
		msg += fmt.Sprintf("\n  Context: %s", e.Context)
	}
	if e.Fix != "" {
		msg += fmt.Sprintf("\n  Fix: %s", e.Fix)
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *SourceError) Unwrap() error { return e.Cause }

// NewConfigError builds a config-kind SourceError. Config errors are
// fatal to the whole run regardless of which source triggered them.
func NewConfigError(sourceID string, cause error, context, fix string) *SourceError {
	return &SourceError{SourceID: sourceID, Kind: KindConfig, Cause: cause, Context: context, Fix: fix}
}

// NewNetworkError builds a network-kind SourceError (host not allowed,
// unresolvable ref, timeout, nonzero remote-tool exit).
func NewNetworkError(sourceID string, cause error, context, fix string) *SourceError {
	return &SourceError{SourceID: sourceID, Kind: KindNetwork, Cause: cause, Context: context, Fix: fix}
}

// NewFilesystemError builds a filesystem-kind SourceError (capacity cap
// exceeded, symlink encountered, path escape, lock timeout, swap collision).
func NewFilesystemError(sourceID string, cause error, context, fix string) *SourceError {
	return &SourceError{SourceID: sourceID, Kind: KindFilesystem, Cause: cause, Context: context, Fix: fix}
}

// NewIntegrityError builds an integrity-kind SourceError (manifest
// missing, entry missing, size mismatch).
func NewIntegrityError(sourceID string, cause error, context, fix string) *SourceError {
	return &SourceError{SourceID: sourceID, Kind: KindIntegrity, Cause: cause, Context: context, Fix: fix}
}

// NewPolicyError builds a policy-kind SourceError (required source
// missing under fail-on-miss). Policy errors are decided before any I/O.
func NewPolicyError(sourceID string, cause error, context, fix string) *SourceError {
	return &SourceError{SourceID: sourceID, Kind: KindPolicy, Cause: cause, Context: context, Fix: fix}
}

// KindOf extracts the ErrorKind from err, if it (or a wrapped cause) is a
// *SourceError. The second return is false for unrelated errors.
func KindOf(err error) (ErrorKind, bool) {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a SourceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Sentinel errors for conditions with no source-specific context.
var (
	// ErrLockAcquireTimeout is returned when the per-id atomic-swap lock
	// could not be acquired within the configured bound.
	ErrLockAcquireTimeout = errors.New("lock acquisition timed out")

	// ErrUnsafeSourceID is returned when a Source's id fails the naming
	// rule: alphanumerics, hyphen, underscore only.
	ErrUnsafeSourceID = errors.New("source id contains path separators, \"..\", or other unsafe characters")

	// ErrUnsafeRepoURL is returned when a repo URL contains shell-significant
	// punctuation from the forbidden set, or an unsupported scheme.
	ErrUnsafeRepoURL = errors.New("repo URL contains forbidden characters or scheme")

	// ErrUnsafeTargetPath is returned when targetDir resolves outside the
	// project tree, or inside the cache directory.
	ErrUnsafeTargetPath = errors.New("target path escapes the project tree or falls inside the cache directory")

	// ErrHostNotAllowed is returned when a repo's host is not in the
	// configured allow-list.
	ErrHostNotAllowed = errors.New("remote host is not in the allow-list")

	// ErrRequiredSourceMissing signals a run-level abort: a required
	// source is missing and fail-on-miss is set.
	ErrRequiredSourceMissing = errors.New("required source is missing under fail-on-miss")
)
