// Package types defines the data model shared across the sync engine:
// declared sources, their resolved form, and the manifest/lock records
// that make a cache run reproducible.
//
//nolint:revive // Package name "types" is standard and appropriate
package types

import "time"

// TargetMode selects how a materialized source is exposed at its target path.
type TargetMode string

// Target projection modes.
const (
	TargetSymlink TargetMode = "symlink"
	TargetCopy    TargetMode = "copy"
)

// Status is the Planner's per-source verdict, computed by comparing a
// resolved source (and, in online mode, its remote tip) against the lock.
type Status string

// Planner status values.
const (
	StatusUpToDate Status = "up-to-date"
	StatusChanged  Status = "changed"
	StatusMissing  Status = "missing"
)

// Source is one entry of the config file's sources array, as declared by
// the user. Optional fields are nil/zero until merged with Defaults.
type Source struct {
	ID                  string   `json:"id"`
	Repo                string   `json:"repo"`
	Ref                 string   `json:"ref"`
	Include             []string `json:"include,omitempty"`
	Exclude             []string `json:"exclude,omitempty"`
	MaxBytes            *int64   `json:"maxBytes,omitempty"`
	MaxFiles            *int     `json:"maxFiles,omitempty"`
	IgnoreHidden        *bool    `json:"ignoreHidden,omitempty"`
	UnwrapSingleRootDir *bool    `json:"unwrapSingleRootDir,omitempty"`
	TargetDir           string   `json:"targetDir,omitempty"`
	TargetMode          string   `json:"targetMode,omitempty"`
	Required            *bool    `json:"required,omitempty"`
}

// Defaults supplies the values a Source inherits when a field is unset.
type Defaults struct {
	Include             []string `json:"include,omitempty"`
	Exclude             []string `json:"exclude,omitempty"`
	MaxBytes            int64    `json:"maxBytes,omitempty"`
	MaxFiles            int      `json:"maxFiles,omitempty"`
	IgnoreHidden        bool     `json:"ignoreHidden,omitempty"`
	UnwrapSingleRootDir bool     `json:"unwrapSingleRootDir,omitempty"`
	TargetMode          string   `json:"targetMode,omitempty"`
	Required            bool     `json:"required,omitempty"`
}

// ResolvedSource is a Source merged with Defaults: every field has a
// definite value. This is the type every downstream component consumes.
type ResolvedSource struct {
	ID                  string
	Repo                string
	Ref                 string
	Include             []string
	Exclude             []string
	MaxBytes            int64
	MaxFiles            int
	IgnoreHidden        bool
	UnwrapSingleRootDir bool
	TargetDir           string
	TargetMode          TargetMode
	Required            bool
}

// RemoteResolution is the Planner's online-mode answer for one source:
// the branch/tag/commit ref resolved against the remote to a full hash.
type RemoteResolution struct {
	Repo           string
	Ref            string
	ResolvedCommit string
}

// ManifestEntry is one (path, size) record in a Manifest.
type ManifestEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Manifest is the ordered, sorted description of what was materialized
// for one source. Entries are sorted by forward-slash path, byte order.
type Manifest struct {
	Entries []ManifestEntry
}

// TotalBytes sums entry sizes.
func (m Manifest) TotalBytes() int64 {
	var total int64
	for _, e := range m.Entries {
		total += e.Size
	}
	return total
}

// FileCount returns the number of entries.
func (m Manifest) FileCount() int {
	return len(m.Entries)
}

// LockEntry is the lock's per-source record: what was pinned, what was
// materialized, and the two content fingerprints that decide reuse.
type LockEntry struct {
	Repo           string    `json:"repo"`
	Ref            string    `json:"ref"`
	ResolvedCommit string    `json:"resolvedCommit"`
	Bytes          int64     `json:"bytes"`
	FileCount      int       `json:"fileCount"`
	ManifestSha256 string    `json:"manifestSha256"`
	RulesSha256    string    `json:"rulesSha256"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// LockVersion is the only supported on-disk lock schema version.
const LockVersion = 1

// Lock is the full contents of docs.lock.
type Lock struct {
	Version     int                  `json:"version"`
	GeneratedAt time.Time            `json:"generatedAt"`
	ToolVersion string               `json:"toolVersion"`
	Sources     map[string]LockEntry `json:"sources"`
}

// Config is the top-level shape of the JSON config file. The engine
// consumes cacheDir/defaults/sources; unknown fields are ignored.
type Config struct {
	CacheDir string   `json:"cacheDir,omitempty"`
	Defaults Defaults `json:"defaults,omitempty"`
	Sources  []Source `json:"sources"`
}

// JobResult is what one Coordinator worker produces for one source.
type JobResult struct {
	ID        string
	Status    Status
	Bytes     int64
	FileCount int
	Err       error
	Warnings  []string
}

// ProgressTracker receives progress notifications from a long-running
// operation; the no-op, text, and bubbletea-backed implementations live
// in the CLI collaborator package.
type ProgressTracker interface {
	// Increment advances progress by one unit with an optional status message
	Increment(message string)

	// SetTotal updates the total expected units (for dynamic totals)
	SetTotal(total int)

	// Complete marks the operation as successfully finished
	Complete()

	// Fail marks the operation as failed with an error
	Fail(err error)
}
