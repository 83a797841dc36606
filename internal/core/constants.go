package core

// File and directory names.
const (
	// DefaultCacheDir is the cache root used when the config omits cacheDir.
	DefaultCacheDir = ".docs"
	// ConfigFileName is the canonical config filename.
	ConfigFileName = "docs.json"
	// LockFileName is the lock file, a sibling of the config file.
	LockFileName = "docs.lock"
	// TOCFileName is the per-source human-readable table of contents.
	TOCFileName = "TOC.md"
	// ProjectDefaultsFileName is the optional, human-edited YAML overlay
	// merged onto the JSON config's defaults before Source resolution;
	// its non-zero fields take precedence.
	ProjectDefaultsFileName = ".docsrc"
)

// Git refs and sentinels.
const (
	// DefaultRef is used when a source declares no ref.
	DefaultRef = "main"
	// OfflineCommitSentinel is substituted for resolvedCommit in offline
	// mode when the lock holds no prior entry.
	OfflineCommitSentinel = "offline"
)

// DefaultWorkerCount is the Coordinator's bounded worker pool size.
const DefaultWorkerCount = 4

// PersistentCacheEnvVar overrides the platform-default persistent VCS
// object cache directory.
const PersistentCacheEnvVar = "DOCS_CACHE_GIT_DIR"

// GitBinaryEnvVar overrides the path to the VCS executable the Fetcher
// invokes, for testability.
const GitBinaryEnvVar = "DOCS_CACHE_GIT_BIN"
