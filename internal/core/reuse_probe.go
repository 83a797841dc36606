package core

import (
	"github.com/fbosch/docs-cache/internal/types"
)

// ReuseProbeResult reports whether an existing materialization can be
// reused for a new commit without writing any files.
type ReuseProbeResult struct {
	Reusable       bool
	Bytes          int64
	FileCount      int
	ManifestSha256 string
}

// ReuseProbe runs the Materializer's walk+hash step against a new working
// tree without writing any files, to detect a byte-identical result for
// a source whose resolvedCommit changed but whose RulesHash did not.
type ReuseProbe struct {
	Materializer *Materializer
}

// NewReuseProbe wires a ReuseProbe against the OS filesystem.
func NewReuseProbe() *ReuseProbe {
	return &ReuseProbe{Materializer: NewMaterializer()}
}

// Probe recomputes the manifest for workingDir under resolved's rules and
// compares it against the lock entry's manifestSha256. Preconditions
// (existing manifest present, rulesSha256 unchanged) are the caller's
// responsibility — the Coordinator only invokes this when both hold.
func (p *ReuseProbe) Probe(workingDir string, resolved types.ResolvedSource, prior types.LockEntry) (ReuseProbeResult, error) {
	candidates, err := p.Materializer.walk(workingDir, resolved)
	if err != nil {
		return ReuseProbeResult{}, err
	}

	manifest := types.Manifest{Entries: make([]types.ManifestEntry, 0, len(candidates))}
	var totalBytes int64
	for _, c := range candidates {
		manifest.Entries = append(manifest.Entries, types.ManifestEntry{Path: c.relPath, Size: c.size})
		totalBytes += c.size
	}
	SortManifest(&manifest)

	if totalBytes > resolved.MaxBytes || len(candidates) > resolved.MaxFiles {
		return ReuseProbeResult{Reusable: false}, nil
	}

	hash, err := ManifestHash(manifest)
	if err != nil {
		return ReuseProbeResult{}, NewIntegrityError(resolved.ID, err, "failed to compute manifest hash during reuse probe", "")
	}

	if hash != prior.ManifestSha256 {
		return ReuseProbeResult{Reusable: false}, nil
	}

	return ReuseProbeResult{
		Reusable:       true,
		Bytes:          manifest.TotalBytes(),
		FileCount:      manifest.FileCount(),
		ManifestSha256: hash,
	}, nil
}
