package core

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fbosch/docs-cache/internal/types"
)

// ManifestFileName is the name of the per-source manifest file.
const ManifestFileName = ".manifest.jsonl"

// SortManifest normalizes Entries into the canonical order: forward-slash
// path, lexicographic byte order.
func SortManifest(m *types.Manifest) {
	sort.Slice(m.Entries, func(i, j int) bool {
		return m.Entries[i].Path < m.Entries[j].Path
	})
}

// SerializeManifest writes the canonical one-JSON-object-per-line form:
// UTF-8, LF terminators, trailing newline. The manifest must already be
// sorted (SortManifest) before calling this.
func SerializeManifest(m types.Manifest) ([]byte, error) {
	var sb strings.Builder
	for _, e := range m.Entries {
		line, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal manifest entry %q: %w", e.Path, err)
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

// ParseManifest reads the one-JSON-object-per-line manifest format back
// into a Manifest. Round-trip with SerializeManifest is byte-identical
// for a manifest that was already sorted.
func ParseManifest(r io.Reader) (types.Manifest, error) {
	var m types.Manifest
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var e types.ManifestEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return m, fmt.Errorf("parse manifest line %q: %w", line, err)
		}
		m.Entries = append(m.Entries, e)
	}
	if err := scanner.Err(); err != nil {
		return m, err
	}
	return m, nil
}

// ReadManifestFile loads and parses the manifest at <cacheRoot>/<id>/.manifest.jsonl.
func ReadManifestFile(sourceDir string) (types.Manifest, error) {
	f, err := os.Open(filepath.Join(sourceDir, ManifestFileName))
	if err != nil {
		return types.Manifest{}, err
	}
	defer func() { _ = f.Close() }()
	return ParseManifest(f)
}

// ManifestHash computes the 256-bit digest over the canonical
// serialization of an already-sorted manifest.
func ManifestHash(m types.Manifest) (string, error) {
	data, err := SerializeManifest(m)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// rulesHashFields is the fixed subset of ResolvedSource that
// content-affects materialization; its JSON keys are emitted in the
// declaration order below, not alphabetically. id, repo, ref, targetDir,
// targetMode, required are deliberately excluded.
type rulesHashFields struct {
	Include             []string `json:"include"`
	Exclude             []string `json:"exclude"`
	MaxBytes            int64    `json:"maxBytes"`
	MaxFiles            int      `json:"maxFiles"`
	IgnoreHidden        bool     `json:"ignoreHidden"`
	UnwrapSingleRootDir bool     `json:"unwrapSingleRootDir"`
}

// sortedTrimmedDedup pre-trims, de-duplicates, and sorts a glob-pattern
// array so the resulting hash is insensitive to reordering or duplicate
// entries. Adapted from golang-dep's sorted-hash input pattern (hash.go):
// sort before hashing, never hash in input order.
func sortedTrimmedDedup(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RulesHash computes the 256-bit digest over the canonical JSON of the
// content-affecting ResolvedSource fields.
func RulesHash(s types.ResolvedSource) (string, error) {
	fields := rulesHashFields{
		Include:             sortedTrimmedDedup(s.Include),
		Exclude:             sortedTrimmedDedup(s.Exclude),
		MaxBytes:            s.MaxBytes,
		MaxFiles:            s.MaxFiles,
		IgnoreHidden:        s.IgnoreHidden,
		UnwrapSingleRootDir: s.UnwrapSingleRootDir,
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
