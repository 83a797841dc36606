package core

import (
	"testing"

	"github.com/fbosch/docs-cache/internal/types"
)

func TestReuseProbeReusableWhenManifestHashMatches(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"docs/guide.md": "guide"})
	resolved := resolvedForMaterialize("docs")

	m := NewMaterializer()
	candidates, err := m.walk(dir, resolved)
	if err != nil {
		t.Fatal(err)
	}
	manifest := types.Manifest{Entries: make([]types.ManifestEntry, 0, len(candidates))}
	for _, c := range candidates {
		manifest.Entries = append(manifest.Entries, types.ManifestEntry{Path: c.relPath, Size: c.size})
	}
	SortManifest(&manifest)
	hash, err := ManifestHash(manifest)
	if err != nil {
		t.Fatal(err)
	}

	probe := &ReuseProbe{Materializer: m}
	result, err := probe.Probe(dir, resolved, types.LockEntry{ManifestSha256: hash})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !result.Reusable {
		t.Error("expected the unchanged working tree to be reusable")
	}
	if result.ManifestSha256 != hash {
		t.Errorf("ManifestSha256 = %q, want %q", result.ManifestSha256, hash)
	}
}

func TestReuseProbeNotReusableWhenContentDiffers(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"docs/guide.md": "guide v2"})
	resolved := resolvedForMaterialize("docs")

	probe := NewReuseProbe()
	result, err := probe.Probe(dir, resolved, types.LockEntry{ManifestSha256: "0000000000000000000000000000000000000000000000000000000000000000"})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.Reusable {
		t.Error("expected a manifest hash mismatch to be reported as not reusable")
	}
}

func TestReuseProbeNotReusableWhenOverCap(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"docs/guide.md": "0123456789"})
	resolved := resolvedForMaterialize("docs")
	resolved.MaxBytes = 1

	probe := NewReuseProbe()
	result, err := probe.Probe(dir, resolved, types.LockEntry{ManifestSha256: "anything"})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.Reusable {
		t.Error("expected an over-cap working tree to be reported as not reusable")
	}
}
