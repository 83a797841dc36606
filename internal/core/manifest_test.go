package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fbosch/docs-cache/internal/types"
)

func TestSortManifest(t *testing.T) {
	m := types.Manifest{Entries: []types.ManifestEntry{
		{Path: "z.md", Size: 1},
		{Path: "a.md", Size: 2},
		{Path: "m/b.md", Size: 3},
	}}
	SortManifest(&m)
	want := []string{"a.md", "m/b.md", "z.md"}
	for i, e := range m.Entries {
		if e.Path != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Path, want[i])
		}
	}
}

func TestSerializeParseManifestRoundTrip(t *testing.T) {
	m := types.Manifest{Entries: []types.ManifestEntry{
		{Path: "a.md", Size: 10},
		{Path: "b/c.md", Size: 20},
	}}
	SortManifest(&m)

	data, err := SerializeManifest(m)
	if err != nil {
		t.Fatalf("SerializeManifest: %v", err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("expected trailing newline")
	}

	parsed, err := ParseManifest(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(parsed.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(parsed.Entries))
	}
	if parsed.Entries[0] != m.Entries[0] || parsed.Entries[1] != m.Entries[1] {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed.Entries, m.Entries)
	}

	roundTripped, err := SerializeManifest(parsed)
	if err != nil {
		t.Fatalf("SerializeManifest (round 2): %v", err)
	}
	if !bytes.Equal(data, roundTripped) {
		t.Error("serialization is not byte-identical across a round trip")
	}
}

func TestParseManifestSkipsBlankLines(t *testing.T) {
	input := "{\"path\":\"a.md\",\"size\":1}\n\n{\"path\":\"b.md\",\"size\":2}\n"
	m, err := ParseManifest(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(m.Entries))
	}
}

func TestManifestHashDeterministic(t *testing.T) {
	m1 := types.Manifest{Entries: []types.ManifestEntry{{Path: "a.md", Size: 1}, {Path: "b.md", Size: 2}}}
	m2 := types.Manifest{Entries: []types.ManifestEntry{{Path: "a.md", Size: 1}, {Path: "b.md", Size: 2}}}

	h1, err := ManifestHash(m1)
	if err != nil {
		t.Fatalf("ManifestHash: %v", err)
	}
	h2, err := ManifestHash(m2)
	if err != nil {
		t.Fatalf("ManifestHash: %v", err)
	}
	if h1 != h2 {
		t.Error("identical manifests should hash identically")
	}

	m2.Entries[0].Size = 99
	h3, err := ManifestHash(m2)
	if err != nil {
		t.Fatalf("ManifestHash: %v", err)
	}
	if h1 == h3 {
		t.Error("different manifests should hash differently")
	}
}

func TestRulesHashOrderAndDuplicateInsensitive(t *testing.T) {
	a := types.ResolvedSource{Include: []string{"docs/**", "README.md"}, MaxFiles: 10}
	b := types.ResolvedSource{Include: []string{"README.md", "docs/**", "docs/**"}, MaxFiles: 10}

	ha, err := RulesHash(a)
	if err != nil {
		t.Fatalf("RulesHash: %v", err)
	}
	hb, err := RulesHash(b)
	if err != nil {
		t.Fatalf("RulesHash: %v", err)
	}
	if ha != hb {
		t.Error("RulesHash should be order- and duplicate-insensitive over Include/Exclude")
	}
}

func TestRulesHashExcludesNonContentFields(t *testing.T) {
	a := types.ResolvedSource{ID: "a", Repo: "repo-a", Ref: "main", TargetDir: "vendor/a", MaxFiles: 5}
	b := types.ResolvedSource{ID: "b", Repo: "repo-b", Ref: "dev", TargetDir: "vendor/b", MaxFiles: 5}

	ha, err := RulesHash(a)
	if err != nil {
		t.Fatalf("RulesHash: %v", err)
	}
	hb, err := RulesHash(b)
	if err != nil {
		t.Fatalf("RulesHash: %v", err)
	}
	if ha != hb {
		t.Error("RulesHash should not vary with id/repo/ref/targetDir, only content-affecting fields")
	}
}

func TestRulesHashChangesWithContentFields(t *testing.T) {
	a := types.ResolvedSource{MaxFiles: 5}
	b := types.ResolvedSource{MaxFiles: 6}

	ha, _ := RulesHash(a)
	hb, _ := RulesHash(b)
	if ha == hb {
		t.Error("RulesHash should change when a content-affecting field changes")
	}
}
