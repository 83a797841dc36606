package core

import "testing"

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		name     string
		relPath  string
		patterns []string
		want     bool
	}{
		{"exact match", "docs/readme.md", []string{"docs/readme.md"}, true},
		{"no patterns", "docs/readme.md", nil, false},
		{"simple star within segment", "docs/readme.md", []string{"docs/*.md"}, true},
		{"simple star does not cross separator", "docs/sub/readme.md", []string{"docs/*.md"}, false},
		{"doublestar matches nested", "docs/sub/readme.md", []string{"docs/**/*.md"}, true},
		{"doublestar suffix only", "a/b/c/file.go", []string{"**/file.go"}, true},
		{"doublestar prefix only, trailing slash", "docs/anything/else", []string{"docs/**"}, true},
		{"doublestar prefix only matches prefix itself", "docs", []string{"docs/**"}, true},
		{"question mark single char", "a/b1.md", []string{"a/b?.md"}, true},
		{"question mark rejects extra char", "a/b12.md", []string{"a/b?.md"}, false},
		{"multiple patterns, second matches", "x/y.txt", []string{"*.md", "x/*.txt"}, true},
		{"no match", "x/y.txt", []string{"*.md"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchesAny(tt.relPath, tt.patterns)
			if got != tt.want {
				t.Errorf("MatchesAny(%q, %v) = %v, want %v", tt.relPath, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestFixedPrefix(t *testing.T) {
	tests := []struct {
		name       string
		pattern    string
		wantPrefix string
		wantOK     bool
	}{
		{"plain directory prefix", "docs/guide/file.md", "docs/guide", true},
		{"top level file has no dir", "readme.md", "", true},
		{"glob star disqualifies", "docs/*.md", "", false},
		{"glob bracket disqualifies", "docs/[abc].md", "", false},
		{"glob question mark disqualifies", "docs/a?.md", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, ok := fixedPrefix(tt.pattern)
			if ok != tt.wantOK {
				t.Fatalf("fixedPrefix(%q) ok = %v, want %v", tt.pattern, ok, tt.wantOK)
			}
			if ok && prefix != tt.wantPrefix {
				t.Errorf("fixedPrefix(%q) prefix = %q, want %q", tt.pattern, prefix, tt.wantPrefix)
			}
		})
	}
}
