package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fbosch/docs-cache/internal/types"
)

// MarkdownTOCRenderer writes a TOC.md at the root of each materialized
// source directory: a sorted file listing, grouped under top-level
// directory headings, read back from the
// manifest. It never re-walks the filesystem, so it can't disagree with
// what was actually materialized.
type MarkdownTOCRenderer struct{}

// NewMarkdownTOCRenderer returns the default TOCRenderer.
func NewMarkdownTOCRenderer() *MarkdownTOCRenderer { return &MarkdownTOCRenderer{} }

// Render reads sourceDir's manifest and writes a TOC.md listing every
// materialized file, grouped by its top-level directory.
func (MarkdownTOCRenderer) Render(sourceDir string, resolved types.ResolvedSource) error {
	manifest, err := ReadManifestFile(sourceDir)
	if err != nil {
		return fmt.Errorf("read manifest for TOC: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", resolved.ID)
	fmt.Fprintf(&sb, "Source: %s (%s)\n\n", resolved.Repo, resolved.Ref)
	fmt.Fprintf(&sb, "%d files, %d bytes.\n\n", manifest.FileCount(), manifest.TotalBytes())

	currentGroup := ""
	for _, e := range manifest.Entries {
		group := "."
		if idx := strings.IndexByte(e.Path, '/'); idx != -1 {
			group = e.Path[:idx]
		}
		if group != currentGroup {
			fmt.Fprintf(&sb, "## %s\n\n", group)
			currentGroup = group
		}
		fmt.Fprintf(&sb, "- [%s](%s)\n", e.Path, e.Path)
	}

	return os.WriteFile(filepath.Join(sourceDir, TOCFileName), []byte(sb.String()), 0o644)
}
