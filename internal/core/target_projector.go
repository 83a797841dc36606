package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fbosch/docs-cache/internal/types"
	"golang.org/x/sys/unix"
)

// TargetProjector exposes a materialized source at a user-facing target
// path via symlink or copy.
type TargetProjector struct {
	FS FileSystem
}

// NewTargetProjector wires a TargetProjector against the OS filesystem.
func NewTargetProjector() *TargetProjector {
	return &TargetProjector{FS: NewOSFileSystem()}
}

// Project exposes sourceDir (a materialized <cacheRoot>/<id>/ directory)
// at targetPath per resolved.TargetMode. Returns a warning string,
// non-empty only when a requested symlink fell back to copy.
func (p *TargetProjector) Project(sourceDir, targetPath string, resolved types.ResolvedSource, cacheRoot string) (warning string, err error) {
	if resolved.TargetDir == "" {
		return "", nil
	}

	absCacheRoot, _ := filepath.Abs(cacheRoot)
	absTarget, _ := filepath.Abs(targetPath)
	if rel, rerr := filepath.Rel(absCacheRoot, absTarget); rerr == nil && !isEscaping(rel) {
		return "", NewConfigError(resolved.ID, ErrUnsafeTargetPath, "target path falls inside the cache root", "choose a targetDir outside the cache root")
	}
	absSource, _ := filepath.Abs(sourceDir)
	if rel, rerr := filepath.Rel(absSource, absTarget); rerr == nil && !isEscaping(rel) {
		return "", NewConfigError(resolved.ID, ErrUnsafeTargetPath, "target path falls inside the source directory itself", "choose a targetDir outside the materialized source")
	}

	projectionSource := unwrapProjectionSource(sourceDir, resolved)

	if err := p.FS.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return "", NewFilesystemError(resolved.ID, err, "failed to create target's parent directory", "")
	}

	if err := removeExistingTarget(targetPath); err != nil {
		return "", NewFilesystemError(resolved.ID, err, "failed to remove existing target", "")
	}

	switch resolved.TargetMode {
	case types.TargetSymlink:
		if err := os.Symlink(projectionSource, targetPath); err != nil {
			if !symlinkUnsupported(err) {
				return "", NewFilesystemError(resolved.ID, err, "failed to create target symlink", "")
			}
			if copyErr := copyTree(p.FS, projectionSource, targetPath); copyErr != nil {
				return "", NewFilesystemError(resolved.ID, copyErr, "symlink fallback copy failed", "")
			}
			return fmt.Sprintf("symlink unsupported on this platform (%v); fell back to copy", err), nil
		}
		return "", nil
	case types.TargetCopy:
		if err := copyTree(p.FS, projectionSource, targetPath); err != nil {
			return "", NewFilesystemError(resolved.ID, err, "failed to copy materialized source to target", "")
		}
		return "", nil
	default:
		return "", NewConfigError(resolved.ID, fmt.Errorf("unknown targetMode %q", resolved.TargetMode), "", "set targetMode to \"symlink\" or \"copy\"")
	}
}

// isEscaping reports whether rel (a filepath.Rel result) climbs above its base.
func isEscaping(rel string) bool {
	return rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// unwrapProjectionSource projects from the materialized directory's sole
// subdirectory when it holds exactly one non-metadata subdirectory and no
// non-metadata top-level regular files.
func unwrapProjectionSource(sourceDir string, resolved types.ResolvedSource) string {
	if !resolved.UnwrapSingleRootDir {
		return sourceDir
	}
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return sourceDir
	}
	var onlyDir string
	dirCount := 0
	for _, e := range entries {
		if e.Name() == ManifestFileName || e.Name() == TOCFileName {
			continue
		}
		if e.IsDir() {
			dirCount++
			onlyDir = e.Name()
			continue
		}
		return sourceDir // non-metadata regular file present
	}
	if dirCount == 1 {
		return filepath.Join(sourceDir, onlyDir)
	}
	return sourceDir
}

// removeExistingTarget removes whatever currently occupies targetPath —
// directory, symlink, junction, or plain file — if anything does.
func removeExistingTarget(targetPath string) error {
	if _, err := os.Lstat(targetPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(targetPath)
}

// symlinkUnsupported reports whether err is one of the platform conditions
// that should trigger the copy fallback: permission denied, not
// supported, or invalid argument. The exact errno set is
// platform-dependent; this is the minimum set worth falling back on.
func symlinkUnsupported(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		errors.Is(err, unix.EPERM) ||
		errors.Is(err, unix.ENOTSUP) ||
		errors.Is(err, unix.EINVAL)
}

// copyTree recursively copies src to dst, skipping symlinks (consistent
// with the Materializer's no-symlinks guarantee).
func copyTree(fsys FileSystem, src, dst string) error {
	entries, err := fsys.ReadDir(src)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())

		info, err := fsys.Lstat(srcPath)
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if e.IsDir() {
			if err := copyTree(fsys, srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if _, err := fsys.CopyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}
