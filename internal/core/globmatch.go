package core

import (
	"path/filepath"
	"strings"
)

// MatchesAny reports whether relPath matches any of the given gitignore-style
// glob patterns. Include and exclude patterns share this matcher since
// both are evaluated symmetrically during the walk.
//
//	"*"  matches any sequence of non-separator characters
//	"**" matches any sequence of characters including separators
//	"?"  matches any single non-separator character
//
// All paths are normalized to forward slashes before matching.
func MatchesAny(relPath string, patterns []string) bool {
	normalized := filepath.ToSlash(relPath)
	for _, pattern := range patterns {
		if matchGlob(normalized, filepath.ToSlash(pattern)) {
			return true
		}
	}
	return false
}

// matchGlob matches a path against a single glob pattern with ** support.
// Both path and pattern MUST be forward-slash normalized before calling matchGlob.
func matchGlob(path, pattern string) bool {
	if !strings.Contains(pattern, "**") {
		return matchSimple(path, pattern)
	}
	return matchDoublestar(path, pattern)
}

// matchDoublestar handles glob patterns containing "**".
// "**" matches zero or more path segments (including separators).
func matchDoublestar(path, pattern string) bool {
	parts := strings.Split(pattern, "**")

	if len(parts) == 2 {
		prefix := strings.TrimSuffix(parts[0], "/")
		suffix := strings.TrimPrefix(parts[1], "/")

		if suffix == "" {
			if prefix == "" {
				return true
			}
			return path == prefix || strings.HasPrefix(path, prefix+"/")
		}

		if prefix == "" {
			if matchSimple(path, suffix) {
				return true
			}
			for i := 0; i < len(path); i++ {
				if path[i] == '/' && matchSimple(path[i+1:], suffix) {
					return true
				}
			}
			return false
		}

		if !strings.HasPrefix(path, prefix+"/") && path != prefix {
			return false
		}
		remaining := strings.TrimPrefix(path, prefix+"/")
		if matchSimple(remaining, suffix) {
			return true
		}
		for i := 0; i < len(remaining); i++ {
			if remaining[i] == '/' && matchSimple(remaining[i+1:], suffix) {
				return true
			}
		}
		return false
	}

	// Multiple ** segments: split at the first and recurse on the rest.
	firstStar := strings.Index(pattern, "**")
	prefix := strings.TrimSuffix(pattern[:firstStar], "/")
	rest := strings.TrimPrefix(pattern[firstStar+2:], "/")

	if prefix == "" {
		if matchGlob(path, rest) {
			return true
		}
		for i := 0; i < len(path); i++ {
			if path[i] == '/' && matchGlob(path[i+1:], rest) {
				return true
			}
		}
		return false
	}

	if !strings.HasPrefix(path, prefix+"/") && path != prefix {
		return false
	}
	remaining := strings.TrimPrefix(path, prefix+"/")
	if matchGlob(remaining, rest) {
		return true
	}
	for i := 0; i < len(remaining); i++ {
		if remaining[i] == '/' && matchGlob(remaining[i+1:], rest) {
			return true
		}
	}
	return false
}

// matchSimple matches a path against a pattern without ** (standard glob
// only), converting to OS-native separators first so '*' never crosses a
// directory boundary regardless of platform.
func matchSimple(path, pattern string) bool {
	matched, _ := filepath.Match(filepath.FromSlash(pattern), filepath.FromSlash(path))
	return matched
}

// fixedPrefix reports whether pattern names a fixed directory prefix —
// used by the Fetcher to decide cone-mode vs no-cone-mode sparse checkout.
// A trailing "/**" after a metacharacter-free directory yields that
// directory; a metacharacter anywhere else disqualifies the pattern; a
// plain file path yields its parent directory ("" at the top level).
func fixedPrefix(pattern string) (prefix string, ok bool) {
	pattern = filepath.ToSlash(pattern)
	if strings.HasSuffix(pattern, "/**") {
		dir := strings.TrimSuffix(pattern, "/**")
		if dir != "" && !strings.ContainsAny(dir, "*?[") {
			return dir, true
		}
	}
	if strings.ContainsAny(pattern, "*?[") {
		return "", false
	}
	dir := pattern
	if idx := strings.LastIndex(pattern, "/"); idx != -1 {
		dir = pattern[:idx]
	} else {
		dir = ""
	}
	return dir, true
}
