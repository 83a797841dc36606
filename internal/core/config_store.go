package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fbosch/docs-cache/internal/types"
	"gopkg.in/yaml.v3"
)

// ConfigStore loads the JSON config file. Schema validation beyond what
// the engine consumes is the caller's responsibility; the engine itself
// only reads cacheDir, defaults, and sources.
type ConfigStore interface {
	Load() (types.Config, error)
	Path() string
}

// FileConfigStore implements ConfigStore against a JSONStore[types.Config].
type FileConfigStore struct {
	store *JSONStore[types.Config]
}

// NewFileConfigStore binds a config store to configPath.
func NewFileConfigStore(configPath string) *FileConfigStore {
	return &FileConfigStore{
		store: NewJSONStore(configPath, false, func() types.Config { return types.Config{} }),
	}
}

// Path returns the config file path.
func (s *FileConfigStore) Path() string { return s.store.Path() }

// Load reads and parses the config file, applying the DefaultCacheDir
// fallback when cacheDir is unset.
func (s *FileConfigStore) Load() (types.Config, error) {
	cfg, err := s.store.Load()
	if err != nil {
		return cfg, err
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}
	return cfg, nil
}

// LoadProjectDefaults reads the optional .docsrc YAML overlay from the
// same directory as the config file, if present, and returns the
// Defaults it declares. Returns a zero-value Defaults and a nil error
// when the file does not exist — the overlay is a pure convenience
// layer, never required.
func LoadProjectDefaults(configPath string) (types.Defaults, error) {
	var defaults types.Defaults
	overlayPath := filepath.Join(filepath.Dir(configPath), ProjectDefaultsFileName)
	data, err := os.ReadFile(overlayPath)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("read %s: %w", overlayPath, err)
	}
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return defaults, fmt.Errorf("parse %s: %w", overlayPath, err)
	}
	return defaults, nil
}

// MergeDefaults overlays override's non-zero fields onto base, returning
// the merged result. override (typically the .docsrc file) wins field by
// field; base (typically the JSON config's own "defaults" object) fills
// in anything override leaves zero.
func MergeDefaults(base, override types.Defaults) types.Defaults {
	merged := base
	if len(override.Include) > 0 {
		merged.Include = override.Include
	}
	if len(override.Exclude) > 0 {
		merged.Exclude = override.Exclude
	}
	if override.MaxBytes != 0 {
		merged.MaxBytes = override.MaxBytes
	}
	if override.MaxFiles != 0 {
		merged.MaxFiles = override.MaxFiles
	}
	if override.IgnoreHidden {
		merged.IgnoreHidden = true
	}
	if override.UnwrapSingleRootDir {
		merged.UnwrapSingleRootDir = true
	}
	if override.TargetMode != "" {
		merged.TargetMode = override.TargetMode
	}
	if override.Required {
		merged.Required = true
	}
	return merged
}

// ResolveSource merges a Source with Defaults, producing a ResolvedSource
// with every field definite.
func ResolveSource(src types.Source, defaults types.Defaults) types.ResolvedSource {
	resolved := types.ResolvedSource{
		ID:      src.ID,
		Repo:    src.Repo,
		Ref:     src.Ref,
		Include: defaults.Include,
		Exclude: defaults.Exclude,
	}
	if resolved.Ref == "" {
		resolved.Ref = DefaultRef
	}
	if len(src.Include) > 0 {
		resolved.Include = src.Include
	}
	if len(src.Exclude) > 0 {
		resolved.Exclude = src.Exclude
	}

	resolved.MaxBytes = defaults.MaxBytes
	if src.MaxBytes != nil {
		resolved.MaxBytes = *src.MaxBytes
	}
	resolved.MaxFiles = defaults.MaxFiles
	if src.MaxFiles != nil {
		resolved.MaxFiles = *src.MaxFiles
	}
	resolved.IgnoreHidden = defaults.IgnoreHidden
	if src.IgnoreHidden != nil {
		resolved.IgnoreHidden = *src.IgnoreHidden
	}
	resolved.UnwrapSingleRootDir = defaults.UnwrapSingleRootDir
	if src.UnwrapSingleRootDir != nil {
		resolved.UnwrapSingleRootDir = *src.UnwrapSingleRootDir
	}
	resolved.Required = defaults.Required
	if src.Required != nil {
		resolved.Required = *src.Required
	}

	resolved.TargetDir = src.TargetDir
	mode := defaults.TargetMode
	if src.TargetMode != "" {
		mode = src.TargetMode
	}
	if mode == "" {
		mode = string(types.TargetCopy)
	}
	resolved.TargetMode = types.TargetMode(mode)

	return resolved
}

// ValidateResolvedSource applies the config-load-time safety checks: an
// unsafe id, an unsafe repo URL, or a target path that escapes the
// project tree or lands inside the cache directory.
func ValidateResolvedSource(s types.ResolvedSource, projectRoot, cacheRoot string) error {
	if err := ValidateSourceID(s.ID); err != nil {
		return NewConfigError(s.ID, err, "source id must be alphanumeric/hyphen/underscore only", "rename the source id")
	}
	if err := ValidateRepoURL(s.Repo); err != nil {
		return NewConfigError(s.ID, err, "repo URL failed validation", "use an https or ssh URL with no shell metacharacters")
	}
	if s.MaxBytes <= 0 {
		return NewConfigError(s.ID, fmt.Errorf("maxBytes must be > 0"), "", "set maxBytes to a positive value")
	}
	if s.MaxFiles < 0 {
		return NewConfigError(s.ID, fmt.Errorf("maxFiles must be >= 0"), "", "set maxFiles to a non-negative value")
	}
	if s.TargetDir != "" {
		abs, err := ValidateWritePath(projectRoot, s.TargetDir)
		if err != nil {
			return NewConfigError(s.ID, fmt.Errorf("%w: %v", ErrUnsafeTargetPath, err), "", "choose a targetDir inside the project tree")
		}
		cacheAbs, _ := filepath.Abs(cacheRoot)
		if abs == cacheAbs || (len(abs) > len(cacheAbs) && abs[:len(cacheAbs)+1] == cacheAbs+string(filepath.Separator)) {
			return NewConfigError(s.ID, ErrUnsafeTargetPath, "targetDir falls inside the cache directory", "choose a targetDir outside the cache root")
		}
	}
	return nil
}
