package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// JSONStore is a generic load/save wrapper around a JSON file, atomic on
// write (temp file + rename) and tolerant of a missing file when
// allowMissing is set.
type JSONStore[T any] struct {
	path         string
	allowMissing bool
	zero         func() T
}

// NewJSONStore builds a store bound to path. zero supplies the value
// Load returns when the file is missing and allowMissing is true.
func NewJSONStore[T any](path string, allowMissing bool, zero func() T) *JSONStore[T] {
	return &JSONStore[T]{path: path, allowMissing: allowMissing, zero: zero}
}

// Path returns the file path this store reads and writes.
func (s *JSONStore[T]) Path() string { return s.path }

// Load reads and unmarshals the file.
func (s *JSONStore[T]) Load() (T, error) {
	var value T
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && s.allowMissing {
			if s.zero != nil {
				return s.zero(), nil
			}
			return value, nil
		}
		return value, fmt.Errorf("read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return value, nil
}

// Save marshals value and writes it atomically: write to a sibling temp
// file, then rename over the final path.
func (s *JSONStore[T]) Save(value T) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%s-%s", filepath.Base(s.path), uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s -> %s: %w", tmp, s.path, err)
	}
	return nil
}
