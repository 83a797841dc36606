package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherFiresOnConfigWrite(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "docs.json")
	if err := os.WriteFile(configPath, []byte(`{"sources":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	w := &Watcher{ConfigPath: configPath, Opts: WatchOptions{Debounce: 20 * time.Millisecond}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher time to start and register its fsnotify watch.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(configPath, []byte(`{"sources":[],"cacheDir":".docs"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not invoked after a config write")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned an error after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestDefaultWatchOptionsDebounce(t *testing.T) {
	opts := DefaultWatchOptions()
	if opts.Debounce <= 0 {
		t.Error("expected a positive default debounce")
	}
}

func TestNewWatcherBindsConfigPath(t *testing.T) {
	w := NewWatcher("/some/path/docs.json")
	if w.ConfigPath != "/some/path/docs.json" {
		t.Errorf("ConfigPath = %q, want %q", w.ConfigPath, "/some/path/docs.json")
	}
}
