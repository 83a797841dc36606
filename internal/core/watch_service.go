package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions configures a Watcher's debounce behavior.
type WatchOptions struct {
	Debounce time.Duration
}

// DefaultWatchOptions debounces for 300ms, enough to
// absorb an editor's write-then-rename save sequence as one event.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{Debounce: 300 * time.Millisecond}
}

// Watcher watches a config file for writes and invokes onChange, once
// per debounce window, for as long as ctx is alive.
type Watcher struct {
	ConfigPath string
	Opts       WatchOptions
}

// NewWatcher wires a Watcher against configPath with default debounce.
func NewWatcher(configPath string) *Watcher {
	return &Watcher{ConfigPath: configPath, Opts: DefaultWatchOptions()}
}

// Run blocks until ctx is done, calling onChange after each debounced
// burst of write or create events on the config file. It watches the
// containing directory, to also catch editors that write-then-rename,
// but events on other files in that directory are ignored.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return NewFilesystemError("", err, "failed to start filesystem watcher", "")
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(w.ConfigPath)
	if err := watcher.Add(dir); err != nil {
		return NewFilesystemError("", err, "failed to watch config directory", "")
	}

	var timer *time.Timer
	fire := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.Opts.Debounce, onChange)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name == w.ConfigPath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				fire()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return NewFilesystemError("", err, "filesystem watcher reported an error", "")
		}
	}
}
