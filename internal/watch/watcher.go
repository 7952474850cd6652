// Package watch triggers a rebuild when files under the watched directories change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
)

// TriggerFunc runs one rebuild. Triggers never overlap.
type TriggerFunc func(ctx context.Context) error

// Options configure a Watcher.
type Options struct {
	Dirs []string
	// Ignore lists directories whose events never trigger, typically the build outputs.
	Ignore   []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher coalesces file system events into debounced rebuilds.
type Watcher struct {
	opts    Options
	trigger TriggerFunc
	logger  *slog.Logger
}

// New creates a watcher calling trigger after every quiet period following a change.
func New(opts Options, trigger TriggerFunc) (*Watcher, error) {
	if len(opts.Dirs) == 0 {
		return nil, errors.ConfigError("watch requires at least one directory").Build()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for i, d := range opts.Ignore {
		if abs, err := filepath.Abs(d); err == nil {
			opts.Ignore[i] = abs
		}
	}
	return &Watcher{opts: opts, trigger: trigger, logger: logger}, nil
}

// Run watches until ctx is cancelled. Trigger errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	defer func() { _ = fw.Close() }()

	for _, d := range w.opts.Dirs {
		if err := w.addRecursive(fw, d); err != nil {
			return err
		}
	}
	w.logger.Info("Watching for changes", slog.Int("dirs", len(w.opts.Dirs)))

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if err := w.addRecursive(fw, ev.Name); err != nil {
					w.logger.Debug("Could not watch new path", logfields.Path(ev.Name), logfields.Error(err))
				}
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
				w.logger.Debug("Change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				fire = time.After(w.opts.Debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))
		case <-fire:
			fire = nil
			start := time.Now()
			if err := w.trigger(ctx); err != nil {
				w.logger.Error("Rebuild failed", logfields.Error(err))
				continue
			}
			w.logger.Info("Rebuild finished", logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
		}
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(p) || (p != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch directory").
				WithContext("path", p).Build()
		}
		return nil
	})
}

func (w *Watcher) ignored(p string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	for _, ig := range w.opts.Ignore {
		if abs == ig || strings.HasPrefix(abs, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
