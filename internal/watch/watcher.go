// Package watch invalidates the server's caches when the local vault
// changes on disk. It never refreshes anything proactively: the next read
// repopulates the caches on demand.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a vault directory tree and calls the invalidation hook,
// debounced, whenever markdown files change.
type Watcher struct {
	root       string
	debounce   time.Duration
	invalidate func()
	log        *slog.Logger
	fw         *fsnotify.Watcher
}

// New creates a Watcher over root. The invalidate hook runs at most once
// per debounce window however many events arrive.
func New(root string, debounce time.Duration, invalidate func(), log *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		root:       root,
		debounce:   debounce,
		invalidate: invalidate,
		log:        log,
		fw:         fw,
	}
	if err := w.addRecursive(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive registers root and every subdirectory. fsnotify does not
// recurse on its own; new directories are added as their create events
// arrive.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()
	w.log.Info("vault watcher started", slog.String("root", w.root))

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				// Possibly a new directory; watch it so nested changes
				// keep arriving.
				_ = w.addRecursive(event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", slog.Any("error", err))

		case <-timerC:
			timer = nil
			timerC = nil
			w.log.Debug("vault changed, invalidating caches")
			w.invalidate()
		}
	}
}

// relevant filters to markdown and directory events outside hidden trees.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	// Directory events matter for structure; otherwise only .md files do.
	if strings.HasSuffix(event.Name, ".md") {
		return true
	}
	return filepath.Ext(event.Name) == ""
}
