package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/groundwork/loader"
)

const defaultDebounce = 2 * time.Second

// watcher triggers a callback once a burst of changes to loadable files
// under the loader root has gone quiet.
type watcher struct {
	loader   *loader.Loader
	debounce time.Duration
	onChange func(context.Context)
	fsw      *fsnotify.Watcher
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	runMu sync.Mutex
}

func newWatcher(l *loader.Loader, debounce time.Duration, onChange func(context.Context)) (*watcher, error) {
	if l == nil {
		return nil, fmt.Errorf("watch: no loader configured")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &watcher{
		loader:   l,
		debounce: debounce,
		onChange: onChange,
		fsw:      fsw,
		logger:   slog.Default().With("component", "watch"),
	}
	if err := w.addTree(l.Root()); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every directory below it. fsnotify is not
// recursive.
func (w *watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// relevant reports whether an event touches a file the loader would read.
func (w *watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	rel, err := filepath.Rel(w.loader.Root(), event.Name)
	if err != nil {
		return false
	}
	return w.loader.Matches(filepath.ToSlash(rel))
}

// schedule (re)arms the debounce timer.
func (w *watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.runMu.Lock()
		defer w.runMu.Unlock()
		w.onChange(ctx)
	})
}

func (w *watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Run processes events until ctx is done.
func (w *watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	defer w.stopTimer()

	w.logger.Info("watching", "root", w.loader.Root(), "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: events channel closed")
			}
			if event.Has(fsnotify.Create) {
				// New directories need their own watch.
				if err := w.addTree(event.Name); err != nil {
					w.logger.Debug("add watch", "path", event.Name, "err", err)
				}
			}
			if w.relevant(event) {
				w.logger.Debug("change", "path", event.Name, "op", event.Op.String())
				w.schedule(ctx)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: errors channel closed")
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}
