package images

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for events to settle.
const DefaultDebounce = 200 * time.Millisecond

// WatchOptions controls Watch.
type WatchOptions struct {
	Debounce time.Duration
	Logger   *log.Logger
}

// Watch calls fn after changes under dir settle, until ctx is cancelled.
// Directories created while watching are added to the watch list. Errors
// from fn are logged and watching continues.
func Watch(ctx context.Context, dir string, opts WatchOptions, fn func() error) error {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	delay := opts.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, dir); err != nil {
		return err
	}
	logger.Info("watching for image changes", "dir", dir)

	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			logger.Debug("event received", "name", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						logger.Warn("watch new directory", "dir", event.Name, "err", err)
					}
				}
			}
			timer.Reset(delay)

		case werr, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Error("fsnotify error", "err", werr)

		case <-timer.C:
			if err := fn(); err != nil {
				logger.Error("image sync failed", "err", err)
			}
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.Add(p); err != nil {
				return fmt.Errorf("watch %s: %w", p, err)
			}
		}
		return nil
	})
}
