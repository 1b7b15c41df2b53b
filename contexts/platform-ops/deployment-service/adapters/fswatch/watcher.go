// Package fswatch reloads the remap table when its file changes on disk.
package fswatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"basehub/contexts/platform-ops/deployment-service/application"
)

const debounce = 500 * time.Millisecond

type Watcher struct {
	service application.Service
	path    string
	logger  *slog.Logger
}

func NewWatcher(service application.Service, path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		service: service,
		path:    path,
		logger:  logger,
	}
}

// Run blocks until the context is cancelled, reloading the table on every
// write to the watched file. A reload that fails validation keeps the
// previous table active.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops a
	// watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	target := filepath.Clean(w.path)
	var lastReload time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if time.Since(lastReload) < debounce {
				continue
			}
			lastReload = time.Now()

			if _, err := w.service.LoadAndActivate(ctx, w.path); err != nil {
				w.logger.Warn("remap table reload failed, keeping previous table",
					"event", "remap_table_reload_failed",
					"module", "platform-ops/deployment-service",
					"layer", "adapter",
					"path", w.path,
					"error", err.Error(),
				)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("remap table watcher error",
				"event", "remap_table_watch_error",
				"module", "platform-ops/deployment-service",
				"layer", "adapter",
				"error", err.Error(),
			)
		}
	}
}
