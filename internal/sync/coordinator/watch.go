package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchTable observes a file-backed table document and pokes the sync
// loop when it changes. The parent directory is watched rather than the
// file itself so atomic replaces (write-then-rename, Kubernetes ConfigMap
// symlink swaps) keep being observed after the original inode goes away.
// Blocks until the context is cancelled.
func (c *defaultCoordinator) watchTable(ctx context.Context, w *tableWorker) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher for table %q: %w", w.cfg.Name, err)
	}
	defer watcher.Close()

	docPath := w.cfg.File.Path
	watchDir := filepath.Dir(docPath)
	if err := watcher.Add(watchDir); err != nil {
		return fmt.Errorf("failed to watch directory %s for table %q: %w", watchDir, w.cfg.Name, err)
	}

	slog.InfoContext(ctx, "Watching table document",
		"table", w.cfg.Name, "path", docPath)

	base := filepath.Base(docPath)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping table document watcher", "table", w.cfg.Name)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher event channel closed for table %q", w.cfg.Name)
			}

			if filepath.Base(event.Name) != base {
				continue
			}

			// Write covers in-place edits; Create and Rename cover atomic
			// replaces landing on the document path
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				slog.DebugContext(ctx, "Table document changed",
					"table", w.cfg.Name, "op", event.Op.String())
				w.pokeWatch()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed for table %q", w.cfg.Name)
			}
			// Log error but continue watching
			slog.ErrorContext(ctx, "File watcher error",
				"table", w.cfg.Name, "error", err)
		}
	}
}

// pokeWatch coalesces watch events into at most one pending sync check.
// The sync check's hash comparison drops no-op rewrites, so no debounce
// timer is needed here.
func (w *tableWorker) pokeWatch() {
	select {
	case w.watchPokes <- struct{}{}:
	default:
	}
}
