package catalog

import (
	"context"
	"fmt"
	log "log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const settleDelay = 200 * time.Millisecond

// Watcher reloads a Store whenever its menu file changes on disk.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *log.Logger
}

func NewWatcher(store *Store, logger *log.Logger) (*Watcher, error) {
	if store.Path() == "" {
		return nil, fmt.Errorf("watch menu: store has no file")
	}
	if logger == nil {
		logger = log.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch menu: %w", err)
	}

	// Editors replace files, so watch the directory.
	if err := w.Add(filepath.Dir(store.Path())); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch menu: %w", err)
	}

	return &Watcher{store: store, watcher: w, logger: logger}, nil
}

// Run blocks until ctx is done. Bursts of events collapse into one reload.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	target := filepath.Clean(w.store.Path())

	var (
		timer   = time.NewTimer(time.Hour)
		pending bool
	)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("Menu changed", "op", ev.Op.String())
			pending = true
			timer.Reset(settleDelay)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Menu watcher error", "err", err)

		case <-timer.C:
			if pending {
				pending = false
				_ = w.store.Reload()
			}
		}
	}
}
