package syncer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/laguz/internal/storage"
)

// Watch starts an fsnotify watcher on the vault root and feeds touched
// paths into the debouncer until ctx is cancelled. It does not interpret
// file content.
//
// New directories created at runtime are added to the watch list, and any
// tracked files already inside them are touched. A lost notification
// channel is fatal: it is recorded on health and returned, never silently
// absorbed, because from that point the vault would drift with no warning.
func Watch(ctx context.Context, store *storage.FS, deb *Debouncer, health *Health, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		health.Set(err)
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, store.Root()); err != nil {
		health.Set(err)
		return err
	}

	health.Set(nil)
	logger.Info("watcher: started", slog.String("root", store.Root()))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				err := errors.New("watcher: event channel closed")
				health.Set(err)
				logger.Error("watcher: notification channel lost, vault no longer monitored")
				return err
			}

			absPath := ev.Name

			// New directories: watch them and pick up any tracked files
			// they already contain.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					touchDir(store, deb, absPath, logger)
					continue
				}
			}

			if !store.Tracked(absPath) {
				continue
			}
			rel, relErr := store.Rel(absPath)
			if relErr != nil {
				logger.Debug("watcher: ignoring path outside root",
					slog.String("path", absPath))
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				deb.Touch(rel)
				logger.Debug("watcher: touched", slog.String("path", rel))

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Ledger rows are owned by the entity deletion path; the
				// watcher only drops the pending check so a vanished file
				// is not chased.
				deb.Cancel(rel)
				logger.Debug("watcher: pending check cancelled",
					slog.String("path", rel), slog.String("op", ev.Op.String()))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				err := errors.New("watcher: error channel closed")
				health.Set(err)
				logger.Error("watcher: notification channel lost, vault no longer monitored")
				return err
			}
			// Overflow or watch-limit problems mean events were dropped
			// and the vault may already be stale. Raise the health signal
			// so operators see it; the next reconcile heals the gap.
			health.Set(watchErr)
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// touchDir touches every tracked file under a newly created directory.
func touchDir(store *storage.FS, deb *Debouncer, dirPath string, logger *slog.Logger) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !store.Tracked(path) {
			return nil
		}
		rel, relErr := store.Rel(path)
		if relErr != nil {
			return nil
		}
		deb.Touch(rel)
		logger.Debug("watcher: touched from new dir", slog.String("path", rel))
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
