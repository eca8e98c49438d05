package server

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/skelly-dev/codr/internal/parser"
	"github.com/skelly-dev/codr/internal/store"
)

// Watcher marks indexed files stale when they change on disk.
type Watcher struct {
	store     *store.Store
	languages *parser.Registry
	logger    *slog.Logger
	fs        *fsnotify.Watcher
}

// NewWatcher watches the directories of every file in the current generation.
// Directories are registered before it returns.
func NewWatcher(st *store.Store, languages *parser.Registry, logger *slog.Logger) (*Watcher, error) {
	snap, err := st.Snapshot()
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := make(map[string]bool)
	for _, f := range snap.Files {
		dirs[filepath.Dir(f.FilePath)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			logger.Warn("cannot watch directory", "dir", dir, "error", err)
		}
	}
	return &Watcher{store: st, languages: languages, logger: logger, fs: fsw}, nil
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.languages.Supports(event.Name) {
				continue
			}
			if err := w.store.MarkStale(event.Name); err != nil {
				w.logger.Warn("mark stale failed", "file", event.Name, "error", err)
				continue
			}
			w.logger.Debug("file changed", "file", event.Name, "op", event.Op.String())
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}
