package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arond1/jotter/internal/checksum"
	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/tree"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind, notebook, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch follows edits made outside the application below the manager's
// root and keeps the index in step until ctx is cancelled. The same rule as
// SyncNotebook applies: only leaves of a notebook's tree are indexed, files
// the tree does not know are ignored. cb (if non-nil) is called after each
// index mutation.
//
// New directories are added to the watch list as they appear. Renames and
// rewrites of a notebook document schedule a reconciliation pass for that
// notebook.
func Watch(ctx context.Context, db *DB, m *notebook.Manager, logger *slog.Logger, cb EventCallback) error {
	root := m.Root()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	emit := func(kind, nb, p string) {
		if cb != nil {
			cb(kind, nb, p)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	pending := map[string]struct{}{}
	scheduleReconcile := func(nb string) {
		pending[nb] = struct{}{}
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			for nb := range pending {
				reconcile(db, m, nb, logger, emit)
			}
			pending = map[string]struct{}{}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			nb, p, ok := splitNotePath(rel)

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel), slog.String("error", addErr.Error()))
					}
					// The directory may have arrived with files in it.
					if segs := tree.Split(rel); len(segs) > 0 && !strings.HasPrefix(segs[0], ".") {
						scheduleReconcile(segs[0])
					}
					continue
				}
			}
			if !ok {
				continue
			}
			if p == notebook.DocumentFile {
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					scheduleReconcile(nb)
				}
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				indexLeaf(db, m, nb, p, logger, emit)

			case ev.Op&fsnotify.Remove != 0:
				dropNote(db, nb, p, logger, emit)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports the old path only; the new one arrives
				// as a Create when it stays below a watched directory.
				dropNote(db, nb, p, logger, emit)
				scheduleReconcile(nb)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// indexLeaf reindexes p when it is a leaf of the notebook's tree and its
// content changed.
func indexLeaf(db *DB, m *notebook.Manager, nb, p string, logger *slog.Logger, emit EventCallback) {
	s, err := m.Load(nb)
	if err != nil {
		logger.Debug("watcher: notebook not loadable", slog.String("notebook", nb), slog.String("error", err.Error()))
		return
	}
	if n, ok := tree.Get(s.Tree(), p); !ok || !n.IsLeaf() {
		return
	}
	data, err := s.ReadNote(p)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("notebook", nb), slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	old, _ := db.GetChecksum(nb, p)
	if old == checksum.Sum(data) {
		return
	}
	if err := IndexNote(db, nb, p, data); err != nil {
		logger.Warn("watcher: index failed", slog.String("notebook", nb), slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	kind := "updated"
	if old == "" {
		kind = "created"
	}
	logger.Debug("watcher: indexed", slog.String("notebook", nb), slog.String("path", p), slog.String("op", kind))
	emit(kind, nb, p)
}

// dropNote removes p from the index if it was indexed.
func dropNote(db *DB, nb, p string, logger *slog.Logger, emit EventCallback) {
	if cs, _ := db.GetChecksum(nb, p); cs == "" {
		return
	}
	if err := db.DeleteNote(nb, p); err != nil {
		logger.Warn("watcher: delete failed", slog.String("notebook", nb), slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	logger.Debug("watcher: deleted", slog.String("notebook", nb), slog.String("path", p))
	emit("deleted", nb, p)
}

// splitNotePath splits a root-relative path into notebook name and path
// inside the notebook. Hidden notebooks and hidden files are skipped.
func splitNotePath(rel string) (nb, p string, ok bool) {
	nb, p, found := strings.Cut(rel, "/")
	if !found || nb == "" || p == "" {
		return "", "", false
	}
	if strings.HasPrefix(nb, ".") || strings.HasPrefix(tree.Base(p), ".") {
		return "", "", false
	}
	return nb, p, true
}

// reconcile reloads one notebook and syncs the index against its tree.
func reconcile(db *DB, m *notebook.Manager, nb string, logger *slog.Logger, emit EventCallback) {
	s, err := m.Load(nb)
	if err != nil {
		logger.Debug("reconcile: notebook not loadable", slog.String("notebook", nb), slog.String("error", err.Error()))
		return
	}
	if err := syncNotebook(db, s, logger, emit); err != nil {
		logger.Warn("reconcile: sync failed", slog.String("notebook", nb), slog.String("error", err.Error()))
	}
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
