package index

import (
	"errors"
	"log/slog"
	"time"

	"github.com/arond1/jotter/internal/apperr"
	"github.com/arond1/jotter/internal/checksum"
	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/parser"
	"github.com/arond1/jotter/internal/tree"
)

// Sync brings the index up to date with every registered notebook and drops
// notebooks that are no longer registered.
func Sync(db *DB, m *notebook.Manager, logger *slog.Logger) error {
	list, err := m.List(notebook.AllUsers)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(list))
	for _, nb := range list {
		known[nb.Name] = struct{}{}
		s, err := m.Load(nb.Name)
		if err != nil {
			logger.Warn("sync: load failed", slog.String("notebook", nb.Name), slog.String("error", err.Error()))
			continue
		}
		if err := SyncNotebook(db, s, logger); err != nil {
			logger.Warn("sync: notebook failed", slog.String("notebook", nb.Name), slog.String("error", err.Error()))
		}
	}

	indexed, err := db.Notebooks()
	if err != nil {
		return err
	}
	for _, name := range indexed {
		if _, ok := known[name]; ok {
			continue
		}
		if err := db.DeleteNotebook(name); err != nil {
			logger.Warn("sync: drop failed", slog.String("notebook", name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: dropped notebook", slog.String("notebook", name))
		}
	}
	return nil
}

// SyncNotebook indexes the notes of one loaded notebook:
//   - new/changed leaves are parsed and upserted
//   - indexed paths that are no longer leaves of the tree, or whose file is
//     gone, are removed
func SyncNotebook(db *DB, s *notebook.Session, logger *slog.Logger) error {
	return syncNotebook(db, s, logger, nil)
}

func syncNotebook(db *DB, s *notebook.Session, logger *slog.Logger, emit EventCallback) error {
	checksums, err := db.AllChecksums(s.Name())
	if err != nil {
		return err
	}

	leaves := make(map[string]struct{})
	_ = tree.Walk(s.Tree(), func(p string, n tree.Node) error {
		if !n.IsLeaf() {
			return nil
		}
		data, err := s.ReadNote(p)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				leaves[p] = struct{}{}
			}
			logger.Warn("sync: read failed",
				slog.String("notebook", s.Name()), slog.String("path", p), slog.String("error", err.Error()))
			return nil
		}
		leaves[p] = struct{}{}
		old, indexed := checksums[p]
		if old == checksum.Sum(data) {
			return nil
		}
		if err := IndexNote(db, s.Name(), p, data); err != nil {
			logger.Warn("sync: index failed",
				slog.String("notebook", s.Name()), slog.String("path", p), slog.String("error", err.Error()))
			return nil
		}
		logger.Debug("sync: indexed", slog.String("notebook", s.Name()), slog.String("path", p))
		if emit != nil {
			kind := "created"
			if indexed {
				kind = "updated"
			}
			emit(kind, s.Name(), p)
		}
		return nil
	})

	for p := range checksums {
		if _, ok := leaves[p]; ok {
			continue
		}
		if err := db.DeleteNote(s.Name(), p); err != nil {
			logger.Warn("sync: delete failed",
				slog.String("notebook", s.Name()), slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("notebook", s.Name()), slog.String("path", p))
		if emit != nil {
			emit("deleted", s.Name(), p)
		}
	}
	return nil
}

// IndexNote parses data and upserts it.
func IndexNote(db *DB, nb, path string, data []byte) error {
	n := parser.Parse(data)
	return db.UpsertNote(NoteRow{
		Notebook:  nb,
		Path:      path,
		Title:     n.Title,
		Checksum:  checksum.Sum(data),
		Tags:      n.Tags,
		UpdatedAt: time.Now(),
	}, n.Body)
}
