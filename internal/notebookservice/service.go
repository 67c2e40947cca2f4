// Package notebookservice coordinates notebook mutations with the search
// index and the change event stream.
package notebookservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arond1/jotter/internal/apperr"
	"github.com/arond1/jotter/internal/checksum"
	"github.com/arond1/jotter/internal/index"
	"github.com/arond1/jotter/internal/models"
	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/parser"
	"github.com/arond1/jotter/internal/sse"
	"github.com/arond1/jotter/internal/tree"
)

// Publisher receives change events after successful mutations.
type Publisher interface {
	PublishChange(c sse.Change)
}

// NotebookDetail is a notebook document with its name.
type NotebookDetail struct {
	Name string `json:"name"`
	models.Notebook
}

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Notebook    string         `json:"notebook"`
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// Service runs notebook operations and keeps the index and subscribers
// informed. The index and the publisher are optional.
type Service struct {
	nb     *notebook.Manager
	db     *index.DB
	events Publisher
	logger *slog.Logger
}

// NewService creates a new notebook service. db and events may be nil.
func NewService(m *notebook.Manager, db *index.DB, events Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{nb: m, db: db, events: events, logger: logger}
}

// ListNotebooks returns registered notebooks, optionally for one user only
// (notebook.AllUsers disables the filter).
func (s *Service) ListNotebooks(_ context.Context, user int) ([]models.NotebookSummary, error) {
	return s.nb.List(user)
}

// CreateNotebook creates (or re-saves) a notebook. The bool reports whether
// it was newly created.
func (s *Service) CreateNotebook(_ context.Context, name string, user int, public bool) (*NotebookDetail, bool, error) {
	sess, created, err := s.nb.Create(name, user, public)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.reindex(sess)
		s.publish("notebook", "created", name, "", "")
	}
	return detail(sess), created, nil
}

// GetNotebook loads a notebook document.
func (s *Service) GetNotebook(_ context.Context, name string) (*NotebookDetail, error) {
	sess, err := s.nb.Load(name)
	if err != nil {
		return nil, err
	}
	return detail(sess), nil
}

// Tree returns the notebook tree.
func (s *Service) Tree(_ context.Context, name string) (*tree.Branch, error) {
	sess, err := s.nb.Load(name)
	if err != nil {
		return nil, err
	}
	return sess.Tree(), nil
}

// GetNote reads and parses one note.
func (s *Service) GetNote(_ context.Context, name, path string) (*NoteDetail, error) {
	sess, err := s.nb.Load(name)
	if err != nil {
		return nil, err
	}
	data, err := sess.ReadNote(path)
	if err != nil {
		return nil, err
	}
	return noteDetail(name, tree.Clean(path), data), nil
}

// CreateNote creates a note with optional initial content. Creating a path
// that is already a note fails with apperr.ErrAlreadyExists.
func (s *Service) CreateNote(_ context.Context, name, path string, content []byte) (*NoteDetail, error) {
	var out *NoteDetail
	err := s.nb.Update(name, func(sess *notebook.Session) error {
		p := tree.Clean(path)
		if _, ok := tree.Get(sess.Tree(), p); ok && p != "" {
			return fmt.Errorf("notebookservice: note %s: %w", p, apperr.ErrAlreadyExists)
		}
		if err := sess.CreateNote(path); err != nil {
			return err
		}
		if len(content) > 0 {
			if err := sess.WriteNote(p, content); err != nil {
				return err
			}
		}
		s.indexNote(name, p, content)
		out = noteDetail(name, p, content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish("note", "created", name, out.Path, "")
	return out, nil
}

// UpdateNote replaces note content. A non-empty ifMatch must equal the
// checksum of the current content, otherwise apperr.ErrConflict is returned.
func (s *Service) UpdateNote(_ context.Context, name, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	var out *NoteDetail
	err := s.nb.Update(name, func(sess *notebook.Session) error {
		existing, err := sess.ReadNote(path)
		if err != nil {
			return err
		}
		if !checksum.Matches(existing, ifMatch) {
			return fmt.Errorf("notebookservice: %s changed: %w", path, apperr.ErrConflict)
		}
		if err := sess.WriteNote(path, content); err != nil {
			return err
		}
		p := tree.Clean(path)
		s.indexNote(name, p, content)
		out = noteDetail(name, p, content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish("note", "updated", name, out.Path, "")
	return out, nil
}

// RenameNote renames a note or directory within its parent directory and
// returns the new path.
func (s *Service) RenameNote(_ context.Context, name, path, newName string) (string, error) {
	var np, subject string
	err := s.nb.Update(name, func(sess *notebook.Session) error {
		subject = "note"
		if n, ok := tree.Get(sess.Tree(), tree.Clean(path)); ok && n.IsBranch() {
			subject = "dir"
		}
		var err error
		if np, err = sess.RenameNote(path, newName); err != nil {
			return err
		}
		if s.db != nil {
			if err := s.db.DeletePrefix(name, tree.Clean(path)); err != nil {
				s.indexFailed(name, path, err)
			}
		}
		s.reindex(sess)
		return nil
	})
	if err != nil {
		return "", err
	}
	s.publish(subject, "renamed", name, np, tree.Clean(path))
	return np, nil
}

// DeleteNote deletes a note.
func (s *Service) DeleteNote(_ context.Context, name, path string) error {
	err := s.nb.Update(name, func(sess *notebook.Session) error {
		return sess.DeleteNote(path)
	})
	if err != nil {
		return err
	}
	p := tree.Clean(path)
	if s.db != nil {
		if err := s.db.DeleteNote(name, p); err != nil {
			s.indexFailed(name, p, err)
		}
	}
	s.publish("note", "deleted", name, p, "")
	return nil
}

// CreateDirectory creates a directory and its missing parents.
func (s *Service) CreateDirectory(_ context.Context, name, path string) error {
	err := s.nb.Update(name, func(sess *notebook.Session) error {
		return sess.CreateDirectory(path)
	})
	if err != nil {
		return err
	}
	s.publish("dir", "created", name, tree.Clean(path), "")
	return nil
}

// DeleteDirectory deletes an empty directory.
func (s *Service) DeleteDirectory(_ context.Context, name, path string) error {
	err := s.nb.Update(name, func(sess *notebook.Session) error {
		return sess.DeleteDirectory(path)
	})
	if err != nil {
		return err
	}
	p := tree.Clean(path)
	if s.db != nil {
		if err := s.db.DeletePrefix(name, p); err != nil {
			s.indexFailed(name, p, err)
		}
	}
	s.publish("dir", "deleted", name, p, "")
	return nil
}

// Verify compares a notebook's tree with its directory.
func (s *Service) Verify(_ context.Context, name string) ([]notebook.Problem, error) {
	sess, err := s.nb.Load(name)
	if err != nil {
		return nil, err
	}
	return sess.Verify()
}

// Search runs a full-text query, optionally limited to one notebook.
func (s *Service) Search(_ context.Context, query, name string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return []index.SearchResult{}, nil
	}
	res, err := s.db.Search(query, name, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

func (s *Service) indexNote(name, path string, content []byte) {
	if s.db == nil {
		return
	}
	if err := index.IndexNote(s.db, name, path, content); err != nil {
		s.indexFailed(name, path, err)
	}
}

func (s *Service) reindex(sess *notebook.Session) {
	if s.db == nil {
		return
	}
	if err := index.SyncNotebook(s.db, sess, s.logger); err != nil {
		s.indexFailed(sess.Name(), "", err)
	}
}

// indexFailed logs an index error. The notebook mutation already happened,
// so the caller still reports success; the next sync repairs the index.
func (s *Service) indexFailed(name, path string, err error) {
	s.logger.Warn("notebookservice: index update failed",
		slog.String("notebook", name),
		slog.String("path", path),
		slog.String("error", err.Error()))
}

func (s *Service) publish(subject, kind, name, path, from string) {
	if s.events == nil {
		return
	}
	s.events.PublishChange(sse.Change{Subject: subject, Kind: kind, Notebook: name, Path: path, From: from})
}

func detail(sess *notebook.Session) *NotebookDetail {
	return &NotebookDetail{Name: sess.Name(), Notebook: sess.Notebook()}
}

func noteDetail(name, path string, data []byte) *NoteDetail {
	n := parser.Parse(data)
	return &NoteDetail{
		Notebook:    name,
		Path:        path,
		Title:       n.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(n.Tags),
		Frontmatter: n.Meta,
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
