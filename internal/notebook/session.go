package notebook

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/arond1/jotter/internal/apperr"
	"github.com/arond1/jotter/internal/models"
	"github.com/arond1/jotter/internal/storage"
	"github.com/arond1/jotter/internal/tree"
)

// Session is one loaded notebook. It owns the notebook document until it is
// discarded; every mutating call persists the document before returning.
// A Session is not safe for concurrent use.
type Session struct {
	name   string
	store  storage.Provider
	mirror *Mirror
	doc    *models.Notebook
	codec  storage.Codec
	now    func() time.Time
	logger *slog.Logger
}

// Name returns the notebook name.
func (s *Session) Name() string { return s.name }

// Notebook returns a copy of the current document.
func (s *Session) Notebook() models.Notebook { return *s.doc }

// Tree returns the current tree.
func (s *Session) Tree() *tree.Branch { return s.doc.Tree }

// Save refreshes the updated timestamp and writes the notebook document.
func (s *Session) Save() error {
	s.doc.Updated = s.now().Unix()
	if err := s.store.SaveJSON(DocumentFile, s.doc, s.codec); err != nil {
		return fmt.Errorf("notebook: save %s: %w", s.name, err)
	}
	return nil
}

// CreateDirectory creates a directory (and missing parents) and persists it.
func (s *Session) CreateDirectory(p string) error {
	next, err := s.mirror.CreateDirectory(s.doc.Tree, p)
	if err != nil {
		return s.failed("create directory", p, err)
	}
	s.doc.Tree = next
	return s.persisted("create directory", p)
}

// CreateNote creates an empty note and persists it.
func (s *Session) CreateNote(p string) error {
	next, err := s.mirror.CreateNote(s.doc.Tree, p)
	if err != nil {
		return s.failed("create note", p, err)
	}
	s.doc.Tree = next
	return s.persisted("create note", p)
}

// RenameNote renames the note or directory at p to newName in the same
// directory and returns the new path.
func (s *Session) RenameNote(p, newName string) (string, error) {
	next, np, err := s.mirror.RenameNote(s.doc.Tree, p, newName)
	if err != nil {
		return "", s.failed("rename", p, err)
	}
	s.doc.Tree = next
	return np, s.persisted("rename", np)
}

// DeleteNote removes a note. When the file cannot be deleted the tree entry
// stays removed in memory but the document is not persisted.
func (s *Session) DeleteNote(p string) error {
	next, err := s.mirror.DeleteNote(s.doc.Tree, p)
	s.doc.Tree = next
	if err != nil {
		return s.failed("delete note", p, err)
	}
	return s.persisted("delete note", p)
}

// DeleteDirectory removes an empty directory, with the same failure contract
// as DeleteNote.
func (s *Session) DeleteDirectory(p string) error {
	next, err := s.mirror.DeleteDirectory(s.doc.Tree, p)
	s.doc.Tree = next
	if err != nil {
		return s.failed("delete directory", p, err)
	}
	return s.persisted("delete directory", p)
}

// ReadNote returns the raw content of the note at p.
func (s *Session) ReadNote(p string) ([]byte, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("notebook: read %s: %w", p, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// WriteNote replaces the content of an existing note.
func (s *Session) WriteNote(p string, content []byte) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	if n, ok := tree.Get(s.doc.Tree, p); !ok || !n.IsLeaf() {
		return fmt.Errorf("notebook: write %s: %w", p, apperr.ErrNotFound)
	}
	if err := s.store.Write(p, content); err != nil {
		return s.failed("write note", p, err)
	}
	return s.persisted("write note", p)
}

// Problem kinds reported by Verify.
const (
	ProblemMissing   = "missing"
	ProblemWrongKind = "wrong_kind"
	ProblemUntracked = "untracked"
)

// Problem is a mismatch between the tree and the notebook directory.
type Problem struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Verify compares the tree with the notebook directory. Leaves must be files
// and branches directories; files and directories on disk that the tree does
// not know are reported as untracked.
func (s *Session) Verify() ([]Problem, error) {
	var problems []Problem
	_ = tree.Walk(s.doc.Tree, func(p string, n tree.Node) error {
		switch {
		case !s.store.Exists(p):
			problems = append(problems, Problem{Path: p, Kind: ProblemMissing})
			return tree.SkipDir
		case n.IsBranch() != s.store.IsDir(p):
			problems = append(problems, Problem{Path: p, Kind: ProblemWrongKind})
			return tree.SkipDir
		}
		return nil
	})

	entries, err := s.store.List("")
	if err != nil {
		return nil, fmt.Errorf("notebook: verify %s: %w", s.name, err)
	}
	for _, e := range entries {
		if e.Path == DocumentFile || strings.HasPrefix(tree.Base(e.Path), ".") {
			continue
		}
		if _, ok := tree.Get(s.doc.Tree, e.Path); !ok {
			problems = append(problems, Problem{Path: e.Path, Kind: ProblemUntracked})
		}
	}
	return problems, nil
}

func (s *Session) failed(op, p string, err error) error {
	s.logger.Warn("notebook: operation failed",
		slog.String("notebook", s.name),
		slog.String("op", op),
		slog.String("path", p),
		slog.String("error", err.Error()))
	return err
}

func (s *Session) persisted(op, p string) error {
	if err := s.Save(); err != nil {
		return s.failed(op, p, err)
	}
	s.logger.Debug("notebook: "+op,
		slog.String("notebook", s.name),
		slog.String("path", p))
	return nil
}
