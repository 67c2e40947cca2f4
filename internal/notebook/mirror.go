package notebook

import (
	"fmt"

	"github.com/arond1/jotter/internal/apperr"
	"github.com/arond1/jotter/internal/storage"
	"github.com/arond1/jotter/internal/tree"
)

// Mirror applies tree mutations to a notebook directory. Each method performs
// the filesystem step, computes the updated tree and checks that the result
// is observable on disk. Persisting the returned tree is the caller's job and
// must only happen when the returned error is nil.
type Mirror struct {
	fs storage.Provider
}

// NewMirror returns a Mirror operating below the notebook root fs.
func NewMirror(fs storage.Provider) *Mirror {
	return &Mirror{fs: fs}
}

// CreateDirectory creates p and its missing parents and registers every
// segment as a branch. A directory already in the tree keeps its children.
// On failure t is returned unchanged.
func (m *Mirror) CreateDirectory(t *tree.Branch, p string) (*tree.Branch, error) {
	p, err := cleanPath(p)
	if err != nil {
		return t, err
	}
	if !m.fs.Exists(p) {
		if err := m.fs.MkdirAll(p); err != nil {
			return t, err
		}
	}
	next := t
	if n, ok := tree.Get(t, p); !ok || !n.IsBranch() {
		next = tree.Set(t, p, tree.BranchNode(nil))
	}
	if !m.fs.IsDir(p) {
		return t, fmt.Errorf("notebook: directory %s not present after create: %w", p, apperr.ErrVerification)
	}
	if next.Empty() {
		return t, fmt.Errorf("notebook: empty tree after create %s: %w", p, apperr.ErrVerification)
	}
	return next, nil
}

// CreateNote creates an empty note at p, creating parent directories as
// needed, and registers it as a present leaf. An existing note keeps its
// content. On failure t is returned unchanged.
func (m *Mirror) CreateNote(t *tree.Branch, p string) (*tree.Branch, error) {
	p, err := cleanPath(p)
	if err != nil {
		return t, err
	}
	if parent := tree.Dir(p); parent != "" && !m.fs.Exists(parent) {
		if err := m.fs.MkdirAll(parent); err != nil {
			return t, err
		}
	}
	if err := m.fs.Touch(p); err != nil {
		return t, err
	}
	next := tree.Set(t, p, tree.Leaf(true))
	if !m.fs.Exists(p) || m.fs.IsDir(p) {
		return t, fmt.Errorf("notebook: note %s not present after create: %w", p, apperr.ErrVerification)
	}
	if next.Empty() {
		return t, fmt.Errorf("notebook: empty tree after create %s: %w", p, apperr.ErrVerification)
	}
	return next, nil
}

// RenameNote renames p to newName within the same directory and moves its
// tree value, leaf or subtree, to the new key. It returns the new path. On
// failure t is returned unchanged.
func (m *Mirror) RenameNote(t *tree.Branch, p, newName string) (*tree.Branch, string, error) {
	p, err := cleanPath(p)
	if err != nil {
		return t, "", err
	}
	if err := validSegment(newName); err != nil {
		return t, "", err
	}
	item, ok := tree.Get(t, p)
	if !ok {
		return t, "", fmt.Errorf("notebook: rename %s: %w", p, apperr.ErrNotFound)
	}
	np, err := cleanPath(tree.Join(tree.Dir(p), newName))
	if err != nil {
		return t, "", err
	}
	if np == p {
		return t, p, nil
	}
	if m.fs.Exists(np) {
		return t, "", fmt.Errorf("notebook: rename %s to %s: %w", p, np, apperr.ErrAlreadyExists)
	}
	if err := m.fs.Rename(p, np); err != nil {
		return t, "", err
	}
	next := tree.Unset(tree.Set(t, np, item), p)
	if m.fs.Exists(p) || !m.fs.Exists(np) {
		return t, "", fmt.Errorf("notebook: rename %s to %s not observable: %w", p, np, apperr.ErrVerification)
	}
	if next.Empty() {
		return t, "", fmt.Errorf("notebook: empty tree after rename %s: %w", p, apperr.ErrVerification)
	}
	return next, np, nil
}

// DeleteNote removes p from the tree, then deletes the file. The updated tree
// is returned even when the deletion fails.
func (m *Mirror) DeleteNote(t *tree.Branch, p string) (*tree.Branch, error) {
	p, err := cleanPath(p)
	if err != nil {
		return t, err
	}
	next := tree.Unset(t, p)
	if err := m.fs.Remove(p); err != nil {
		return next, err
	}
	return next, nil
}

// DeleteDirectory removes p from the tree, then deletes the directory, which
// must be empty. The updated tree is returned even when the removal fails.
func (m *Mirror) DeleteDirectory(t *tree.Branch, p string) (*tree.Branch, error) {
	p, err := cleanPath(p)
	if err != nil {
		return t, err
	}
	next := tree.Unset(t, p)
	if err := m.fs.RemoveDir(p); err != nil {
		return next, err
	}
	return next, nil
}
