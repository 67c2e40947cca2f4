package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/arond1/jotter/internal/apperr"
	"github.com/arond1/jotter/internal/checksum"
	"github.com/arond1/jotter/internal/models"
)

const (
	dirPerm  fs.FileMode = 0o700
	filePerm fs.FileMode = 0o600
)

// FS implements Provider on top of an afero file system.
type FS struct {
	fs   afero.Fs
	root string // absolute path to the root directory
}

// NewOS creates a Provider backed by the operating system, rooted at root.
func NewOS(root string) (*FS, error) {
	return NewFS(afero.NewOsFs(), root)
}

// NewFS creates a new FS provider rooted at the given directory of fsys.
// The directory must already exist.
func NewFS(fsys afero.Fs, root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := fsys.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{fs: fsys, root: abs}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.root }

// Sub returns a provider rooted at dir, which must exist.
func (f *FS) Sub(dir string) (Provider, error) {
	abs, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	return NewFS(f.fs, abs)
}

// safePath resolves a relative path against the root and rejects any result
// that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s: %w", rel, apperr.ErrInvalidPath)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes root: %s: %w", rel, apperr.ErrInvalidPath)
	}
	return abs, nil
}

// Read returns the raw bytes of a file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(f.fs, abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := f.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := afero.TempFile(f.fs, dir, ".jotter-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := f.fs.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// MkdirAll creates a directory and its missing parents.
func (f *FS) MkdirAll(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(abs, dirPerm); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", path, err)
	}
	return nil
}

// Touch creates an empty file if none exists. Existing content is kept.
func (f *FS) Touch(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	file, err := f.fs.OpenFile(abs, os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("storage: touch %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("storage: touch %s: %w", path, err)
	}
	return nil
}

// Rename moves a file or directory.
func (f *FS) Rename(oldPath, newPath string) error {
	absOld, err := f.safePath(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newPath)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(filepath.Dir(absNew), dirPerm); err != nil {
		return fmt.Errorf("storage: mkdir for rename: %w", err)
	}
	if err := f.fs.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// Remove deletes a file. Directories are refused.
func (f *FS) Remove(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	info, err := f.fs.Stat(abs)
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("storage: delete %s: is a directory", path)
	}
	if err := f.fs.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// RemoveDir deletes an empty directory.
func (f *FS) RemoveDir(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: refusing to remove root: %w", apperr.ErrInvalidPath)
	}
	info, err := f.fs.Stat(abs)
	if err != nil {
		return fmt.Errorf("storage: rmdir %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: rmdir %s: not a directory", path)
	}
	empty, err := afero.IsEmpty(f.fs, abs)
	if err != nil {
		return fmt.Errorf("storage: rmdir %s: %w", path, err)
	}
	if !empty {
		return fmt.Errorf("storage: rmdir %s: %w", path, apperr.ErrNotEmpty)
	}
	if err := f.fs.Remove(abs); err != nil {
		return fmt.Errorf("storage: rmdir %s: %w", path, err)
	}
	return nil
}

// Exists reports whether anything exists at path.
func (f *FS) Exists(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(f.fs, abs)
	return err == nil && ok
}

// IsDir reports whether path is an existing directory.
func (f *FS) IsDir(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	ok, err := afero.IsDir(f.fs, abs)
	return err == nil && ok
}

// List walks dir (relative to root) and returns every entry below it.
// Temporary files left by Write are skipped.
func (f *FS) List(dir string) ([]models.Entry, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.Entry
	err = afero.Walk(f.fs, base, func(p string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == base || strings.HasPrefix(info.Name(), ".jotter-tmp-") {
			return nil
		}
		rel, _ := filepath.Rel(f.root, p)
		e := models.Entry{
			Path:      filepath.ToSlash(rel),
			IsDir:     info.IsDir(),
			UpdatedAt: info.ModTime(),
		}
		if !info.IsDir() {
			data, err := afero.ReadFile(f.fs, p)
			if err != nil {
				return err
			}
			e.Checksum = checksum.Sum(data)
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: list %s: %w", dir, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}
