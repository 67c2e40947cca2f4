// Package storage defines the notebook file-system abstraction.
package storage

import "github.com/arond1/jotter/internal/models"

// Provider is the interface for file operations below one root directory.
// Every path is relative to that root and uses forward slashes.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path, creating parents.
	Write(path string, content []byte) error
	// MkdirAll creates path and any missing parents with owner-only permissions.
	MkdirAll(path string) error
	// Touch creates an empty file at path, or leaves an existing one untouched.
	Touch(path string) error
	// Rename moves oldPath to newPath.
	Rename(oldPath, newPath string) error
	// Remove deletes the file at path. Directories are refused.
	Remove(path string) error
	// RemoveDir deletes the empty directory at path.
	RemoveDir(path string) error
	// List returns every file and directory below dir.
	List(dir string) ([]models.Entry, error)
	// Exists reports whether anything exists at path.
	Exists(path string) bool
	// IsDir reports whether path exists and is a directory.
	IsDir(path string) bool
	// LoadJSON decodes the document at path into v.
	LoadJSON(path string, v any, codec Codec) error
	// SaveJSON encodes v and atomically writes it to path.
	SaveJSON(path string, v any, codec Codec) error
	// Sub returns a Provider rooted at dir below this one.
	Sub(dir string) (Provider, error)
	// Root returns the absolute root directory.
	Root() string
}
