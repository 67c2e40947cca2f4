package notebook

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/arond1/jotter/internal/apperr"
	"github.com/arond1/jotter/internal/tree"
)

const (
	// RegistryFile is the registry document at the storage root.
	RegistryFile = "notebooks.json"
	// DocumentFile is the metadata document inside each notebook directory.
	DocumentFile = "notebook.json"
	// DefaultNote is the note seeded into every new notebook.
	DefaultNote = "note.md"
)

var nameRe = regexp.MustCompile(`^[^/\\.][^/\\]*$`)

var noTraversal = validation.By(func(v any) error {
	s, _ := v.(string)
	if !utf8.ValidString(s) {
		return errors.New("must be valid UTF-8")
	}
	if tree.HasTraversal(s) {
		return errors.New("must not contain '..'")
	}
	return nil
})

// ValidateName checks a notebook name before it is used to build any path.
func ValidateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, 128),
		noTraversal,
		validation.Match(nameRe).Error("must be a single path segment not starting with '.'"),
		validation.NotIn(RegistryFile),
	)
	if err != nil {
		return fmt.Errorf("notebook: name %q: %v: %w", name, err, apperr.ErrInvalidPath)
	}
	return nil
}

// cleanPath validates a note or directory path inside a notebook and returns
// its canonical form.
func cleanPath(p string) (string, error) {
	if !utf8.ValidString(p) {
		return "", fmt.Errorf("notebook: path %q is not valid UTF-8: %w", p, apperr.ErrInvalidPath)
	}
	if tree.HasTraversal(p) {
		return "", fmt.Errorf("notebook: path %q: %w", p, apperr.ErrInvalidPath)
	}
	c := tree.Clean(p)
	if c == "" {
		return "", fmt.Errorf("notebook: empty path: %w", apperr.ErrInvalidPath)
	}
	if c == DocumentFile {
		return "", fmt.Errorf("notebook: path %q is reserved: %w", p, apperr.ErrInvalidPath)
	}
	return c, nil
}

// validSegment reports whether name can be used as a single path segment.
func validSegment(name string) error {
	if name == "" || !utf8.ValidString(name) || tree.HasTraversal(name) || tree.Clean(name) != name || tree.Base(name) != name {
		return fmt.Errorf("notebook: name %q must be a single path segment: %w", name, apperr.ErrInvalidPath)
	}
	return nil
}

// ValidateNoteName checks a note name that is used as a single path segment,
// such as the default note.
func ValidateNoteName(name string) error {
	if err := validSegment(name); err != nil {
		return err
	}
	if name == DocumentFile {
		return fmt.Errorf("notebook: name %q is reserved: %w", name, apperr.ErrInvalidPath)
	}
	return nil
}
