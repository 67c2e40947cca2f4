package tree

import (
	"path"
	"strings"
)

// Sep separates path segments.
const Sep = "/"

// traversalToken is rejected anywhere in a notebook name or note path.
const traversalToken = ".."

// Split breaks p into segments. Empty and "." segments are dropped, so
// leading, trailing and doubled separators never produce a phantom key.
func Split(p string) []string {
	parts := strings.Split(p, Sep)
	segs := parts[:0]
	for _, s := range parts {
		if s == "" || s == "." {
			continue
		}
		segs = append(segs, s)
	}
	return segs
}

// Clean returns p in canonical slash-joined form.
func Clean(p string) string {
	return strings.Join(Split(p), Sep)
}

// Dir returns the parent of p, or "" when the parent is the root.
func Dir(p string) string {
	segs := Split(p)
	if len(segs) <= 1 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], Sep)
}

// Base returns the last segment of p.
func Base(p string) string {
	segs := Split(p)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Join appends name to dir. When dir is the root no separator is prefixed.
func Join(dir, name string) string {
	dir = Clean(dir)
	if dir == "" {
		return Clean(name)
	}
	return path.Join(dir, Clean(name))
}

// HasTraversal reports whether p contains the parent-directory token.
func HasTraversal(p string) bool {
	return strings.Contains(p, traversalToken)
}
