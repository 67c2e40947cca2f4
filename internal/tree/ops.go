package tree

import "errors"

// SkipDir can be returned by a WalkFunc to skip a branch's children.
var SkipDir = errors.New("tree: skip dir")

// WalkFunc is called by Walk for every node with its full path.
type WalkFunc func(path string, n Node) error

// Get descends t one segment at a time. It reports false when a segment is
// missing or an intermediate node is not a branch. An empty path resolves to
// the root itself.
func Get(t *Branch, p string) (Node, bool) {
	segs := Split(p)
	cur := BranchNode(t)
	for _, s := range segs {
		if !cur.IsBranch() {
			return Node{}, false
		}
		next, ok := cur.branch.Child(s)
		if !ok {
			return Node{}, false
		}
		cur = next
	}
	return cur, true
}

// Set returns a tree with v stored at p. Missing intermediate segments, and
// leaves standing where a branch is needed, become empty branches. An empty
// path returns t unchanged.
func Set(t *Branch, p string, v Node) *Branch {
	t = orEmpty(t)
	segs := Split(p)
	if len(segs) == 0 {
		return t
	}
	return setAt(t, segs, v)
}

func setAt(b *Branch, segs []string, v Node) *Branch {
	if len(segs) == 1 {
		return b.with(segs[0], v)
	}
	next := NewBranch()
	if child, ok := b.Child(segs[0]); ok && child.IsBranch() {
		next = child.branch
	}
	return b.with(segs[0], BranchNode(setAt(next, segs[1:], v)))
}

// Unset returns a tree without the entry at p. When p does not exist the
// input tree is returned as is.
func Unset(t *Branch, p string) *Branch {
	t = orEmpty(t)
	segs := Split(p)
	if len(segs) == 0 {
		return t
	}
	out, _ := unsetAt(t, segs)
	return out
}

func unsetAt(b *Branch, segs []string) (*Branch, bool) {
	if len(segs) == 1 {
		if _, ok := b.Child(segs[0]); !ok {
			return b, false
		}
		return b.without(segs[0]), true
	}
	child, ok := b.Child(segs[0])
	if !ok || !child.IsBranch() {
		return b, false
	}
	nb, changed := unsetAt(child.branch, segs[1:])
	if !changed {
		return b, false
	}
	return b.with(segs[0], BranchNode(nb)), true
}

// Walk visits every node below t depth-first, children in insertion order.
// The root itself is not visited.
func Walk(t *Branch, fn WalkFunc) error {
	return walk(t, "", fn)
}

func walk(b *Branch, prefix string, fn WalkFunc) error {
	if b.Len() == 0 {
		return nil
	}
	for p := b.m.Oldest(); p != nil; p = p.Next() {
		full := Join(prefix, p.Key)
		err := fn(full, p.Value)
		if errors.Is(err, SkipDir) {
			continue
		}
		if err != nil {
			return err
		}
		if p.Value.IsBranch() {
			if err := walk(p.Value.branch, full, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Equal reports whether a and b hold the same keys in the same order with
// equal values.
func Equal(a, b *Branch) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a.Len() == 0 {
		return true
	}
	pa, pb := a.m.Oldest(), b.m.Oldest()
	for ; pa != nil && pb != nil; pa, pb = pa.Next(), pb.Next() {
		if pa.Key != pb.Key || !NodeEqual(pa.Value, pb.Value) {
			return false
		}
	}
	return true
}

// NodeEqual reports whether two nodes are structurally equal.
func NodeEqual(a, b Node) bool {
	if a.IsBranch() != b.IsBranch() {
		return false
	}
	if a.IsBranch() {
		return Equal(a.branch, b.branch)
	}
	return a.leaf == b.leaf
}
