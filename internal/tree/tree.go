// Package tree implements the path-indexed notebook tree: an ordered mapping
// of path segments to either a note leaf or a nested directory branch.
//
// Every operation in this package is pure. Branches are never modified in
// place; Set and Unset copy the branches along the updated path and share the
// rest with the input tree.
package tree

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Node is either a leaf (a note file, carrying its presence marker) or a
// branch (a directory). The zero Node is a leaf with value false.
type Node struct {
	branch *Branch
	leaf   bool
}

// Leaf returns a leaf node with the given presence marker.
func Leaf(present bool) Node {
	return Node{leaf: present}
}

// BranchNode wraps b as a directory node. A nil b is treated as empty.
func BranchNode(b *Branch) Node {
	if b == nil {
		b = NewBranch()
	}
	return Node{branch: b}
}

// IsBranch reports whether n represents a directory.
func (n Node) IsBranch() bool { return n.branch != nil }

// IsLeaf reports whether n represents a note file.
func (n Node) IsLeaf() bool { return n.branch == nil }

// Present returns the leaf marker. It is false for branches.
func (n Node) Present() bool { return n.branch == nil && n.leaf }

// Branch returns the children of a directory node, or nil for a leaf.
func (n Node) Branch() *Branch { return n.branch }

// Branch is an insertion-ordered mapping of path segments to nodes.
type Branch struct {
	m *orderedmap.OrderedMap[string, Node]
}

// NewBranch returns an empty branch.
func NewBranch() *Branch {
	return &Branch{m: orderedmap.New[string, Node]()}
}

// Len returns the number of direct children.
func (b *Branch) Len() int {
	if b == nil || b.m == nil {
		return 0
	}
	return b.m.Len()
}

// Empty reports whether b has no children.
func (b *Branch) Empty() bool { return b.Len() == 0 }

// Keys returns the child names in insertion order.
func (b *Branch) Keys() []string {
	if b.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, b.m.Len())
	for p := b.m.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Child returns the direct child named key.
func (b *Branch) Child(key string) (Node, bool) {
	if b.Len() == 0 {
		return Node{}, false
	}
	return b.m.Get(key)
}

// with returns a copy of b with key set to n. An existing key keeps its
// position.
func (b *Branch) with(key string, n Node) *Branch {
	out := b.clone()
	out.m.Set(key, n)
	return out
}

// without returns a copy of b with key removed.
func (b *Branch) without(key string) *Branch {
	out := b.clone()
	out.m.Delete(key)
	return out
}

func (b *Branch) clone() *Branch {
	out := NewBranch()
	if b.Len() == 0 {
		return out
	}
	for p := b.m.Oldest(); p != nil; p = p.Next() {
		out.m.Set(p.Key, p.Value)
	}
	return out
}

func orEmpty(b *Branch) *Branch {
	if b == nil || b.m == nil {
		return NewBranch()
	}
	return b
}
