package tree

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MarshalJSON encodes b as an object whose keys keep insertion order.
func (b *Branch) MarshalJSON() ([]byte, error) {
	if b.Len() == 0 {
		return []byte("{}"), nil
	}
	return b.m.MarshalJSON()
}

// UnmarshalJSON decodes an object in document order. An empty array is
// accepted as an empty branch; older documents encoded empty directories
// that way.
func (b *Branch) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")), isEmptyArray(data):
		b.m = orderedmap.New[string, Node]()
		return nil
	case len(data) == 0 || data[0] != '{':
		return fmt.Errorf("tree: branch must be a JSON object, got %.20q", data)
	}
	m := orderedmap.New[string, Node]()
	if err := m.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("tree: decode branch: %w", err)
	}
	b.m = m
	return nil
}

// MarshalJSON encodes a leaf as a boolean and a branch as an object.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.IsBranch() {
		return n.branch.MarshalJSON()
	}
	return json.Marshal(n.leaf)
}

// UnmarshalJSON accepts a boolean (leaf) or an object / empty array (branch).
func (n *Node) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("tree: empty node")
	}
	switch data[0] {
	case '{', '[':
		b := &Branch{}
		if err := b.UnmarshalJSON(data); err != nil {
			return err
		}
		*n = Node{branch: b}
		return nil
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("tree: decode leaf: %w", err)
		}
		*n = Leaf(v)
		return nil
	}
	return fmt.Errorf("tree: unsupported node %.20q", data)
}

func isEmptyArray(data []byte) bool {
	if len(data) < 2 || data[0] != '[' || data[len(data)-1] != ']' {
		return false
	}
	return len(bytes.TrimSpace(data[1:len(data)-1])) == 0
}
