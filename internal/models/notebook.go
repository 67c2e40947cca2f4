// Package models defines the domain types for Jotter.
package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/arond1/jotter/internal/tree"
)

// Notebook is the metadata document stored alongside a notebook's files.
// Timestamps are Unix seconds.
type Notebook struct {
	Created int64        `json:"created"`
	Updated int64        `json:"updated"`
	User    int          `json:"user"`
	Public  bool         `json:"public"`
	Tree    *tree.Branch `json:"tree"`
}

// RegistryEntry describes one notebook in the registry.
type RegistryEntry struct {
	User int `json:"user"`
}

// Registry maps notebook names to their owner.
type Registry map[string]RegistryEntry

// UnmarshalJSON accepts an object, or an empty array for a registry that was
// written before any notebook existed.
func (r *Registry) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("[]")) {
		*r = Registry{}
		return nil
	}
	var m map[string]RegistryEntry
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = m
	return nil
}

// NotebookSummary is a registry entry paired with its name, returned by list operations.
type NotebookSummary struct {
	Name string `json:"name"`
	User int    `json:"user"`
}

// Entry is a file or directory found on disk.
type Entry struct {
	Path      string    `json:"path"`
	IsDir     bool      `json:"is_dir"`
	Checksum  string    `json:"checksum,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
