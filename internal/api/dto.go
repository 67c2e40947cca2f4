package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/arond1/jotter/internal/index"
	"github.com/arond1/jotter/internal/models"
	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/notebookservice"
)

// CreateNotebookRequest is the request body for creating a notebook.
type CreateNotebookRequest struct {
	Name   string `json:"name" example:"work" validate:"required"`
	User   int    `json:"user" example:"7"`
	Public bool   `json:"public"`
}

// Validate checks the request fields.
func (r CreateNotebookRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.User, validation.Min(0)),
	)
}

// CreatePathRequest is the request body for creating a note or directory.
type CreatePathRequest struct {
	Path    string `json:"path" example:"notes/todo.md" validate:"required"`
	Content string `json:"content,omitempty" example:"# Todo"`
}

// Validate checks the request fields.
func (r CreatePathRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// UpdateNoteRequest is the request body for replacing note content.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent"`
}

// RenameRequest is the request body for renaming a note or directory.
type RenameRequest struct {
	Name string `json:"name" example:"done.md" validate:"required"`
}

// Validate checks the request fields.
func (r RenameRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// NotebookDetail is the notebook response type (aliased from the domain layer).
type NotebookDetail = notebookservice.NotebookDetail

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = notebookservice.NoteDetail

// NotebookListResponse wraps notebook listings.
type NotebookListResponse struct {
	Notebooks []models.NotebookSummary `json:"notebooks" validate:"required"`
}

// RenameResponse reports the new path after a rename.
type RenameResponse struct {
	Path string `json:"path" example:"notes/done.md" validate:"required"`
}

// VerifyResponse lists mismatches between a tree and its directory.
type VerifyResponse struct {
	OK       bool               `json:"ok"`
	Problems []notebook.Problem `json:"problems" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
