package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/notebookservice"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *notebookservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *notebookservice.Service) *Handler {
	return &Handler{svc: svc}
}

func notebookName(r *http.Request) string {
	return chi.URLParam(r, "name")
}

// itemPath extracts the note or directory path from the URL wildcard.
// Supports encoded slashes (e.g. topics%2Fnote.md).
func itemPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// decode reads a JSON body into v and runs its Validate method if any.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if vv, ok := v.(interface{ Validate() error }); ok {
		if err := vv.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

// ListNotebooks handles GET /notebooks.
//
//	@Summary		List notebooks, optionally for one user
//	@Tags			notebooks
//	@Produce		json
//	@Param			user	query		int	false	"Owner filter"
//	@Success		200		{object}	NotebookListResponse
//	@Security		BearerAuth
//	@Router			/notebooks [get]
func (h *Handler) ListNotebooks(w http.ResponseWriter, r *http.Request) {
	user := notebook.AllUsers
	if raw := r.URL.Query().Get("user"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("user must be a non-negative integer"))
			return
		}
		user = n
	}
	list, err := h.svc.ListNotebooks(r.Context(), user)
	if err != nil {
		writeError(w, "list notebooks", err)
		return
	}
	writeJSON(w, http.StatusOK, NotebookListResponse{Notebooks: list})
}

// CreateNotebook handles POST /notebooks. An existing name answers 200 with
// the stored notebook instead of 201.
//
//	@Summary		Create a notebook
//	@Tags			notebooks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNotebookRequest	true	"Notebook to create"
//	@Success		201		{object}	NotebookDetail
//	@Success		200		{object}	NotebookDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks [post]
func (h *Handler) CreateNotebook(w http.ResponseWriter, r *http.Request) {
	var req CreateNotebookRequest
	if !decode(w, r, &req) {
		return
	}
	nb, created, err := h.svc.CreateNotebook(r.Context(), req.Name, req.User, req.Public)
	if err != nil {
		writeError(w, "create notebook", err, slog.String("notebook", req.Name))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, nb)
}

// GetNotebook handles GET /notebooks/{name}.
//
//	@Summary		Get a notebook document with its tree
//	@Tags			notebooks
//	@Produce		json
//	@Success		200	{object}	NotebookDetail
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks/{name} [get]
func (h *Handler) GetNotebook(w http.ResponseWriter, r *http.Request) {
	name := notebookName(r)
	nb, err := h.svc.GetNotebook(r.Context(), name)
	if err != nil {
		writeError(w, "get notebook", err, slog.String("notebook", name))
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

// Verify handles GET /notebooks/{name}/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	name := notebookName(r)
	problems, err := h.svc.Verify(r.Context(), name)
	if err != nil {
		writeError(w, "verify", err, slog.String("notebook", name))
		return
	}
	if problems == nil {
		problems = []notebook.Problem{}
	}
	writeJSON(w, http.StatusOK, VerifyResponse{OK: len(problems) == 0, Problems: problems})
}

// GetNote handles GET /notebooks/{name}/notes/*.
//
//	@Summary		Read a note
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks/{name}/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	name, path := notebookName(r), itemPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), name, path)
	if err != nil {
		writeError(w, "get note", err, slog.String("notebook", name), slog.String("path", path))
		return
	}
	w.Header().Set("ETag", strconv.Quote(note.Checksum))
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /notebooks/{name}/notes.
//
//	@Summary		Create a note, creating missing parent directories
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePathRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks/{name}/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	name := notebookName(r)
	var req CreatePathRequest
	if !decode(w, r, &req) {
		return
	}
	note, err := h.svc.CreateNote(r.Context(), name, req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, "create note", err, slog.String("notebook", name), slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /notebooks/{name}/notes/*.
//
//	@Summary		Replace note content with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Note path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum of the current content"
//	@Param			body		body	UpdateNoteRequest	true	"New content"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks/{name}/notes/{path} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	name, path := notebookName(r), itemPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.svc.UpdateNote(r.Context(), name, path, []byte(req.Content), ifMatch)
	if err != nil {
		writeError(w, "update note", err, slog.String("notebook", name), slog.String("path", path))
		return
	}
	w.Header().Set("ETag", strconv.Quote(note.Checksum))
	writeJSON(w, http.StatusOK, note)
}

// RenameNote handles PATCH /notebooks/{name}/notes/*. It renames a note or
// a directory within its parent.
//
//	@Summary		Rename a note or directory
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameRequest	true	"New name"
//	@Success		200		{object}	RenameResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notebooks/{name}/notes/{path} [patch]
func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	name, path := notebookName(r), itemPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req RenameRequest
	if !decode(w, r, &req) {
		return
	}
	np, err := h.svc.RenameNote(r.Context(), name, path, req.Name)
	if err != nil {
		writeError(w, "rename", err, slog.String("notebook", name), slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, RenameResponse{Path: np})
}

// DeleteNote handles DELETE /notebooks/{name}/notes/*.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	name, path := notebookName(r), itemPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), name, path); err != nil {
		writeError(w, "delete note", err, slog.String("notebook", name), slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateDirectory handles POST /notebooks/{name}/dirs.
func (h *Handler) CreateDirectory(w http.ResponseWriter, r *http.Request) {
	name := notebookName(r)
	var req CreatePathRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.CreateDirectory(r.Context(), name, req.Path); err != nil {
		writeError(w, "create directory", err, slog.String("notebook", name), slog.String("path", req.Path))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// DeleteDirectory handles DELETE /notebooks/{name}/dirs/*.
func (h *Handler) DeleteDirectory(w http.ResponseWriter, r *http.Request) {
	name, path := notebookName(r), itemPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteDirectory(r.Context(), name, path); err != nil {
		writeError(w, "delete directory", err, slog.String("notebook", name), slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	true	"Search query"
//	@Param			notebook	query		string	false	"Limit to one notebook"
//	@Param			limit		query		int		false	"Max results"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, r.URL.Query().Get("notebook"), limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
