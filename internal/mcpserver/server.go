// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Jotter notebook tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/notebookservice"
)

// Server wraps the MCP server with notebook tools.
type Server struct {
	mcp *server.MCPServer
	svc *notebookservice.Service
}

// New creates a new MCP server with all notebook tools registered.
func New(svc *notebookservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Jotter",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	notebookArg := mcp.WithString("notebook", mcp.Required(), mcp.Description("Notebook name"))
	pathArg := func(desc string) mcp.ToolOption {
		return mcp.WithString("path", mcp.Required(), mcp.Description(desc))
	}

	s.mcp.AddTool(mcp.NewTool("list_notebooks",
		mcp.WithDescription("List registered notebooks with their owners."),
		mcp.WithNumber("user", mcp.Description("Only list notebooks owned by this user id")),
	), s.listNotebooks)

	s.mcp.AddTool(mcp.NewTool("create_notebook",
		mcp.WithDescription("Create a notebook. Creating an existing name returns the stored notebook."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Notebook name (single path segment)")),
		mcp.WithNumber("user", mcp.Description("Owner user id (default 0)")),
		mcp.WithBoolean("public", mcp.Description("Whether the notebook is public")),
	), s.createNotebook)

	s.mcp.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Return the directory tree of a notebook as JSON."),
		notebookArg,
	), s.getTree)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		notebookArg,
		pathArg("Note path inside the notebook (e.g. plans/q3.md)"),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note, creating missing parent directories."),
		notebookArg,
		pathArg("Path for the new note"),
		mcp.WithString("content", mcp.Description("Initial Markdown content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("write_note",
		mcp.WithDescription("Replace the content of an existing note."),
		notebookArg,
		pathArg("Note path"),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
		mcp.WithString("checksum", mcp.Description("Expected SHA-256 of the current content; the write fails if it changed")),
	), s.writeNote)

	s.mcp.AddTool(mcp.NewTool("rename_note",
		mcp.WithDescription("Rename a note or directory within its parent directory."),
		notebookArg,
		pathArg("Current path"),
		mcp.WithString("name", mcp.Required(), mcp.Description("New name (single segment)")),
	), s.renameNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note."),
		notebookArg,
		pathArg("Note path"),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("create_directory",
		mcp.WithDescription("Create a directory and its missing parents."),
		notebookArg,
		pathArg("Directory path"),
	), s.createDirectory)

	s.mcp.AddTool(mcp.NewTool("delete_directory",
		mcp.WithDescription("Delete an empty directory."),
		notebookArg,
		pathArg("Directory path"),
	), s.deleteDirectory)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles, tags and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("notebook", mcp.Description("Limit results to one notebook")),
	), s.searchNotes)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// target reads the notebook and path arguments shared by most tools.
func target(req mcp.CallToolRequest) (string, string, error) {
	nb, err := req.RequireString("notebook")
	if err != nil {
		return "", "", err
	}
	p, err := req.RequireString("path")
	if err != nil {
		return "", "", err
	}
	return nb, p, nil
}

func (s *Server) listNotebooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user := req.GetInt("user", notebook.AllUsers)
	list, err := s.svc.ListNotebooks(ctx, user)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("no notebooks"), nil
	}
	lines := make([]string, len(list))
	for i, n := range list {
		lines[i] = fmt.Sprintf("%s (user %d)", n.Name, n.User)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) createNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nb, _, err := s.svc.CreateNotebook(ctx, name, req.GetInt("user", 0), req.GetBool("public", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(nb), nil
}

func (s *Server) getTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("notebook")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.svc.Tree(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nb, p, err := target(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, nb, p)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", p)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nb, p, err := target(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.CreateNote(ctx, nb, p, []byte(req.GetString("content", "")))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.Path)), nil
}

func (s *Server) writeNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nb, p, err := target(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.UpdateNote(ctx, nb, p, []byte(content), req.GetString("checksum", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (%s)", note.Path, note.Checksum)), nil
}

func (s *Server) renameNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nb, p, err := target(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	np, err := s.svc.RenameNote(ctx, nb, p, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed: %s -> %s", p, np)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nb, p, err := target(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteNote(ctx, nb, p); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", p)), nil
}

func (s *Server) createDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nb, p, err := target(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.CreateDirectory(ctx, nb, p); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s/", p)), nil
}

func (s *Server) deleteDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nb, p, err := target(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteDirectory(ctx, nb, p); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s/", p)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetString("notebook", ""), 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}
