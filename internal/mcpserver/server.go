// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes keepnotes tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/keepnotes/internal/apperr"
	"github.com/starford/keepnotes/internal/dispatch"
	"github.com/starford/keepnotes/internal/models"
)

// Server wraps the MCP server with keepnotes tools.
type Server struct {
	mcp *server.MCPServer
	d   *dispatch.Dispatcher
}

// New creates a new MCP server with all keepnotes tools registered.
func New(d *dispatch.Dispatcher, version string) *Server {
	s := &Server{d: d}

	s.mcp = server.NewMCPServer(
		"keepnotes",
		version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, newest first."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive substring search over note titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text; blank returns every note")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. A blank title becomes \"Untitled\"."),
		mcp.WithString("title", mcp.Description("Note title")),
		mcp.WithString("content", mcp.Description("Note body")),
		mcp.WithString("color", mcp.Description("Palette color"), mcp.Enum(models.Palette...)),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the title and content of a note. Omit color to keep the current one."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New body")),
		mcp.WithString("color", mcp.Description("Palette color"), mcp.Enum(models.Palette...)),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note. Requires confirm=true."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true to delete")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("get_theme",
		mcp.WithDescription("Return the current theme, light or dark."),
	), s.getTheme)

	s.mcp.AddTool(mcp.NewTool("toggle_theme",
		mcp.WithDescription("Flip the theme between light and dark."),
	), s.toggleTheme)

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

func colorArg(req mcp.CallToolRequest) (string, error) {
	c := req.GetString("color", "")
	if c != "" && !models.IsPaletteColor(c) {
		return "", fmt.Errorf("%w: %s", apperr.ErrInvalidColor, c)
	}
	return c, nil
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.d.Send(ctx, dispatch.ListNotes{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res.Notes), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.d.Send(ctx, dispatch.Search{Query: query})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res.Notes), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	color, err := colorArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.d.Send(ctx, dispatch.CreateNote{
		Title:   req.GetString("title", ""),
		Content: req.GetString("content", ""),
		Color:   color,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res.Note), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	color, err := colorArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.d.Send(ctx, dispatch.UpdateNote{
		ID:      int64(id),
		Title:   req.GetString("title", ""),
		Content: req.GetString("content", ""),
		Color:   color,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res.Note), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !req.GetBool("confirm", false) {
		return mcp.NewToolResultError(apperr.ErrNotConfirmed.Error()), nil
	}
	if _, err := s.d.Send(ctx, dispatch.DeleteNote{ID: int64(id)}); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %d", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) getTheme(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.d.Send(ctx, dispatch.EditorStatus{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(res.Theme)), nil
}

func (s *Server) toggleTheme(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.d.Send(ctx, dispatch.ToggleTheme{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(res.Theme)), nil
}
