// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Laguz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/noteservice"
	"github.com/starford/laguz/internal/search"
)

// Server wraps the MCP server with Laguz tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *noteservice.Service
	searcher *search.Searcher
	db       *ledger.DB
	owner    string
}

// New creates a new MCP server with all Laguz tools registered.
func New(svc *noteservice.Service, searcher *search.Searcher, db *ledger.DB, owner string) *Server {
	s := &Server{svc: svc, searcher: searcher, db: db, owner: owner}

	s.mcp = server.NewMCPServer(
		"Laguz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Semantic search across embedded notes. Hits flagged degraded "+
			"may lag the file on disk."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language search query")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note by its id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note identifier from front-matter or search results")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note. The identifier is assigned "+
			"automatically and the note is queued for embedding. See the "+
			"laguz://note-format resource for the file structure."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new note (must end with .md)")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("body", mcp.Description("Markdown body")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes with their ids and paths."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Report how many files are tracked, embedded, and degraded."),
	), s.syncStatus)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("laguz://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown note format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

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

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.searcher.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, content, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body := ""
	if b, err := req.RequireString("body"); err == nil {
		body = b
	}

	var created string
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		note, err := s.svc.CreateTx(ctx, tx, noteservice.CreateParams{
			Path: path, Title: title, Body: body,
		})
		if err != nil {
			return err
		}
		created = note.ID
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if note, err := s.db.GetNote(ctx, created); err == nil {
		s.svc.Created(note)
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (id %s)", path, created)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var lines []string
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", n.ID, n.RelativePath, n.Title))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no notes"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) syncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tracked, err := s.db.ListTracked(ctx, s.owner)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var embedded, degraded int
	for _, tf := range tracked {
		if tf.LastEmbeddedAt != nil {
			embedded++
		}
		if tf.Degraded {
			degraded++
		}
	}
	out, _ := json.MarshalIndent(map[string]int{
		"tracked":  len(tracked),
		"embedded": embedded,
		"degraded": degraded,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "laguz://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
