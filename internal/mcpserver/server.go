// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes edunote tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/edunote/edunote/internal/apperr"
	"github.com/edunote/edunote/internal/noteservice"
	"github.com/edunote/edunote/internal/review"
)

// Server wraps the MCP server with edunote tools. MCP runs over stdio for a
// single local user, so every tool call is scoped to the configured owner.
type Server struct {
	mcp   *server.MCPServer
	svc   *noteservice.Service
	owner string
}

// New creates a new MCP server with all edunote tools registered.
func New(svc *noteservice.Service, owner string) *Server {
	s := &Server{svc: svc, owner: owner}

	s.mcp = server.NewMCPServer(
		"edunote",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the user's study notes with their next review date."),
		mcp.WithString("folder", mcp.Description("Optional folder id to filter by (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content and review schedule of one note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a study note. Its spaced-review schedule is seeded "+
			"automatically from the creation time. Read the get_note_contract tool or the "+
			"edunote://note-format resource for the expected content shape."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note body following the edunote note contract")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("due_notes",
		mcp.WithDescription("List the notes that are due for review right now."),
	), s.dueNotes)

	s.mcp.AddTool(mcp.NewTool("complete_review",
		mcp.WithDescription("Mark a note as reviewed, consuming its earliest due checkpoint. "+
			"Consumes exactly one checkpoint per call; call again while a note stays due to catch up."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.completeReview)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical edunote note contract. "+
			"Call this before creating notes to ensure correct structure."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("edunote://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical study-note format that created notes should follow."),
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

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	notes, _, err := s.svc.ListNotes(ctx, s.owner, folder, 0, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, n := range notes {
		line := fmt.Sprintf("%s\t%s", n.ID, n.Title)
		if due, ok := n.Schedule.NextDue(); ok {
			line += "\tnext review " + due.Format("2006-01-02 15:04")
		} else {
			line += "\treviews done"
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no notes"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, s.owner, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(note, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	note, err := s.svc.CreateNote(ctx, s.owner, "", title, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.ID)), nil
}

func (s *Server) dueNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.DueNotes(ctx, s.owner)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("nothing due for review"), nil
	}
	var lines []string
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("%s\t%s", n.ID, n.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) completeReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.svc.CompleteReview(ctx, s.owner, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	switch out.Status {
	case review.StatusAdvanced:
		msg := fmt.Sprintf("reviewed checkpoint %s", out.ReviewedAt.Format("2006-01-02 15:04"))
		if due, ok := out.Schedule.NextDue(); ok {
			msg += ", next review " + due.Format("2006-01-02 15:04")
		} else {
			msg += ", all reviews done"
		}
		return mcp.NewToolResultText(msg), nil
	case review.StatusNotYetDue:
		due, _ := out.Schedule.NextDue()
		return mcp.NewToolResultError("not yet due, next review " + due.Format("2006-01-02 15:04")), nil
	default:
		return mcp.NewToolResultText("nothing left to review for this note"), nil
	}
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "edunote://note-format",
			MIMEType: "text/markdown",
			Text:     NoteContract,
		},
	}, nil
}
