// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the work log to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/worklog/internal/audio"
	"github.com/starford/worklog/internal/index"
	"github.com/starford/worklog/internal/models"
	"github.com/starford/worklog/internal/noteservice"
	"github.com/starford/worklog/internal/pipeline"
	"github.com/starford/worklog/internal/timeline"
)

const contractURI = "worklog://note-format"

// Processor is the part of the content pipeline exposed as tools.
type Processor interface {
	ProcessTranscript(ctx context.Context, transcript, date, audioFile string) (pipeline.NoteResult, error)
	ProcessAudio(ctx context.Context, path string) (pipeline.NoteResult, error)
}

// Aggregator creates missing weekly summaries.
type Aggregator interface {
	Generate(ctx context.Context, project string) ([]timeline.WeekResult, error)
	ProcessAllProjects(ctx context.Context) (map[string]int, error)
}

// Deps are the collaborators behind the tools.
type Deps struct {
	Service    *noteservice.Service
	Processor  Processor
	Aggregator Aggregator
	Inbox      *audio.Inbox
	Logger     *slog.Logger
}

// Server wraps the MCP server with the work log tools.
type Server struct {
	mcp  *server.MCPServer
	deps Deps
}

// New creates a new MCP server with all tools registered. The
// upload_audio tool is only offered when an inbox is configured.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps}

	s.mcp = server.NewMCPServer(
		"worklog",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through daily notes, weekly summaries, todo lists and transcripts."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("project", mcp.Description("Optional project to limit the search to")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note by its vault path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path (e.g. Daily Notes/2024-01-02_Saliency.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List indexed notes newest first, optionally filtered by kind and project."),
		mcp.WithString("kind", mcp.Description("daily, weekly, todo, transcript, index, debug or other")),
		mcp.WithString("project", mcp.Description("Project name")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes (default 50)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List projects with their daily note, week and open todo counts."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("get_todos",
		mcp.WithDescription("Get the open and completed todo items of a project."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	), s.getTodos)

	s.mcp.AddTool(mcp.NewTool("get_timeline",
		mcp.WithDescription("Get the weekly summaries of a project, newest first."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	), s.getTimeline)

	s.mcp.AddTool(mcp.NewTool("process_transcript",
		mcp.WithDescription("Turn a spoken work-log transcript into a daily note and add its todo items "+
			"to the detected project's list. Read the format contract first via get_note_contract."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Transcript text")),
		mcp.WithString("date", mcp.Description("Note date YYYY-MM-DD (default today)")),
	), s.processTranscript)

	s.mcp.AddTool(mcp.NewTool("generate_timeline",
		mcp.WithDescription("Create the missing weekly summaries of one project or of every project."),
		mcp.WithString("project", mcp.Description("Project name (empty for all)")),
	), s.generateTimeline)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the Markdown formats of daily notes, todo lists and weekly summaries."),
	), s.getNoteContract)

	if deps.Inbox != nil {
		s.mcp.AddTool(mcp.NewTool("upload_audio",
			mcp.WithDescription("Store a recording in the inbox from an http(s) URL or a base64 data URI, "+
				"optionally processing it into a daily note right away."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:audio/...;base64,... URI")),
			mcp.WithString("filename", mcp.Description("File name; Daily_Log_dd-mm-yyyy dates the note")),
			mcp.WithBoolean("process", mcp.Description("Transcribe and process after saving")),
		), s.uploadAudio)
	}

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("Markdown formats written by the work-log pipeline."),
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// sync refreshes the index after a tool wrote to the vault.
func (s *Server) sync(ctx context.Context) {
	if err := s.deps.Service.Sync(ctx); err != nil {
		s.deps.Logger.Warn("mcp: index sync failed", slog.String("error", err.Error()))
	}
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.deps.Service.Search(ctx, query, req.GetString("project", ""), 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.deps.Service.GetNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, total, err := s.deps.Service.ListNotes(ctx, index.Filter{
		Kind:    req.GetString("kind", ""),
		Project: req.GetString("project", ""),
		Limit:   req.GetInt("limit", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"notes": rows, "total": total}), nil
}

func (s *Server) listProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.deps.Service.Projects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(projects), nil
}

func (s *Server) getTodos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list, err := s.deps.Service.Todos(ctx, project)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(list), nil
}

func (s *Server) getTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	weeks, err := s.deps.Service.Timeline(ctx, project)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(weeks), nil
}

func (s *Server) processTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date := req.GetString("date", "")
	if _, err := time.Parse(models.DateLayout, date); date != "" && err != nil {
		return mcp.NewToolResultError("date must be YYYY-MM-DD"), nil
	}
	res, err := s.deps.Processor.ProcessTranscript(ctx, text, date, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.sync(ctx)
	return jsonResult(res), nil
}

func (s *Server) generateTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	if project == "" {
		counts, err := s.deps.Aggregator.ProcessAllProjects(ctx)
		s.sync(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(counts), nil
	}

	weeks, err := s.deps.Aggregator.Generate(ctx, project)
	s.sync(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	created := make([]string, 0, len(weeks))
	for _, w := range weeks {
		created = append(created, w.Week.ID())
	}
	return jsonResult(map[string]any{"project": project, "created": created}), nil
}

func (s *Server) getNoteContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
