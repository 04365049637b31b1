package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/worklog/internal/index"
	"github.com/starford/worklog/internal/noteservice"
)

// Handler holds the read-side route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. Saliency%2Ftodo.md).
func notePath(r *http.Request) string {
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

// ListNotes handles GET /api/notes.
//
//	@Summary		List indexed notes with filtering and pagination
//	@Tags			notes
//	@Produce		json
//	@Param			kind	query		string	false	"Note kind"	Enums(daily, weekly, todo, transcript, index, debug, other)
//	@Param			project	query		string	false	"Project name"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			from	query		string	false	"First date (YYYY-MM-DD)"
//	@Param			to		query		string	false	"Last date (YYYY-MM-DD)"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.ListNotes(r.Context(), index.Filter{
		Kind:    q.Get("kind"),
		Project: q.Get("project"),
		Tag:     q.Get("tag"),
		From:    q.Get("from"),
		To:      q.Get("to"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: rows, Total: total})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by vault path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across the vault
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			project	query		string	false	"Limit to one project"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("q") == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	results, err := h.svc.Search(r.Context(), q.Get("q"), q.Get("project"), limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ListProjects handles GET /api/projects.
//
//	@Summary		List projects with note and todo counts
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	ProjectListResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.Projects(r.Context())
	if err != nil {
		writeError(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: projects})
}

// GetTodos handles GET /api/projects/{project}/todos.
//
//	@Summary		Get a project's open and completed todo items
//	@Tags			projects
//	@Produce		json
//	@Param			project	path		string	true	"Project name"
//	@Success		200		{object}	noteservice.TodoList
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{project}/todos [get]
func (h *Handler) GetTodos(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Todos(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		writeError(w, "get todos", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetTimeline handles GET /api/projects/{project}/timeline.
//
//	@Summary		Get a project's weekly summaries newest first
//	@Tags			projects
//	@Produce		json
//	@Param			project	path		string	true	"Project name"
//	@Success		200		{object}	TimelineResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{project}/timeline [get]
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	weeks, err := h.svc.Timeline(r.Context(), project)
	if err != nil {
		writeError(w, "get timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, TimelineResponse{Project: project, Weeks: weeks})
}
