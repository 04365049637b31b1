// Package noteservice answers read queries over the vault for the HTTP and
// MCP front-ends: notes, search, projects, todo lists and timelines.
package noteservice

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/starford/worklog/internal/apperr"
	"github.com/starford/worklog/internal/index"
	"github.com/starford/worklog/internal/models"
	"github.com/starford/worklog/internal/parser"
	"github.com/starford/worklog/internal/storage"
	"github.com/starford/worklog/internal/timeline"
	"github.com/starford/worklog/internal/todo"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Kind        string         `json:"kind"`
	Project     string         `json:"project,omitempty"`
	Date        string         `json:"date,omitempty"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Backlinks   []string       `json:"backlinks"`
}

// ProjectSummary describes one project directory.
type ProjectSummary struct {
	Name       string `json:"name"`
	DailyNotes int    `json:"daily_notes"`
	Weeks      int    `json:"weeks"`
	LastDate   string `json:"last_date,omitempty"`
	OpenTodos  int    `json:"open_todos"`
}

// TodoList is the parsed todo list of a project.
type TodoList struct {
	Project   string            `json:"project"`
	Open      []models.TodoItem `json:"open"`
	Completed []models.TodoItem `json:"completed"`
}

// Service coordinates the vault, the index and the project stores.
type Service struct {
	vault    storage.Provider
	db       *index.DB
	todos    *todo.Store
	timeline *timeline.Generator
	projects func() ([]string, error)
	logger   *slog.Logger
}

// NewService creates a note service. projects lists the project names.
func NewService(vault storage.Provider, db *index.DB, todos *todo.Store, gen *timeline.Generator, projects func() ([]string, error), logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{vault: vault, db: db, todos: todos, timeline: gen, projects: projects, logger: logger}
}

// GetNote reads a note from the vault, parses it, and enriches it with backlinks.
func (s *Service) GetNote(_ context.Context, p string) (*NoteDetail, error) {
	data, err := s.vault.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Wrap(apperr.ErrNotFound, "note "+p, nil)
		}
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.backlinks(p)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Path:        p,
		Title:       res.Title,
		Kind:        string(res.Kind),
		Project:     res.Project,
		Date:        res.Date,
		Content:     string(data),
		Checksum:    storage.Checksum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(bl),
	}, nil
}

// backlinks merges links that name the note by its stem (wikilinks) and by
// its vault path without extension (relative Markdown links).
func (s *Service) backlinks(p string) ([]string, error) {
	full := strings.TrimSuffix(p, ".md")
	stem := path.Base(full)

	seen := make(map[string]bool)
	var out []string
	for _, target := range []string{stem, full} {
		bl, err := s.db.Backlinks(target)
		if err != nil {
			return nil, err
		}
		for _, b := range bl {
			if !seen[b] && b != p {
				seen[b] = true
				out = append(out, b)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListNotes returns indexed notes matching f and the total match count.
func (s *Service) ListNotes(_ context.Context, f index.Filter) ([]index.NoteRow, int, error) {
	rows, total, err := s.db.ListNotes(f)
	if err != nil {
		return nil, 0, err
	}
	for i := range rows {
		rows[i].Tags = nonNilSlice(rows[i].Tags)
	}
	return nonNilSlice(rows), total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query, project string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Wrap(apperr.ErrValidation, "empty query", nil)
	}
	res, err := s.db.Search(query, project, limit)
	return nonNilSlice(res), err
}

// Projects lists every project directory with index statistics and the
// number of open todo items.
func (s *Service) Projects(_ context.Context) ([]ProjectSummary, error) {
	names, err := s.projects()
	if err != nil {
		return nil, err
	}
	stats, err := s.db.Projects()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]index.ProjectStat, len(stats))
	for _, st := range stats {
		byName[st.Project] = st
	}

	out := make([]ProjectSummary, 0, len(names))
	for _, name := range names {
		st := byName[name]
		open, err := s.todos.Open(name)
		if err != nil {
			s.logger.Warn("noteservice: read todos failed", slog.String("project", name), slog.String("error", err.Error()))
		}
		out = append(out, ProjectSummary{
			Name:       name,
			DailyNotes: st.DailyNotes,
			Weeks:      st.Weeks,
			LastDate:   st.LastDate,
			OpenTodos:  len(open),
		})
	}
	return out, nil
}

// Todos returns the open and completed items of project's todo list.
func (s *Service) Todos(ctx context.Context, project string) (*TodoList, error) {
	if err := s.checkProject(ctx, project); err != nil {
		return nil, err
	}
	open, err := s.todos.Open(project)
	if err != nil {
		return nil, err
	}
	done, err := s.todos.Completed(project)
	if err != nil {
		return nil, err
	}
	return &TodoList{Project: project, Open: nonNilSlice(open), Completed: nonNilSlice(done)}, nil
}

// Timeline returns project's weekly summaries newest first.
func (s *Service) Timeline(ctx context.Context, project string) ([]timeline.IndexEntry, error) {
	if err := s.checkProject(ctx, project); err != nil {
		return nil, err
	}
	entries, err := s.timeline.Entries(project)
	return nonNilSlice(entries), err
}

// Sync brings the index up to date with the vault.
func (s *Service) Sync(_ context.Context) error {
	return index.Sync(s.db, s.vault, s.logger)
}

func (s *Service) checkProject(_ context.Context, project string) error {
	names, err := s.projects()
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == project {
			return nil
		}
	}
	return apperr.Wrap(apperr.ErrNotFound, "project "+project, nil)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
