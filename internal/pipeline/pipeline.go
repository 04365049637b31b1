// Package pipeline drives a recording or transcript through extraction, the
// daily note and the project todo list.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/worklog/internal/audio"
	"github.com/starford/worklog/internal/extract"
	"github.com/starford/worklog/internal/models"
	"github.com/starford/worklog/internal/notes"
	"github.com/starford/worklog/internal/storage"
	"github.com/starford/worklog/internal/todo"
	"github.com/starford/worklog/internal/transcribe"
)

// Config controls optional pipeline behavior.
type Config struct {
	// DeleteAfterProcessing removes a recording once its note is written.
	DeleteAfterProcessing bool
	// ExcludeProjects are directory names under the projects root that are
	// not projects, such as the daily notes directory.
	ExcludeProjects []string
}

// Deps are the collaborators a Processor needs. Transcriber, Validator and
// Inbox may be nil when only transcripts are processed.
type Deps struct {
	Notes       *notes.Store
	Projects    storage.Provider
	Todos       *todo.Store
	Extractor   *extract.Engine
	TodoFinder  *todo.Extractor
	Transcriber transcribe.Transcriber
	Validator   *audio.Validator
	Inbox       *audio.Inbox
	Locker      *storage.Locker
}

// Processor runs the content pipeline.
type Processor struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	remove func(string) error
}

// Option customizes a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the time source used when a recording name has no date.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// New returns a Processor.
func New(deps Deps, cfg Config, opts ...Option) *Processor {
	p := &Processor{deps: deps, cfg: cfg, logger: slog.Default(), now: time.Now, remove: os.Remove}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NoteResult describes one processed transcript.
type NoteResult struct {
	Note    string         `json:"note"`
	Project string         `json:"project"`
	Date    string         `json:"date"`
	Outcome models.Outcome `json:"outcome"`
	Todos   int            `json:"todos"`
	Source  string         `json:"source,omitempty"`
}

// AvailableProjects lists the project directories offered to the model.
func (p *Processor) AvailableProjects() ([]string, error) {
	return notes.AvailableProjects(p.deps.Projects, p.cfg.ExcludeProjects...)
}

// ProcessTranscript extracts the note fields from transcript, writes the
// daily note and merges any todo items into the detected project's list.
// An empty date means today.
func (p *Processor) ProcessTranscript(ctx context.Context, transcript, date, audioFile string) (NoteResult, error) {
	if date == "" {
		date = p.now().Format(models.DateLayout)
	}
	projects, err := p.AvailableProjects()
	if err != nil {
		return NoteResult{}, err
	}

	res := p.deps.Extractor.Extract(ctx, transcript, projects)
	project := res.Fields.Project

	name, err := p.deps.Notes.CreateDailyNote(date, res.Fields, transcript, audioFile)
	if err != nil {
		return NoteResult{}, err
	}
	p.logger.Info("pipeline: daily note created",
		slog.String("note", name),
		slog.String("project", project),
		slog.String("outcome", string(res.Outcome)))

	added, err := p.addTodos(ctx, transcript, project, date)
	if err != nil {
		return NoteResult{}, err
	}
	return NoteResult{Note: name, Project: project, Date: date, Outcome: res.Outcome, Todos: added, Source: audioFile}, nil
}

// ProcessAudio validates and transcribes a recording, then runs
// ProcessTranscript dated from the file name.
func (p *Processor) ProcessAudio(ctx context.Context, path string) (NoteResult, error) {
	base := filepath.Base(path)
	date := p.dateFor(base)

	tr, err := p.transcribe(ctx, path)
	if err != nil {
		return NoteResult{}, err
	}
	p.logger.Info("pipeline: transcription completed",
		slog.String("file", base),
		slog.Int("chars", len(tr.Text)))

	res, err := p.ProcessTranscript(ctx, tr.Text, date, base)
	if err != nil {
		return NoteResult{}, err
	}
	p.cleanup(path)
	return res, nil
}

// TodoResult describes one todo-only run.
type TodoResult struct {
	Project    string            `json:"project"`
	Transcript string            `json:"transcript"`
	Items      []models.TodoItem `json:"items"`
}

// ExtractTodosOnly transcribes a recording, detects its project, keeps the
// transcript and merges its todo items without writing a daily note.
func (p *Processor) ExtractTodosOnly(ctx context.Context, path string) (TodoResult, error) {
	base := filepath.Base(path)
	date := p.dateFor(base)

	tr, err := p.transcribe(ctx, path)
	if err != nil {
		return TodoResult{}, err
	}
	projects, err := p.AvailableProjects()
	if err != nil {
		return TodoResult{}, err
	}
	project := p.deps.Extractor.Extract(ctx, tr.Text, projects).Fields.Project

	rel, err := p.deps.Notes.WriteTodoExtract(date, project, tr.Text)
	if err != nil {
		return TodoResult{}, err
	}

	items := p.deps.TodoFinder.ExtractTodos(ctx, tr.Text, project)
	if len(items) > 0 {
		if err := p.withLock(ctx, project, func() error {
			_, err := p.deps.Todos.AddTodos(project, items, date)
			return err
		}); err != nil {
			return TodoResult{}, err
		}
	}
	p.logger.Info("pipeline: todos extracted",
		slog.String("file", base),
		slog.String("project", project),
		slog.Int("todos", len(items)))

	p.cleanup(path)
	return TodoResult{Project: project, Transcript: rel, Items: items}, nil
}

// BatchResult aggregates an inbox run.
type BatchResult struct {
	Processed int               `json:"processed"`
	Failed    int               `json:"failed"`
	Notes     []NoteResult      `json:"notes"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Progress is told about each recording as it finishes.
type Progress func(file string, err error)

// ProcessInbox processes every supported recording in the inbox in name
// order. A failing recording is counted and the batch continues.
func (p *Processor) ProcessInbox(ctx context.Context, progress Progress) (BatchResult, error) {
	if p.deps.Inbox == nil {
		return BatchResult{}, fmt.Errorf("pipeline: no inbox configured")
	}
	names, err := p.deps.Inbox.Recordings()
	if err != nil {
		return BatchResult{}, err
	}

	var out BatchResult
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := p.ProcessAudio(ctx, p.deps.Inbox.Path(name))
		if err != nil {
			out.Failed++
			if out.Errors == nil {
				out.Errors = make(map[string]string)
			}
			out.Errors[name] = err.Error()
			p.logger.Error("pipeline: recording failed", slog.String("file", name), slog.String("error", err.Error()))
		} else {
			out.Processed++
			out.Notes = append(out.Notes, res)
		}
		if progress != nil {
			progress(name, err)
		}
	}
	p.logger.Info("pipeline: batch complete",
		slog.Int("processed", out.Processed),
		slog.Int("failed", out.Failed))
	return out, nil
}

func (p *Processor) addTodos(ctx context.Context, transcript, project, date string) (int, error) {
	items := p.deps.TodoFinder.ExtractTodos(ctx, transcript, project)
	if len(items) == 0 {
		return 0, nil
	}
	var added bool
	err := p.withLock(ctx, project, func() error {
		var err error
		added, err = p.deps.Todos.AddTodos(project, items, date)
		return err
	})
	if err != nil || !added {
		return 0, err
	}
	return len(items), nil
}

func (p *Processor) withLock(ctx context.Context, project string, fn func() error) error {
	if p.deps.Locker == nil {
		return fn()
	}
	unlock, err := p.deps.Locker.Lock(ctx, project)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (p *Processor) transcribe(ctx context.Context, path string) (models.Transcript, error) {
	if p.deps.Transcriber == nil {
		return models.Transcript{}, fmt.Errorf("pipeline: no transcriber configured")
	}
	if p.deps.Validator != nil {
		if _, err := p.deps.Validator.Validate(ctx, path); err != nil {
			return models.Transcript{}, err
		}
	}
	return p.deps.Transcriber.Transcribe(ctx, path)
}

func (p *Processor) dateFor(name string) string {
	if d, ok := notes.DateFromFilename(name); ok {
		return d
	}
	return p.now().Format(models.DateLayout)
}

func (p *Processor) cleanup(path string) {
	if !p.cfg.DeleteAfterProcessing {
		return
	}
	if err := p.remove(path); err != nil {
		p.logger.Warn("pipeline: could not delete recording", slog.String("file", path), slog.String("error", err.Error()))
	}
}
