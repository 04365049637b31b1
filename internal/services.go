package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/worklog/internal/audio"
	"github.com/starford/worklog/internal/extract"
	"github.com/starford/worklog/internal/index"
	"github.com/starford/worklog/internal/llm"
	"github.com/starford/worklog/internal/notes"
	"github.com/starford/worklog/internal/noteservice"
	"github.com/starford/worklog/internal/pipeline"
	"github.com/starford/worklog/internal/storage"
	"github.com/starford/worklog/internal/timeline"
	"github.com/starford/worklog/internal/todo"
	"github.com/starford/worklog/internal/transcribe"
)

// Services holds every component built from a Config.
type Services struct {
	Config   *Config
	Logger   *slog.Logger
	Vault    *storage.FS
	Notes    *notes.Store
	Todos    *todo.Store
	Timeline *timeline.Generator
	Pipeline *pipeline.Processor
	Inbox    *audio.Inbox
	Index    *index.DB
	Service  *noteservice.Service

	projects *storage.FS
	exclude  []string
}

// NewLogger builds the slog logger described by cfg writing to w.
func NewLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// NewServices creates the vault directories, opens the index and wires the
// pipeline. Close releases the index.
func NewServices(cfg *Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	paths := &cfg.Paths

	vault, err := storage.OpenFS(paths.Vault)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}
	dailyFS, err := storage.OpenFS(paths.DailyNotesDir())
	if err != nil {
		return nil, fmt.Errorf("init daily notes: %w", err)
	}
	projectsFS, err := storage.OpenFS(paths.ProjectsDir())
	if err != nil {
		return nil, fmt.Errorf("init projects: %w", err)
	}
	inboxFS, err := storage.OpenFS(paths.InboxDir())
	if err != nil {
		return nil, fmt.Errorf("init inbox: %w", err)
	}
	locker, err := storage.NewLocker(paths.LocksDir())
	if err != nil {
		return nil, fmt.Errorf("init locks: %w", err)
	}

	completer, err := llm.NewCompleter(llm.ProviderConfig{
		Provider:       cfg.LLM.Provider,
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		MaxTokens:      cfg.LLM.MaxTokens,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		RetryAttempts:  cfg.LLM.RetryAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}
	if cfg.Output.DebugLLM {
		completer = llm.NewDebugLog(completer, dailyFS, cfg.Output.DebugFolder, cfg.LLM.Model,
			llm.WithDebugLogger(logger))
	}

	noteStore := notes.NewStore(dailyFS, notes.Config{
		SaveTranscript:   cfg.Output.SaveTranscript,
		TranscriptFolder: cfg.Output.TranscriptFolder,
	})
	todos := todo.NewStore(projectsFS)
	validator := audio.NewValidator(cfg.Audio.SupportedFormats, cfg.Audio.MinDuration,
		cfg.Audio.MaxDuration, cfg.Audio.FFprobeBinary)
	inbox := audio.NewInbox(inboxFS, validator)

	s := &Services{
		Config:   cfg,
		Logger:   logger,
		Vault:    vault,
		Notes:    noteStore,
		Todos:    todos,
		Inbox:    inbox,
		projects: projectsFS,
		exclude:  excludedDirs(projectsFS.Root(), dailyFS.Root(), inboxFS.Root(), filepath.Dir(paths.LocksDir())),
	}

	s.Pipeline = pipeline.New(pipeline.Deps{
		Notes:    noteStore,
		Projects: projectsFS,
		Todos:    todos,
		Extractor: extract.NewEngine(completer, extract.Config{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}, logger),
		TodoFinder: todo.NewExtractor(completer, todo.ExtractorConfig{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Provider:    cfg.LLM.Provider,
		}, logger),
		Transcriber: transcribe.NewWhisperX(transcribe.Config{
			Model:    cfg.Transcription.Model,
			Language: cfg.Transcription.Language,
			CUDA:     cfg.Transcription.CUDA,
			Binary:   cfg.Transcription.Binary,
		}),
		Validator: validator,
		Inbox:     inbox,
		Locker:    locker,
	}, pipeline.Config{
		DeleteAfterProcessing: cfg.Audio.DeleteAfterProcessing,
		ExcludeProjects:       s.exclude,
	}, pipeline.WithLogger(logger))

	s.Timeline = timeline.NewGenerator(noteStore, projectsFS, todos,
		timeline.NewSummarizer(completer, timeline.SummarizerConfig{
			Model:       cfg.LLM.WeeklyModel,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}, logger),
		timeline.Config{TrackCompletedTodos: cfg.Output.TrackCompletedTodos},
		timeline.WithLocker(locker),
		timeline.WithLogger(logger),
		timeline.WithProjectLister(s.Projects))

	if err := os.MkdirAll(filepath.Dir(paths.SQLitePath()), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := index.Open(paths.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	s.Index = db
	s.Service = noteservice.NewService(vault, db, todos, s.Timeline, s.Projects, logger)
	return s, nil
}

// Projects lists the project directories.
func (s *Services) Projects() ([]string, error) {
	return notes.AvailableProjects(s.projects, s.exclude...)
}

// Sync brings the index up to date with the vault.
func (s *Services) Sync(ctx context.Context) error {
	return s.Service.Sync(ctx)
}

// Close releases the index.
func (s *Services) Close() error {
	return s.Index.Close()
}

// excludedDirs names the directories directly under the projects root that
// hold daily notes, recordings or internal state rather than a project.
func excludedDirs(projectsRoot string, dirs ...string) []string {
	var out []string
	for _, d := range dirs {
		rel, err := filepath.Rel(projectsRoot, d)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		out = append(out, strings.SplitN(filepath.ToSlash(rel), "/", 2)[0])
	}
	return out
}
