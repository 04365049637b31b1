package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/starford/worklog/internal/models"
	"github.com/starford/worklog/internal/notes"
	"github.com/starford/worklog/internal/storage"
	"github.com/starford/worklog/internal/todo"
)

const (
	// Dir is the timeline directory inside each project.
	Dir = "timeline"
	// IndexFile is the timeline index inside Dir.
	IndexFile = "timeline_index.md"
	// RecentWeeks is the number of weeks listed with a summary in the index.
	RecentWeeks = 12
)

var weekFileRe = regexp.MustCompile(`^(\d{4})-W(\d{2})\.md$`)

// Config controls weekly file rendering.
type Config struct {
	TrackCompletedTodos bool
}

// Generator creates missing weekly summaries for projects.
type Generator struct {
	daily      *notes.Store
	projects   storage.Provider
	todos      *todo.Store
	summarizer *Summarizer
	locker     *storage.Locker
	listFn     func() ([]string, error)
	cfg        Config
	logger     *slog.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithLocker serializes generation per project.
func WithLocker(l *storage.Locker) Option {
	return func(g *Generator) { g.locker = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithProjectLister overrides how ProcessAllProjects enumerates projects.
func WithProjectLister(fn func() ([]string, error)) Option {
	return func(g *Generator) { g.listFn = fn }
}

// NewGenerator returns a Generator reading daily notes from daily and writing
// weekly files under projects.
func NewGenerator(daily *notes.Store, projects storage.Provider, todos *todo.Store, s *Summarizer, cfg Config, opts ...Option) *Generator {
	g := &Generator{
		daily:      daily,
		projects:   projects,
		todos:      todos,
		summarizer: s,
		cfg:        cfg,
		logger:     slog.Default(),
	}
	g.listFn = func() ([]string, error) { return notes.AvailableProjects(projects) }
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WeekPath returns the weekly file path of project relative to the projects root.
func WeekPath(project string, w models.Week) string {
	return path.Join(project, Dir, w.ID()+".md")
}

// IndexPath returns the timeline index path of project.
func IndexPath(project string) string {
	return path.Join(project, Dir, IndexFile)
}

// Discover groups project's daily notes by ISO week. Notes in each week are
// sorted by date; when a date has several notes the lexically last wins.
func (g *Generator) Discover(project string) (map[models.Week][]DailyRef, error) {
	names, err := g.daily.ListDaily()
	if err != nil {
		return nil, fmt.Errorf("timeline: list daily notes: %w", err)
	}
	re := regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})_` + regexp.QuoteMeta(project) + `(?:_\d+)?\.md$`)

	byDate := make(map[string]string)
	for _, name := range names {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if _, err := time.Parse(models.DateLayout, m[1]); err != nil {
			continue
		}
		byDate[m[1]] = name
	}

	weeks := make(map[models.Week][]DailyRef)
	for date, name := range byDate {
		t, _ := time.Parse(models.DateLayout, date)
		w := models.WeekOf(t)
		weeks[w] = append(weeks[w], DailyRef{Date: date, File: name})
	}
	for _, refs := range weeks {
		sort.Slice(refs, func(i, j int) bool { return refs[i].Date < refs[j].Date })
	}
	return weeks, nil
}

// MissingWeeks returns the weeks that have daily notes but no weekly file,
// oldest first.
func (g *Generator) MissingWeeks(project string) ([]models.Week, error) {
	weeks, err := g.Discover(project)
	if err != nil {
		return nil, err
	}
	var out []models.Week
	for w := range weeks {
		exists, err := g.projects.Exists(WeekPath(project, w))
		if err != nil {
			return nil, fmt.Errorf("timeline: stat %s: %w", WeekPath(project, w), err)
		}
		if !exists {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// WeekResult describes one weekly file written by CreateWeek.
type WeekResult struct {
	Week    models.Week
	Path    string
	Outcome models.Outcome
	Notes   int
	Swept   todo.SweepResult
}

// CreateWeek synthesizes and writes the weekly file for w. It sweeps checked
// items out of the project's todo list on the way. ok is false when the week
// has no daily notes.
func (g *Generator) CreateWeek(ctx context.Context, project string, w models.Week) (WeekResult, bool, error) {
	weeks, err := g.Discover(project)
	if err != nil {
		return WeekResult{}, false, err
	}
	refs := weeks[w]
	if len(refs) == 0 {
		return WeekResult{}, false, nil
	}

	days := make([]notes.Sections, 0, len(refs))
	for _, ref := range refs {
		sec, err := g.daily.ReadSections(ref.File)
		if err != nil {
			return WeekResult{}, false, fmt.Errorf("timeline: read %s: %w", ref.File, err)
		}
		days = append(days, sec)
	}

	summary := g.summarizer.Summarize(ctx, project, w, days)

	swept, err := g.todos.Sweep(project)
	if err != nil {
		return WeekResult{}, false, err
	}

	weekly := Weekly{Project: project, Week: w, Fields: summary.Fields, Notes: refs}
	if g.cfg.TrackCompletedTodos {
		weekly.Completed = swept.Items
	}

	p := WeekPath(project, w)
	if err := g.projects.Write(p, []byte(RenderWeekly(weekly))); err != nil {
		return WeekResult{}, false, fmt.Errorf("timeline: write %s: %w", p, err)
	}

	g.logger.Info("timeline: weekly summary created",
		slog.String("project", project),
		slog.String("week", w.ID()),
		slog.String("outcome", string(summary.Outcome)),
		slog.Int("notes", len(refs)),
		slog.Int("todos_removed", swept.Removed))

	return WeekResult{Week: w, Path: p, Outcome: summary.Outcome, Notes: len(refs), Swept: swept}, true, nil
}

// Generate creates every missing week of project, oldest first, and rebuilds
// the index when at least one was written. It holds the project lock
// throughout.
func (g *Generator) Generate(ctx context.Context, project string) ([]WeekResult, error) {
	if g.locker != nil {
		unlock, err := g.locker.Lock(ctx, project)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	missing, err := g.MissingWeeks(project)
	if err != nil {
		return nil, err
	}

	var (
		results []WeekResult
		genErr  error
	)
	for _, w := range missing {
		if err := ctx.Err(); err != nil {
			genErr = err
			break
		}
		res, ok, err := g.CreateWeek(ctx, project, w)
		if err != nil {
			genErr = err
			break
		}
		if ok {
			results = append(results, res)
		}
	}

	if len(results) > 0 {
		if _, err := g.UpdateIndex(project); err != nil {
			genErr = errors.Join(genErr, err)
		}
	}
	return results, genErr
}

// GenerateMissingWeeks is Generate reporting only the number of weeks created.
func (g *Generator) GenerateMissingWeeks(ctx context.Context, project string) (int, error) {
	res, err := g.Generate(ctx, project)
	return len(res), err
}

// ProcessAllProjects runs GenerateMissingWeeks for every project. A failing
// project is logged and reported in the joined error; the others still run.
func (g *Generator) ProcessAllProjects(ctx context.Context) (map[string]int, error) {
	projects, err := g.listFn()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(projects))
	var errs []error
	for _, p := range projects {
		n, err := g.GenerateMissingWeeks(ctx, p)
		out[p] = n
		if err != nil {
			g.logger.Error("timeline: project failed", slog.String("project", p), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	return out, errors.Join(errs...)
}

// Entries lists the weekly files of project with their summaries.
func (g *Generator) Entries(project string) ([]IndexEntry, error) {
	entries, err := g.projects.Entries(path.Join(project, Dir))
	if err != nil {
		return nil, fmt.Errorf("timeline: list %s: %w", project, err)
	}
	var out []IndexEntry
	for _, e := range entries {
		if e.IsDir || e.Name == IndexFile {
			continue
		}
		m := weekFileRe.FindStringSubmatch(e.Name)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		num, _ := strconv.Atoi(m[2])
		data, err := g.projects.Read(path.Join(project, Dir, e.Name))
		if err != nil {
			return nil, fmt.Errorf("timeline: read %s: %w", e.Name, err)
		}
		out = append(out, IndexEntry{Week: models.Week{Year: year, Num: num}, Summary: ExtractSummary(string(data))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Week.Before(out[i].Week) })
	return out, nil
}

// UpdateIndex regenerates project's timeline index from its weekly files. It
// reports false and writes nothing when there are none.
func (g *Generator) UpdateIndex(project string) (bool, error) {
	entries, err := g.Entries(project)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	if err := g.projects.Write(IndexPath(project), []byte(RenderIndex(project, entries))); err != nil {
		return false, fmt.Errorf("timeline: write index: %w", err)
	}
	return true, nil
}
