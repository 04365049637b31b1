package todo

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/starford/worklog/internal/models"
	"github.com/starford/worklog/internal/storage"
)

// FileName is the todo list file inside each project directory.
const FileName = "todo.md"

var (
	openStrictRe = regexp.MustCompile(`- \[ \] (🔴|🟠|🟢)? ?(.*?)( _.*?_)? \*\[\[(.*?)\|(Source)\]\]\* *\n`)
	openLooseRe  = regexp.MustCompile(`- \[ \] (🔴|🟠|🟢)? ?(.*?)( _.*?_)? \*\[\[(.*?)\]\]\* *\n`)
	doneStrictRe = regexp.MustCompile(`- \[x\] (🔴|🟠|🟢)? ?(.*?)( _.*?_)? \*\[\[(.*?)\|(Source)\]\]\* *\n`)
	doneLooseRe  = regexp.MustCompile(`- \[x\] (🔴|🟠|🟢)? ?(.*?)( _.*?_)? \*\[\[(.*?)\]\]\* *\n`)

	sweepStrictRe = regexp.MustCompile(`- \[x\] (🔴|🟠|🟢)? ?.*?( _.*?_)? \*\[\[.*?\|Source\]\]\* *\n`)
	sweepLooseRe  = regexp.MustCompile(`- \[x\] (🔴|🟠|🟢)? ?.*?( _.*?_)? \*\[\[.*?\]\]\* *\n`)

	headerRe = regexp.MustCompile(`(?s)^(---\n.*?\n---\n)?(# .*?\n)`)
)

// Store reads and rewrites project todo lists. Callers serialize access per
// project with storage.Locker.
type Store struct {
	files storage.Provider
	now   func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for default source dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns a Store over files, which must be rooted at the projects
// directory.
func NewStore(files storage.Provider, opts ...Option) *Store {
	s := &Store{files: files, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the todo list path of project relative to the projects root.
func Path(project string) string {
	return path.Join(project, FileName)
}

// AddTodos merges items into the project's list. New items link back to
// {noteDate}_{project}; noteDate defaults to today. It reports false and
// writes nothing when no item has a task.
func (s *Store) AddTodos(project string, items []models.TodoItem, noteDate string) (bool, error) {
	if noteDate == "" {
		noteDate = s.now().Format(models.DateLayout)
	}
	source := noteDate + "_" + project

	var fresh []models.TodoItem
	for _, it := range items {
		it.Task = strings.TrimSpace(it.Task)
		if it.Task == "" {
			continue
		}
		it.Priority = models.ParsePriority(string(it.Priority))
		if it.Source == "" {
			it.Source = source
		}
		fresh = append(fresh, it)
	}
	if len(fresh) == 0 {
		return false, nil
	}

	content, exists, err := s.read(project)
	if err != nil {
		return false, err
	}

	head := defaultHeader(project)
	var all []models.TodoItem
	if exists {
		head = header(content, project)
		all = ParseOpen(content)
	}
	all = append(all, fresh...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Priority.Rank() < all[j].Priority.Rank()
	})
	doc := head + FormatLines(all)

	if err := s.files.Write(Path(project), []byte(doc)); err != nil {
		return false, fmt.Errorf("todo: write %s: %w", Path(project), err)
	}
	return true, nil
}

// Open returns the unchecked items of project's list.
func (s *Store) Open(project string) ([]models.TodoItem, error) {
	content, _, err := s.read(project)
	if err != nil {
		return nil, err
	}
	return ParseOpen(content), nil
}

// Completed returns the checked items of project's list.
func (s *Store) Completed(project string) ([]models.TodoItem, error) {
	content, _, err := s.read(project)
	if err != nil {
		return nil, err
	}
	return ParseCompleted(content), nil
}

// SweepResult reports what Sweep removed.
type SweepResult struct {
	// Items are the checked items found before removal.
	Items []models.TodoItem
	// Removed counts every "- [x]" occurrence in the list.
	Removed int
	// Matched counts the lines actually deleted.
	Matched int
}

// Sweep captures the checked items of project's list and deletes their
// lines. Checked lines without a source link are counted in Removed but
// left in place.
func (s *Store) Sweep(project string) (SweepResult, error) {
	content, exists, err := s.read(project)
	if err != nil || !exists {
		return SweepResult{}, err
	}

	res := SweepResult{
		Items:   ParseCompleted(content),
		Removed: strings.Count(content, "- [x]"),
	}
	re := sweepStrictRe
	if !re.MatchString(content) {
		re = sweepLooseRe
	}
	res.Matched = len(re.FindAllStringIndex(content, -1))
	if res.Matched == 0 {
		return res, nil
	}

	if err := s.files.Write(Path(project), []byte(re.ReplaceAllString(content, ""))); err != nil {
		return res, fmt.Errorf("todo: write %s: %w", Path(project), err)
	}
	return res, nil
}

func (s *Store) read(project string) (string, bool, error) {
	data, err := s.files.Read(Path(project))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("todo: read %s: %w", Path(project), err)
	}
	return string(data), true, nil
}

// ParseOpen parses unchecked items. Lines whose link lacks the "|Source"
// alias are only recognised when no line has it.
func ParseOpen(content string) []models.TodoItem {
	return parseItems(content, openStrictRe, openLooseRe)
}

// ParseCompleted parses checked items with the same rules as ParseOpen.
func ParseCompleted(content string) []models.TodoItem {
	return parseItems(content, doneStrictRe, doneLooseRe)
}

func parseItems(content string, strict, loose *regexp.Regexp) []models.TodoItem {
	re := strict
	if !re.MatchString(content) {
		re = loose
	}
	var out []models.TodoItem
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		out = append(out, models.TodoItem{
			Task:     strings.TrimSpace(m[2]),
			Priority: models.PriorityFromEmoji(m[1]),
			Context:  strings.Trim(strings.TrimSpace(m[3]), "_"),
			Source:   m[4],
		})
	}
	return out
}

// FormatLine renders one unchecked item.
func FormatLine(it models.TodoItem) string {
	var b strings.Builder
	b.WriteString("- [ ] ")
	b.WriteString(it.Priority.Emoji())
	b.WriteString(it.Task)
	if it.Context != "" {
		b.WriteString(" _" + it.Context + "_")
	}
	b.WriteString(" *[[" + it.Source + "|Source]]* \n")
	return b.String()
}

// FormatLines renders items in order.
func FormatLines(items []models.TodoItem) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(FormatLine(it))
	}
	return b.String()
}

func defaultHeader(project string) string {
	return fmt.Sprintf("---\ntags: [todo, project/%s]\n---\n\n# %s Todo List\n\n", project, project)
}

// header keeps a hand-written title when the list starts with one.
func header(content, project string) string {
	if !strings.HasPrefix(content, "# ") {
		return defaultHeader(project)
	}
	m := headerRe.FindStringSubmatch(content)
	if m == nil {
		return defaultHeader(project)
	}
	return m[1] + m[2] + "\n"
}
