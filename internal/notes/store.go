package notes

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

// Config controls transcript persistence next to daily notes.
type Config struct {
	SaveTranscript   bool
	TranscriptFolder string
}

// Store reads and writes the daily notes directory.
type Store struct {
	files storage.Provider
	cfg   Config
	now   func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source for timestamps and collision suffixes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns a Store over files, which must be rooted at the daily
// notes directory.
func NewStore(files storage.Provider, cfg Config, opts ...Option) *Store {
	if cfg.TranscriptFolder == "" {
		cfg.TranscriptFolder = "transcripts"
	}
	s := &Store{files: files, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Files exposes the underlying provider.
func (s *Store) Files() storage.Provider { return s.files }

// CreateDailyNote saves the transcript when enabled, renders the note and
// writes it as {date}_{project}.md, or {date}_{project}_{HHMMSS}.md when that
// name is taken. It returns the note's file name.
func (s *Store) CreateDailyNote(date string, fields models.NoteFields, transcript, audioFile string) (string, error) {
	now := s.now()
	if date == "" {
		date = now.Format(models.DateLayout)
	}
	note := models.DailyNote{
		Date:        date,
		Fields:      fields,
		AudioFile:   audioFile,
		GeneratedAt: now,
	}
	if s.cfg.SaveTranscript {
		rel, err := s.SaveTranscript(date, fields.Project, transcript)
		if err != nil {
			return "", err
		}
		note.TranscriptLink = TranscriptLink(rel)
	}
	return s.WriteDailyNote(note)
}

// WriteDailyNote renders and writes note without touching transcripts.
func (s *Store) WriteDailyNote(note models.DailyNote) (string, error) {
	if note.GeneratedAt.IsZero() {
		note.GeneratedAt = s.now()
	}
	name, err := s.uniqueName("", note.Date+"_"+note.Fields.Project)
	if err != nil {
		return "", err
	}
	if err := s.files.Write(name, []byte(RenderDailyNote(note))); err != nil {
		return "", fmt.Errorf("notes: write daily note: %w", err)
	}
	return name, nil
}

// SaveTranscript writes {folder}/{date}_{project}_transcript.md and returns
// its path relative to the daily notes directory.
func (s *Store) SaveTranscript(date, project, text string) (string, error) {
	rel, err := s.uniqueName(s.cfg.TranscriptFolder, date+"_"+project+"_transcript")
	if err != nil {
		return "", err
	}
	if err := s.files.Write(rel, []byte(RenderTranscript(date, project, text))); err != nil {
		return "", fmt.Errorf("notes: write transcript: %w", err)
	}
	return rel, nil
}

// WriteTodoExtract writes the transcript kept by todo-only processing.
func (s *Store) WriteTodoExtract(date, project, text string) (string, error) {
	rel, err := s.uniqueName(s.cfg.TranscriptFolder, date+"_TodoExtract_"+project)
	if err != nil {
		return "", err
	}
	if err := s.files.Write(rel, []byte(RenderTodoExtract(date, project, text))); err != nil {
		return "", fmt.Errorf("notes: write todo extract: %w", err)
	}
	return rel, nil
}

// uniqueName returns dir/base.md, or dir/base_HHMMSS.md when taken.
func (s *Store) uniqueName(dir, base string) (string, error) {
	name := path.Join(dir, base+".md")
	exists, err := s.files.Exists(name)
	if err != nil {
		return "", fmt.Errorf("notes: stat %s: %w", name, err)
	}
	if exists {
		name = path.Join(dir, base+"_"+s.now().Format("150405")+".md")
	}
	return name, nil
}

// ReadSections reads a daily note by file name. A missing file yields a
// placeholder summary so aggregation can continue.
func (s *Store) ReadSections(name string) (Sections, error) {
	date, _, _ := strings.Cut(strings.TrimSuffix(path.Base(name), ".md"), "_")
	data, err := s.files.Read(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Sections{Date: date, Summary: "Note file not found"}, nil
		}
		return Sections{}, err
	}
	return ParseSections(date, string(data)), nil
}

// ListDaily returns the Markdown file names directly inside the daily notes
// directory, sorted.
func (s *Store) ListDaily() ([]string, error) {
	entries, err := s.files.Entries("")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir && strings.HasSuffix(e.Name, ".md") {
			out = append(out, e.Name)
		}
	}
	return out, nil
}

// AvailableProjects lists project directories under the projects root,
// skipping hidden directories and the names in exclude.
func AvailableProjects(projects storage.Provider, exclude ...string) ([]string, error) {
	entries, err := projects.Entries("")
	if err != nil {
		return nil, fmt.Errorf("notes: list projects: %w", err)
	}
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir || strings.HasPrefix(e.Name, ".") || skip[e.Name] {
			continue
		}
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out, nil
}

var (
	dailyLogDateRe = regexp.MustCompile(`Daily_Log_(\d{2})-(\d{2})-(\d{4})`)
	isoDateRe      = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	dmyDateRe      = regexp.MustCompile(`(\d{2})-(\d{2})-(\d{4})`)
)

// DateFromFilename extracts a YYYY-MM-DD date from a recording name. It
// tries Daily_Log_dd-mm-yyyy, then YYYY-MM-DD, then DD-MM-YYYY; the first
// pattern that matches decides, and an impossible date yields false.
func DateFromFilename(name string) (string, bool) {
	if m := dailyLogDateRe.FindStringSubmatch(name); m != nil {
		return validDate(m[3], m[2], m[1])
	}
	if m := isoDateRe.FindStringSubmatch(name); m != nil {
		return validDate(m[1], m[2], m[3])
	}
	if m := dmyDateRe.FindStringSubmatch(name); m != nil {
		return validDate(m[3], m[2], m[1])
	}
	return "", false
}

func validDate(year, month, day string) (string, bool) {
	s := year + "-" + month + "-" + day
	if _, err := time.Parse(models.DateLayout, s); err != nil {
		return "", false
	}
	return s, true
}
