// Package extract turns a work-log transcript into the six fixed fields of a
// daily note.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/worklog/internal/llm"
	"github.com/starford/worklog/internal/models"
)

// Result is the tagged outcome of one extraction.
type Result struct {
	Outcome models.Outcome
	Fields  models.NoteFields
	// Raw is the model response, empty when the call failed.
	Raw string
	// Reason explains a fallback or error outcome.
	Reason string
}

// Config holds the request settings for extraction calls.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Engine runs extraction against a Completer.
type Engine struct {
	llm    llm.Completer
	cfg    Config
	logger *slog.Logger
}

// NewEngine returns an Engine. A nil logger uses slog.Default.
func NewEngine(c llm.Completer, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{llm: c, cfg: cfg, logger: logger}
}

var fieldKeys = []string{"project", "summary", "completed", "blockers", "next_steps", "thoughts"}

var fallbackPlaceholders = map[string]string{
	"project":    models.UnknownProject,
	"summary":    "Could not parse summary",
	"completed":  "- Could not parse completed tasks",
	"blockers":   "- Could not parse blockers",
	"next_steps": "- Could not parse next steps",
	"thoughts":   "- Could not parse thoughts",
}

var fallbackPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(fieldKeys))
	for _, k := range fieldKeys {
		m[k] = regexp.MustCompile(`(?i)` + k + `["\s:]+([^"]+)`)
	}
	return m
}()

// Extract asks the model for the note fields. It never fails: malformed
// output degrades to pattern matching and a failed call to an error record
// that keeps the transcript for manual review.
func (e *Engine) Extract(ctx context.Context, transcript string, projects []string) Result {
	raw, err := e.llm.Complete(ctx, llm.Request{
		System:      SystemPrompt(projects),
		User:        UserPrompt(transcript, projects),
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		JSON:        true,
		Source:      "daily_note",
	})
	if err != nil {
		e.logger.Warn("extract: generation failed", slog.String("error", err.Error()))
		return Result{Outcome: models.OutcomeError, Fields: errorFields(transcript), Reason: err.Error()}
	}

	var parsed map[string]any
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		e.logger.Warn("extract: response is not JSON, using fallback parser", slog.String("error", err.Error()))
		return Result{Outcome: models.OutcomeFallback, Fields: parseFallback(raw), Raw: raw, Reason: err.Error()}
	}

	values := make(map[string]string, len(fieldKeys))
	var missing []string
	for _, k := range fieldKeys {
		v, ok := parsed[k]
		if !ok || v == nil {
			missing = append(missing, k)
			values[k] = fallbackPlaceholders[k]
			continue
		}
		values[k] = llm.MarkdownValue(v)
	}
	res := Result{Outcome: models.OutcomeOK, Fields: toFields(values), Raw: raw}
	if len(missing) > 0 {
		res.Outcome = models.OutcomeFallback
		res.Reason = "missing keys: " + strings.Join(missing, ", ")
		e.logger.Warn("extract: response is missing keys", slog.String("keys", strings.Join(missing, ",")))
	}
	return res
}

// SystemPrompt builds the extraction instructions for the given projects.
func SystemPrompt(projects []string) string {
	list := "No projects available"
	if len(projects) > 0 {
		list = strings.Join(projects, ", ")
	}
	return fmt.Sprintf(`You are a professional work journal assistant. Your task is to convert audio transcripts of daily work logs into structured, clear daily notes.

Given a transcript of someone describing their workday, extract and organize the information into these specific categories:

**Project**: Identify which project the person is working on from this list: [%s]
**Summary**: A max 150 words overview of the day's work
**Completed**: Specific tasks, features, or goals that were finished
**In Progress/Blockers**: Current work and any obstacles encountered
**Next Steps**: Plans for upcoming work
**Thoughts & Ideas**: Insights, learnings, or creative ideas mentioned

Guidelines:
- Use bullet points for lists
- Be specific and actionable
- If information for a section isn't mentioned, write "None mentioned"
- Maintain the speaker's tone but make it more structured and improve readability
- Extract concrete details like feature names, technologies, metrics when mentioned
- If the transcript is unclear, note this appropriately
- For project identification: Look for mentions like "Today I worked on X", "X project", etc. Use fuzzy matching if the transcription seems imprecise (e.g., "Palienci" might be "Saliency")
- If no clear project is mentioned or none match, use "Unknown"

Format your response as a JSON object with keys: project, summary, completed, blockers, next_steps, thoughts
Each key must contain a single string value with markdown formatting (bullet points using "- "). Never use nested arrays or objects.
If a section has no relevant content, use an empty string.`, list)
}

// UserPrompt wraps the transcript with the project list.
func UserPrompt(transcript string, projects []string) string {
	return fmt.Sprintf(`Available Projects: %s

Audio Transcript:
%s

Please analyze this transcript and extract the structured information as requested. Pay special attention to identifying which project is being discussed, even if the transcription might be slightly inaccurate.`,
		strings.Join(projects, ", "), transcript)
}

func parseFallback(content string) models.NoteFields {
	values := make(map[string]string, len(fieldKeys))
	for _, k := range fieldKeys {
		values[k] = fallbackPlaceholders[k]
		if m := fallbackPatterns[k].FindStringSubmatch(content); m != nil {
			values[k] = llm.FixBullets(strings.TrimSpace(m[1]))
		}
	}
	return toFields(values)
}

func errorFields(transcript string) models.NoteFields {
	return models.NoteFields{
		Project:   models.UnknownProject,
		Summary:   "Error processing transcript - manual review needed",
		Completed: "- See raw transcript below",
		Blockers:  "- Processing error occurred",
		NextSteps: "- Review and manually edit this note",
		Thoughts:  "Raw transcript:\n" + transcript,
	}
}

func toFields(v map[string]string) models.NoteFields {
	return models.NoteFields{
		Project:   CleanProject(v["project"]),
		Summary:   v["summary"],
		Completed: v["completed"],
		Blockers:  v["blockers"],
		NextSteps: v["next_steps"],
		Thoughts:  v["thoughts"],
	}
}

// CleanProject makes a model-supplied project name safe to embed in file
// names. Empty names become Unknown.
func CleanProject(p string) string {
	p = strings.TrimSpace(strings.NewReplacer("/", "-", "\\", "-", "\n", " ").Replace(p))
	if p == "" || strings.HasPrefix(p, ".") {
		return models.UnknownProject
	}
	return p
}
