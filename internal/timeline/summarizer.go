// Package timeline rolls a project's daily notes up into ISO-week summaries
// and keeps the per-project timeline index current.
package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/worklog/internal/llm"
	"github.com/starford/worklog/internal/models"
	"github.com/starford/worklog/internal/notes"
)

// SummarizerConfig holds the request settings for weekly summary calls.
type SummarizerConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Summary is the tagged outcome of one weekly synthesis.
type Summary struct {
	Outcome models.Outcome
	Fields  models.WeeklyFields
	Reason  string
}

// Summarizer asks the model for a week's narrative.
type Summarizer struct {
	llm    llm.Completer
	cfg    SummarizerConfig
	logger *slog.Logger
}

// NewSummarizer returns a Summarizer. A nil logger uses slog.Default.
func NewSummarizer(c llm.Completer, cfg SummarizerConfig, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{llm: c, cfg: cfg, logger: logger}
}

var weeklyKeys = []string{"week_summary", "accomplishments", "insights", "blockers", "next_focus"}

var weeklyPlaceholders = map[string]string{
	"week_summary":    "Error parsing summary",
	"accomplishments": "- Error parsing accomplishments",
	"insights":        "- Error parsing insights",
	"blockers":        "- Error parsing blockers",
	"next_focus":      "Error parsing next focus",
}

var weeklyPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(weeklyKeys))
	for _, k := range weeklyKeys {
		m[k] = regexp.MustCompile(`(?i)` + k + `["\s:]+([^"]+)`)
	}
	return m
}()

const weeklySystemPrompt = `You are a professional project timeline assistant. Your task is to analyze a collection of daily work notes and create a comprehensive weekly summary.

Given a set of daily notes for a specific project spanning a week, create a cohesive weekly summary with these sections:

1. **Week Summary**: A concise overview of the week's work (max 200 words)
2. **Key Accomplishments**: The most significant achievements and completed tasks
3. **Insights & Thoughts**: Important insights, ideas, or learnings from the week
4. **Progress Indicators**: Ongoing work, blockers, and progress metrics
5. **Next Week Focus**: Priority areas for the upcoming week based on the notes

Guidelines:
- Identify patterns and themes across days
- Highlight progress on long-running tasks
- Note recurring blockers or challenges
- Prioritize significant accomplishments over minor ones
- Use bullet points for lists
- Be specific and actionable
- Maintain a professional tone

Format your response as a JSON object with keys: week_summary, accomplishments, insights, blockers, next_focus
Each key must contain a single string value with markdown formatting (bullet points using "- ").`

// SystemPrompt returns the weekly synthesis instructions.
func SystemPrompt() string { return weeklySystemPrompt }

// UserPrompt formats the week's daily notes for the model.
func UserPrompt(project string, week models.Week, days []notes.Sections) string {
	blocks := make([]string, 0, len(days))
	for _, d := range days {
		blocks = append(blocks, fmt.Sprintf("Date: %s\nSummary: %s\nCompleted: %s\nBlockers: %s\nNext Steps: %s\nThoughts: %s\n\n",
			d.Date, d.Summary, d.Completed, d.Blockers, d.NextSteps, d.Thoughts))
	}
	start, end := week.Range()
	return fmt.Sprintf("\nProject: %s\nWeek: %d-W%02d (%s to %s)\n\nDaily Notes:\n%s\n\nPlease analyze these daily notes and generate a weekly summary.\n",
		project, week.Year, week.Num, start.Format(models.DateLayout), end.Format(models.DateLayout),
		strings.Join(blocks, "\n---\n"))
}

// Summarize never fails: malformed output degrades to pattern matching and a
// failed call to placeholder fields.
func (s *Summarizer) Summarize(ctx context.Context, project string, week models.Week, days []notes.Sections) Summary {
	raw, err := s.llm.Complete(ctx, llm.Request{
		System:      SystemPrompt(),
		User:        UserPrompt(project, week, days),
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		JSON:        true,
		Source:      "weekly",
		Reference:   project + "_" + week.ID(),
	})
	if err != nil {
		s.logger.Warn("timeline: weekly summary failed",
			slog.String("project", project),
			slog.String("week", week.ID()),
			slog.String("error", err.Error()))
		return Summary{Outcome: models.OutcomeError, Fields: errorFields(), Reason: err.Error()}
	}

	var parsed map[string]any
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		s.logger.Warn("timeline: response is not JSON, using fallback parser",
			slog.String("week", week.ID()),
			slog.String("error", err.Error()))
		return Summary{Outcome: models.OutcomeFallback, Fields: parseFallback(raw), Reason: err.Error()}
	}

	values := make(map[string]string, len(weeklyKeys))
	var missing []string
	for _, k := range weeklyKeys {
		v, ok := parsed[k]
		if !ok || v == nil {
			missing = append(missing, k)
			values[k] = weeklyPlaceholders[k]
			continue
		}
		values[k] = llm.MarkdownValue(v)
	}
	out := Summary{Outcome: models.OutcomeOK, Fields: toFields(values)}
	if len(missing) > 0 {
		out.Outcome = models.OutcomeFallback
		out.Reason = "missing keys: " + strings.Join(missing, ", ")
	}
	return out
}

func parseFallback(content string) models.WeeklyFields {
	values := make(map[string]string, len(weeklyKeys))
	for _, k := range weeklyKeys {
		values[k] = weeklyPlaceholders[k]
		if m := weeklyPatterns[k].FindStringSubmatch(content); m != nil {
			values[k] = strings.TrimSpace(m[1])
		}
	}
	return toFields(values)
}

func errorFields() models.WeeklyFields {
	return models.WeeklyFields{
		WeekSummary:     "Error generating weekly summary",
		Accomplishments: "- Could not process daily notes",
		Insights:        "- Error occurred during processing",
		Blockers:        "- Please review daily notes manually",
		NextFocus:       "Manual review needed",
	}
}

func toFields(v map[string]string) models.WeeklyFields {
	return models.WeeklyFields{
		WeekSummary:     v["week_summary"],
		Accomplishments: v["accomplishments"],
		Insights:        v["insights"],
		Blockers:        v["blockers"],
		NextFocus:       v["next_focus"],
	}
}
