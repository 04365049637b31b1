// Package todo extracts action items from transcripts and maintains each
// project's todo.md list.
package todo

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/starford/worklog/internal/llm"
	"github.com/starford/worklog/internal/models"
)

// ExtractorConfig holds the request settings for todo extraction calls.
type ExtractorConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// Provider is only used to label debug log files.
	Provider string
}

// Extractor asks the model for the todo items in a transcript.
type Extractor struct {
	llm    llm.Completer
	cfg    ExtractorConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewExtractor returns an Extractor. A nil logger uses slog.Default.
func NewExtractor(c llm.Completer, cfg ExtractorConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{llm: c, cfg: cfg, logger: logger, now: time.Now}
}

const systemPrompt = `You are a task extraction assistant. Your job is to identify tasks, to-dos, and action items
from audio transcript notes. Look for phrases like:
- "things to do tomorrow"
- "next steps"
- "I need to"
- "tomorrow I should focus on"
- "thing to add to the todo list"
- "don't forget to"
- "must remember to"
- "action items"
- "this is important"
- "high priority task"
- "urgent"

Extract ONLY clear, actionable items. If the task is vague, try to make it more specific based on context.
Do not extract general comments, observations, or things already completed.

For task priority:
1. FIRST check for explicit mentions of priority like "high priority", "urgent", "important", "critical", etc.
2. ONLY if no explicit priority is mentioned, derive it from context based on significance
3. Default to "medium" priority if uncertain

Priority levels:
- high: Explicitly mentioned as "urgent", "high priority", "critical", "important", "ASAP", etc.
- medium: Default priority if not specified
- low: Explicitly mentioned as "low priority", "whenever you have time", "nice to have", etc.

Format your response as a JSON array of task objects, where each object has:
- "task": The task description text (should be clear and actionable)
- "priority": Estimated priority (high, medium, low) based on explicit mentions first, context second
- "context": Brief context about the task (if available)

If no tasks are mentioned, return an empty array.`

// SystemPrompt returns the todo extraction instructions.
func SystemPrompt() string { return systemPrompt }

// UserPrompt wraps a transcript for todo extraction.
func UserPrompt(transcript, project string) string {
	return fmt.Sprintf(`Project: %s

Please extract any tasks, to-dos, or action items from this transcript:

%s

Be especially attentive to phrases indicating future actions or tasks.
Look for explicit mentions of priority like "high priority", "urgent", etc. before making priority judgments.

Your response must be a JSON array of task objects, where each object has "task", "priority", and "context" fields.
The response should be a direct array, NOT an object containing a "tasks" array.
For example: [ {"task": "...", "priority": "...", "context": "..."}, {...} ]

If no tasks are found, return an empty array: []`, project, transcript)
}

// ExtractTodos returns the action items found in transcript. A failed call
// yields no items.
func (x *Extractor) ExtractTodos(ctx context.Context, transcript, project string) []models.TodoItem {
	ref := x.now().Format(models.DateLayout) + "_" + project + "_todos"
	if x.cfg.Provider != "" {
		ref += "_" + x.cfg.Provider
	}
	raw, err := x.llm.Complete(ctx, llm.Request{
		System:      SystemPrompt(),
		User:        UserPrompt(transcript, project),
		Model:       x.cfg.Model,
		Temperature: x.cfg.Temperature,
		MaxTokens:   x.cfg.MaxTokens,
		JSON:        true,
		Source:      "todo",
		Reference:   ref,
	})
	if err != nil {
		x.logger.Warn("todo: extraction failed",
			slog.String("project", project),
			slog.String("error", err.Error()))
		return nil
	}

	items, err := ParseResponse(raw)
	if err != nil {
		x.logger.Warn("todo: response is not JSON, using fallback parser",
			slog.String("project", project),
			slog.String("error", err.Error()))
		return ParseFallback(raw)
	}
	return items
}

// ParseResponse decodes a todo response. It accepts a bare array, an object
// wrapping an array, or a single task object. Plain string elements become
// medium-priority tasks.
func ParseResponse(raw string) ([]models.TodoItem, error) {
	var decoded any
	if err := llm.DecodeJSON(raw, &decoded); err != nil {
		return nil, err
	}
	var list []any
	switch v := decoded.(type) {
	case []any:
		list = v
	case map[string]any:
		if _, ok := v["task"]; ok {
			list = []any{v}
			break
		}
		list = wrappedList(v)
	}

	var out []models.TodoItem
	for _, el := range list {
		var item models.TodoItem
		switch e := el.(type) {
		case string:
			item = models.TodoItem{Task: e, Priority: models.PriorityMedium}
		case map[string]any:
			item = models.TodoItem{
				Task:     asString(e["task"]),
				Priority: models.ParsePriority(asString(e["priority"])),
				Context:  asString(e["context"]),
			}
		default:
			continue
		}
		item.Task = strings.TrimSpace(item.Task)
		item.Context = strings.TrimSpace(item.Context)
		if item.Task == "" {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// wrappedKeys are tried before the remaining keys of a wrapping object.
var wrappedKeys = []string{"tasks", "todos"}

// wrappedList returns the first array value of obj: "tasks", then "todos",
// then the other keys in sorted order.
func wrappedList(obj map[string]any) []any {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range append(append([]string(nil), wrappedKeys...), keys...) {
		if arr, ok := obj[k].([]any); ok {
			return arr
		}
	}
	return nil
}

var (
	fallbackTaskRe     = regexp.MustCompile(`"task"\s*:\s*"([^"]+)"`)
	fallbackPriorityRe = regexp.MustCompile(`"priority"\s*:\s*"([^"]+)"`)
	fallbackContextRe  = regexp.MustCompile(`"context"\s*:\s*"([^"]+)"`)
)

// ParseFallback recovers tasks from malformed JSON by scanning the task,
// priority and context fields independently and zipping them by position.
func ParseFallback(raw string) []models.TodoItem {
	tasks := fallbackTaskRe.FindAllStringSubmatch(raw, -1)
	priorities := fallbackPriorityRe.FindAllStringSubmatch(raw, -1)
	contexts := fallbackContextRe.FindAllStringSubmatch(raw, -1)

	out := make([]models.TodoItem, 0, len(tasks))
	for i, m := range tasks {
		item := models.TodoItem{Task: strings.TrimSpace(m[1]), Priority: models.PriorityMedium}
		if i < len(priorities) {
			item.Priority = models.ParsePriority(priorities[i][1])
		}
		if i < len(contexts) {
			item.Context = contexts[i][1]
		}
		if item.Task == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
