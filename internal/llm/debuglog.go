package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

// FileWriter persists a file relative to some root.
type FileWriter interface {
	Write(path string, content []byte) error
}

// DebugLog wraps a Completer and records every successful exchange as a
// Markdown file under folder.
type DebugLog struct {
	next         Completer
	files        FileWriter
	folder       string
	defaultModel string
	logger       *slog.Logger
	now          func() time.Time
}

// DebugOption customizes a DebugLog.
type DebugOption func(*DebugLog)

// WithClock overrides the time source used for file names and timestamps.
func WithClock(now func() time.Time) DebugOption {
	return func(d *DebugLog) {
		if now != nil {
			d.now = now
		}
	}
}

// WithDebugLogger sets the logger used to report write failures.
func WithDebugLogger(logger *slog.Logger) DebugOption {
	return func(d *DebugLog) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDebugLog returns a Completer that delegates to next and writes each
// conversation to files under folder. defaultModel is recorded when a
// request leaves Model empty.
func NewDebugLog(next Completer, files FileWriter, folder, defaultModel string, opts ...DebugOption) *DebugLog {
	d := &DebugLog{
		next:         next,
		files:        files,
		folder:       folder,
		defaultModel: defaultModel,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Complete implements Completer.
func (d *DebugLog) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := d.next.Complete(ctx, req)
	if err != nil {
		return resp, err
	}
	name, werr := d.write(req, resp)
	if werr != nil {
		d.logger.Warn("llm: write debug log", slog.String("error", werr.Error()))
	} else {
		d.logger.Debug("llm: debug log written", slog.String("path", name))
	}
	return resp, nil
}

func (d *DebugLog) write(req Request, response string) (string, error) {
	now := d.now()
	source := req.Source
	if source == "" {
		source = "llm"
	}
	name := now.Format("20060102_150405") + "_" + source
	if req.Reference != "" {
		name += "_" + req.Reference
	}
	p := path.Join(d.folder, name+".md")
	return p, d.files.Write(p, []byte(RenderDebug(req, response, firstNonEmpty(req.Model, d.defaultModel), now)))
}

type debugMessage struct {
	role    string
	content string
}

// RenderDebug formats one exchange as a debug Markdown document.
func RenderDebug(req Request, response, model string, at time.Time) string {
	var msgs []debugMessage
	if req.System != "" {
		msgs = append(msgs, debugMessage{"system", req.System})
	}
	msgs = append(msgs, debugMessage{"user", req.User})

	contents := make([]string, len(msgs))
	for i, m := range msgs {
		contents[i] = m.content
	}
	promptTokens := utf8.RuneCountInString(strings.Join(contents, " ")) / 4
	responseTokens := utf8.RuneCountInString(response) / 4

	source := req.Source
	if source == "" {
		source = "llm"
	}

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "type: %s\n", source)
	fmt.Fprintf(&b, "date: %s\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "model: %s\n", model)
	fmt.Fprintf(&b, "temperature: %v\n", req.Temperature)
	fmt.Fprintf(&b, "prompt_tokens_approx: %d\n", promptTokens)
	fmt.Fprintf(&b, "response_tokens_approx: %d\n", responseTokens)
	fmt.Fprintf(&b, "total_tokens_approx: %d\n", promptTokens+responseTokens)
	if req.Reference != "" {
		fmt.Fprintf(&b, "reference: %s\n", req.Reference)
	}
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# LLM Conversation Debug: %s\n\n", source)
	b.WriteString("## Messages\n\n")
	for i, m := range msgs {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, strings.ToUpper(m.role))
		fmt.Fprintf(&b, "```\n%s\n```\n\n", m.content)
	}
	b.WriteString("## Response\n\n")
	fmt.Fprintf(&b, "```\n%s\n```\n\n", response)

	if req.JSON {
		b.WriteString("## JSON Parsing Check\n\n")
		writeJSONCheck(&b, response)
	}
	return b.String()
}

func writeJSONCheck(b *strings.Builder, response string) {
	var parsed any
	err := json.Unmarshal([]byte(response), &parsed)
	if err == nil {
		var pretty bytes.Buffer
		_ = json.Indent(&pretty, []byte(response), "", "  ")
		b.WriteString("✅ JSON successfully parsed\n\n")
		fmt.Fprintf(b, "```json\n%s\n```\n", pretty.String())
		return
	}

	fmt.Fprintf(b, "❌ JSON parsing failed: %v\n", err)
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return
	}
	pos := int(syntaxErr.Offset)
	start := max(0, pos-50)
	end := min(len(response), pos+50)
	b.WriteString("\nError position visualization:\n\n")
	fmt.Fprintf(b, "```\n%s\n%s^ ERROR HERE\n```\n", response[start:end], strings.Repeat(" ", pos-start))
}
