package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aktagon/llmkit/anthropic/types"

	"github.com/starford/worklog/internal/apperr"
)

type memFiles map[string]string

func (m memFiles) Write(path string, content []byte) error {
	m[path] = string(content)
	return nil
}

func TestDebugLogWritesConversation(t *testing.T) {
	files := memFiles{}
	next := CompleterFunc(func(context.Context, Request) (string, error) {
		return `{"task":"x"}`, nil
	})
	at := time.Date(2024, 1, 2, 18, 30, 5, 0, time.UTC)
	d := NewDebugLog(next, files, "debug", "gpt-4.1-mini", WithClock(func() time.Time { return at }))

	out, err := d.Complete(context.Background(), Request{
		System:      "abcd",
		User:        "efgh",
		Temperature: 0.3,
		JSON:        true,
		Source:      "todo",
		Reference:   "2024-01-02_Saliency_todos",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"task":"x"}` {
		t.Errorf("out = %q", out)
	}

	doc, ok := files["debug/20240102_183005_todo_2024-01-02_Saliency_todos.md"]
	if !ok {
		t.Fatalf("debug file not written, have %v", files)
	}
	for _, want := range []string{
		"type: todo\n",
		"date: 2024-01-02 18:30:05\n",
		"model: gpt-4.1-mini\n",
		"temperature: 0.3\n",
		"prompt_tokens_approx: 2\n",
		"reference: 2024-01-02_Saliency_todos\n",
		"# LLM Conversation Debug: todo",
		"### 1. SYSTEM\n\n```\nabcd\n```",
		"### 2. USER\n\n```\nefgh\n```",
		"✅ JSON successfully parsed",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("debug doc missing %q\n%s", want, doc)
		}
	}
}

func TestDebugLogReportsInvalidJSON(t *testing.T) {
	doc := RenderDebug(Request{User: "u", JSON: true, Source: "daily_note"}, `{"project": Saliency}`, "m", time.Now())
	if !strings.Contains(doc, "❌ JSON parsing failed") || !strings.Contains(doc, "^ ERROR HERE") {
		t.Errorf("missing parse failure report:\n%s", doc)
	}
}

func TestDebugLogSkipsFailedCalls(t *testing.T) {
	files := memFiles{}
	next := CompleterFunc(func(context.Context, Request) (string, error) {
		return "", apperr.Wrap(apperr.ErrGeneration, "test", errors.New("boom"))
	})
	d := NewDebugLog(next, files, "debug", "m")
	if _, err := d.Complete(context.Background(), Request{User: "u"}); !errors.Is(err, apperr.ErrGeneration) {
		t.Fatalf("err = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v, want none", files)
	}
}

func TestAnthropicClientComplete(t *testing.T) {
	c := NewAnthropicClient("key", "claude-model", 1000)
	var gotSystem string
	var gotSettings types.RequestSettings
	c.prompt = func(system, user, schema, apiKey string, settings types.RequestSettings) (string, error) {
		gotSystem = system
		gotSettings = settings
		return `{"ok":true}`, nil
	}

	out, err := c.Complete(context.Background(), Request{System: "sys", User: "u", JSON: true, Temperature: 0.3})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("out = %q", out)
	}
	if !strings.Contains(gotSystem, jsonInstruction) {
		t.Errorf("system prompt = %q, want JSON instruction", gotSystem)
	}
	if gotSettings.Model != "claude-model" || gotSettings.MaxTokens != 1000 {
		t.Errorf("settings = %+v", gotSettings)
	}
}

func TestAnthropicClientError(t *testing.T) {
	c := NewAnthropicClient("key", "m", 10)
	c.prompt = func(string, string, string, string, types.RequestSettings) (string, error) {
		return "", errors.New("overloaded")
	}
	if _, err := c.Complete(context.Background(), Request{User: "u"}); !errors.Is(err, apperr.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
}
