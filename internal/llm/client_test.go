package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/worklog/internal/apperr"
)

func contentResponse(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"content": content,
				},
			},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestClientCompleteJSONMode(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		contentResponse(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	out, err := client.Complete(context.Background(), Request{
		System:      "sys",
		User:        "hello",
		Temperature: 0.3,
		MaxTokens:   200,
		JSON:        true,
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("content = %q", out)
	}
	if got.Model != "demo-model" {
		t.Errorf("model = %q, want demo-model", got.Model)
	}
	if got.ResponseFormat["type"] != "json_object" {
		t.Errorf("response_format = %v", got.ResponseFormat)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hello" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.Temperature != 0.3 || got.MaxTokens != 200 {
		t.Errorf("temperature/max_tokens = %v/%d", got.Temperature, got.MaxTokens)
	}
}

func TestClientCompleteModelOverride(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		contentResponse(t, w, "text")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "default"})
	if _, err := client.Complete(context.Background(), Request{User: "u", Model: "gpt-4.1"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Model != "gpt-4.1" {
		t.Errorf("model = %q, want gpt-4.1", got.Model)
	}
	if got.ResponseFormat != nil {
		t.Errorf("response_format = %v, want omitted", got.ResponseFormat)
	}
}

func TestClientCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		contentResponse(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "m"},
		WithRetryMaxAttempts(3),
		WithRetryBackoff(time.Second, 10*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	if _, err := client.Complete(context.Background(), Request{User: "u"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("backoff = %v, want [1s 2s]", slept)
	}
}

func TestClientCompleteHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "4")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		contentResponse(t, w, "ok")
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	if _, err := client.Complete(context.Background(), Request{User: "u"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(slept) != 1 || slept[0] != 4*time.Second {
		t.Fatalf("slept = %v, want [4s]", slept)
	}
}

func TestClientCompleteRetriesEmptyContent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			contentResponse(t, w, "")
			return
		}
		contentResponse(t, w, "second")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(time.Duration) {}))
	out, err := client.Complete(context.Background(), Request{User: "u"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "second" {
		t.Errorf("content = %q, want second", out)
	}
}

func TestClientCompleteEmptyContentExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		contentResponse(t, w, "  ")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL},
		WithRetryMaxAttempts(2),
		WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), Request{User: "u"})
	if !errors.Is(err, apperr.ErrGeneration) || !errors.Is(err, errEmptyContent) {
		t.Fatalf("err = %v, want empty content generation error", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClientCompleteSendsTitle(t *testing.T) {
	var title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("X-Title")
		contentResponse(t, w, "ok")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Title: "worklog"})
	if _, err := client.Complete(context.Background(), Request{User: "u"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if title != "worklog" {
		t.Errorf("X-Title = %q", title)
	}
}

func TestClientCompleteAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL},
		WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), Request{User: "u"})
	if !errors.Is(err, apperr.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClientCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Complete(context.Background(), Request{User: "u"}); !errors.Is(err, apperr.ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Errorf("parseRetryAfter(3) = %v, %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Error("negative seconds should be rejected")
	}
	if _, ok := parseRetryAfter(""); ok {
		t.Error("empty header should be rejected")
	}
}

func TestNewCompleterProviders(t *testing.T) {
	c, err := NewCompleter(ProviderConfig{Provider: "deepseek", APIKey: "k", Model: "deepseek-chat"})
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}
	client, ok := c.(*Client)
	if !ok {
		t.Fatalf("deepseek completer = %T, want *Client", c)
	}
	if client.cfg.BaseURL != DeepSeekURL {
		t.Errorf("base url = %q, want %q", client.cfg.BaseURL, DeepSeekURL)
	}

	c, err = NewCompleter(ProviderConfig{Provider: "openai", APIKey: "k", BaseURL: "http://local/v1/chat/completions", RetryAttempts: 2})
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}
	if client := c.(*Client); client.cfg.BaseURL != "http://local/v1/chat/completions" || client.attempts != 2 {
		t.Errorf("openai client = %+v", client.cfg)
	}

	if c, _ := NewCompleter(ProviderConfig{Provider: "anthropic", APIKey: "k"}); c == nil {
		t.Error("anthropic completer is nil")
	} else if _, ok := c.(*AnthropicClient); !ok {
		t.Errorf("anthropic completer = %T", c)
	}

	if _, err := NewCompleter(ProviderConfig{Provider: "mystery"}); err == nil {
		t.Error("unknown provider should fail")
	}
}
