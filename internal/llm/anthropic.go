package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"github.com/starford/worklog/internal/apperr"
)

const jsonInstruction = "Respond with a single JSON value only. Do not wrap it in code fences or add commentary."

type promptFunc func(system, user, schema, apiKey string, settings types.RequestSettings) (string, error)

// AnthropicClient sends requests through llmkit's Anthropic Messages API.
type AnthropicClient struct {
	apiKey    string
	model     string
	maxTokens int
	prompt    promptFunc
}

// NewAnthropicClient returns a client for the given key and default model.
func NewAnthropicClient(apiKey, model string, maxTokens int) *AnthropicClient {
	return &AnthropicClient{
		apiKey:    strings.TrimSpace(apiKey),
		model:     strings.TrimSpace(model),
		maxTokens: maxTokens,
		prompt:    llmkitPrompt,
	}
}

func llmkitPrompt(system, user, schema, apiKey string, settings types.RequestSettings) (string, error) {
	response, err := anthropic.PromptWithSettings(system, user, schema, apiKey, settings)
	if err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", errors.New("no content in response")
	}
	return response.Content[0].Text, nil
}

// Complete implements Completer. llmkit calls are not cancellable, so ctx
// only bounds how long the caller waits.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	const op = "anthropic complete"
	if c.apiKey == "" {
		return "", apperr.Wrap(apperr.ErrGeneration, op, errors.New("api key required"))
	}
	if strings.TrimSpace(req.User) == "" {
		return "", apperr.Wrap(apperr.ErrGeneration, op, errors.New("user prompt required"))
	}

	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	settings := types.RequestSettings{
		Model:       firstNonEmpty(req.Model, c.model),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.prompt(system, req.User, "", c.apiKey, settings)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", apperr.Wrap(apperr.ErrGeneration, op, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", apperr.Wrap(apperr.ErrGeneration, op, r.err)
		}
		if strings.TrimSpace(r.text) == "" {
			return "", apperr.Wrap(apperr.ErrGeneration, op, errors.New("empty content"))
		}
		return r.text, nil
	}
}
