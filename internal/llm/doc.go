// Package llm provides the chat-completion clients used by the worklog engines.
//
// This package is used by:
//   - Extraction: transcript to the six daily note fields
//   - Todo extraction: transcript to task objects
//   - Weekly aggregation: daily notes to a weekly narrative
//
// # Providers
//
// Client speaks the OpenAI-compatible chat completions API and serves the
// openai, deepseek and openrouter providers. AnthropicClient wraps llmkit's
// Anthropic Messages API. NewCompleter picks one from configuration.
//
// # Retry Behaviour
//
// Client retries on HTTP 408/429/5xx errors, network timeouts and empty
// content with exponential backoff (base 1s, max 10s). Retry-After is honoured.
// Context cancellation aborts retries immediately.
//
// # Errors
//
// Every failure is tagged with apperr.ErrGeneration. Callers degrade to fixed
// error records instead of failing the pipeline.
//
// # Debug Log
//
// DebugLog wraps any Completer and writes each prompt/response pair to a
// Markdown file when enabled.
package llm
