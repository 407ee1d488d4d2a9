// Package llm provides text completion clients for the research analysis features.
//
// Two providers are supported, both over plain HTTP: the Anthropic Messages API
// and the OpenAI Chat Completions API. Both implement Completer, which takes a
// system prompt and a single user prompt and returns the generated text.
//
// Example usage:
//
//	completer, err := llm.NewCompleter(llm.FactoryConfig{Provider: "anthropic", ...})
//	out, err := completer.Complete(ctx, llm.CompletionRequest{
//		System: "You are an expert rehabilitation research analyst.",
//		Prompt: "Summarize the following articles...",
//	})
package llm

import (
	"context"
)

// CompletionRequest contains the prompts for one completion.
type CompletionRequest struct {
	// Operation names the calling feature, used in logs and metrics.
	Operation string

	// System is the system prompt.
	System string

	// Prompt is the user message.
	Prompt string

	// MaxTokens overrides the provider's configured limit when positive.
	MaxTokens int
}

// Completion is the generated text and its metadata.
type Completion struct {
	// Text is the concatenated text content of the reply.
	Text string

	// Model is the model that produced the reply.
	Model string

	// StopReason is the provider's reason for ending generation.
	StopReason string

	// InputTokens is the number of input tokens used.
	InputTokens int

	// OutputTokens is the number of output tokens used.
	OutputTokens int
}

// Completer generates text from a prompt.
//
// Implementations retry transient failures (429, 5xx, network errors),
// respect context cancellation and return *APIError for provider errors.
type Completer interface {
	// Complete sends the request and returns the reply.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}
