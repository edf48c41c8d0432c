// Package llm provides interfaces and implementations for Large Language
// Model clients: a low-latency local Ollama backend for answers and HyDE
// hypothetical documents, and an OpenAI-compatible backend for the
// instruct/reward models the evaluator calls.
package llm

import "context"

// GenerateOptions configures an LLM completion request.
type GenerateOptions struct {
	// Model overrides the client's default model for this call.
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness in generation (0.0 = deterministic, 1.0 = creative).
	Temperature float32

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int
}

// LLMProvider is the capability interface every orchestrator/evaluator
// component depends on. AnswerLLM and RewardLLM are both LLMProviders, one
// Ollama-backed, one OpenAI-compatible; the caller is agnostic to which.
type LLMProvider interface {
	// Complete sends a prompt to the LLM and returns the full response.
	Complete(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
