package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/knoguchi/rag/internal/ragerr"
)

// OpenAIClient implements LLMProvider against any OpenAI-compatible chat
// completions endpoint. It backs both the RewardLLM and InstructLLM the
// evaluator calls, pointed by default at NVIDIA's integrate.api.nvidia.com.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client against baseURL with apiKey, defaulting
// to model for calls that don't override GenerateOptions.Model.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete issues a single-user-message chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", ragerr.Wrap(ragerr.Transient, "openai-compatible chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", ragerr.New(ragerr.Transient, "openai-compatible endpoint returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// ChatTurn is one turn in a user/assistant conversation, used for the
// reward-model calls that score an existing question/answer pair rather
// than generate new text.
type ChatTurn struct {
	Role    string // openai.ChatMessageRoleUser or openai.ChatMessageRoleAssistant
	Content string
}

// Score sends a fixed user/assistant conversation to a reward model and
// returns its raw response content (the `helpfulness:X,correctness:X,...`
// string the model emits), grounded in the corpus's nemotron-reward calls.
func (c *OpenAIClient) Score(ctx context.Context, turns []ChatTurn, model string) (string, error) {
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, len(turns))
	for i, t := range turns {
		messages[i] = openai.ChatCompletionMessage{Role: t.Role, Content: t.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", ragerr.Wrap(ragerr.Transient, "reward model call failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", ragerr.New(ragerr.Transient, "reward model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// RewardScorer is the capability interface the evaluator depends on for its
// two reward-model calls. OpenAIClient is the real implementation; tests
// use Fake.
type RewardScorer interface {
	Score(ctx context.Context, turns []ChatTurn, model string) (string, error)
}

var (
	_ LLMProvider  = (*OpenAIClient)(nil)
	_ RewardScorer = (*OpenAIClient)(nil)
)
