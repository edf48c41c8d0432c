// Package evaluator scores a generated answer and its retrieved context
// against a ground truth, synthesizing the ground truth first when the
// caller doesn't supply one. Both scores come from reward-model calls that
// return a raw "metric:value,..." string, grounded in
// original_source/app/services/evaluation_service.py.
package evaluator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/knoguchi/rag/internal/llm"
)

const (
	maxContextTokens = 1400
	skippedScore     = "Skipped - Missing Data"
)

// Evaluator pairs an instruct-capable LLMProvider (ground-truth synthesis)
// with an OpenAI-compatible reward client (the two scoring calls).
type Evaluator struct {
	instructLLM   llm.LLMProvider
	rewardLLM     llm.RewardScorer
	instructModel string
	rewardModel   string
}

// New builds an Evaluator. instructModel/rewardModel select which model
// each backend is asked to run.
func New(instructLLM llm.LLMProvider, rewardLLM llm.RewardScorer, instructModel, rewardModel string) *Evaluator {
	return &Evaluator{
		instructLLM:   instructLLM,
		rewardLLM:     rewardLLM,
		instructModel: instructModel,
		rewardModel:   rewardModel,
	}
}

// Evaluate scores answer against retrievedContext/groundTruth, synthesizing
// groundTruth first if empty. Either reward call failing degrades that
// score to "Skipped - Missing Data" rather than aborting the row.
func (e *Evaluator) Evaluate(ctx context.Context, retrievedContext, question, answer, groundTruth string) (llmScore, retrieverScore string, err error) {
	if strings.TrimSpace(groundTruth) == "" {
		gt, genErr := e.instructLLM.Complete(ctx, groundTruthPrompt(question), llm.GenerateOptions{
			Model:       e.instructModel,
			Temperature: 0.4,
			MaxTokens:   1400,
		})
		if genErr != nil {
			return skippedScore, skippedScore, nil
		}
		groundTruth = gt
	}

	cleaned := cleanAndTruncate(retrievedContext, maxContextTokens)

	llmScore = e.scoreOrSkip(ctx, []llm.ChatTurn{
		{Role: "user", Content: llmEvalPrompt(question, cleaned, groundTruth)},
		{Role: "assistant", Content: answer},
	})
	retrieverScore = e.scoreOrSkip(ctx, []llm.ChatTurn{
		{Role: "user", Content: retrieverEvalPrompt(question, groundTruth)},
		{Role: "assistant", Content: cleaned},
	})
	return llmScore, retrieverScore, nil
}

func (e *Evaluator) scoreOrSkip(ctx context.Context, turns []llm.ChatTurn) string {
	resp, err := e.rewardLLM.Score(ctx, turns, e.rewardModel)
	if err != nil {
		return skippedScore
	}
	return resp
}

// cleanAndTruncate collapses whitespace and truncates to maxTokens
// whitespace-separated tokens.
func cleanAndTruncate(text string, maxTokens int) string {
	fields := strings.Fields(text)
	if len(fields) <= maxTokens {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:maxTokens], " ")
}

func groundTruthPrompt(query string) string {
	return fmt.Sprintf(`You are an AI assistant for generating ground truth based on the user query and your knowledge.
Please ground truths clearly labeled as follows:
    - Ground truths (answers) prefixed with "A:"

Query: %s`, query)
}

func llmEvalPrompt(question, context, groundTruth string) string {
	return fmt.Sprintf(`user_query: %s Based on the below context answer the user's query
context: %s
Expected Answer: %s`, question, context, groundTruth)
}

func retrieverEvalPrompt(question, groundTruth string) string {
	return fmt.Sprintf(`Question: %s
Expected Answer: %s`, question, groundTruth)
}

// ParseScores parses a raw "metric:value,metric:value" reward-model
// response into a lookup, skipping malformed pairs. A skipped-score
// sentinel parses to an empty map, so callers fall back to zero values.
// Values are taken as-is: the reward model's assumed [0,4] range is not
// checked.
func ParseScores(raw string) map[string]float64 {
	scores := make(map[string]float64)
	if raw == "" || raw == skippedScore {
		return scores
	}
	for _, item := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(item), ":", 2)
		if len(kv) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			continue
		}
		scores[strings.TrimSpace(kv[0])] = v
	}
	return scores
}
