package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/knoguchi/rag/internal/llm"
)

func TestEvaluate_SynthesizesGroundTruthWhenMissing(t *testing.T) {
	instruct := &countingLLM{Fake: llm.Fake{Response: "A: Paris is the capital of France."}}
	reward := &llm.Fake{Response: "helpfulness:0.9,correctness:0.8"}
	e := New(instruct, reward, "instruct-model", "reward-model")

	llmScore, retrieverScore, err := e.Evaluate(context.Background(), "France's capital is Paris.", "what is the capital of france?", "Paris", "")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if instruct.calls != 1 {
		t.Errorf("expected one ground-truth synthesis call, got %d", instruct.calls)
	}
	if llmScore != "helpfulness:0.9,correctness:0.8" {
		t.Errorf("unexpected llmScore: %q", llmScore)
	}
	if retrieverScore != "helpfulness:0.9,correctness:0.8" {
		t.Errorf("unexpected retrieverScore: %q", retrieverScore)
	}
}

func TestEvaluate_SkipsOnRewardFailure(t *testing.T) {
	instruct := &llm.Fake{}
	reward := &llm.Fake{Err: errTest}
	e := New(instruct, reward, "instruct-model", "reward-model")

	llmScore, retrieverScore, err := e.Evaluate(context.Background(), "context", "question", "answer", "ground truth")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if llmScore != skippedScore || retrieverScore != skippedScore {
		t.Errorf("expected both scores skipped, got %q / %q", llmScore, retrieverScore)
	}
}

func TestCleanAndTruncate_RespectsTokenLimit(t *testing.T) {
	text := strings.Repeat("w ", 2000)
	got := cleanAndTruncate(text, 1400)
	if n := len(strings.Fields(got)); n != 1400 {
		t.Errorf("expected 1400 tokens, got %d", n)
	}
}

func TestParseScores_ParsesKeyValuePairs(t *testing.T) {
	scores := ParseScores("helpfulness:0.5,correctness:1.0")
	if scores["helpfulness"] != 0.5 || scores["correctness"] != 1.0 {
		t.Errorf("unexpected parse result: %v", scores)
	}
}

func TestParseScores_SkippedSentinelIsEmpty(t *testing.T) {
	scores := ParseScores(skippedScore)
	if len(scores) != 0 {
		t.Errorf("expected empty map for skipped sentinel, got %v", scores)
	}
}

var errTest = errors.New("boom")

// countingLLM wraps llm.Fake and counts Complete calls.
type countingLLM struct {
	llm.Fake
	calls int
}

func (c *countingLLM) Complete(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	c.calls++
	return c.Fake.Complete(ctx, prompt, opts)
}
