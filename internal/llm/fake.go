package llm

import (
	"context"
	"fmt"
)

// Fake is a deterministic, network-free LLMProvider for tests.
type Fake struct {
	// Response, if set, is returned verbatim for every call.
	Response string
	// Err, if set, is returned for every call.
	Err error
}

func (f *Fake) Complete(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.Response != "" {
		return f.Response, nil
	}
	return fmt.Sprintf("answer to: %s", prompt), nil
}

// Score implements RewardScorer so Fake can stand in for the reward-model
// backend in evaluator tests too.
func (f *Fake) Score(ctx context.Context, turns []ChatTurn, model string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.Response != "" {
		return f.Response, nil
	}
	return "helpfulness:1,correctness:1,coherence:1,complexity:1,verbosity:1", nil
}

var (
	_ LLMProvider  = (*Fake)(nil)
	_ RewardScorer = (*Fake)(nil)
)
