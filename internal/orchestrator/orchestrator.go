// Package orchestrator implements RAGOrchestrator: dispatch to one of the
// four retrieval strategies, complete an answer against the reranked
// context, and run the offline batch evaluator.
package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/knoguchi/rag/internal/llm"
	"github.com/knoguchi/rag/internal/ragerr"
	"github.com/knoguchi/rag/internal/ratelimit"
	"github.com/knoguchi/rag/internal/retriever"
	"github.com/knoguchi/rag/internal/vectorstore"
)

// Request is one query against a brain, optionally restricted to a set of
// previously ingested PDFs.
type Request struct {
	Query        string
	SelectedPDFs []uuid.UUID
}

// Answer is what every strategy returns: the generated response plus the
// context it was grounded in.
type Answer struct {
	Response         string
	RetrievedContext string
}

// RAGOrchestrator composes a Retriever with the answering LLM. The
// hybrid path runs every call through limiter, replacing the reference
// implementation's fixed 4-second cooldown with a token bucket.
type RAGOrchestrator struct {
	retriever *retriever.Retriever
	answerLLM llm.LLMProvider
	limiter   *ratelimit.Limiter
	model     string
}

// New builds a RAGOrchestrator. limiter may be nil to disable throttling.
func New(r *retriever.Retriever, answerLLM llm.LLMProvider, limiter *ratelimit.Limiter, model string) *RAGOrchestrator {
	return &RAGOrchestrator{retriever: r, answerLLM: answerLLM, limiter: limiter, model: model}
}

// AnswerDense retrieves with the dense strategy and completes an answer.
func (o *RAGOrchestrator) AnswerDense(ctx context.Context, brainID uuid.UUID, req Request) (Answer, error) {
	docs, err := o.retriever.Dense(ctx, brainID, req.Query, req.SelectedPDFs)
	if err != nil {
		return Answer{}, err
	}
	return o.complete(ctx, req.Query, docs)
}

// AnswerSparse retrieves with the sparse strategy and completes an answer.
func (o *RAGOrchestrator) AnswerSparse(ctx context.Context, brainID uuid.UUID, req Request) (Answer, error) {
	docs, err := o.retriever.Sparse(ctx, brainID, req.Query, req.SelectedPDFs)
	if err != nil {
		return Answer{}, err
	}
	return o.complete(ctx, req.Query, docs)
}

// AnswerHybrid retrieves with RRF-fused dense+sparse, waits on the rate
// limiter (the cooldown hack's replacement), then completes an answer.
func (o *RAGOrchestrator) AnswerHybrid(ctx context.Context, brainID uuid.UUID, req Request) (Answer, error) {
	docs, err := o.retriever.Hybrid(ctx, brainID, req.Query, req.SelectedPDFs)
	if err != nil {
		return Answer{}, err
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return Answer{}, ragerr.Wrap(ragerr.Transient, "rate limit wait", err)
		}
	}
	return o.complete(ctx, req.Query, docs)
}

// AnswerHyDE generates a hypothetical document, retrieves against its dense
// embedding, reranks against the original query, and completes an answer.
func (o *RAGOrchestrator) AnswerHyDE(ctx context.Context, brainID uuid.UUID, req Request) (Answer, error) {
	hyp, err := o.answerLLM.Complete(ctx, buildHyDEPrompt(req.Query), llm.GenerateOptions{Model: o.model})
	if err != nil {
		return Answer{}, ragerr.Wrap(ragerr.Transient, "generate hypothetical document", err)
	}
	docs, err := o.retriever.HyDE(ctx, brainID, req.Query, hyp, req.SelectedPDFs)
	if err != nil {
		return Answer{}, err
	}
	return o.complete(ctx, req.Query, docs)
}

func (o *RAGOrchestrator) complete(ctx context.Context, query string, docs []vectorstore.ScoredDoc) (Answer, error) {
	combined := retriever.CombinedContext(docs)
	resp, err := o.answerLLM.Complete(ctx, buildAnswerPrompt(query, combined), llm.GenerateOptions{Model: o.model})
	if err != nil {
		return Answer{}, ragerr.Wrap(ragerr.Transient, "generate answer", err)
	}
	return Answer{Response: resp, RetrievedContext: combined}, nil
}

// StrategyResult is one named strategy's outcome from AnswerAll: exactly
// one of Answer or Err is meaningful.
type StrategyResult struct {
	Answer Answer
	Err    error
}

// AnswerAll runs all four strategies concurrently and waits for every one
// to settle; an individual strategy's failure never cancels the others.
func (o *RAGOrchestrator) AnswerAll(ctx context.Context, brainID uuid.UUID, req Request) map[string]StrategyResult {
	strategies := map[string]func(context.Context, uuid.UUID, Request) (Answer, error){
		"hybrid": o.AnswerHybrid,
		"hyde":   o.AnswerHyDE,
		"dense":  o.AnswerDense,
		"sparse": o.AnswerSparse,
	}

	results := make(map[string]StrategyResult, len(strategies))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, fn := range strategies {
		wg.Add(1)
		go func(name string, fn func(context.Context, uuid.UUID, Request) (Answer, error)) {
			defer wg.Done()
			answer, err := fn(ctx, brainID, req)
			mu.Lock()
			results[name] = StrategyResult{Answer: answer, Err: err}
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()
	return results
}
