// Package reranker provides re-ranking capabilities for RAG retrieval results.
//
// Re-ranking uses cross-encoder scoring to improve retrieval precision by
// evaluating query-document pairs together rather than independently.
//
// # Trade-offs
//
//   - Latency: Adds 1-3 seconds per query (one extra LLM call grading all results)
//   - Quality: Significantly better relevance when top-k vector results have similar scores
//   - Cost: Roughly doubles LLM token usage per query
//
// Every retrieval strategy applies reranking by default; k defaults to 4
// when the caller doesn't specify one.
package reranker

import (
	"context"

	"github.com/knoguchi/rag/internal/vectorstore"
)

// DefaultK is the rerank result count used when a caller doesn't specify one.
const DefaultK = 4

// RerankerProvider is the capability interface every retrieval strategy
// depends on. The real implementation scores with a cross-encoder LLM call;
// tests use Fake.
type RerankerProvider interface {
	// Rerank takes a query and scored docs, and returns the top k re-ordered
	// by relevance with updated scores, stable on ties.
	Rerank(ctx context.Context, query string, docs []vectorstore.ScoredDoc, k int) ([]vectorstore.ScoredDoc, error)
}
