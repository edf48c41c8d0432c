package reranker

import (
	"context"

	"github.com/knoguchi/rag/internal/vectorstore"
)

// Fake returns docs unchanged, truncated to k, for tests that don't care
// about relevance ordering.
type Fake struct{}

func (Fake) Rerank(ctx context.Context, query string, docs []vectorstore.ScoredDoc, k int) ([]vectorstore.ScoredDoc, error) {
	if k <= 0 {
		k = DefaultK
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

var _ RerankerProvider = Fake{}
