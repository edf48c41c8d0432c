// Package retriever implements the four retrieval strategies the
// orchestrator dispatches to: dense, sparse, hybrid (RRF-fused), and HyDE.
// Each strategy queries a single brain's collection, optionally restricted
// to a set of pdf_ids, and reranks the candidates with a cross-encoder
// before returning them to the caller.
package retriever

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/knoguchi/rag/internal/embedder"
	"github.com/knoguchi/rag/internal/ragerr"
	"github.com/knoguchi/rag/internal/reranker"
	"github.com/knoguchi/rag/internal/vectorstore"
)

// PrefetchLimit is the candidate-list size every strategy queries before
// reranking down to RerankTopK.
const PrefetchLimit = 20

// RerankTopK is the number of documents the orchestrator builds context from.
const RerankTopK = reranker.DefaultK

// Retriever runs dense/sparse/hybrid/HyDE search against a brain's
// collection, composing an EmbeddingProvider, a VectorStoreClient, and a
// RerankerProvider.
type Retriever struct {
	embedder embedder.EmbeddingProvider
	store    vectorstore.VectorStoreClient
	reranker reranker.RerankerProvider
}

// New builds a Retriever over the given providers.
func New(emb embedder.EmbeddingProvider, store vectorstore.VectorStoreClient, rr reranker.RerankerProvider) *Retriever {
	return &Retriever{embedder: emb, store: store, reranker: rr}
}

func brainCollection(brainID uuid.UUID) string {
	return "brain_" + brainID.String()
}

// Dense embeds the query and runs a dense-only search, reranked against the
// same query text.
func (r *Retriever) Dense(ctx context.Context, brainID uuid.UUID, query string, pdfIDs []uuid.UUID) ([]vectorstore.ScoredDoc, error) {
	vec, err := r.embedder.EmbedDense(ctx, query)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Transient, "embed query", err)
	}
	return r.searchAndRerank(ctx, brainID, query, vectorstore.DenseQuery(vec), pdfIDs)
}

// Sparse runs a lexical-only search over the hashed sparse vector of query.
func (r *Retriever) Sparse(ctx context.Context, brainID uuid.UUID, query string, pdfIDs []uuid.UUID) ([]vectorstore.ScoredDoc, error) {
	sparse, err := r.embedder.EmbedSparse(ctx, query)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Transient, "embed query", err)
	}
	spec := vectorstore.SparseQuery(vectorstore.SparseVector{Indices: sparse.Indices, Values: sparse.Values})
	return r.searchAndRerank(ctx, brainID, query, spec, pdfIDs)
}

// Hybrid fuses a dense and a sparse prefetch with RRF before reranking.
func (r *Retriever) Hybrid(ctx context.Context, brainID uuid.UUID, query string, pdfIDs []uuid.UUID) ([]vectorstore.ScoredDoc, error) {
	dense, err := r.embedder.EmbedDense(ctx, query)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Transient, "embed query", err)
	}
	sparse, err := r.embedder.EmbedSparse(ctx, query)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Transient, "embed query", err)
	}
	spec := vectorstore.HybridQuery(dense, vectorstore.SparseVector{Indices: sparse.Indices, Values: sparse.Values}, PrefetchLimit)
	return r.searchAndRerank(ctx, brainID, query, spec, pdfIDs)
}

// HyDE runs a dense search using the embedding of a precomputed hypothetical
// document (generated upstream by an LLMProvider), but reranks the results
// against the original query, never the hypothetical text.
func (r *Retriever) HyDE(ctx context.Context, brainID uuid.UUID, query, hypothetical string, pdfIDs []uuid.UUID) ([]vectorstore.ScoredDoc, error) {
	vec, err := r.embedder.EmbedDense(ctx, hypothetical)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Transient, "embed hypothetical document", err)
	}
	return r.searchAndRerank(ctx, brainID, query, vectorstore.DenseQuery(vec), pdfIDs)
}

func (r *Retriever) searchAndRerank(ctx context.Context, brainID uuid.UUID, rerankQuery string, spec vectorstore.QuerySpec, pdfIDs []uuid.UUID) ([]vectorstore.ScoredDoc, error) {
	docs, err := r.store.QueryPoints(ctx, brainCollection(brainID), spec, vectorstore.PDFIDFilter(pdfIDs), PrefetchLimit)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Transient, "query vector store", err)
	}
	reranked, err := r.reranker.Rerank(ctx, rerankQuery, docs, RerankTopK)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Transient, "rerank candidates", err)
	}
	return reranked, nil
}

// CombinedContext joins the content of every reranked document with a
// single space, the exact separator the orchestrator's prompt expects.
func CombinedContext(docs []vectorstore.ScoredDoc) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, " ")
}
