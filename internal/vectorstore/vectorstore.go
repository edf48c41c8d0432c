// Package vectorstore defines the thin, typed contract over the remote
// vector database (VectorStoreClient, spec §4.4) and the data types that
// flow through it: Points, sparse vectors, filters, and fused queries.
package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// SparseVector is a term-id/weight pair list for lexical similarity.
// Indices are ascending with matching-length Values and no duplicates.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// ChunkMetadata is attached to every Point's payload.
type ChunkMetadata struct {
	PDFID    uuid.UUID
	FileName string
	BrainID  uuid.UUID
	PageNo   int
}

// Point is the physical index entry: a UUID, named dense+sparse vectors,
// and a payload of content + metadata. Written once at ingestion time,
// read-only thereafter.
type Point struct {
	ID       uuid.UUID
	Dense    []float32
	Sparse   SparseVector
	Content  string
	Metadata ChunkMetadata
}

// ScoredDoc is a Point plus a retrieval score, as returned from a query.
type ScoredDoc struct {
	Point
	Score float32
}

// FusionSpec describes a hybrid query: a dense prefetch and a sparse
// prefetch, RRF-fused by the store.
type FusionSpec struct {
	DensePrefetch  []float32
	SparsePrefetch SparseVector
	PrefetchLimit  int
}

// QuerySpec is a tagged union: exactly one of Dense, Sparse, or Fusion is set.
type QuerySpec struct {
	Dense  []float32
	Sparse *SparseVector
	Fusion *FusionSpec
}

// DenseQuery builds a QuerySpec for a dense-only search.
func DenseQuery(vec []float32) QuerySpec { return QuerySpec{Dense: vec} }

// SparseQuery builds a QuerySpec for a sparse-only search.
func SparseQuery(v SparseVector) QuerySpec { return QuerySpec{Sparse: &v} }

// HybridQuery builds a QuerySpec for an RRF-fused hybrid search.
func HybridQuery(dense []float32, sparse SparseVector, prefetchLimit int) QuerySpec {
	return QuerySpec{Fusion: &FusionSpec{
		DensePrefetch:  dense,
		SparsePrefetch: sparse,
		PrefetchLimit:  prefetchLimit,
	}}
}

// Filter is a conjunction of field-match conditions. Only pdf_id filtering
// is required by the spec, but the shape generalizes to any payload key.
type Filter struct {
	Must []FieldMatch
}

// FieldMatch matches payload[Key] == Value, or payload[Key] ∈ Values when
// Values is non-empty (an "is one of" match, used for pdf_id ∈ selected set).
type FieldMatch struct {
	Key    string
	Value  string
	Values []string
}

// PDFIDFilter builds the conjunction spec §4.8 requires: restrict hits to
// pdf_id ∈ ids. An empty or nil ids slice returns a nil Filter, meaning
// "no filter".
func PDFIDFilter(ids []uuid.UUID) *Filter {
	if len(ids) == 0 {
		return nil
	}
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	return &Filter{Must: []FieldMatch{{Key: "metadata.pdf_id", Values: values}}}
}

// VectorStoreClient is the capability interface every component depends on.
// The real implementation is Client (Qdrant); tests use the in-memory Fake.
type VectorStoreClient interface {
	CreateCollection(ctx context.Context, name string, denseDim int) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateAlias(ctx context.Context, collection, alias string) error
	ListAliases(ctx context.Context) (map[string]string, error) // alias -> collection
	Upsert(ctx context.Context, collection string, points []Point) error
	QueryPoints(ctx context.Context, collection string, spec QuerySpec, filter *Filter, limit int) ([]ScoredDoc, error)
	Scroll(ctx context.Context, collection string, filter *Filter, limit int) ([]Point, error)
	Count(ctx context.Context, collection string, filter *Filter) (int, error)
}
