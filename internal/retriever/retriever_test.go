package retriever

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/knoguchi/rag/internal/embedder"
	"github.com/knoguchi/rag/internal/reranker"
	"github.com/knoguchi/rag/internal/vectorstore"
)

func seedBrain(t *testing.T, store *vectorstore.Fake, emb *embedder.Fake, brainID uuid.UUID, docs map[string]string) {
	t.Helper()
	collection := brainCollection(brainID)
	if err := store.CreateCollection(context.Background(), collection, emb.DenseDimension()); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	var points []vectorstore.Point
	for content, pdfID := range docs {
		dense, err := emb.EmbedDense(context.Background(), content)
		if err != nil {
			t.Fatalf("embed dense: %v", err)
		}
		sparse, err := emb.EmbedSparse(context.Background(), content)
		if err != nil {
			t.Fatalf("embed sparse: %v", err)
		}
		id, err := uuid.Parse(pdfID)
		if err != nil {
			t.Fatalf("parse pdf id: %v", err)
		}
		points = append(points, vectorstore.Point{
			ID:      uuid.New(),
			Dense:   dense,
			Sparse:  vectorstore.SparseVector{Indices: sparse.Indices, Values: sparse.Values},
			Content: content,
			Metadata: vectorstore.ChunkMetadata{
				PDFID:   id,
				BrainID: brainID,
			},
		})
	}
	if err := store.Upsert(context.Background(), collection, points); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestDense_ReturnsRerankedDocs(t *testing.T) {
	store := vectorstore.NewFake()
	emb := embedder.NewFake(8)
	rr := &reranker.Fake{}
	brainID := uuid.New()
	pdfA := uuid.New()

	seedBrain(t, store, emb, brainID, map[string]string{
		"paris is the capital of france": pdfA.String(),
		"tokyo is the capital of japan":  pdfA.String(),
	})

	r := New(emb, store, rr)
	docs, err := r.Dense(context.Background(), brainID, "capital of france", nil)
	if err != nil {
		t.Fatalf("Dense: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("expected at least one document")
	}
}

func TestHybrid_FiltersByPDFID(t *testing.T) {
	store := vectorstore.NewFake()
	emb := embedder.NewFake(8)
	rr := &reranker.Fake{}
	brainID := uuid.New()
	pdfA := uuid.New()
	pdfB := uuid.New()

	seedBrain(t, store, emb, brainID, map[string]string{
		"content from pdf a": pdfA.String(),
		"content from pdf b": pdfB.String(),
	})

	r := New(emb, store, rr)
	docs, err := r.Hybrid(context.Background(), brainID, "content", []uuid.UUID{pdfA})
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	for _, d := range docs {
		if d.Metadata.PDFID != pdfA {
			t.Errorf("expected only pdf %s, got %s", pdfA, d.Metadata.PDFID)
		}
	}
}

func TestHyDE_RerankedAgainstOriginalQuery(t *testing.T) {
	store := vectorstore.NewFake()
	emb := embedder.NewFake(8)
	rec := &queryRecorder{}
	brainID := uuid.New()
	pdfA := uuid.New()

	seedBrain(t, store, emb, brainID, map[string]string{
		"the mitochondria is the powerhouse of the cell": pdfA.String(),
	})

	r := New(emb, store, rec)
	docs, err := r.HyDE(context.Background(), brainID, "what powers the cell", "a hypothetical passage about mitochondria", nil)
	if err != nil {
		t.Fatalf("HyDE: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("expected at least one document")
	}
	if rec.query != "what powers the cell" {
		t.Errorf("expected rerank against the original query, got %q", rec.query)
	}
}

// queryRecorder is a RerankerProvider that remembers the query it was asked
// to rerank against and otherwise behaves like reranker.Fake.
type queryRecorder struct {
	query string
}

func (q *queryRecorder) Rerank(ctx context.Context, query string, docs []vectorstore.ScoredDoc, k int) ([]vectorstore.ScoredDoc, error) {
	q.query = query
	return reranker.Fake{}.Rerank(ctx, query, docs, k)
}

func TestCombinedContext_JoinsWithSpace(t *testing.T) {
	docs := []vectorstore.ScoredDoc{
		{Point: vectorstore.Point{Content: "first"}},
		{Point: vectorstore.Point{Content: "second"}},
	}
	got := CombinedContext(docs)
	want := "first second"
	if got != want {
		t.Errorf("CombinedContext() = %q, want %q", got, want)
	}
}
