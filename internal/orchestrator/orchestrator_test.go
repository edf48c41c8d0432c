package orchestrator

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/knoguchi/rag/internal/embedder"
	"github.com/knoguchi/rag/internal/evaluator"
	"github.com/knoguchi/rag/internal/llm"
	"github.com/knoguchi/rag/internal/reranker"
	"github.com/knoguchi/rag/internal/retriever"
	"github.com/knoguchi/rag/internal/vectorstore"
)

func newTestOrchestrator(t *testing.T) (*RAGOrchestrator, uuid.UUID) {
	t.Helper()
	store := vectorstore.NewFake()
	emb := embedder.NewFake(8)
	brainID := uuid.New()
	collection := "brain_" + brainID.String()
	if err := store.CreateCollection(context.Background(), collection, emb.DenseDimension()); err != nil {
		t.Fatalf("create collection: %v", err)
	}

	content := "paris is the capital of france"
	dense, _ := emb.EmbedDense(context.Background(), content)
	sparse, _ := emb.EmbedSparse(context.Background(), content)
	point := vectorstore.Point{
		ID:      uuid.New(),
		Dense:   dense,
		Sparse:  vectorstore.SparseVector{Indices: sparse.Indices, Values: sparse.Values},
		Content: content,
	}
	if err := store.Upsert(context.Background(), collection, []vectorstore.Point{point}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	r := retriever.New(emb, store, reranker.Fake{})
	o := New(r, &llm.Fake{Response: "Paris."}, nil, "test-model")
	return o, brainID
}

func TestAnswerDense_ReturnsAnswerWithContext(t *testing.T) {
	o, brainID := newTestOrchestrator(t)
	answer, err := o.AnswerDense(context.Background(), brainID, Request{Query: "capital of france"})
	if err != nil {
		t.Fatalf("AnswerDense: %v", err)
	}
	if answer.Response == "" {
		t.Error("expected non-empty response")
	}
	if answer.RetrievedContext == "" {
		t.Error("expected non-empty retrieved context")
	}
}

func TestAnswerAll_RunsAllFourStrategies(t *testing.T) {
	o, brainID := newTestOrchestrator(t)
	results := o.AnswerAll(context.Background(), brainID, Request{Query: "capital of france"})

	for _, name := range []string{"hybrid", "hyde", "dense", "sparse"} {
		result, ok := results[name]
		if !ok {
			t.Fatalf("missing strategy result for %q", name)
		}
		if result.Err != nil {
			t.Errorf("strategy %q failed: %v", name, result.Err)
		}
	}
}

func TestEvaluateBatch_FillsSheets(t *testing.T) {
	o, brainID := newTestOrchestrator(t)
	eval := evaluator.New(&llm.Fake{}, &llm.Fake{Response: "helpfulness:1,correctness:1"}, "instruct", "reward")

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "LLM Eval")
	f.NewSheet("Retriever Eval")
	f.SetCellValue("LLM Eval", "A1", "Question")
	f.SetCellValue("LLM Eval", "B1", "Ground Truth")
	f.SetCellValue("LLM Eval", "C1", "LLM Response")
	f.SetCellValue("LLM Eval", "D1", "Helpfulness")
	f.SetCellValue("LLM Eval", "E1", "Correctness")
	f.SetCellValue("LLM Eval", "F1", "Coherence")
	f.SetCellValue("LLM Eval", "G1", "Complexity")
	f.SetCellValue("LLM Eval", "H1", "Verbosity")
	f.SetCellValue("LLM Eval", "A2", "what is the capital of france?")
	f.SetCellValue("LLM Eval", "B2", "Paris")

	f.SetCellValue("Retriever Eval", "A1", "Question")
	f.SetCellValue("Retriever Eval", "B1", "Ground Truth")
	f.SetCellValue("Retriever Eval", "C1", "Retriever Response")
	f.SetCellValue("Retriever Eval", "D1", "Helpfulness")
	f.SetCellValue("Retriever Eval", "E1", "Correctness")
	f.SetCellValue("Retriever Eval", "F1", "Coherence")
	f.SetCellValue("Retriever Eval", "G1", "Complexity")
	f.SetCellValue("Retriever Eval", "H1", "Verbosity")
	f.SetCellValue("Retriever Eval", "A2", "what is the capital of france?")
	f.SetCellValue("Retriever Eval", "B2", "Paris")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	out, err := o.EvaluateBatch(context.Background(), brainID, nil, eval, buf.Bytes())
	if err != nil {
		t.Fatalf("EvaluateBatch: %v", err)
	}

	result, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer result.Close()

	llmResponse, _ := result.GetCellValue("LLM Eval", "C2")
	if llmResponse == "" {
		t.Error("expected LLM Response filled in")
	}
	helpfulness, _ := result.GetCellValue("LLM Eval", "D2")
	if helpfulness != "1" {
		t.Errorf("expected helpfulness 1, got %q", helpfulness)
	}
}
