package reranker

import (
	"context"
	"testing"

	"github.com/knoguchi/rag/internal/llm"
	"github.com/knoguchi/rag/internal/vectorstore"
)

func docs(contents ...string) []vectorstore.ScoredDoc {
	out := make([]vectorstore.ScoredDoc, len(contents))
	for i, c := range contents {
		out[i] = vectorstore.ScoredDoc{Point: vectorstore.Point{Content: c}, Score: float32(len(contents) - i)}
	}
	return out
}

func TestLLMReranker_SortsByParsedGrade(t *testing.T) {
	fake := &llm.Fake{Response: "0: 20\n1: 90\n"}
	rr := NewLLMReranker(fake)

	got, err := rr.Rerank(context.Background(), "q", docs("low relevance", "high relevance"), 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Content != "high relevance" {
		t.Errorf("expected highest-graded doc first, got %q", got[0].Content)
	}
	if got[0].Score != 0.9 {
		t.Errorf("expected score 0.9, got %v", got[0].Score)
	}
}

func TestLLMReranker_TruncatesToK(t *testing.T) {
	fake := &llm.Fake{Response: "0: 10\n1: 50\n2: 90\n"}
	rr := NewLLMReranker(fake)

	got, err := rr.Rerank(context.Background(), "q", docs("a", "b", "c"), 1)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Content != "c" {
		t.Errorf("expected top-graded doc, got %q", got[0].Content)
	}
}

func TestLLMReranker_FallsBackOnUnparsableResponse(t *testing.T) {
	fake := &llm.Fake{Response: "I cannot grade these passages."}
	rr := NewLLMReranker(fake)

	input := docs("first", "second", "third")
	got, err := rr.Rerank(context.Background(), "q", input, 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Content != "first" || got[1].Content != "second" {
		t.Errorf("expected original order preserved on fallback, got %q, %q", got[0].Content, got[1].Content)
	}
}

func TestLLMReranker_FallsBackOnPartialGrades(t *testing.T) {
	fake := &llm.Fake{Response: "0: 80\n"}
	rr := NewLLMReranker(fake)

	got, err := rr.Rerank(context.Background(), "q", docs("a", "b"), 2)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(got) != 2 || got[0].Content != "a" || got[1].Content != "b" {
		t.Errorf("expected rank-preserving fallback, got %+v", got)
	}
}

func TestLLMReranker_EmptyInput(t *testing.T) {
	rr := NewLLMReranker(&llm.Fake{})
	got, err := rr.Rerank(context.Background(), "q", nil, DefaultK)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil result for empty input, got %v", got)
	}
}
