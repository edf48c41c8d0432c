package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/knoguchi/rag/internal/app"
	"github.com/knoguchi/rag/internal/catalog"
	"github.com/knoguchi/rag/internal/config"
	"github.com/knoguchi/rag/internal/embedder"
	"github.com/knoguchi/rag/internal/evaluator"
	"github.com/knoguchi/rag/internal/ingestion"
	"github.com/knoguchi/rag/internal/llm"
	"github.com/knoguchi/rag/internal/orchestrator"
	"github.com/knoguchi/rag/internal/ratelimit"
	"github.com/knoguchi/rag/internal/reranker"
	"github.com/knoguchi/rag/internal/retriever"
	"github.com/knoguchi/rag/internal/vectorstore"
)

// newTestServer wires a RuntimeContext entirely out of in-memory fakes, no
// network or database required — it deliberately leaves Usage nil to
// exercise the handlers' nil-safe audit recording path.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := vectorstore.NewFake()
	emb := embedder.NewFake(8)
	cat := catalog.New(store, "registry", emb.DenseDimension())
	if err := cat.EnsureRegistry(t.Context()); err != nil {
		t.Fatalf("ensure registry: %v", err)
	}

	chunker := ingestion.NewChunker(900)
	pipeline := ingestion.New(chunker, emb, store, cat)

	rtr := retriever.New(emb, store, reranker.Fake{})
	answerLLM := &llm.Fake{Response: "Paris is the capital of France."}
	orch := orchestrator.New(rtr, answerLLM, ratelimit.New(100, 1), "test-model")
	eval := evaluator.New(answerLLM, &llm.Fake{}, "instruct", "reward")

	rc := &app.RuntimeContext{
		Config:       &config.Config{RegistryCollection: "registry"},
		Logger:       discardLogger(),
		Store:        store,
		Embedder:     emb,
		Catalog:      cat,
		Pipeline:     pipeline,
		Orchestrator: orch,
		Evaluator:    eval,
	}

	return New(Config{Port: 0, Logger: discardLogger()}, rc)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateBrain_AndListBrains(t *testing.T) {
	s := newTestServer(t)

	form := strings.NewReader("brain_name=my-corpus")
	req := httptest.NewRequest(http.MethodPost, "/api/create-brain", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/list-brains", nil)
	rec2 := httptest.NewRecorder()
	s.Router().ServeHTTP(rec2, req2)

	var resp envelope
	if err := json.Unmarshal(rec2.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	brains, ok := resp.Data.([]any)
	if !ok || len(brains) != 1 {
		t.Fatalf("expected one brain listed, got %+v", resp.Data)
	}
}

func TestCreateBrain_DuplicateNameConflicts(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 2; i++ {
		form := strings.NewReader("brain_name=dup")
		req := httptest.NewRequest(http.MethodPost, "/api/create-brain", form)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if i == 0 && rec.Code != http.StatusCreated {
			t.Fatalf("first create: expected 201, got %d", rec.Code)
		}
		if i == 1 && rec.Code != http.StatusConflict {
			t.Fatalf("second create: expected 409, got %d: %s", rec.Code, rec.Body.String())
		}
	}
}

func TestUpload_UnparsablePDFRespondsCleanly(t *testing.T) {
	s := newTestServer(t)

	brainID := createBrain(t, s, "docs")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files[]", "note.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte("%PDF-1.4 fake content about paris being the capital of france"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/"+brainID+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	// A fake PDF body without a real page/xref structure fails chunking
	// cleanly rather than panicking — the handler must still respond with
	// a well-formed envelope (400 invalid or 422 unsupported), not a crash.
	if rec.Code != http.StatusOK && rec.Code != http.StatusUnprocessableEntity && rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected upload status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHybridQuery_EmptyBrainReturnsAnswer(t *testing.T) {
	s := newTestServer(t)
	brainID := createBrain(t, s, "empty-brain")

	body := `{"query": "what is the capital of france?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/"+brainID+"/hybrid", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %+v", resp.Data)
	}
	if data["hybrid_rag_response"] == "" {
		t.Error("expected non-empty hybrid_rag_response")
	}
}

func TestAnswerAll_ReportsEveryStrategy(t *testing.T) {
	s := newTestServer(t)
	brainID := createBrain(t, s, "fail-brain")

	body := `{"query": "anything"}`
	req := httptest.NewRequest(http.MethodPost, "/api/"+brainID+"/all", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data := resp.Data.(map[string]any)
	for _, strategy := range []string{"hybrid", "hyde", "dense", "sparse"} {
		if _, ok := data[strategy]; !ok {
			t.Errorf("missing strategy %q in response", strategy)
		}
	}
}

func TestHealthzAndReadyz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec2 := httptest.NewRecorder()
	s.Router().ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d: %s", rec2.Code, rec2.Body.String())
	}
}

func createBrain(t *testing.T, s *Server, name string) string {
	t.Helper()
	form := strings.NewReader("brain_name=" + name)
	req := httptest.NewRequest(http.MethodPost, "/api/create-brain", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create brain: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create-brain response: %v", err)
	}
	data := resp.Data.(map[string]any)
	return data["brain_id"].(string)
}
