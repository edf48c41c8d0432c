package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/knoguchi/rag/internal/ragerr"
)

const (
	// DefaultOllamaBaseURL is the default Ollama API base URL.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model.
	DefaultOllamaModel = "nomic-embed-text"

	// DefaultOllamaDimension is the default embedding dimension for nomic-embed-text.
	DefaultOllamaDimension = 768
)

// OllamaConfig holds configuration for the Ollama dense embedder.
type OllamaConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Dimension is the embedding dimension (default: 768 for nomic-embed-text).
	Dimension int

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// OllamaEmbedder implements EmbeddingProvider: dense vectors via Ollama,
// sparse vectors via a local hashing vectorizer (hasher.go).
type OllamaEmbedder struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
	sparse    *HashingVectorizer
}

// ollamaRequest represents the request body for Ollama embedding API.
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaResponse represents the response from Ollama embedding API.
type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaEmbedder creates a new Ollama-backed dense embedder paired with a
// local sparse vectorizer.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultOllamaDimension
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &OllamaEmbedder{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		client:    client,
		sparse:    NewHashingVectorizer(DefaultSparseBuckets),
	}
}

// EmbedDense calls Ollama's /api/embeddings for a single text input.
func (e *OllamaEmbedder) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	reqBody := ollamaRequest{
		Model:  e.model,
		Prompt: text,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Internal, "marshal ollama embed request", err)
	}

	url := fmt.Sprintf("%s/api/embeddings", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Internal, "build ollama embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Transient, "ollama embed request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, ragerr.New(ragerr.Transient, fmt.Sprintf("ollama embed API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, ragerr.Wrap(ragerr.Internal, "decode ollama embed response", err)
	}

	if len(ollamaResp.Embedding) == 0 {
		return nil, ragerr.New(ragerr.Transient, "empty embedding returned from ollama")
	}

	embedding := make([]float32, len(ollamaResp.Embedding))
	for i, v := range ollamaResp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// EmbedSparse runs entirely locally, but still honors ctx cancellation so a
// caller that already isolates EmbedDense failures per chunk can do the same
// here.
func (e *OllamaEmbedder) EmbedSparse(ctx context.Context, text string) (SparseVector, error) {
	if err := ctx.Err(); err != nil {
		return SparseVector{}, ragerr.Wrap(ragerr.Transient, "sparse embedding canceled", err)
	}
	return e.sparse.Vectorize(text), nil
}

// DenseDimension returns the configured dense vector width.
func (e *OllamaEmbedder) DenseDimension() int {
	return e.dimension
}

var _ EmbeddingProvider = (*OllamaEmbedder)(nil)
