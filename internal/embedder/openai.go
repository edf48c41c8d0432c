package embedder

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/knoguchi/rag/internal/ragerr"
)

// OpenAIEmbedder implements EmbeddingProvider against any OpenAI-compatible
// embeddings endpoint (NVIDIA's integrate.api.nvidia.com by default, the
// same family of endpoint the reward/instruct LLM clients talk to). Sparse
// vectors still come from the local hashing vectorizer, the same as
// OllamaEmbedder: no provider in the corpus offers a native sparse model, so
// both dense backends share the one sparse path.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	sparse    *HashingVectorizer
}

// NewOpenAIEmbedder builds a dense embedder over baseURL/apiKey, producing
// dim-wide vectors with model.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dim int) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if dim <= 0 {
		dim = DefaultOllamaDimension
	}
	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dim,
		sparse:    NewHashingVectorizer(DefaultSparseBuckets),
	}
}

// EmbedDense calls the embeddings endpoint for a single text input.
func (e *OpenAIEmbedder) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, ragerr.Wrap(ragerr.Transient, "openai-compatible embed request failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, ragerr.New(ragerr.Transient, "openai-compatible endpoint returned no embeddings")
	}
	return resp.Data[0].Embedding, nil
}

// EmbedSparse runs entirely locally, the same hashing vectorizer
// OllamaEmbedder uses, but still honors ctx cancellation.
func (e *OpenAIEmbedder) EmbedSparse(ctx context.Context, text string) (SparseVector, error) {
	if err := ctx.Err(); err != nil {
		return SparseVector{}, ragerr.Wrap(ragerr.Transient, "sparse embedding canceled", err)
	}
	return e.sparse.Vectorize(text), nil
}

// DenseDimension returns the configured dense vector width.
func (e *OpenAIEmbedder) DenseDimension() int {
	return e.dimension
}

var _ EmbeddingProvider = (*OpenAIEmbedder)(nil)
