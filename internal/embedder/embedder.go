// Package embedder provides the dense and sparse embedding providers used at
// both ingestion and retrieval time. Dense embeddings come from an Ollama
// model or an OpenAI-compatible embeddings endpoint; sparse vectors are
// produced locally so a Qdrant sparse index can be populated without a
// second remote model.
package embedder

import "context"

// EmbeddingProvider is the capability interface every retrieval/ingestion
// component depends on. The real implementations wrap Ollama
// (OllamaEmbedder) or an OpenAI-compatible endpoint (OpenAIEmbedder) for
// dense vectors and share a local hashing vectorizer for sparse; tests use
// Fake.
type EmbeddingProvider interface {
	// EmbedDense returns a dense embedding for text.
	EmbedDense(ctx context.Context, text string) ([]float32, error)

	// EmbedSparse returns a sparse (term-id/weight) vector for text. Callers
	// must isolate a failure here to the chunk being embedded, the same as
	// an EmbedDense failure, rather than aborting the whole file.
	EmbedSparse(ctx context.Context, text string) (SparseVector, error)

	// DenseDimension reports the configured dense vector width, needed when
	// creating a Qdrant collection ahead of any upsert.
	DenseDimension() int
}

// SparseVector mirrors vectorstore.SparseVector without importing it, so
// this package stays usable independent of the vector store wiring.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// ModelConfig holds configuration for a specific embedding model.
type ModelConfig struct {
	Dimension        int // Embedding dimension
	ContextLength    int // Max tokens the model can process
	MaxChunkWords    int // Recommended max chunk size in words (safe limit)
	TargetChunkWords int // Recommended target chunk size in words
}

// KnownModels maps embedding model names to their configurations.
// These limits are conservative to avoid "context length exceeded" errors.
var KnownModels = map[string]ModelConfig{
	"nomic-embed-text": {
		Dimension:        768,
		ContextLength:    8192,
		MaxChunkWords:    512, // ~700 tokens, safe margin under 8192
		TargetChunkWords: 256,
	},
	"mxbai-embed-large": {
		Dimension:        1024,
		ContextLength:    512,
		MaxChunkWords:    300, // Very limited context
		TargetChunkWords: 150,
	},
	"all-minilm": {
		Dimension:        384,
		ContextLength:    256,
		MaxChunkWords:    150,
		TargetChunkWords: 100,
	},
	"snowflake-arctic-embed": {
		Dimension:        1024,
		ContextLength:    8192,
		MaxChunkWords:    512,
		TargetChunkWords: 256,
	},
}

// GetModelConfig returns the configuration for a model, or defaults if unknown.
func GetModelConfig(modelName string) ModelConfig {
	if cfg, ok := KnownModels[modelName]; ok {
		return cfg
	}
	// Conservative defaults for unknown models
	return ModelConfig{
		Dimension:        768,
		ContextLength:    2048,
		MaxChunkWords:    256,
		TargetChunkWords: 128,
	}
}
