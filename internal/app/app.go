// Package app wires every capability implementation, the config, and the
// domain components into a single RuntimeContext (SPEC_FULL.md's A1),
// constructed once at boot and threaded by reference into the HTTP layer —
// replacing the teacher's package-level singletons with an explicit struct.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knoguchi/rag/internal/catalog"
	"github.com/knoguchi/rag/internal/config"
	"github.com/knoguchi/rag/internal/embedder"
	"github.com/knoguchi/rag/internal/evaluator"
	"github.com/knoguchi/rag/internal/ingestion"
	"github.com/knoguchi/rag/internal/llm"
	"github.com/knoguchi/rag/internal/orchestrator"
	"github.com/knoguchi/rag/internal/ratelimit"
	"github.com/knoguchi/rag/internal/repository/postgres"
	"github.com/knoguchi/rag/internal/reranker"
	"github.com/knoguchi/rag/internal/retriever"
	"github.com/knoguchi/rag/internal/usage"
	"github.com/knoguchi/rag/internal/vectorstore"
)

// RuntimeContext holds every component the HTTP layer needs, built once at
// startup. No package exposes a mutable package-level singleton; everything
// a handler touches hangs off this struct.
type RuntimeContext struct {
	Config *config.Config
	Logger *slog.Logger

	Store    vectorstore.VectorStoreClient
	Embedder embedder.EmbeddingProvider
	Reranker reranker.RerankerProvider
	AnswerLLM *llm.OllamaClient
	RewardLLM *llm.OpenAIClient

	Catalog      *catalog.BrainCatalog
	Pipeline     *ingestion.Pipeline
	Orchestrator *orchestrator.RAGOrchestrator
	Evaluator    *evaluator.Evaluator
	Usage        *usage.Recorder

	vectorStoreCloser interface{ Close() error }
	db                *postgres.DB
}

// New connects to Qdrant and Postgres, builds the embedding, Ollama and
// reward-model clients (no request is sent to those at this point), ensures
// the registry collection and usage-counter table exist, and returns a fully
// wired RuntimeContext.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*RuntimeContext, error) {
	store, err := vectorstore.NewClient(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	var emb embedder.EmbeddingProvider
	switch cfg.EmbeddingBackend {
	case "openai":
		emb = embedder.NewOpenAIEmbedder(cfg.OpenAIEmbeddingBaseURL, cfg.OpenAIEmbeddingAPIKey, cfg.OpenAIEmbeddingModel, cfg.OpenAIEmbeddingDimension)
	default:
		emb = embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL:   cfg.OllamaURL,
			Model:     cfg.DenseEmbeddingModel,
			Dimension: embedder.GetModelConfig(cfg.DenseEmbeddingModel).Dimension,
		})
	}

	answerLLM := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.AnswerLLMModel),
	)
	rerankLLM := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.CrossEncoderModel),
	)
	rewardLLM := llm.NewOpenAIClient(cfg.RewardLLMBaseURL, cfg.RewardLLMAPIKey, cfg.RewardLLMModel)

	cat := catalog.New(store, cfg.RegistryCollection, emb.DenseDimension())
	if err := cat.EnsureRegistry(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensure registry collection: %w", err)
	}

	usageRecorder := usage.New(db)
	if err := usageRecorder.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensure usage schema: %w", err)
	}

	chunker := ingestion.NewChunker(cfg.ChunkBaseSize)
	pipeline := ingestion.New(chunker, emb, store, cat)

	rr := reranker.NewLLMReranker(rerankLLM, reranker.WithModel(cfg.CrossEncoderModel))
	rtr := retriever.New(emb, store, rr)
	limiter := ratelimit.New(cfg.LLMRateLimitPerSecond, cfg.LLMRateLimitBurst)
	orch := orchestrator.New(rtr, answerLLM, limiter, cfg.AnswerLLMModel)

	// The instruct model (ground-truth synthesis) is served by the
	// NVIDIA-hosted OpenAI-compatible endpoint, not Ollama — rewardLLM is
	// the client pointed there, so it backs both roles here.
	eval := evaluator.New(rewardLLM, rewardLLM, cfg.InstructLLMModel, cfg.RewardLLMModel)

	return &RuntimeContext{
		Config:            cfg,
		Logger:            logger,
		Store:             store,
		Embedder:          emb,
		Reranker:          rr,
		AnswerLLM:         answerLLM,
		RewardLLM:         rewardLLM,
		Catalog:           cat,
		Pipeline:          pipeline,
		Orchestrator:      orch,
		Evaluator:         eval,
		Usage:             usageRecorder,
		vectorStoreCloser: store,
		db:                db,
	}, nil
}

// Close releases the vector store connection and the Postgres pool.
func (rc *RuntimeContext) Close() error {
	var firstErr error
	if rc.vectorStoreCloser != nil {
		if err := rc.vectorStoreCloser.Close(); err != nil {
			firstErr = err
		}
	}
	if rc.db != nil {
		rc.db.Close()
	}
	return firstErr
}
