package ingestion

import (
	"context"

	"github.com/google/uuid"

	"github.com/knoguchi/rag/internal/catalog"
	"github.com/knoguchi/rag/internal/embedder"
	"github.com/knoguchi/rag/internal/ragerr"
	"github.com/knoguchi/rag/internal/vectorstore"
)

// File is one uploaded PDF awaiting ingestion.
type File struct {
	Name  string
	Bytes []byte
}

// Result reports the outcome of ingesting a single file.
type Result struct {
	FileName     string
	Success      bool
	Message      string
	InvalidCount int
}

// chunkOutcome models per-chunk fallibility as Result<Point, EmbeddingError>:
// exactly one of Point or Err is set.
type chunkOutcome struct {
	Point vectorstore.Point
	Err   error
}

// Pipeline is the IngestionPipeline: dedupe, assign IDs, chunk, embed
// (best-effort per chunk), upsert, and update the registry.
type Pipeline struct {
	chunker  *Chunker
	embedder embedder.EmbeddingProvider
	store    vectorstore.VectorStoreClient
	catalog  *catalog.BrainCatalog
}

// New builds an ingestion pipeline over the given chunker, embedding
// provider, vector store, and brain catalog.
func New(chunker *Chunker, emb embedder.EmbeddingProvider, store vectorstore.VectorStoreClient, cat *catalog.BrainCatalog) *Pipeline {
	return &Pipeline{chunker: chunker, embedder: emb, store: store, catalog: cat}
}

// IngestFile runs the pipeline for a single file: skip if already
// registered, chunk, embed each chunk independently (skipping failures),
// upsert the successful points, and register the file only if at least one
// chunk succeeded.
func (p *Pipeline) IngestFile(ctx context.Context, brainID uuid.UUID, file File) (Result, error) {
	exists, err := p.catalog.CheckFile(ctx, brainID, file.Name)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{FileName: file.Name, Success: false, Message: "file already ingested"}, nil
	}

	pdfID := uuid.New()

	chunks, err := p.chunker.Chunk(file.Bytes)
	if err != nil {
		return Result{}, ragerr.Wrap(ragerr.Invalid, "chunk PDF", err)
	}
	if len(chunks) == 0 {
		return Result{FileName: file.Name, Success: false, Message: "PDF produced no extractable text"},
			ragerr.New(ragerr.Unsupported, "PDF produced zero chunks")
	}

	outcomes := make([]chunkOutcome, len(chunks))
	for i, chunk := range chunks {
		outcomes[i] = p.embedChunk(ctx, brainID, pdfID, file.Name, chunk)
	}

	points := make([]vectorstore.Point, 0, len(outcomes))
	invalid := 0
	for _, o := range outcomes {
		if o.Err != nil {
			invalid++
			continue
		}
		points = append(points, o.Point)
	}

	if len(points) == 0 {
		return Result{FileName: file.Name, Success: false, Message: "all chunks failed embedding", InvalidCount: invalid},
			ragerr.New(ragerr.Unsupported, "all chunks failed embedding")
	}

	collection := "brain_" + brainID.String()
	if err := p.store.Upsert(ctx, collection, points); err != nil {
		return Result{}, ragerr.Wrap(ragerr.Transient, "upsert ingested points", err)
	}

	if err := p.catalog.RegisterFile(ctx, brainID, file.Name, pdfID); err != nil {
		return Result{}, err
	}

	return Result{FileName: file.Name, Success: true, Message: "ingested", InvalidCount: invalid}, nil
}

// embedChunk computes dense and sparse embeddings independently; if either
// fails, the whole chunk is skipped rather than upserting a point missing
// a vector.
func (p *Pipeline) embedChunk(ctx context.Context, brainID, pdfID uuid.UUID, fileName string, chunk Chunk) chunkOutcome {
	dense, err := p.embedder.EmbedDense(ctx, chunk.Content)
	if err != nil {
		return chunkOutcome{Err: ragerr.Wrap(ragerr.Transient, "dense embedding failed", err)}
	}

	sparse, err := p.embedder.EmbedSparse(ctx, chunk.Content)
	if err != nil {
		return chunkOutcome{Err: ragerr.Wrap(ragerr.Transient, "sparse embedding failed", err)}
	}

	point := vectorstore.Point{
		ID:      uuid.New(),
		Dense:   dense,
		Sparse:  vectorstore.SparseVector{Indices: sparse.Indices, Values: sparse.Values},
		Content: chunk.Content,
		Metadata: vectorstore.ChunkMetadata{
			PDFID:    pdfID,
			FileName: fileName,
			BrainID:  brainID,
			PageNo:   chunk.PageNo,
		},
	}
	return chunkOutcome{Point: point}
}

// IngestBatch runs IngestFile for every file sequentially, the reference
// concurrency model: safer with respect to embedding-provider rate limits
// than embedding every file's chunks concurrently.
func (p *Pipeline) IngestBatch(ctx context.Context, brainID uuid.UUID, files []File) ([]Result, error) {
	results := make([]Result, 0, len(files))
	for _, f := range files {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		r, err := p.IngestFile(ctx, brainID, f)
		if err != nil && ragerr.KindOf(err) != ragerr.Unsupported {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}
