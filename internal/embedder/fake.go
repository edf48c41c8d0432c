package embedder

import (
	"context"
	"hash/fnv"
)

// Fake is a deterministic, network-free EmbeddingProvider for tests. Dense
// vectors are derived from a hash of the text so identical inputs produce
// identical vectors without needing a running Ollama instance.
type Fake struct {
	dim    int
	sparse *HashingVectorizer
}

// NewFake returns a Fake embedder producing dim-wide dense vectors.
func NewFake(dim int) *Fake {
	if dim <= 0 {
		dim = 8
	}
	return &Fake{dim: dim, sparse: NewHashingVectorizer(DefaultSparseBuckets)}
}

func (f *Fake) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.dim)
	h := fnv.New32a()
	for i := range vec {
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		vec[i] = float32(h.Sum32()%1000) / 1000
	}
	return vec, nil
}

func (f *Fake) EmbedSparse(ctx context.Context, text string) (SparseVector, error) {
	if err := ctx.Err(); err != nil {
		return SparseVector{}, err
	}
	return f.sparse.Vectorize(text), nil
}

func (f *Fake) DenseDimension() int { return f.dim }

var _ EmbeddingProvider = (*Fake)(nil)
