package embedder

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// DefaultSparseBuckets bounds the hashing-trick vocabulary. Large enough
// that collisions between unrelated terms are rare for chunk-sized text,
// small enough to keep sparse vectors cheap to transmit and store.
const DefaultSparseBuckets = 1 << 18

// HashingVectorizer produces Qdrant-format sparse vectors (term-id/weight
// pairs) without a remote model or a fitted vocabulary. It hashes each
// token into a fixed bucket space (the "hashing trick") and weights by
// term frequency, normalized to unit L2 so scores are comparable across
// documents of different lengths.
//
// No library in the reference pack builds this exact shape — Qdrant sparse
// vectors keyed by arbitrary uint32 indices — so this is a deliberate,
// minimal stdlib implementation rather than a wrapped dependency.
type HashingVectorizer struct {
	buckets uint32
}

// NewHashingVectorizer returns a vectorizer hashing into the given number
// of buckets.
func NewHashingVectorizer(buckets uint32) *HashingVectorizer {
	if buckets == 0 {
		buckets = DefaultSparseBuckets
	}
	return &HashingVectorizer{buckets: buckets}
}

// Vectorize tokenizes text on non-letter/non-digit boundaries, lowercases,
// counts term frequency per hashed bucket, and L2-normalizes the result.
// Indices come back sorted ascending with no duplicates, matching
// vectorstore.SparseVector's invariant.
func (h *HashingVectorizer) Vectorize(text string) SparseVector {
	counts := make(map[uint32]float32)
	for _, tok := range tokenize(text) {
		idx := h.hash(tok)
		counts[idx]++
	}
	return normalize(counts)
}

func (h *HashingVectorizer) hash(token string) uint32 {
	f := fnv.New32a()
	_, _ = f.Write([]byte(token))
	return f.Sum32() % h.buckets
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(counts map[uint32]float32) SparseVector {
	if len(counts) == 0 {
		return SparseVector{}
	}

	var sumSquares float64
	for _, c := range counts {
		sumSquares += float64(c) * float64(c)
	}
	norm := float32(math.Sqrt(sumSquares))
	if norm == 0 {
		norm = 1
	}

	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = counts[idx] / norm
	}

	return SparseVector{Indices: indices, Values: values}
}
