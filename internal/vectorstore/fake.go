package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Fake is an in-memory VectorStoreClient for tests (Design Notes §9: every
// capability interface gets one real implementation and one in-memory fake).
type Fake struct {
	mu          sync.Mutex
	collections map[string][]Point
	aliases     map[string]string
}

// NewFake returns an empty in-memory vector store.
func NewFake() *Fake {
	return &Fake{
		collections: make(map[string][]Point),
		aliases:     make(map[string]string),
	}
}

func (f *Fake) CreateCollection(ctx context.Context, name string, denseDim int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; !ok {
		f.collections[name] = nil
	}
	return nil
}

func (f *Fake) DeleteCollection(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
	return nil
}

func (f *Fake) CollectionExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok, nil
}

func (f *Fake) CreateAlias(ctx context.Context, collection, alias string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliases[alias] = collection
	return nil
}

func (f *Fake) ListAliases(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.aliases))
	for k, v := range f.aliases {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) Upsert(ctx context.Context, collection string, points []Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[collection] = append(f.collections[collection], points...)
	return nil
}

func (f *Fake) QueryPoints(ctx context.Context, collection string, spec QuerySpec, filter *Filter, limit int) ([]ScoredDoc, error) {
	f.mu.Lock()
	points := append([]Point(nil), f.collections[collection]...)
	f.mu.Unlock()

	matched := applyFilter(points, filter)

	var scored []ScoredDoc
	switch {
	case spec.Fusion != nil:
		dense := rankByScore(matched, func(p Point) float32 { return cosine(p.Dense, spec.Fusion.DensePrefetch) }, spec.Fusion.PrefetchLimit)
		sparse := rankByScore(matched, func(p Point) float32 { return sparseDot(p.Sparse, spec.Fusion.SparsePrefetch) }, spec.Fusion.PrefetchLimit)
		scored = rrfFuse(dense, sparse)
	case spec.Sparse != nil:
		ranked := rankByScore(matched, func(p Point) float32 { return sparseDot(p.Sparse, *spec.Sparse) }, len(matched))
		scored = ranked
	default:
		ranked := rankByScore(matched, func(p Point) float32 { return cosine(p.Dense, spec.Dense) }, len(matched))
		scored = ranked
	}

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (f *Fake) Scroll(ctx context.Context, collection string, filter *Filter, limit int) ([]Point, error) {
	f.mu.Lock()
	points := append([]Point(nil), f.collections[collection]...)
	f.mu.Unlock()

	matched := applyFilter(points, filter)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *Fake) Count(ctx context.Context, collection string, filter *Filter) (int, error) {
	f.mu.Lock()
	points := append([]Point(nil), f.collections[collection]...)
	f.mu.Unlock()
	return len(applyFilter(points, filter)), nil
}

func applyFilter(points []Point, filter *Filter) []Point {
	if filter == nil || len(filter.Must) == 0 {
		return points
	}
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if matchesAll(p, filter.Must) {
			out = append(out, p)
		}
	}
	return out
}

func matchesAll(p Point, conds []FieldMatch) bool {
	for _, c := range conds {
		var field string
		switch c.Key {
		case "metadata.pdf_id":
			field = p.Metadata.PDFID.String()
		case "metadata.brain_id":
			field = p.Metadata.BrainID.String()
		case "metadata.file_name":
			field = p.Metadata.FileName
		default:
			continue // keys outside the point metadata are not modeled by the fake
		}
		if len(c.Values) > 0 {
			if !containsStr(c.Values, field) {
				return false
			}
			continue
		}
		if field != c.Value {
			return false
		}
	}
	return true
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func rankByScore(points []Point, score func(Point) float32, limit int) []ScoredDoc {
	scored := make([]ScoredDoc, len(points))
	for i, p := range points {
		scored[i] = ScoredDoc{Point: p, Score: score(p)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// rrfFuse combines two ranked lists with Reciprocal Rank Fusion, k=60,
// ties broken by the dense list's order — matching spec §4.4.
func rrfFuse(dense, sparse []ScoredDoc) []ScoredDoc {
	const k = 60
	rrfScore := make(map[uuid.UUID]float64)
	byID := make(map[uuid.UUID]Point)
	order := make([]uuid.UUID, 0, len(dense)+len(sparse))

	for rank, d := range dense {
		rrfScore[d.ID] += 1.0 / float64(k+rank+1)
		byID[d.ID] = d.Point
		order = append(order, d.ID)
	}
	for rank, s := range sparse {
		if _, ok := byID[s.ID]; !ok {
			order = append(order, s.ID)
		}
		rrfScore[s.ID] += 1.0 / float64(k+rank+1)
		byID[s.ID] = s.Point
	}

	out := make([]ScoredDoc, 0, len(order))
	for _, id := range order {
		out = append(out, ScoredDoc{Point: byID[id], Score: float32(rrfScore[id])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func sparseDot(a, b SparseVector) float32 {
	vals := make(map[uint32]float32, len(a.Indices))
	for i, idx := range a.Indices {
		vals[idx] = a.Values[i]
	}
	var sum float32
	for i, idx := range b.Indices {
		if v, ok := vals[idx]; ok {
			sum += v * b.Values[i]
		}
	}
	return sum
}

var _ VectorStoreClient = (*Fake)(nil)
