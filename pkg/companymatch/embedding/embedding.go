// Package embedding provides dense-vector candidate generation and
// pairwise cosine similarity over company core strings.
// Vectors are L2-normalized row-major float64s; dot products and norms
// use gonum's floats package the way numeric-heavy Go services in the
// wider corpus do, rather than hand-rolled loops.
package embedding

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/cognicore/companymatch/pkg/companymatch/internalerr"
)

// Provider is the external collaborator that turns strings into vectors,
// one per input, order-preserving, uniform dimensionality.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Stats accumulates telemetry for one Index's lifetime: cache hits/misses
// and external provider calls.
type Stats struct {
	CacheHits      int
	CacheMisses    int
	ProviderCalls  int
	VectorsFetched int
}

// Index holds the dense, L2-normalized matrix of B core-string vectors
// plus the cache and provider used to fill it. Once built it is
// read-only; concurrent queries are safe.
type Index struct {
	provider  Provider
	cache     *Cache
	batchSize int

	coreStrings []string
	matrix      [][]float64
	byString    map[string]int

	statsMu sync.Mutex
	stats   Stats
}

// addStats applies delta to the running counters under the Index's mutex;
// Query and Cosine may run concurrently once MatchAll is called with
// concurrency > 1.
func (idx *Index) addStats(delta Stats) {
	idx.statsMu.Lock()
	idx.stats.CacheHits += delta.CacheHits
	idx.stats.CacheMisses += delta.CacheMisses
	idx.stats.ProviderCalls += delta.ProviderCalls
	idx.stats.VectorsFetched += delta.VectorsFetched
	idx.statsMu.Unlock()
}

// New constructs an Index. batchSize must be positive; the documented
// default is 250.
func New(provider Provider, cache *Cache, batchSize int) *Index {
	if batchSize <= 0 {
		batchSize = 250
	}
	return &Index{provider: provider, cache: cache, batchSize: batchSize, byString: make(map[string]int)}
}

// Build computes or loads one embedding per core string, assembling a
// row-major dense matrix of L2-normalized rows. Embedding
// failures during build propagate: this step must either complete or
// fail outright, never silently corrupt the index.
func (idx *Index) Build(ctx context.Context, coreStrings []string) error {
	idx.coreStrings = append([]string(nil), coreStrings...)
	idx.byString = make(map[string]int, len(coreStrings))
	for i, s := range coreStrings {
		idx.byString[s] = i
	}

	vectors := make([][]float64, len(coreStrings))
	var missing []string
	var missingIdx []int

	for i, s := range coreStrings {
		v, ok, err := idx.cache.Get(ctx, s)
		if err != nil {
			return fmt.Errorf("companymatch/embedding: cache lookup for %q: %w", s, err)
		}
		if ok {
			idx.addStats(Stats{CacheHits: 1})
			vectors[i] = v
			continue
		}
		idx.addStats(Stats{CacheMisses: 1})
		missing = append(missing, s)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		if err := idx.fetchAndCache(ctx, missing, missingIdx, vectors); err != nil {
			return err
		}
	}

	for i, v := range vectors {
		vectors[i] = normalizeL2(v)
	}
	idx.matrix = vectors
	return nil
}

// Precompute fetches embeddings for query strings into the cache ahead of
// per-query lookups, without adding them to the
// queryable matrix.
func (idx *Index) Precompute(ctx context.Context, strings []string) error {
	var missing []string
	for _, s := range strings {
		if _, ok, err := idx.cache.Get(ctx, s); err == nil && !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	placeholder := make([][]float64, len(missing))
	indices := make([]int, len(missing))
	for i := range missing {
		indices[i] = i
	}
	return idx.fetchAndCache(ctx, missing, indices, placeholder)
}

func (idx *Index) fetchAndCache(ctx context.Context, missing []string, missingIdx []int, dest [][]float64) error {
	for start := 0; start < len(missing); start += idx.batchSize {
		end := start + idx.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]
		idx.addStats(Stats{ProviderCalls: 1})
		vecs, err := idx.provider.EmbedBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("companymatch/embedding: provider batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("companymatch/embedding: %w: got %d vectors for %d inputs", internalerr.ErrProviderBatchMismatch, len(vecs), len(batch))
		}
		idx.addStats(Stats{VectorsFetched: len(vecs)})
		if err := idx.cache.PutBatch(ctx, batch, vecs); err != nil {
			return fmt.Errorf("companymatch/embedding: cache write: %w", err)
		}
		for i, v := range vecs {
			dest[missingIdx[start+i]] = v
		}
	}
	return nil
}

// Query retrieves the cached embedding for core_string (triggering a
// synchronous fetch on a miss), L2-normalizes it, and returns the top-k
// B indices by descending cosine similarity, where
// k = min(ann_neighbors, |B|).
func (idx *Index) Query(ctx context.Context, coreString string, annNeighbors int) ([]int, []float64, error) {
	if len(idx.matrix) == 0 {
		return nil, nil, nil
	}

	vec, ok, err := idx.cache.Get(ctx, coreString)
	if err != nil {
		return nil, nil, fmt.Errorf("companymatch/embedding: cache lookup for %q: %w", coreString, err)
	}
	if !ok {
		idx.addStats(Stats{CacheMisses: 1, ProviderCalls: 1})
		vecs, err := idx.provider.EmbedBatch(ctx, []string{coreString})
		if err != nil {
			// Query-time failures are non-fatal: produce empty results
			// without corrupting the index.
			return nil, nil, nil
		}
		if len(vecs) != 1 {
			return nil, nil, nil
		}
		vec = vecs[0]
		idx.addStats(Stats{VectorsFetched: 1})
		_ = idx.cache.PutBatch(ctx, []string{coreString}, vecs)
	} else {
		idx.addStats(Stats{CacheHits: 1})
	}

	vec = normalizeL2(vec)

	k := annNeighbors
	if k > len(idx.matrix) {
		k = len(idx.matrix)
	}
	if k <= 0 {
		return nil, nil, nil
	}

	type scored struct {
		idx int
		sim float64
	}
	all := make([]scored, len(idx.matrix))
	for i, row := range idx.matrix {
		all[i] = scored{idx: i, sim: floats.Dot(vec, row)}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].sim != all[j].sim {
			return all[i].sim > all[j].sim
		}
		return all[i].idx < all[j].idx
	})
	if len(all) > k {
		all = all[:k]
	}

	ids := make([]int, len(all))
	sims := make([]float64, len(all))
	for i, s := range all {
		ids[i] = s.idx
		sims[i] = s.sim
	}
	return ids, sims, nil
}

// Cosine computes the cosine similarity between two core strings' cached
// (or freshly fetched) vectors. Returns ok=false when no provider is
// configured.
func (idx *Index) Cosine(ctx context.Context, aCore, bCore string) (float64, bool) {
	if idx.provider == nil {
		return 0, false
	}
	av, aok, _ := idx.lookupOrFetch(ctx, aCore)
	bv, bok, _ := idx.lookupOrFetch(ctx, bCore)
	if !aok || !bok {
		return 0, false
	}
	return floats.Dot(normalizeL2(av), normalizeL2(bv)), true
}

func (idx *Index) lookupOrFetch(ctx context.Context, core string) ([]float64, bool, error) {
	v, ok, err := idx.cache.Get(ctx, core)
	if err != nil || ok {
		return v, ok, err
	}
	vecs, err := idx.provider.EmbedBatch(ctx, []string{core})
	if err != nil || len(vecs) != 1 {
		return nil, false, err
	}
	_ = idx.cache.PutBatch(ctx, []string{core}, vecs)
	return vecs[0], true, nil
}

// Stats returns a snapshot of accumulated telemetry counters.
func (idx *Index) Stats() Stats {
	idx.statsMu.Lock()
	defer idx.statsMu.Unlock()
	return idx.stats
}

// normalizeL2 returns a unit-norm copy of v, treating a zero row as
// unit-safe (norm 0 becomes 1) so it contributes zero similarity rather
// than dividing by zero.
func normalizeL2(v []float64) []float64 {
	out := append([]float64(nil), v...)
	norm := floats.Norm(out, 2)
	if norm == 0 {
		norm = 1
	}
	floats.Scale(1/norm, out)
	return out
}
