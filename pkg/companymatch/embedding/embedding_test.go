package embedding

import (
	"context"
	"testing"
)

type fakeProvider struct {
	calls  int
	vector func(s string) []float64
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	f.calls++
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

// hashVector derives a deterministic toy vector from a string so
// identical strings embed identically and different strings don't.
func hashVector(s string) []float64 {
	v := make([]float64, 4)
	for i, r := range s {
		v[i%4] += float64(r)
	}
	if floatsAllZero(v) {
		v[0] = 1
	}
	return v
}

func floatsAllZero(v []float64) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}

func newTestIndex(t *testing.T) (*Index, *fakeProvider) {
	t.Helper()
	cache, err := OpenCache(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	p := &fakeProvider{vector: hashVector}
	return New(p, cache, 2), p
}

func TestBuild_CachesAllVectors(t *testing.T) {
	idx, p := newTestIndex(t)
	ctx := context.Background()
	strs := []string{"acme widgets", "zephyr holdings", "acme gadgets"}
	if err := idx.Build(ctx, strs); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.calls == 0 {
		t.Fatalf("expected provider to be called at least once")
	}
	if idx.Stats().VectorsFetched != 3 {
		t.Fatalf("expected 3 vectors fetched, got %d", idx.Stats().VectorsFetched)
	}
}

func TestBuild_CacheHitOnSecondBuild(t *testing.T) {
	ctx := context.Background()
	cache, err := OpenCache(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer cache.Close()
	p := &fakeProvider{vector: hashVector}

	idx1 := New(p, cache, 2)
	if err := idx1.Build(ctx, []string{"acme widgets"}); err != nil {
		t.Fatalf("Build 1: %v", err)
	}
	callsAfterFirst := p.calls

	idx2 := New(p, cache, 2)
	if err := idx2.Build(ctx, []string{"acme widgets"}); err != nil {
		t.Fatalf("Build 2: %v", err)
	}
	if p.calls != callsAfterFirst {
		t.Fatalf("expected no additional provider calls on cache hit, calls went from %d to %d", callsAfterFirst, p.calls)
	}
	if idx2.Stats().CacheHits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", idx2.Stats().CacheHits)
	}
}

func TestQuery_ReturnsTopKByDescendingSimilarity(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()
	strs := []string{"acme widgets", "acme widgets inc", "zephyr holdings"}
	if err := idx.Build(ctx, strs); err != nil {
		t.Fatalf("Build: %v", err)
	}
	ids, sims, err := idx.Query(ctx, "acme widgets", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(ids) != 2 || len(sims) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ids))
	}
	if sims[0] < sims[1] {
		t.Fatalf("expected descending similarity order, got %v", sims)
	}
}

func TestCosine_SelfSimilarityNearOne(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()
	cos, ok := idx.Cosine(ctx, "acme widgets", "acme widgets")
	if !ok {
		t.Fatalf("expected cosine computed")
	}
	if cos < 0.99 {
		t.Fatalf("expected self-cosine ~1, got %v", cos)
	}
}

func TestCosine_NoProviderReturnsFalse(t *testing.T) {
	cache, err := OpenCache(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer cache.Close()
	idx := New(nil, cache, 2)
	_, ok := idx.Cosine(context.Background(), "a", "b")
	if ok {
		t.Fatalf("expected ok=false with no provider")
	}
}
