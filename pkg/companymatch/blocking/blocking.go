// Package blocking builds an inverted index from blocking keys to B-ids
// and retrieves a capped candidate set for a query name.
package blocking

import (
	"sort"

	"github.com/cognicore/companymatch/pkg/companymatch/normalize"
)

// SourceEmbedding is the pseudo key-type tagging candidates contributed by
// the embedding engine rather than a lexical posting.
const SourceEmbedding = "embedding"

// Candidate names one B-id retrieval surfaced, and the set of sources
// (key types, or "embedding") that hit it.
type Candidate struct {
	BID     int
	Sources map[string]struct{}
}

func newCandidate(bID int) *Candidate {
	return &Candidate{BID: bID, Sources: make(map[string]struct{})}
}

func (c *Candidate) hitCount() int { return len(c.Sources) }

// Index is an inverted posting list from (KeyType, value) to the set of
// B-ids carrying that key. It is built once over preprocessed B and never
// mutated afterward.
type Index struct {
	postings map[normalize.KeyType]map[string][]int
	size     int
}

// Build indexes every key of every B NormalizedName. names is indexed by
// b_id: its position in the slice is the canonical b_id.
func Build(names []normalize.NormalizedName) *Index {
	idx := &Index{
		postings: make(map[normalize.KeyType]map[string][]int),
		size:     len(names),
	}
	for bID, n := range names {
		for keyType, value := range n.Keys {
			if value == "" {
				continue
			}
			byValue, ok := idx.postings[keyType]
			if !ok {
				byValue = make(map[string][]int)
				idx.postings[keyType] = byValue
			}
			byValue[value] = append(byValue[value], bID)
		}
	}
	return idx
}

// Options bounds retrieval: lexical cap, total cap, and whether k_first
// postings participate.
type Options struct {
	MaxLex    int
	MaxTotal  int
	UseKFirst bool
}

// Retrieve returns the capped candidate set for a query NormalizedName,
// optionally unioning in embedding-supplied b_ids (already in descending
// similarity order, capped to C_emb by the caller). Retrieval never fails:
// an unmatched query yields an empty slice.
func (idx *Index) Retrieve(a normalize.NormalizedName, embeddingBIDs []int, opt Options) []Candidate {
	byBID := make(map[int]*Candidate)

	for keyType, value := range a.Keys {
		if keyType == normalize.KeyFirst && !opt.UseKFirst {
			continue
		}
		if value == "" {
			continue
		}
		byValue, ok := idx.postings[keyType]
		if !ok {
			continue
		}
		for _, bID := range byValue[value] {
			c, ok := byBID[bID]
			if !ok {
				c = newCandidate(bID)
				byBID[bID] = c
			}
			c.Sources[string(keyType)] = struct{}{}
		}
	}

	lexicalKept := capByHits(byBID, opt.MaxLex)
	union := make(map[int]*Candidate, len(lexicalKept)+len(embeddingBIDs))
	for bID := range lexicalKept {
		union[bID] = byBID[bID]
	}

	if len(embeddingBIDs) > 0 {
		for _, bID := range embeddingBIDs {
			c, ok := byBID[bID]
			if !ok {
				c = newCandidate(bID)
				byBID[bID] = c
			}
			c.Sources[SourceEmbedding] = struct{}{}
			union[bID] = c
		}
	}

	final := capSet(union, opt.MaxTotal)
	out := make([]Candidate, 0, len(final))
	for _, c := range final {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BID < out[j].BID })
	return out
}

// capByHits keeps the top n distinct b_ids by hit count (most key-type
// hits wins; b_id ascending breaks ties), returning the surviving set of
// b_ids. If the index has n or fewer matches, everything survives.
func capByHits(byBID map[int]*Candidate, n int) map[int]struct{} {
	if n <= 0 || len(byBID) <= n {
		kept := make(map[int]struct{}, len(byBID))
		for bID := range byBID {
			kept[bID] = struct{}{}
		}
		return kept
	}
	ordered := rankByHits(byBID)
	kept := make(map[int]struct{}, n)
	for _, c := range ordered[:n] {
		kept[c.BID] = struct{}{}
	}
	return kept
}

func capSet(byBID map[int]*Candidate, n int) []*Candidate {
	if n <= 0 || len(byBID) <= n {
		return rankByHits(byBID)
	}
	ordered := rankByHits(byBID)
	return ordered[:n]
}

// rankByHits sorts candidates by hit count descending, b_id ascending:
// any deterministic tie-break is valid, so this one is fixed for
// reproducibility.
func rankByHits(byBID map[int]*Candidate) []*Candidate {
	ordered := make([]*Candidate, 0, len(byBID))
	for _, c := range byBID {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		hi, hj := ordered[i].hitCount(), ordered[j].hitCount()
		if hi != hj {
			return hi > hj
		}
		return ordered[i].BID < ordered[j].BID
	})
	return ordered
}

// Size returns the number of B entries the index was built over.
func (idx *Index) Size() int { return idx.size }
