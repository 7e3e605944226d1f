// Package match orchestrates the full company-name matching pipeline:
// normalization, blocking, optional embedding lookups, scoring, decision
// banding, and optional arbiter escalation. Its optional parallel
// match_all preserves input order via a pre-sized result slice indexed
// by position, regardless of completion order.
package match

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/companymatch/pkg/companymatch/arbiter"
	"github.com/cognicore/companymatch/pkg/companymatch/blocking"
	"github.com/cognicore/companymatch/pkg/companymatch/config"
	"github.com/cognicore/companymatch/pkg/companymatch/embedding"
	"github.com/cognicore/companymatch/pkg/companymatch/internalerr"
	"github.com/cognicore/companymatch/pkg/companymatch/manualmatch"
	"github.com/cognicore/companymatch/pkg/companymatch/match/decision"
	"github.com/cognicore/companymatch/pkg/companymatch/normalize"
	"github.com/cognicore/companymatch/pkg/companymatch/scoring"

	"golang.org/x/sync/errgroup"
)

// Result is one A query's outcome.
type Result struct {
	AID           int
	AName         string
	BID           int
	HasB          bool
	BName         string
	Decision      decision.Decision
	Score         float64
	RunnerUpScore float64
	HasRunnerUp   bool
	Margin        float64
	HasMargin     bool
	UsedArbiter   bool
	UsedManual    bool
	Reasons       []string
	Debug         Debug
}

// Debug carries diagnostic detail a caller may surface for review UIs.
type Debug struct {
	TopCandidates  []TopCandidate
	Warnings       []string
	CandidateCount int
}

// TopCandidate is one entry in Result.Debug.TopCandidates.
type TopCandidate struct {
	BID     int
	Score   float64
	Reasons []string
}

// Stats aggregates telemetry across every MatchOne/MatchAll call made on a
// Matcher since it was constructed.
type Stats struct {
	Comparisons      int
	NoCandidateCount int
	DecisionCounts   map[decision.Decision]int
	ArbiterCalls     int
	EmbeddingCalls   int
	EmbeddingHits    int
	ManualMatches    int
}

// Matcher owns the preprocessed B side and every stateful collaborator
// (blocking index, embedding index, arbiter). All shared state is written
// only by the owning Matcher; concurrent per-query reads are safe once
// preprocessing has completed.
type Matcher struct {
	cfg   config.MatchConfig
	words normalize.WordLists
	norm  normalize.Config

	blockingOpt blocking.Options
	index       *blocking.Index
	embIndex    *embedding.Index
	scorer      *scoring.Scorer
	arb         *arbiter.Arbiter
	manual      manualmatch.Lookup

	bNames       []normalize.NormalizedName
	preprocessed bool

	mu    sync.Mutex
	stats Stats
}

// noManualMatches is the default manualmatch.Lookup when the caller
// supplies none: every lookup misses.
type noManualMatches struct{}

func (noManualMatches) Lookup(string) (string, string, bool) { return "", "", false }

// New constructs a Matcher. embProvider/arbProvider may be nil; the
// corresponding feature is then simply unavailable — external provider
// failures or absence are never fatal.
func New(cfg config.MatchConfig, words normalize.WordLists, embProvider embedding.Provider, arbProvider arbiter.Provider, manual manualmatch.Lookup) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if embProvider == nil {
		cfg.Embedding.Enabled = false
	}

	var embIndex *embedding.Index
	if cfg.Embedding.Enabled {
		cache, err := embedding.OpenCache(context.Background(), cfg.Embedding.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("companymatch/match: open embedding cache: %w", err)
		}
		embIndex = embedding.New(embProvider, cache, cfg.Embedding.BatchSize)
	}

	if manual == nil {
		manual = noManualMatches{}
	}

	return &Matcher{
		cfg:   cfg,
		words: words,
		norm:  normalize.FromMatchConfig(cfg, words),
		blockingOpt: blocking.Options{
			MaxLex:    cfg.Candidates.MaxLex,
			MaxTotal:  cfg.Candidates.MaxTotal,
			UseKFirst: cfg.Candidates.UseKFirst,
		},
		embIndex: embIndex,
		scorer:   scoring.New(cfg, words),
		arb:      arbiter.New(cfg.Arbiter, arbProvider),
		manual:   manual,
		stats:    Stats{DecisionCounts: make(map[decision.Decision]int)},
	}, nil
}

// PreprocessB normalizes every B name, builds the blocking index, and (if
// enabled) the embedding index over B core strings.
func (m *Matcher) PreprocessB(ctx context.Context, names []string) error {
	m.bNames = make([]normalize.NormalizedName, len(names))
	for i, n := range names {
		m.bNames[i] = normalize.Normalize(n, m.norm)
	}
	m.index = blocking.Build(m.bNames)

	if m.cfg.Embedding.Enabled {
		coreStrings := make([]string, len(m.bNames))
		for i, n := range m.bNames {
			coreStrings[i] = n.CoreString
		}
		if err := m.embIndex.Build(ctx, coreStrings); err != nil {
			return fmt.Errorf("companymatch/match: build embedding index: %w", err)
		}
	}

	m.preprocessed = true
	return nil
}

// MatchOne matches a single A name against the preprocessed B side
//. aID is an opaque caller-supplied identifier
// echoed back on Result.AID.
func (m *Matcher) MatchOne(ctx context.Context, aName string, aID int) (Result, error) {
	if !m.preprocessed {
		return Result{}, internalerr.ErrNotPreprocessed
	}

	if bName, _, ok := m.manual.Lookup(aName); ok {
		m.recordManualMatch()
		bID, hasB := resolveManualBID(bName, m.bNames)
		res := Result{
			AID: aID, AName: aName,
			HasB:       hasB,
			BName:      bName,
			Decision:   decision.Match,
			Score:      1.0,
			UsedManual: true,
			Reasons:    []string{"manual_match"},
		}
		if hasB {
			res.BID = bID
		}
		m.recordDecision(res.Decision)
		return res, nil
	}

	a := normalize.Normalize(aName, m.norm)

	var embeddingBIDs []int
	if m.cfg.Embedding.Enabled {
		ids, _, err := m.embIndex.Query(ctx, a.CoreString, m.cfg.Embedding.AnnNeighbors)
		if err != nil {
			return Result{}, fmt.Errorf("companymatch/match: embedding query: %w", err)
		}
		if maxEmb := m.cfg.Candidates.MaxEmb; maxEmb > 0 && len(ids) > maxEmb {
			ids = ids[:maxEmb]
		}
		embeddingBIDs = ids
		m.recordEmbeddingQuery()
	}

	candidates := m.index.Retrieve(a, embeddingBIDs, m.blockingOpt)
	m.recordComparison(len(candidates) == 0)

	if len(candidates) == 0 {
		res := Result{
			AID: aID, AName: a.Original,
			Decision: decision.NoMatch,
			Score:    0,
			Reasons:  []string{"no_candidates"},
		}
		m.recordDecision(res.Decision)
		return res, nil
	}

	scored := make([]scoring.ScoredCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.BID < 0 || cand.BID >= len(m.bNames) {
			return Result{}, internalerr.ErrBIDOutOfRange
		}
		b := m.bNames[cand.BID]

		var cosine float64
		var hasCosine bool
		if m.cfg.Embedding.Enabled {
			cosine, hasCosine = m.embIndex.Cosine(ctx, a.CoreString, b.CoreString)
		}
		scored = append(scored, m.scorer.Score(cand.BID, a, b, cosine, hasCosine))
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	best := scored[0]
	hasRunnerUp := len(scored) > 1
	var runnerUp, margin float64
	if hasRunnerUp {
		runnerUp = scored[1].Score
		margin = best.Score - runnerUp
	}

	d := m.decide(best.Score, hasRunnerUp, margin)
	usedArbiter := false

	if d == decision.Review && m.cfg.Arbiter.Enabled {
		topK := scored
		if len(topK) > m.cfg.Arbiter.TopK {
			topK = topK[:m.cfg.Arbiter.TopK]
		}
		for _, sc := range topK {
			bCand := m.bNames[sc.BID]
			scRunnerUp := hasRunnerUp
			var ru float64
			if len(topK) > 1 {
				ru = topK[1].Score
			} else {
				scRunnerUp = false
			}
			if !m.arb.IsEligible(a, bCand, scRunnerUp, sc.Score, ru) {
				continue
			}
			arbDecision, _ := m.arb.Arbitrate(ctx, a, bCand, sc, scRunnerUp, ru)
			m.recordArbiterCall()
			if arbDecision != decision.Review {
				d = arbDecision
				best = sc
				usedArbiter = true
				break
			}
		}
	}

	m.recordDecision(d)

	res := Result{
		AID: aID, AName: a.Original,
		Decision:      d,
		Score:         best.Score,
		RunnerUpScore: runnerUp,
		HasRunnerUp:   hasRunnerUp,
		Margin:        margin,
		HasMargin:     hasRunnerUp,
		UsedArbiter:   usedArbiter,
		Reasons:       best.Reasons,
		Debug: Debug{
			TopCandidates:  topCandidateDebug(scored),
			Warnings:       a.Meta.Warnings,
			CandidateCount: len(candidates),
		},
	}
	if d == decision.Match {
		res.BID = best.BID
		res.HasB = true
		res.BName = m.bNames[best.BID].Original
	}
	return res, nil
}

// MatchAll matches every A name in order, optionally precomputing A
// embeddings in batches first. Results preserve
// input order regardless of concurrency. ctx is checked before each A
// name; on cancellation the sequential path returns the results completed
// so far together with ctx's error, the concurrent path returns only the
// error.
func (m *Matcher) MatchAll(ctx context.Context, aNames []string, concurrency int) ([]Result, error) {
	if m.cfg.Embedding.Enabled {
		coreStrings := make([]string, len(aNames))
		for i, n := range aNames {
			coreStrings[i] = normalize.Normalize(n, m.norm).CoreString
		}
		if err := m.embIndex.Precompute(ctx, coreStrings); err != nil {
			return nil, fmt.Errorf("companymatch/match: precompute A embeddings: %w", err)
		}
	}

	results := make([]Result, len(aNames))
	if concurrency <= 1 {
		for i, name := range aNames {
			if err := ctx.Err(); err != nil {
				return results[:i], err
			}
			r, err := m.MatchOne(ctx, name, i)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, name := range aNames {
		i, name := i, name
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			r, err := m.MatchOne(egCtx, name, i)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Stats returns a snapshot of aggregate statistics accumulated so far.
func (m *Matcher) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[decision.Decision]int, len(m.stats.DecisionCounts))
	for k, v := range m.stats.DecisionCounts {
		counts[k] = v
	}
	s := m.stats
	s.DecisionCounts = counts
	if m.embIndex != nil {
		s.EmbeddingHits = m.embIndex.Stats().CacheHits
	}
	return s
}

func (m *Matcher) decide(bestScore float64, hasRunnerUp bool, margin float64) decision.Decision {
	t := m.cfg.Thresholds
	if bestScore <= t.TLow {
		return decision.NoMatch
	}
	if bestScore >= t.THigh {
		if !hasRunnerUp || margin >= t.Margin {
			return decision.Match
		}
	}
	return decision.Review
}

func (m *Matcher) recordComparison(noCandidates bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Comparisons++
	if noCandidates {
		m.stats.NoCandidateCount++
	}
}

func (m *Matcher) recordDecision(d decision.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.DecisionCounts[d]++
}

func (m *Matcher) recordArbiterCall() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.ArbiterCalls++
}

func (m *Matcher) recordEmbeddingQuery() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.EmbeddingCalls++
}

func (m *Matcher) recordManualMatch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.ManualMatches++
}

func topCandidateDebug(scored []scoring.ScoredCandidate) []TopCandidate {
	n := len(scored)
	if n > 5 {
		n = 5
	}
	out := make([]TopCandidate, n)
	for i := 0; i < n; i++ {
		out[i] = TopCandidate{BID: scored[i].BID, Score: scored[i].Score, Reasons: scored[i].Reasons}
	}
	return out
}

// resolveManualBID looks up the b_id of a manually matched B name among
// preprocessed B entries by exact original string. A manual pin whose
// b_name has no corresponding entry in the current B side (a stale pin,
// or called before PreprocessB) still reports the match; only the
// internal b_id is left unresolved.
func resolveManualBID(bName string, bNames []normalize.NormalizedName) (int, bool) {
	for i, n := range bNames {
		if n.Original == bName {
			return i, true
		}
	}
	return 0, false
}
