// Package scoring implements the deterministic, weighted feature
// combination that turns a pair of NormalizedNames (plus an optional
// cosine similarity) into a ScoredCandidate. The Scorer is
// total and pure: it never signals an error and its output depends only
// on its inputs.
package scoring

import (
	"github.com/cognicore/companymatch/pkg/companymatch/config"
	"github.com/cognicore/companymatch/pkg/companymatch/fuzzy"
	"github.com/cognicore/companymatch/pkg/companymatch/normalize"
)

// ScoredCandidate is the Scorer's output for one (a, b) pair.
type ScoredCandidate struct {
	BID      int
	Score    float64
	Features map[string]float64
	Reasons  []string
}

// Scorer holds the static word lists and weights it scores with. It is
// immutable after construction and safe for concurrent read-only use.
type Scorer struct {
	words   normalize.WordLists
	scoring config.ScoringWeights
	pen     config.Penalties
	thr     config.Thresholds
	acrMin  int
}

// New builds a Scorer from the shared MatchConfig and word lists.
func New(cfg config.MatchConfig, words normalize.WordLists) *Scorer {
	return &Scorer{
		words:   words,
		scoring: cfg.Scoring,
		pen:     cfg.Penalties,
		thr:     cfg.Thresholds,
		acrMin:  cfg.Acronym.MinLength,
	}
}

// Score computes a ScoredCandidate for b_id against (a, b), optionally
// using a precomputed cosine similarity. cosine is ignored
// (treated as absent) if hasCosine is false.
func (s *Scorer) Score(bID int, a, b normalize.NormalizedName, cosine float64, hasCosine bool) ScoredCandidate {
	aCore, aCoreStr := normalize.EffectiveCore(s.words, a)
	bCore, bCoreStr := normalize.EffectiveCore(s.words, b)

	features := make(map[string]float64)
	var reasons []string

	tokenOverlap := tokenOverlap(aCore, bCore)
	features["token_overlap"] = tokenOverlap
	if tokenOverlap >= 0.8 {
		reasons = append(reasons, "core_overlap_high")
	}

	fuzzySim := fuzzy.WeightedRatio(aCoreStr, bCoreStr)
	features["fuzzy_similarity"] = fuzzySim
	if fuzzySim >= 0.85 {
		reasons = append(reasons, "fuzzy_high")
	}

	acronymScore := s.acronymScore(a, aCore, b, bCore)
	features["acronym_score"] = acronymScore
	switch {
	case acronymScore >= 0.9:
		reasons = append(reasons, "acronym_match_strong")
	case acronymScore == 0.3:
		reasons = append(reasons, "acronym_match_weak")
	}

	semantic := 0.0
	semanticApplicable := hasCosine && len(aCore) >= 2 && len(bCore) >= 2
	if semanticApplicable {
		semantic = cosine
		if semantic < 0 {
			semantic = 0
		}
	}
	features["semantic_similarity"] = semantic
	if semantic >= 0.85 {
		reasons = append(reasons, "semantic_boost")
	}

	numPenalty, numReasons := s.numericPenalty(a.NumericTokens, b.NumericTokens)
	reasons = append(reasons, numReasons...)

	shortPenalty := 0.0
	if minLen(len(a.CoreTokens), len(b.CoreTokens)) <= 1 {
		shortPenalty = s.pen.Short
		reasons = append(reasons, "short_name_guardrail")
	}

	raw := s.combine(tokenOverlap, fuzzySim, acronymScore, semantic, semanticApplicable)
	score := clamp(raw-numPenalty-shortPenalty, 0, 1)

	lexicalRaw := s.combine(tokenOverlap, fuzzySim, acronymScore, 0, false)
	lexicalOnly := clamp(lexicalRaw-numPenalty-shortPenalty, 0, 1)
	if lexicalOnly < s.thr.THigh {
		capped := s.thr.THigh - 0.01
		if score > capped {
			score = capped
			reasons = append(reasons, "semantic_capped")
		}
	}

	return ScoredCandidate{
		BID:      bID,
		Score:    score,
		Features: features,
		Reasons:  reasons,
	}
}

// combine computes W·features / active-weight-sum. token
// and fuzzy are always active; acronym is active iff its score is
// positive; semantic is active iff computed (semanticApplicable) and
// positive.
func (s *Scorer) combine(tokenOverlap, fuzzySim, acronymScore, semantic float64, semanticApplicable bool) float64 {
	activeWeight := s.scoring.Token + s.scoring.Fuzzy
	weightedSum := s.scoring.Token*tokenOverlap + s.scoring.Fuzzy*fuzzySim

	if acronymScore > 0 {
		activeWeight += s.scoring.Acronym
		weightedSum += s.scoring.Acronym * acronymScore
	}
	if semanticApplicable && semantic > 0 {
		activeWeight += s.scoring.Semantic
		weightedSum += s.scoring.Semantic * semantic
	}

	if activeWeight <= 0 {
		return 0
	}
	return weightedSum / activeWeight
}

func (s *Scorer) acronymScore(a normalize.NormalizedName, aCore []string, b normalize.NormalizedName, bCore []string) float64 {
	switch normalize.AcronymRelation(s.words, a.Acronym, aCore, b.Acronym, bCore) {
	case "exact":
		return 1.0
	case "initialism":
		return 0.9
	case "collision":
		return 0.3
	default:
		return 0.0
	}
}

// numericPenalty applies the numeric_mismatch / numeric_one_side_only
// rules, returning the total subtraction and any reason
// tags.
func (s *Scorer) numericPenalty(aNum, bNum []string) (float64, []string) {
	aHas := len(aNum) > 0
	bHas := len(bNum) > 0
	if aHas && bHas {
		if !sameSet(aNum, bNum) {
			return s.pen.NumMismatch, []string{"numeric_mismatch"}
		}
		return 0, nil
	}
	if aHas != bHas {
		return s.pen.NumOneSide, []string{"numeric_one_side_only"}
	}
	return 0, nil
}

// tokenOverlap computes |A∩B| / min(|A|,|B|) where A and B are the
// *distinct*-token sets of a and b, not the raw (possibly repeating)
// token slices.
func tokenOverlap(a, b []string) float64 {
	aSet := toSet(a)
	bSet := toSet(b)
	if len(aSet) == 0 || len(bSet) == 0 {
		return 0
	}
	overlap := 0
	for t := range aSet {
		if _, ok := bSet[t]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(minLen(len(aSet), len(bSet)))
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	aSet := make(map[string]int, len(a))
	for _, v := range a {
		aSet[v]++
	}
	for _, v := range b {
		if aSet[v] == 0 {
			return false
		}
		aSet[v]--
	}
	return true
}

func minLen(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
