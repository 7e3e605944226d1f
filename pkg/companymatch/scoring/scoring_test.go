package scoring

import (
	"testing"

	"github.com/cognicore/companymatch/pkg/companymatch/config"
	"github.com/cognicore/companymatch/pkg/companymatch/normalize"
)

func testScorer() *Scorer {
	return New(config.Default(), normalize.WordLists{})
}

func nn(core string, tokens []string, acronym string, numeric []string) normalize.NormalizedName {
	return normalize.NormalizedName{
		CoreString:    core,
		CoreTokens:    tokens,
		Acronym:       acronym,
		NumericTokens: numeric,
	}
}

func TestScore_IdenticalNamesScoreHigh(t *testing.T) {
	s := testScorer()
	a := nn("acme widgets", []string{"acme", "widgets"}, "", nil)
	b := nn("acme widgets", []string{"acme", "widgets"}, "", nil)
	sc := s.Score(0, a, b, 0, false)
	if sc.Score < 0.9 {
		t.Fatalf("expected high score for identical names, got %v", sc.Score)
	}
}

func TestScore_RangeAlwaysZeroToOne(t *testing.T) {
	s := testScorer()
	cases := [][2]normalize.NormalizedName{
		{nn("acme", []string{"acme"}, "", nil), nn("zephyr", []string{"zephyr"}, "", nil)},
		{nn("", nil, "", nil), nn("", nil, "", nil)},
		{nn("general electric", []string{"general", "electric"}, "ge", []string{"2020"}),
			nn("general electric", []string{"general", "electric"}, "ge", []string{"2021"})},
	}
	for _, c := range cases {
		sc := s.Score(0, c[0], c[1], 0.9, true)
		if sc.Score < 0 || sc.Score > 1 {
			t.Fatalf("score out of range: %v", sc.Score)
		}
	}
}

func TestScore_NumericMismatchPenalized(t *testing.T) {
	s := testScorer()
	a := nn("company 2020", []string{"company", "2020"}, "", []string{"2020"})
	b := nn("company 2021", []string{"company", "2021"}, "", []string{"2021"})
	sc := s.Score(0, a, b, 0, false)
	found := false
	for _, r := range sc.Reasons {
		if r == "numeric_mismatch" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected numeric_mismatch reason, got %v", sc.Reasons)
	}
}

func TestScore_ShortNameGuardrail(t *testing.T) {
	s := testScorer()
	a := nn("acme", []string{"acme"}, "", nil)
	b := nn("acme", []string{"acme"}, "", nil)
	sc := s.Score(0, a, b, 0, false)
	found := false
	for _, r := range sc.Reasons {
		if r == "short_name_guardrail" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected short_name_guardrail reason, got %v", sc.Reasons)
	}
}

func TestScore_SemanticCapPreventsEmbeddingOnlyMatch(t *testing.T) {
	s := testScorer()
	// Lexically near-unrelated names but supply a very high cosine; the
	// semantic cap must keep the combined score below T_high.
	a := nn("acme widgets group", []string{"acme", "widgets", "group"}, "", nil)
	b := nn("zephyr holdings corp", []string{"zephyr", "holdings", "corp"}, "", nil)
	sc := s.Score(0, a, b, 0.99, true)
	if sc.Score >= config.Default().Thresholds.THigh {
		t.Fatalf("semantic cap violated: score=%v t_high=%v", sc.Score, config.Default().Thresholds.THigh)
	}
}

func TestScore_SemanticNotAppliedWhenCoreTooShort(t *testing.T) {
	s := testScorer()
	a := nn("acme", []string{"acme"}, "", nil)
	b := nn("acme", []string{"acme"}, "", nil)
	sc := s.Score(0, a, b, 0.9, true)
	if sc.Features["semantic_similarity"] != 0 {
		t.Fatalf("expected semantic_similarity 0 when a core has <2 tokens, got %v", sc.Features["semantic_similarity"])
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := testScorer()
	a := nn("acme widgets", []string{"acme", "widgets"}, "", nil)
	b := nn("acme widget group", []string{"acme", "widget", "group"}, "", nil)
	first := s.Score(0, a, b, 0.4, true)
	second := s.Score(0, a, b, 0.4, true)
	if first.Score != second.Score {
		t.Fatalf("scorer is not deterministic: %v vs %v", first.Score, second.Score)
	}
}
