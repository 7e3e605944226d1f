package match

import (
	"context"
	"testing"

	"github.com/cognicore/companymatch/pkg/companymatch/config"
	"github.com/cognicore/companymatch/pkg/companymatch/manualmatch"
	"github.com/cognicore/companymatch/pkg/companymatch/match/decision"
	"github.com/cognicore/companymatch/pkg/companymatch/normalize"
)

func testWords() normalize.WordLists {
	return normalize.WordLists{
		Designators: map[string]struct{}{
			"inc": {}, "incorporated": {}, "llc": {}, "corp": {}, "corporation": {},
		},
	}
}

func newTestMatcher(t *testing.T, cfg config.MatchConfig) *Matcher {
	t.Helper()
	m, err := New(cfg, testWords(), nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestMatchOne_ExactMatch(t *testing.T) {
	m := newTestMatcher(t, config.Default())
	if err := m.PreprocessB(context.Background(), []string{"Apple Inc", "Microsoft Corp", "Google LLC"}); err != nil {
		t.Fatalf("PreprocessB: %v", err)
	}
	res, err := m.MatchOne(context.Background(), "Apple Inc.", 0)
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if res.Decision != decision.Match {
		t.Fatalf("decision = %v, want MATCH (score=%v, reasons=%v)", res.Decision, res.Score, res.Reasons)
	}
	if !res.HasB || res.BName != "Apple Inc" {
		t.Fatalf("expected match to Apple Inc, got %+v", res)
	}
}

func TestMatchOne_NoCandidatesReturnsNoMatch(t *testing.T) {
	m := newTestMatcher(t, config.Default())
	if err := m.PreprocessB(context.Background(), []string{"Widget Makers Ltd"}); err != nil {
		t.Fatalf("PreprocessB: %v", err)
	}
	res, err := m.MatchOne(context.Background(), "Zephyr Holdings", 0)
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if res.Decision != decision.NoMatch {
		t.Fatalf("decision = %v, want NO_MATCH", res.Decision)
	}
	if res.Reasons[0] != "no_candidates" {
		t.Fatalf("reasons = %v, want [no_candidates]", res.Reasons)
	}
}

func TestMatchOne_NumericMismatchYieldsReviewOrNoMatch(t *testing.T) {
	m := newTestMatcher(t, config.Default())
	if err := m.PreprocessB(context.Background(), []string{"Company 2020 Holdings"}); err != nil {
		t.Fatalf("PreprocessB: %v", err)
	}
	res, err := m.MatchOne(context.Background(), "Company 2021 Holdings", 0)
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if res.Decision == decision.Match {
		t.Fatalf("expected numeric mismatch to prevent MATCH, got %v (score=%v)", res.Decision, res.Score)
	}
}

func TestMatchOne_ErrorsWithoutPreprocessing(t *testing.T) {
	m := newTestMatcher(t, config.Default())
	_, err := m.MatchOne(context.Background(), "Acme", 0)
	if err == nil {
		t.Fatalf("expected error when matching before PreprocessB")
	}
}

func TestMatchAll_PreservesOrder(t *testing.T) {
	m := newTestMatcher(t, config.Default())
	if err := m.PreprocessB(context.Background(), []string{"Apple Inc", "Microsoft Corp", "Google LLC"}); err != nil {
		t.Fatalf("PreprocessB: %v", err)
	}
	results, err := m.MatchAll(context.Background(), []string{"Apple Inc.", "Microsoft Corporation", "Unknown Co"}, 4)
	if err != nil {
		t.Fatalf("MatchAll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.AID != i {
			t.Fatalf("result[%d].AID = %d, want %d (order not preserved)", i, r.AID, i)
		}
	}
}

func TestMatchOne_ManualMatchShortCircuitsPipeline(t *testing.T) {
	store := &manualmatch.Store{}
	store.Add(manualmatch.Match{ANames: []string{"Big Blue"}, BName: "IBM"})
	m, err := New(config.Default(), testWords(), nil, nil, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.PreprocessB(context.Background(), []string{"IBM"}); err != nil {
		t.Fatalf("PreprocessB: %v", err)
	}
	res, err := m.MatchOne(context.Background(), "Big Blue", 0)
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if !res.UsedManual || res.Decision != decision.Match || res.BName != "IBM" {
		t.Fatalf("expected manual match to IBM, got %+v", res)
	}
}

func TestMatcher_StatsTrackDecisions(t *testing.T) {
	m := newTestMatcher(t, config.Default())
	if err := m.PreprocessB(context.Background(), []string{"Apple Inc"}); err != nil {
		t.Fatalf("PreprocessB: %v", err)
	}
	if _, err := m.MatchOne(context.Background(), "Apple Inc.", 0); err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if _, err := m.MatchOne(context.Background(), "Totally Unrelated Co", 1); err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	stats := m.Stats()
	if stats.Comparisons == 0 {
		t.Fatalf("expected comparisons to be tracked")
	}
	total := 0
	for _, c := range stats.DecisionCounts {
		total += c
	}
	if total != 2 {
		t.Fatalf("expected 2 decisions tracked, got %d", total)
	}
}

