package arbiter

import (
	"context"
	"testing"

	"github.com/cognicore/companymatch/pkg/companymatch/config"
	"github.com/cognicore/companymatch/pkg/companymatch/match/decision"
	"github.com/cognicore/companymatch/pkg/companymatch/normalize"
	"github.com/cognicore/companymatch/pkg/companymatch/scoring"
)

type fakeProvider struct {
	calls    int
	response string
	err      error
}

func (f *fakeProvider) Query(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func twoTokenName(core string) normalize.NormalizedName {
	return normalize.NormalizedName{CoreString: core, CoreTokens: []string{"a", "b"}}
}

func TestIsEligible_DisabledNeverEligible(t *testing.T) {
	cfg := config.ArbiterConfig{Enabled: false}
	a := New(cfg, nil)
	if a.IsEligible(twoTokenName("x"), twoTokenName("y"), false, 0.8, 0) {
		t.Fatalf("expected ineligible when disabled")
	}
}

func TestIsEligible_NumericConflictExcludes(t *testing.T) {
	cfg := config.ArbiterConfig{Enabled: true, GlobalCap: 10, MinConfidence: 0.75}
	a := New(cfg, nil)
	aName := normalize.NormalizedName{CoreTokens: []string{"a", "b"}, NumericTokens: []string{"2020"}}
	bName := normalize.NormalizedName{CoreTokens: []string{"a", "b"}, NumericTokens: []string{"2021"}}
	if a.IsEligible(aName, bName, false, 0.8, 0) {
		t.Fatalf("expected ineligible on numeric conflict")
	}
}

func TestIsEligible_CloseRaceRequired(t *testing.T) {
	cfg := config.ArbiterConfig{Enabled: true, GlobalCap: 10, MinConfidence: 0.75}
	a := New(cfg, nil)
	// margin 0.9-0.1=0.8 >= min_confidence(0.75): not a close race, ineligible.
	if a.IsEligible(twoTokenName("x"), twoTokenName("y"), true, 0.9, 0.1) {
		t.Fatalf("expected ineligible when margin clears min_confidence")
	}
	// margin 0.8-0.78=0.02 < 0.75: close race, eligible.
	if !a.IsEligible(twoTokenName("x"), twoTokenName("y"), true, 0.8, 0.78) {
		t.Fatalf("expected eligible on close race")
	}
}

func TestIsEligible_GlobalCapExhausted(t *testing.T) {
	cfg := config.ArbiterConfig{Enabled: true, GlobalCap: 0, MinConfidence: 0.75}
	a := New(cfg, nil)
	if a.IsEligible(twoTokenName("x"), twoTokenName("y"), false, 0.8, 0) {
		t.Fatalf("expected ineligible when global cap is 0")
	}
}

func TestIsEligible_BothSingleTokenForbidden(t *testing.T) {
	cfg := config.ArbiterConfig{Enabled: true, GlobalCap: 10, MinConfidence: 0.75, ForbidBothSingleToken: true}
	a := New(cfg, nil)
	single := normalize.NormalizedName{CoreTokens: []string{"acme"}}
	if a.IsEligible(single, single, false, 0.8, 0) {
		t.Fatalf("expected ineligible when both sides are single-token")
	}
}

func TestArbitrate_NoProviderReturnsReview(t *testing.T) {
	cfg := config.ArbiterConfig{Enabled: true, MinConfidence: 0.75}
	a := New(cfg, nil)
	d, resp := a.Arbitrate(context.Background(), twoTokenName("x"), twoTokenName("y"), scoring.ScoredCandidate{}, false, 0)
	if d != decision.Review {
		t.Fatalf("decision = %v, want REVIEW", d)
	}
	if resp.Reason != "no_provider" {
		t.Fatalf("reason = %q, want no_provider", resp.Reason)
	}
	if resp.CorrelationID == "" {
		t.Fatalf("expected correlation id on synthetic failure")
	}
}

func TestArbitrate_SameHighConfidenceMapsMatch(t *testing.T) {
	cfg := config.ArbiterConfig{Enabled: true, MinConfidence: 0.75, GlobalCap: 10}
	p := &fakeProvider{response: `{"decision":"SAME","confidence":0.9,"reason":"same_entity"}`}
	a := New(cfg, p)
	d, resp := a.Arbitrate(context.Background(), twoTokenName("acme"), twoTokenName("acme inc"), scoring.ScoredCandidate{}, false, 0)
	if d != decision.Match {
		t.Fatalf("decision = %v, want MATCH", d)
	}
	if resp.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", resp.Confidence)
	}
	if a.CallsMade() != 1 {
		t.Fatalf("calls made = %d, want 1", a.CallsMade())
	}
}

func TestArbitrate_CacheHitDoesNotConsumeCap(t *testing.T) {
	cfg := config.ArbiterConfig{Enabled: true, MinConfidence: 0.75, GlobalCap: 10}
	p := &fakeProvider{response: `{"decision":"DIFFERENT","confidence":0.9,"reason":"diff"}`}
	a := New(cfg, p)
	aName, bName := twoTokenName("acme"), twoTokenName("zephyr")
	a.Arbitrate(context.Background(), aName, bName, scoring.ScoredCandidate{}, false, 0)
	if a.CallsMade() != 1 {
		t.Fatalf("expected 1 call after first arbitration, got %d", a.CallsMade())
	}
	a.Arbitrate(context.Background(), aName, bName, scoring.ScoredCandidate{}, false, 0)
	if a.CallsMade() != 1 {
		t.Fatalf("expected cache hit to avoid second call, calls = %d", a.CallsMade())
	}
	if p.calls != 1 {
		t.Fatalf("expected provider queried once, got %d", p.calls)
	}
}

func TestArbitrate_ParseErrorReturnsReview(t *testing.T) {
	cfg := config.ArbiterConfig{Enabled: true, MinConfidence: 0.75, GlobalCap: 10}
	p := &fakeProvider{response: "not json"}
	a := New(cfg, p)
	d, resp := a.Arbitrate(context.Background(), twoTokenName("x"), twoTokenName("y"), scoring.ScoredCandidate{}, false, 0)
	if d != decision.Review {
		t.Fatalf("decision = %v, want REVIEW", d)
	}
	if resp.Reason != "parse_error" {
		t.Fatalf("reason = %q, want parse_error", resp.Reason)
	}
	if a.CallsMade() != 0 {
		t.Fatalf("expected parse error to not consume global cap, calls = %d", a.CallsMade())
	}
}
