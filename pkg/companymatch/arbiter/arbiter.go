// Package arbiter implements the strictly-gated external LLM judge of
// last resort for ambiguous company-name pairs: the Arbiter itself owns
// every eligibility and caching rule, while a pluggable Provider supplies
// judgment only, never policy.
package arbiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oklog/ulid/v2"

	"github.com/cognicore/companymatch/pkg/companymatch/config"
	"github.com/cognicore/companymatch/pkg/companymatch/match/decision"
	"github.com/cognicore/companymatch/pkg/companymatch/normalize"
	"github.com/cognicore/companymatch/pkg/companymatch/scoring"
)

// Provider is the external collaborator: a text-in, text-out judge.
type Provider interface {
	Query(ctx context.Context, prompt string) (string, error)
}

// Response is the arbiter's structured judgment, whether it came from the
// provider, the cache, or a synthetic failure record.
type Response struct {
	Decision   string // "SAME" | "DIFFERENT" | "UNSURE"
	Confidence float64
	Reason     string
	// CorrelationID tags synthetic failure responses for log correlation,
	// empty otherwise.
	CorrelationID string
}

const cacheSize = 8192

// Arbiter enforces all eligibility gating itself; the Provider supplies
// judgment only, never policy.
type Arbiter struct {
	cfg      config.ArbiterConfig
	provider Provider

	mu          sync.Mutex
	cache       *lru.Cache[string, Response]
	globalCalls int
}

// New builds an Arbiter. provider may be nil, in which case every
// arbitration attempt returns a synthetic "no_provider" REVIEW.
func New(cfg config.ArbiterConfig, provider Provider) *Arbiter {
	cache, _ := lru.New[string, Response](cacheSize)
	return &Arbiter{cfg: cfg, provider: provider, cache: cache}
}

// CallsMade returns the number of provider calls counted against the
// global cap so far: only provider replies that parse successfully count.
// Cache hits and failed attempts (no provider, transport error, parse
// error) do not.
func (a *Arbiter) CallsMade() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.globalCalls
}

// IsEligible applies every gating rule an arbitration attempt must pass.
// score is the best candidate's score; runnerUp is its margin partner's
// score, if any.
func (a *Arbiter) IsEligible(aName, bName normalize.NormalizedName, hasRunnerUp bool, score, runnerUp float64) bool {
	if !a.cfg.Enabled {
		return false
	}

	if numericConflict(aName.NumericTokens, bName.NumericTokens) {
		return false
	}

	if len(aName.CoreTokens) < 2 && len(bName.CoreTokens) < 2 {
		return false
	}

	if hasRunnerUp {
		margin := score - runnerUp
		if margin >= a.cfg.MinConfidence {
			return false
		}
	}

	a.mu.Lock()
	calls := a.globalCalls
	a.mu.Unlock()
	if calls >= a.cfg.GlobalCap {
		return false
	}

	if a.cfg.ForbidBothSingleToken {
		if len(aName.CoreTokens) == 1 && len(bName.CoreTokens) == 1 {
			return false
		}
	}

	return true
}

func numericConflict(aNum, bNum []string) bool {
	if len(aNum) == 0 || len(bNum) == 0 {
		return false
	}
	return !sameSet(aNum, bNum)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		if counts[v] == 0 {
			return false
		}
		counts[v]--
	}
	return true
}

// Arbitrate queries the provider for pair (a, b), respecting the
// order-sensitive cache, and maps the response to a Decision. Call
// IsEligible first; Arbitrate does not re-check gating.
func (a *Arbiter) Arbitrate(ctx context.Context, aName, bName normalize.NormalizedName, scored scoring.ScoredCandidate, hasRunnerUp bool, runnerUp float64) (decision.Decision, Response) {
	key := cacheKey(aName.CoreString, bName.CoreString)

	if cached, ok := a.cache.Get(key); ok {
		return a.mapResponse(cached), cached
	}

	if a.provider == nil {
		resp := Response{Decision: "UNSURE", Confidence: 0, Reason: "no_provider", CorrelationID: ulid.Make().String()}
		a.cache.Add(key, resp)
		return decision.Review, resp
	}

	prompt := buildPrompt(aName, bName, scored, hasRunnerUp, runnerUp)
	raw, err := a.provider.Query(ctx, prompt)
	if err != nil {
		resp := Response{Decision: "UNSURE", Confidence: 0, Reason: "error", CorrelationID: ulid.Make().String()}
		a.cache.Add(key, resp)
		return decision.Review, resp
	}

	resp, perr := parseResponse(raw)
	if perr != nil {
		resp = Response{Decision: "UNSURE", Confidence: 0, Reason: "parse_error", CorrelationID: ulid.Make().String()}
		a.cache.Add(key, resp)
		return decision.Review, resp
	}

	a.mu.Lock()
	a.globalCalls++
	a.mu.Unlock()
	a.cache.Add(key, resp)

	return a.mapResponse(resp), resp
}

func (a *Arbiter) mapResponse(r Response) decision.Decision {
	if r.Decision == "SAME" && r.Confidence >= a.cfg.MinConfidence {
		return decision.Match
	}
	if r.Decision == "DIFFERENT" && r.Confidence >= a.cfg.MinConfidence {
		return decision.NoMatch
	}
	return decision.Review
}

func cacheKey(aCore, bCore string) string {
	aHash := sha256.Sum256([]byte(aCore))
	bHash := sha256.Sum256([]byte(bCore))
	return hex.EncodeToString(aHash[:8]) + "::" + hex.EncodeToString(bHash[:8])
}

type promptEvidence struct {
	NameAOriginal string         `json:"name_a_original"`
	NameBOriginal string         `json:"name_b_original"`
	NameACore     string         `json:"name_a_core"`
	NameBCore     string         `json:"name_b_core"`
	ATokens       []string       `json:"a_tokens"`
	BTokens       []string       `json:"b_tokens"`
	AAcronym      string         `json:"a_acronym"`
	BAcronym      string         `json:"b_acronym"`
	NumericA      []string       `json:"numeric_tokens_a"`
	NumericB      []string       `json:"numeric_tokens_b"`
	Features      map[string]any `json:"features"`
}

func buildPrompt(a, b normalize.NormalizedName, scored scoring.ScoredCandidate, hasRunnerUp bool, runnerUp float64) string {
	margin := scored.Score
	if hasRunnerUp {
		margin = scored.Score - runnerUp
	}
	ev := promptEvidence{
		NameAOriginal: a.Original,
		NameBOriginal: b.Original,
		NameACore:     a.CoreString,
		NameBCore:     b.CoreString,
		ATokens:       a.CoreTokens,
		BTokens:       b.CoreTokens,
		AAcronym:      a.Acronym,
		BAcronym:      b.Acronym,
		NumericA:      a.NumericTokens,
		NumericB:      b.NumericTokens,
		Features: map[string]any{
			"fuzzy":               scored.Features["fuzzy_similarity"],
			"token_overlap":       scored.Features["token_overlap"],
			"acronym_score":       scored.Features["acronym_score"],
			"embedding_cosine":    scored.Features["semantic_similarity"],
			"deterministic_score": scored.Score,
			"margin":              margin,
		},
	}

	payload, _ := json.MarshalIndent(ev, "", "  ")
	var b2 strings.Builder
	b2.WriteString("You are a company name matching expert. Determine if these two entries refer to the SAME company or DIFFERENT companies.\n\n")
	b2.WriteString("Evidence:\n")
	b2.Write(payload)
	b2.WriteString("\n\nRespond with a JSON object:\n")
	b2.WriteString(`{"decision": "SAME|DIFFERENT|UNSURE", "confidence": 0.0-1.0, "reason": "short_label"}`)
	b2.WriteString("\nOnly output the JSON object, nothing else.")
	return b2.String()
}

func parseResponse(raw string) (Response, error) {
	var data struct {
		Decision   string  `json:"decision"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &data); err != nil {
		return Response{}, fmt.Errorf("arbiter: parse response: %w", err)
	}
	if data.Decision == "" {
		data.Decision = "UNSURE"
	}
	return Response{Decision: data.Decision, Confidence: data.Confidence, Reason: data.Reason}, nil
}
