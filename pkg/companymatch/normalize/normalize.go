package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/cognicore/companymatch/pkg/companymatch/config"
)

var foldCase = cases.Fold()

var digitRun = regexp.MustCompile(`\d+`)

// Config is the subset of config.MatchConfig the Normalizer consults,
// plus the WordLists it was built with.
type Config struct {
	AcronymMinLength       int
	MinTokens              int
	StripPrefixDesignators bool
	StripCategories        []string
	Words                  WordLists
}

// NewWordLists adapts a config.WordLists (as returned by
// config.LoadWordLists, one field at a time from flat files) into the
// normalize.WordLists shape the pipeline consumes. The two types stay
// distinct: config's is a loader-result DTO, normalize's is the
// operational value its pure functions close over.
func NewWordLists(c config.WordLists) WordLists {
	reps := make([]Replacement, 0, len(c.Replacements))
	for _, r := range c.Replacements {
		reps = append(reps, Replacement{From: r.From, To: r.To})
	}
	return WordLists{
		Designators:      c.Designators,
		Aliases:          c.Aliases,
		AcronymCollision: c.AcronymCollision,
		Categories:       c.Categories,
		Replacements:     reps,
	}
}

// FromMatchConfig builds a normalize.Config from the shared MatchConfig
// and a loaded WordLists bundle.
func FromMatchConfig(mc config.MatchConfig, words WordLists) Config {
	minTokens := mc.Normalization.MinTokens
	if minTokens <= 0 {
		minTokens = 2
	}
	return Config{
		AcronymMinLength:       mc.Acronym.MinLength,
		MinTokens:              minTokens,
		StripPrefixDesignators: mc.Normalization.StripPrefixDesignators,
		StripCategories:        mc.Normalization.StripCategories,
		Words:                  words,
	}
}

// Normalize turns a raw company-name string into a NormalizedName. It is
// total: every input, including the empty string, produces a value
// rather than an error.
func Normalize(name string, cfg Config) NormalizedName {
	original := name
	var warnings []string

	// 1. Unicode fold: NFKC then case-fold, locale-independent.
	s := foldCase.String(norm.NFKC.String(name))
	normalizedText := s

	// 2. Symbol substitutions (ordered, replay-deterministic).
	s = strings.ReplaceAll(s, "&", " and ")
	for _, r := range cfg.Words.Replacements {
		s = strings.ReplaceAll(s, r.From, r.To)
	}

	// 3. Whitespace tokenize.
	rawSplit := strings.Fields(s)

	// 4. Per-token canonicalization.
	var rawTokens []string
	for _, t := range rawSplit {
		canonical := cfg.Words.canonicalize(t)
		if canonical != t {
			rawTokens = append(rawTokens, canonical)
			continue
		}
		cleaned := stripNonAlphanumeric(t)
		if cleaned != "" {
			rawTokens = append(rawTokens, cleaned)
		}
	}

	// 5. Whole-input acronym detection (on the original string).
	tentativeAcronym := acronymFromWholeInput(original, cfg.AcronymMinLength)

	// 6. Designator stripping with safety revert.
	minTokens := cfg.MinTokens
	if minTokens <= 0 {
		minTokens = 2
	}
	coreTokens, removedDesignators := cfg.Words.stripDesignators(rawTokens, cfg.StripPrefixDesignators, minTokens)
	// If removedDesignators is empty but coreTokens == rawTokens, either
	// nothing was a designator or stripDesignators reverted the strip;
	// both cases leave the tokens unchanged, so no further handling
	// is needed here.

	// 7. Category-word stripping (optional, iterated to fixed point).
	coreTokens = cfg.Words.stripCategoryWords(coreTokens, cfg.StripCategories, cfg.StripPrefixDesignators)

	if len(coreTokens) == 0 && len(rawTokens) > 0 {
		// Category stripping must never leave a non-empty input with zero
		// core tokens; fall back to the pre-category-strip tokens.
		coreTokens, _ = cfg.Words.stripDesignators(rawTokens, cfg.StripPrefixDesignators, minTokens)
	}

	// 8. Single-token warning.
	if len(coreTokens) == 1 {
		warnings = append(warnings, "single_token_core")
	}

	// 9. Numeric extraction.
	numericTokens := extractNumericTokens(coreTokens)

	coreString := strings.Join(coreTokens, " ")

	// 10. Acronym resolution.
	acronym := tentativeAcronym
	if acronym == "" {
		acronym = generateAcronym(coreTokens, cfg.AcronymMinLength)
	}
	if acronym == "" && len(coreTokens) == 1 {
		tok := coreTokens[0]
		if isAllAlpha(tok) && len([]rune(tok)) >= cfg.AcronymMinLength && isOriginalUppercaseIgnoringDots(original) {
			acronym = tok
		}
	}
	if acronym != "" && cfg.Words.isCollisionAcronym(acronym) {
		warnings = append(warnings, "collision_acronym")
	}

	// 11. Blocking keys.
	keys := generateBlockingKeys(coreTokens, coreString, acronym)

	return NormalizedName{
		Original:       original,
		NormalizedText: normalizedText,
		RawTokens:      rawTokens,
		CoreTokens:     coreTokens,
		CoreString:     coreString,
		Acronym:        acronym,
		NumericTokens:  numericTokens,
		Keys:           keys,
		Meta: Meta{
			RemovedDesignators: removedDesignators,
			Warnings:           warnings,
		},
	}
}

func stripNonAlphanumeric(tok string) string {
	var b strings.Builder
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNumericTokens(tokens []string) []string {
	var nums []string
	for _, t := range tokens {
		nums = append(nums, digitRun.FindAllString(t, -1)...)
	}
	return nums
}

func isOriginalUppercaseIgnoringDots(original string) bool {
	s := strings.ReplaceAll(strings.TrimSpace(original), ".", "")
	if s == "" {
		return false
	}
	return s == strings.ToUpper(s) && strings.ToUpper(s) != strings.ToLower(s)
}

func generateBlockingKeys(coreTokens []string, coreString string, acronym string) map[KeyType]string {
	keys := make(map[KeyType]string)
	keys[KeyCore] = coreString
	if len(coreTokens) >= 2 {
		keys[KeyPrefix2] = strings.Join(coreTokens[:2], " ")
	}
	if len(coreTokens) >= 3 {
		keys[KeyPrefix3] = strings.Join(coreTokens[:3], " ")
	}
	if acronym != "" {
		keys[KeyAcronym] = acronym
	}
	if len(coreTokens) > 0 {
		keys[KeyFirst] = coreTokens[0]
	}
	return keys
}

// AcronymRelation exposes acronymRelation to the scoring package without
// requiring it to reach into normalize's internals directly.
func AcronymRelation(w WordLists, aAcr string, aCore []string, bAcr string, bCore []string) string {
	return acronymRelation(w, aAcr, aCore, bAcr, bCore)
}

// EffectiveCore strips any designator tokens still present in core_tokens
// (the safety-revert case leaves them there) for use by the Scorer, which
// must compare on this "effective core" rather than the raw one. If every
// token is a designator, the unfiltered core is returned.
func EffectiveCore(w WordLists, n NormalizedName) ([]string, string) {
	var eff []string
	for _, t := range n.CoreTokens {
		if !w.isDesignator(t) {
			eff = append(eff, t)
		}
	}
	if len(eff) == 0 {
		return n.CoreTokens, n.CoreString
	}
	return eff, strings.Join(eff, " ")
}
