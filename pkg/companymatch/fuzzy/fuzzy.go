// Package fuzzy implements the composite weighted-ratio string similarity
// the Scorer uses for its fuzzy_similarity feature: a
// fixed-point (no external calls, no randomness) blend of plain-ratio,
// partial-ratio, token-sort-ratio and token-set-ratio, built on
// agnivade/levenshtein's edit-distance primitive the way fuzzywuzzy-style
// libraries compose theirs.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Ratio returns the plain Levenshtein-similarity ratio of a and b, scaled
// to [0,1]. Two empty strings are considered identical.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len([]rune(a))
	if bl := len([]rune(b)); bl > maxLen {
		maxLen = bl
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// PartialRatio returns the best Ratio of b against any substring of a (or
// a against b, whichever string is shorter is slid across the longer).
func PartialRatio(a, b string) float64 {
	shorter, longer := a, b
	if len([]rune(a)) > len([]rune(b)) {
		shorter, longer = b, a
	}
	if shorter == "" {
		return Ratio(a, b)
	}
	sr := []rune(shorter)
	lr := []rune(longer)
	if len(sr) >= len(lr) {
		return Ratio(a, b)
	}
	best := 0.0
	for start := 0; start+len(sr) <= len(lr); start++ {
		window := string(lr[start : start+len(sr)])
		if r := Ratio(shorter, window); r > best {
			best = r
		}
	}
	return best
}

// TokenSortRatio tokenizes both strings on whitespace, sorts the tokens
// lexically, rejoins, and ratios the result — neutralizing word-order
// differences.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedJoin(a), sortedJoin(b))
}

// TokenSetRatio compares the intersection and set-differences of each
// side's tokens, taking the best of the resulting combinations —
// neutralizing duplicate and extra tokens.
func TokenSetRatio(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)

	intersection := sortedIntersection(aTokens, bTokens)
	aOnly := sortedDifference(aTokens, bTokens)
	bOnly := sortedDifference(bTokens, aTokens)

	aCombined := strings.TrimSpace(strings.Join([]string{intersection, aOnly}, " "))
	bCombined := strings.TrimSpace(strings.Join([]string{intersection, bOnly}, " "))

	best := 0.0
	for _, c := range []float64{
		Ratio(intersection, aCombined),
		Ratio(intersection, bCombined),
		Ratio(aCombined, bCombined),
	} {
		if c > best {
			best = c
		}
	}
	return best
}

// WeightedRatio is the composite fuzzy_similarity primitive: the maximum
// of the plain ratio, TokenSortRatio and TokenSetRatio, with PartialRatio
// also taken into the maximum when the longer string is more than 1.5
// times the length of the shorter. No variant is discounted.
func WeightedRatio(a, b string) float64 {
	if a == "" || b == "" {
		return Ratio(a, b)
	}

	base := Ratio(a, b)
	lenRatio := float64(len([]rune(a))) / float64(len([]rune(b)))
	if lenRatio < 1 {
		lenRatio = 1 / lenRatio
	}

	tokenSort := TokenSortRatio(a, b)
	tokenSetR := TokenSetRatio(a, b)
	partial := PartialRatio(a, b)

	scores := []float64{base, tokenSort, tokenSetR}
	if lenRatio > 1.5 {
		scores = append(scores, partial)
	}

	best := 0.0
	for _, s := range scores {
		if s > best {
			best = s
		}
	}
	return best
}

func sortedJoin(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range strings.Fields(s) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func sortedIntersection(a, b []string) string {
	bSet := make(map[string]struct{}, len(b))
	for _, t := range b {
		bSet[t] = struct{}{}
	}
	var out []string
	for _, t := range a {
		if _, ok := bSet[t]; ok {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

func sortedDifference(a, b []string) string {
	bSet := make(map[string]struct{}, len(b))
	for _, t := range b {
		bSet[t] = struct{}{}
	}
	var out []string
	for _, t := range a {
		if _, ok := bSet[t]; !ok {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}
