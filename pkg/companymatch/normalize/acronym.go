package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

var acronymInputSplit = regexp.MustCompile(`[.\s]+`)

// acronymFromWholeInput detects a pre-existing acronym, applied to the
// *original* string, before designator stripping. If the original, after
// removing dots and spaces, is purely alphabetic, at least minLength long,
// and every dot/space-separated piece is a single letter, returns the
// lowercased letters as a tentative acronym.
func acronymFromWholeInput(original string, minLength int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '.' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, original)

	if len(cleaned) < minLength || !isAllAlpha(cleaned) {
		return ""
	}

	for _, part := range acronymInputSplit.Split(strings.TrimSpace(original), -1) {
		if part == "" {
			continue
		}
		if len([]rune(part)) != 1 {
			return ""
		}
	}

	return strings.ToLower(cleaned)
}

// generateAcronym forms an acronym from the first character of each core
// token. Returns "" if fewer than minLength tokens are available or the
// resulting acronym is too short.
func generateAcronym(coreTokens []string, minLength int) string {
	if len(coreTokens) < minLength {
		return ""
	}
	var b strings.Builder
	for _, t := range coreTokens {
		if t == "" {
			continue
		}
		r := []rune(t)
		b.WriteRune(r[0])
	}
	acr := b.String()
	if len([]rune(acr)) < minLength {
		return ""
	}
	return acr
}

func isAllAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// acronymRelation classifies the relationship between two sides'
// acronyms/core-tokens for the Scorer's acronym_score feature. Returns one
// of "exact", "initialism", "collision", "none".
func acronymRelation(w WordLists, aAcr string, aCore []string, bAcr string, bCore []string) string {
	if aAcr != "" && bAcr != "" && aAcr == bAcr {
		if w.isCollisionAcronym(aAcr) {
			return "collision"
		}
		return "exact"
	}

	if aAcr != "" && len(bCore) >= 3 {
		if aAcr == initials(bCore) {
			if w.isCollisionAcronym(aAcr) {
				return "collision"
			}
			return "initialism"
		}
	}

	if bAcr != "" && len(aCore) >= 3 {
		if bAcr == initials(aCore) {
			if w.isCollisionAcronym(bAcr) {
				return "collision"
			}
			return "initialism"
		}
	}

	return "none"
}

func initials(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		if t == "" {
			continue
		}
		b.WriteRune([]rune(t)[0])
	}
	return b.String()
}
