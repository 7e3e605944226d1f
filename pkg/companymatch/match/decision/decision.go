// Package decision defines the tri-band match verdict shared by the
// Matcher and the Arbiter, split out on its own to avoid a dependency
// cycle between the two.
package decision

// Decision is the tagged-union-style outcome of matching one A name
// against the best candidate in B.
type Decision string

const (
	Match   Decision = "MATCH"
	NoMatch Decision = "NO_MATCH"
	Review  Decision = "REVIEW"
)
