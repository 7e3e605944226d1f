// Package config defines the MatchConfig surface recognized by the
// companymatch pipeline and loads it, along with the static word-list and
// alias data the Normalizer needs: plain-text or YAML/JSON files read
// once at startup into immutable value types.
package config

import "github.com/cognicore/companymatch/pkg/companymatch/internalerr"

// ScoringWeights are the per-feature weights in the Scorer's combination.
type ScoringWeights struct {
	Token    float64 `yaml:"token"`
	Fuzzy    float64 `yaml:"fuzzy"`
	Acronym  float64 `yaml:"acronym"`
	Semantic float64 `yaml:"semantic"`
}

// Penalties are subtracted from the raw weighted score.
type Penalties struct {
	NumMismatch float64 `yaml:"num_mismatch"`
	NumOneSide  float64 `yaml:"num_one_side"`
	Short       float64 `yaml:"short"`
}

// Thresholds define the tri-band decisioning cutoffs.
type Thresholds struct {
	THigh  float64 `yaml:"t_high"`
	TLow   float64 `yaml:"t_low"`
	Margin float64 `yaml:"t_margin"`
}

// CandidateConfig bounds blocking/embedding candidate generation.
type CandidateConfig struct {
	MaxTotal  int  `yaml:"max_total"`
	MaxLex    int  `yaml:"max_lex"`
	MaxEmb    int  `yaml:"max_emb"`
	UseKFirst bool `yaml:"use_k_first"`
}

// ArbiterConfig gates the optional external semantic judge.
type ArbiterConfig struct {
	Enabled               bool    `yaml:"enabled"`
	TopK                  int     `yaml:"top_k"`
	GlobalCap             int     `yaml:"global_cap"`
	PerItemCap            int     `yaml:"per_item_cap"`
	MinConfidence         float64 `yaml:"min_confidence"`
	ForbidBothSingleToken bool    `yaml:"forbid_both_single_token"`
}

// EmbeddingConfig configures the optional ANN augmentation.
type EmbeddingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	AnnNeighbors int    `yaml:"ann_neighbors"`
	BatchSize    int    `yaml:"batch_size"`
	CacheDir     string `yaml:"cache_dir"`
}

// AcronymConfig configures acronym detection.
type AcronymConfig struct {
	MinLength int `yaml:"min_length"`
}

// NormalizationConfig configures optional normalization behavior.
type NormalizationConfig struct {
	StripPrefixDesignators bool     `yaml:"strip_prefix_designators"`
	StripCategories        []string `yaml:"strip_categories"`
	MinTokens              int      `yaml:"min_tokens"`
}

// DataConfig points at the static word-list/alias files the Normalizer
// loads once at startup.
type DataConfig struct {
	DesignatorsPath       string            `yaml:"designators_path"`
	CategoriesDir         string            `yaml:"categories_dir"`
	AcronymCollisionPath  string            `yaml:"acronym_collision_path"`
	DesignatorAliasesPath string            `yaml:"designator_aliases_path"`
	ReplacementsPath      string            `yaml:"replacements_path"`
}

// MatchConfig is the full configuration surface recognized by the pipeline.
type MatchConfig struct {
	Scoring       ScoringWeights      `yaml:"scoring"`
	Penalties     Penalties           `yaml:"penalties"`
	Thresholds    Thresholds          `yaml:"thresholds"`
	Candidates    CandidateConfig     `yaml:"candidates"`
	Arbiter       ArbiterConfig       `yaml:"arbiter"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Acronym       AcronymConfig       `yaml:"acronym"`
	Normalization NormalizationConfig `yaml:"normalization"`
	Data          DataConfig          `yaml:"data"`
}

// Default returns the documented configuration defaults.
func Default() MatchConfig {
	return MatchConfig{
		Scoring: ScoringWeights{Token: 0.35, Fuzzy: 0.30, Acronym: 0.20, Semantic: 0.15},
		Penalties: Penalties{
			NumMismatch: 0.30,
			NumOneSide:  0.10,
			Short:       0.25,
		},
		Thresholds: Thresholds{THigh: 0.92, TLow: 0.75, Margin: 0.06},
		Candidates: CandidateConfig{
			MaxTotal:  500,
			MaxLex:    300,
			MaxEmb:    200,
			UseKFirst: true,
		},
		Arbiter: ArbiterConfig{
			Enabled:               false,
			TopK:                  3,
			GlobalCap:             50,
			PerItemCap:            2,
			MinConfidence:         0.75,
			ForbidBothSingleToken: true,
		},
		Embedding: EmbeddingConfig{
			Enabled:      false,
			AnnNeighbors: 100,
			BatchSize:    250,
			CacheDir:     ".companymatch_cache",
		},
		Acronym:       AcronymConfig{MinLength: 3},
		Normalization: NormalizationConfig{MinTokens: 2},
	}
}

// Validate checks for structurally invalid configuration (non-positive
// caps, empty weight sets) and returns the bare
// internalerr.ErrInvalidConfig sentinel, without further detail, when
// invalid.
func (c MatchConfig) Validate() error {
	if c.Candidates.MaxTotal <= 0 || c.Candidates.MaxLex <= 0 {
		return internalerr.ErrInvalidConfig
	}
	if c.Acronym.MinLength <= 0 {
		return internalerr.ErrInvalidConfig
	}
	sum := c.Scoring.Token + c.Scoring.Fuzzy + c.Scoring.Acronym + c.Scoring.Semantic
	if sum <= 0 {
		return internalerr.ErrInvalidConfig
	}
	if c.Normalization.MinTokens <= 0 {
		return internalerr.ErrInvalidConfig
	}
	return nil
}
