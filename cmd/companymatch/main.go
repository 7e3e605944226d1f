// Command companymatch runs the company-name matching pipeline over two
// newline-delimited text files: a reference side B and a query side A,
// printing one MatchResult per A line as JSON on stdout.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cognicore/companymatch/internal/llm"
	"github.com/cognicore/companymatch/pkg/companymatch/arbiter"
	"github.com/cognicore/companymatch/pkg/companymatch/config"
	"github.com/cognicore/companymatch/pkg/companymatch/embedding"
	"github.com/cognicore/companymatch/pkg/companymatch/manualmatch"
	"github.com/cognicore/companymatch/pkg/companymatch/match"
	"github.com/cognicore/companymatch/pkg/companymatch/normalize"
)

func main() {
	var (
		bPath       = flag.String("b", "", "Path to newline-delimited reference names (required)")
		aPath       = flag.String("a", "", "Path to newline-delimited query names (required)")
		configPath  = flag.String("config", "", "Optional YAML config overriding defaults")
		dataDir     = flag.String("data-dir", "", "Directory holding designators_global.txt, categories, acronym_collision.txt, designator_aliases.json, replacements.json")
		manualPath  = flag.String("manual-matches", "", "Optional JSON file of pre-confirmed A-to-B matches")
		concurrency = flag.Int("concurrency", 1, "Number of A names to match concurrently")

		embeddingURL   = flag.String("embedding-url", "", "OpenAI-compatible embeddings endpoint (enables semantic candidates when set)")
		embeddingModel = flag.String("embedding-model", "", "Embedding model name")
		embeddingKey   = flag.String("embedding-api-key", "", "API key for the embeddings endpoint")

		arbiterURL = flag.String("arbiter-url", "", "HTTP endpoint for the optional LLM arbiter (enables arbiter escalation when set)")
		arbiterKey = flag.String("arbiter-api-key", "", "API key for the arbiter endpoint")
	)
	flag.Parse()

	if *aPath == "" || *bPath == "" {
		log.Fatal("both -a and -b are required")
	}

	ctx := context.Background()

	cfg, err := config.LoadYAML(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	cfg.Data = dataConfigFromDir(*dataDir, cfg.Data)

	loadedWords, err := config.LoadWordLists(cfg.Data)
	if err != nil {
		log.Fatalf("load word lists: %v", err)
	}
	words := normalize.NewWordLists(loadedWords)

	var manual manualmatch.Lookup
	if *manualPath != "" {
		store, err := manualmatch.Load(*manualPath)
		if err != nil {
			log.Fatalf("load manual matches: %v", err)
		}
		manual = store
	}

	var embProvider embedding.Provider
	if *embeddingURL != "" && *embeddingModel != "" {
		cfg.Embedding.Enabled = true
		embProvider = &llm.Client{BaseURL: *embeddingURL, Model: *embeddingModel, APIKey: *embeddingKey}
	}

	var arbProvider arbiter.Provider
	if *arbiterURL != "" {
		cfg.Arbiter.Enabled = true
		arbProvider = &arbiter.HTTPProvider{Endpoint: *arbiterURL, APIKey: *arbiterKey}
	}

	m, err := match.New(cfg, words, embProvider, arbProvider, manual)
	if err != nil {
		log.Fatalf("construct matcher: %v", err)
	}

	bNames, err := readLines(*bPath)
	if err != nil {
		log.Fatalf("read -b file: %v", err)
	}
	if err := m.PreprocessB(ctx, bNames); err != nil {
		log.Fatalf("preprocess B: %v", err)
	}

	aNames, err := readLines(*aPath)
	if err != nil {
		log.Fatalf("read -a file: %v", err)
	}

	results, err := m.MatchAll(ctx, aNames, *concurrency)
	if err != nil {
		log.Fatalf("match: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, r := range results {
		if err := enc.Encode(toOutputResult(r)); err != nil {
			log.Fatalf("encode result: %v", err)
		}
	}

	stats := m.Stats()
	fmt.Fprintf(os.Stderr, "comparisons=%d no_candidates=%d arbiter_calls=%d manual_matches=%d decisions=%v\n",
		stats.Comparisons, stats.NoCandidateCount, stats.ArbiterCalls, stats.ManualMatches, stats.DecisionCounts)
}

func dataConfigFromDir(dir string, base config.DataConfig) config.DataConfig {
	if dir == "" {
		return base
	}
	return config.DataConfig{
		DesignatorsPath:       joinIfSet(dir, "designators_global.txt"),
		CategoriesDir:         dir,
		AcronymCollisionPath:  joinIfSet(dir, "acronym_collision.txt"),
		DesignatorAliasesPath: joinIfSet(dir, "designator_aliases.json"),
		ReplacementsPath:      joinIfSet(dir, "replacements.json"),
	}
}

func joinIfSet(dir, name string) string {
	if dir == "" {
		return ""
	}
	return dir + string(os.PathSeparator) + name
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// outputResult is the JSON-serializable view of a match.Result; kept
// separate from match.Result so the CLI's wire shape isn't coupled to
// the package's Go-idiomatic internal representation (optional fields as
// bool+value pairs rather than pointers).
type outputResult struct {
	AID           int      `json:"a_id"`
	AName         string   `json:"a_name"`
	BID           *int     `json:"b_id,omitempty"`
	BName         *string  `json:"b_name,omitempty"`
	Decision      string   `json:"decision"`
	Score         float64  `json:"score"`
	RunnerUpScore *float64 `json:"runner_up_score,omitempty"`
	Margin        *float64 `json:"margin,omitempty"`
	UsedArbiter   bool     `json:"used_arbiter"`
	UsedManual    bool     `json:"used_manual"`
	Reasons       []string `json:"reasons"`
}

func toOutputResult(r match.Result) outputResult {
	out := outputResult{
		AID:         r.AID,
		AName:       r.AName,
		Decision:    string(r.Decision),
		Score:       r.Score,
		UsedArbiter: r.UsedArbiter,
		UsedManual:  r.UsedManual,
		Reasons:     r.Reasons,
	}
	if r.HasB {
		bid := r.BID
		out.BID = &bid
		bname := r.BName
		out.BName = &bname
	}
	if r.HasRunnerUp {
		ru := r.RunnerUpScore
		out.RunnerUpScore = &ru
	}
	if r.HasMargin {
		margin := r.Margin
		out.Margin = &margin
	}
	return out
}
