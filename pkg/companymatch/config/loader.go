package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a MatchConfig from a YAML file, starting from Default()
// so any field the file omits keeps its documented default. A missing path
// is not an error: Default() is returned unchanged, since a missing
// config file is not fatal.
func LoadYAML(path string) (MatchConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return MatchConfig{}, err
	}
	return cfg, nil
}

// Replacement is one ordered literal-substring substitution, applied in
// file order by the Normalizer's symbol-substitution step.
type Replacement struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LoadWordSet reads a UTF-8, one-word-per-line file into a case-folded
// set. A missing file degrades to an empty set, not an error.
func LoadWordSet(path string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if path == "" {
		return set, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		w := strings.ToLower(strings.TrimSpace(line))
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		set[w] = struct{}{}
	}
	return set, nil
}

// LoadCategoryWordSets reads every "<category>.txt" file in dir into a
// map keyed by category name (the file's base name without extension). A
// missing or empty dir yields no categories, not an error.
func LoadCategoryWordSets(dir string) (map[string]map[string]struct{}, error) {
	cats := make(map[string]map[string]struct{})
	if dir == "" {
		return cats, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return cats, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".txt")
		set, err := LoadWordSet(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		cats[name] = set
	}
	return cats, nil
}

// LoadAliases reads designator_aliases.json: a JSON object mapping raw
// token to canonical token (e.g. "inc." -> "inc"). Absent files degrade
// to identity (empty map), not an error.
func LoadAliases(path string) (map[string]string, error) {
	aliases := make(map[string]string)
	if path == "" {
		return aliases, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return aliases, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}
	lower := make(map[string]string, len(aliases))
	for k, v := range aliases {
		lower[strings.ToLower(k)] = strings.ToLower(v)
	}
	return lower, nil
}

// LoadReplacements reads replacements.json: an ordered array of
// {"from","to"} substitutions. A JSON object cannot preserve order in Go's
// map type, so the file format is a JSON array rather than an object:
// order is what matters here, and an array is how Go encodes an ordered
// sequence of pairs. Absent files degrade to no substitutions.
func LoadReplacements(path string) ([]Replacement, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var reps []Replacement
	if err := json.Unmarshal(data, &reps); err != nil {
		return nil, err
	}
	return reps, nil
}

// WordLists bundles everything the Normalizer needs, loaded once from a
// DataConfig and handed around as an immutable value.
type WordLists struct {
	Designators      map[string]struct{}
	Aliases          map[string]string
	AcronymCollision map[string]struct{}
	Categories       map[string]map[string]struct{}
	Replacements     []Replacement
}

// LoadWordLists loads every static file a DataConfig references.
func LoadWordLists(d DataConfig) (WordLists, error) {
	var wl WordLists
	var err error

	wl.Designators, err = LoadWordSet(d.DesignatorsPath)
	if err != nil {
		return wl, err
	}
	wl.Aliases, err = LoadAliases(d.DesignatorAliasesPath)
	if err != nil {
		return wl, err
	}
	wl.AcronymCollision, err = LoadWordSet(d.AcronymCollisionPath)
	if err != nil {
		return wl, err
	}
	wl.Categories, err = LoadCategoryWordSets(d.CategoriesDir)
	if err != nil {
		return wl, err
	}
	wl.Replacements, err = LoadReplacements(d.ReplacementsPath)
	if err != nil {
		return wl, err
	}
	return wl, nil
}
