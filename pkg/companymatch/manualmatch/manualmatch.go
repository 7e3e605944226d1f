// Package manualmatch supplements the deterministic pipeline with a
// narrow lookup for matches a human has already confirmed out of band.
// The Matcher consults it before running normalize/blocking/scoring at
// all.
package manualmatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Lookup is the narrow contract the Matcher depends on: given an A name
// exactly as supplied, report whether a human previously pinned it to a
// specific B entry.
type Lookup interface {
	Lookup(aName string) (bName string, bID string, ok bool)
}

// Match is one manually confirmed correspondence. Multiple A names can
// point at the same B entry.
type Match struct {
	ANames    []string `json:"a_names"`
	BName     string   `json:"b_name"`
	BID       string   `json:"b_id,omitempty"`
	CreatedAt string   `json:"created_at"`
	Notes     string   `json:"notes,omitempty"`
}

type fileData struct {
	Matches []Match `json:"matches"`
}

// Store is a JSON-file-backed Lookup, loaded once and held in memory for
// the matcher's lifetime. A missing file is not an error: it degrades to
// an empty store.
type Store struct {
	path    string
	matches []Match
	byAName map[string]Match
}

// Load reads path (if present) into a Store.
func Load(path string) (*Store, error) {
	s := &Store{path: path, byAName: make(map[string]Match)}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("manualmatch: read %s: %w", path, err)
	}
	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("manualmatch: parse %s: %w", path, err)
	}
	s.matches = fd.Matches
	s.index()
	return s, nil
}

func (s *Store) index() {
	s.byAName = make(map[string]Match, len(s.matches))
	for _, m := range s.matches {
		for _, a := range m.ANames {
			s.byAName[a] = m
		}
	}
}

// Lookup implements Lookup.
func (s *Store) Lookup(aName string) (string, string, bool) {
	m, ok := s.byAName[aName]
	if !ok {
		return "", "", false
	}
	return m.BName, m.BID, true
}

// All returns every recorded manual match.
func (s *Store) All() []Match { return append([]Match(nil), s.matches...) }

// Add appends a new manual match and persists the store to disk.
func (s *Store) Add(m Match) error {
	s.matches = append(s.matches, m)
	s.index()
	return s.save()
}

// Remove deletes the match at index and persists the store.
func (s *Store) Remove(index int) (bool, error) {
	if index < 0 || index >= len(s.matches) {
		return false, nil
	}
	s.matches = append(s.matches[:index], s.matches[index+1:]...)
	s.index()
	return true, s.save()
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("manualmatch: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(fileData{Matches: s.matches}, "", "  ")
	if err != nil {
		return fmt.Errorf("manualmatch: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("manualmatch: write %s: %w", s.path, err)
	}
	return nil
}
