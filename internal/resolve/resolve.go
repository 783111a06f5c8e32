// Package resolve matches loosely typed entity names against live platform records.
//
// An exact match that ignores case always wins. Otherwise the candidate with the
// highest Levenshtein similarity wins if it reaches Threshold, with ties going to the
// candidate listed first. Below the threshold there is no match: callers fall back
// to defaults and never guess.
package resolve

import (
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
)

// Threshold is the minimum similarity, out of 100, for a fuzzy match.
const Threshold = 70

// Tier records how a match was made.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierFuzzy
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// Named is implemented by every platform record that can be resolved by name.
type Named interface {
	EntityID() string
	EntityName() string
}

// Match is the outcome of resolving one name.
type Match struct {
	Input string
	Name  string
	ID    string
	Tier  Tier
	Score int
}

// Found reports whether a candidate was accepted.
func (m Match) Found() bool {
	return m.Tier != TierNone
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Similarity scores two names from 0 to 100 after case folding.
func Similarity(a, b string) int {
	a, b = fold(a), fold(b)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}
	distance := fuzzy.LevenshteinDistance(a, b)
	return int(100 * (1 - float64(distance)/float64(longest)))
}

// Resolve finds the best candidate for name. An empty name returns no match without
// pulling from candidates, so an unreferenced entity type never costs a request.
func Resolve[T Named](name string, candidates iter.Seq2[T, error]) (Match, error) {
	name = strings.TrimSpace(name)
	none := Match{Input: name}
	if name == "" || candidates == nil {
		return none, nil
	}

	folded := fold(name)
	best := none
	for candidate, err := range candidates {
		if err != nil {
			return none, err
		}
		if fold(candidate.EntityName()) == folded {
			return Match{Input: name, Name: candidate.EntityName(), ID: candidate.EntityID(), Tier: TierExact, Score: 100}, nil
		}
		score := Similarity(name, candidate.EntityName())
		// Strictly greater keeps the first listed candidate on ties.
		if score >= Threshold && score > best.Score {
			best = Match{Input: name, Name: candidate.EntityName(), ID: candidate.EntityID(), Tier: TierFuzzy, Score: score}
		}
	}
	return best, nil
}

// ResolveAll resolves several names against one candidate sequence, which is read at
// most once. Blank names are skipped. The rest keep their relative order, and those
// without a match are returned with TierNone.
func ResolveAll[T Named](names []string, candidates iter.Seq2[T, error]) ([]Match, error) {
	var wanted []string
	for _, name := range names {
		if strings.TrimSpace(name) != "" {
			wanted = append(wanted, name)
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	var buffered []T
	for candidate, err := range candidates {
		if err != nil {
			return nil, err
		}
		buffered = append(buffered, candidate)
	}

	replay := func(yield func(T, error) bool) {
		for _, candidate := range buffered {
			if !yield(candidate, nil) {
				return
			}
		}
	}

	matches := make([]Match, 0, len(wanted))
	for _, name := range wanted {
		match, err := Resolve[T](name, replay)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Substitute rewrites query so each matched input phrase reads as the canonical name.
func Substitute(query string, matches ...Match) string {
	for _, m := range matches {
		if !m.Found() || m.Input == "" || m.Input == m.Name {
			continue
		}
		query = strings.ReplaceAll(query, m.Input, m.Name)
	}
	return query
}
