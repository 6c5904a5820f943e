// Package match resolves free-form item mentions against catalog names.
package match

import (
	"sort"
	"strings"
)

const (
	DefaultThreshold = 0.6

	scoreAllWords  = 0.9
	wordThreshold  = 0.8
	wordScoreScale = 0.7

	MaxCandidates = 3
)

type Candidate struct {
	Name  string
	Score float64
}

type Resolver struct {
	// FuzzyThreshold gates whole-string similarity matches.
	FuzzyThreshold float64
}

func NewResolver(threshold float64) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Resolver{FuzzyThreshold: threshold}
}

// Match scores every name against text and returns up to three candidates,
// best first. Names scoring zero are omitted.
func (r *Resolver) Match(text string, names []string) []Candidate {
	text = normalize(text)
	if text == "" {
		return nil
	}
	words := strings.Fields(text)

	var out []Candidate
	for _, name := range names {
		if s := r.score(text, words, name); s > 0 {
			out = append(out, Candidate{Name: name, Score: s})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return out
}

func (r *Resolver) score(text string, words []string, name string) float64 {
	n := normalize(name)
	if n == "" {
		return 0
	}

	if strings.Contains(text, n) {
		return 1
	}

	nameWords := strings.Fields(n)
	if containsAll(words, nameWords) {
		return scoreAllWords
	}

	best := 0.0
	if ratio := Ratio(n, text); ratio >= r.FuzzyThreshold {
		best = ratio
	}

	for _, nw := range nameWords {
		for _, w := range words {
			if ratio := Ratio(nw, w); ratio >= wordThreshold {
				best = max(best, ratio*wordScoreScale)
			}
		}
	}
	return best
}

func containsAll(words, want []string) bool {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
