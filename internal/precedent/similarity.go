// Package precedent validates an analysis against historical decided
// cases: did past imports under this HS code face the requirements we
// found, and did we miss any that mattered.
package precedent

import "strings"

// Similarity scores how close two requirement statements are, in
// [0,1]. Implementations must be symmetric.
type Similarity interface {
	Score(a, b string) float64
}

// MatchThreshold is the similarity above which two requirement
// statements are considered the same requirement.
const MatchThreshold = 0.5

// JaccardWords measures word-set overlap. It is the default matcher:
// cheap, order-insensitive, and good enough for short requirement
// statements.
type JaccardWords struct{}

func (JaccardWords) Score(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:()[]\"'")
		if len(w) < 3 {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}
