// Package dedupe holds the pure parts of duplicate detection: text
// similarity and the grouping scan. Nothing here touches storage.
package dedupe

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity returns a score in [0,1] for how alike a and b are.
//
// Inputs are trimmed and lower-cased first. Empty input scores 0 and equal
// input scores exactly 1. Everything else is the Ratcliff/Obershelp ratio
// 2*M/T over characters, where M is the number of characters in matching
// blocks and T the combined length. The pair is put in a canonical order
// before matching so Similarity(a, b) == Similarity(b, a).
func Similarity(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	if a > b {
		a, b = b, a
	}
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// chars splits s into one element per rune, the unit the matcher compares.
func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
