package dynamo

import (
	"fmt"
	"sort"

	"github.com/agext/levenshtein"
)

// Suggest returns the candidate closest to name, or "" when nothing is
// close enough to be a plausible typo.
func Suggest(name string, candidates []string) string {
	best, bestDist := "", 3
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	for _, c := range sorted {
		if d := levenshtein.Distance(name, c, nil); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func didYouMean(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf("; did you mean %q?", s)
}
