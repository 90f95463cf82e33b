package comparison

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// TextSimilarity returns the sequence similarity ratio of two
// visible-text strings, tokenized on whitespace. The ratio is
// 2*M/T where M counts matching tokens and T the total tokens on
// both sides. Two empty texts are identical (1.0); exactly one
// empty text is a total change (0.0).
func TextSimilarity(base, fresh string) float64 {
	return ratio(strings.Fields(base), strings.Fields(fresh))
}

func ratio(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	return difflib.NewMatcher(a, b).Ratio()
}
