// Package significance turns raw comparison scores into a check
// verdict against configured thresholds.
package significance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
)

// Thresholds hold the cut line for each detection channel. The
// similarity values are floors (a score below them breaches); the
// visual diff percentage is a ceiling (a percentage above it breaches).
type Thresholds struct {
	ContentSimilarity    float64
	StructureSimilarity  float64
	VisualDiffPercent    float64
	PerceptualSimilarity float64
}

// ForWebsite returns t with the site's own overrides applied. A zero
// override means "use the global value".
func (t Thresholds) ForWebsite(site *domain.Website) Thresholds {
	if site != nil && site.VisualDiffThreshold > 0 {
		t.VisualDiffPercent = site.VisualDiffThreshold
	}
	return t
}

// Evaluation is the verdict for one compared URL, or the merged verdict
// of a whole check.
type Evaluation struct {
	Significant bool     `json:"significant"`
	Reasons     []string `json:"reasons"`
}

// Merge folds other into e, keeping reason order stable.
func (e *Evaluation) Merge(other Evaluation) {
	e.Significant = e.Significant || other.Significant
	e.Reasons = append(e.Reasons, other.Reasons...)
}

// Evaluate checks every channel of result against t. Channels are not
// short-circuited: each breach appends its own reason, so a report
// lists everything that moved rather than the first hit. Channels the
// comparison did not run are skipped, never read as a zero score.
func Evaluate(result *domain.ComparisonResult, t Thresholds) Evaluation {
	var reasons []string

	if result.HTMLCompared {
		if result.TextSimilarity < t.ContentSimilarity {
			reasons = append(reasons, fmt.Sprintf(
				"%s: Content similarity %.4f below threshold %.4f",
				result.URL, result.TextSimilarity, t.ContentSimilarity))
		}
		if result.StructureSimilarity < t.StructureSimilarity {
			reasons = append(reasons, fmt.Sprintf(
				"%s: Structure similarity %.4f below threshold %.4f",
				result.URL, result.StructureSimilarity, t.StructureSimilarity))
		}
		if len(result.MetaTagDiff) > 0 {
			keys := make([]string, 0, len(result.MetaTagDiff))
			for key := range result.MetaTagDiff {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			reasons = append(reasons, fmt.Sprintf(
				"%s: Meta tags changed: %s", result.URL, strings.Join(keys, ", ")))
		}
		if !result.LinkDiff.Empty() {
			reasons = append(reasons, fmt.Sprintf(
				"%s: Links changed: %d added, %d removed",
				result.URL, len(result.LinkDiff.Added), len(result.LinkDiff.Removed)))
		}
		if !result.ImageDiff.Empty() {
			reasons = append(reasons, fmt.Sprintf(
				"%s: Image sources changed: %d added, %d removed",
				result.URL, len(result.ImageDiff.Added), len(result.ImageDiff.Removed)))
		}
		if result.CanonicalChange != nil {
			reasons = append(reasons, fmt.Sprintf(
				"%s: Canonical URL changed from %q to %q",
				result.URL, result.CanonicalChange.Old, result.CanonicalChange.New))
		}
	}

	if result.VisualCompared {
		if result.VisualDiffPercent > t.VisualDiffPercent {
			reasons = append(reasons, fmt.Sprintf(
				"%s: Visual difference %.2f%% exceeds threshold %.2f%%",
				result.URL, result.VisualDiffPercent, t.VisualDiffPercent))
		}
		if result.PerceptualSimilarity != nil && *result.PerceptualSimilarity < t.PerceptualSimilarity {
			reasons = append(reasons, fmt.Sprintf(
				"%s: Perceptual similarity %.4f below threshold %.4f",
				result.URL, *result.PerceptualSimilarity, t.PerceptualSimilarity))
		}
	}

	return Evaluation{Significant: len(reasons) > 0, Reasons: reasons}
}

// EvaluateCrawl covers the crawl-level channel: any broken link makes
// the check significant regardless of per-URL scores.
func EvaluateCrawl(crawl *domain.CrawlResult) Evaluation {
	if crawl == nil || len(crawl.BrokenLinks) == 0 {
		return Evaluation{}
	}
	return Evaluation{
		Significant: true,
		Reasons: []string{fmt.Sprintf(
			"Broken links detected: %d", len(crawl.BrokenLinks))},
	}
}
