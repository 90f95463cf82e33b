package significance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
)

var defaultThresholds = Thresholds{
	ContentSimilarity:    0.95,
	StructureSimilarity:  0.98,
	VisualDiffPercent:    5.0,
	PerceptualSimilarity: 0.95,
}

func cleanResult() *domain.ComparisonResult {
	one := 1.0
	return &domain.ComparisonResult{
		URL:                  "https://example.com/page",
		HTMLCompared:         true,
		VisualCompared:       true,
		TextSimilarity:       1.0,
		StructureSimilarity:  1.0,
		VisualDiffPercent:    0.0,
		PerceptualSimilarity: &one,
	}
}

func TestEvaluateCleanResultNotSignificant(t *testing.T) {
	got := Evaluate(cleanResult(), defaultThresholds)
	assert.False(t, got.Significant)
	assert.Empty(t, got.Reasons)
}

func TestEvaluateReportsEveryBreach(t *testing.T) {
	result := cleanResult()
	result.TextSimilarity = 0.50
	result.VisualDiffPercent = 10.0

	got := Evaluate(result, defaultThresholds)

	require.True(t, got.Significant)
	require.Len(t, got.Reasons, 2, "both breaches must be reported, not just the first")
	assert.Contains(t, got.Reasons[0], "Content similarity")
	assert.Contains(t, got.Reasons[1], "Visual difference")
}

func TestEvaluateVisualBlockScenario(t *testing.T) {
	// A color block covering 10% of the screenshot area against a 5%
	// threshold.
	result := cleanResult()
	result.VisualDiffPercent = 10.0

	got := Evaluate(result, defaultThresholds)

	require.True(t, got.Significant)
	require.Len(t, got.Reasons, 1)
	assert.True(t, strings.Contains(got.Reasons[0], "Visual difference"))
}

func TestEvaluateSkipsChannelsNotComputed(t *testing.T) {
	// Zero scores on channels that never ran must not read as breaches.
	result := &domain.ComparisonResult{URL: "https://example.com/page"}

	got := Evaluate(result, defaultThresholds)

	assert.False(t, got.Significant)
	assert.Empty(t, got.Reasons)
}

func TestEvaluatePerceptualOnlyWhenComputed(t *testing.T) {
	result := cleanResult()
	result.PerceptualSimilarity = nil
	got := Evaluate(result, defaultThresholds)
	assert.False(t, got.Significant)

	low := 0.40
	result.PerceptualSimilarity = &low
	got = Evaluate(result, defaultThresholds)
	require.True(t, got.Significant)
	assert.Contains(t, got.Reasons[0], "Perceptual similarity")
}

func TestEvaluateDiscreteChannels(t *testing.T) {
	result := cleanResult()
	result.MetaTagDiff = map[string]domain.ValueChange{
		"description": {Old: "a", New: "b"},
	}
	result.LinkDiff = domain.SetDiff{Added: []string{"https://example.com/new"}}
	result.ImageDiff = domain.SetDiff{Removed: []string{"https://example.com/old.png"}}
	result.CanonicalChange = &domain.ValueChange{Old: "https://example.com/a", New: "https://example.com/b"}

	got := Evaluate(result, defaultThresholds)

	require.True(t, got.Significant)
	require.Len(t, got.Reasons, 4)
	assert.Contains(t, got.Reasons[0], "Meta tags changed: description")
	assert.Contains(t, got.Reasons[1], "Links changed: 1 added, 0 removed")
	assert.Contains(t, got.Reasons[2], "Image sources changed: 0 added, 1 removed")
	assert.Contains(t, got.Reasons[3], "Canonical URL changed")
}

func TestEvaluateCrawlBrokenLinks(t *testing.T) {
	assert.False(t, EvaluateCrawl(nil).Significant)
	assert.False(t, EvaluateCrawl(&domain.CrawlResult{}).Significant)

	status := 404
	got := EvaluateCrawl(&domain.CrawlResult{
		BrokenLinks: []domain.BrokenLink{
			{URL: "https://example.com/missing", StatusCode: &status},
		},
	})
	require.True(t, got.Significant)
	assert.Contains(t, got.Reasons[0], "Broken links detected: 1")
}

func TestThresholdsForWebsite(t *testing.T) {
	site := &domain.Website{VisualDiffThreshold: 12.5}
	got := defaultThresholds.ForWebsite(site)
	assert.Equal(t, 12.5, got.VisualDiffPercent)
	assert.Equal(t, 0.95, got.ContentSimilarity, "other thresholds untouched")

	unset := &domain.Website{}
	assert.Equal(t, 5.0, defaultThresholds.ForWebsite(unset).VisualDiffPercent)
	assert.Equal(t, 5.0, defaultThresholds.ForWebsite(nil).VisualDiffPercent)
}

func TestMerge(t *testing.T) {
	total := Evaluation{}
	total.Merge(Evaluation{})
	assert.False(t, total.Significant)

	total.Merge(Evaluation{Significant: true, Reasons: []string{"a"}})
	total.Merge(Evaluation{Reasons: nil})
	total.Merge(Evaluation{Significant: true, Reasons: []string{"b", "c"}})

	assert.True(t, total.Significant)
	assert.Equal(t, []string{"a", "b", "c"}, total.Reasons)
}
