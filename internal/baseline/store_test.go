package baseline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
)

func newSite() *domain.Website {
	return &domain.Website{
		ID:      "site-1",
		RootURL: "https://example.com",
	}
}

func TestGetFallsBackToNormalizedForm(t *testing.T) {
	store := NewStore(zap.NewNop())
	site := newSite()
	entry := domain.BaselineEntry{HTMLPath: "/artifacts/a.html", CapturedAt: time.Now()}
	site.Baselines = map[string]domain.BaselineEntry{
		"https://example.com/about": entry,
	}

	got, ok := store.Get(site, "https://example.com/about")
	require.True(t, ok)
	assert.Equal(t, entry, got)

	// Equivalent spellings of the same URL still find the entry.
	got, ok = store.Get(site, "HTTPS://EXAMPLE.COM/about/")
	require.True(t, ok)
	assert.Equal(t, entry, got)

	_, ok = store.Get(site, "https://example.com/pricing")
	assert.False(t, ok)
}

func TestGetFindsLegacyUnnormalizedKey(t *testing.T) {
	store := NewStore(zap.NewNop())
	site := newSite()
	entry := domain.BaselineEntry{HTMLPath: "/artifacts/legacy.html"}
	site.Baselines = map[string]domain.BaselineEntry{
		"HTTPS://Example.com/Contact/": entry,
	}

	got, ok := store.Get(site, "https://example.com/Contact")
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestSetNormalizesKeyAndMergesKinds(t *testing.T) {
	store := NewStore(zap.NewNop())
	site := newSite()

	store.Set(site, "HTTPS://EXAMPLE.COM/about/", domain.BaselineEntry{
		HTMLPath:   "/artifacts/about.html",
		CapturedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	require.Contains(t, site.Baselines, "https://example.com/about")

	// A later screenshot-only update keeps the stored HTML path.
	store.Set(site, "https://example.com/about", domain.BaselineEntry{
		ScreenshotPath: "/artifacts/about.png",
		CapturedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})

	got := site.Baselines["https://example.com/about"]
	assert.Equal(t, "/artifacts/about.html", got.HTMLPath)
	assert.Equal(t, "/artifacts/about.png", got.ScreenshotPath)
	assert.Equal(t, 2026, got.CapturedAt.Year())
	assert.Equal(t, time.Month(2), got.CapturedAt.Month())
}

func TestPrimaryPointerPrefersRootURL(t *testing.T) {
	store := NewStore(zap.NewNop())
	site := newSite()

	store.Set(site, "https://example.com/pricing", domain.BaselineEntry{HTMLPath: "p.html"})
	assert.Empty(t, site.PrimaryBaselineURL, "no qualifying candidate yet")

	store.Set(site, "https://example.com/home-page", domain.BaselineEntry{HTMLPath: "h.html"})
	assert.Equal(t, "https://example.com/home-page", site.PrimaryBaselineURL)

	store.Set(site, "https://example.com", domain.BaselineEntry{HTMLPath: "root.html"})
	assert.Equal(t, "https://example.com/", site.PrimaryBaselineURL)
}

func TestPrimaryPointerClearedWhenNothingQualifies(t *testing.T) {
	store := NewStore(zap.NewNop())
	site := newSite()
	site.PrimaryBaselineURL = "https://example.com/stale"

	store.Set(site, "https://example.com/pricing", domain.BaselineEntry{HTMLPath: "p.html"})
	assert.Empty(t, site.PrimaryBaselineURL)
}
