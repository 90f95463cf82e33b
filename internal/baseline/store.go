// Package baseline manages the per-website map of reference artifacts
// that later checks compare against.
package baseline

import (
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/urlutil"
)

// Store reads and updates the baseline map carried on a Website record.
// Persisting the mutated record stays with the caller.
type Store struct {
	logger *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

// Get returns the baseline entry for rawURL. An exact key match wins;
// otherwise the lookup falls back to comparing normalized forms, so an
// entry recorded under an equivalent spelling of the URL is still
// found.
func (s *Store) Get(site *domain.Website, rawURL string) (domain.BaselineEntry, bool) {
	if entry, ok := site.Baselines[rawURL]; ok {
		return entry, true
	}

	norm, err := urlutil.Normalize(rawURL)
	if err != nil {
		return domain.BaselineEntry{}, false
	}
	if entry, ok := site.Baselines[norm]; ok {
		return entry, true
	}

	// Keys should already be normalized; scan for records that predate
	// that invariant.
	for key, entry := range site.Baselines {
		if keyNorm, err := urlutil.Normalize(key); err == nil && keyNorm == norm {
			return entry, true
		}
	}
	return domain.BaselineEntry{}, false
}

// Set records entry under the normalized form of rawURL and refreshes
// the primary baseline pointer. Artifact kinds merge: an empty path in
// entry keeps whatever the existing entry had, so a screenshot-only
// update never drops a stored HTML baseline.
func (s *Store) Set(site *domain.Website, rawURL string, entry domain.BaselineEntry) {
	key := rawURL
	if norm, err := urlutil.Normalize(rawURL); err == nil {
		key = norm
	}

	if site.Baselines == nil {
		site.Baselines = make(map[string]domain.BaselineEntry)
	}
	if old, ok := site.Baselines[key]; ok {
		if entry.HTMLPath == "" {
			entry.HTMLPath = old.HTMLPath
		}
		if entry.ScreenshotPath == "" {
			entry.ScreenshotPath = old.ScreenshotPath
		}
	}
	site.Baselines[key] = entry

	s.refreshPrimary(site)
}

// refreshPrimary recomputes the primary baseline pointer: the site's
// root URL when a baseline exists for it, else the first stored URL
// whose path is empty, "/" or mentions "home". When nothing qualifies
// the pointer is cleared.
func (s *Store) refreshPrimary(site *domain.Website) {
	if root, err := urlutil.Normalize(site.RootURL); err == nil {
		if _, ok := site.Baselines[root]; ok {
			site.PrimaryBaselineURL = root
			return
		}
	}

	keys := make([]string, 0, len(site.Baselines))
	for key := range site.Baselines {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		parsed, err := url.Parse(key)
		if err != nil {
			continue
		}
		path := strings.ToLower(parsed.Path)
		if path == "" || path == "/" || strings.Contains(path, "home") {
			site.PrimaryBaselineURL = key
			return
		}
	}

	site.PrimaryBaselineURL = ""
	s.logger.Debug("no primary baseline candidate",
		zap.String("website_id", site.ID),
		zap.Int("baselines", len(site.Baselines)))
}
