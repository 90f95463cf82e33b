package domain

import "time"

// Website is a monitored site. Created and edited through the management
// API; the check pipeline only reads its configuration and updates the
// baseline map and primary baseline pointer.
type Website struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	RootURL         string `json:"root_url"`
	Active          bool   `json:"active"`
	IntervalMinutes int    `json:"interval_minutes"`

	// Per-check-type enable flags for scheduled runs.
	AutoCrawl       bool `json:"auto_crawl"`
	AutoVisual      bool `json:"auto_visual"`
	AutoBlur        bool `json:"auto_blur"`
	AutoPerformance bool `json:"auto_performance"`
	AutoFull        bool `json:"auto_full"`

	MaxCrawlDepth       int     `json:"max_crawl_depth"`
	VisualDiffThreshold float64 `json:"visual_diff_threshold"` // percent; 0 = use global default

	// ExcludeKeywords filters URLs out of visual/blur/performance checks.
	// Matching pages are still crawled so broken links are detected.
	ExcludeKeywords []string `json:"exclude_keywords"`

	// IgnoreRegions are blacked out in both screenshots before visual diffing.
	IgnoreRegions []IgnoreRegion `json:"ignore_regions,omitempty"`

	// Baselines maps normalized internal URLs to their stored artifacts.
	Baselines map[string]BaselineEntry `json:"baselines"`

	// PrimaryBaselineURL points at the baseline considered "the" site
	// baseline, usually the root page. Best effort, may be empty.
	PrimaryBaselineURL string `json:"primary_baseline_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IgnoreRegion is a rectangle in screenshot pixel coordinates.
type IgnoreRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BaselineEntry records the reference artifacts captured for one URL.
// Written once on baseline creation and replaced only by an explicit
// re-baseline; regular checks never touch it.
type BaselineEntry struct {
	HTMLPath       string    `json:"html_path"`
	ScreenshotPath string    `json:"screenshot_path"`
	CapturedAt     time.Time `json:"captured_at"`
}

// PageRecord is the outcome of visiting one URL during a crawl.
// StatusCode is nil when the fetch itself failed (DNS, timeout, refused).
type PageRecord struct {
	URL          string            `json:"url"`
	StatusCode   *int              `json:"status_code"`
	Title        string            `json:"title,omitempty"`
	Internal     bool              `json:"internal"`
	ReferredBy   string            `json:"referred_by,omitempty"`
	Depth        int               `json:"depth"`
	MetaTags     map[string]string `json:"meta_tags,omitempty"`
	Links        []string          `json:"links,omitempty"`
	Images       []string          `json:"images,omitempty"`
	CanonicalURL string            `json:"canonical_url,omitempty"`
	FetchError   string            `json:"fetch_error,omitempty"`
}

// Broken reports whether the page counts as a broken link: the fetch
// failed outright or the server answered with a 4xx/5xx.
func (p *PageRecord) Broken() bool {
	if p.StatusCode == nil {
		return true
	}
	return *p.StatusCode >= 400 && *p.StatusCode <= 599
}

// BrokenLink is derived from a broken PageRecord.
type BrokenLink struct {
	URL        string `json:"url"`
	StatusCode *int   `json:"status_code"`
	ReferredBy string `json:"referred_by,omitempty"`
	Reason     string `json:"reason"`
	Internal   bool   `json:"internal"`
}

// MissingMetaTag flags an internal page whose title or description is
// absent or outside the recommended length band.
type MissingMetaTag struct {
	URL        string `json:"url"`
	TagType    string `json:"tag_type"` // "title" or "description"
	Issue      string `json:"issue"`    // "missing", "too short", "too long"
	Suggestion string `json:"suggestion"`
}

// CrawlStats aggregates counters over one crawl.
type CrawlStats struct {
	PagesCrawled  int         `json:"pages_crawled"`
	InternalPages int         `json:"internal_pages"`
	ExternalPages int         `json:"external_pages"`
	BrokenCount   int         `json:"broken_count"`
	StatusCounts  map[int]int `json:"status_counts"`
}

// CrawlResult is the immutable outcome of one crawl invocation.
//
// Bodies holds the raw HTML of every healthy internal page, keyed by
// normalized URL. It feeds comparison and baseline capture within the
// same check and is never serialized.
type CrawlResult struct {
	WebsiteID       string            `json:"website_id"`
	RootURL         string            `json:"root_url"`
	Timestamp       time.Time         `json:"timestamp"`
	Pages           []PageRecord      `json:"pages"`
	BrokenLinks     []BrokenLink      `json:"broken_links"`
	MissingMetaTags []MissingMetaTag  `json:"missing_meta_tags"`
	Stats           CrawlStats        `json:"stats"`
	Bodies          map[string][]byte `json:"-"`
}

// ValueChange holds the old and new value of a changed field.
type ValueChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// SetDiff holds additions and removals between two string sets.
type SetDiff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Empty reports whether the diff carries no changes.
func (d SetDiff) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

// ComparisonResult is the per-URL outcome of diffing fresh artifacts
// against the stored baseline. HTMLCompared and VisualCompared record
// which channels actually ran, keeping "not computed" distinct from a
// zero score. PerceptualSimilarity is nil when the SSIM pass was
// skipped (image below the minimum window size).
type ComparisonResult struct {
	URL                  string                 `json:"url"`
	HTMLCompared         bool                   `json:"html_compared"`
	VisualCompared       bool                   `json:"visual_compared"`
	TextSimilarity       float64                `json:"text_similarity"`
	StructureSimilarity  float64                `json:"structure_similarity"`
	VisualDiffPercent    float64                `json:"visual_diff_percent"`
	PerceptualSimilarity *float64               `json:"perceptual_similarity,omitempty"`
	DimensionsDiffer     bool                   `json:"dimensions_differ,omitempty"`
	MetaTagDiff          map[string]ValueChange `json:"meta_tag_diff,omitempty"`
	LinkDiff             SetDiff                `json:"link_diff,omitempty"`
	ImageDiff            SetDiff                `json:"image_diff,omitempty"`
	CanonicalChange      *ValueChange           `json:"canonical_change,omitempty"`
	DiffImagePath        string                 `json:"diff_image_path,omitempty"`
}

// CheckRecord is one append-only history row, written for every
// completed check including failures.
//
// Reasons holds significance reasons only; pages that received a fresh
// baseline during the check are listed separately in NewBaselines so a
// missing baseline is reported rather than passed off as "no change".
type CheckRecord struct {
	ID           string             `json:"id"`
	WebsiteID    string             `json:"website_id"`
	CheckType    CheckType          `json:"check_type"`
	Status       CheckStatus        `json:"status"`
	Significant  bool               `json:"significant"`
	Reasons      []string           `json:"reasons"`
	NewBaselines []string           `json:"new_baselines,omitempty"`
	Error        string             `json:"error,omitempty"`
	Crawl        *CrawlResult       `json:"crawl,omitempty"`
	Comparisons  []ComparisonResult `json:"comparisons,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
}
