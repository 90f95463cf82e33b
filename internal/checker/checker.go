// Package checker runs one website check end to end: crawl the link
// graph, capture fresh artifacts, compare them against stored
// baselines, score significance, persist the record and dispatch the
// report.
package checker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/artifact"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/baseline"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/comparison"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/crawler"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/monitoring"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/notify"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/significance"
)

// HistoryStore appends completed check records. The pipeline writes
// records and never reads them back.
type HistoryStore interface {
	SaveCheck(ctx context.Context, record *domain.CheckRecord) error
}

// WebsiteUpdater persists a website record after a check mutated its
// baseline map or primary baseline pointer.
type WebsiteUpdater interface {
	UpdateWebsite(ctx context.Context, site *domain.Website) error
}

// Capturer renders a URL in a browser and stores a screenshot,
// returning the artifact path.
type Capturer interface {
	Capture(ctx context.Context, websiteID, rawURL, label string) (string, error)
}

// Deps are the collaborators a Checker drives. All fields are required.
type Deps struct {
	Crawler   *crawler.Crawler
	Capturer  Capturer
	Engine    *comparison.Engine
	Baselines *baseline.Store
	Artifacts *artifact.Store
	History   HistoryStore
	Websites  WebsiteUpdater
	Reporter  notify.Reporter
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// Options carry global defaults that individual website records may
// override.
type Options struct {
	Thresholds      significance.Thresholds
	DefaultMaxDepth int
	RespectRobots   bool
	CheckExternal   bool
}

// Checker executes checks. It is safe for concurrent use, though the
// scheduler serializes all calls through the single-flight slot.
type Checker struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) *Checker {
	return &Checker{deps: deps, opts: opts}
}

// RunCheck performs one check and returns the persisted record, also on
// failure. The returned error mirrors record.Error for callers that
// branch on it; the record itself is always written to history first.
func (c *Checker) RunCheck(ctx context.Context, site *domain.Website, checkType domain.CheckType) (*domain.CheckRecord, error) {
	record := &domain.CheckRecord{
		ID:        uuid.NewString(),
		WebsiteID: site.ID,
		CheckType: checkType,
		Status:    domain.StatusPending,
		StartedAt: time.Now().UTC(),
	}

	c.deps.Logger.Info("check started",
		zap.String("check_id", record.ID),
		zap.String("website_id", site.ID),
		zap.String("website", site.Name),
		zap.String("check_type", string(checkType)))

	err := c.execute(ctx, site, checkType, record)
	record.FinishedAt = time.Now().UTC()

	if err != nil {
		record.Status = domain.StatusError
		record.Error = err.Error()
		c.deps.Metrics.IncErrorsTotal(domain.ErrorType(err))
		c.deps.Logger.Error("check failed",
			zap.String("check_id", record.ID),
			zap.String("website_id", site.ID),
			zap.Error(err))
	}

	c.deps.Metrics.IncChecksTotal(string(record.Status))
	c.deps.Metrics.CheckDuration.Observe(record.FinishedAt.Sub(record.StartedAt).Seconds())

	if saveErr := c.deps.History.SaveCheck(ctx, record); saveErr != nil {
		c.deps.Metrics.IncErrorsTotal("db_save_failed")
		c.deps.Logger.Error("saving check record failed",
			zap.String("check_id", record.ID), zap.Error(saveErr))
	}

	if record.Significant || record.Status == domain.StatusBaselineCreated || len(record.NewBaselines) > 0 {
		c.report(ctx, site, record)
	}

	c.deps.Logger.Info("check finished",
		zap.String("check_id", record.ID),
		zap.String("website_id", site.ID),
		zap.String("status", string(record.Status)),
		zap.Bool("significant", record.Significant),
		zap.Duration("elapsed", record.FinishedAt.Sub(record.StartedAt)))
	return record, err
}

// execute runs the pipeline stages for one check. A panic anywhere in
// the pipeline is converted into an error here so the scheduling loop
// keeps running and the single-flight slot is released normally.
func (c *Checker) execute(ctx context.Context, site *domain.Website, checkType domain.CheckType, record *domain.CheckRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in check: %v", domain.ErrScheduling, r)
			c.deps.Logger.Error("check panicked",
				zap.String("website_id", site.ID),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	crawlRes, err := c.deps.Crawler.Crawl(ctx, site.ID, site.RootURL, crawler.Options{
		MaxDepth:      c.maxDepth(site),
		RespectRobots: c.opts.RespectRobots,
		CheckExternal: c.opts.CheckExternal,
	})
	if err != nil {
		return fmt.Errorf("%w: crawl: %v", domain.ErrFetchFailure, err)
	}
	record.Crawl = crawlRes

	switch {
	case checkType == domain.CheckTypeBaseline,
		checkType.RunsComparison() && len(site.Baselines) == 0:
		return c.createBaselines(ctx, site, record, crawlRes)
	case checkType.RunsComparison():
		return c.compareAll(ctx, site, record, crawlRes)
	default:
		// Blur and performance scoring run in external pipelines; those
		// check types contribute crawl findings only here.
		c.finishEvaluated(record, significance.EvaluateCrawl(crawlRes))
		return nil
	}
}

// createBaselines captures artifacts for every healthy internal page
// and records them as the reference for future comparisons. It runs for
// explicit baseline checks, where it overwrites existing entries, and
// for the first comparison check of a site that has no baselines yet.
// No significance evaluation happens on this path.
func (c *Checker) createBaselines(ctx context.Context, site *domain.Website, record *domain.CheckRecord, crawlRes *domain.CrawlResult) error {
	label := artifact.TimestampedLabel(record.StartedAt)

	for i := range crawlRes.Pages {
		page := &crawlRes.Pages[i]
		if !page.Internal || page.Broken() || c.excluded(site, page.URL) {
			continue
		}
		body, ok := crawlRes.Bodies[page.URL]
		if !ok {
			continue
		}
		shotPath := c.captureScreenshot(ctx, site, page.URL, label)
		c.storeBaseline(site, record, page.URL, body, shotPath, label)
	}

	if len(record.NewBaselines) > 0 {
		c.persistSite(ctx, site)
	}

	record.Status = domain.StatusBaselineCreated
	record.Reasons = []string{}
	c.deps.Logger.Info("baselines captured",
		zap.String("website_id", site.ID),
		zap.Int("pages", len(record.NewBaselines)))
	return nil
}

// compareAll captures fresh artifacts for every healthy internal page,
// diffs them against stored baselines and aggregates significance
// across pages and crawl findings. Pages without a baseline get one
// created now and are reported through NewBaselines instead of being
// scored as drift.
func (c *Checker) compareAll(ctx context.Context, site *domain.Website, record *domain.CheckRecord, crawlRes *domain.CrawlResult) error {
	label := artifact.TimestampedLabel(record.StartedAt)
	thresholds := c.opts.Thresholds.ForWebsite(site)
	eval := significance.EvaluateCrawl(crawlRes)
	dirty := false

	for i := range crawlRes.Pages {
		page := &crawlRes.Pages[i]
		if !page.Internal || page.Broken() {
			continue
		}
		if c.excluded(site, page.URL) {
			c.deps.Logger.Debug("page excluded from comparison", zap.String("url", page.URL))
			continue
		}
		body, ok := crawlRes.Bodies[page.URL]
		if !ok {
			continue
		}

		shotPath := c.captureScreenshot(ctx, site, page.URL, label)

		base, found := c.deps.Baselines.Get(site, page.URL)
		if !found {
			dirty = c.storeBaseline(site, record, page.URL, body, shotPath, label) || dirty
			continue
		}

		out := c.deps.Engine.Compare(site.ID, comparison.Snapshot{
			URL:            page.URL,
			Label:          label,
			HTML:           body,
			ScreenshotPath: shotPath,
		}, base, site.IgnoreRegions)

		switch out.Kind {
		case comparison.OutcomeOK:
			record.Comparisons = append(record.Comparisons, *out.Result)
			eval.Merge(significance.Evaluate(out.Result, thresholds))
		case comparison.OutcomeNoBaseline:
			// The stored entry points at no artifacts. Same handling as
			// a brand-new page.
			dirty = c.storeBaseline(site, record, page.URL, body, shotPath, label) || dirty
		case comparison.OutcomeFailure:
			c.deps.Metrics.IncErrorsTotal(domain.ErrorType(out.Err))
			c.deps.Logger.Warn("comparison failed, page skipped",
				zap.String("url", page.URL), zap.Error(out.Err))
		}
	}

	if dirty {
		c.persistSite(ctx, site)
	}

	c.finishEvaluated(record, eval)
	return nil
}

// storeBaseline writes the page's artifacts as its baseline entry and
// lists the URL in NewBaselines. Reports whether the site's baseline
// map changed.
func (c *Checker) storeBaseline(site *domain.Website, record *domain.CheckRecord, rawURL string, body []byte, shotPath, label string) bool {
	entry := domain.BaselineEntry{ScreenshotPath: shotPath, CapturedAt: record.StartedAt}

	htmlPath := c.deps.Artifacts.Path(site.ID, rawURL, label, artifact.KindHTML)
	if err := c.deps.Artifacts.Write(htmlPath, body); err != nil {
		c.deps.Metrics.IncErrorsTotal("artifact_write_failed")
		c.deps.Logger.Warn("writing baseline HTML failed",
			zap.String("url", rawURL), zap.Error(err))
		if shotPath == "" {
			return false
		}
	} else {
		entry.HTMLPath = htmlPath
	}

	c.deps.Baselines.Set(site, rawURL, entry)
	record.NewBaselines = append(record.NewBaselines, rawURL)
	c.deps.Logger.Info("baseline stored",
		zap.String("website_id", site.ID), zap.String("url", rawURL))
	return true
}

// captureScreenshot is best effort: a capture failure degrades that URL
// to HTML-only comparison rather than failing the check.
func (c *Checker) captureScreenshot(ctx context.Context, site *domain.Website, rawURL, label string) string {
	path, err := c.deps.Capturer.Capture(ctx, site.ID, rawURL, label)
	if err != nil {
		c.deps.Metrics.IncErrorsTotal("screenshot_failed")
		c.deps.Logger.Warn("screenshot capture failed",
			zap.String("url", rawURL), zap.Error(err))
		return ""
	}
	return path
}

// persistSite writes the mutated baseline map back. On failure the
// artifacts stay on disk and the next check recreates the entries, so
// the current check still completes with its findings.
func (c *Checker) persistSite(ctx context.Context, site *domain.Website) {
	site.UpdatedAt = time.Now().UTC()
	if err := c.deps.Websites.UpdateWebsite(ctx, site); err != nil {
		c.deps.Metrics.IncErrorsTotal("db_save_failed")
		c.deps.Logger.Error("persisting baseline map failed",
			zap.String("website_id", site.ID), zap.Error(err))
	}
}

// finishEvaluated records the aggregated verdict. A comparison check
// that scored no page but baselined new ones ends as baseline-created
// rather than claiming a "no significant change" it never verified.
func (c *Checker) finishEvaluated(record *domain.CheckRecord, eval significance.Evaluation) {
	record.Significant = eval.Significant
	record.Reasons = eval.Reasons
	if record.Reasons == nil {
		record.Reasons = []string{}
	}

	switch {
	case eval.Significant:
		record.Status = domain.StatusChangeDetected
		c.deps.Metrics.SignificantTotal.Inc()
	case len(record.Comparisons) == 0 && len(record.NewBaselines) > 0:
		record.Status = domain.StatusBaselineCreated
	default:
		record.Status = domain.StatusNoSignificantChange
	}
}

// report hands the record to the configured reporter. Delivery failures
// never change the check outcome.
func (c *Checker) report(ctx context.Context, site *domain.Website, record *domain.CheckRecord) {
	if err := c.deps.Reporter.Send(ctx, site, record); err != nil {
		c.deps.Metrics.IncErrorsTotal("report_failed")
		c.deps.Logger.Warn("report dispatch failed",
			zap.String("check_id", record.ID), zap.Error(err))
	}
}

// excluded reports whether the URL matches one of the website's exclude
// keywords. Matching is a case-insensitive substring test over the full
// URL.
func (c *Checker) excluded(site *domain.Website, rawURL string) bool {
	if len(site.ExcludeKeywords) == 0 {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, kw := range site.ExcludeKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (c *Checker) maxDepth(site *domain.Website) int {
	if site.MaxCrawlDepth > 0 {
		return site.MaxCrawlDepth
	}
	return c.opts.DefaultMaxDepth
}
