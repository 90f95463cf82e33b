// Package comparison diffs freshly captured page artifacts against
// stored baselines across four channels: visible text, tag structure,
// raw pixels and perceptual similarity, plus discrete diffs of meta
// tags, link sets, image sets and the canonical URL.
package comparison

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/artifact"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/crawler"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
)

// OutcomeKind discriminates the three results a comparison can have.
type OutcomeKind int

const (
	// OutcomeOK means the diff ran; Result is populated.
	OutcomeOK OutcomeKind = iota
	// OutcomeNoBaseline means no stored baseline covers the URL. It is
	// reported as its own state, never collapsed into "no change".
	OutcomeNoBaseline
	// OutcomeFailure means the diff could not run; Err is populated.
	OutcomeFailure
)

// Outcome is the tagged result of comparing one URL. Result is set only
// for OutcomeOK, Err only for OutcomeFailure.
type Outcome struct {
	Kind   OutcomeKind
	Result *domain.ComparisonResult
	Err    error
}

// OK wraps a completed comparison result.
func OK(result *domain.ComparisonResult) Outcome {
	return Outcome{Kind: OutcomeOK, Result: result}
}

// NoBaseline marks a URL that has nothing stored to compare against.
func NoBaseline() Outcome { return Outcome{Kind: OutcomeNoBaseline} }

// Failure marks a comparison that errored before producing a result.
func Failure(err error) Outcome { return Outcome{Kind: OutcomeFailure, Err: err} }

// Snapshot carries the fresh artifacts captured for one URL during the
// current check.
type Snapshot struct {
	URL            string
	Label          string // capture label of this check, reused for diff images
	HTML           []byte // nil when the page body was not retained
	ScreenshotPath string // empty when no screenshot was captured
}

// Engine runs the per-URL diff pipeline.
type Engine struct {
	artifacts       *artifact.Store
	pixelTolerance  int
	writeDiffImages bool
	logger          *zap.Logger
}

// NewEngine builds an Engine. pixelTolerance is the per-channel delta
// below which two pixels count as identical.
func NewEngine(artifacts *artifact.Store, pixelTolerance int, writeDiffImages bool, logger *zap.Logger) *Engine {
	return &Engine{
		artifacts:       artifacts,
		pixelTolerance:  pixelTolerance,
		writeDiffImages: writeDiffImages,
		logger:          logger,
	}
}

// Compare diffs snap against base. Text, structure and discrete diffs
// run when both sides carry HTML; pixel and perceptual diffs run when
// both sides carry a screenshot. Channels with artifacts on only one
// side are left at their zero value rather than failing the whole
// comparison.
func (e *Engine) Compare(websiteID string, snap Snapshot, base domain.BaselineEntry, regions []domain.IgnoreRegion) Outcome {
	if base.HTMLPath == "" && base.ScreenshotPath == "" {
		return NoBaseline()
	}

	started := time.Now()
	result := &domain.ComparisonResult{URL: snap.URL}

	if len(snap.HTML) > 0 && base.HTMLPath != "" {
		if err := e.compareHTML(snap, base, result); err != nil {
			return Failure(err)
		}
	}

	if snap.ScreenshotPath != "" && base.ScreenshotPath != "" {
		if err := e.compareScreenshots(websiteID, snap, base, regions, result); err != nil {
			return Failure(err)
		}
	}

	e.logger.Debug("comparison finished",
		zap.String("url", snap.URL),
		zap.Float64("text_similarity", result.TextSimilarity),
		zap.Float64("structure_similarity", result.StructureSimilarity),
		zap.Float64("visual_diff_percent", result.VisualDiffPercent),
		zap.Duration("elapsed", time.Since(started)))

	return OK(result)
}

// compareHTML fills the text, structure and discrete channels.
func (e *Engine) compareHTML(snap Snapshot, base domain.BaselineEntry, result *domain.ComparisonResult) error {
	baseHTML, err := e.artifacts.Read(base.HTMLPath)
	if err != nil {
		return fmt.Errorf("%w: baseline html for %s: %v", domain.ErrComparisonFailure, snap.URL, err)
	}
	result.HTMLCompared = true

	freshText, err := crawler.VisibleTextFromHTML(string(snap.HTML))
	if err != nil {
		return fmt.Errorf("%w: parse fresh html for %s: %v", domain.ErrComparisonFailure, snap.URL, err)
	}
	baseText, err := crawler.VisibleTextFromHTML(string(baseHTML))
	if err != nil {
		return fmt.Errorf("%w: parse baseline html for %s: %v", domain.ErrComparisonFailure, snap.URL, err)
	}

	result.TextSimilarity = TextSimilarity(baseText, freshText)
	result.StructureSimilarity = StructureSimilarity(baseHTML, snap.HTML)

	freshFacts, err := crawler.ExtractPageFacts(snap.URL, string(snap.HTML))
	if err != nil {
		return fmt.Errorf("%w: extract fresh facts for %s: %v", domain.ErrComparisonFailure, snap.URL, err)
	}
	baseFacts, err := crawler.ExtractPageFacts(snap.URL, string(baseHTML))
	if err != nil {
		return fmt.Errorf("%w: extract baseline facts for %s: %v", domain.ErrComparisonFailure, snap.URL, err)
	}

	result.MetaTagDiff = DiffMetaTags(baseFacts.MetaTags, freshFacts.MetaTags)
	result.LinkDiff = DiffStringSets(baseFacts.Links, freshFacts.Links)
	result.ImageDiff = DiffStringSets(baseFacts.Images, freshFacts.Images)
	result.CanonicalChange = CanonicalChange(baseFacts.CanonicalURL, freshFacts.CanonicalURL)

	return nil
}
