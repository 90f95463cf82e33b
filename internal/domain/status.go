package domain

// CheckStatus is the lifecycle state of a check. Every record starts
// pending and ends in exactly one of the terminal states.
type CheckStatus string

const (
	StatusPending             CheckStatus = "pending"
	StatusBaselineCreated     CheckStatus = "baseline-created"
	StatusNoSignificantChange CheckStatus = "no-significant-change"
	StatusChangeDetected      CheckStatus = "change-detected"
	StatusError               CheckStatus = "error"
)

// CheckType selects which parts of the pipeline a check runs.
type CheckType string

const (
	CheckTypeCrawl       CheckType = "crawl"
	CheckTypeVisual      CheckType = "visual"
	CheckTypeBlur        CheckType = "blur"
	CheckTypePerformance CheckType = "performance"
	CheckTypeFull        CheckType = "full"
	CheckTypeBaseline    CheckType = "baseline"
)

// RunsComparison reports whether the check type compares captured
// artifacts against stored baselines.
func (t CheckType) RunsComparison() bool {
	return t == CheckTypeVisual || t == CheckTypeFull
}

// RunsCrawl reports whether the check type walks the link graph.
func (t CheckType) RunsCrawl() bool {
	return t == CheckTypeCrawl || t == CheckTypeFull || t == CheckTypeBaseline ||
		t == CheckTypeVisual || t == CheckTypeBlur || t == CheckTypePerformance
}
