package domain

import "errors"

// Failure taxonomy for checks. Producers wrap one of these sentinels
// with fmt.Errorf("...: %w", ...) so callers classify via errors.Is
// instead of string matching.
var (
	// ErrFetchFailure covers transport-level failures: DNS, refused
	// connections, timeouts. No HTTP response was received.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrHTTPError covers responses received with a 4xx or 5xx status.
	ErrHTTPError = errors.New("http error")

	// ErrMissingBaseline is returned when a comparison is requested for
	// a URL that has no stored baseline. It is always surfaced as its
	// own outcome, never folded into "no change".
	ErrMissingBaseline = errors.New("missing baseline")

	// ErrComparisonFailure covers unreadable or undecodable artifacts
	// and diff-stage errors.
	ErrComparisonFailure = errors.New("comparison failure")

	// ErrScheduling covers failures to set up or dispatch a check
	// before any page work started.
	ErrScheduling = errors.New("scheduling error")

	// ErrWebsiteNotFound is returned by stores for unknown website IDs.
	ErrWebsiteNotFound = errors.New("website not found")
)

// ErrorType maps err onto its taxonomy bucket. Used as a metrics label
// and in persisted check rows.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, ErrFetchFailure):
		return "fetch_failure"
	case errors.Is(err, ErrHTTPError):
		return "http_error"
	case errors.Is(err, ErrMissingBaseline):
		return "missing_baseline"
	case errors.Is(err, ErrComparisonFailure):
		return "comparison_failure"
	case errors.Is(err, ErrScheduling):
		return "scheduling_error"
	default:
		return "internal"
	}
}
