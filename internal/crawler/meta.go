package crawler

import (
	"fmt"
	"unicode/utf8"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
)

// Recommended length bands for SEO-relevant meta tags.
const (
	titleMinLen = 10
	titleMaxLen = 60
	descMinLen  = 50
	descMaxLen  = 160
)

const (
	issueMissing  = "missing"
	issueTooShort = "too short"
	issueTooLong  = "too long"
)

// InspectMetaTags checks an internal page's title and description
// against the recommended bands. Each finding carries a generated
// improvement suggestion keyed by tag type and length direction.
func InspectMetaTags(pageURL, title string, metaTags map[string]string) []domain.MissingMetaTag {
	var findings []domain.MissingMetaTag

	if f := inspectTag(pageURL, "title", title, titleMinLen, titleMaxLen); f != nil {
		findings = append(findings, *f)
	}
	if f := inspectTag(pageURL, "description", metaTags["description"], descMinLen, descMaxLen); f != nil {
		findings = append(findings, *f)
	}

	return findings
}

func inspectTag(pageURL, tagType, value string, minLen, maxLen int) *domain.MissingMetaTag {
	length := utf8.RuneCountInString(value)

	var issue, suggestion string
	switch {
	case length == 0:
		issue = issueMissing
		suggestion = fmt.Sprintf(
			"Add a %s of %d-%d characters summarizing the page content.",
			tagType, minLen, maxLen)
	case length < minLen:
		issue = issueTooShort
		suggestion = fmt.Sprintf(
			"Expand the %s to at least %d characters; it is currently %d.",
			tagType, minLen, length)
	case length > maxLen:
		issue = issueTooLong
		suggestion = fmt.Sprintf(
			"Shorten the %s to at most %d characters; it is currently %d and may be truncated in search results.",
			tagType, maxLen, length)
	default:
		return nil
	}

	return &domain.MissingMetaTag{
		URL:        pageURL,
		TagType:    tagType,
		Issue:      issue,
		Suggestion: suggestion,
	}
}
