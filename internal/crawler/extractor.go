package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/urlutil"
)

// PageFacts is everything the monitor needs from one HTML document.
type PageFacts struct {
	Title        string
	MetaTags     map[string]string
	Links        []string // absolute, deduplicated, crawlable schemes only
	Images       []string // absolute src values, deduplicated
	CanonicalURL string
	VisibleText  string
}

// ExtractPageFacts parses HTML and pulls out the title, meta tags,
// outbound links, image sources, canonical URL and visible text.
// Relative references are resolved against pageURL.
func ExtractPageFacts(pageURL, htmlContent string) (*PageFacts, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	facts := &PageFacts{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		MetaTags: make(map[string]string),
	}

	doc.Find("meta").Each(func(i int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		property, _ := s.Attr("property")
		content, _ := s.Attr("content")
		key := name
		if key == "" {
			key = property
		}
		if key != "" && content != "" {
			facts.MetaTags[strings.ToLower(key)] = content
		}
	})

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if abs, err := urlutil.Resolve(base, href); err == nil {
			facts.CanonicalURL = urlutil.MustNormalize(abs)
		}
	}

	seenLinks := make(map[string]struct{})
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !urlutil.Crawlable(href) {
			return
		}
		abs, err := urlutil.Resolve(base, href)
		if err != nil {
			return
		}
		norm, err := urlutil.Normalize(abs)
		if err != nil {
			return
		}
		if _, dup := seenLinks[norm]; dup {
			return
		}
		seenLinks[norm] = struct{}{}
		facts.Links = append(facts.Links, norm)
	})

	seenImages := make(map[string]struct{})
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			// Lazy-loaded images park the real source in data-src.
			src, ok = s.Attr("data-src")
			if !ok || src == "" {
				return
			}
		}
		abs, err := urlutil.Resolve(base, src)
		if err != nil {
			return
		}
		if _, dup := seenImages[abs]; dup {
			return
		}
		seenImages[abs] = struct{}{}
		facts.Images = append(facts.Images, abs)
	})

	facts.VisibleText = VisibleText(doc)

	return facts, nil
}

// VisibleText returns the document's rendered text with script and
// style contents removed and whitespace collapsed to single spaces.
func VisibleText(doc *goquery.Document) string {
	clone := doc.Selection.Clone()
	clone.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(clone.Find("body").Text()), " ")
}

// VisibleTextFromHTML is VisibleText for callers holding raw HTML.
func VisibleTextFromHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}
	return VisibleText(doc), nil
}
