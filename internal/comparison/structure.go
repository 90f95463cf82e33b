package comparison

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// StructureSimilarity compares the tag skeletons of two HTML documents:
// the ordered sequence of opening tags with their attributes, text and
// comment content stripped and script, style and noscript nodes
// dropped. Layout rewrites move this even when the visible text is
// untouched.
func StructureSimilarity(base, fresh []byte) float64 {
	return ratio(tagSkeleton(base), tagSkeleton(fresh))
}

// skeletonDropped lists elements excluded from the skeleton. Their
// contents never reach it either: the tokenizer treats them as raw
// text, which is discarded along with every other text node.
var skeletonDropped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
}

// tagSkeleton serializes doc into its start and self-closing tags in
// document order, each with its attributes. The tokenizer recovers from
// malformed markup, so the walk ends only at EOF.
func tagSkeleton(doc []byte) []string {
	var tags []string
	tok := html.NewTokenizer(bytes.NewReader(doc))
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tok.TagName()
			if skeletonDropped[string(name)] {
				continue
			}
			entry := string(name)
			if hasAttr {
				var sb strings.Builder
				sb.WriteString(entry)
				for {
					key, val, more := tok.TagAttr()
					sb.WriteByte(' ')
					sb.Write(key)
					sb.WriteByte('=')
					sb.Write(val)
					if !more {
						break
					}
				}
				entry = sb.String()
			}
			tags = append(tags, entry)
		}
	}
}
