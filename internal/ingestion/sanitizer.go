package ingestion

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	markupPattern     = regexp.MustCompile(`(?i)<\s*(html|body|div|p|h[1-6]|table|ul|ol|span|br)\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeContent strips markup from form-submitted document content
// before it is forwarded to the ingestion service. Plain text passes
// through trimmed; content that fails extraction falls back to the
// trimmed original rather than being dropped.
func NormalizeContent(content string) string {
	trimmed := strings.TrimSpace(content)
	if !markupPattern.MatchString(trimmed) {
		return trimmed
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return trimmed
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if text == "" {
		return trimmed
	}
	return text
}
