package ingestion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlTagRe = regexp.MustCompile(`(?i)<\s*(html|body|div|p|br|ul|ol|li|h[1-6]|span|strong|em|b|table|section)\b[^>]*>`)

// LooksLikeHTML reports whether s contains common HTML markup. Job descriptions pasted
// from job boards usually do.
func LooksLikeHTML(s string) bool {
	return htmlTagRe.MatchString(s)
}

// HTMLToText converts an HTML fragment or document to cleaned plain text. Scripts and
// styles are dropped, block elements end a line and list items become "- " bullets.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, template").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("- ")
	})
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, section, article, header, footer").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return CleanText(root.Text()), nil
}

// NormalizeDescription returns description as plain text, converting it from HTML when it
// looks like markup. Plain text only goes through CleanText.
func NormalizeDescription(description string) (string, error) {
	if !LooksLikeHTML(description) {
		return CleanText(description), nil
	}
	return HTMLToText(description)
}
