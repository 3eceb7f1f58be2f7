package sites

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hotprices/pkg/utils"
)

// parseFragment parses an HTML snippet into a goquery document.
func parseFragment(fragment string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	return doc, nil
}

// htmlText returns the visible text of an HTML snippet with whitespace collapsed.
// Plain text passes through unchanged apart from whitespace.
func htmlText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return utils.NormalizeWhitespace(fragment)
	}

	doc, err := parseFragment(fragment)
	if err != nil {
		return utils.NormalizeWhitespace(fragment)
	}

	// Block elements are joined without separators by Text(), so pad them first.
	doc.Find("br, p, li, div").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return utils.NormalizeWhitespace(doc.Text())
}
