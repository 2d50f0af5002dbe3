// Package extract converts fetched page bytes into plain text for indexing.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// targetClasses are the known content containers on managed pages. When any
// are present, only their text is extracted; otherwise the whole page goes
// through readability.
var targetClasses = []string{"content-text-full", "right-content"}

// ErrNoContent indicates the page produced no extractable text. Callers
// treat this as a permanent content error: logged, not retried.
var ErrNoContent = errors.New("no extractable content")

// FromHTML extracts clean plain text from raw HTML. pageURL is used by the
// readability fallback to resolve relative references.
func FromHTML(raw []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var parts []string
	for _, class := range targetClasses {
		doc.Find("." + class).Each(func(_ int, sel *goquery.Selection) {
			parts = append(parts, sel.Text())
		})
	}

	text := strings.Join(parts, "\n")
	if strings.TrimSpace(text) == "" {
		text = readableText(raw, pageURL)
	}
	if strings.TrimSpace(text) == "" {
		// Last resort: strip chrome elements and take the body text.
		doc.Find("script, style, nav, footer, header, aside").Remove()
		text = doc.Text()
	}

	text = normalizeWhitespace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrNoContent, pageURL)
	}
	return text, nil
}

// readableText runs the readability article extractor; errors degrade to "".
func readableText(raw []byte, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = nil
	}
	article, err := readability.FromReader(bytes.NewReader(raw), u)
	if err != nil {
		return ""
	}
	return article.TextContent
}

// normalizeWhitespace collapses the extraction output into non-empty,
// trimmed lines.
func normalizeWhitespace(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(line, "  ") {
			if p := strings.TrimSpace(phrase); p != "" {
				lines = append(lines, p)
			}
		}
	}
	return strings.Join(lines, "\n")
}
