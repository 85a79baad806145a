package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MaxReadChars bounds how much page text is read aloud.
const MaxReadChars = 500

// mainSelectors are tried in order; the first non-empty match wins.
var mainSelectors = []string{
	"main",
	"article",
	"[role=main]",
	".content",
	"#content",
	".post-content",
	".entry-content",
}

// noise is removed before any text is taken.
const noise = "script, style, noscript, template, svg, nav, header, footer, aside"

// blocks get a trailing space so adjacent paragraphs do not run together.
const blocks = "p, div, section, li, br, h1, h2, h3, h4, h5, h6, td, th, tr, blockquote, pre, dd, dt"

// ExtractText returns the readable text of the page's main content region,
// falling back to the body. Whitespace is collapsed to single spaces.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("browser: parse html: %w", err)
	}
	doc.Find(noise).Remove()
	doc.Find(blocks).AppendHtml(" ")

	for _, sel := range mainSelectors {
		if text := collapse(doc.Find(sel).First().Text()); text != "" {
			return text, nil
		}
	}
	return collapse(doc.Find("body").Text()), nil
}

// ExtractTitle returns the document title from html.
func ExtractTitle(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("browser: parse html: %w", err)
	}
	return collapse(doc.Find("title").First().Text()), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Summarize trims text to at most limit characters, appending "..." when
// anything was cut. It never splits a multi-byte character.
func Summarize(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
