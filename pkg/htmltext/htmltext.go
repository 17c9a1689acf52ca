// Package htmltext reduces HTML email bodies to plain text lines.
package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelectors = "p, div, tr, li, table, h1, h2, h3, h4, h5, h6, td, th"

// ToText renders html as text with one line per block element. Scripts and
// styles are dropped; whitespace inside each line is collapsed.
func ToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelectors).AppendHtml("\n")

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// LooksLikeHTML reports whether body appears to be markup rather than text
func LooksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") || strings.Contains(lower, "<table") ||
		strings.Contains(lower, "<p>") || strings.Contains(lower, "<br")
}
