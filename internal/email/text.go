package email

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText renders an HTML email as its plain-text alternative. Links keep their target
// in parentheses and block elements start on their own line.
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("head, script, style, noscript").Remove()

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		label := strings.TrimSpace(s.Text())
		switch {
		case href == "" || strings.HasPrefix(href, "#"):
		case label == "" || label == href:
			s.SetText(href)
		default:
			s.SetText(label + " (" + href + ")")
		}
	})

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").PrependHtml("- ")
	doc.Find(".stat-value").AppendHtml(" ")
	doc.Find("p, li, tr, td, h1, h2, h3, div, ul, table").AppendHtml("\n")

	return cleanWhitespace(doc.Find("body").Text()), nil
}

// cleanWhitespace collapses runs of spaces inside lines and drops blank lines.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
