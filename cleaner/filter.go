package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noise is removed before a page is converted to markdown. Inline images
// carry base64 captchas and QR codes that swamp the dump.
var noise = []string{"script", "style", "noscript", "iframe", "svg", "link", "meta", "img[src^='data:']"}

// Strip removes every element matching one of patterns, along with
// elements hidden by an inline display:none. Unparsable input is returned
// unchanged.
func Strip(html string, patterns []string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find(strings.Join(patterns, ", ")).Remove()
	doc.Find("[style]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
		return strings.Contains(style, "display:none")
	}).Remove()

	out, err := doc.Html()
	if err != nil {
		return html
	}
	return out
}
