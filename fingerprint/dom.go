package fingerprint

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DriftThreshold is the structural distance above which two pages of one
// listing are considered differently laid out.
const DriftThreshold = 12

const shingleSize = 3

// Structure hashes the tag sequence of a document, ignoring text and
// attributes, so two pages of the same grid hash close together whatever
// rows they show.
func Structure(doc string) uint64 {
	tags := tagSequence(doc)
	if len(tags) < shingleSize {
		return simhash(tags)
	}
	shingles := make([]string, 0, len(tags)-shingleSize+1)
	for i := 0; i+shingleSize <= len(tags); i++ {
		shingles = append(shingles, strings.Join(tags[i:i+shingleSize], ">"))
	}
	return simhash(shingles)
}

// tagSequence lists start tags in document order, minus scripts and
// styles, whose count varies with ads and trackers.
func tagSequence(doc string) []string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var tags []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Noscript, atom.Link, atom.Meta:
				continue
			}
			tags = append(tags, string(name))
		}
	}
}
