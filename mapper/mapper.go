// Package mapper turns one row's cell texts into a Record following a
// site schema.
package mapper

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
)

// Skip says why a row produced no record.
type Skip int

const (
	SkipNone Skip = iota
	SkipNoise
	SkipHeader
	SkipNoCells
	SkipInsignificant
)

func (s Skip) String() string {
	switch s {
	case SkipNone:
		return "none"
	case SkipNoise:
		return "noise"
	case SkipHeader:
		return "header"
	case SkipNoCells:
		return "no_cells"
	case SkipInsignificant:
		return "insignificant"
	default:
		return "skip(" + strconv.Itoa(int(s)) + ")"
	}
}

var numberRe = regexp.MustCompile(`\d+(?:,\d{3})*(?:\.\d+)?`)

// MapRow maps cells to a record. rawText is the row's rendered text and
// index its position in the row list; only row 0 is checked for header
// keywords.
func MapRow(cells []string, rawText string, index int, s *schema.Schema) (models.Record, Skip) {
	// ── 1. Noise ──
	text := strings.TrimSpace(rawText)
	if text == "" || utf8.RuneCountInString(text) < s.MinTextLen {
		return nil, SkipNoise
	}
	if s.MinTokens > 0 && len(strings.Fields(text)) <= s.MinTokens {
		return nil, SkipNoise
	}

	// ── 2. Header ──
	if index == 0 && containsAny(text, s.HeaderKeywords) {
		return nil, SkipHeader
	}

	if len(cells) == 0 {
		return nil, SkipNoCells
	}

	// ── 3. Positional layouts, full first ──
	rec := s.NewRecord()
	if l := pickLayout(s.Layouts, len(cells)); l != nil {
		applyLayout(rec, l, cells, text)
	} else if l := pickLayout(s.TokenLayouts, len(strings.Fields(text))); l != nil {
		applyTokens(rec, l, text, s)
	}

	// ── 4. Cleaning ──
	Clean(rec, s)

	// ── 5. Significance ──
	if !rec.AnyOf(s.Significant()...) {
		return nil, SkipInsignificant
	}
	return rec, SkipNone
}

// pickLayout returns the first layout whose MinCells n satisfies.
func pickLayout(layouts []schema.Layout, n int) *schema.Layout {
	for i := range layouts {
		if n >= layouts[i].MinCells {
			return &layouts[i]
		}
	}
	return nil
}

func applyLayout(rec models.Record, l *schema.Layout, cells []string, text string) {
	for i := range l.Columns {
		c := &l.Columns[i]
		if c.Index >= len(cells) {
			continue
		}
		applyColumn(rec, c, cells[c.Index])
	}
	for i := range l.RowText {
		p := &l.RowText[i]
		if rec[p.Field] != "" {
			continue
		}
		if m := p.Regexp().FindStringSubmatch(text); m != nil {
			rec[p.Field] = strings.ReplaceAll(m[1], ",", "")
		}
	}
}

func applyColumn(rec models.Record, c *schema.Column, raw string) {
	val := raw
	switch c.Kind {
	case schema.KindComposite:
		parts := strings.SplitN(val, c.Delimiter, 2)
		if r := c.Replacer(); r != nil {
			for i := range parts {
				parts[i] = r.Replace(parts[i])
			}
		}
		first := parts[0]
		if c.StripSign {
			first = strings.NewReplacer("+", "", "-", "").Replace(first)
		}
		rec[c.Field] = strings.TrimSpace(first)
		if len(parts) == 2 && c.Secondary != "" {
			rec[c.Secondary] = strings.TrimSpace(parts[1])
		}
		return
	case schema.KindTail:
		val = Tail(strings.TrimSpace(val), c.Keep)
	case schema.KindNumber:
		val = Number(val)
	case schema.KindOrigin:
		val = Origin(val)
	}
	if r := c.Replacer(); r != nil {
		val = r.Replace(val)
	}
	rec[c.Field] = val
}

func applyTokens(rec models.Record, l *schema.Layout, text string, s *schema.Schema) {
	tokens := strings.Fields(text)
	for i := range l.Columns {
		c := &l.Columns[i]
		if c.Index < len(tokens) {
			applyColumn(rec, c, tokens[c.Index])
		}
	}

	price, ok := s.FieldFor(schema.RolePrice)
	if !ok || rec[price] != "" {
		return
	}
	for _, tok := range tokens {
		if !allDigits(tok) {
			continue
		}
		if v, err := strconv.ParseFloat(tok, 64); err == nil && v > s.TokenPriceFloor {
			rec[price] = tok
			return
		}
	}
}

// Clean trims every field and reduces price fields to digits and dots.
func Clean(rec models.Record, s *schema.Schema) {
	for k, v := range rec {
		v = strings.TrimSpace(v)
		if s.RoleOf(k) == schema.RolePrice {
			v = DigitsOnly(v)
		}
		rec[k] = v
	}
}

// Number returns the first grouped number in s without its commas, or s
// unchanged when there is none.
func Number(s string) string {
	m := numberRe.FindString(s)
	if m == "" {
		return s
	}
	return strings.ReplaceAll(m, ",", "")
}

// Origin picks the origin out of a "warehouse / origin" cell: the last
// line, else the part after the first slash, else the last token.
func Origin(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, "\n"):
		lines := strings.Split(s, "\n")
		return strings.TrimSpace(lines[len(lines)-1])
	case strings.Contains(s, "/"):
		return strings.TrimSpace(strings.Split(s, "/")[1])
	case strings.Contains(s, " "):
		fields := strings.Fields(s)
		return fields[len(fields)-1]
	}
	return s
}

// Tail keeps the last n runes of s.
func Tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// DigitsOnly drops everything but ASCII digits and dots.
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
