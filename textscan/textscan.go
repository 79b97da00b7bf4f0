// Package textscan recovers records from a page's rendered text when no
// grid markup can be located.
package textscan

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Carbocoon/SteelPriceCrawler/mapper"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
)

var (
	dimensionRe = regexp.MustCompile(`\d+[×*xX]\d+`)
	gradeRe     = regexp.MustCompile(`[A-Za-z]+\d+`)
	priceRe     = regexp.MustCompile(`(\d{3,5})\s*(?:元/吨|元|¥)`)
	stockRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:吨|件|支)`)
	weightRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:吨|t|kg)`)
	toleranceRe = regexp.MustCompile(`([+-]?\d+(?:\.\d+)?)%?`)

	toleranceWords = []string{"负差", "偏差", "公差"}

	// Whole-line price patterns, tried in order once the tokens gave none.
	linePriceRes = []*regexp.Regexp{
		regexp.MustCompile(`价格\s*[:：]\s*(\d{3,5})`),
		regexp.MustCompile(`(\d{3,5})\s*元/吨`),
		regexp.MustCompile(`¥\s*(\d{3,5})`),
		regexp.MustCompile(`(\d{3,5})\s*元`),
	}

	// A line matching one of these is worth parsing even without a steel
	// keyword.
	strictPriceRes = []*regexp.Regexp{
		regexp.MustCompile(`\d{3,5}\s*元/吨`),
		regexp.MustCompile(`价格\s*[:：]\s*\d{3,5}`),
		regexp.MustCompile(`¥\s*\d{3,5}`),
		regexp.MustCompile(`\d{3,5}\s*元`),
	}
)

// Extract scans pageText line by line. Lines that pass the vocabulary gate
// are parsed first; if none yields a record, every line carrying a strict
// price pattern is parsed instead.
func Extract(pageText string, s *schema.Schema) []models.Record {
	lines := strings.Split(pageText, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	var out []models.Record
	for _, line := range lines {
		if !gated(line, &s.Vocabulary) {
			continue
		}
		if rec := ParseLine(line, s); rec != nil {
			out = append(out, rec)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, line := range lines {
		if !matchesAny(line, strictPriceRes) {
			continue
		}
		if rec := ParseLine(line, s); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

func gated(line string, v *schema.Vocabulary) bool {
	if utf8.RuneCountInString(line) <= v.MinLineLen {
		return false
	}
	if strings.IndexFunc(line, unicode.IsDigit) < 0 {
		return false
	}
	for _, kw := range v.LineKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// ParseLine detects fields in one line of text. It returns nil unless the
// line gave a name or a price.
func ParseLine(line string, s *schema.Schema) models.Record {
	found := make(map[schema.Role]string)
	set := func(r schema.Role, v string) {
		if _, ok := found[r]; !ok && v != "" {
			found[r] = v
		}
	}

	for _, tok := range strings.Fields(line) {
		lower := strings.ToLower(tok)
		for _, kw := range s.Vocabulary.NameKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				set(schema.RoleName, tok)
				break
			}
		}
		if dimensionRe.MatchString(tok) {
			set(schema.RoleSpec, tok)
		}
		if gradeRe.MatchString(tok) {
			set(schema.RoleMaterial, tok)
		}
		if m := priceRe.FindStringSubmatch(tok); m != nil {
			set(schema.RolePrice, m[1])
		}
		if m := stockRe.FindStringSubmatch(tok); m != nil {
			set(schema.RoleStock, m[1])
		}
		if m := weightRe.FindStringSubmatch(tok); m != nil {
			set(schema.RoleWeight, m[1])
		}
		if containsAny(tok, toleranceWords) {
			if m := toleranceRe.FindStringSubmatch(tok); m != nil {
				set(schema.RoleTolerance, m[1])
			}
		}
	}

	if _, ok := found[schema.RolePrice]; !ok {
		for _, re := range linePriceRes {
			if m := re.FindStringSubmatch(line); m != nil {
				set(schema.RolePrice, m[1])
				break
			}
		}
	}

	rec := s.NewRecord()
	for role, val := range found {
		if field, ok := s.FieldFor(role); ok {
			rec[field] = val
		}
	}
	mapper.Clean(rec, s)

	name, _ := s.FieldFor(schema.RoleName)
	price, _ := s.FieldFor(schema.RolePrice)
	if rec[name] == "" && rec[price] == "" {
		return nil
	}
	return rec
}

func matchesAny(s string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
