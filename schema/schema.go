// Package schema declares how a site's grid maps onto record fields.
//
// A Schema is built once from constant configuration (the built-in sites,
// optionally overridden from a TOML file) and never changes during a crawl.
// New validates it: an empty or inconsistent schema is the one error class
// the crawl engine treats as fatal.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/andybalholm/cascadia"
)

// Role tags a field with its meaning so engine code can address fields
// without knowing a site's column names.
type Role string

const (
	RoleName      Role = "name"
	RoleCategory  Role = "category"
	RoleMaterial  Role = "material"
	RoleSpec      Role = "spec"
	RoleTolerance Role = "tolerance"
	RoleWeight    Role = "weight"
	RoleLength    Role = "length"
	RolePieces    Role = "pieces"
	RoleStock     Role = "stock"
	RolePrice     Role = "price"
	RoleWarehouse Role = "warehouse"
	RoleBrand     Role = "brand"
)

var knownRoles = map[Role]struct{}{
	RoleName: {}, RoleCategory: {}, RoleMaterial: {}, RoleSpec: {},
	RoleTolerance: {}, RoleWeight: {}, RoleLength: {}, RolePieces: {},
	RoleStock: {}, RolePrice: {}, RoleWarehouse: {}, RoleBrand: {},
}

// significantRoles gate record acceptance: a record needs at least one.
var significantRoles = []Role{RoleName, RoleMaterial, RoleSpec, RolePrice}

// Field is one output column.
type Field struct {
	Name string `toml:"name"`
	Role Role   `toml:"role"`
}

// Kind selects how a cell value becomes a field value.
type Kind string

const (
	KindText      Kind = "text"      // copy as is
	KindComposite Kind = "composite" // "a/b" -> Field=a, Secondary=b
	KindTail      Kind = "tail"      // keep the last Keep runes
	KindNumber    Kind = "number"    // first grouped number, commas dropped
	KindOrigin    Kind = "origin"    // last line, else part after "/", else last token
)

// Column maps one positional cell to a field.
type Column struct {
	Index     int      `toml:"index"`
	Field     string   `toml:"field"`
	Kind      Kind     `toml:"kind"`
	Secondary string   `toml:"secondary"`
	Delimiter string   `toml:"delimiter"`
	StripSign bool     `toml:"strip_sign"`
	Replace   []string `toml:"replace"` // old/new pairs
	Keep      int      `toml:"keep"`

	replacer *strings.Replacer
}

// Replacer returns the compiled character substitutions, or nil.
func (c *Column) Replacer() *strings.Replacer { return c.replacer }

// RowPattern fills a field from the whole row text.
type RowPattern struct {
	Field   string `toml:"field"`
	Pattern string `toml:"pattern"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern.
func (p *RowPattern) Regexp() *regexp.Regexp { return p.re }

// Layout is a positional mapping applied when a row has at least MinCells
// cells. A schema lists layouts from the full one down to degraded ones.
type Layout struct {
	Name     string       `toml:"name"`
	MinCells int          `toml:"min_cells"`
	Columns  []Column     `toml:"columns"`
	RowText  []RowPattern `toml:"row_text"`
}

// Patterns are the CSS selectors the locator and the walker try, in order.
type Patterns struct {
	Tables       []string `toml:"tables"`
	Rows         []string `toml:"rows"`
	FallbackRows string   `toml:"fallback_rows"`
	Cells        []string `toml:"cells"`

	Pagination  []string `toml:"pagination"`   // next-control containers
	NextLinks   string   `toml:"next_links"`   // clickables inside a container
	NextClasses []string `toml:"next_classes"` // class-pattern strategy
	Active      []string `toml:"active"`       // highlighted page number
	PageLinks   string   `toml:"page_links"`   // numbered page links
	PageItems   string   `toml:"page_items"`   // numbered items used for total detection
	LastPage    string   `toml:"last_page"`    // candidates for the last-page link
	Login       string   `toml:"login"`        // candidates for a login prompt
}

// Vocabulary drives the text fallback extractor.
type Vocabulary struct {
	LineKeywords []string `toml:"line_keywords"`
	NameKeywords []string `toml:"name_keywords"`
	MinLineLen   int      `toml:"min_line_len"`
}

// Schema describes one site.
type Schema struct {
	Name     string `toml:"name"`
	Title    string `toml:"title"`
	EntryURL string `toml:"entry_url"`

	Fields  []Field  `toml:"fields"`
	Layouts []Layout `toml:"layouts"`

	// TokenLayouts map whitespace tokens of the row text when a row has
	// some cells but fewer than any layout needs.
	TokenLayouts    []Layout `toml:"token_layouts"`
	TokenPriceFloor float64  `toml:"token_price_floor"`

	HeaderKeywords []string `toml:"header_keywords"`
	MinTextLen     int      `toml:"min_text_len"`
	MinTokens      int      `toml:"min_tokens"`
	MaxRows        int      `toml:"max_rows"`

	Patterns   Patterns   `toml:"patterns"`
	Vocabulary Vocabulary `toml:"vocabulary"`

	byName map[string]Field
	byRole map[Role]string
}

// New validates s, compiles its patterns and returns it ready for use.
// Errors carry models.ErrCodeSchemaInvalid.
func New(s Schema) (*Schema, error) {
	s.Layouts = cloneLayouts(s.Layouts)
	s.TokenLayouts = cloneLayouts(s.TokenLayouts)
	if err := s.compile(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSchemaInvalid,
			fmt.Sprintf("schema %q", s.Name), err)
	}
	return &s, nil
}

// MustNew is New for the built-in schemas.
func MustNew(s Schema) *Schema {
	out, err := New(s)
	if err != nil {
		panic(err)
	}
	return out
}

func (s *Schema) compile() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(s.Fields) == 0 {
		errs = append(errs, errors.New("at least one field is required"))
	}
	if len(s.Layouts) == 0 {
		errs = append(errs, errors.New("at least one layout is required"))
	}

	s.byName = make(map[string]Field, len(s.Fields))
	s.byRole = make(map[Role]string, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			errs = append(errs, errors.New("field with empty name"))
			continue
		}
		if _, dup := s.byName[f.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate field %q", f.Name))
		}
		if f.Role != "" {
			if _, ok := knownRoles[f.Role]; !ok {
				errs = append(errs, fmt.Errorf("field %q: unknown role %q", f.Name, f.Role))
			} else if _, taken := s.byRole[f.Role]; !taken {
				s.byRole[f.Role] = f.Name
			}
		}
		s.byName[f.Name] = f
	}
	if !s.hasSignificantRole() {
		errs = append(errs, errors.New("no field carries a name, material, spec or price role"))
	}

	for i := range s.Layouts {
		errs = append(errs, s.compileLayout(&s.Layouts[i], "layout")...)
	}
	for i := 1; i < len(s.Layouts); i++ {
		if s.Layouts[i].MinCells > s.Layouts[i-1].MinCells {
			errs = append(errs, fmt.Errorf("layout %q: min_cells must not grow after %q",
				s.Layouts[i].Name, s.Layouts[i-1].Name))
		}
	}
	for i := range s.TokenLayouts {
		errs = append(errs, s.compileLayout(&s.TokenLayouts[i], "token layout")...)
	}

	if s.MinTextLen < 0 || s.MinTokens < 0 || s.MaxRows < 0 {
		errs = append(errs, errors.New("min_text_len, min_tokens and max_rows must not be negative"))
	}

	if len(s.Patterns.Tables) == 0 {
		errs = append(errs, errors.New("patterns.tables is empty"))
	}
	if len(s.Patterns.Rows) == 0 {
		errs = append(errs, errors.New("patterns.rows is empty"))
	}
	if len(s.Patterns.Cells) == 0 {
		errs = append(errs, errors.New("patterns.cells is empty"))
	}
	for _, p := range s.Patterns.all() {
		if _, err := cascadia.ParseGroup(p); err != nil {
			errs = append(errs, fmt.Errorf("pattern %q: %w", p, err))
		}
	}

	if s.Vocabulary.MinLineLen == 0 {
		s.Vocabulary.MinLineLen = DefaultMinLineLen
	}
	if len(s.Vocabulary.LineKeywords) == 0 {
		s.Vocabulary.LineKeywords = DefaultLineKeywords
	}
	if len(s.Vocabulary.NameKeywords) == 0 {
		s.Vocabulary.NameKeywords = DefaultNameKeywords
	}

	return errors.Join(errs...)
}

func (s *Schema) compileLayout(l *Layout, kind string) []error {
	var errs []error
	if l.MinCells <= 0 {
		errs = append(errs, fmt.Errorf("%s %q: min_cells must be positive", kind, l.Name))
	}
	for i := range l.Columns {
		c := &l.Columns[i]
		if c.Index < 0 {
			errs = append(errs, fmt.Errorf("%s %q: negative column index", kind, l.Name))
		}
		if _, ok := s.byName[c.Field]; !ok {
			errs = append(errs, fmt.Errorf("%s %q: column %d targets unknown field %q", kind, l.Name, c.Index, c.Field))
		}
		if c.Kind == "" {
			c.Kind = KindText
		}
		switch c.Kind {
		case KindText, KindNumber, KindOrigin:
		case KindComposite:
			if c.Delimiter == "" {
				c.Delimiter = "/"
			}
			if c.Secondary != "" {
				if _, ok := s.byName[c.Secondary]; !ok {
					errs = append(errs, fmt.Errorf("%s %q: column %d secondary targets unknown field %q", kind, l.Name, c.Index, c.Secondary))
				}
			}
		case KindTail:
			if c.Keep <= 0 {
				errs = append(errs, fmt.Errorf("%s %q: tail column %d needs keep > 0", kind, l.Name, c.Index))
			}
		default:
			errs = append(errs, fmt.Errorf("%s %q: column %d has unknown kind %q", kind, l.Name, c.Index, c.Kind))
		}
		if len(c.Replace)%2 != 0 {
			errs = append(errs, fmt.Errorf("%s %q: column %d replace needs old/new pairs", kind, l.Name, c.Index))
		} else if len(c.Replace) > 0 {
			c.replacer = strings.NewReplacer(c.Replace...)
		}
	}
	for i := range l.RowText {
		p := &l.RowText[i]
		if _, ok := s.byName[p.Field]; !ok {
			errs = append(errs, fmt.Errorf("%s %q: row pattern targets unknown field %q", kind, l.Name, p.Field))
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q: row pattern %q: %w", kind, l.Name, p.Pattern, err))
			continue
		}
		if re.NumSubexp() < 1 {
			errs = append(errs, fmt.Errorf("%s %q: row pattern %q needs a capture group", kind, l.Name, p.Pattern))
			continue
		}
		p.re = re
	}
	return errs
}

func cloneLayouts(in []Layout) []Layout {
	if in == nil {
		return nil
	}
	out := make([]Layout, len(in))
	for i, l := range in {
		l.Columns = append([]Column(nil), l.Columns...)
		l.RowText = append([]RowPattern(nil), l.RowText...)
		out[i] = l
	}
	return out
}

func (s *Schema) hasSignificantRole() bool {
	for _, r := range significantRoles {
		if _, ok := s.byRole[r]; ok {
			return true
		}
	}
	return false
}

func (p Patterns) all() []string {
	out := make([]string, 0, 16)
	out = append(out, p.Tables...)
	out = append(out, p.Rows...)
	out = append(out, p.Cells...)
	out = append(out, p.Pagination...)
	out = append(out, p.NextClasses...)
	out = append(out, p.Active...)
	for _, single := range []string{p.FallbackRows, p.NextLinks, p.PageLinks, p.PageItems, p.LastPage, p.Login} {
		if single != "" {
			out = append(out, single)
		}
	}
	return out
}

// FieldNames returns the output columns in declared order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// FieldFor returns the first field carrying role.
func (s *Schema) FieldFor(role Role) (string, bool) {
	name, ok := s.byRole[role]
	return name, ok
}

// RoleOf returns the role of a field.
func (s *Schema) RoleOf(field string) Role {
	return s.byName[field].Role
}

// Significant returns the fields of which a record needs at least one.
func (s *Schema) Significant() []string {
	out := make([]string, 0, len(significantRoles))
	for _, r := range significantRoles {
		if name, ok := s.byRole[r]; ok {
			out = append(out, name)
		}
	}
	return out
}

// NewRecord returns an empty record with this schema's key set.
func (s *Schema) NewRecord() models.Record {
	return models.NewRecord(s.FieldNames())
}
