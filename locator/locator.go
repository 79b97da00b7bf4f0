// Package locator finds the data grid of a page: the table, its rows and
// each row's cells. Every step is an ordered chain of strategies; the first
// strategy that yields something wins.
package locator

import (
	"context"
	"errors"
	"strings"

	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/Carbocoon/SteelPriceCrawler/view"
)

// ErrNotFound means no table strategy produced an acceptable candidate.
var ErrNotFound = errors.New("locator: no data table found")

// minTableLines is the line-break count above which any visible element
// passes as a table.
const minTableLines = 5

// Scope is anything patterns can be searched in: a whole View or one
// Element.
type Scope interface {
	Find(ctx context.Context, pattern string) ([]view.Element, error)
}

// Strategy is one step of a cascade.
type Strategy struct {
	Name string
	Find func(ctx context.Context, scope Scope) ([]view.Element, error)
}

// Pattern returns a strategy that runs a CSS selector in the scope.
func Pattern(p string) Strategy {
	return Strategy{
		Name: p,
		Find: func(ctx context.Context, scope Scope) ([]view.Element, error) {
			return scope.Find(ctx, p)
		},
	}
}

// Children returns a strategy yielding the direct children of an element
// whose tag is one of tags.
func Children(tags ...string) Strategy {
	return Strategy{
		Name: "children(" + strings.Join(tags, ",") + ")",
		Find: func(ctx context.Context, scope Scope) ([]view.Element, error) {
			el, ok := scope.(view.Element)
			if !ok {
				return nil, nil
			}
			kids, err := el.Children(ctx)
			if err != nil {
				return nil, err
			}
			var out []view.Element
			for _, k := range kids {
				tag, err := k.Tag(ctx)
				if err != nil {
					return nil, err
				}
				for _, want := range tags {
					if tag == want {
						out = append(out, k)
						break
					}
				}
			}
			return out, nil
		},
	}
}

// TableChain is the table cascade of s, in priority order.
func TableChain(s *schema.Schema) []Strategy {
	return patterns(s.Patterns.Tables)
}

// RowChain is the table-scoped row cascade of s.
func RowChain(s *schema.Schema) []Strategy {
	return patterns(s.Patterns.Rows)
}

// CellChain is the cell cascade of s, ending with the row's direct div and
// span children.
func CellChain(s *schema.Schema) []Strategy {
	return append(patterns(s.Patterns.Cells), Children("div", "span"))
}

func patterns(ps []string) []Strategy {
	out := make([]Strategy, len(ps))
	for i, p := range ps {
		out[i] = Pattern(p)
	}
	return out
}

// LocateTable returns the first acceptable table candidate. Priority
// between patterns wins over document order.
func LocateTable(ctx context.Context, v view.View, s *schema.Schema) (view.Element, error) {
	for _, st := range TableChain(s) {
		cands, err := st.Find(ctx, v)
		if err != nil {
			if err := Soft(ctx, err, "table:"+st.Name); err != nil {
				return nil, err
			}
			continue
		}
		for _, c := range cands {
			ok, err := acceptTable(ctx, c)
			if err != nil {
				if view.Interrupted(ctx, err) {
					return nil, err
				}
				continue
			}
			if ok {
				return c, nil
			}
		}
	}
	return nil, ErrNotFound
}

func acceptTable(ctx context.Context, el view.Element) (bool, error) {
	visible, err := el.Visible(ctx)
	if err != nil || !visible {
		return false, err
	}
	tag, err := el.Tag(ctx)
	if err != nil {
		return false, err
	}
	if tag == "table" {
		return true, nil
	}
	class, _, err := el.Attribute(ctx, "class")
	if err != nil {
		return false, err
	}
	if strings.Contains(strings.ToLower(class), "table") {
		return true, nil
	}
	text, err := el.Text(ctx)
	if err != nil {
		return false, err
	}
	return strings.Count(text, "\n") > minTableLines, nil
}

// LocateRows returns the rows of table. A pattern yielding a header plus at
// least one row wins; otherwise the first non-empty yield is used, and if
// every pattern is empty the page-wide fallback pattern is tried.
func LocateRows(ctx context.Context, v view.View, table view.Element, s *schema.Schema) ([]view.Element, error) {
	var first []view.Element
	for _, st := range RowChain(s) {
		rows, err := st.Find(ctx, table)
		if err != nil {
			if err := Soft(ctx, err, "rows:"+st.Name); err != nil {
				return nil, err
			}
			continue
		}
		if len(rows) > 1 {
			return capRows(rows, s.MaxRows), nil
		}
		if first == nil && len(rows) > 0 {
			first = rows
		}
	}
	if first != nil {
		return capRows(first, s.MaxRows), nil
	}

	if s.Patterns.FallbackRows == "" {
		return nil, nil
	}
	rows, err := Pattern(s.Patterns.FallbackRows).Find(ctx, v)
	if err != nil {
		return nil, Soft(ctx, err, "fallback_rows:"+s.Patterns.FallbackRows)
	}
	return capRows(rows, s.MaxRows), nil
}

func capRows(rows []view.Element, max int) []view.Element {
	if max > 0 && len(rows) > max {
		return rows[:max]
	}
	return rows
}

// ReadCells returns the trimmed cell texts of row. Empty cells are kept so
// positions stay aligned.
func ReadCells(ctx context.Context, row view.Element, s *schema.Schema) ([]string, error) {
	for _, st := range CellChain(s) {
		cells, err := st.Find(ctx, row)
		if err != nil {
			if view.Interrupted(ctx, err) {
				return nil, err
			}
			continue
		}
		if len(cells) == 0 {
			continue
		}
		out := make([]string, len(cells))
		for i, c := range cells {
			text, err := c.Text(ctx)
			if err != nil {
				if view.Interrupted(ctx, err) {
					return nil, err
				}
				continue
			}
			out[i] = strings.TrimSpace(text)
		}
		return out, nil
	}
	return nil, nil
}
