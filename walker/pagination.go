package walker

import (
	"context"
	"strconv"
	"strings"

	"github.com/Carbocoon/SteelPriceCrawler/locator"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/Carbocoon/SteelPriceCrawler/view"
)

// NextStrategy looks for a usable next-page control. It returns nil, nil
// when it has none; an error means the walk should stop.
type NextStrategy struct {
	Name string
	Find func(ctx context.Context, v view.View, s *schema.Schema) (view.Element, error)
}

// DefaultNext is the next-control cascade used when Options.Next is nil.
func DefaultNext() []NextStrategy {
	return []NextStrategy{TextLink(), ClassPattern(), Numeric()}
}

// TextLink finds a link labelled 下一页, Next, > or › inside the first
// visible container of each pagination pattern.
func TextLink() NextStrategy {
	return NextStrategy{Name: "text_link", Find: findTextLink}
}

// ClassPattern finds the first usable element matching a next-class
// pattern anywhere on the page.
func ClassPattern() NextStrategy {
	return NextStrategy{Name: "class_pattern", Find: findByClass}
}

// Numeric reads the highlighted page number N and finds the link for N+1.
func Numeric() NextStrategy {
	return NextStrategy{Name: "numeric", Find: findNumeric}
}

func findTextLink(ctx context.Context, v view.View, s *schema.Schema) (view.Element, error) {
	linkPattern := orDefault(s.Patterns.NextLinks, "a")
	for _, pat := range s.Patterns.Pagination {
		container, err := firstVisible(ctx, v, pat)
		if err != nil {
			return nil, err
		}
		if container == nil {
			continue
		}
		links, err := container.Find(ctx, linkPattern)
		if err := locator.Soft(ctx, err, pat); err != nil {
			return nil, err
		}
		for _, link := range links {
			text, err := link.Text(ctx)
			if err := locator.Soft(ctx, err, pat); err != nil {
				return nil, err
			}
			if !isNextLabel(strings.TrimSpace(text)) {
				continue
			}
			ok, err := usable(ctx, link)
			if err != nil {
				return nil, err
			}
			if ok {
				return link, nil
			}
		}
	}
	return nil, nil
}

func isNextLabel(text string) bool {
	switch text {
	case ">", "›":
		return true
	}
	return strings.Contains(text, "下一页") || strings.Contains(text, "Next")
}

func findByClass(ctx context.Context, v view.View, s *schema.Schema) (view.Element, error) {
	for _, pat := range s.Patterns.NextClasses {
		els, err := v.Find(ctx, pat)
		if err := locator.Soft(ctx, err, pat); err != nil {
			return nil, err
		}
		for _, el := range els {
			ok, err := usable(ctx, el)
			if err != nil {
				return nil, err
			}
			if ok {
				return el, nil
			}
		}
	}
	return nil, nil
}

func findNumeric(ctx context.Context, v view.View, s *schema.Schema) (view.Element, error) {
	current := 0
	for _, pat := range s.Patterns.Active {
		els, err := v.Find(ctx, pat)
		if err := locator.Soft(ctx, err, pat); err != nil {
			return nil, err
		}
		if len(els) == 0 {
			continue
		}
		text, err := els[0].Text(ctx)
		if err := locator.Soft(ctx, err, pat); err != nil {
			return nil, err
		}
		if n, convErr := strconv.Atoi(strings.TrimSpace(text)); convErr == nil {
			current = n
			break
		}
	}
	if current == 0 {
		return nil, nil
	}

	target := strconv.Itoa(current + 1)
	pat := orDefault(s.Patterns.PageLinks, "a")
	links, err := v.Find(ctx, pat)
	if err := locator.Soft(ctx, err, pat); err != nil {
		return nil, err
	}
	for _, link := range links {
		text, err := link.Text(ctx)
		if err := locator.Soft(ctx, err, pat); err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) != target {
			continue
		}
		ok, err := usable(ctx, link)
		if err != nil {
			return nil, err
		}
		if ok {
			return link, nil
		}
	}
	return nil, nil
}

// usable reports whether a control is visible and not disabled.
func usable(ctx context.Context, el view.Element) (bool, error) {
	visible, err := el.Visible(ctx)
	if err != nil {
		return false, locator.Soft(ctx, err, "visible")
	}
	if !visible {
		return false, nil
	}
	off, err := disabled(ctx, el)
	if err != nil {
		return false, locator.Soft(ctx, err, "disabled")
	}
	return !off, nil
}

func disabled(ctx context.Context, el view.Element) (bool, error) {
	class, _, err := el.Attribute(ctx, "class")
	if err != nil {
		return false, err
	}
	if strings.Contains(strings.ToLower(class), "disable") {
		return true, nil
	}
	if _, ok, err := el.Attribute(ctx, "disabled"); err != nil || ok {
		return ok, err
	}
	aria, _, err := el.Attribute(ctx, "aria-disabled")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(aria), "true"), nil
}

// firstVisible returns the first visible element matching pattern.
func firstVisible(ctx context.Context, v view.View, pattern string) (view.Element, error) {
	els, err := v.Find(ctx, pattern)
	if err := locator.Soft(ctx, err, pattern); err != nil {
		return nil, err
	}
	for _, el := range els {
		ok, err := el.Visible(ctx)
		if err := locator.Soft(ctx, err, pattern); err != nil {
			return nil, err
		}
		if ok {
			return el, nil
		}
	}
	return nil, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
