package walker

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/Carbocoon/SteelPriceCrawler/locator"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/Carbocoon/SteelPriceCrawler/view"
)

var (
	totalTextRe  = regexp.MustCompile(`(?:共|Total)\s*(\d+)\s*(?:页|pages?)`)
	fractionRe   = regexp.MustCompile(`1\s*/\s*(\d+)`)
	pageParamRe  = regexp.MustCompile(`[?&]p(?:age)?=(\d+)`)
	lastPageText = []string{"尾页", "Last"}
)

// DetectTotal reads the page count from the first visible pagination
// container that states it. It returns 0 when no container does; the only
// error it returns is an interruption.
func DetectTotal(ctx context.Context, v view.View, s *schema.Schema) (int, error) {
	for _, pat := range s.Patterns.Pagination {
		container, err := firstVisible(ctx, v, pat)
		if err != nil {
			return 0, err
		}
		if container == nil {
			continue
		}
		n, err := totalIn(ctx, container, s)
		if err != nil || n > 0 {
			return n, err
		}
	}
	return 0, nil
}

func totalIn(ctx context.Context, container view.Element, s *schema.Schema) (int, error) {
	text, err := container.Text(ctx)
	if err := locator.Soft(ctx, err, "pagination text"); err != nil {
		return 0, err
	}
	for _, re := range []*regexp.Regexp{totalTextRe, fractionRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, convErr := strconv.Atoi(m[1]); convErr == nil && n > 0 {
				return n, nil
			}
		}
	}

	if s.Patterns.LastPage != "" {
		n, err := lastPageLink(ctx, container, s.Patterns.LastPage)
		if err != nil || n > 0 {
			return n, err
		}
	}

	// Numbered items are only trusted where the schema says the pager
	// always lists the last page.
	if s.Patterns.PageItems != "" {
		items, err := container.Find(ctx, s.Patterns.PageItems)
		if err := locator.Soft(ctx, err, s.Patterns.PageItems); err != nil {
			return 0, err
		}
		highest := 0
		for _, item := range items {
			t, err := item.Text(ctx)
			if err := locator.Soft(ctx, err, s.Patterns.PageItems); err != nil {
				return 0, err
			}
			if n, convErr := strconv.Atoi(strings.TrimSpace(t)); convErr == nil && n > highest {
				highest = n
			}
		}
		return highest, nil
	}
	return 0, nil
}

func lastPageLink(ctx context.Context, container view.Element, pattern string) (int, error) {
	links, err := container.Find(ctx, pattern)
	if err := locator.Soft(ctx, err, pattern); err != nil {
		return 0, err
	}
	for _, link := range links {
		text, err := link.Text(ctx)
		if err := locator.Soft(ctx, err, pattern); err != nil {
			return 0, err
		}
		if !containsAny(text, lastPageText) {
			continue
		}
		if href, ok, err := link.Attribute(ctx, "href"); err == nil && ok {
			if m := pageParamRe.FindStringSubmatch(href); m != nil {
				if n, convErr := strconv.Atoi(m[1]); convErr == nil {
					return n, nil
				}
			}
		} else if err := locator.Soft(ctx, err, pattern); err != nil {
			return 0, err
		}
		for _, attr := range []string{"data-page", "data-p"} {
			val, ok, err := link.Attribute(ctx, attr)
			if err := locator.Soft(ctx, err, pattern); err != nil {
				return 0, err
			}
			if n, convErr := strconv.Atoi(val); ok && convErr == nil {
				return n, nil
			}
		}
	}
	return 0, nil
}

var loginText = []string{"请登录", "登录", "Login"}

// LoginRequired reports whether a visible login prompt is on the page.
func LoginRequired(ctx context.Context, v view.View, s *schema.Schema) (bool, error) {
	pat := orDefault(s.Patterns.Login, "a, button")
	els, err := v.Find(ctx, pat)
	if err := locator.Soft(ctx, err, pat); err != nil {
		return false, err
	}
	for _, el := range els {
		text, err := el.Text(ctx)
		if err := locator.Soft(ctx, err, pat); err != nil {
			return false, err
		}
		if !containsAny(text, loginText) {
			continue
		}
		visible, err := el.Visible(ctx)
		if err := locator.Soft(ctx, err, pat); err != nil {
			return false, err
		}
		if visible {
			return true, nil
		}
	}
	return false, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
