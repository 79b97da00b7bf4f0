// Package htmlview serves saved HTML documents through the view interfaces.
//
// A View holds one or more pages keyed by URL. Clicking an element with an
// href (or data-href) that names a registered page switches the current
// page, which is enough to replay a paginated listing offline.
package htmlview

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/view"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// View is a static, multi-page document set. It is safe for concurrent use.
type View struct {
	mu      sync.RWMutex
	pages   map[string]*goquery.Document
	current string
	clicks  int
}

var (
	_ view.View        = (*View)(nil)
	_ view.Snapshotter = (*View)(nil)
)

// New parses every page and starts on start.
func New(pages map[string]string, start string) (*View, error) {
	v := &View{pages: make(map[string]*goquery.Document, len(pages))}
	for url, src := range pages {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("parse page %q: %w", url, err)
		}
		v.pages[url] = doc
	}
	if _, ok := v.pages[start]; !ok {
		return nil, fmt.Errorf("start page %q is not registered", start)
	}
	v.current = start
	return v, nil
}

// FromHTML returns a single-page view.
func FromHTML(src string) (*View, error) {
	return New(map[string]string{"": src}, "")
}

// FromReader is FromHTML for a stream.
func FromReader(r io.Reader) (*View, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return FromHTML(string(data))
}

// FromFile loads a saved page from disk.
func FromFile(path string) (*View, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	return FromReader(f)
}

// Clicks reports how many Click calls reached this view.
func (v *View) Clicks() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.clicks
}

func (v *View) doc() *goquery.Document {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pages[v.current]
}

func (v *View) Find(ctx context.Context, pattern string) ([]view.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.wrap(v.doc().Selection, pattern)
}

func (v *View) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc := v.doc()
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return innerText(root.Nodes[0]), nil
}

// WaitFor checks once: a static document never changes by itself.
func (v *View) WaitFor(ctx context.Context, pattern string, _ time.Duration) error {
	found, err := v.Find(ctx, pattern)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return models.NewScrapeError(models.ErrCodeTimeout,
			fmt.Sprintf("no element matches %q", pattern), nil)
	}
	return nil
}

func (v *View) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.pages[url]; !ok {
		return models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("no page registered for %q", url), nil)
	}
	v.current = url
	return nil
}

func (v *View) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return v.doc().Html()
}

func (v *View) Screenshot(context.Context) ([]byte, error) {
	return nil, view.ErrNoScreenshot
}

func (v *View) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current, nil
}

func (v *View) click(target string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clicks++
	if target == "" {
		return
	}
	if _, ok := v.pages[target]; ok {
		v.current = target
	}
}

func (v *View) wrap(scope *goquery.Selection, pattern string) ([]view.Element, error) {
	// goquery.Find matches nothing on a bad selector; parse first so the
	// caller sees the error.
	if _, err := cascadia.ParseGroup(pattern); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	return v.elements(scope.Find(pattern)), nil
}

func (v *View) elements(sel *goquery.Selection) []view.Element {
	out := make([]view.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{view: v, sel: s})
	})
	return out
}

// Element is one node of a static page.
type Element struct {
	view *View
	sel  *goquery.Selection
}

var _ view.Element = (*Element)(nil)

func (e *Element) Tag(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return goquery.NodeName(e.sel), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return innerText(e.sel.Nodes[0]), nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for n := e.sel.Nodes[0]; n != nil; n = n.Parent {
		if hidden(n) {
			return false, nil
		}
	}
	return true, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	val, ok := e.sel.Attr(name)
	return val, ok, nil
}

func (e *Element) Find(ctx context.Context, pattern string) ([]view.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.view.wrap(e.sel, pattern)
}

func (e *Element) Children(ctx context.Context) ([]view.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.view.elements(e.sel.Children()), nil
}

// Click follows the element's href, or its nearest linked ancestor's.
func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := ""
	for s := e.sel; s.Length() > 0 && target == ""; s = s.Parent() {
		if href, ok := s.Attr("href"); ok {
			target = href
		} else if href, ok := s.Attr("data-href"); ok {
			target = href
		}
	}
	e.view.click(target)
	return nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return ctx.Err()
}
