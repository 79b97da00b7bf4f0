package scraper

import (
	"context"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/view"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// View reads a live tab. Each call binds the caller's context to the rod
// page, so cancellation aborts in-flight CDP calls.
type View struct {
	page *rod.Page
}

var (
	_ view.View        = (*View)(nil)
	_ view.Snapshotter = (*View)(nil)
)

func (v *View) Find(ctx context.Context, pattern string) ([]view.Element, error) {
	els, err := v.page.Context(ctx).Elements(pattern)
	if err != nil {
		return nil, categorizeError(err, "find "+pattern)
	}
	return wrap(els), nil
}

func (v *View) Text(ctx context.Context) (string, error) {
	res, err := v.page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", categorizeError(err, "read page text")
	}
	return res.Value.Str(), nil
}

func (v *View) WaitFor(ctx context.Context, pattern string, timeout time.Duration) error {
	p := v.page.Context(ctx)
	if timeout > 0 {
		p = p.Timeout(timeout)
	}
	if err := p.WaitElementsMoreThan(pattern, 0); err != nil {
		return categorizeError(err, "wait for "+pattern)
	}
	return nil
}

// Navigate loads url and waits for the DOM to settle. A DOM that never
// settles is not an error: listing pages often animate forever.
func (v *View) Navigate(ctx context.Context, url string) error {
	p := v.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return categorizeNavigation(err, "navigation to "+url+" failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		if ctx.Err() != nil {
			return categorizeError(err, "wait for page to settle")
		}
	}
	return nil
}

func (v *View) HTML(ctx context.Context) (string, error) {
	html, err := v.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "read page HTML")
	}
	return html, nil
}

func (v *View) Screenshot(ctx context.Context) ([]byte, error) {
	img, err := v.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, categorizeError(err, "screenshot")
	}
	return img, nil
}

func (v *View) URL(ctx context.Context) (string, error) {
	res, err := v.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", categorizeError(err, "read location")
	}
	return res.Value.Str(), nil
}

// Element is a live DOM node.
type Element struct {
	el *rod.Element
}

var _ view.Element = (*Element)(nil)

func wrap(els rod.Elements) []view.Element {
	out := make([]view.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el}
	}
	return out
}

func (e *Element) Tag(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return "", categorizeError(err, "read tag")
	}
	return res.Value.Str(), nil
}

// Text is the element's innerText.
func (e *Element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", categorizeError(err, "read text")
	}
	return text, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	ok, err := e.el.Context(ctx).Visible()
	if err != nil {
		return false, categorizeError(err, "check visibility")
	}
	return ok, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	val, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, categorizeError(err, "read attribute "+name)
	}
	if val == nil {
		return "", false, nil
	}
	return *val, true, nil
}

func (e *Element) Find(ctx context.Context, pattern string) ([]view.Element, error) {
	els, err := e.el.Context(ctx).Elements(pattern)
	if err != nil {
		return nil, categorizeError(err, "find "+pattern)
	}
	return wrap(els), nil
}

func (e *Element) Children(ctx context.Context) ([]view.Element, error) {
	els, err := e.el.Context(ctx).Elements(":scope > *")
	if err != nil {
		return nil, categorizeError(err, "list children")
	}
	return wrap(els), nil
}

// Click dispatches a DOM click. Unlike a mouse click it cannot land on an
// overlay covering the control.
func (e *Element) Click(ctx context.Context) error {
	if _, err := e.el.Context(ctx).Eval(`() => this.click()`); err != nil {
		return categorizeError(err, "click")
	}
	return nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	if err := e.el.Context(ctx).ScrollIntoView(); err != nil {
		return categorizeError(err, "scroll into view")
	}
	return nil
}
