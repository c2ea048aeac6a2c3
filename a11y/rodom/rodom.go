// Package rodom implements a11y.Document over a live Chrome tab driven by
// Rod.
//
// Every main-frame navigation starts a new epoch. Nodes handed out before
// it are rejected with a11y.ErrStaleNode instead of reaching Chrome with a
// dangling remote object ID.
package rodom

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/uicheck/a11y"
)

// Document wraps a Rod page. It is safe to share between the goroutine
// that navigates and the one that scans, but scans themselves are
// sequential.
type Document struct {
	page  *rod.Page
	epoch atomic.Uint64
}

// New binds a Document to page and starts tracking main-frame navigations
// until ctx is done.
func New(ctx context.Context, page *rod.Page) *Document {
	d := &Document{page: page}
	d.epoch.Store(1)

	wait := page.Context(ctx).EachEvent(func(e *proto.PageFrameNavigated) {
		if e.Frame != nil && e.Frame.ParentID == "" {
			d.Invalidate()
		}
	})
	go wait()

	return d
}

// Invalidate starts a new epoch. Callers that navigate the page themselves
// call it before the navigation so no scan can race the new document.
func (d *Document) Invalidate() {
	d.epoch.Add(1)
}

// Epoch returns the current navigation epoch.
func (d *Document) Epoch() uint64 {
	return d.epoch.Load()
}

type element struct {
	el    *rod.Element
	epoch uint64
}

func (e *element) Epoch() uint64 { return e.epoch }

func (d *Document) wrap(el *rod.Element) *element {
	return &element{el: el, epoch: d.epoch.Load()}
}

func (d *Document) resolve(ctx context.Context, n a11y.Node) (*rod.Element, error) {
	if d == nil || d.page == nil {
		return nil, a11y.ErrNoDocument
	}
	e, ok := n.(*element)
	if !ok || e == nil {
		return nil, fmt.Errorf("rodom: foreign node %T", n)
	}
	if e.epoch != d.epoch.Load() {
		return nil, a11y.ErrStaleNode
	}
	return e.el.Context(ctx), nil
}

func (d *Document) QueryAll(ctx context.Context, selector string) ([]a11y.Node, error) {
	if d == nil || d.page == nil {
		return nil, a11y.ErrNoDocument
	}
	els, err := d.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("rodom: query %q: %w", selector, err)
	}
	out := make([]a11y.Node, 0, len(els))
	for _, el := range els {
		out = append(out, d.wrap(el))
	}
	return out, nil
}

const propsJS = `() => {
	let href = this.href;
	if (href && typeof href !== 'string') {
		href = href.baseVal || '';
	}
	return {
		tag: this.tagName || '',
		href: href || '',
		text: this.innerText || this.textContent || '',
		disabled: this.disabled === true,
	};
}`

func (d *Document) Props(ctx context.Context, n a11y.Node) (a11y.Props, error) {
	el, err := d.resolve(ctx, n)
	if err != nil {
		return a11y.Props{}, err
	}
	res, err := el.Eval(propsJS)
	if err != nil {
		return a11y.Props{}, fmt.Errorf("rodom: props: %w", err)
	}
	var p a11y.Props
	if err := res.Value.Unmarshal(&p); err != nil {
		return a11y.Props{}, fmt.Errorf("rodom: decode props: %w", err)
	}
	return p, nil
}

const styleJS = `() => {
	const s = getComputedStyle(this);
	return { display: s.display, visibility: s.visibility };
}`

func (d *Document) Style(ctx context.Context, n a11y.Node) (a11y.Style, error) {
	el, err := d.resolve(ctx, n)
	if err != nil {
		return a11y.Style{}, err
	}
	res, err := el.Eval(styleJS)
	if err != nil {
		return a11y.Style{}, fmt.Errorf("rodom: style: %w", err)
	}
	var s a11y.Style
	if err := res.Value.Unmarshal(&s); err != nil {
		return a11y.Style{}, fmt.Errorf("rodom: decode style: %w", err)
	}
	return s, nil
}

// BoundingBox reads the border box through DOM.getBoxModel. Chrome answers
// with a protocol error for elements that are not rendered; that is the
// nil box, not a failure.
func (d *Document) BoundingBox(ctx context.Context, n a11y.Node) (*a11y.Rect, error) {
	el, err := d.resolve(ctx, n)
	if err != nil {
		return nil, err
	}
	res, err := proto.DOMGetBoxModel{ObjectID: el.Object.ObjectID}.Call(d.page.Context(ctx))
	if err != nil {
		var cdpErr *cdp.Error
		if errors.As(err, &cdpErr) {
			return nil, nil
		}
		return nil, fmt.Errorf("rodom: box model: %w", err)
	}
	if res.Model == nil || len(res.Model.Border) < 8 {
		return nil, nil
	}
	return quadRect(res.Model.Border), nil
}

func quadRect(q proto.DOMQuad) *a11y.Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i+1 < len(q); i += 2 {
		minX = math.Min(minX, q[i])
		maxX = math.Max(maxX, q[i])
		minY = math.Min(minY, q[i+1])
		maxY = math.Max(maxY, q[i+1])
	}
	return &a11y.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

const rectJS = `() => {
	const r = this.getBoundingClientRect();
	return { x: r.x, y: r.y, width: r.width, height: r.height };
}`

func (d *Document) ClientRect(ctx context.Context, n a11y.Node) (a11y.Rect, error) {
	el, err := d.resolve(ctx, n)
	if err != nil {
		return a11y.Rect{}, err
	}
	res, err := el.Eval(rectJS)
	if err != nil {
		return a11y.Rect{}, fmt.Errorf("rodom: client rect: %w", err)
	}
	var r a11y.Rect
	if err := res.Value.Unmarshal(&r); err != nil {
		return a11y.Rect{}, fmt.Errorf("rodom: decode rect: %w", err)
	}
	return r, nil
}

func (d *Document) OffsetParent(ctx context.Context, n a11y.Node) (a11y.Node, error) {
	el, err := d.resolve(ctx, n)
	if err != nil {
		return nil, err
	}
	return d.elementByJS(el, rod.Eval(`() => this.offsetParent`))
}

func (d *Document) Closest(ctx context.Context, n a11y.Node, selector string) (a11y.Node, error) {
	el, err := d.resolve(ctx, n)
	if err != nil {
		return nil, err
	}
	return d.elementByJS(el, rod.Eval(`(sel) => this.parentElement ? this.parentElement.closest(sel) : null`, selector))
}

// elementByJS maps Rod's not-found error to a nil node.
func (d *Document) elementByJS(el *rod.Element, opts *rod.EvalOptions) (a11y.Node, error) {
	found, err := el.ElementByJS(opts)
	if err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, fmt.Errorf("rodom: element by js: %w", err)
	}
	return d.wrap(found), nil
}

func (d *Document) ViewportHeight(ctx context.Context) (float64, error) {
	if d == nil || d.page == nil {
		return 0, a11y.ErrNoDocument
	}
	res, err := d.page.Context(ctx).Eval(`() => window.innerHeight`)
	if err != nil {
		return 0, fmt.Errorf("rodom: viewport: %w", err)
	}
	return res.Value.Num(), nil
}
