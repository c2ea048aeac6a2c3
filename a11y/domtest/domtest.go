// Package domtest provides an in-memory a11y.Document for tests.
//
// Pages are plain HTML. Layout, which a parser cannot compute, is declared
// with attributes:
//
//	data-box="none"        element has no layout box
//	data-box="x y w h"     explicit bounding box
//	data-rect="x y w h"    explicit getBoundingClientRect()
//	data-offset-parent="none"
//
// Without data-box an element gets a default box unless it or an ancestor
// is display:none. Without data-rect the client rect equals the box, or is
// zero when there is no box. offsetParent is the nearest positioned
// ancestor (inline position other than static), td, th or table, else body.
// Unlike a browser, display:none does not clear offsetParent, so ancestor
// walks can be exercised in isolation.
//
// Computed style reads the inline style attribute only. visibility is
// inherited, display is not.
package domtest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/uicheck/a11y"
)

// DefaultViewportHeight mirrors a 1024x768 headless window.
const DefaultViewportHeight = 768

// DefaultBox is the box given to laid-out elements without data-box.
var DefaultBox = a11y.Rect{X: 8, Y: 8, Width: 100, Height: 20}

// Document is an in-memory page. Navigate replaces the page and starts a
// new epoch; nodes from earlier epochs are rejected with a11y.ErrStaleNode.
type Document struct {
	mu       sync.Mutex
	doc      *goquery.Document
	base     *url.URL
	epoch    uint64
	nodes    map[*html.Node]*element
	viewport float64
	calls    int
}

// Option configures a Document.
type Option func(*Document)

// WithViewportHeight sets window.innerHeight.
func WithViewportHeight(h float64) Option {
	return func(d *Document) { d.viewport = h }
}

// WithBaseURL sets the URL hrefs are resolved against.
func WithBaseURL(raw string) Option {
	return func(d *Document) {
		if u, err := url.Parse(raw); err == nil {
			d.base = u
		}
	}
}

// New parses src and returns a Document in epoch 1.
func New(src string, opts ...Option) (*Document, error) {
	base, _ := url.Parse("http://localhost/")
	d := &Document{base: base, viewport: DefaultViewportHeight}
	for _, o := range opts {
		o(d)
	}
	if err := d.Navigate(src); err != nil {
		return nil, err
	}
	return d, nil
}

// Must is New for tests; it fails the test on parse errors.
func Must(t testing.TB, src string, opts ...Option) *Document {
	t.Helper()
	d, err := New(src, opts...)
	if err != nil {
		t.Fatalf("domtest: %v", err)
	}
	return d
}

// Navigate loads a new page, invalidating every node handed out so far.
func (d *Document) Navigate(src string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("domtest: parse: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = doc
	d.epoch++
	d.nodes = make(map[*html.Node]*element)
	return nil
}

// Close unloads the page; later calls fail with a11y.ErrNoDocument.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = nil
	d.nodes = nil
	d.epoch++
}

// Calls returns how many capability calls were served, for tests that
// check round trips.
func (d *Document) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// ByID returns the element with the given id attribute, or nil.
func (d *Document) ByID(id string) a11y.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil
	}
	sel := d.doc.Find("#" + id)
	if sel.Length() == 0 {
		return nil
	}
	return d.wrap(sel.Nodes[0])
}

// ID returns the id attribute of a node produced by a domtest Document.
func ID(n a11y.Node) string {
	e, ok := n.(*element)
	if !ok || e == nil {
		return ""
	}
	return attr(e.n, "id")
}

// IDs maps ID over nodes.
func IDs(nodes []a11y.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = ID(n)
	}
	return out
}

type element struct {
	n     *html.Node
	epoch uint64
}

func (e *element) Epoch() uint64 { return e.epoch }

func (d *Document) wrap(n *html.Node) *element {
	if e, ok := d.nodes[n]; ok {
		return e
	}
	e := &element{n: n, epoch: d.epoch}
	d.nodes[n] = e
	return e
}

// resolve validates n against the current epoch. Caller holds d.mu.
func (d *Document) resolve(n a11y.Node) (*html.Node, error) {
	d.calls++
	if d.doc == nil {
		return nil, a11y.ErrNoDocument
	}
	e, ok := n.(*element)
	if !ok || e == nil {
		return nil, fmt.Errorf("domtest: foreign node %T", n)
	}
	if e.epoch != d.epoch {
		return nil, a11y.ErrStaleNode
	}
	return e.n, nil
}

func (d *Document) QueryAll(_ context.Context, selector string) ([]a11y.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.doc == nil {
		return nil, a11y.ErrNoDocument
	}
	sel := d.doc.Find(selector)
	out := make([]a11y.Node, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, d.wrap(n))
	}
	return out, nil
}

func (d *Document) Props(_ context.Context, n a11y.Node) (a11y.Props, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hn, err := d.resolve(n)
	if err != nil {
		return a11y.Props{}, err
	}

	p := a11y.Props{
		Tag:  strings.ToUpper(hn.Data),
		Text: d.doc.FindNodes(hn).Text(),
	}
	switch hn.Data {
	case "a", "area":
		if raw, ok := attrOK(hn, "href"); ok {
			if ref, err := url.Parse(strings.TrimSpace(raw)); err == nil {
				p.Href = d.base.ResolveReference(ref).String()
			}
		}
	case "button", "input", "select", "textarea", "fieldset", "optgroup", "option":
		_, p.Disabled = attrOK(hn, "disabled")
	}
	return p, nil
}

func (d *Document) Style(_ context.Context, n a11y.Node) (a11y.Style, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hn, err := d.resolve(n)
	if err != nil {
		return a11y.Style{}, err
	}
	decl := inlineStyle(hn)
	display := decl["display"]
	if display == "" {
		display = "block"
	}
	return a11y.Style{Display: display, Visibility: computedVisibility(hn)}, nil
}

func (d *Document) BoundingBox(_ context.Context, n a11y.Node) (*a11y.Rect, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hn, err := d.resolve(n)
	if err != nil {
		return nil, err
	}
	return box(hn)
}

func (d *Document) ClientRect(_ context.Context, n a11y.Node) (a11y.Rect, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hn, err := d.resolve(n)
	if err != nil {
		return a11y.Rect{}, err
	}
	if raw, ok := attrOK(hn, "data-rect"); ok {
		return parseRect(raw)
	}
	b, err := box(hn)
	if err != nil || b == nil {
		return a11y.Rect{}, err
	}
	return *b, nil
}

func (d *Document) OffsetParent(_ context.Context, n a11y.Node) (a11y.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hn, err := d.resolve(n)
	if err != nil {
		return nil, err
	}
	if hn.Data == "body" || hn.Data == "html" || attr(hn, "data-offset-parent") == "none" {
		return nil, nil
	}
	if inlineStyle(hn)["position"] == "fixed" {
		return nil, nil
	}
	for p := hn.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		switch p.Data {
		case "body", "td", "th", "table":
			return d.wrap(p), nil
		}
		if pos := inlineStyle(p)["position"]; pos != "" && pos != "static" {
			return d.wrap(p), nil
		}
	}
	return nil, nil
}

func (d *Document) Closest(_ context.Context, n a11y.Node, selector string) (a11y.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hn, err := d.resolve(n)
	if err != nil {
		return nil, err
	}
	parent := parentElement(hn)
	if parent == nil {
		return nil, nil
	}
	match := d.doc.FindNodes(parent).Closest(selector)
	if match.Length() == 0 {
		return nil, nil
	}
	return d.wrap(match.Nodes[0]), nil
}

func (d *Document) ViewportHeight(context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.doc == nil {
		return 0, a11y.ErrNoDocument
	}
	return d.viewport, nil
}

func box(n *html.Node) (*a11y.Rect, error) {
	if raw, ok := attrOK(n, "data-box"); ok {
		if strings.TrimSpace(raw) == "none" {
			return nil, nil
		}
		r, err := parseRect(raw)
		if err != nil {
			return nil, err
		}
		return &r, nil
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && inlineStyle(cur)["display"] == "none" {
			return nil, nil
		}
	}
	r := DefaultBox
	return &r, nil
}

func computedVisibility(n *html.Node) string {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if v := inlineStyle(cur)["visibility"]; v != "" && v != "inherit" {
			return v
		}
	}
	return "visible"
}

func parseRect(raw string) (a11y.Rect, error) {
	f := strings.Fields(raw)
	if len(f) != 4 {
		return a11y.Rect{}, fmt.Errorf("domtest: rect %q: want 4 numbers", raw)
	}
	var v [4]float64
	for i, s := range f {
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return a11y.Rect{}, fmt.Errorf("domtest: rect %q: %w", raw, err)
		}
		v[i] = x
	}
	return a11y.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func inlineStyle(n *html.Node) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		out[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(v)
	}
	return out
}

func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
