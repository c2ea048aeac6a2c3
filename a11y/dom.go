// Package a11y classifies the focusable elements of a rendered page for
// keyboard-accessibility audits. It decides whether an element is visually
// rendered, whether it takes part in sequential keyboard navigation, and
// whether a hidden element is a collapsed menu item rather than a defect.
//
// a11y never touches a browser directly. Every DOM read goes through a
// Document, so the same classification runs against a live Chrome tab
// (package rodom) or an in-memory page (package domtest).
package a11y

import (
	"context"
	"errors"
)

var (
	// ErrStaleNode is returned by a Document when a Node from an earlier
	// navigation is used after the page moved on.
	ErrStaleNode = errors.New("a11y: node belongs to a previous navigation")

	// ErrNoDocument is returned when no page is loaded behind a Document.
	ErrNoDocument = errors.New("a11y: no document loaded")

	// ErrAncestorCycle is returned when an offsetParent walk does not reach
	// the body within maxAncestorHops.
	ErrAncestorCycle = errors.New("a11y: offsetParent chain does not terminate")
)

// Node is an opaque handle into a live document. It is only valid for the
// navigation epoch it was produced in.
type Node interface {
	Epoch() uint64
}

// Rect is an element rectangle in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Style holds the computed style properties the classifier reads.
type Style struct {
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
}

// Props holds the element properties read in a single round trip.
// Href is the resolved href property, empty when the attribute is absent.
type Props struct {
	Tag      string `json:"tag"`
	Href     string `json:"href"`
	Text     string `json:"text"`
	Disabled bool   `json:"disabled"`
}

// Document is the DOM capability the classifier consumes. Implementations
// must return nodes in document order from QueryAll and must reject nodes
// from another epoch with ErrStaleNode.
type Document interface {
	// QueryAll returns every element matching a CSS selector.
	QueryAll(ctx context.Context, selector string) ([]Node, error)

	// Props returns tag name, href, text and the disabled flag.
	Props(ctx context.Context, n Node) (Props, error)

	// Style returns the computed display and visibility.
	Style(ctx context.Context, n Node) (Style, error)

	// BoundingBox returns the layout box, or nil when the element has none
	// (display:none, detached, inside a hidden subtree).
	BoundingBox(ctx context.Context, n Node) (*Rect, error)

	// ClientRect returns getBoundingClientRect(). It is never nil; elements
	// without layout report a zero rectangle.
	ClientRect(ctx context.Context, n Node) (Rect, error)

	// OffsetParent returns the layout parent, or nil.
	OffsetParent(ctx context.Context, n Node) (Node, error)

	// Closest returns the nearest ancestor of n (starting at its parent
	// element, never n itself) matching selector, or nil.
	Closest(ctx context.Context, n Node, selector string) (Node, error)

	// ViewportHeight returns window.innerHeight.
	ViewportHeight(ctx context.Context) (float64, error)
}

// ScanResult is the ordered output of a scanner, in DOM query order.
type ScanResult []Node
