package a11y

import (
	"context"
	"fmt"
	"strings"
)

// maxAncestorHops bounds the offsetParent walk. Real documents never come
// close; a backend that reports a cycle would otherwise loop forever.
const maxAncestorHops = 4096

// IsVisible reports whether n is visually rendered.
//
// A node without a bounding box is never visible and its style is not read.
// Otherwise the node and each offsetParent above it, up to and including
// body, must be neither display:none nor visibility:hidden: a node sitting
// inside a hidden layout parent is hidden too, whatever its own style says.
func IsVisible(ctx context.Context, doc Document, n Node) (bool, error) {
	box, err := doc.BoundingBox(ctx, n)
	if err != nil {
		return false, fmt.Errorf("a11y: bounding box: %w", err)
	}
	if box == nil {
		return false, nil
	}

	cur := n
	for hop := 0; hop < maxAncestorHops; hop++ {
		hidden, err := isHidden(ctx, doc, cur)
		if err != nil {
			return false, err
		}
		if hidden {
			return false, nil
		}

		props, err := doc.Props(ctx, cur)
		if err != nil {
			return false, fmt.Errorf("a11y: props: %w", err)
		}
		if strings.EqualFold(props.Tag, "body") {
			return true, nil
		}

		parent, err := doc.OffsetParent(ctx, cur)
		if err != nil {
			return false, fmt.Errorf("a11y: offset parent: %w", err)
		}
		if parent == nil {
			return true, nil
		}
		cur = parent
	}
	return false, ErrAncestorCycle
}

// isHidden checks a single node's computed style.
func isHidden(ctx context.Context, doc Document, n Node) (bool, error) {
	st, err := doc.Style(ctx, n)
	if err != nil {
		return false, fmt.Errorf("a11y: computed style: %w", err)
	}
	return strings.EqualFold(st.Display, "none") || strings.EqualFold(st.Visibility, "hidden"), nil
}

// IsGeometricallyVisible reports whether n occupies viewport space: it is
// not pushed off the left edge, does not start below the viewport, and has
// a non-zero width or height. Computed style is ignored.
func IsGeometricallyVisible(ctx context.Context, doc Document, n Node) (bool, error) {
	r, err := doc.ClientRect(ctx, n)
	if err != nil {
		return false, fmt.Errorf("a11y: client rect: %w", err)
	}
	vh, err := doc.ViewportHeight(ctx)
	if err != nil {
		return false, fmt.Errorf("a11y: viewport height: %w", err)
	}
	return geometricallyVisible(r, vh), nil
}

func geometricallyVisible(r Rect, viewportHeight float64) bool {
	return !(r.X <= 0 || r.Y-viewportHeight >= 0 || (r.Width == 0 && r.Height == 0))
}
