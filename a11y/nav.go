package a11y

import (
	"context"
	"fmt"
)

// ListContainerSelector identifies the wrappers navigation menus are built
// from.
const ListContainerSelector = "ul"

// NavClassification is the outcome of ClassifyNav for one node.
type NavClassification struct {
	// Outermost is the topmost enclosing list container, or the node itself
	// when it has none.
	Outermost Node
	// HasContainer is true when Outermost is a real container, not the node.
	HasContainer bool
	// LikelyNavItem is true when the node sits in a list whose outermost
	// container currently occupies viewport space.
	LikelyNavItem bool
}

// ClassifyNav walks up through enclosing list containers to the outermost
// one and decides whether n is likely part of a navigation widget. Menus
// usually collapse submenus by sizing or positioning the items, so the
// decision looks at the outer wrapper's geometry, not at n's own style.
func ClassifyNav(ctx context.Context, doc Document, n Node) (NavClassification, error) {
	out := NavClassification{Outermost: n}

	cur := n
	for hop := 0; ; hop++ {
		if hop >= maxAncestorHops {
			return NavClassification{}, ErrAncestorCycle
		}
		parent, err := doc.Closest(ctx, cur, ListContainerSelector)
		if err != nil {
			return NavClassification{}, fmt.Errorf("a11y: closest %s: %w", ListContainerSelector, err)
		}
		if parent == nil {
			break
		}
		out.Outermost = parent
		out.HasContainer = true
		cur = parent
	}

	if !out.HasContainer {
		return out, nil
	}

	vis, err := IsGeometricallyVisible(ctx, doc, out.Outermost)
	if err != nil {
		return NavClassification{}, err
	}
	out.LikelyNavItem = vis
	return out, nil
}
