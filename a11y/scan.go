package a11y

import (
	"context"
	"fmt"
	"strings"
)

// FocusableElements returns the candidates that are enabled and visible,
// in query order.
func FocusableElements(ctx context.Context, doc Document) (ScanResult, error) {
	candidates, err := FocusableCandidates(ctx, doc)
	if err != nil {
		return nil, err
	}

	result := make(ScanResult, 0, len(candidates))
	for _, n := range candidates {
		props, err := doc.Props(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("a11y: props: %w", err)
		}
		if props.Disabled {
			continue
		}
		visible, err := IsVisible(ctx, doc, n)
		if err != nil {
			return nil, err
		}
		if visible {
			result = append(result, n)
		}
	}
	return result, nil
}

// TabbableElements returns the candidates that receive focus when the user
// tabs through the page, in query order.
//
// An element is tabbable when it is enabled, is not an anchor without a
// destination, and is either visible or hidden inside a navigation list
// whose outer container is on screen (a collapsed dropdown).
func TabbableElements(ctx context.Context, doc Document) (ScanResult, error) {
	candidates, err := FocusableCandidates(ctx, doc)
	if err != nil {
		return nil, err
	}

	result := make(ScanResult, 0, len(candidates))
	for _, n := range candidates {
		ok, err := isTabbable(ctx, doc, n)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, n)
		}
	}
	return result, nil
}

func isTabbable(ctx context.Context, doc Document, n Node) (bool, error) {
	props, err := doc.Props(ctx, n)
	if err != nil {
		return false, fmt.Errorf("a11y: props: %w", err)
	}
	if props.Disabled {
		return false, nil
	}
	if strings.EqualFold(props.Tag, "a") && props.Href == "" {
		return false, nil
	}

	visible, err := IsVisible(ctx, doc, n)
	if err != nil {
		return false, err
	}
	if visible {
		return true, nil
	}

	nav, err := ClassifyNav(ctx, doc, n)
	if err != nil {
		return false, err
	}
	return nav.LikelyNavItem, nil
}
