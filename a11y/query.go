package a11y

import (
	"context"
	"fmt"
)

// FocusableSelector matches every element that can take focus by tag or by
// an explicit non-negative tabindex.
const FocusableSelector = `a, button, input, textarea, select, details, [tabindex]:not([tabindex="-1"])`

// FocusableCandidates returns every element matching FocusableSelector in
// document order. Disabled and hidden elements are included.
func FocusableCandidates(ctx context.Context, doc Document) ([]Node, error) {
	nodes, err := doc.QueryAll(ctx, FocusableSelector)
	if err != nil {
		return nil, fmt.Errorf("a11y: query focusable: %w", err)
	}
	return nodes, nil
}
