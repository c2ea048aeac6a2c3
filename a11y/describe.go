package a11y

import (
	"context"
	"fmt"
	"strings"
)

// Element is a plain description of a scanned node, safe to keep after the
// page navigates away.
type Element struct {
	Tag      string `json:"tag"`
	Href     string `json:"href,omitempty"`
	Text     string `json:"text,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Visible  bool   `json:"visible"`
}

// maxTextLen caps Element.Text; menus can wrap entire subtrees.
const maxTextLen = 120

// Describe reads the properties of every node while the document is still
// current.
func Describe(ctx context.Context, doc Document, nodes []Node) ([]Element, error) {
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		props, err := doc.Props(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("a11y: describe: %w", err)
		}
		visible, err := IsVisible(ctx, doc, n)
		if err != nil {
			return nil, err
		}
		out = append(out, Element{
			Tag:      strings.ToLower(props.Tag),
			Href:     props.Href,
			Text:     truncate(strings.Join(strings.Fields(props.Text), " "), maxTextLen),
			Disabled: props.Disabled,
			Visible:  visible,
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
