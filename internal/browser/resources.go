package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyResourceBlocking sets up request interception to block the
// configured resource types. The router stops when the page closes.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[blockKey(t)] = true
	}

	router := page.HijackRequests()
	err := router.Add("*", "", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, ctx.Request.Type()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return err
	}
	go router.Run()
	return nil
}

// blockKey maps a configured name ("images", "Fonts") to the CDP resource
// type it blocks.
func blockKey(name string) string {
	switch k := strings.ToLower(strings.TrimSpace(name)); k {
	case "images":
		return "image"
	case "fonts":
		return "font"
	case "stylesheets":
		return "stylesheet"
	default:
		return k
	}
}

// shouldBlock never blocks the main document, whatever the configuration.
func shouldBlock(blockSet map[string]bool, resType proto.NetworkResourceType) bool {
	if resType == proto.NetworkResourceTypeDocument {
		return false
	}
	return blockSet[strings.ToLower(string(resType))]
}
