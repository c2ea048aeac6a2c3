package uicheck

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/uicheck/internal/kit"
)

// RegisterMCP registers the uicheck tools on an MCP server.
func (a *Auditor) RegisterMCP(srv *mcp.Server) {
	ep := a.endpoints()

	kit.RegisterMCPTool[auditPageRequest](srv, &mcp.Tool{
		Name:        "uicheck_audit_page",
		Description: "Load a page of the site under test and run every configured check: body class, PHP errors, complete output, status, console errors, links and keyboard accessibility. Returns the page result with its violations.",
		InputSchema: kit.InputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Path (\"/?p=1\") or absolute URL on the audited site"},
		}, []string{"url"}),
	}, ep.auditPage)

	kit.RegisterMCPTool[tabbableRequest](srv, &mcp.Tool{
		Name:        "uicheck_tabbable",
		Description: "List the elements a keyboard user reaches with Tab on a page, in document order. With focusable=true, list visible enabled focusable elements instead.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":       map[string]any{"type": "string", "description": "Path or absolute URL on the audited site"},
			"focusable": map[string]any{"type": "boolean", "description": "Return focusable instead of tabbable elements"},
		}, []string{"url"}),
	}, ep.tabbable)

	kit.RegisterMCPTool[listRunsRequest](srv, &mcp.Tool{
		Name:        "uicheck_list_runs",
		Description: "List recent audit runs, newest first, with page and violation counts.",
		InputSchema: kit.InputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max runs (default 20)"},
		}, nil),
	}, ep.listRuns)
}
