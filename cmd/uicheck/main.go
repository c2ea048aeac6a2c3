// Command uicheck audits the rendered pages of a theme test site.
//
// Usage:
//
//	uicheck audit -c uicheck.yaml            # audit every page, exit 1 on errors
//	uicheck scan http://localhost:8889/      # list tabbable elements of one page
//	uicheck serve                            # HTTP API and /metrics
//	uicheck mcp                              # MCP tools over stdio
package main

import "github.com/hazyhaar/uicheck/cmd/uicheck/cmd"

func main() {
	cmd.Execute()
}
