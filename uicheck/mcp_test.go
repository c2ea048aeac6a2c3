package uicheck

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/uicheck/uicheck/report"
)

var testImpl = &mcp.Implementation{Name: "uicheck-test", Version: "0.1.0"}

// mcpSession registers the tools of a test Auditor and returns a connected
// client session.
func mcpSession(t *testing.T) (*Auditor, *mcp.ClientSession) {
	t.Helper()
	a, _, _ := testAuditor(t)

	srv := mcp.NewServer(testImpl, nil)
	a.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return a, session
}

// callTool invokes a tool and returns the JSON text from the first TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) tool error: %+v", name, result.Content)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func TestMCP_ListTools(t *testing.T) {
	_, session := mcpSession(t)
	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"uicheck_audit_page", "uicheck_tabbable", "uicheck_list_runs"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
}

func TestMCP_Tabbable(t *testing.T) {
	_, session := mcpSession(t)
	text := callTool(t, session, "uicheck_tabbable", map[string]any{"url": "/"})

	var resp tabbableResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Mode != "tabbable" || resp.Count != 4 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Elements[1].Text != "Team" || resp.Elements[1].Visible {
		t.Errorf("second element = %+v, want the hidden Team item", resp.Elements[1])
	}
}

func TestMCP_AuditPage(t *testing.T) {
	_, session := mcpSession(t)
	text := callTool(t, session, "uicheck_audit_page", map[string]any{"url": "/?p=1"})

	var page report.PageResult
	if err := json.Unmarshal([]byte(text), &page); err != nil {
		t.Fatal(err)
	}
	if page.Errors() != 2 {
		t.Errorf("page = %+v", page)
	}
}

func TestMCP_ListRuns(t *testing.T) {
	a, session := mcpSession(t)
	run, err := a.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	text := callTool(t, session, "uicheck_list_runs", map[string]any{"limit": 5})
	var runs []report.Run
	if err := json.Unmarshal([]byte(text), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID || runs[0].Pages != 4 {
		t.Errorf("runs = %s", text)
	}
}

func TestMCP_MissingURLIsToolError(t *testing.T) {
	_, session := mcpSession(t)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "uicheck_audit_page",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	tc, _ := result.Content[0].(*mcp.TextContent)
	if tc == nil || !strings.Contains(tc.Text, "url is required") {
		t.Errorf("content = %+v", result.Content)
	}
}
