package cmd

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the uicheck tools over MCP stdio",
	Long: `Serve uicheck_audit_page, uicheck_tabbable and uicheck_list_runs to an
MCP client over stdin/stdout. The stdout sink is disabled since stdout
carries the protocol; logs stay on stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{sinks: true})
		if err != nil {
			return err
		}
		defer a.Close()

		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "uicheck",
			Version: "1.0.0",
		}, nil)
		a.auditor.RegisterMCP(srv)

		logger.Info("mcp serving on stdio")
		return srv.Run(cmd.Context(), &mcp.StdioTransport{})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
