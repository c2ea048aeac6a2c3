package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var scanFocusable bool

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Print the tabbable elements of one page as JSON lines",
	Long: `Load one page of the site and print, one JSON object per line, the
elements a keyboard user reaches with Tab, in document order.

With --focusable the visible enabled focusable elements are printed
instead. The URL may be a path on the site or an absolute URL on the
same host.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		elems, err := a.auditor.Scan(cmd.Context(), args[0], scanFocusable)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		for _, e := range elems {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		logger.Info("scan done", "url", args[0], "focusable", scanFocusable, "count", len(elems))
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanFocusable, "focusable", false, "list visible focusable elements instead of tabbable ones")
	rootCmd.AddCommand(scanCmd)
}
