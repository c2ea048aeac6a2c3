package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/uicheck/internal/siteinfo"
)

var auditCmd = &cobra.Command{
	Use:   "audit [path...]",
	Short: "Audit the site and exit non-zero on error-severity violations",
	Long: `Audit every page the site info endpoint lists plus site.extra_urls.

Paths given as arguments ("/", "/?p=1") replace the discovered list.
Each page result is sent to the configured sinks as it completes; the
run summary follows. The command exits 1 when any page has an
error-severity violation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pages, err := parsePaths(args)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), appOptions{stdoutSink: true, sinks: true})
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.auditor.Run(cmd.Context(), pages)
		if err != nil {
			return err
		}
		if run.Failed() {
			return fmt.Errorf("%w: %d violations on %d pages (run %s)", errAuditFailed, run.Violations, run.Pages, run.ID)
		}
		return nil
	},
}

// parsePaths turns "/path?query" arguments into site URLs.
func parsePaths(args []string) ([]siteinfo.SiteURL, error) {
	out := make([]siteinfo.SiteURL, 0, len(args))
	for _, arg := range args {
		path, query, _ := strings.Cut(arg, "?")
		su, err := siteinfo.Parse([]string{path, query})
		if err != nil {
			return nil, err
		}
		out = append(out, su)
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
