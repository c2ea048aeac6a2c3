// Package check implements the page-level assertions run by the auditor.
//
// Each check reads a loaded Page and returns violations. Checks never fail
// the page on their own; an error return means the check could not run
// (typically a DOM call failed) and is reported by the caller.
package check

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/uicheck/a11y"
	"github.com/hazyhaar/uicheck/uicheck/report"
)

// DefaultAllowedHosts are link targets every theme may point at.
var DefaultAllowedHosts = []string{
	"wordpress.org",
	"gravatar.com",
	"en.support.wordpress.com",
	"example.com",
	"example.org",
	"example.net",
	"wpthemetestdata.wordpress.com",
	"wpthemetestdata.files.wordpress.com",
	"codex.wordpress.org",
	"facebook.com",
	"www.facebook.com",
	"twitter.com",
}

// Page is everything the checks know about one loaded URL.
type Page struct {
	URL        string // absolute URL that was loaded
	Path       string // path and query as listed by the site, used in messages
	Subtype    string // expected body class, may be empty
	Status     int    // main document HTTP status
	Body       string // raw response body of the main document
	HTML       string // serialized DOM after scripts ran
	BodyClass  string // document.body.className
	PageErrors []string
	Doc        a11y.Document
}

// Result is the outcome of running the configured checks on a page.
type Result struct {
	Violations []report.Violation
	Tabbable   []a11y.Element
	Focusable  []a11y.Element
}

// Config selects checks and supplies the link allow list.
type Config struct {
	Checks       []report.Check // empty means report.AllChecks
	AllowedHosts []string       // empty means DefaultAllowedHosts
	ThemeURLs    []string       // theme and author URIs, their hosts are allowed
	Logger       *slog.Logger
}

// Runner runs checks against pages. It is safe for concurrent use.
type Runner struct {
	checks  []report.Check
	allowed map[string]bool
	policy  *bluemonday.Policy
	logger  *slog.Logger
}

// New creates a Runner.
func New(cfg Config) *Runner {
	checks := cfg.Checks
	if len(checks) == 0 {
		checks = report.AllChecks
	}
	hosts := cfg.AllowedHosts
	if len(hosts) == 0 {
		hosts = DefaultAllowedHosts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	allowed := map[string]bool{"": true}
	for _, h := range hosts {
		allowed[strings.ToLower(h)] = true
	}
	for _, raw := range cfg.ThemeURLs {
		if u, err := url.Parse(raw); err == nil {
			allowed[strings.ToLower(u.Hostname())] = true
		}
	}

	return &Runner{
		checks:  checks,
		allowed: allowed,
		policy:  bluemonday.StrictPolicy(),
		logger:  logger,
	}
}

// Run executes every configured check. A check that errors is logged and
// turned into an error-severity violation so the page still reports.
func (r *Runner) Run(ctx context.Context, p *Page) *Result {
	res := &Result{}
	for _, c := range r.checks {
		var (
			vs  []report.Violation
			err error
		)
		switch c {
		case report.CheckBodyClass:
			vs = BodyClass(p)
		case report.CheckPHPErrors:
			vs = r.PHPErrors(p)
		case report.CheckCompleteOutput:
			vs = CompleteOutput(p)
		case report.CheckStatus:
			vs = Status(p)
		case report.CheckConsoleErrors:
			vs = ConsoleErrors(p)
		case report.CheckLinks:
			vs, err = r.Links(ctx, p)
		case report.CheckTabbable:
			vs, err = r.inventory(ctx, p, res)
		default:
			r.logger.Warn("check: unknown check", "check", c)
			continue
		}
		if err != nil {
			r.logger.Warn("check: failed", "check", c, "url", p.URL, "error", err)
			vs = append(vs, violation(c, report.SeverityError, p.URL, fmt.Sprintf("check could not run: %v", err)))
		}
		res.Violations = append(res.Violations, vs...)
	}
	return res
}

func violation(c report.Check, sev report.Severity, u, msg string) report.Violation {
	return report.Violation{Check: c, Severity: sev, URL: u, Message: msg}
}

// BodyClass verifies the body carries the subtype class.
func BodyClass(p *Page) []report.Violation {
	if p.Subtype == "" {
		return nil
	}
	for _, c := range strings.Fields(p.BodyClass) {
		if c == p.Subtype {
			return nil
		}
	}
	return []report.Violation{violation(report.CheckBodyClass, report.SeverityError, p.URL,
		fmt.Sprintf("%s does not contain a body class %s", p.Path, p.Subtype))}
}

var phpErrorRe = regexp.MustCompile(`(<b>)?(Fatal error|Recoverable fatal error|Warning|Parse error|Notice|Strict Standards|Deprecated|Unknown error)(</b>)?: (.*?) in (.*?) on line (<b>)?\d+(</b>)?`)

// maxExcerpt caps the PHP error text copied into a message.
const maxExcerpt = 300

// PHPErrors reports every PHP error banner in the rendered HTML.
func (r *Runner) PHPErrors(p *Page) []report.Violation {
	var out []report.Violation
	for _, m := range phpErrorRe.FindAllString(p.HTML, -1) {
		excerpt := strings.Join(strings.Fields(r.policy.Sanitize(m)), " ")
		if len(excerpt) > maxExcerpt {
			excerpt = excerpt[:maxExcerpt]
		}
		out = append(out, violation(report.CheckPHPErrors, report.SeverityError, p.URL,
			fmt.Sprintf("PHP error found on %s: %s", p.Path, excerpt)))
	}
	return out
}

var completeOutputRe = regexp.MustCompile(`</(html|rss)>\s*$`)

// CompleteOutput verifies the response was not cut short by a fatal error.
func CompleteOutput(p *Page) []report.Violation {
	if completeOutputRe.MatchString(p.Body) {
		return nil
	}
	return []report.Violation{violation(report.CheckCompleteOutput, report.SeverityError, p.URL,
		fmt.Sprintf("%s does not end with a closing </html> or </rss> tag", p.Path))}
}

// Status verifies the main document answered 200.
func Status(p *Page) []report.Violation {
	if p.Status == 200 {
		return nil
	}
	return []report.Violation{violation(report.CheckStatus, report.SeverityError, p.URL,
		fmt.Sprintf("%s returned status %d", p.Path, p.Status))}
}

// ConsoleErrors reports uncaught exceptions thrown while the page loaded.
func ConsoleErrors(p *Page) []report.Violation {
	out := make([]report.Violation, 0, len(p.PageErrors))
	for _, e := range p.PageErrors {
		out = append(out, violation(report.CheckConsoleErrors, report.SeverityError, p.URL,
			fmt.Sprintf("page error on %s: %s", p.Path, e)))
	}
	return out
}

// Links reports each link host outside the allow list once per page.
func (r *Runner) Links(ctx context.Context, p *Page) ([]report.Violation, error) {
	if p.Doc == nil {
		return nil, a11y.ErrNoDocument
	}
	anchors, err := p.Doc.QueryAll(ctx, "a")
	if err != nil {
		return nil, fmt.Errorf("check: links: %w", err)
	}

	var own string
	if u, err := url.Parse(p.URL); err == nil {
		own = strings.ToLower(u.Hostname())
	}

	bad := make(map[string]bool)
	for _, a := range anchors {
		props, err := p.Doc.Props(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("check: links: %w", err)
		}
		u, err := url.Parse(props.Href)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if host == own || r.allowed[host] {
			continue
		}
		bad[host] = true
	}

	hosts := make([]string, 0, len(bad))
	for h := range bad {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	out := make([]report.Violation, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, violation(report.CheckLinks, report.SeverityError, p.URL,
			fmt.Sprintf("%s found on %s is not an approved link.", h, p.Path)))
	}
	return out, nil
}

// inventory scans tabbable and focusable elements into res and reports
// the ones a keyboard user would find surprising.
func (r *Runner) inventory(ctx context.Context, p *Page, res *Result) ([]report.Violation, error) {
	if p.Doc == nil {
		return nil, a11y.ErrNoDocument
	}
	tabbable, err := a11y.TabbableElements(ctx, p.Doc)
	if err != nil {
		return nil, err
	}
	focusable, err := a11y.FocusableElements(ctx, p.Doc)
	if err != nil {
		return nil, err
	}
	if res.Tabbable, err = a11y.Describe(ctx, p.Doc, tabbable); err != nil {
		return nil, err
	}
	if res.Focusable, err = a11y.Describe(ctx, p.Doc, focusable); err != nil {
		return nil, err
	}
	return Inventory(p, res.Tabbable, res.Focusable), nil
}

// Inventory grades described scan results. Hidden tabbable elements are
// collapsed menu items and only informative; visible anchors without href
// take focus on click but are skipped by Tab.
func Inventory(p *Page, tabbable, focusable []a11y.Element) []report.Violation {
	var out []report.Violation
	for _, e := range tabbable {
		if !e.Visible {
			out = append(out, violation(report.CheckTabbable, report.SeverityInfo, p.URL,
				fmt.Sprintf("hidden %s %q on %s is tabbable as a navigation menu item", e.Tag, e.Text, p.Path)))
		}
	}
	for _, e := range focusable {
		if e.Tag == "a" && e.Href == "" {
			out = append(out, violation(report.CheckTabbable, report.SeverityWarning, p.URL,
				fmt.Sprintf("anchor %q on %s without href is focusable but not tabbable", e.Text, p.Path)))
		}
	}
	return out
}
