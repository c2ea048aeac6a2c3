// Package report defines the structured results emitted by uicheck.
// These are the public API contract: sinks, the HTTP API and MCP tools
// all exchange these types.
package report

import (
	"encoding/json"

	"github.com/hazyhaar/uicheck/a11y"
)

// Check names a page-level assertion.
type Check string

const (
	CheckNavigation     Check = "navigation"      // page could not be loaded at all
	CheckBodyClass      Check = "body_class"      // body carries the subtype class
	CheckPHPErrors      Check = "php_errors"      // no PHP error banner in the output
	CheckCompleteOutput Check = "complete_output" // response ends with </html> or </rss>
	CheckStatus         Check = "status"          // main document answered 200
	CheckConsoleErrors  Check = "console_errors"  // no uncaught page exception
	CheckLinks          Check = "links"           // every link points at an approved host
	CheckTabbable       Check = "tabbable"        // keyboard accessibility inventory
)

// AllChecks lists every check in execution order.
var AllChecks = []Check{
	CheckBodyClass, CheckPHPErrors, CheckCompleteOutput, CheckStatus,
	CheckConsoleErrors, CheckLinks, CheckTabbable,
}

// Severity grades a Violation. Only SeverityError fails a run.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Violation is a single finding on a page.
type Violation struct {
	Check    Check    `json:"check"`
	Severity Severity `json:"severity"`
	URL      string   `json:"url"`
	Message  string   `json:"message"`
}

// PageResult is the outcome of auditing one URL.
type PageResult struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id"`
	URL        string         `json:"url"`
	Subtype    string         `json:"subtype,omitempty"`
	Status     int            `json:"status"`
	Tabbable   []a11y.Element `json:"tabbable,omitempty"`
	Focusable  []a11y.Element `json:"focusable,omitempty"`
	Violations []Violation    `json:"violations"`
	DurationMs int64          `json:"duration_ms"`
	Timestamp  int64          `json:"timestamp"` // epoch milliseconds
}

// Errors counts error-severity violations.
func (p *PageResult) Errors() int {
	n := 0
	for _, v := range p.Violations {
		if v.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Run is one audit of a whole site.
type Run struct {
	ID         string       `json:"id"`
	BaseURL    string       `json:"base_url"`
	StartedAt  int64        `json:"started_at"`  // epoch milliseconds
	FinishedAt int64        `json:"finished_at"` // epoch milliseconds, 0 while running
	Pages      int          `json:"pages"`
	Violations int          `json:"violations"` // error-severity only
	Results    []PageResult `json:"results,omitempty"`
}

// Failed reports whether any page has an error-severity violation.
func (r *Run) Failed() bool {
	return r.Violations > 0
}

// MarshalPage serialises a PageResult to JSON.
func MarshalPage(p *PageResult) ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPage deserialises a PageResult from JSON.
func UnmarshalPage(data []byte) (*PageResult, error) {
	var p PageResult
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
