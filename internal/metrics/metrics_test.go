package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hazyhaar/uicheck/a11y"
	"github.com/hazyhaar/uicheck/uicheck/report"
)

func TestRecordPage(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.PageStarted()
	m.RecordPage(&report.PageResult{
		Tabbable: []a11y.Element{{Tag: "a"}, {Tag: "button"}},
		Violations: []report.Violation{
			{Check: report.CheckLinks, Severity: report.SeverityError},
			{Check: report.CheckTabbable, Severity: report.SeverityInfo},
		},
	}, false, 200*time.Millisecond)

	m.PageStarted()
	m.RecordPage(&report.PageResult{}, false, time.Second)

	m.PageStarted()
	m.RecordPage(&report.PageResult{Violations: []report.Violation{
		{Check: report.CheckNavigation, Severity: report.SeverityError},
	}}, true, time.Second)

	if got := testutil.ToFloat64(m.PagesTotal.WithLabelValues(OutcomeViolation)); got != 1 {
		t.Errorf("violation pages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PagesTotal.WithLabelValues(OutcomeClean)); got != 1 {
		t.Errorf("clean pages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PagesTotal.WithLabelValues(OutcomeNavError)); got != 1 {
		t.Errorf("nav error pages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ViolationsTotal.WithLabelValues("links", "error")); got != 1 {
		t.Errorf("links errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PagesInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestRecordRun(t *testing.T) {
	m := New(nil)
	m.RecordRun(&report.Run{Violations: 0})
	m.RecordRun(&report.Run{Violations: 3})
	if got := testutil.ToFloat64(m.RunsTotal); got != 2 {
		t.Errorf("runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RunsFailed); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.PageStarted()
	m.RecordPage(&report.PageResult{}, false, time.Second)
	m.RecordRun(&report.Run{})
}

func TestHandler(t *testing.T) {
	m := New(nil)
	m.RecordRun(&report.Run{})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "uicheck_audit_runs_total 1") {
		t.Errorf("exposition missing runs_total:\n%s", body)
	}
}
