package uicheck

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hazyhaar/uicheck/internal/metrics"
	"github.com/hazyhaar/uicheck/internal/siteinfo"
	"github.com/hazyhaar/uicheck/uicheck/report"
)

func violationsBy(p report.PageResult, sev report.Severity) map[report.Check]int {
	out := make(map[report.Check]int)
	for _, v := range p.Violations {
		if v.Severity == sev {
			out[v.Check]++
		}
	}
	return out
}

func TestRun_FullSite(t *testing.T) {
	a, site, c := testAuditor(t)
	ctx := context.Background()

	run, err := a.Run(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}

	wantURLs := []string{testBase + "/", testBase + "/?p=1", testBase + "/broken/", testBase + "/?feed=rss2"}
	if run.Pages != len(wantURLs) {
		t.Fatalf("pages = %d, want %d", run.Pages, len(wantURLs))
	}
	for i, want := range wantURLs {
		if got := run.Results[i].URL; got != want {
			t.Errorf("results[%d].URL = %q, want %q", i, got, want)
		}
	}

	home := run.Results[0]
	if errs := violationsBy(home, report.SeverityError); len(errs) != 0 {
		t.Errorf("home errors = %v: %+v", errs, home.Violations)
	}
	if len(home.Tabbable) != 4 {
		t.Errorf("home tabbable = %+v, want About, Team, WordPress, Theme", home.Tabbable)
	}
	if info := violationsBy(home, report.SeverityInfo); info[report.CheckTabbable] != 1 {
		t.Errorf("home info = %v, want the hidden Team item", info)
	}

	post := violationsBy(run.Results[1], report.SeverityError)
	if post[report.CheckPHPErrors] != 1 || post[report.CheckLinks] != 1 || len(post) != 2 {
		t.Errorf("post errors = %v", post)
	}

	broken := run.Results[2]
	if len(broken.Violations) != 1 || broken.Violations[0].Check != report.CheckNavigation {
		t.Errorf("broken violations = %+v", broken.Violations)
	}
	if !strings.Contains(broken.Violations[0].Message, "ERR_CONNECTION_RESET") {
		t.Errorf("navigation message = %q", broken.Violations[0].Message)
	}

	if errs := violationsBy(run.Results[3], report.SeverityError); len(errs) != 0 {
		t.Errorf("feed errors = %v", errs)
	}

	if run.Violations != 3 || !run.Failed() {
		t.Errorf("run violations = %d, want 3", run.Violations)
	}
	if run.FinishedAt < run.StartedAt {
		t.Errorf("finished %d before started %d", run.FinishedAt, run.StartedAt)
	}

	if site.opened != 2 || site.closed != 2 {
		t.Errorf("tabs opened=%d closed=%d, want 2 and 2", site.opened, site.closed)
	}
	if len(c.pages) != 4 || len(c.runs) != 1 {
		t.Errorf("sink got %d pages and %d runs", len(c.pages), len(c.runs))
	}

	stored, err := a.Store().GetRun(ctx, run.ID)
	if err != nil || stored == nil {
		t.Fatalf("stored run: %v, %v", stored, err)
	}
	if stored.Pages != 4 || stored.Violations != 3 || len(stored.Results) != 4 {
		t.Errorf("stored run = %+v", stored)
	}

	m := a.Metrics()
	if got := testutil.ToFloat64(m.PagesTotal.WithLabelValues(metrics.OutcomeNavError)); got != 1 {
		t.Errorf("nav error pages = %v", got)
	}
	if got := testutil.ToFloat64(m.RunsFailed); got != 1 {
		t.Errorf("failed runs = %v", got)
	}
}

func TestRun_SiteInfoDown(t *testing.T) {
	a, _, _ := testAuditor(t, func(c *Config) {
		c.SiteInfo = fakeInfo{err: siteinfo.ErrBadStatus}
	})
	run, err := a.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Pages != 1 || run.Results[0].URL != testBase+"/?feed=rss2" {
		t.Errorf("run = %+v, want only the feed", run)
	}
}

func TestRun_ExplicitPages(t *testing.T) {
	a, _, _ := testAuditor(t)
	run, err := a.Run(context.Background(), []siteinfo.SiteURL{{Path: "/", Subtype: "archive"}})
	if err != nil {
		t.Fatal(err)
	}
	if run.Pages != 1 {
		t.Fatalf("pages = %d, want 1", run.Pages)
	}
	errs := violationsBy(run.Results[0], report.SeverityError)
	if errs[report.CheckBodyClass] != 1 {
		t.Errorf("errors = %v, want a body_class miss for archive", errs)
	}
	if errs[report.CheckLinks] != 0 {
		t.Error("theme URL host should stay allowed for explicit page lists")
	}
}

type failingTabs struct{}

func (failingTabs) OpenTab(context.Context) (Tab, error) {
	return nil, errors.New("chrome is gone")
}

func TestRun_TabOpenFails(t *testing.T) {
	a, _, _ := testAuditor(t, func(c *Config) { c.Tabs = failingTabs{} })
	if _, err := a.Run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "chrome is gone") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_CheckSelection(t *testing.T) {
	a, _, _ := testAuditor(t, func(c *Config) { c.Checks = []report.Check{report.CheckStatus} })
	run, err := a.Run(context.Background(), []siteinfo.SiteURL{{Path: "/", Query: "?p=1"}})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(run.Results[0].Violations); n != 0 {
		t.Errorf("status-only run found %+v", run.Results[0].Violations)
	}
	if run.Results[0].Tabbable != nil {
		t.Error("tabbable inventory ran although not selected")
	}
}

func TestAuditPage(t *testing.T) {
	a, _, c := testAuditor(t)
	res, err := a.AuditPage(context.Background(), "/?p=1")
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != testBase+"/?p=1" || res.Status != 200 {
		t.Errorf("result = %+v", res)
	}
	if res.Errors() != 2 {
		t.Errorf("errors = %d, want php and links: %+v", res.Errors(), res.Violations)
	}
	if len(c.pages) != 0 {
		t.Error("single-page audits should not reach sinks")
	}
}

func TestScan(t *testing.T) {
	a, _, _ := testAuditor(t)
	ctx := context.Background()

	tabbable, err := a.Scan(ctx, "/", false)
	if err != nil {
		t.Fatal(err)
	}
	var texts []string
	for _, e := range tabbable {
		texts = append(texts, e.Text)
	}
	if got := strings.Join(texts, "|"); got != "About|Team|Proudly powered by WordPress|Theme" {
		t.Errorf("tabbable = %s", got)
	}

	focusable, err := a.Scan(ctx, testBase+"/", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(focusable) != 3 {
		t.Errorf("focusable = %+v, want the three visible links", focusable)
	}
}

func TestResolvePage(t *testing.T) {
	a, _, _ := testAuditor(t)
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"/", "/", false},
		{"/?p=1", "/?p=1", false},
		{"?feed=rss2", "/?feed=rss2", false},
		{testBase + "/about/", "/about/", false},
		{"https://elsewhere.test/", "", true},
	}
	for _, tt := range tests {
		su, err := a.resolvePage(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolvePage(%q) err = %v", tt.raw, err)
			continue
		}
		if err == nil && su.String() != tt.want {
			t.Errorf("resolvePage(%q) = %q, want %q", tt.raw, su.String(), tt.want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{BaseURL: testBase}); err == nil {
		t.Error("missing tab opener accepted")
	}
	if _, err := New(Config{Tabs: newSite()}); err == nil {
		t.Error("missing base url accepted")
	}
}
