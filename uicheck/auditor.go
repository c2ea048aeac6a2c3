// Package uicheck audits the rendered pages of a theme test site: page
// structure, server errors, outbound links and keyboard accessibility.
//
// An Auditor loads each page in its own browser tab, runs the configured
// checks against the live DOM and delivers the results to sinks, the
// store and Prometheus.
package uicheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/uicheck/a11y"
	"github.com/hazyhaar/uicheck/internal/browser"
	"github.com/hazyhaar/uicheck/internal/check"
	"github.com/hazyhaar/uicheck/internal/metrics"
	"github.com/hazyhaar/uicheck/internal/sink"
	"github.com/hazyhaar/uicheck/internal/siteinfo"
	"github.com/hazyhaar/uicheck/internal/store"
	"github.com/hazyhaar/uicheck/uicheck/report"
)

// Tab is a browser tab that loads one page at a time.
type Tab interface {
	Load(ctx context.Context, pageURL string) (*browser.Response, error)
	Document() a11y.Document
	Close() error
}

// TabOpener opens tabs. *browser.Manager satisfies it through ManagerTabs.
type TabOpener interface {
	OpenTab(ctx context.Context) (Tab, error)
}

// InfoFetcher reads the site's page list. *siteinfo.Client satisfies it.
type InfoFetcher interface {
	Fetch(ctx context.Context, baseURL string) (*siteinfo.Info, error)
}

// Config configures an Auditor.
type Config struct {
	BaseURL      string
	ExtraURLs    []siteinfo.SiteURL
	Checks       []report.Check
	AllowedHosts []string
	Concurrency  int

	Tabs     TabOpener   // required
	SiteInfo InfoFetcher // nil disables page discovery
	Sink     sink.Sink   // nil discards results
	Store    *store.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Auditor runs audits. It is safe for concurrent use; each run opens its
// own tabs.
type Auditor struct {
	cfg Config
}

// New creates an Auditor.
func New(cfg Config) (*Auditor, error) {
	if cfg.Tabs == nil {
		return nil, errors.New("uicheck: no tab opener")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("uicheck: invalid base url %q", cfg.BaseURL)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Sink == nil {
		cfg.Sink = sink.NewCallback(nil, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Auditor{cfg: cfg}, nil
}

// Store returns the configured store, or nil.
func (a *Auditor) Store() *store.Store { return a.cfg.Store }

// Metrics returns the configured metrics, or nil.
func (a *Auditor) Metrics() *metrics.Metrics { return a.cfg.Metrics }

// discover returns the site's pages followed by the extra URLs, plus the
// theme URLs whose hosts links may point at. A failing endpoint is logged
// and leaves only the extra URLs.
func (a *Auditor) discover(ctx context.Context) ([]siteinfo.SiteURL, []string) {
	var pages []siteinfo.SiteURL
	var themeURLs []string
	if a.cfg.SiteInfo != nil {
		info, err := a.cfg.SiteInfo.Fetch(ctx, a.cfg.BaseURL)
		if err != nil {
			a.cfg.Logger.Warn("uicheck: site info unavailable, auditing extra urls only", "error", err)
		} else {
			pages = append(pages, info.SiteURLs...)
			themeURLs = info.ThemeURLs
		}
	}
	return append(pages, a.cfg.ExtraURLs...), themeURLs
}

func (a *Auditor) runner(themeURLs []string) *check.Runner {
	return check.New(check.Config{
		Checks:       a.cfg.Checks,
		AllowedHosts: a.cfg.AllowedHosts,
		ThemeURLs:    themeURLs,
		Logger:       a.cfg.Logger,
	})
}

// Run audits every page of the site. When pages is empty the list comes
// from the site info endpoint plus the configured extra URLs. Page
// failures are violations; the error return is reserved for runs that
// could not proceed at all.
func (a *Auditor) Run(ctx context.Context, pages []siteinfo.SiteURL) (*report.Run, error) {
	var themeURLs []string
	if len(pages) == 0 {
		pages, themeURLs = a.discover(ctx)
	} else if a.cfg.SiteInfo != nil {
		if info, err := a.cfg.SiteInfo.Fetch(ctx, a.cfg.BaseURL); err == nil {
			themeURLs = info.ThemeURLs
		}
	}

	run := &report.Run{
		ID:        uuid.Must(uuid.NewV7()).String(),
		BaseURL:   a.cfg.BaseURL,
		StartedAt: time.Now().UnixMilli(),
	}
	if a.cfg.Store != nil {
		if err := a.cfg.Store.CreateRun(ctx, run); err != nil {
			a.cfg.Logger.Error("uicheck: store run", "run_id", run.ID, "error", err)
		}
	}
	a.cfg.Logger.Info("uicheck: run started", "run_id", run.ID, "base_url", run.BaseURL, "pages", len(pages))

	runner := a.runner(themeURLs)
	results := make([]report.PageResult, len(pages))
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	workers := min(a.cfg.Concurrency, len(pages))
	for range workers {
		g.Go(func() error {
			tab, err := a.cfg.Tabs.OpenTab(gctx)
			if err != nil {
				return fmt.Errorf("uicheck: open tab: %w", err)
			}
			defer tab.Close()
			for i := range jobs {
				results[i] = a.auditPage(gctx, tab, runner, run.ID, pages[i])
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(jobs)
		for i := range pages {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run.Results = results
	run.Pages = len(results)
	for i := range results {
		run.Violations += results[i].Errors()
	}
	run.FinishedAt = time.Now().UnixMilli()

	if a.cfg.Store != nil {
		if err := a.cfg.Store.FinishRun(ctx, run); err != nil {
			a.cfg.Logger.Error("uicheck: store run totals", "run_id", run.ID, "error", err)
		}
	}
	if err := a.cfg.Sink.SendRun(ctx, *run); err != nil {
		a.cfg.Logger.Warn("uicheck: sink run", "run_id", run.ID, "error", err)
	}
	a.cfg.Metrics.RecordRun(run)

	a.cfg.Logger.Info("uicheck: run finished",
		"run_id", run.ID, "pages", run.Pages, "violations", run.Violations,
		"duration_ms", run.FinishedAt-run.StartedAt)
	return run, nil
}

// auditPage loads one page in tab, checks it and delivers the result.
func (a *Auditor) auditPage(ctx context.Context, tab Tab, runner *check.Runner, runID string, su siteinfo.SiteURL) report.PageResult {
	start := time.Now()
	a.cfg.Metrics.PageStarted()

	res, navErr := a.checkPage(ctx, tab, runner, su)
	res.ID = uuid.Must(uuid.NewV7()).String()
	res.RunID = runID
	res.DurationMs = time.Since(start).Milliseconds()
	res.Timestamp = time.Now().UnixMilli()

	a.cfg.Metrics.RecordPage(&res, navErr, time.Since(start))
	if a.cfg.Store != nil {
		if err := a.cfg.Store.InsertPage(ctx, &res); err != nil {
			a.cfg.Logger.Error("uicheck: store page", "url", res.URL, "error", err)
		}
	}
	if err := a.cfg.Sink.SendPage(ctx, res); err != nil {
		a.cfg.Logger.Warn("uicheck: sink page", "url", res.URL, "error", err)
	}
	a.cfg.Logger.Info("uicheck: page audited",
		"url", res.URL, "status", res.Status, "errors", res.Errors(),
		"tabbable", len(res.Tabbable), "duration_ms", res.DurationMs)
	return res
}

// checkPage returns the page result and whether navigation failed.
func (a *Auditor) checkPage(ctx context.Context, tab Tab, runner *check.Runner, su siteinfo.SiteURL) (report.PageResult, bool) {
	res := report.PageResult{Subtype: su.Subtype}

	pageURL, err := su.Resolve(a.cfg.BaseURL)
	if err != nil {
		res.URL = su.String()
		res.Violations = []report.Violation{navigationViolation(res.URL, err)}
		return res, true
	}
	res.URL = pageURL

	resp, err := tab.Load(ctx, pageURL)
	if err != nil {
		a.cfg.Logger.Warn("uicheck: navigation failed", "url", pageURL, "error", err)
		res.Violations = []report.Violation{navigationViolation(pageURL, err)}
		return res, true
	}
	res.Status = resp.Status

	out := runner.Run(ctx, &check.Page{
		URL:        pageURL,
		Path:       su.String(),
		Subtype:    su.Subtype,
		Status:     resp.Status,
		Body:       resp.Body,
		HTML:       resp.HTML,
		BodyClass:  resp.BodyClass,
		PageErrors: resp.PageErrors,
		Doc:        tab.Document(),
	})
	res.Violations = out.Violations
	res.Tabbable = out.Tabbable
	res.Focusable = out.Focusable
	if res.Violations == nil {
		res.Violations = []report.Violation{}
	}
	return res, false
}

func navigationViolation(u string, err error) report.Violation {
	return report.Violation{
		Check:    report.CheckNavigation,
		Severity: report.SeverityError,
		URL:      u,
		Message:  fmt.Sprintf("could not load %s: %v", u, err),
	}
}

// resolvePage turns a user-supplied URL or path into a SiteURL under the
// base URL. The subtype is unknown, so body_class is skipped.
func (a *Auditor) resolvePage(raw string) (siteinfo.SiteURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return siteinfo.SiteURL{}, fmt.Errorf("%w: url %q: %v", ErrBadRequest, raw, err)
	}
	if u.IsAbs() {
		base, _ := url.Parse(a.cfg.BaseURL)
		if base == nil || u.Host != base.Host {
			return siteinfo.SiteURL{}, fmt.Errorf("%w: %s is outside %s", ErrBadRequest, raw, a.cfg.BaseURL)
		}
	}
	su := siteinfo.SiteURL{Path: u.EscapedPath()}
	if su.Path == "" {
		su.Path = "/"
	}
	if u.RawQuery != "" {
		su.Query = "?" + u.RawQuery
	}
	return su, nil
}

// AuditPage runs every configured check on a single page without
// recording a run.
func (a *Auditor) AuditPage(ctx context.Context, raw string) (*report.PageResult, error) {
	su, err := a.resolvePage(raw)
	if err != nil {
		return nil, err
	}
	var themeURLs []string
	if a.cfg.SiteInfo != nil {
		if info, err := a.cfg.SiteInfo.Fetch(ctx, a.cfg.BaseURL); err == nil {
			themeURLs = info.ThemeURLs
		}
	}

	tab, err := a.cfg.Tabs.OpenTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("uicheck: open tab: %w", err)
	}
	defer tab.Close()

	start := time.Now()
	res, _ := a.checkPage(ctx, tab, a.runner(themeURLs), su)
	res.DurationMs = time.Since(start).Milliseconds()
	res.Timestamp = time.Now().UnixMilli()
	return &res, nil
}

// Scan loads a page and returns its tabbable elements, or its visible
// focusable elements when focusable is true.
func (a *Auditor) Scan(ctx context.Context, raw string, focusable bool) ([]a11y.Element, error) {
	su, err := a.resolvePage(raw)
	if err != nil {
		return nil, err
	}
	pageURL, err := su.Resolve(a.cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	tab, err := a.cfg.Tabs.OpenTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("uicheck: open tab: %w", err)
	}
	defer tab.Close()

	if _, err := tab.Load(ctx, pageURL); err != nil {
		return nil, err
	}
	doc := tab.Document()
	scan := a11y.TabbableElements
	if focusable {
		scan = a11y.FocusableElements
	}
	nodes, err := scan(ctx, doc)
	if err != nil {
		return nil, err
	}
	return a11y.Describe(ctx, doc, nodes)
}

// ManagerTabs adapts a browser.Manager to TabOpener. A failed open
// recycles Chrome once and retries, which recovers from a crashed browser.
type ManagerTabs struct {
	Manager *browser.Manager
}

func (m ManagerTabs) OpenTab(ctx context.Context) (Tab, error) {
	tab, err := m.Manager.OpenTab(ctx)
	if err == nil {
		return tab, nil
	}
	if rerr := m.Manager.Recycle(ctx); rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	tab, err = m.Manager.OpenTab(ctx)
	if err != nil {
		return nil, err
	}
	return tab, nil
}
