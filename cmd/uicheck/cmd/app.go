package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/uicheck/internal/browser"
	"github.com/hazyhaar/uicheck/internal/metrics"
	"github.com/hazyhaar/uicheck/internal/sink"
	"github.com/hazyhaar/uicheck/internal/siteinfo"
	"github.com/hazyhaar/uicheck/internal/store"
	"github.com/hazyhaar/uicheck/uicheck"
)

// errAuditFailed marks a run that completed with error-severity violations.
var errAuditFailed = errors.New("audit failed")

func exitCode(err error) int {
	if errors.Is(err, errAuditFailed) {
		return 1
	}
	return 2
}

// app holds everything one command needs. Close releases it in reverse
// order of construction.
type app struct {
	browser  *browser.Manager
	store    *store.Store
	sinks    *sink.Router
	registry *prometheus.Registry
	auditor  *uicheck.Auditor
}

type appOptions struct {
	// stdoutSink is false when stdout carries another protocol.
	stdoutSink bool
	// sinks is false for commands that print their own output.
	sinks bool
}

func newApp(ctx context.Context, opts appOptions) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	extras := make([]siteinfo.SiteURL, 0, len(cfg.Site.ExtraURLs))
	for i, parts := range cfg.Site.ExtraURLs {
		su, perr := siteinfo.Parse(parts)
		if perr != nil {
			return nil, fmt.Errorf("site.extra_urls[%d]: %w", i, perr)
		}
		extras = append(extras, su)
	}

	if cfg.Store.Path != "" {
		a.store, err = store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	var outs []sink.Sink
	if opts.sinks {
		for _, sc := range cfg.Sinks {
			switch sc.Type {
			case "stdout":
				if opts.stdoutSink {
					outs = append(outs, sink.NewStdout(os.Stdout))
				}
			case "webhook":
				outs = append(outs, sink.NewWebhook(sc.URL, sink.WithWebhookLogger(logger)))
			}
		}
	}
	a.sinks = sink.NewRouter(logger, outs...)

	a.browser = browser.NewManager(browser.Config{
		RemoteURL:         cfg.Browser.Remote,
		Headless:          cfg.Browser.IsHeadless(),
		Stealth:           cfg.Browser.Stealth,
		ResourceBlocking:  cfg.Browser.ResourceBlocking,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		Logger:            logger,
	})
	if err = a.browser.Start(ctx); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	info := siteinfo.New(
		siteinfo.WithRoute(cfg.Site.InfoRoute),
		siteinfo.WithLogger(logger),
	)
	a.auditor, err = uicheck.New(uicheck.Config{
		BaseURL:      cfg.Site.BaseURL,
		ExtraURLs:    extras,
		Checks:       cfg.CheckList(),
		AllowedHosts: cfg.Site.AllowedHosts,
		Concurrency:  cfg.Audit.Concurrency,
		Tabs:         uicheck.ManagerTabs{Manager: a.browser},
		SiteInfo:     info,
		Sink:         a.sinks,
		Store:        a.store,
		Metrics:      metrics.New(a.registry),
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			logger.Warn("close browser", "error", err)
		}
	}
	if a.sinks != nil {
		if err := a.sinks.Close(); err != nil {
			logger.Warn("close sinks", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}
}
