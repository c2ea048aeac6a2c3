package uicheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/hazyhaar/uicheck/a11y"
	"github.com/hazyhaar/uicheck/a11y/domtest"
	"github.com/hazyhaar/uicheck/internal/browser"
	"github.com/hazyhaar/uicheck/internal/metrics"
	"github.com/hazyhaar/uicheck/internal/sink"
	"github.com/hazyhaar/uicheck/internal/siteinfo"
	"github.com/hazyhaar/uicheck/internal/store"
	"github.com/hazyhaar/uicheck/uicheck/report"
)

const testBase = "http://wp.test"

type fakePage struct {
	status    int
	html      string
	body      string // defaults to html
	bodyClass string
	errs      []string
	fail      error
}

// fakeSite serves pages from memory through domtest documents.
type fakeSite struct {
	mu     sync.Mutex
	pages  map[string]fakePage
	opened int
	closed int
}

func (s *fakeSite) OpenTab(context.Context) (Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	return &fakeTab{site: s}, nil
}

type fakeTab struct {
	site *fakeSite
	doc  *domtest.Document
}

func (t *fakeTab) Load(_ context.Context, pageURL string) (*browser.Response, error) {
	t.site.mu.Lock()
	p, ok := t.site.pages[pageURL]
	t.site.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", pageURL)
	}
	if p.fail != nil {
		return nil, p.fail
	}
	doc, err := domtest.New(p.html, domtest.WithBaseURL(pageURL))
	if err != nil {
		return nil, err
	}
	t.doc = doc
	body := p.body
	if body == "" {
		body = p.html
	}
	return &browser.Response{
		URL:        pageURL,
		Status:     p.status,
		Body:       body,
		HTML:       p.html,
		BodyClass:  p.bodyClass,
		PageErrors: p.errs,
	}, nil
}

func (t *fakeTab) Document() a11y.Document { return t.doc }

func (t *fakeTab) Close() error {
	t.site.mu.Lock()
	defer t.site.mu.Unlock()
	t.site.closed++
	return nil
}

type fakeInfo struct {
	info *siteinfo.Info
	err  error
}

func (f fakeInfo) Fetch(context.Context, string) (*siteinfo.Info, error) {
	return f.info, f.err
}

const homeHTML = `<html><body class="home blog">
<nav><ul id="menu" data-rect="20 10 600 40">
	<li><a href="/about/">About</a>
		<ul style="display:none"><li><a href="/about/team/">Team</a></li></ul>
	</li>
</ul></nav>
<a href="https://wordpress.org/">Proudly powered by WordPress</a>
<a href="https://theme.example.io/">Theme</a>
</body></html>
`

const postHTML = `<html><body class="single post postid-1">
<b>Warning</b>: Undefined variable $title in <b>/var/www/themes/t/single.php</b> on line <b>12</b>
<a href="https://spam.test/pills">buy</a>
</body></html>
`

const feedBody = `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>wp</title></channel></rss>
`

func newSite() *fakeSite {
	return &fakeSite{pages: map[string]fakePage{
		testBase + "/":           {status: 200, html: homeHTML, bodyClass: "home blog"},
		testBase + "/?p=1":       {status: 200, html: postHTML, bodyClass: "single post postid-1"},
		testBase + "/?feed=rss2": {status: 200, html: "<html><body></body></html>", body: feedBody},
		testBase + "/broken/":    {fail: errors.New("net::ERR_CONNECTION_RESET")},
	}}
}

func siteInfo() fakeInfo {
	return fakeInfo{info: &siteinfo.Info{
		Theme:     siteinfo.Theme{Name: "Twenty Test"},
		ThemeURLs: []string{"https://theme.example.io/"},
		SiteURLs: []siteinfo.SiteURL{
			{Path: "/", Subtype: "home"},
			{Path: "/", Query: "?p=1", Subtype: "post"},
			{Path: "/broken/", Subtype: "page"},
		},
	}}
}

type captured struct {
	mu    sync.Mutex
	pages []report.PageResult
	runs  []report.Run
}

func (c *captured) sink() sink.Sink {
	return sink.NewCallback(
		func(_ context.Context, p report.PageResult) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.pages = append(c.pages, p)
			return nil
		},
		func(_ context.Context, r report.Run) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.runs = append(c.runs, r)
			return nil
		},
	)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testAuditor wires an Auditor to the fake site, an in-memory store and a
// private metrics registry.
func testAuditor(t *testing.T, opts ...func(*Config)) (*Auditor, *fakeSite, *captured) {
	t.Helper()
	site := newSite()
	c := &captured{}
	cfg := Config{
		BaseURL:     testBase,
		ExtraURLs:   []siteinfo.SiteURL{{Path: "/", Query: "?feed=rss2"}},
		Concurrency: 2,
		Tabs:        site,
		SiteInfo:    siteInfo(),
		Sink:        c.sink(),
		Store:       store.OpenMemory(t),
		Metrics:     metrics.New(nil),
		Logger:      quietLogger(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return a, site, c
}
