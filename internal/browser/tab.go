package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/uicheck/a11y"
	"github.com/hazyhaar/uicheck/a11y/rodom"
)

// Response is what a page load produced, captured before any check runs.
type Response struct {
	URL        string
	Status     int
	Body       string // raw main document body as served
	HTML       string // serialized DOM after scripts ran
	BodyClass  string
	PageErrors []string // uncaught exceptions thrown during load
}

// Tab is one browser tab used for a sequence of page loads. A Tab is not
// safe for concurrent use; the auditor gives each worker its own.
type Tab struct {
	Page *rod.Page
	doc  *rodom.Document
	mgr  *Manager

	cancel context.CancelFunc

	mu         sync.Mutex
	pageErrors []string
}

// OpenTab creates a new tab with stealth and resource blocking applied.
func (m *Manager) OpenTab(ctx context.Context) (*Tab, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var (
		page *rod.Page
		err  error
	)
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, m.cfg.ResourceBlocking); err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: enable network: %w", err)
	}

	tabCtx, cancel := context.WithCancel(ctx)
	t := &Tab{
		Page:   page,
		doc:    rodom.New(tabCtx, page),
		mgr:    m,
		cancel: cancel,
	}

	go page.Context(tabCtx).EachEvent(func(e *proto.RuntimeExceptionThrown) {
		t.mu.Lock()
		t.pageErrors = append(t.pageErrors, exceptionText(e))
		t.mu.Unlock()
	})()

	return t, nil
}

// Document returns the live DOM of the tab's current page.
func (t *Tab) Document() a11y.Document {
	return t.doc
}

// Load navigates to pageURL and waits for the load event. Every node
// obtained from Document before the call is stale afterwards.
func (t *Tab) Load(ctx context.Context, pageURL string) (*Response, error) {
	navCtx, cancel := context.WithTimeout(ctx, t.mgr.cfg.NavigationTimeout)
	defer cancel()

	t.mu.Lock()
	t.pageErrors = nil
	t.mu.Unlock()
	t.doc.Invalidate()

	var main *proto.NetworkResponseReceived
	waitResponse := t.Page.Context(navCtx).EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument && e.FrameID == t.Page.FrameID {
			main = e
			return true
		}
		return false
	})

	if err := t.Page.Context(navCtx).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	waitResponse()
	if main == nil {
		return nil, fmt.Errorf("browser: navigate %s: no document response: %w", pageURL, navCtx.Err())
	}
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		t.mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	resp := &Response{URL: pageURL, Status: main.Response.Status}

	body, err := proto.NetworkGetResponseBody{RequestID: main.RequestID}.Call(t.Page.Context(navCtx))
	if err != nil {
		t.mgr.cfg.Logger.Warn("browser: response body unavailable", "url", pageURL, "error", err)
	} else if body.Base64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body.Body)
		if err != nil {
			return nil, fmt.Errorf("browser: decode body: %w", err)
		}
		resp.Body = string(raw)
	} else {
		resp.Body = body.Body
	}

	page := t.Page.Context(navCtx)
	if res, err := page.Eval(`() => document.documentElement ? document.documentElement.outerHTML : ''`); err == nil {
		resp.HTML = res.Value.Str()
	} else {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	if res, err := page.Eval(`() => document.body ? document.body.className : ''`); err == nil {
		resp.BodyClass = res.Value.Str()
	}

	t.mu.Lock()
	resp.PageErrors = append([]string(nil), t.pageErrors...)
	t.mu.Unlock()

	return resp, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	t.cancel()
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

func exceptionText(e *proto.RuntimeExceptionThrown) string {
	d := e.ExceptionDetails
	if d == nil {
		return "unknown exception"
	}
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Exception.Description
	}
	return d.Text
}
