package uicheck

import (
	"context"
	"errors"

	"github.com/hazyhaar/uicheck/a11y"
	"github.com/hazyhaar/uicheck/internal/kit"
	"github.com/hazyhaar/uicheck/internal/siteinfo"
	"github.com/hazyhaar/uicheck/uicheck/report"
)

// ErrNoStore is returned by history operations when persistence is off.
var ErrNoStore = errors.New("uicheck: persistence disabled")

// ErrBadRequest marks caller errors (bad URL, missing field).
var ErrBadRequest = errors.New("uicheck: bad request")

type auditPageRequest struct {
	URL string `json:"url"`
}

type tabbableRequest struct {
	URL       string `json:"url"`
	Focusable bool   `json:"focusable,omitempty"`
}

type tabbableResponse struct {
	URL      string         `json:"url"`
	Mode     string         `json:"mode"` // tabbable | focusable
	Count    int            `json:"count"`
	Elements []a11y.Element `json:"elements"`
}

type listRunsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type startRunRequest struct {
	URLs []string `json:"urls,omitempty"`
}

// endpoints are the operations shared by the HTTP API and MCP tools.
type endpoints struct {
	auditPage kit.Endpoint
	tabbable  kit.Endpoint
	listRuns  kit.Endpoint
	startRun  kit.Endpoint
}

func (a *Auditor) endpoints() endpoints {
	log := func(name string, e kit.Endpoint) kit.Endpoint {
		return kit.Logging(a.cfg.Logger, name)(e)
	}
	return endpoints{
		auditPage: log("audit_page", a.auditPageEndpoint),
		tabbable:  log("tabbable", a.tabbableEndpoint),
		listRuns:  log("list_runs", a.listRunsEndpoint),
		startRun:  log("start_run", a.startRunEndpoint),
	}
}

func (a *Auditor) auditPageEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*auditPageRequest)
	if r.URL == "" {
		return nil, errors.Join(ErrBadRequest, errors.New("url is required"))
	}
	return a.AuditPage(ctx, r.URL)
}

func (a *Auditor) tabbableEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*tabbableRequest)
	if r.URL == "" {
		return nil, errors.Join(ErrBadRequest, errors.New("url is required"))
	}
	els, err := a.Scan(ctx, r.URL, r.Focusable)
	if err != nil {
		return nil, err
	}
	mode := "tabbable"
	if r.Focusable {
		mode = "focusable"
	}
	if els == nil {
		els = []a11y.Element{}
	}
	return &tabbableResponse{URL: r.URL, Mode: mode, Count: len(els), Elements: els}, nil
}

func (a *Auditor) listRunsEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*listRunsRequest)
	if a.cfg.Store == nil {
		return nil, ErrNoStore
	}
	runs, err := a.cfg.Store.ListRuns(ctx, r.Limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []report.Run{}
	}
	return runs, nil
}

func (a *Auditor) startRunEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*startRunRequest)
	pages := make([]siteinfo.SiteURL, 0, len(r.URLs))
	for _, raw := range r.URLs {
		su, err := a.resolvePage(raw)
		if err != nil {
			return nil, err
		}
		pages = append(pages, su)
	}
	return a.Run(ctx, pages)
}
