package sink

import (
	"context"

	"github.com/hazyhaar/uicheck/uicheck/report"
)

// PageFunc is called for each audited page.
type PageFunc func(ctx context.Context, page report.PageResult) error

// RunFunc is called once per finished run.
type RunFunc func(ctx context.Context, run report.Run) error

// Callback delivers results via Go function calls, for embedders that run
// the auditor in-process.
type Callback struct {
	onPage PageFunc
	onRun  RunFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onPage PageFunc, onRun RunFunc) *Callback {
	return &Callback{onPage: onPage, onRun: onRun}
}

func (c *Callback) SendPage(ctx context.Context, page report.PageResult) error {
	if c.onPage != nil {
		return c.onPage(ctx, page)
	}
	return nil
}

func (c *Callback) SendRun(ctx context.Context, run report.Run) error {
	if c.onRun != nil {
		return c.onRun(ctx, run)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
