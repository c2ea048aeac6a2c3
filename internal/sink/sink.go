// Package sink defines output backends for audit results.
package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/uicheck/uicheck/report"
)

// Sink delivers audit results. A page result is sent as soon as the page
// is audited; the run summary is sent once all pages are done.
type Sink interface {
	SendPage(ctx context.Context, page report.PageResult) error
	SendRun(ctx context.Context, run report.Run) error
	Close() error
}

// envelope tags each JSON document with its kind.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Router fans out results to all configured sinks. One sink error does
// not block the others; errors are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) SendPage(ctx context.Context, page report.PageResult) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendPage(ctx, page); err != nil {
			r.logger.Warn("sink: send page failed", "url", page.URL, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendRun(ctx context.Context, run report.Run) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendRun(ctx, run); err != nil {
			r.logger.Warn("sink: send run failed", "run_id", run.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
