package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/uicheck/uicheck/report"
)

// Webhook POSTs each page and run envelope to a URL, retrying transient
// failures with exponential backoff.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the delay before the first retry; it doubles on
// each further attempt. Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookClient sets a custom HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook sink targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) SendPage(ctx context.Context, page report.PageResult) error {
	return w.post(ctx, "page", page)
}

func (w *Webhook) SendRun(ctx context.Context, run report.Run) error {
	run.Results = nil
	return w.post(ctx, "run", run)
}

func (w *Webhook) Close() error { return nil }

// EventHeader names the envelope type so receivers can route without
// decoding the body.
const EventHeader = "X-Uicheck-Event"

// post delivers one envelope. 5xx, 429 and transport failures are retried;
// any other 4xx is final since the receiver rejected the payload itself.
func (w *Webhook) post(ctx context.Context, typ string, data any) error {
	body, err := json.Marshal(envelope{Type: typ, Data: data})
	if err != nil {
		return fmt.Errorf("webhook: marshal %s: %w", typ, err)
	}

	wait := w.backoff
	var lastErr error
	for attempt := 1; ; attempt++ {
		retry, err := w.deliver(ctx, typ, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt > w.maxRetries {
			break
		}
		w.logger.Warn("webhook: delivery failed, retrying",
			"event", typ, "attempt", attempt, "wait", wait, "error", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait *= 2
	}
	return fmt.Errorf("webhook: %s not delivered: %w", typ, lastErr)
}

// deliver makes one attempt and reports whether a failure is worth
// retrying.
func (w *Webhook) deliver(ctx context.Context, typ string, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, typ)

	resp, err := w.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}
}
