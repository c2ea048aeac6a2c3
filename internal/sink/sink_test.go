package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/uicheck/uicheck/report"
)

func TestStdout(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	ctx := context.Background()

	page := report.PageResult{ID: "p1", URL: "http://localhost/", Status: 200}
	if err := s.SendPage(ctx, page); err != nil {
		t.Fatal(err)
	}
	run := report.Run{ID: "r1", Pages: 1, Results: []report.PageResult{page}}
	if err := s.SendRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &env); err != nil || env.Type != "page" {
		t.Errorf("line 0 = %q (err %v)", lines[0], err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &env); err != nil || env.Type != "run" {
		t.Errorf("line 1 = %q (err %v)", lines[1], err)
	}
	if strings.Contains(lines[1], `"results"`) {
		t.Errorf("run line should not repeat page results: %s", lines[1])
	}
	if len(run.Results) != 1 {
		t.Error("SendRun modified the caller's run")
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		lastBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := wh.SendPage(context.Background(), report.PageResult{ID: "p1"}); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if !bytes.Contains(lastBody, []byte(`"type":"page"`)) {
		t.Errorf("body = %s", lastBody)
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(2), WithWebhookBackoff(time.Millisecond))
	err := wh.SendRun(context.Background(), report.Run{ID: "r1"})
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWebhook_ClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	var event string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		event = r.Header.Get(EventHeader)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	err := wh.SendRun(context.Background(), report.Run{ID: "r1"})
	if err == nil || !strings.Contains(err.Error(), "status 422") {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if event != "run" {
		t.Errorf("%s = %q, want run", EventHeader, event)
	}
}

func TestWebhook_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Hour), WithWebhookLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := wh.SendPage(ctx, report.PageResult{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRouter_FanOutContinuesOnError(t *testing.T) {
	boom := errors.New("boom")
	var got []string
	failing := NewCallback(func(context.Context, report.PageResult) error { return boom }, nil)
	ok := NewCallback(func(_ context.Context, p report.PageResult) error {
		got = append(got, p.ID)
		return nil
	}, nil)

	r := NewRouter(nil, failing, ok)
	if err := r.SendPage(context.Background(), report.PageResult{ID: "p1"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(got) != 1 || got[0] != "p1" {
		t.Errorf("second sink got %v", got)
	}
	if err := r.SendRun(context.Background(), report.Run{ID: "r1"}); err != nil {
		t.Errorf("nil run handlers should succeed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Error(err)
	}
}
