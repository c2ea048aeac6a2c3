package shield

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chain(h http.Handler) http.Handler {
	stack := Stack(nil, 8)
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}
	return h
}

func TestStack(t *testing.T) {
	var method string
	var hasLogger bool
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_, hasLogger = r.Context().Value(loggerKey).(*slog.Logger)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))

	if method != http.MethodGet {
		t.Errorf("method = %s, want GET", method)
	}
	if !hasLogger {
		t.Error("no request logger")
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Trace-ID"); len(got) != 8 {
		t.Errorf("X-Trace-ID = %q, want 8 hex chars", got)
	}
}

func TestMaxBody(t *testing.T) {
	var readErr error
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"urls":["/a","/b"]}`)))
	if readErr == nil {
		t.Error("body over the limit was read in full")
	}
}
