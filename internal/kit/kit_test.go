package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Fatalf("order: got %v, want %v", order, expected)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	errFail := errors.New("fail")

	ok := Logging(logger, "scan")(func(context.Context, any) (any, error) { return 1, nil })
	bad := Logging(logger, "scan")(func(context.Context, any) (any, error) { return nil, errFail })

	if _, err := ok(WithTransport(context.Background(), "mcp"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := bad(context.Background(), nil); !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}

	out := buf.String()
	if !strings.Contains(out, `"transport":"mcp"`) || !strings.Contains(out, `"transport":"http"`) {
		t.Errorf("transport not logged:\n%s", out)
	}
	if !strings.Contains(out, `"error":"fail"`) {
		t.Errorf("error not logged:\n%s", out)
	}
}

func TestGetTransport_Default(t *testing.T) {
	if got := GetTransport(context.Background()); got != "http" {
		t.Errorf("GetTransport = %q, want http", got)
	}
}
