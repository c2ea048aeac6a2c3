package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/uicheck/uicheck/report"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) SendPage(_ context.Context, page report.PageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "page", Data: page})
}

// SendRun writes the summary without the per-page results already
// emitted by SendPage.
func (s *Stdout) SendRun(_ context.Context, run report.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Results = nil
	return s.enc.Encode(envelope{Type: "run", Data: run})
}

func (s *Stdout) Close() error { return nil }
