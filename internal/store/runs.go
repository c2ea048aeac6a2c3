package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/uicheck/a11y"
	"github.com/hazyhaar/uicheck/uicheck/report"
)

// CreateRun inserts a run that has just started.
func (s *Store) CreateRun(ctx context.Context, r *report.Run) error {
	if r.StartedAt == 0 {
		r.StartedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO runs (id, base_url, started_at, finished_at, pages, violations)
		VALUES (?,?,?,?,?,?)`,
		r.ID, r.BaseURL, r.StartedAt, r.FinishedAt, r.Pages, r.Violations,
	)
	return err
}

// FinishRun records the totals of a completed run.
func (s *Store) FinishRun(ctx context.Context, r *report.Run) error {
	if r.FinishedAt == 0 {
		r.FinishedAt = time.Now().UnixMilli()
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, pages = ?, violations = ? WHERE id = ?`,
		r.FinishedAt, r.Pages, r.Violations, r.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: finish run %s: not found", r.ID)
	}
	return nil
}

// InsertPage stores a page result and its violations atomically.
func (s *Store) InsertPage(ctx context.Context, p *report.PageResult) error {
	tabbable, err := json.Marshal(nonNil(p.Tabbable))
	if err != nil {
		return fmt.Errorf("store: marshal tabbable: %w", err)
	}
	focusable, err := json.Marshal(nonNil(p.Focusable))
	if err != nil {
		return fmt.Errorf("store: marshal focusable: %w", err)
	}
	if p.Timestamp == 0 {
		p.Timestamp = time.Now().UnixMilli()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO page_results
				(id, run_id, url, subtype, status, tabbable, focusable, duration_ms, created_at)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			p.ID, p.RunID, p.URL, p.Subtype, p.Status, string(tabbable), string(focusable),
			p.DurationMs, p.Timestamp,
		)
		if err != nil {
			return err
		}
		for _, v := range p.Violations {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO violations (run_id, page_id, url, check_name, severity, message)
				VALUES (?,?,?,?,?,?)`,
				p.RunID, p.ID, v.URL, string(v.Check), string(v.Severity), v.Message,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func nonNil(e []a11y.Element) []a11y.Element {
	if e == nil {
		return []a11y.Element{}
	}
	return e
}

// GetRun retrieves a run with its page results and their violations.
// Returns nil, nil when the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*report.Run, error) {
	r := &report.Run{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, base_url, started_at, finished_at, pages, violations
		FROM runs WHERE id = ?`, id).Scan(
		&r.ID, &r.BaseURL, &r.StartedAt, &r.FinishedAt, &r.Pages, &r.Violations,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Results, err = s.pages(ctx, id)
	if err != nil {
		return nil, err
	}
	vs, err := s.ListViolations(ctx, id)
	if err != nil {
		return nil, err
	}
	byPage := make(map[string][]report.Violation)
	for _, v := range vs {
		byPage[v.PageID] = append(byPage[v.PageID], v.Violation)
	}
	for i := range r.Results {
		r.Results[i].Violations = byPage[r.Results[i].ID]
	}
	return r, nil
}

func (s *Store) pages(ctx context.Context, runID string) ([]report.PageResult, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, run_id, url, subtype, status, tabbable, focusable, duration_ms, created_at
		FROM page_results WHERE run_id = ? ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.PageResult
	for rows.Next() {
		var p report.PageResult
		var tabbable, focusable string
		if err := rows.Scan(&p.ID, &p.RunID, &p.URL, &p.Subtype, &p.Status,
			&tabbable, &focusable, &p.DurationMs, &p.Timestamp); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(tabbable), &p.Tabbable)
		json.Unmarshal([]byte(focusable), &p.Focusable)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRuns returns the most recent runs first, without page results.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]report.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, base_url, started_at, finished_at, pages, violations
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.Run
	for rows.Next() {
		var r report.Run
		if err := rows.Scan(&r.ID, &r.BaseURL, &r.StartedAt, &r.FinishedAt, &r.Pages, &r.Violations); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StoredViolation is a violation with the page it was found on.
type StoredViolation struct {
	report.Violation
	PageID string `json:"page_id"`
}

// ListViolations returns every violation of a run in insertion order.
func (s *Store) ListViolations(ctx context.Context, runID string) ([]StoredViolation, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT page_id, url, check_name, severity, message
		FROM violations WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredViolation
	for rows.Next() {
		var v StoredViolation
		var check, sev string
		if err := rows.Scan(&v.PageID, &v.URL, &check, &sev, &v.Message); err != nil {
			return nil, err
		}
		v.Check, v.Severity = report.Check(check), report.Severity(sev)
		out = append(out, v)
	}
	return out, rows.Err()
}
