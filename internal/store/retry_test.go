package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestIsBusy(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("database table is locked"), true},
		{errors.New("UNIQUE constraint failed"), false},
	}
	for _, c := range cases {
		if got := isBusy(c.err); got != c.want {
			t.Errorf("isBusy(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestInTx_RetriesWhileLocked(t *testing.T) {
	s := OpenMemory(t)
	calls := 0
	err := s.inTx(context.Background(), func(tx *sql.Tx) error {
		calls++
		if calls == 1 {
			return errors.New("database is locked")
		}
		_, err := tx.Exec(`INSERT INTO runs (id, base_url, started_at) VALUES ('r', 'http://x', 1)`)
		return err
	})
	if err != nil {
		t.Fatalf("inTx: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := OpenMemory(t)
	boom := errors.New("boom")
	err := s.inTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO runs (id, base_url, started_at) VALUES ('r', 'http://x', 1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("runs = %d after rollback, want 0", n)
	}
}

func TestInTx_GivesUp(t *testing.T) {
	s := OpenMemory(t)
	calls := 0
	err := s.inTx(context.Background(), func(*sql.Tx) error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || calls != busyRetries {
		t.Errorf("err = %v, calls = %d; want error after %d calls", err, calls, busyRetries)
	}
}
