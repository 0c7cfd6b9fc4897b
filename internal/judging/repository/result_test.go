package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"judgeflow/internal/common/db"
	"judgeflow/internal/judging/model"
)

func TestResultApply(t *testing.T) {
	update := model.ResultUpdate{
		ResultID:       "r-1",
		Verdict:        model.VerdictPassed,
		ExecutionToken: "tok",
		UpdatedAt:      time.Now(),
	}

	cases := []struct {
		name     string
		affected int64
		probe    db.Row
		wantErr  error
	}{
		{name: "row updated", affected: 1},
		{name: "replay changes nothing", affected: 0, probe: fakeRow{values: []interface{}{1}}},
		{name: "unknown id", affected: 0, probe: fakeRow{err: errNoRows}, wantErr: ErrResultNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeDB{
				onExec: func(string, []interface{}) (db.Result, error) { return fakeResult{affected: tc.affected}, nil },
				onRow:  func(string, []interface{}) db.Row { return tc.probe },
			}
			err := NewResultRepository(fake).Apply(context.Background(), update)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Apply() error = %v, want %v", err, tc.wantErr)
			}
			if len(fake.execs) != 1 || !strings.HasPrefix(fake.execs[0].query, "UPDATE test_case_results") {
				t.Fatalf("expected a single update, got %+v", fake.execs)
			}
			if !strings.Contains(fake.execs[0].query, "WHERE id = ?") || strings.Contains(fake.execs[0].query, "verdict = -1") {
				t.Fatalf("update must be unconditional on verdict: %s", fake.execs[0].query)
			}
		})
	}
}

func TestResultApplyRejectsPending(t *testing.T) {
	fake := &fakeDB{}
	err := NewResultRepository(fake).Apply(context.Background(), model.ResultUpdate{ResultID: "r", Verdict: model.VerdictPending})
	if err == nil {
		t.Fatalf("pending verdict must be rejected")
	}
	if len(fake.execs) != 0 {
		t.Fatalf("nothing should be written")
	}
}

func TestResultCreateBatch(t *testing.T) {
	fake := &fakeDB{}
	now := time.Now()
	results := []model.TestCaseResult{
		{ID: "a", SubmissionID: "s", Ordinal: 0, Verdict: model.VerdictPending, UpdatedAt: now},
		{ID: "b", SubmissionID: "s", Ordinal: 1, Verdict: model.VerdictPending, UpdatedAt: now},
	}
	var tx db.Transaction
	if err := fake.Transaction(context.Background(), func(t2 db.Transaction) error {
		tx = t2
		return NewResultRepository(fake).CreateBatch(context.Background(), tx, results)
	}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if len(fake.execs) != 1 || !fake.execs[0].inTx {
		t.Fatalf("expected one statement inside the transaction: %+v", fake.execs)
	}
	if got := strings.Count(fake.execs[0].query, "(?, ?, ?, ?, ?)"); got != 2 {
		t.Fatalf("expected 2 value groups, got %d", got)
	}
	if len(fake.execs[0].args) != 10 || fake.execs[0].args[3] != int8(-1) {
		t.Fatalf("unexpected args %v", fake.execs[0].args)
	}
}

func TestResultListBySubmission(t *testing.T) {
	out := "0 1"
	fake := &fakeDB{
		onQuery: func(string, []interface{}) (db.Rows, error) {
			return &fakeRows{rows: [][]interface{}{
				{"a", "s", 0, int8(1), "tok", out, nil, time.Now()},
				{"b", "s", 1, int8(-1), nil, nil, nil, time.Now()},
			}}, nil
		},
	}
	results, err := NewResultRepository(fake).ListBySubmission(context.Background(), "s")
	if err != nil {
		t.Fatalf("ListBySubmission: %v", err)
	}
	if len(results) != 2 || results[0].Verdict != model.VerdictPassed || results[1].Verdict != model.VerdictPending {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].Stdout == nil || *results[0].Stdout != out || results[1].ExecutionToken != nil {
		t.Fatalf("nullable columns not mapped: %+v", results)
	}
}
