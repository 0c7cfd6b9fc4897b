package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"judgeflow/internal/common/db"
)

type fakeResult struct{ affected int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

// fakeRow scans a fixed list of values into pointer destinations.
type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: want %d values, got %d", len(dest), len(r.values))
	}
	for i, d := range dest {
		if err := assign(d, r.values[i]); err != nil {
			return err
		}
	}
	return nil
}

func assign(dest, value interface{}) error {
	switch d := dest.(type) {
	case *int:
		*d = value.(int)
	case *int8:
		*d = value.(int8)
	case *int64:
		*d = value.(int64)
	case *string:
		*d = value.(string)
	case **string:
		if value == nil {
			*d = nil
		} else {
			s := value.(string)
			*d = &s
		}
	case *time.Time:
		*d = value.(time.Time)
	case **time.Time:
		if value == nil {
			*d = nil
		} else {
			t := value.(time.Time)
			*d = &t
		}
	default:
		return fmt.Errorf("unsupported scan destination %T", dest)
	}
	return nil
}

var errNoRows = fmt.Errorf("scan failed: %w", sql.ErrNoRows)

type fakeRows struct {
	rows [][]interface{}
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}
func (r *fakeRows) Scan(dest ...interface{}) error { return fakeRow{values: r.rows[r.idx-1]}.Scan(dest...) }
func (r *fakeRows) Close() error                    { return nil }
func (r *fakeRows) Err() error                      { return nil }

type execCall struct {
	query string
	args  []interface{}
	inTx  bool
}

// fakeDB answers statements through handler funcs and records every Exec.
type fakeDB struct {
	mu       sync.Mutex
	execs    []execCall
	onExec   func(query string, args []interface{}) (db.Result, error)
	onRow    func(query string, args []interface{}) db.Row
	onQuery  func(query string, args []interface{}) (db.Rows, error)
	commits  int
	rollback int
}

func (f *fakeDB) record(query string, args []interface{}, inTx bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, execCall{query: strings.TrimSpace(query), args: args, inTx: inTx})
}

func (f *fakeDB) exec(query string, args []interface{}, inTx bool) (db.Result, error) {
	f.record(query, args, inTx)
	if f.onExec == nil {
		return fakeResult{affected: 1}, nil
	}
	return f.onExec(query, args)
}

func (f *fakeDB) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	if f.onQuery == nil {
		return &fakeRows{}, nil
	}
	return f.onQuery(query, args)
}

func (f *fakeDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	if f.onRow == nil {
		return fakeRow{err: errNoRows}
	}
	return f.onRow(query, args)
}

func (f *fakeDB) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return f.exec(query, args, false)
}

func (f *fakeDB) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	if err := fn(&fakeTx{db: f}); err != nil {
		f.rollback++
		return err
	}
	f.commits++
	return nil
}

func (f *fakeDB) Ping(ctx context.Context) error { return nil }
func (f *fakeDB) Close() error                   { return nil }

type fakeTx struct{ db *fakeDB }

func (t *fakeTx) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return t.db.Query(ctx, query, args...)
}
func (t *fakeTx) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return t.db.QueryRow(ctx, query, args...)
}
func (t *fakeTx) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return t.db.exec(query, args, true)
}
func (t *fakeTx) Commit() error   { return nil }
func (t *fakeTx) Rollback() error { return nil }
