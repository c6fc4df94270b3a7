package repo

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(values[i]))
	}
	return nil
}

type fakeRows struct {
	pgx.Rows
	rows [][]any
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error { return assign(dest, r.rows[r.pos-1]) }
func (r *fakeRows) Err() error             { return nil }
func (r *fakeRows) Close()                 {}

// fakeDB routes queries by a substring of the SQL text.
type fakeDB struct {
	rows    map[string]fakeRow
	sets    map[string][][]any
	execs   []string
	queries []string
	tx      *fakeTx
}

func (f *fakeDB) match(sql string) string {
	f.queries = append(f.queries, sql)
	for key := range f.rows {
		if strings.Contains(sql, key) {
			return key
		}
	}
	for key := range f.sets {
		if strings.Contains(sql, key) {
			return key
		}
	}
	return ""
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	return &fakeRows{rows: f.sets[f.match(sql)]}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	key := f.match(sql)
	row, ok := f.rows[key]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return row
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if f.tx == nil {
		f.tx = &fakeTx{db: f}
	}
	return f.tx, nil
}

type fakeTx struct {
	pgx.Tx
	db         *fakeDB
	batched    int
	batchErr   error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	t.batched += b.Len()
	return &fakeBatch{err: t.batchErr}
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeBatch struct {
	pgx.BatchResults
	err error
}

func (b *fakeBatch) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, b.err }
func (b *fakeBatch) Close() error                     { return nil }
