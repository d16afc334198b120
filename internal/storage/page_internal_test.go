package storage

import (
	"errors"
	"testing"
)

type rowsResult struct {
	n   int64
	err error
}

func (r rowsResult) LastInsertId() (int64, error) { return 0, nil }
func (r rowsResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestRequireRow(t *testing.T) {
	errDriver := errors.New("driver cannot count rows")

	if err := requireRow(rowsResult{n: 1}, "rename page", "p1"); err != nil {
		t.Errorf("one row: unexpected error %v", err)
	}
	if err := requireRow(rowsResult{n: 0}, "rename page", "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("no rows: expected ErrNotFound, got %v", err)
	}
	if err := requireRow(rowsResult{err: errDriver}, "rename page", "p1"); !errors.Is(err, errDriver) {
		t.Errorf("rows affected failure: expected wrapped driver error, got %v", err)
	}
}
