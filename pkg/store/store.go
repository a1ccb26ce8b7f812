// Package store implements the append-only decision log stores.
//
// The published interchange format is a JSONL file: one fully serialized
// decision record per line, UTF-8, newline-terminated, appended in strict
// chronological order, read only by sequential scan. A SQLite-backed store
// offers the same contract for embedders that prefer a database file.
package store

import (
	"context"
	"fmt"

	"github.com/decisiontrace/core/pkg/record"
)

// Store is an ordered, append-only sequence of decision records.
//
// Stores never mutate or delete records. Append must be durable: either the
// record is fully persisted or nothing is. Readers may run concurrently with
// a writer; an in-progress append is observed as "not yet written".
type Store interface {
	// Tail returns the last record in the store, or (nil, nil) when empty.
	Tail(ctx context.Context) (*record.DecisionRecord, error)

	// Append durably adds one record to the end of the store.
	Append(ctx context.Context, r *record.DecisionRecord) error

	// Scan visits records in append order with 1-based positions. The
	// callback returns false to stop early.
	Scan(ctx context.Context, fn func(pos int, r *record.DecisionRecord) (bool, error)) error

	Close() error
}

// StorageError reports a failure to open, read, or write the log store.
// The core never retries; retry policy belongs to the caller.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op, path string, err error) *StorageError {
	return &StorageError{Op: op, Path: path, Err: err}
}
