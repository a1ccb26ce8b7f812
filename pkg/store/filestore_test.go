package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decisiontrace/core/pkg/record"
)

func tempStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "logs", "decision_log.jsonl"))
	require.NoError(t, err)
	return s
}

func rec(id, prev, hash string) *record.DecisionRecord {
	return &record.DecisionRecord{
		DecisionID: id,
		Timestamp:  "2026-02-10T12:00:00Z",
		Model:      "m1",
		Config:     map[string]any{},
		Prompt:     "p",
		Output:     "o",
		RiskFlags:  []string{},
		PrevHash:   prev,
		Hash:       hash,
	}
}

func TestFileStoreEmptyTail(t *testing.T) {
	s := tempStore(t)
	tail, err := s.Tail(context.Background())
	require.NoError(t, err)
	assert.Nil(t, tail)
}

func TestFileStoreAppendAndScan(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)

	require.NoError(t, s.Append(ctx, rec("a", "s0", "h1")))
	require.NoError(t, s.Append(ctx, rec("b", "h1", "h2")))

	var ids []string
	var positions []int
	err := s.Scan(ctx, func(pos int, r *record.DecisionRecord) (bool, error) {
		positions = append(positions, pos)
		ids = append(ids, r.DecisionID)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, positions)
	assert.Equal(t, []string{"a", "b"}, ids)

	tail, err := s.Tail(ctx)
	require.NoError(t, err)
	require.NotNil(t, tail)
	assert.Equal(t, "b", tail.DecisionID)
}

func TestFileStoreScanEarlyStop(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)
	require.NoError(t, s.Append(ctx, rec("a", "s0", "h1")))
	require.NoError(t, s.Append(ctx, rec("b", "h1", "h2")))

	seen := 0
	err := s.Scan(ctx, func(pos int, r *record.DecisionRecord) (bool, error) {
		seen++
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestFileStoreToleratesTornTrailingLine(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)
	require.NoError(t, s.Append(ctx, rec("a", "s0", "h1")))

	// Simulate a reader racing an in-progress append: a half-written line.
	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"decision_id":"torn","mo`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tail, err := s.Tail(ctx)
	require.NoError(t, err)
	require.NotNil(t, tail)
	assert.Equal(t, "a", tail.DecisionID)
}

func TestFileStoreInteriorCorruptionIsError(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)
	require.NoError(t, s.Append(ctx, rec("a", "s0", "h1")))

	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("not json at all\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, s.Append(ctx, rec("b", "h1", "h2")))

	err = s.Scan(ctx, func(int, *record.DecisionRecord) (bool, error) { return true, nil })
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "parse", se.Op)
}

func TestFileStoreLockContention(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "log.jsonl")
	s, err := NewFileStore(path, WithLockTimeout(50*time.Millisecond))
	require.NoError(t, err)

	// A fresh lock held by another writer blocks the append until timeout.
	require.NoError(t, os.WriteFile(path+".lock", []byte("123\n"), 0644))
	err = s.Append(ctx, rec("a", "s0", "h1"))
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "lock", se.Op)
}

func TestFileStoreStaleLockTakeover(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "log.jsonl")
	s, err := NewFileStore(path, WithLockTimeout(time.Second))
	require.NoError(t, err)

	lockPath := path + ".lock"
	require.NoError(t, os.WriteFile(lockPath, []byte("123\n"), 0644))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	require.NoError(t, s.Append(ctx, rec("a", "s0", "h1")))
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err), "lock should be released after append")
}

func TestFileStoreMissingParentDirCreated(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "log.jsonl")
	s, err := NewFileStore(nested)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), rec("a", "s0", "h1")))
}
