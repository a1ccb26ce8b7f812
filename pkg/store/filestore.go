package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/decisiontrace/core/pkg/record"
)

const (
	// maxLine bounds a single serialized record on read.
	maxLine = 16 * 1024 * 1024

	defaultLockTimeout = 5 * time.Second
	defaultLockStale   = 30 * time.Second
)

// FileStore is the JSONL log store. Appends are serialized across processes
// by an advisory sidecar lock file; readers never take the lock.
type FileStore struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	lockStale   time.Duration
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithLockTimeout bounds how long an append waits for the sidecar lock.
func WithLockTimeout(d time.Duration) FileOption {
	return func(s *FileStore) { s.lockTimeout = d }
}

// NewFileStore opens (or prepares to create) the JSONL log at path.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: defaultLockTimeout,
		lockStale:   defaultLockStale,
	}
	for _, opt := range opts {
		opt(s)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, storageErr("mkdir", dir, err)
		}
	}
	return s, nil
}

// Path returns the log file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Tail(ctx context.Context) (*record.DecisionRecord, error) {
	var tail *record.DecisionRecord
	err := s.Scan(ctx, func(_ int, r *record.DecisionRecord) (bool, error) {
		tail = r
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return tail, nil
}

// Scan reads the log sequentially. An unparsable trailing line is treated as
// not yet written (a reader may race an in-progress append); an unparsable
// line anywhere else is a StorageError, never silently skipped.
func (s *FileStore) Scan(ctx context.Context, fn func(pos int, r *record.DecisionRecord) (bool, error)) error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return storageErr("open", s.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	pos := 0
	pendingBad := -1 // line number of a parse failure awaiting torn-line judgment
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return storageErr("scan", s.path, err)
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if pendingBad >= 0 {
			// A later line exists, so the bad line was not a torn tail.
			return storageErr("parse", s.path, fmt.Errorf("record %d is not valid JSON", pendingBad))
		}
		var r record.DecisionRecord
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			pendingBad = pos + 1
			continue
		}
		pos++
		cont, err := fn(pos, &r)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return storageErr("read", s.path, err)
	}
	return nil
}

func (s *FileStore) Append(ctx context.Context, r *record.DecisionRecord) error {
	line, err := json.Marshal(r)
	if err != nil {
		return storageErr("encode", s.path, err)
	}

	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return storageErr("open", s.path, err)
	}
	// One write call for the full line keeps a crashed append observable
	// only as a torn trailing line, which readers discard.
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return storageErr("write", s.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return storageErr("sync", s.path, err)
	}
	if err := f.Close(); err != nil {
		return storageErr("close", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// acquireLock takes the advisory cross-process append lock. Locks older than
// lockStale are assumed abandoned by a crashed writer and taken over.
func (s *FileStore) acquireLock(ctx context.Context) (func(), error) {
	deadline := time.Now().Add(s.lockTimeout)
	for {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { _ = os.Remove(s.lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, storageErr("lock", s.lockPath, err)
		}
		if info, statErr := os.Stat(s.lockPath); statErr == nil && time.Since(info.ModTime()) > s.lockStale {
			_ = os.Remove(s.lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return nil, storageErr("lock", s.lockPath, fmt.Errorf("timeout after %s: held by another writer", s.lockTimeout))
		}
		select {
		case <-ctx.Done():
			return nil, storageErr("lock", s.lockPath, ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
