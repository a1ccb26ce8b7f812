// Package chain builds and appends hash-chained decision records.
package chain

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/decisiontrace/core/pkg/canonicalize"
	"github.com/decisiontrace/core/pkg/record"
	"github.com/decisiontrace/core/pkg/store"
)

// Builder appends decision records to a log store.
//
// The read-tail, hash, append sequence is one critical section: two appends
// computing prev_hash from the same stale tail would fork the chain. Within
// a process the mutex serializes appends; across processes the file store's
// advisory lock does.
type Builder struct {
	mu     sync.Mutex
	store  store.Store
	clock  func() time.Time
	newID  func() string
	tracer trace.Tracer
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the timestamp source for testing.
func WithClock(clock func() time.Time) Option {
	return func(b *Builder) { b.clock = clock }
}

// WithIDFunc overrides decision id generation for testing.
func WithIDFunc(newID func() string) Option {
	return func(b *Builder) { b.newID = newID }
}

// New creates a Builder over s.
func New(s store.Store, opts ...Option) *Builder {
	b := &Builder{
		store:  s,
		clock:  time.Now,
		newID:  func() string { return uuid.New().String() },
		tracer: otel.Tracer("github.com/decisiontrace/core/pkg/chain"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append validates cand, derives the chained fields, and durably writes the
// finished record. Validation failures perform no I/O. Either the record is
// fully persisted or nothing is.
func (b *Builder) Append(ctx context.Context, cand record.Candidate) (*record.DecisionRecord, error) {
	norm, err := record.Validate(cand)
	if err != nil {
		return nil, err
	}

	ctx, span := b.tracer.Start(ctx, "chain.append")
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	prev := canonicalize.Sentinel
	tail, err := b.store.Tail(ctx)
	if err != nil {
		return nil, err
	}
	if tail != nil {
		prev = tail.Hash
	}

	r := &record.DecisionRecord{
		DecisionID:     b.newID(),
		Timestamp:      record.FormatTimestamp(b.clock()),
		Model:          norm.Model,
		Config:         norm.Config,
		Prompt:         norm.Prompt,
		ContextSources: norm.ContextSources,
		Output:         norm.Output,
		Confidence:     norm.Confidence,
		RiskFlags:      norm.RiskFlags,
		PrevHash:       prev,
	}
	r.Hash, err = canonicalize.HashRecord(r)
	if err != nil {
		return nil, err
	}

	if err := b.store.Append(ctx, r); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("decision.id", r.DecisionID),
		attribute.String("decision.hash", r.Hash),
	)
	return r, nil
}

// Head returns the hash of the current tail record, or the sentinel for an
// empty log.
func (b *Builder) Head(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tail, err := b.store.Tail(ctx)
	if err != nil {
		return "", err
	}
	if tail == nil {
		return canonicalize.Sentinel, nil
	}
	return tail.Hash, nil
}
