// Package replay reconstructs a single decision record by identifier for
// auditor inspection.
package replay

import (
	"context"
	"fmt"

	"github.com/decisiontrace/core/pkg/canonicalize"
	"github.com/decisiontrace/core/pkg/record"
	"github.com/decisiontrace/core/pkg/store"
)

// NotFoundError reports an identifier absent from the store. It signals "no
// such record", not corruption.
type NotFoundError struct {
	DecisionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("decision %q not found", e.DecisionID)
}

// Integrity is the advisory single-record check run during replay. It is
// reported alongside the record, never a precondition for returning it;
// whole-chain verification is the verifier's job.
type Integrity struct {
	HashOK bool   `json:"hash_ok"`
	LinkOK bool   `json:"link_ok"`
	Detail string `json:"detail,omitempty"`
}

// Result is a replayed record plus its integrity note.
type Result struct {
	Position  int                    `json:"position"`
	Record    *record.DecisionRecord `json:"record"`
	Integrity Integrity              `json:"integrity"`
}

// Replay scans s for the record with the given decision id and returns it in
// full, or *NotFoundError if no such identifier exists. The scan stops at
// the match; it does not read past it.
func Replay(ctx context.Context, s store.Store, decisionID string) (*Result, error) {
	var res *Result

	prev := canonicalize.Sentinel
	err := s.Scan(ctx, func(pos int, r *record.DecisionRecord) (bool, error) {
		if r.DecisionID != decisionID {
			prev = r.Hash
			return true, nil
		}
		res = &Result{
			Position:  pos,
			Record:    r,
			Integrity: checkIntegrity(r, prev),
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &NotFoundError{DecisionID: decisionID}
	}
	return res, nil
}

func checkIntegrity(r *record.DecisionRecord, prev string) Integrity {
	in := Integrity{HashOK: true, LinkOK: true}

	computed, err := canonicalize.HashRecord(r)
	if err != nil {
		in.HashOK = false
		in.Detail = err.Error()
		return in
	}
	if computed != r.Hash {
		in.HashOK = false
		in.Detail = fmt.Sprintf("stored hash %s, recomputed %s", r.Hash, computed)
	}
	if r.PrevHash != prev {
		in.LinkOK = false
		if in.Detail != "" {
			in.Detail += "; "
		}
		in.Detail += fmt.Sprintf("prev_hash %s does not match predecessor %s", r.PrevHash, prev)
	}
	return in
}
