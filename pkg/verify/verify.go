// Package verify re-derives every record hash and checks chain linkage
// across a whole decision log.
//
// Verification is a full linear scan. There is no shortcut: single-record
// corruption is only caught by recomputing that record's hash, and
// reordering or deletion is only caught by checking linkage.
package verify

import (
	"context"
	"fmt"

	"github.com/decisiontrace/core/pkg/canonicalize"
	"github.com/decisiontrace/core/pkg/record"
	"github.com/decisiontrace/core/pkg/store"
)

// ContentTamperedError reports a record whose recomputed hash does not match
// its stored hash.
type ContentTamperedError struct {
	Position   int
	DecisionID string
	Stored     string
	Computed   string
}

func (e *ContentTamperedError) Error() string {
	return fmt.Sprintf("record %d (%s) content tampered: stored hash %s, recomputed %s",
		e.Position, e.DecisionID, e.Stored, e.Computed)
}

// ChainBrokenError reports a record whose prev_hash does not match the
// predecessor's hash. Covers reordering, deletion, and foreign insertion.
type ChainBrokenError struct {
	Position   int
	DecisionID string
	Expected   string
	Got        string
}

func (e *ChainBrokenError) Error() string {
	return fmt.Sprintf("record %d (%s) chain broken: prev_hash %s, expected %s",
		e.Position, e.DecisionID, e.Got, e.Expected)
}

// Report is the outcome of verifying a log.
//
// On failure, Count holds the number of records that verified before the
// break; records before the break remain independently trustworthy, records
// after it are not scanned.
type Report struct {
	OK         bool   `json:"ok"`
	Count      int    `json:"count"`
	Position   int    `json:"position,omitempty"`
	DecisionID string `json:"decision_id,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Err        error  `json:"-"`
}

// Verify scans every record in s from first to last, recomputing content
// hashes and checking linkage, stopping at the first failure. It never
// mutates the store. An empty store verifies with count 0.
func Verify(ctx context.Context, s store.Store) (*Report, error) {
	rep := &Report{OK: true}

	prev := canonicalize.Sentinel
	err := s.Scan(ctx, func(pos int, r *record.DecisionRecord) (bool, error) {
		computed, err := canonicalize.HashRecord(r)
		if err != nil {
			return false, err
		}
		if computed != r.Hash {
			rep.fail(pos, r.DecisionID, "content_tampered", &ContentTamperedError{
				Position:   pos,
				DecisionID: r.DecisionID,
				Stored:     r.Hash,
				Computed:   computed,
			})
			return false, nil
		}
		if r.PrevHash != prev {
			rep.fail(pos, r.DecisionID, "chain_broken", &ChainBrokenError{
				Position:   pos,
				DecisionID: r.DecisionID,
				Expected:   prev,
				Got:        r.PrevHash,
			})
			return false, nil
		}
		prev = r.Hash
		rep.Count++
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *Report) fail(pos int, id, kind string, err error) {
	r.OK = false
	r.Position = pos
	r.DecisionID = id
	r.Kind = kind
	r.Detail = err.Error()
	r.Err = err
}
