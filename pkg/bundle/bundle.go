// Package bundle exports a decision log as a self-contained evidence bundle
// that an auditor can re-verify offline, away from the original log file.
package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/decisiontrace/core/pkg/canonicalize"
	"github.com/decisiontrace/core/pkg/record"
	"github.com/decisiontrace/core/pkg/store"
)

// Manifest describes an exported bundle.
type Manifest struct {
	BundleID    string `json:"bundle_id"`
	Version     string `json:"version"`
	CreatedAt   string `json:"created_at"`
	RecordCount int    `json:"record_count"`
	ChainHead   string `json:"chain_head"`
	BundleHash  string `json:"bundle_hash"`
}

// Bundle is an exported slice of the decision log.
type Bundle struct {
	Manifest Manifest                 `json:"manifest"`
	Records  []*record.DecisionRecord `json:"records"`
}

const bundleVersion = "1"

// Export reads the whole log from s into a bundle. The bundle hash is the
// canonical hash of the record array, so any post-export edit to a record or
// its order is detectable without the original log.
func Export(ctx context.Context, s store.Store) (*Bundle, error) {
	records := make([]*record.DecisionRecord, 0)
	err := s.Scan(ctx, func(_ int, r *record.DecisionRecord) (bool, error) {
		records = append(records, r)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	head := canonicalize.Sentinel
	if len(records) > 0 {
		head = records[len(records)-1].Hash
	}
	bundleHash, err := canonicalize.CanonicalHash(records)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Manifest: Manifest{
			BundleID:    uuid.New().String(),
			Version:     bundleVersion,
			CreatedAt:   record.FormatTimestamp(time.Now()),
			RecordCount: len(records),
			ChainHead:   head,
			BundleHash:  bundleHash,
		},
		Records: records,
	}, nil
}

// Verify re-checks a bundle offline: the bundle hash over the record array,
// each record's content hash, and the internal chain linkage.
func (b *Bundle) Verify() error {
	computed, err := canonicalize.CanonicalHash(b.Records)
	if err != nil {
		return err
	}
	if computed != b.Manifest.BundleHash {
		return fmt.Errorf("bundle hash mismatch: manifest %s, computed %s", b.Manifest.BundleHash, computed)
	}
	if b.Manifest.RecordCount != len(b.Records) {
		return fmt.Errorf("record count mismatch: manifest %d, found %d", b.Manifest.RecordCount, len(b.Records))
	}

	prev := canonicalize.Sentinel
	for i, r := range b.Records {
		contentHash, err := canonicalize.HashRecord(r)
		if err != nil {
			return err
		}
		if contentHash != r.Hash {
			return fmt.Errorf("record %d (%s) content hash mismatch", i+1, r.DecisionID)
		}
		if r.PrevHash != prev {
			return fmt.Errorf("record %d (%s) chain broken", i+1, r.DecisionID)
		}
		prev = r.Hash
	}
	return nil
}

// Write serializes the bundle as indented JSON.
func (b *Bundle) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// Read parses a bundle previously produced by Write.
func Read(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}
