// Package canonicalize produces the RFC 8785 (JSON Canonicalization Scheme)
// form of decision record content and its SHA-256 digest.
//
// The canonical form is a published contract, not an implementation detail:
// it must be reproducible byte-for-byte across runs, platforms, and
// implementations in any language. Map keys are sorted lexicographically by
// UTF-8 bytes, sequences keep their input order, numbers use the ES6
// serialization mandated by RFC 8785.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/decisiontrace/core/pkg/record"
)

// Sentinel is the prev_hash of the first record ever appended to a log:
// the SHA-256 digest of "genesis_block".
var Sentinel = HashBytes([]byte("genesis_block"))

// CanonicalJSON returns the RFC 8785 canonical JSON encoding of v.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: transform: %w", err)
	}
	return out, nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON of v.
func CanonicalHash(v any) (string, error) {
	b, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// content mirrors DecisionRecord without the hash field. The hash is a pure
// function of everything here, prev_hash included; that inclusion is what
// creates the chain.
type content struct {
	DecisionID     string         `json:"decision_id"`
	Timestamp      string         `json:"timestamp"`
	Model          string         `json:"model"`
	Config         map[string]any `json:"config"`
	Prompt         string         `json:"prompt"`
	ContextSources []string       `json:"context_sources"`
	Output         string         `json:"output"`
	Confidence     *float64       `json:"confidence,omitempty"`
	RiskFlags      []string       `json:"risk_flags"`
	PrevHash       string         `json:"prev_hash"`
}

// HashRecord computes the content hash of r. Logically equal records hash
// identically: risk_flags are hashed in sorted, deduplicated order and nil
// collections hash as empty ones, regardless of how r was populated.
func HashRecord(r *record.DecisionRecord) (string, error) {
	c := content{
		DecisionID:     r.DecisionID,
		Timestamp:      r.Timestamp,
		Model:          r.Model,
		Config:         r.Config,
		Prompt:         r.Prompt,
		ContextSources: r.ContextSources,
		Output:         r.Output,
		Confidence:     r.Confidence,
		RiskFlags:      record.CanonicalFlags(r.RiskFlags),
		PrevHash:       r.PrevHash,
	}
	if c.Config == nil {
		c.Config = map[string]any{}
	}
	if c.ContextSources == nil {
		c.ContextSources = []string{}
	}
	return CanonicalHash(c)
}
