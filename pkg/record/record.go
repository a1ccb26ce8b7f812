// Package record defines the decision record model and candidate validation.
//
// A DecisionRecord is one immutable entry in the decision log. Callers supply
// a Candidate (the content they control); the chain builder derives
// decision_id, timestamp, prev_hash, and hash.
package record

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DecisionRecord is a single immutable, hash-chained log entry.
type DecisionRecord struct {
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
	Hash           string         `json:"hash"`
}

// Candidate is the caller-supplied portion of a decision record.
type Candidate struct {
	Model          string         `json:"model"`
	Config         map[string]any `json:"config"`
	Prompt         string         `json:"prompt"`
	ContextSources []string       `json:"context_sources"`
	Output         string         `json:"output"`
	Confidence     *float64       `json:"confidence,omitempty"`
	RiskFlags      []string       `json:"risk_flags,omitempty"`
}

// ValidationError reports which candidate fields failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid candidate: %s", strings.Join(e.Fields, ", "))
}

// Validate checks a candidate against the record constraints and returns a
// normalized copy: risk_flags sorted and deduplicated, nil slices replaced
// with empty ones. It performs no I/O.
func Validate(c Candidate) (Candidate, error) {
	var bad []string

	if c.Model == "" {
		bad = append(bad, "model: required")
	}
	if c.Prompt == "" {
		bad = append(bad, "prompt: required")
	}
	if c.Output == "" {
		bad = append(bad, "output: required")
	}
	if c.Confidence != nil && (*c.Confidence < 0 || *c.Confidence > 1) {
		bad = append(bad, fmt.Sprintf("confidence: %v outside [0,1]", *c.Confidence))
	}
	for k, v := range c.Config {
		if !scalar(v) {
			bad = append(bad, fmt.Sprintf("config.%s: value must be a scalar", k))
		}
	}

	if len(bad) > 0 {
		sort.Strings(bad)
		return Candidate{}, &ValidationError{Fields: bad}
	}

	norm := c
	if norm.Config == nil {
		norm.Config = map[string]any{}
	}
	if norm.ContextSources == nil {
		norm.ContextSources = []string{}
	}
	norm.RiskFlags = CanonicalFlags(c.RiskFlags)
	return norm, nil
}

// CanonicalFlags returns risk flags in canonical form: sorted
// lexicographically with duplicates removed. Flag order carries no meaning,
// so two logically equal records must serialize identically.
func CanonicalFlags(flags []string) []string {
	if len(flags) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(flags))
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// scalar reports whether v is an acceptable config value. Candidates decoded
// from JSON carry numbers as float64; candidates built in Go may carry any
// numeric kind.
func scalar(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// Timestamp format for records: RFC 3339 UTC with nanoseconds, stored as a
// string so the hashed canonical bytes are identical across platforms.
const TimestampFormat = time.RFC3339Nano

// FormatTimestamp renders t in the record timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
