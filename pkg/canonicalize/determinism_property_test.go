//go:build property
// +build property

// Property-based tests for canonical hashing determinism.
package canonicalize

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/decisiontrace/core/pkg/record"
)

// TestHashDeterminismProperty verifies that hashing is a pure function of
// record content: rebuilding the same logical record from permuted inputs
// always yields the same digest, regardless of map iteration order.
func TestHashDeterminismProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("equal records hash equally", prop.ForAll(
		func(keys []string, values []string, flags []string, prompt, output string) bool {
			cfg1 := make(map[string]any)
			for i := 0; i < len(keys) && i < len(values); i++ {
				cfg1[keys[i]] = values[i]
			}
			// Same entries inserted in reverse order.
			order := make([]string, 0, len(cfg1))
			for k := range cfg1 {
				order = append(order, k)
			}
			cfg2 := make(map[string]any)
			for i := len(order) - 1; i >= 0; i-- {
				cfg2[order[i]] = cfg1[order[i]]
			}

			r1 := &record.DecisionRecord{
				DecisionID: "d", Timestamp: "2026-01-01T00:00:00Z",
				Model: "m", Config: cfg1, Prompt: prompt, Output: output,
				RiskFlags: flags, PrevHash: Sentinel,
			}
			r2 := &record.DecisionRecord{
				DecisionID: "d", Timestamp: "2026-01-01T00:00:00Z",
				Model: "m", Config: cfg2, Prompt: prompt, Output: output,
				RiskFlags: reversed(flags), PrevHash: Sentinel,
			}

			h1, err1 := HashRecord(r1)
			h2, err2 := HashRecord(r2)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return h1 == h2
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("prev_hash always changes the digest", prop.ForAll(
		func(prompt string) bool {
			r := &record.DecisionRecord{
				DecisionID: "d", Timestamp: "2026-01-01T00:00:00Z",
				Model: "m", Prompt: prompt, Output: "o", PrevHash: Sentinel,
			}
			h1, err := HashRecord(r)
			if err != nil {
				return false
			}
			r.PrevHash = h1
			h2, err := HashRecord(r)
			if err != nil {
				return false
			}
			return h1 != h2
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func reversed(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
