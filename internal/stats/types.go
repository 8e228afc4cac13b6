// Package stats defines the translation statistics value type shared by
// deltas and accumulators, and the normalizer that turns loosely shaped
// producer payloads into it.
package stats

import "math"

// Tokens holds AI token counts.
type Tokens struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

// Stats is both the canonical delta emitted by a producer and the running
// total held by an accumulator. Every field is finite and >= 0 once it has
// passed through Normalize or Sanitize.
type Stats struct {
	Total        int64   `json:"total"`
	TMHits       int64   `json:"tm_hits"`
	Deduplicated int64   `json:"deduplicated"`
	AITranslated int64   `json:"ai_translated"`
	TMLearned    int64   `json:"tm_learned"`
	Tokens       Tokens  `json:"tokens"`
	Cost         float64 `json:"cost"` // USD, unrounded
}

// Add returns the elementwise sum of s and d. Integer fields saturate at
// math.MaxInt64 and cost stays finite.
func (s Stats) Add(d Stats) Stats {
	return Stats{
		Total:        addCount(s.Total, d.Total),
		TMHits:       addCount(s.TMHits, d.TMHits),
		Deduplicated: addCount(s.Deduplicated, d.Deduplicated),
		AITranslated: addCount(s.AITranslated, d.AITranslated),
		TMLearned:    addCount(s.TMLearned, d.TMLearned),
		Tokens: Tokens{
			Input:  addCount(s.Tokens.Input, d.Tokens.Input),
			Output: addCount(s.Tokens.Output, d.Tokens.Output),
			Total:  addCount(s.Tokens.Total, d.Tokens.Total),
		},
		Cost: addCost(s.Cost, d.Cost),
	}
}

// Sanitize clamps every field into the valid domain: negatives, NaN and
// infinities become 0, and the token total is floored at input+output.
func (s Stats) Sanitize() Stats {
	out := Stats{
		Total:        clampCount(s.Total),
		TMHits:       clampCount(s.TMHits),
		Deduplicated: clampCount(s.Deduplicated),
		AITranslated: clampCount(s.AITranslated),
		TMLearned:    clampCount(s.TMLearned),
		Tokens: Tokens{
			Input:  clampCount(s.Tokens.Input),
			Output: clampCount(s.Tokens.Output),
			Total:  clampCount(s.Tokens.Total),
		},
		Cost: clampCost(s.Cost),
	}
	if sum := addCount(out.Tokens.Input, out.Tokens.Output); out.Tokens.Total < sum {
		out.Tokens.Total = sum
	}
	return out
}

// IsZero reports whether every field is zero.
func (s Stats) IsZero() bool {
	return s == Stats{}
}

// Processed returns the number of items resolved by any route.
func (s Stats) Processed() int64 {
	return addCount(addCount(s.TMHits, s.Deduplicated), s.AITranslated)
}

// APICallsSaved returns the number of items that did not need an AI call.
func (s Stats) APICallsSaved() int64 {
	return addCount(s.TMHits, s.Deduplicated)
}

func clampCount(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampCost(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func addCount(a, b int64) int64 {
	a, b = clampCount(a), clampCount(b)
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func addCost(a, b float64) float64 {
	sum := clampCost(a) + clampCost(b)
	if math.IsInf(sum, 1) {
		return math.MaxFloat64
	}
	return sum
}
