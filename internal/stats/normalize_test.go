package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PromptCompletionAliases(t *testing.T) {
	raw := map[string]any{
		"tokens": map[string]any{
			"prompt_tokens":     100.0,
			"completion_tokens": 50.0,
		},
	}

	got := Normalize(raw)

	assert.Equal(t, Tokens{Input: 100, Output: 50, Total: 150}, got.Tokens)
}

func TestNormalize_TokenStatsKeyAndNestedCost(t *testing.T) {
	raw := map[string]any{
		"total":         12.0,
		"tm_hits":       3.0,
		"deduplicated":  2.0,
		"ai_translated": 7.0,
		"tm_learned":    1.0,
		"token_stats": map[string]any{
			"input_tokens":  40.0,
			"output_tokens": 20.0,
			"total_tokens":  60.0,
			"cost":          0.0125,
		},
	}

	got := Normalize(raw)

	assert.Equal(t, Stats{
		Total:        12,
		TMHits:       3,
		Deduplicated: 2,
		AITranslated: 7,
		TMLearned:    1,
		Tokens:       Tokens{Input: 40, Output: 20, Total: 60},
		Cost:         0.0125,
	}, got)
}

func TestNormalize_ExplicitTotalPreferred(t *testing.T) {
	raw := map[string]any{
		"tokens": map[string]any{"input_tokens": 10.0, "output_tokens": 5.0, "total_tokens": 20.0},
	}
	assert.Equal(t, int64(20), Normalize(raw).Tokens.Total)
}

func TestNormalize_ExplicitTotalFlooredAtSum(t *testing.T) {
	raw := map[string]any{
		"tokens": map[string]any{"input_tokens": 10.0, "output_tokens": 5.0, "total_tokens": 3.0},
	}
	assert.Equal(t, int64(15), Normalize(raw).Tokens.Total)
}

func TestNormalize_NullTotalIsComputed(t *testing.T) {
	got := NormalizeJSON([]byte(`{"tokens":{"input_tokens":7,"output_tokens":3,"total_tokens":null}}`))
	assert.Equal(t, int64(10), got.Tokens.Total)
}

func TestNormalize_TopLevelCostWins(t *testing.T) {
	got := NormalizeJSON([]byte(`{"cost":0.5,"token_stats":{"cost":9}}`))
	assert.InDelta(t, 0.5, got.Cost, 1e-12)
}

func TestNormalize_CamelCaseAliases(t *testing.T) {
	got := NormalizeJSON([]byte(`{"tmHits":4,"aiTranslated":6,"tmLearned":2}`))
	assert.Equal(t, int64(4), got.TMHits)
	assert.Equal(t, int64(6), got.AITranslated)
	assert.Equal(t, int64(2), got.TMLearned)
}

func TestNormalize_MalformedInputIsNonNegativeAndFinite(t *testing.T) {
	cases := map[string]any{
		"nil":              nil,
		"empty object":     map[string]any{},
		"negative":         map[string]any{"total": -5.0, "tm_hits": -1.0, "cost": -0.3},
		"wrong types":      map[string]any{"total": "lots", "tm_hits": true, "tokens": "nope", "cost": []any{1.0}},
		"nan and inf":      map[string]any{"cost": math.NaN(), "total": math.Inf(1), "tm_hits": math.Inf(-1)},
		"nested negatives": map[string]any{"tokens": map[string]any{"input_tokens": -10.0, "output_tokens": -2.0, "total_tokens": -12.0}},
		"invalid json":     []byte(`{"total":`),
		"json array":       `[1,2,3]`,
		"unknown type":     struct{ X chan int }{},
		"nil stats ptr":    (*Stats)(nil),
		"raw stats":        Stats{Total: -3, Cost: math.NaN(), Tokens: Tokens{Input: -1}},
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got := Normalize(raw)
			assertValid(t, got)
		})
	}
}

func TestNormalize_NonFiniteCountsAreZero(t *testing.T) {
	got := Normalize(map[string]any{
		"total":         math.Inf(1),
		"tm_hits":       "Infinity",
		"deduplicated":  "+Inf",
		"ai_translated": math.Inf(-1),
		"cost":          "NaN",
		"tokens":        map[string]any{"input_tokens": math.Inf(1), "output_tokens": 4},
	})

	assert.Equal(t, Stats{Tokens: Tokens{Output: 4, Total: 4}}, got)
	assertValid(t, got)
}

func TestHasPayload(t *testing.T) {
	assert.True(t, HasPayload(map[string]any{}))
	assert.True(t, HasPayload(`{"total":1}`))
	assert.True(t, HasPayload([]byte(`{}`)))
	assert.True(t, HasPayload(Stats{}))
	assert.True(t, HasPayload(struct {
		Total int `json:"total"`
	}{Total: 1}))

	assert.False(t, HasPayload(nil))
	assert.False(t, HasPayload("garbage"))
	assert.False(t, HasPayload(`[1,2]`))
	assert.False(t, HasPayload([]byte("null")))
	assert.False(t, HasPayload((*Stats)(nil)))
	assert.False(t, HasPayload(map[string]any(nil)))
	assert.False(t, HasPayload(42))
}

func TestNormalize_HugeValuesSaturate(t *testing.T) {
	got := Normalize(map[string]any{"total": 1e300, "tokens": map[string]any{"input_tokens": uint64(math.MaxUint64)}})
	assert.Equal(t, int64(math.MaxInt64), got.Total)
	assert.Equal(t, int64(math.MaxInt64), got.Tokens.Input)
	assertValid(t, got)
}

func TestNormalize_NumericStringsAndFractions(t *testing.T) {
	got := Normalize(map[string]any{"total": " 42 ", "tm_hits": 2.9, "cost": "0.25"})
	assert.Equal(t, int64(42), got.Total)
	assert.Equal(t, int64(2), got.TMHits)
	assert.InDelta(t, 0.25, got.Cost, 1e-12)
}

func TestNormalize_StructRoundTrip(t *testing.T) {
	type payload struct {
		Total  int `json:"total"`
		Tokens struct {
			In  int `json:"input_tokens"`
			Out int `json:"output_tokens"`
		} `json:"token_stats"`
	}
	var p payload
	p.Total = 5
	p.Tokens.In = 3
	p.Tokens.Out = 4

	got := Normalize(p)

	assert.Equal(t, int64(5), got.Total)
	assert.Equal(t, Tokens{Input: 3, Output: 4, Total: 7}, got.Tokens)
}

func TestModelOf(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", ModelOf(map[string]any{"model": "gpt-4o-mini"}))
	assert.Equal(t, "deepseek-chat", ModelOf(`{"token_stats":{"model":"deepseek-chat"}}`))
	assert.Empty(t, ModelOf(map[string]any{"model": 3.0}))
	assert.Empty(t, ModelOf(nil))
}

func TestStats_AddSaturates(t *testing.T) {
	a := Stats{Total: math.MaxInt64 - 1, Cost: math.MaxFloat64}
	sum := a.Add(Stats{Total: 10, Cost: math.MaxFloat64})

	assert.Equal(t, int64(math.MaxInt64), sum.Total)
	assert.False(t, math.IsInf(sum.Cost, 0))
}

func TestEfficiencyOf(t *testing.T) {
	e := EfficiencyOf(Stats{TMHits: 2, Deduplicated: 1, AITranslated: 1})
	require.True(t, e.HasData())
	assert.Equal(t, int64(4), e.Processed)
	assert.Equal(t, int64(3), e.APICallsSaved)
	assert.InDelta(t, 0.5, e.TMHitRate, 1e-12)
	assert.InDelta(t, 0.25, e.DedupRate, 1e-12)
	assert.InDelta(t, 0.25, e.AIRate, 1e-12)

	assert.False(t, EfficiencyOf(Stats{}).HasData())
}

func assertValid(t *testing.T, s Stats) {
	t.Helper()
	for name, v := range map[string]int64{
		"total":         s.Total,
		"tm_hits":       s.TMHits,
		"deduplicated":  s.Deduplicated,
		"ai_translated": s.AITranslated,
		"tm_learned":    s.TMLearned,
		"input":         s.Tokens.Input,
		"output":        s.Tokens.Output,
		"tokens_total":  s.Tokens.Total,
	} {
		assert.GreaterOrEqual(t, v, int64(0), name)
	}
	assert.False(t, math.IsNaN(s.Cost), "cost is NaN")
	assert.False(t, math.IsInf(s.Cost, 0), "cost is infinite")
	assert.GreaterOrEqual(t, s.Cost, 0.0, "cost")
	assert.GreaterOrEqual(t, s.Tokens.Total, s.Tokens.Input+s.Tokens.Output)
}
