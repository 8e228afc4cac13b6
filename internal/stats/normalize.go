package stats

import (
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Producers disagree on field names. Each list is searched in order and the
// first present, non-null key wins.
var (
	tokenObjectKeys = []string{"token_stats", "tokens"}
	inputKeys       = []string{"prompt_tokens", "input_tokens", "input"}
	outputKeys      = []string{"completion_tokens", "output_tokens", "output"}
	tokenTotalKeys  = []string{"total_tokens", "total"}

	totalKeys        = []string{"total"}
	tmHitsKeys       = []string{"tm_hits", "tmHits"}
	deduplicatedKeys = []string{"deduplicated"}
	aiKeys           = []string{"ai_translated", "aiTranslated"}
	tmLearnedKeys    = []string{"tm_learned", "tmLearned"}
	costKeys         = []string{"cost"}
	modelKeys        = []string{"model", "model_id"}
)

// Normalize converts a raw producer payload into a sanitized Stats value.
// It never panics and never returns negative or non-finite fields.
//
// Accepted inputs are decoded JSON objects (map[string]any), JSON text as
// []byte or string, Stats and *Stats. Anything else is round-tripped through
// JSON; values that cannot be interpreted yield the zero Stats.
func Normalize(raw any) Stats {
	switch v := raw.(type) {
	case nil:
		return Stats{}
	case Stats:
		return v.Sanitize()
	case *Stats:
		if v == nil {
			return Stats{}
		}
		return v.Sanitize()
	case map[string]any:
		return fromMap(v)
	case []byte:
		return NormalizeJSON(v)
	case string:
		return NormalizeJSON([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return Stats{}
		}
		return NormalizeJSON(data)
	}
}

// NormalizeJSON decodes a JSON object and normalizes it. Invalid JSON or a
// non-object document yields the zero Stats.
func NormalizeJSON(data []byte) Stats {
	obj := decodeObject(data)
	if obj == nil {
		return Stats{}
	}
	return fromMap(obj)
}

// HasPayload reports whether raw carries a stats object that Normalize
// reads fields from. Nil, non-object JSON and undecodable text do not.
func HasPayload(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return false
	case Stats:
		return true
	case *Stats:
		return v != nil
	case map[string]any:
		return v != nil
	case []byte:
		return decodeObject(v) != nil
	case string:
		return decodeObject([]byte(v)) != nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return false
		}
		return decodeObject(data) != nil
	}
}

// ModelOf returns the model name carried by a raw payload, looking at the
// top level first and then inside the token sub-object.
func ModelOf(raw any) string {
	obj := asObject(raw)
	if obj == nil {
		return ""
	}
	if s := stringField(obj, modelKeys); s != "" {
		return s
	}
	if tok := tokenObject(obj); tok != nil {
		return stringField(tok, modelKeys)
	}
	return ""
}

func fromMap(obj map[string]any) Stats {
	var s Stats
	s.Total = countField(obj, totalKeys)
	s.TMHits = countField(obj, tmHitsKeys)
	s.Deduplicated = countField(obj, deduplicatedKeys)
	s.AITranslated = countField(obj, aiKeys)
	s.TMLearned = countField(obj, tmLearnedKeys)

	tok := tokenObject(obj)
	if tok != nil {
		s.Tokens.Input = countField(tok, inputKeys)
		s.Tokens.Output = countField(tok, outputKeys)
		if v, ok := lookup(tok, tokenTotalKeys); ok {
			s.Tokens.Total = toCount(v)
		}
	}

	if v, ok := lookup(obj, costKeys); ok {
		s.Cost = toCost(v)
	} else if tok != nil {
		if v, ok := lookup(tok, costKeys); ok {
			s.Cost = toCost(v)
		}
	}

	// Sanitize floors Tokens.Total at Input+Output, which also covers the
	// case where no explicit total was sent.
	return s.Sanitize()
}

func tokenObject(obj map[string]any) map[string]any {
	v, ok := lookup(obj, tokenObjectKeys)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

func asObject(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case []byte:
		return decodeObject(v)
	case string:
		return decodeObject([]byte(v))
	default:
		return nil
	}
}

func decodeObject(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	return obj
}

// lookup returns the first present, non-nil value among keys.
func lookup(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func countField(obj map[string]any, keys []string) int64 {
	v, ok := lookup(obj, keys)
	if !ok {
		return 0
	}
	return toCount(v)
}

func stringField(obj map[string]any, keys []string) string {
	v, ok := lookup(obj, keys)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// toCount converts v to a non-negative integer. Fractions truncate, finite
// values beyond the int64 range saturate and non-finite values are 0.
func toCount(v any) int64 {
	switch n := v.(type) {
	case int:
		return clampCount(int64(n))
	case int32:
		return clampCount(int64(n))
	case int64:
		return clampCount(n)
	case uint:
		return saturateUint(uint64(n))
	case uint32:
		return int64(n)
	case uint64:
		return saturateUint(n)
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

func toCost(v any) float64 {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return clampCost(f)
}

// floater matches json.Number from both encoding/json and go-json.
type floater interface {
	Float64() (float64, error)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case floater:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func saturateUint(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}
