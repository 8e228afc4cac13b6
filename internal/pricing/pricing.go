// Package pricing estimates AI cost from token counts for producers that
// report usage without a price.
package pricing

import (
	"math"
	"strings"

	"github.com/nixlim/po-stats/internal/stats"
)

// Price is a per-million-token rate in USD.
type Price struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Table maps model ids to prices. Lookups ignore case and fall back to the
// longest configured id that prefixes the model, so "gpt-4o-mini-2024-07-18"
// resolves to "gpt-4o-mini".
type Table struct {
	prices map[string]Price
}

// FromConfig builds a Table from [pricing] entries of the form
// model = [input_per_mtok, output_per_mtok].
func FromConfig(entries map[string][2]float64) *Table {
	t := &Table{prices: make(map[string]Price, len(entries))}
	for model, p := range entries {
		t.prices[strings.ToLower(model)] = Price{InputPerMTok: p[0], OutputPerMTok: p[1]}
	}
	return t
}

// Lookup returns the price for model.
func (t *Table) Lookup(model string) (Price, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return Price{}, false
	}
	if p, ok := t.prices[model]; ok {
		return p, true
	}

	best := ""
	for id := range t.prices {
		if strings.HasPrefix(model, id) && len(id) > len(best) {
			best = id
		}
	}
	if best == "" {
		return Price{}, false
	}
	return t.prices[best], true
}

// Estimate returns the USD cost of tokens under model's price.
func (t *Table) Estimate(model string, tokens stats.Tokens) (float64, bool) {
	p, ok := t.Lookup(model)
	if !ok {
		return 0, false
	}
	cost := float64(tokens.Input)/1e6*p.InputPerMTok + float64(tokens.Output)/1e6*p.OutputPerMTok
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
		return 0, false
	}
	return cost, true
}

// Len returns the number of configured models.
func (t *Table) Len() int {
	return len(t.prices)
}
