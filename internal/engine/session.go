package engine

import (
	"github.com/nixlim/po-stats/internal/ledger"
	"github.com/nixlim/po-stats/internal/stats"
)

// sessionAccumulator is the ephemeral total fed by batch progress.
type sessionAccumulator struct {
	total  stats.Stats
	ledger *ledger.Ledger
}

func (s *sessionAccumulator) apply(d stats.Stats) {
	s.total = s.total.Add(d)
}

func (s *sessionAccumulator) snapshot() stats.Stats {
	return s.total
}

func (s *sessionAccumulator) reset() {
	s.total = stats.Stats{}
	s.ledger.Clear(ledger.Session)
}
