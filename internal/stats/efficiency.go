package stats

// Efficiency breaks processed items down by how they were resolved.
// Rates are fractions in [0, 1] of Processed(), and all zero when nothing
// has been processed yet.
type Efficiency struct {
	Processed     int64
	TMHitRate     float64
	DedupRate     float64
	AIRate        float64
	APICallsSaved int64
}

// EfficiencyOf computes the efficiency breakdown of s.
func EfficiencyOf(s Stats) Efficiency {
	e := Efficiency{
		Processed:     s.Processed(),
		APICallsSaved: s.APICallsSaved(),
	}
	if e.Processed == 0 {
		return e
	}
	total := float64(e.Processed)
	e.TMHitRate = float64(s.TMHits) / total
	e.DedupRate = float64(s.Deduplicated) / total
	e.AIRate = float64(s.AITranslated) / total
	return e
}

// HasData reports whether any item has been processed.
func (e Efficiency) HasData() bool {
	return e.Processed > 0
}
