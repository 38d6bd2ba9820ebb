package selection

import "math"

// Aggregate summarizes a group as one comparison unit. Per-sqft values are
// derived from the sums; AlignmentIndex is the unweighted mean.
type Aggregate struct {
	Count            int     `json:"count"`
	TotalValue       float64 `json:"total_value"`
	LandValue        float64 `json:"land_value"`
	LotSize          float64 `json:"lot_size"`
	NetTaxes         float64 `json:"net_taxes"`
	NetTaxesPerSqft  float64 `json:"net_taxes_per_sqft"`
	LandValuePerSqft float64 `json:"land_value_per_sqft"`
	AlignmentIndex   float64 `json:"alignment_index"`
}

// ComputeAggregate sums the raw metrics of entries. Missing values
// contribute nothing to sums; the alignment mean covers only features that
// have one and is NaN when none do.
func ComputeAggregate(entries []Entry) Aggregate {
	agg := Aggregate{Count: len(entries)}
	var alignSum float64
	var alignN int
	for _, e := range entries {
		m := e.Metrics
		agg.TotalValue += orZero(m.TotalValue)
		agg.LandValue += orZero(m.LandValue)
		agg.LotSize += orZero(m.LotSize)
		agg.NetTaxes += orZero(m.NetTaxes)
		if !isMissing(m.AlignmentIndex) {
			alignSum += m.AlignmentIndex
			alignN++
		}
	}
	if agg.LotSize > 0 {
		agg.NetTaxesPerSqft = agg.NetTaxes / agg.LotSize
		agg.LandValuePerSqft = agg.LandValue / agg.LotSize
	}
	agg.AlignmentIndex = math.NaN()
	if alignN > 0 {
		agg.AlignmentIndex = alignSum / float64(alignN)
	}
	return agg
}

// ConfirmedGroup is an immutable snapshot taken when a group is confirmed.
type ConfirmedGroup struct {
	Features  []Entry
	Aggregate Aggregate
}

func confirmGroup(entries []Entry) *ConfirmedGroup {
	return &ConfirmedGroup{
		Features:  cloneEntries(entries),
		Aggregate: ComputeAggregate(entries),
	}
}

// Contains reports whether featureID is in the snapshot.
func (g *ConfirmedGroup) Contains(featureID string) bool {
	return g != nil && indexOf(g.Features, featureID) >= 0
}

func orZero(v float64) float64 {
	if isMissing(v) {
		return 0
	}
	return v
}

func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
