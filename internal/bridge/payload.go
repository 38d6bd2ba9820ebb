package bridge

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/joeblew999/plat-parcels/internal/selection"
)

// Number is a float64 that encodes NaN and Inf as JSON null.
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler; null decodes to NaN.
func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = Number(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Properties are the eight metric fields of a selected feature.
type Properties struct {
	TotalValue             Number `json:"total_value"`
	LandValue              Number `json:"land_value"`
	LotSize                Number `json:"lot_size"`
	NetTaxes               Number `json:"net_taxes"`
	NetTaxesPerSqft        Number `json:"net_taxes_per_sqft"`
	TaxesPerCityStreetSqft Number `json:"taxes_per_city_street_sqft"`
	LandValuePerSqft       Number `json:"land_value_per_sqft"`
	AlignmentIndex         Number `json:"alignment_index"`
}

// Feature is one selected feature as the host sees it.
type Feature struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	OverlayType string     `json:"overlay_type"`
	Properties  Properties `json:"properties"`
}

// Aggregate is a confirmed group's summary as the host sees it.
type Aggregate struct {
	Count            int    `json:"count"`
	TotalValue       Number `json:"total_value"`
	LandValue        Number `json:"land_value"`
	LotSize          Number `json:"lot_size"`
	NetTaxes         Number `json:"net_taxes"`
	NetTaxesPerSqft  Number `json:"net_taxes_per_sqft"`
	LandValuePerSqft Number `json:"land_value_per_sqft"`
	AlignmentIndex   Number `json:"alignment_index"`
}

// Group is one side of a group comparison.
type Group struct {
	Features  []Feature `json:"features"`
	Aggregate Aggregate `json:"aggregate"`
}

// Comparison is the group-mode payload, sent only on compare.
type Comparison struct {
	ComparisonMode string `json:"comparison_mode"`
	Group1         *Group `json:"group1"`
	Group2         *Group `json:"group2"`
}

// FeaturesFrom converts selection entries to host payload form. The result
// is never nil so it encodes as [].
func FeaturesFrom(entries []selection.Entry) []Feature {
	out := make([]Feature, 0, len(entries))
	for _, e := range entries {
		m := e.Metrics
		out = append(out, Feature{
			ID:          e.FeatureID,
			Label:       e.Label,
			OverlayType: string(e.OverlayType),
			Properties: Properties{
				TotalValue:             Number(m.TotalValue),
				LandValue:              Number(m.LandValue),
				LotSize:                Number(m.LotSize),
				NetTaxes:               Number(m.NetTaxes),
				NetTaxesPerSqft:        Number(m.NetTaxesPerSqft),
				TaxesPerCityStreetSqft: Number(m.TaxesPerCityStreetSqft),
				LandValuePerSqft:       Number(m.LandValuePerSqft),
				AlignmentIndex:         Number(m.AlignmentIndex),
			},
		})
	}
	return out
}

// GroupFrom converts a confirmed snapshot; nil stays nil.
func GroupFrom(g *selection.ConfirmedGroup) *Group {
	if g == nil {
		return nil
	}
	a := g.Aggregate
	return &Group{
		Features: FeaturesFrom(g.Features),
		Aggregate: Aggregate{
			Count:            a.Count,
			TotalValue:       Number(a.TotalValue),
			LandValue:        Number(a.LandValue),
			LotSize:          Number(a.LotSize),
			NetTaxes:         Number(a.NetTaxes),
			NetTaxesPerSqft:  Number(a.NetTaxesPerSqft),
			LandValuePerSqft: Number(a.LandValuePerSqft),
			AlignmentIndex:   Number(a.AlignmentIndex),
		},
	}
}
