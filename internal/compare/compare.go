// Package compare builds the side-by-side table shown when two features, or
// two confirmed groups, are selected.
package compare

import (
	"errors"
	"math"

	"github.com/joeblew999/plat-parcels/internal/bridge"
	"github.com/joeblew999/plat-parcels/internal/format"
	"github.com/joeblew999/plat-parcels/internal/selection"
)

// ErrIncomplete means the payload does not hold two sides yet.
var ErrIncomplete = errors.New("comparison needs two sides")

// Kind says what is being compared.
type Kind string

const (
	KindIndividual Kind = "individual"
	KindGroup      Kind = "group"
)

type unit int

const (
	unitCurrency unit = iota
	unitDollars
	unitSqft
	unitIndex
	unitCount
)

// Row is one metric compared across sides A and B. Delta is B minus A.
type Row struct {
	Metric    string        `json:"metric"`
	Label     string        `json:"label"`
	A         bridge.Number `json:"a"`
	B         bridge.Number `json:"b"`
	Delta     bridge.Number `json:"delta"`
	AText     string        `json:"a_text"`
	BText     string        `json:"b_text"`
	DeltaText string        `json:"delta_text"`
}

// Table is a full comparison.
type Table struct {
	Kind   Kind      `json:"kind"`
	Titles [2]string `json:"titles"`
	Rows   []Row     `json:"rows"`
}

type column struct {
	metric string
	label  string
	unit   unit
}

var featureColumns = []column{
	{"total_value", "Total Value", unitCurrency},
	{"land_value", "Land Value", unitCurrency},
	{"lot_size", "Lot Size", unitSqft},
	{"net_taxes", "Net Taxes", unitCurrency},
	{"net_taxes_per_sqft", "Net Taxes / Sq Ft", unitDollars},
	{"taxes_per_city_street_sqft", "Taxes / City Street Sq Ft", unitDollars},
	{"land_value_per_sqft", "Land Value / Sq Ft", unitDollars},
	{"alignment_index", "Alignment Index", unitIndex},
}

var groupColumns = []column{
	{"count", "Features", unitCount},
	{"total_value", "Total Value", unitCurrency},
	{"land_value", "Land Value", unitCurrency},
	{"lot_size", "Lot Size", unitSqft},
	{"net_taxes", "Net Taxes", unitCurrency},
	{"net_taxes_per_sqft", "Net Taxes / Sq Ft", unitDollars},
	{"land_value_per_sqft", "Land Value / Sq Ft", unitDollars},
	{"alignment_index", "Mean Alignment Index", unitIndex},
}

// Build returns the comparison for a host update: the two individual
// features in individual mode, or the two group aggregates in group mode.
func Build(u bridge.Update) (Table, error) {
	if u.Mode == selection.Group {
		c := u.Comparison
		if c == nil || c.Group1 == nil || c.Group2 == nil {
			return Table{}, ErrIncomplete
		}
		return Groups(c.Group1, c.Group2), nil
	}
	if len(u.Individual) != selection.MaxIndividual {
		return Table{}, ErrIncomplete
	}
	return Individual(u.Individual[0], u.Individual[1]), nil
}

// Individual compares two selected features.
func Individual(a, b bridge.Feature) Table {
	av, bv := featureValues(a.Properties), featureValues(b.Properties)
	t := Table{Kind: KindIndividual, Titles: [2]string{a.Label, b.Label}}
	for _, col := range featureColumns {
		t.Rows = append(t.Rows, row(col, av[col.metric], bv[col.metric]))
	}
	return t
}

// Groups compares two confirmed group aggregates.
func Groups(a, b *bridge.Group) Table {
	av, bv := groupValues(a.Aggregate), groupValues(b.Aggregate)
	t := Table{Kind: KindGroup, Titles: [2]string{"Group 1", "Group 2"}}
	for _, col := range groupColumns {
		t.Rows = append(t.Rows, row(col, av[col.metric], bv[col.metric]))
	}
	return t
}

func row(col column, a, b float64) Row {
	// Only a missing operand makes the delta missing; zero is a real value.
	delta := math.NaN()
	if !missing(a) && !missing(b) {
		delta = b - a
	}
	return Row{
		Metric:    col.metric,
		Label:     col.label,
		A:         bridge.Number(a),
		B:         bridge.Number(b),
		Delta:     bridge.Number(delta),
		AText:     render(col.unit, a),
		BText:     render(col.unit, b),
		DeltaText: renderDelta(col.unit, delta),
	}
}

func render(u unit, v float64) string {
	switch u {
	case unitCurrency:
		return format.Currency(v)
	case unitDollars:
		return format.Dollars(v)
	case unitSqft:
		return format.Sqft(v)
	case unitCount:
		return format.Number(v, 0)
	}
	return format.Number(v, 2)
}

func renderDelta(u unit, d float64) string {
	if missing(d) {
		return format.NA
	}
	s := render(u, d)
	if d > 0 {
		return "+" + s
	}
	return s
}

func missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func featureValues(p bridge.Properties) map[string]float64 {
	return map[string]float64{
		"total_value":                float64(p.TotalValue),
		"land_value":                 float64(p.LandValue),
		"lot_size":                   float64(p.LotSize),
		"net_taxes":                  float64(p.NetTaxes),
		"net_taxes_per_sqft":         float64(p.NetTaxesPerSqft),
		"taxes_per_city_street_sqft": float64(p.TaxesPerCityStreetSqft),
		"land_value_per_sqft":        float64(p.LandValuePerSqft),
		"alignment_index":            float64(p.AlignmentIndex),
	}
}

func groupValues(a bridge.Aggregate) map[string]float64 {
	return map[string]float64{
		"count":               float64(a.Count),
		"total_value":         float64(a.TotalValue),
		"land_value":          float64(a.LandValue),
		"lot_size":            float64(a.LotSize),
		"net_taxes":           float64(a.NetTaxes),
		"net_taxes_per_sqft":  float64(a.NetTaxesPerSqft),
		"land_value_per_sqft": float64(a.LandValuePerSqft),
		"alignment_index":     float64(a.AlignmentIndex),
	}
}
