// Package feature turns data-store rows into the read-only feature collection
// consumed by the map surface and the selection controller.
package feature

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// OverlayType is the category of features displayed on the map.
// Selections never mix overlay types.
type OverlayType string

const (
	Parcel        OverlayType = "parcel"
	AreaPlan      OverlayType = "area_plan"
	AlderDistrict OverlayType = "alder_district"
)

// OverlayTypes lists every supported overlay in display order.
var OverlayTypes = []OverlayType{Parcel, AreaPlan, AlderDistrict}

// ParseOverlayType accepts both singular and plural spellings
// ("parcels", "area_plans", ...).
func ParseOverlayType(s string) (OverlayType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	v = strings.ReplaceAll(v, " ", "_")
	switch v {
	case "parcel", "parcels":
		return Parcel, nil
	case "area_plan", "area_plans":
		return AreaPlan, nil
	case "alder_district", "alder_districts":
		return AlderDistrict, nil
	}
	return "", fmt.Errorf("unknown overlay type %q", s)
}

// Title returns the human label used in glossary and control text.
func (t OverlayType) Title() string {
	switch t {
	case Parcel:
		return "Parcel"
	case AreaPlan:
		return "Area Plan"
	case AlderDistrict:
		return "Alder District"
	}
	return string(t)
}

// Metric names as they appear in data-store columns and sync payloads.
const (
	TotalValue             = "total_value"
	LandValue              = "land_value"
	LotSize                = "lot_size"
	NetTaxes               = "net_taxes"
	NetTaxesPerSqft        = "net_taxes_per_sqft"
	TaxesPerCityStreetSqft = "taxes_per_city_street_sqft"
	LandValuePerSqft       = "land_value_per_sqft"
	AlignmentIndex         = "alignment_index"
)

// MetricNames lists the eight metric fields in payload order.
var MetricNames = []string{
	TotalValue, LandValue, LotSize, NetTaxes,
	NetTaxesPerSqft, TaxesPerCityStreetSqft, LandValuePerSqft, AlignmentIndex,
}

// Metrics holds the per-feature numeric properties. Missing values are NaN.
type Metrics struct {
	TotalValue             float64 `json:"total_value"`
	LandValue              float64 `json:"land_value"`
	LotSize                float64 `json:"lot_size"`
	NetTaxes               float64 `json:"net_taxes"`
	NetTaxesPerSqft        float64 `json:"net_taxes_per_sqft"`
	TaxesPerCityStreetSqft float64 `json:"taxes_per_city_street_sqft"`
	LandValuePerSqft       float64 `json:"land_value_per_sqft"`
	AlignmentIndex         float64 `json:"alignment_index"`
}

// MissingMetrics returns a Metrics value with every field unset.
func MissingMetrics() Metrics {
	nan := math.NaN()
	return Metrics{nan, nan, nan, nan, nan, nan, nan, nan}
}

// Value returns the named metric.
func (m Metrics) Value(name string) (float64, bool) {
	switch name {
	case TotalValue:
		return m.TotalValue, true
	case LandValue:
		return m.LandValue, true
	case LotSize:
		return m.LotSize, true
	case NetTaxes:
		return m.NetTaxes, true
	case NetTaxesPerSqft:
		return m.NetTaxesPerSqft, true
	case TaxesPerCityStreetSqft:
		return m.TaxesPerCityStreetSqft, true
	case LandValuePerSqft:
		return m.LandValuePerSqft, true
	case AlignmentIndex:
		return m.AlignmentIndex, true
	}
	return 0, false
}

// Set assigns the named metric. Unknown names are ignored.
func (m *Metrics) Set(name string, v float64) {
	switch name {
	case TotalValue:
		m.TotalValue = v
	case LandValue:
		m.LandValue = v
	case LotSize:
		m.LotSize = v
	case NetTaxes:
		m.NetTaxes = v
	case NetTaxesPerSqft:
		m.NetTaxesPerSqft = v
	case TaxesPerCityStreetSqft:
		m.TaxesPerCityStreetSqft = v
	case LandValuePerSqft:
		m.LandValuePerSqft = v
	case AlignmentIndex:
		m.AlignmentIndex = v
	}
}

// Map returns the metrics keyed by name, for GeoJSON properties.
func (m Metrics) Map() map[string]float64 {
	out := make(map[string]float64, len(MetricNames))
	for _, name := range MetricNames {
		v, _ := m.Value(name)
		out[name] = v
	}
	return out
}

// Feature is one map-renderable entity. Immutable for the lifetime of a load.
type Feature struct {
	ID          int64  // stable state-tracking identity within one load
	FeatureID   string // business key: parcel id, plan name, district
	OverlayType OverlayType
	Label       string
	Geometry    orb.Geometry // Polygon or MultiPolygon
	Metrics     Metrics
}
