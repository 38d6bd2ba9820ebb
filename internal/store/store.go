// Package store reads parcel, overlay and tax-roll data from a SQL backend.
// DuckDB over parquet and PostGIS share one query implementation.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joeblew999/plat-parcels/internal/db"
	"github.com/joeblew999/plat-parcels/internal/feature"
)

// ErrNotFound is returned when a parcel does not exist.
var ErrNotFound = errors.New("not found")

// MinSearchLength is the shortest address search term that is executed.
const MinSearchLength = 2

// DefaultSearchLimit caps address search results.
const DefaultSearchLimit = 100

// Store is the data-store contract used by the service layer.
type Store interface {
	LoadOverlay(ctx context.Context, cfg OverlayConfig) ([]feature.Row, error)
	SearchAddresses(ctx context.Context, term string, limit int) ([]AddressMatch, error)
	Parcel(ctx context.Context, id string) (*Parcel, error)
	TaxHistory(ctx context.Context, id string) ([]TaxYear, error)
	Close() error
}

// OverlayConfig says where an overlay's rows live.
type OverlayConfig struct {
	Type             feature.OverlayType `yaml:"type" json:"type"`
	DisplayNameField string              `yaml:"display_name_field" json:"display_name_field"`
	Source           string              `yaml:"source" json:"source"`
	KeyColumn        string              `yaml:"key_column" json:"key_column"`
	GeometryExpr     string              `yaml:"geometry" json:"geometry"`
	// Columns maps metric names to source expressions when they differ.
	Columns map[string]string `yaml:"columns,omitempty" json:"columns,omitempty"`
}

// FeatureConfig is the adapter view of the overlay.
func (c OverlayConfig) FeatureConfig() feature.Config {
	return feature.Config{Type: c.Type, DisplayNameField: c.DisplayNameField}
}

func (c OverlayConfig) column(metric string) string {
	if expr, ok := c.Columns[metric]; ok && expr != "" {
		return expr
	}
	return metric
}

// Validate reports missing required fields.
func (c OverlayConfig) Validate() error {
	switch {
	case c.Type == "":
		return errors.New("overlay type is required")
	case c.Source == "":
		return fmt.Errorf("overlay %s: source is required", c.Type)
	case c.KeyColumn == "":
		return fmt.Errorf("overlay %s: key_column is required", c.Type)
	case c.DisplayNameField == "":
		return fmt.Errorf("overlay %s: display_name_field is required", c.Type)
	}
	return nil
}

// AddressMatch is one address search hit.
type AddressMatch struct {
	Address  string `db:"full_address" json:"address"`
	ParcelID string `db:"parcel_id" json:"parcel_id"`
}

// Parcel is the detail record of one parcel. Absent values are nil.
type Parcel struct {
	ParcelID string `db:"parcel_id" json:"parcel_id"`

	HouseNumber *string `db:"house_nbr" json:"house_nbr,omitempty"`
	StreetDir   *string `db:"street_dir" json:"street_dir,omitempty"`
	StreetName  *string `db:"street_name" json:"street_name,omitempty"`
	StreetType  *string `db:"street_type" json:"street_type,omitempty"`
	Unit        *string `db:"unit" json:"unit,omitempty"`

	PropertyClass   *string  `db:"property_class" json:"property_class,omitempty"`
	PropertyUse     *string  `db:"property_use" json:"property_use,omitempty"`
	HomeStyle       *string  `db:"home_style" json:"home_style,omitempty"`
	YearBuilt       *float64 `db:"year_built" json:"year_built,omitempty"`
	Bedrooms        *float64 `db:"bedrooms" json:"bedrooms,omitempty"`
	FullBaths       *float64 `db:"full_baths" json:"full_baths,omitempty"`
	HalfBaths       *float64 `db:"half_baths" json:"half_baths,omitempty"`
	TotalLivingArea *float64 `db:"total_living_area" json:"total_living_area,omitempty"`

	CurrentLandValue        *float64 `db:"current_land_value" json:"current_land_value,omitempty"`
	CurrentImprovementValue *float64 `db:"current_improvement_value" json:"current_improvement_value,omitempty"`
	CurrentTotalValue       *float64 `db:"current_total_value" json:"current_total_value,omitempty"`
	LandShareProperty       *float64 `db:"land_share_property" json:"land_share_property,omitempty"`
	LotSize                 *float64 `db:"lot_size" json:"lot_size,omitempty"`
	NetTaxes                *float64 `db:"net_taxes" json:"net_taxes,omitempty"`
	TaxRate                 *float64 `db:"tax_rate" json:"tax_rate,omitempty"`
	NetTaxesPerSqftLot      *float64 `db:"net_taxes_per_sqft_lot" json:"net_taxes_per_sqft_lot,omitempty"`
	LandValueShiftTaxes     *float64 `db:"land_value_shift_taxes" json:"land_value_shift_taxes,omitempty"`
}

// AddressParts returns the address columns for formatting.
func (p *Parcel) AddressParts() (house, dir, name, typ, unit string) {
	return deref(p.HouseNumber), deref(p.StreetDir), deref(p.StreetName), deref(p.StreetType), deref(p.Unit)
}

// TaxYear is one row of a parcel's tax roll.
type TaxYear struct {
	TaxYear            int      `db:"tax_year" json:"tax_year"`
	TotalAssessedValue *float64 `db:"total_assessed_value" json:"total_assessed_value"`
	NetTax             *float64 `db:"net_tax" json:"net_tax"`
	CityTax            *float64 `db:"city_tax" json:"city_tax"`
	CountyTax          *float64 `db:"county_tax" json:"county_tax"`
	SchoolTax          *float64 `db:"school_tax" json:"school_tax"`
	MATCTax            *float64 `db:"matc_tax" json:"matc_tax"`
	EffectiveTaxRate   *float64 `db:"-" json:"effective_tax_rate"`
}

// withEffectiveRate sets EffectiveTaxRate to net/assessed*100 when the
// assessed value is positive.
func withEffectiveRate(rows []TaxYear) []TaxYear {
	for i := range rows {
		r := &rows[i]
		r.EffectiveTaxRate = nil
		if r.NetTax != nil && r.TotalAssessedValue != nil && *r.TotalAssessedValue > 0 {
			rate := *r.NetTax / *r.TotalAssessedValue * 100
			r.EffectiveTaxRate = &rate
		}
	}
	return rows
}

// Relation renders a configured source as a FROM clause target: parquet
// paths and globs are wrapped in read_parquet, anything else is used as a
// table or view name.
func Relation(src string) string {
	s := strings.TrimSpace(src)
	if strings.Contains(strings.ToLower(s), ".parquet") {
		return "read_parquet(" + db.Quote(s) + ")"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
