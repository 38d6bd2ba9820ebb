package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-parcels/internal/feature"
)

// Sources names the relations holding parcel detail and tax roll rows.
type Sources struct {
	Parcels string `yaml:"parcels" json:"parcels"`
	TaxRoll string `yaml:"tax_roll" json:"tax_roll"`
}

// sqlStore implements Store over any sqlx connection. Placeholders are
// written as ? and rebound for the driver.
type sqlStore struct {
	db       *sqlx.DB
	sources  Sources
	relation func(string) string
	geometry func(OverlayConfig) string
	log      *zap.Logger
}

// addressExpr assembles "123 N Main St Unit 4" from the address columns.
const addressExpr = `TRIM(CONCAT(
	CAST(house_nbr AS VARCHAR),
	CASE WHEN street_dir IS NOT NULL AND street_dir != '' THEN ' ' || street_dir ELSE '' END,
	' ', street_name,
	CASE WHEN street_type IS NOT NULL AND street_type != '' THEN ' ' || street_type ELSE '' END,
	CASE WHEN unit IS NOT NULL AND CAST(unit AS VARCHAR) != '' THEN ' Unit ' || CAST(unit AS VARCHAR) ELSE '' END
))`

type overlayRow struct {
	Key                    string          `db:"feature_key"`
	Label                  sql.NullString  `db:"feature_label"`
	Geometry               []byte          `db:"feature_geometry"`
	TotalValue             sql.NullFloat64 `db:"total_value"`
	LandValue              sql.NullFloat64 `db:"land_value"`
	LotSize                sql.NullFloat64 `db:"lot_size"`
	NetTaxes               sql.NullFloat64 `db:"net_taxes"`
	NetTaxesPerSqft        sql.NullFloat64 `db:"net_taxes_per_sqft"`
	TaxesPerCityStreetSqft sql.NullFloat64 `db:"taxes_per_city_street_sqft"`
	LandValuePerSqft       sql.NullFloat64 `db:"land_value_per_sqft"`
	AlignmentIndex         sql.NullFloat64 `db:"alignment_index"`
}

func (r overlayRow) row() feature.Row {
	return feature.Row{
		Key:      r.Key,
		Label:    r.Label.String,
		Geometry: r.Geometry,
		Metrics: feature.Metrics{
			TotalValue:             nullable(r.TotalValue),
			LandValue:              nullable(r.LandValue),
			LotSize:                nullable(r.LotSize),
			NetTaxes:               nullable(r.NetTaxes),
			NetTaxesPerSqft:        nullable(r.NetTaxesPerSqft),
			TaxesPerCityStreetSqft: nullable(r.TaxesPerCityStreetSqft),
			LandValuePerSqft:       nullable(r.LandValuePerSqft),
			AlignmentIndex:         nullable(r.AlignmentIndex),
		},
	}
}

func nullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func (s *sqlStore) overlayQuery(cfg OverlayConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT CAST(%s AS VARCHAR) AS feature_key, CAST(%s AS VARCHAR) AS feature_label, %s AS feature_geometry",
		cfg.KeyColumn, cfg.DisplayNameField, s.geometry(cfg))
	for _, m := range feature.MetricNames {
		fmt.Fprintf(&b, ", CAST(%s AS DOUBLE PRECISION) AS %s", cfg.column(m), m)
	}
	fmt.Fprintf(&b, " FROM %s ORDER BY 1", s.relation(cfg.Source))
	return b.String()
}

// LoadOverlay reads every row of an overlay source.
func (s *sqlStore) LoadOverlay(ctx context.Context, cfg OverlayConfig) ([]feature.Row, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var rows []overlayRow
	if err := s.db.SelectContext(ctx, &rows, s.overlayQuery(cfg)); err != nil {
		return nil, fmt.Errorf("load overlay %s: %w", cfg.Type, err)
	}
	out := make([]feature.Row, len(rows))
	for i, r := range rows {
		out[i] = r.row()
	}
	s.log.Debug("overlay rows loaded", zap.String("overlay", string(cfg.Type)), zap.Int("rows", len(out)))
	return out, nil
}

// SearchAddresses finds parcels whose address contains term. Terms shorter
// than MinSearchLength return no results. Prefix matches sort first.
func (s *sqlStore) SearchAddresses(ctx context.Context, term string, limit int) ([]AddressMatch, error) {
	term = strings.TrimSpace(term)
	if len(term) < MinSearchLength {
		return []AddressMatch{}, nil
	}
	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}
	q := fmt.Sprintf(`WITH addresses AS (
	SELECT %s AS full_address, CAST(parcel_id AS VARCHAR) AS parcel_id, house_nbr, street_name
	FROM %s
)
SELECT full_address, parcel_id FROM addresses
WHERE full_address ILIKE ?
ORDER BY CASE WHEN full_address ILIKE ? THEN 1 ELSE 2 END, house_nbr, street_name
LIMIT ?`, addressExpr, s.relation(s.sources.Parcels))

	out := []AddressMatch{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), "%"+term+"%", term+"%", limit); err != nil {
		return nil, fmt.Errorf("search addresses: %w", err)
	}
	return out, nil
}

// Parcel returns one parcel's detail record.
func (s *sqlStore) Parcel(ctx context.Context, id string) (*Parcel, error) {
	q := fmt.Sprintf("SELECT * FROM %s WHERE CAST(parcel_id AS VARCHAR) = ? LIMIT 1", s.relation(s.sources.Parcels))
	var p Parcel
	// Unsafe ignores the source's extra columns.
	err := s.db.Unsafe().GetContext(ctx, &p, s.db.Rebind(q), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load parcel %s: %w", id, err)
	}
	return &p, nil
}

// TaxHistory returns a parcel's tax roll ordered by year.
func (s *sqlStore) TaxHistory(ctx context.Context, id string) ([]TaxYear, error) {
	q := fmt.Sprintf(`SELECT CAST(tax_year AS INTEGER) AS tax_year,
	CAST(total_assessed_value AS DOUBLE PRECISION) AS total_assessed_value,
	CAST(net_tax AS DOUBLE PRECISION) AS net_tax,
	CAST(city_tax AS DOUBLE PRECISION) AS city_tax,
	CAST(county_tax AS DOUBLE PRECISION) AS county_tax,
	CAST(school_tax AS DOUBLE PRECISION) AS school_tax,
	CAST(matc_tax AS DOUBLE PRECISION) AS matc_tax
FROM %s WHERE CAST(parcel_id AS VARCHAR) = ? ORDER BY tax_year`, s.relation(s.sources.TaxRoll))
	out := []TaxYear{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), id); err != nil {
		return nil, fmt.Errorf("load tax history %s: %w", id, err)
	}
	return withEffectiveRate(out), nil
}

// Close closes the connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}
