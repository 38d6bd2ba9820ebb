package store

import (
	"context"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-parcels/internal/db"
	"github.com/joeblew999/plat-parcels/internal/feature"
)

func newTestDuckDB(t *testing.T) *DuckDB {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Extensions: []string{}}, nil)
	require.NoError(t, err)

	stmts := []string{
		`CREATE TABLE parcels (parcel_id VARCHAR, house_nbr INTEGER, street_dir VARCHAR, street_name VARCHAR,
			street_type VARCHAR, unit VARCHAR, property_class VARCHAR, lot_size DOUBLE, net_taxes DOUBLE, extra VARCHAR)`,
		`INSERT INTO parcels VALUES
			('P1', 123, 'N', 'Main', 'St', NULL, 'Residential', 5000, 4200, 'x'),
			('P2', 45, NULL, 'Mainview', 'Ave', '2', 'Commercial', 8000, NULL, 'y'),
			('P3', 9, 'S', 'Park', 'St', '', NULL, NULL, NULL, 'z'),
			('P4', 12, NULL, 'Elm', 'St', '45', NULL, NULL, NULL, 'w')`,
		`CREATE TABLE tax_roll (parcel_id VARCHAR, tax_year INTEGER, total_assessed_value DOUBLE, net_tax DOUBLE,
			city_tax DOUBLE, county_tax DOUBLE, school_tax DOUBLE, matc_tax DOUBLE)`,
		`INSERT INTO tax_roll VALUES
			('P1', 2023, 0, 4300, 1000, 500, 2500, 300),
			('P1', 2022, 200000, 4000, 900, 450, 2400, 250),
			('P2', 2023, 300000, 6000, 1500, 700, 3300, 500)`,
		`CREATE TABLE area_plans (plan_id VARCHAR, plan_name VARCHAR, geometry BLOB, total_value DOUBLE,
			land_value DOUBLE, lot_size DOUBLE, net_taxes DOUBLE, net_taxes_per_sqft DOUBLE,
			taxes_per_city_street_sqft DOUBLE, land_value_per_sqft DOUBLE, align DOUBLE)`,
	}
	for _, s := range stmts {
		_, err := conn.ExecContext(ctx, s)
		require.NoError(t, err, s)
	}

	square, err := wkb.Marshal(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}})
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO area_plans VALUES (?, ?, ?, 1000, 400, 200, 50, NULL, 0.5, NULL, 1.25)`,
		"AP1", "Downtown", square)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO area_plans VALUES ('AP2', NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL)`)
	require.NoError(t, err)

	s := NewDuckDB(conn, Sources{Parcels: "parcels", TaxRoll: "tax_roll"}, nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func areaPlanConfig() OverlayConfig {
	return OverlayConfig{
		Type:             feature.AreaPlan,
		DisplayNameField: "plan_name",
		Source:           "area_plans",
		KeyColumn:        "plan_id",
		GeometryExpr:     "geometry",
		Columns:          map[string]string{feature.AlignmentIndex: "align"},
	}
}

func TestSearchAddresses(t *testing.T) {
	s := newTestDuckDB(t)
	ctx := context.Background()

	got, err := s.SearchAddresses(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.SearchAddresses(ctx, "main", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, AddressMatch{Address: "45 Mainview Ave Unit 2", ParcelID: "P2"}, got[0])
	assert.Equal(t, AddressMatch{Address: "123 N Main St", ParcelID: "P1"}, got[1])

	got, err = s.SearchAddresses(ctx, "45", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "P2", got[0].ParcelID, "prefix match ranks first")
	assert.Equal(t, "12 Elm St Unit 45", got[1].Address)

	got, err = s.SearchAddresses(ctx, "st", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestParcel(t *testing.T) {
	s := newTestDuckDB(t)
	ctx := context.Background()

	p, err := s.Parcel(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "P1", p.ParcelID)
	require.NotNil(t, p.HouseNumber)
	assert.Equal(t, "123", *p.HouseNumber)
	require.NotNil(t, p.LotSize)
	assert.Equal(t, 5000.0, *p.LotSize)
	assert.Nil(t, p.Unit)
	assert.Nil(t, p.HomeStyle)

	house, dir, name, typ, unit := p.AddressParts()
	assert.Equal(t, []string{"123", "N", "Main", "St", ""}, []string{house, dir, name, typ, unit})

	_, err = s.Parcel(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaxHistory(t *testing.T) {
	s := newTestDuckDB(t)

	rows, err := s.TaxHistory(context.Background(), "P1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2022, rows[0].TaxYear)
	assert.Equal(t, 2023, rows[1].TaxYear)
	require.NotNil(t, rows[0].EffectiveTaxRate)
	assert.InDelta(t, 2.0, *rows[0].EffectiveTaxRate, 1e-9)
	assert.Nil(t, rows[1].EffectiveTaxRate, "zero assessed value has no rate")

	rows, err = s.TaxHistory(context.Background(), "none")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoadOverlay(t *testing.T) {
	s := newTestDuckDB(t)

	rows, err := s.LoadOverlay(context.Background(), areaPlanConfig())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "AP1", rows[0].Key)
	assert.Equal(t, "Downtown", rows[0].Label)
	assert.Equal(t, 1000.0, rows[0].Metrics.TotalValue)
	assert.Equal(t, 1.25, rows[0].Metrics.AlignmentIndex)
	assert.True(t, math.IsNaN(rows[0].Metrics.NetTaxesPerSqft))

	assert.Empty(t, rows[1].Geometry)
	assert.Empty(t, rows[1].Label)

	coll := feature.Adapt(rows, areaPlanConfig().FeatureConfig(), nil)
	assert.Equal(t, 1, coll.Len(), "row without geometry is dropped")
}

func TestLoadOverlayValidates(t *testing.T) {
	s := newTestDuckDB(t)
	cfg := areaPlanConfig()
	cfg.KeyColumn = ""
	_, err := s.LoadOverlay(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRelation(t *testing.T) {
	assert.Equal(t, "read_parquet('gs://bucket/fact_parcels.parquet')", Relation("gs://bucket/fact_parcels.parquet"))
	assert.Equal(t, "read_parquet('data/*.PARQUET')", Relation(" data/*.PARQUET "))
	assert.Equal(t, "parcels", Relation("parcels"))
}
