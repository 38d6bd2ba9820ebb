package feature

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func square(x, y float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}}
}

func mustWKB(t *testing.T, g orb.Geometry) []byte {
	t.Helper()
	b, err := wkb.Marshal(g)
	require.NoError(t, err)
	return b
}

func metrics(total, land, lot, taxes float64) Metrics {
	m := MissingMetrics()
	m.TotalValue, m.LandValue, m.LotSize, m.NetTaxes = total, land, lot, taxes
	m.AlignmentIndex = 1
	return m
}

func TestAdaptDropsBadGeometry(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rows := []Row{
		{Key: "A", Label: "1 Main St", Geometry: mustWKB(t, square(0, 0)), Metrics: metrics(100, 50, 10, 5)},
		{Key: "B", Label: "2 Main St", Geometry: []byte("garbage"), Metrics: metrics(1, 1, 1, 1)},
		{Key: "C", Label: "", Geometry: mustWKB(t, orb.Point{1, 2}), Metrics: metrics(1, 1, 1, 1)},
		{Key: "D", Label: "4 Main St", Geometry: []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`), Metrics: metrics(1, 1, 0, 1)},
	}

	c := Adapt(rows, Config{Type: Parcel, DisplayNameField: "address"}, zap.New(core))

	require.Equal(t, 2, c.Len(), "rows B and C are dropped")
	assert.Equal(t, 2, logs.Len())

	a, ok := c.ByFeatureID("A")
	require.True(t, ok)
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, Parcel, a.OverlayType)

	d, ok := c.ByID(2)
	require.True(t, ok)
	assert.Equal(t, "D", d.FeatureID)
	_, ok = c.ByFeatureID("B")
	assert.False(t, ok)
}

func TestAdaptNormalizesMetrics(t *testing.T) {
	rows := []Row{
		{Key: "A", Geometry: mustWKB(t, square(0, 0)), Metrics: metrics(100, 50, 10, 5)},
		{Key: "Z", Geometry: mustWKB(t, square(2, 0)), Metrics: metrics(100, 50, 0, 5)},
	}
	c := Adapt(rows, Config{Type: AreaPlan}, nil)

	a, _ := c.ByFeatureID("A")
	assert.Equal(t, "N/A", a.Label)
	assert.InDelta(t, 0.5, a.Metrics.NetTaxesPerSqft, 1e-9)
	assert.InDelta(t, 5.0, a.Metrics.LandValuePerSqft, 1e-9)
	assert.Equal(t, 0.0, a.Metrics.TaxesPerCityStreetSqft, "missing street metric becomes 0")

	z, _ := c.ByFeatureID("Z")
	assert.Equal(t, 0.0, z.Metrics.NetTaxesPerSqft, "zero lot size is division safe")
}

func TestAdaptParcelStreetMetricIsZero(t *testing.T) {
	m := metrics(1, 1, 1, 1)
	m.TaxesPerCityStreetSqft = 3.5
	c := Adapt([]Row{{Key: "P", Geometry: mustWKB(t, square(0, 0)), Metrics: m}}, Config{Type: Parcel}, nil)
	p, _ := c.ByFeatureID("P")
	assert.Equal(t, 0.0, p.Metrics.TaxesPerCityStreetSqft)

	c = Adapt([]Row{{Key: "P", Geometry: mustWKB(t, square(0, 0)), Metrics: m}}, Config{Type: AlderDistrict}, nil)
	p, _ = c.ByFeatureID("P")
	assert.Equal(t, 3.5, p.Metrics.TaxesPerCityStreetSqft)
}

func TestCollectionGeoJSON(t *testing.T) {
	m := metrics(250000, 100000, 5000, 4000)
	m.AlignmentIndex = math.NaN()
	c := Adapt([]Row{{Key: "0708-123", Label: "12 Oak Ave", Geometry: mustWKB(t, square(0, 0)), Metrics: m}},
		Config{Type: Parcel, DisplayNameField: "address"}, nil)

	fc := c.GeoJSON([]string{"rgba(1, 2, 3, 0.70)"})
	data, err := json.Marshal(fc)
	require.NoError(t, err, "NaN metrics must not break encoding")

	var decoded struct {
		Features []struct {
			ID         int64          `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Features, 1)
	props := decoded.Features[0].Properties
	assert.Equal(t, int64(1), decoded.Features[0].ID)
	assert.Equal(t, "0708-123", props["feature_id"])
	assert.Equal(t, "12 Oak Ave", props["address"])
	assert.Equal(t, "parcel", props["overlay_type"])
	assert.Equal(t, "$250,000", props["display_total_value"])
	assert.Equal(t, "rgba(1, 2, 3, 0.70)", props["fillColor"])
	assert.Nil(t, props["alignment_index"])
}

func TestParseOverlayType(t *testing.T) {
	for in, want := range map[string]OverlayType{
		"parcels": Parcel, "Area Plan": AreaPlan, "alder-districts": AlderDistrict, "parcel": Parcel,
	} {
		got, err := ParseOverlayType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseOverlayType("wards")
	assert.Error(t, err)
}
