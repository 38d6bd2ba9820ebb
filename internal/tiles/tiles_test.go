package tiles

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-parcels/internal/feature"
)

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func testCollection() *feature.Collection {
	m := feature.MissingMetrics()
	m.TotalValue = 1000
	return feature.NewCollection(
		feature.Config{Type: feature.Parcel, DisplayNameField: "address"},
		[]feature.Feature{
			{ID: 1, FeatureID: "A", OverlayType: feature.Parcel, Label: "1 Main St", Geometry: square(-89.40, 43.07, 0.001), Metrics: m},
			{ID: 2, FeatureID: "B", OverlayType: feature.Parcel, Label: "2 Main St", Geometry: square(10, 10, 0.001), Metrics: m},
		},
	)
}

func decode(t *testing.T, data []byte) mvt.Layers {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	layers, err := mvt.Unmarshal(raw)
	require.NoError(t, err)
	return layers
}

func TestEncode(t *testing.T) {
	coll := testCollection()
	tile := maptile.At(orb.Point{-89.3995, 43.0705}, 14)

	data, err := Encode(coll, []string{"rgba(1, 2, 3, 0.70)", "rgba(4, 5, 6, 0.70)"}, tile)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	layers := decode(t, data)
	require.Len(t, layers, 1)
	assert.Equal(t, "parcel", layers[0].Name)
	require.Len(t, layers[0].Features, 1)
	props := layers[0].Features[0].Properties
	assert.Equal(t, "A", props["feature_id"])
	assert.Equal(t, "rgba(1, 2, 3, 0.70)", props["fillColor"])
	assert.NotContains(t, props, "net_taxes", "missing metrics are omitted")
}

func TestEncodeEmptyTile(t *testing.T) {
	data, err := Encode(testCollection(), nil, maptile.New(0, 0, 10))
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestEncodeDoesNotMutateCollection(t *testing.T) {
	coll := testCollection()
	before := orb.Clone(coll.Features()[0].Geometry)
	_, err := Encode(coll, nil, maptile.At(orb.Point{-89.3995, 43.0705}, 16))
	require.NoError(t, err)
	assert.Equal(t, before, coll.Features()[0].Geometry)
}

func TestEncodeRejectsInvalidTile(t *testing.T) {
	_, err := Encode(testCollection(), nil, maptile.New(5, 0, 2))
	assert.Error(t, err)
}

func TestCovering(t *testing.T) {
	b := testCollection().Features()[0].Geometry.Bound()
	tiles := Covering(b, 10)
	require.NotEmpty(t, tiles)
	for _, tl := range tiles {
		assert.True(t, tl.Bound().Intersects(b))
	}
	assert.Len(t, Covering(orb.Bound{Min: orb.Point{-179, -84}, Max: orb.Point{179, 84}}, 1), 4)
}

func TestEncodeStripCrossingTile(t *testing.T) {
	tile := maptile.At(orb.Point{-89.40, 43.07}, 14)
	b := tile.Bound()
	h := b.Max[1] - b.Min[1]
	strip := orb.Polygon{{
		{b.Min[0] - 0.1, b.Min[1] + 0.2*h},
		{b.Max[0] + 0.1, b.Min[1] + 0.2*h},
		{b.Max[0] + 0.1, b.Min[1] + 0.3*h},
		{b.Min[0] - 0.1, b.Min[1] + 0.3*h},
		{b.Min[0] - 0.1, b.Min[1] + 0.2*h},
	}}
	coll := feature.NewCollection(
		feature.Config{Type: feature.Parcel, DisplayNameField: "address"},
		[]feature.Feature{{ID: 1, FeatureID: "RAIL", OverlayType: feature.Parcel, Label: "Rail corridor", Geometry: strip, Metrics: feature.MissingMetrics()}},
	)

	data, err := Encode(coll, nil, tile)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	layers := decode(t, data)
	require.Len(t, layers, 1)
	require.Len(t, layers[0].Features, 1)
	assert.Equal(t, "RAIL", layers[0].Features[0].Properties["feature_id"])
}

func TestIntersects(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	tests := []struct {
		name string
		geom orb.Geometry
		want bool
	}{
		{"vertex inside", square(0.5, 0.5, 1), true},
		{"covers tile", square(-1, -1, 3), true},
		{"horizontal strip", orb.Polygon{{{-1, 0.4}, {2, 0.4}, {2, 0.6}, {-1, 0.6}, {-1, 0.4}}}, true},
		{"vertical strip", orb.Polygon{{{0.4, -1}, {0.6, -1}, {0.6, 2}, {0.4, 2}, {0.4, -1}}}, true},
		{"bound overlaps only", orb.Polygon{{{-1, 1.5}, {1.5, -1}, {-1, -1}, {-1, 1.5}}}, true},
		{"L outside", orb.Polygon{{{-1, -1}, {2, -1}, {2, -0.5}, {-0.5, -0.5}, {-0.5, 2}, {-1, 2}, {-1, -1}}}, false},
		{"far away", square(5, 5, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, intersects(tt.geom, b))
		})
	}
}
