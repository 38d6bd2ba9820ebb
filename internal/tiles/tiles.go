// Package tiles renders overlay collections as Mapbox vector tiles.
package tiles

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-parcels/internal/feature"
)

// MaxZoom is the deepest zoom level served.
const MaxZoom = 22

// Encode returns the gzipped MVT for one tile of coll, or nil when no
// feature reaches the tile. colors is aligned with coll.Features and is
// published as fillColor. The layer is named after the overlay type.
func Encode(coll *feature.Collection, colors []string, tile maptile.Tile) ([]byte, error) {
	if tile.Z > MaxZoom || !tile.Valid() {
		return nil, fmt.Errorf("invalid tile %d/%d/%d", tile.Z, tile.X, tile.Y)
	}
	bound := tile.Bound()

	fc := geojson.NewFeatureCollection()
	for _, f := range coll.GeoJSON(colors).Features {
		if !intersects(f.Geometry, bound) {
			continue
		}
		// Clip and ProjectToTile mutate in place.
		f.Geometry = orb.Clone(f.Geometry)
		for k, v := range f.Properties {
			if v == nil {
				delete(f.Properties, k)
			}
		}
		fc.Append(f)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	layer := mvt.NewLayer(string(coll.Config().Type), fc)
	if eps := simplifyEpsilon(tile.Z); eps > 0 {
		layer.Simplify(simplify.DouglasPeucker(eps))
	}
	layer.Clip(bound)
	layer.ProjectToTile(tile)
	layer.RemoveEmpty(0.5, 0.5)
	if len(layer.Features) == 0 {
		return nil, nil
	}

	data, err := mvt.MarshalGzipped(mvt.Layers{layer})
	if err != nil {
		return nil, fmt.Errorf("encode tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
	}
	return data, nil
}

// Covering returns every tile at zoom z that touches bound.
func Covering(bound orb.Bound, z maptile.Zoom) []maptile.Tile {
	lo := maptile.At(orb.Point{bound.Min[0], bound.Max[1]}, z)
	hi := maptile.At(orb.Point{bound.Max[0], bound.Min[1]}, z)
	minX, maxX := min(lo.X, hi.X), max(lo.X, hi.X)
	minY, maxY := min(lo.Y, hi.Y), max(lo.Y, hi.Y)

	var out []maptile.Tile
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			out = append(out, maptile.New(x, y, z))
		}
	}
	return out
}

// intersects is an exact test for polygonal geometry after a bounding box
// rejection.
func intersects(geom orb.Geometry, b orb.Bound) bool {
	if !geom.Bound().Intersects(b) {
		return false
	}
	switch g := geom.(type) {
	case orb.Polygon:
		for _, ring := range g {
			for _, p := range ring {
				if b.Contains(p) {
					return true
				}
			}
		}
		corners := []orb.Point{b.Min, {b.Max[0], b.Min[1]}, b.Max, {b.Min[0], b.Max[1]}}
		for _, p := range corners {
			if planar.PolygonContains(g, p) {
				return true
			}
		}
		// A strip can cross the tile with no vertex inside and no corner
		// covered; only its edges meet the tile edges.
		for _, ring := range g {
			for i := 1; i < len(ring); i++ {
				for j := range corners {
					if segmentsCross(ring[i-1], ring[i], corners[j], corners[(j+1)%len(corners)]) {
						return true
					}
				}
			}
		}
		return false
	case orb.MultiPolygon:
		for _, p := range g {
			if intersects(p, b) {
				return true
			}
		}
		return false
	}
	return true
}

// segmentsCross reports whether segments ab and cd share a point.
func segmentsCross(a, b, c, d orb.Point) bool {
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(c, d, a)) || (d2 == 0 && onSegment(c, d, b)) ||
		(d3 == 0 && onSegment(a, b, c)) || (d4 == 0 && onSegment(a, b, d))
}

// orient is the cross product of (b-a) and (c-a).
func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment reports whether p, collinear with ab, lies within its bound.
func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

// simplifyEpsilon is the Douglas-Peucker tolerance, in degrees, for a
// zoom level. Parcels are small, so detail is kept from zoom 14 up.
func simplifyEpsilon(z maptile.Zoom) float64 {
	switch {
	case z >= 14:
		return 0
	case z >= 12:
		return 0.000005
	case z >= 10:
		return 0.00002
	case z >= 6:
		return 0.0001
	}
	return 0.001
}
