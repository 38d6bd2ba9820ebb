package feature

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-parcels/internal/format"
)

// Collection is the read-only set of features produced by one load.
type Collection struct {
	cfg      Config
	features []Feature
	byID     map[int64]int
	byKey    map[string]int
}

func newCollection(cfg Config, capacity int) *Collection {
	return &Collection{
		cfg:      cfg,
		features: make([]Feature, 0, capacity),
		byID:     make(map[int64]int, capacity),
		byKey:    make(map[string]int, capacity),
	}
}

func (c *Collection) add(f Feature) {
	c.byID[f.ID] = len(c.features)
	c.byKey[f.FeatureID] = len(c.features)
	c.features = append(c.features, f)
}

// NewCollection builds a collection from already-normalized features.
// IDs are kept as given.
func NewCollection(cfg Config, features []Feature) *Collection {
	c := newCollection(cfg, len(features))
	for _, f := range features {
		c.add(f)
	}
	return c
}

// Config returns the overlay configuration the collection was built with.
func (c *Collection) Config() Config { return c.cfg }

// Len returns the number of features.
func (c *Collection) Len() int { return len(c.features) }

// Features returns the features in load order. Callers must not modify them.
func (c *Collection) Features() []Feature { return c.features }

// ByID looks up a feature by its state-tracking ID.
func (c *Collection) ByID(id int64) (Feature, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Feature{}, false
	}
	return c.features[i], true
}

// ByFeatureID looks up a feature by business key.
func (c *Collection) ByFeatureID(key string) (Feature, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Feature{}, false
	}
	return c.features[i], true
}

// Values returns the named metric for every feature, in load order.
// Unknown metrics yield all-NaN values.
func (c *Collection) Values(metric string) []float64 {
	out := make([]float64, len(c.features))
	for i, f := range c.features {
		v, ok := f.Metrics.Value(metric)
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// Bound returns the bounding box of all geometries.
func (c *Collection) Bound() orb.Bound {
	if len(c.features) == 0 {
		return orb.Bound{}
	}
	b := c.features[0].Geometry.Bound()
	for _, f := range c.features[1:] {
		b = b.Union(f.Geometry.Bound())
	}
	return b
}

// GeoJSON renders the collection for the map surface. colors, when
// non-nil, must be aligned with Features and is published as fillColor.
func (c *Collection) GeoJSON(colors []string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	labelField := c.cfg.DisplayNameField
	if labelField == "" {
		labelField = "label"
	}
	for i, f := range c.features {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.ID
		props := gf.Properties
		props["feature_id"] = f.FeatureID
		props["overlay_type"] = string(f.OverlayType)
		props["label"] = f.Label
		props[labelField] = f.Label
		for name, v := range f.Metrics.Map() {
			props[name] = jsonSafe(v)
		}
		props["display_total_value"] = format.Currency(f.Metrics.TotalValue)
		props["display_land_value"] = format.Currency(f.Metrics.LandValue)
		props["display_lot_size"] = format.Sqft(f.Metrics.LotSize)
		props["display_net_taxes"] = format.Currency(f.Metrics.NetTaxes)
		if i < len(colors) {
			props["fillColor"] = colors[i]
		}
		fc.Append(gf)
	}
	return fc
}

// jsonSafe maps NaN and Inf to nil; encoding/json rejects them.
func jsonSafe(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
