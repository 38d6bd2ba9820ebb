package feature

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// Config describes how rows of one overlay become features.
type Config struct {
	Type             OverlayType
	DisplayNameField string // property name the label is published under
}

// Row is one data-store record before normalization.
type Row struct {
	Key      string // business key
	Label    string // value of the display-name column
	Geometry []byte // WKB, or GeoJSON geometry JSON
	Metrics  Metrics
}

// ErrGeometry is returned by DecodeGeometry for unusable geometry.
var ErrGeometry = errors.New("unsupported geometry")

// Adapt normalizes rows into a Collection. Rows with unparsable or
// non-polygonal geometry are dropped and logged, so the result may be
// shorter than rows.
func Adapt(rows []Row, cfg Config, log *zap.Logger) *Collection {
	if log == nil {
		log = zap.NewNop()
	}
	c := newCollection(cfg, len(rows))
	dropped := 0
	for _, r := range rows {
		geom, err := DecodeGeometry(r.Geometry)
		if err != nil {
			dropped++
			log.Warn("dropping feature with bad geometry",
				zap.String("overlay", string(cfg.Type)),
				zap.String("feature_id", r.Key),
				zap.Error(err))
			continue
		}
		label := r.Label
		if label == "" {
			label = "N/A"
		}
		c.add(Feature{
			ID:          int64(len(c.features) + 1),
			FeatureID:   r.Key,
			OverlayType: cfg.Type,
			Label:       label,
			Geometry:    geom,
			Metrics:     normalizeMetrics(r.Metrics, cfg.Type),
		})
	}
	if dropped > 0 {
		log.Info("overlay loaded with dropped rows",
			zap.String("overlay", string(cfg.Type)),
			zap.Int("rows", len(rows)),
			zap.Int("features", c.Len()),
			zap.Int("dropped", dropped))
	}
	return c
}

// DecodeGeometry parses WKB or a GeoJSON geometry object and accepts only
// polygons and multipolygons.
func DecodeGeometry(b []byte) (orb.Geometry, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrGeometry)
	}
	var geom orb.Geometry
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '{' {
		g, err := geojson.UnmarshalGeometry(t)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
		}
		geom = g.Geometry()
	} else {
		g, err := wkb.Unmarshal(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
		}
		geom = g
	}
	switch g := geom.(type) {
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) < 4 {
			return nil, fmt.Errorf("%w: degenerate polygon", ErrGeometry)
		}
	case orb.MultiPolygon:
		if len(g) == 0 {
			return nil, fmt.Errorf("%w: empty multipolygon", ErrGeometry)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrGeometry, geom)
	}
	return geom, nil
}

// normalizeMetrics fills derivable per-sqft values and the street metric.
func normalizeMetrics(m Metrics, t OverlayType) Metrics {
	if isMissing(m.NetTaxesPerSqft) {
		m.NetTaxesPerSqft = perSqft(m.NetTaxes, m.LotSize)
	}
	if isMissing(m.LandValuePerSqft) {
		m.LandValuePerSqft = perSqft(m.LandValue, m.LotSize)
	}
	if t == Parcel || isMissing(m.TaxesPerCityStreetSqft) {
		m.TaxesPerCityStreetSqft = 0
	}
	return m
}

func perSqft(v, lot float64) float64 {
	if isMissing(v) || isMissing(lot) {
		return math.NaN()
	}
	if lot <= 0 {
		return 0
	}
	return v / lot
}

func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
