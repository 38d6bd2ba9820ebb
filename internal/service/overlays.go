package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-parcels/internal/colormap"
	"github.com/joeblew999/plat-parcels/internal/feature"
	"github.com/joeblew999/plat-parcels/internal/metrics"
	"github.com/joeblew999/plat-parcels/internal/store"
	"github.com/joeblew999/plat-parcels/internal/tiles"
)

var (
	ErrUnknownOverlay = errors.New("unknown overlay")
	ErrUnknownMetric  = errors.New("unknown metric")
)

// DefaultMetric colors the map when none is requested.
const DefaultMetric = feature.NetTaxesPerSqft

// OverlayFile is the on-disk overlay configuration.
type OverlayFile struct {
	Sources  store.Sources         `yaml:"sources"`
	Overlays []store.OverlayConfig `yaml:"overlays"`
}

// DefaultOverlays returns the built-in configuration rooted at bucket,
// which may be a local directory or a gs:// prefix.
func DefaultOverlays(bucket string) OverlayFile {
	p := func(name string) string { return bucket + "/" + name + ".parquet" }
	return OverlayFile{
		Sources: store.Sources{Parcels: p("fact_parcels"), TaxRoll: p("fact_tax_roll")},
		Overlays: []store.OverlayConfig{
			{Type: feature.Parcel, DisplayNameField: "address", Source: p("parcel_metrics"), KeyColumn: "parcel_id"},
			{Type: feature.AreaPlan, DisplayNameField: "area_plan_name", Source: p("area_plan_metrics"), KeyColumn: "area_plan_name"},
			{Type: feature.AlderDistrict, DisplayNameField: "alder_district_name", Source: p("alder_district_metrics"), KeyColumn: "alder_district"},
		},
	}
}

// LoadOverlayFile reads path. An empty path returns DefaultOverlays(bucket).
func LoadOverlayFile(path, bucket string) (OverlayFile, error) {
	if path == "" {
		return DefaultOverlays(bucket), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return OverlayFile{}, fmt.Errorf("read overlay config: %w", err)
	}
	var f OverlayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return OverlayFile{}, fmt.Errorf("parse overlay config %s: %w", path, err)
	}
	for _, o := range f.Overlays {
		if err := o.Validate(); err != nil {
			return OverlayFile{}, fmt.Errorf("overlay config %s: %w", path, err)
		}
	}
	return f, nil
}

// OverlayService loads overlay collections from the store, keeps them in
// memory and colors them by metric.
type OverlayService struct {
	store   store.Store
	cfgs    map[feature.OverlayType]store.OverlayConfig
	order   []feature.OverlayType
	metrics *metrics.Metrics
	log     *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	loaded map[feature.OverlayType]*feature.Collection
	gen    map[feature.OverlayType]int
	colors map[colorKey]coloring
}

// coloring remembers which collection a color result was computed from.
type coloring struct {
	coll *feature.Collection
	res  colormap.Result
}

type colorKey struct {
	overlay feature.OverlayType
	metric  string
}

// NewOverlayService registers cfgs in order.
func NewOverlayService(st store.Store, cfgs []store.OverlayConfig, m *metrics.Metrics, log *zap.Logger) (*OverlayService, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &OverlayService{
		store:   st,
		cfgs:    make(map[feature.OverlayType]store.OverlayConfig, len(cfgs)),
		metrics: m,
		log:     log.Named("overlays"),
		loaded:  make(map[feature.OverlayType]*feature.Collection),
		gen:     make(map[feature.OverlayType]int),
		colors:  make(map[colorKey]coloring),
	}
	for _, c := range cfgs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.cfgs[c.Type]; dup {
			return nil, fmt.Errorf("overlay %s configured twice", c.Type)
		}
		s.cfgs[c.Type] = c
		s.order = append(s.order, c.Type)
	}
	return s, nil
}

// Types lists configured overlays in configuration order.
func (s *OverlayService) Types() []feature.OverlayType {
	return slices.Clone(s.order)
}

// Resolve parses and checks an overlay name.
func (s *OverlayService) Resolve(name string) (feature.OverlayType, error) {
	t, err := feature.ParseOverlayType(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownOverlay, name)
	}
	if _, ok := s.cfgs[t]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownOverlay, name)
	}
	return t, nil
}

// Collection returns the overlay's features, loading them on first use.
// Concurrent first calls share one load.
func (s *OverlayService) Collection(ctx context.Context, t feature.OverlayType) (*feature.Collection, error) {
	cfg, ok := s.cfgs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOverlay, t)
	}
	s.mu.RLock()
	coll := s.loaded[t]
	s.mu.RUnlock()
	if coll != nil {
		return coll, nil
	}

	v, err, _ := s.group.Do(string(t), func() (any, error) {
		s.mu.RLock()
		done := s.loaded[t]
		gen := s.gen[t]
		s.mu.RUnlock()
		if done != nil {
			return done, nil
		}
		start := time.Now()
		rows, err := s.store.LoadOverlay(ctx, cfg)
		if err != nil {
			return nil, err
		}
		coll := feature.Adapt(rows, cfg.FeatureConfig(), s.log)
		if s.metrics != nil {
			s.metrics.FeaturesLoaded.WithLabelValues(string(t)).Set(float64(coll.Len()))
			s.metrics.FeaturesDropped.WithLabelValues(string(t)).Add(float64(len(rows) - coll.Len()))
		}
		s.mu.Lock()
		// A Reload during the load makes this result stale for the cache.
		if s.gen[t] == gen {
			s.loaded[t] = coll
		}
		s.mu.Unlock()
		s.log.Info("overlay loaded",
			zap.String("overlay", string(t)),
			zap.Int("rows", len(rows)),
			zap.Int("features", coll.Len()),
			zap.Duration("took", time.Since(start)))
		return coll, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*feature.Collection), nil
}

// Colors returns the viridis fill colors of an overlay for metric.
func (s *OverlayService) Colors(ctx context.Context, t feature.OverlayType, metric string) (colormap.Result, error) {
	_, res, err := s.colored(ctx, t, metric)
	return res, err
}

// colored returns a collection together with colors computed from that
// same collection, so a Reload in between cannot pair old colors with new
// features.
func (s *OverlayService) colored(ctx context.Context, t feature.OverlayType, metric string) (*feature.Collection, colormap.Result, error) {
	if !slices.Contains(feature.MetricNames, metric) {
		return nil, colormap.Result{}, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	coll, err := s.Collection(ctx, t)
	if err != nil {
		return nil, colormap.Result{}, err
	}
	key := colorKey{t, metric}
	s.mu.RLock()
	c, ok := s.colors[key]
	s.mu.RUnlock()
	if ok && c.coll == coll {
		return coll, c.res, nil
	}
	res := colormap.Compute(coll.Values(metric))
	s.mu.Lock()
	if s.loaded[t] == coll {
		s.colors[key] = coloring{coll: coll, res: res}
	}
	s.mu.Unlock()
	return coll, res, nil
}

// GeoJSON returns the colored feature collection for the map surface.
func (s *OverlayService) GeoJSON(ctx context.Context, t feature.OverlayType, metric string) (*geojson.FeatureCollection, colormap.Result, error) {
	coll, res, err := s.colored(ctx, t, metric)
	if err != nil {
		return nil, colormap.Result{}, err
	}
	return coll.GeoJSON(res.CSS()), res, nil
}

// Tile renders one vector tile of the colored overlay.
func (s *OverlayService) Tile(ctx context.Context, t feature.OverlayType, metric string, tile maptile.Tile) ([]byte, error) {
	coll, res, err := s.colored(ctx, t, metric)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	data, err := tiles.Encode(coll, res.CSS(), tile)
	if s.metrics != nil {
		s.metrics.TileDuration.Observe(time.Since(start).Seconds())
	}
	return data, err
}

// Archive renders the colored overlay into a PMTiles archive covering
// minZoom through maxZoom.
func (s *OverlayService) Archive(ctx context.Context, t feature.OverlayType, metric string, minZoom, maxZoom maptile.Zoom) (*tiles.Archive, error) {
	coll, res, err := s.colored(ctx, t, metric)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	a, err := tiles.Export(ctx, coll, res.CSS(), minZoom, maxZoom)
	if err != nil {
		return nil, err
	}
	s.log.Info("overlay archived",
		zap.String("overlay", string(t)),
		zap.Int("tiles", a.Len()),
		zap.Duration("took", time.Since(start)))
	return a, nil
}

// Reload drops the cached collection and colors of t. The next request
// reads the overlay from the store again; sessions keep the collection
// they already hold.
func (s *OverlayService) Reload(t feature.OverlayType) error {
	if _, ok := s.cfgs[t]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOverlay, t)
	}
	s.group.Forget(string(t))
	s.mu.Lock()
	s.gen[t]++
	delete(s.loaded, t)
	for k := range s.colors {
		if k.overlay == t {
			delete(s.colors, k)
		}
	}
	s.mu.Unlock()
	s.log.Info("overlay reload requested", zap.String("overlay", string(t)))
	return nil
}

// Summaries describes every configured overlay. Unloaded overlays report
// zero features.
func (s *OverlayService) Summaries() []OverlaySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OverlaySummary, 0, len(s.order))
	for _, t := range s.order {
		sum := OverlaySummary{
			Type:             t,
			Title:            t.Title(),
			DisplayNameField: s.cfgs[t].DisplayNameField,
		}
		if coll := s.loaded[t]; coll != nil {
			sum.Loaded = true
			sum.Features = coll.Len()
			b := coll.Bound()
			sum.Bounds = []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
		}
		out = append(out, sum)
	}
	return out
}
