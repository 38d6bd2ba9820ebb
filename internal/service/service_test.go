package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/maptile"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-parcels/internal/bridge"
	"github.com/joeblew999/plat-parcels/internal/feature"
	"github.com/joeblew999/plat-parcels/internal/metrics"
	"github.com/joeblew999/plat-parcels/internal/selection"
	"github.com/joeblew999/plat-parcels/internal/store"
)

type fakeStore struct {
	mu    sync.Mutex
	loads int
	rows  map[feature.OverlayType][]feature.Row
	tax   map[string][]store.TaxYear
}

func (f *fakeStore) LoadOverlay(_ context.Context, cfg store.OverlayConfig) ([]feature.Row, error) {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()
	rows, ok := f.rows[cfg.Type]
	if !ok {
		return nil, errors.New("no such source")
	}
	return rows, nil
}

func (f *fakeStore) SearchAddresses(context.Context, string, int) ([]store.AddressMatch, error) {
	return nil, nil
}

func (f *fakeStore) Parcel(context.Context, string) (*store.Parcel, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) TaxHistory(_ context.Context, id string) ([]store.TaxYear, error) {
	return f.tax[id], nil
}

func (f *fakeStore) Close() error { return nil }

func squareWKB(t *testing.T, x, y float64) []byte {
	t.Helper()
	b, err := wkb.Marshal(orb.Polygon{{{x, y}, {x + 0.001, y}, {x + 0.001, y + 0.001}, {x, y + 0.001}, {x, y}}})
	require.NoError(t, err)
	return b
}

func metricsWith(total float64) feature.Metrics {
	m := feature.MissingMetrics()
	m.TotalValue = total
	m.LandValue = total / 2
	m.LotSize = 100
	m.NetTaxes = total / 50
	return m
}

func newFakeStore(t *testing.T) *fakeStore {
	return &fakeStore{
		rows: map[feature.OverlayType][]feature.Row{
			feature.Parcel: {
				{Key: "A", Label: "1 Main St", Geometry: squareWKB(t, -89.400, 43.07), Metrics: metricsWith(1000)},
				{Key: "B", Label: "2 Main St", Geometry: squareWKB(t, -89.398, 43.07), Metrics: metricsWith(2000)},
				{Key: "C", Label: "3 Main St", Geometry: squareWKB(t, -89.396, 43.07), Metrics: metricsWith(3000)},
				{Key: "bad", Label: "nowhere", Geometry: []byte{1, 2, 3}, Metrics: metricsWith(1)},
			},
			feature.AreaPlan: {
				{Key: "Downtown", Label: "Downtown", Geometry: squareWKB(t, -89.39, 43.07), Metrics: metricsWith(5000)},
			},
		},
		tax: map[string][]store.TaxYear{},
	}
}

func testConfigs() []store.OverlayConfig {
	return []store.OverlayConfig{
		{Type: feature.Parcel, DisplayNameField: "address", Source: "parcels", KeyColumn: "parcel_id"},
		{Type: feature.AreaPlan, DisplayNameField: "area_plan_name", Source: "plans", KeyColumn: "area_plan_name"},
	}
}

func newTestOverlays(t *testing.T) (*OverlayService, *fakeStore, *metrics.Metrics) {
	t.Helper()
	st := newFakeStore(t)
	m := metrics.New()
	svc, err := NewOverlayService(st, testConfigs(), m, nil)
	require.NoError(t, err)
	return svc, st, m
}

func TestOverlayServiceLoadsOnce(t *testing.T) {
	svc, st, m := newTestOverlays(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coll, err := svc.Collection(ctx, feature.Parcel)
			assert.NoError(t, err)
			assert.Equal(t, 3, coll.Len())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, st.loads)

	_, err := svc.Collection(ctx, feature.Parcel)
	require.NoError(t, err)
	loads := st.loads
	_, err = svc.Collection(ctx, feature.Parcel)
	require.NoError(t, err)
	assert.Equal(t, loads, st.loads)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.FeaturesLoaded.WithLabelValues("parcel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeaturesDropped.WithLabelValues("parcel")))

	require.NoError(t, svc.Reload(feature.Parcel))
	_, err = svc.Collection(ctx, feature.Parcel)
	require.NoError(t, err)
	assert.Equal(t, loads+1, st.loads)
}

func TestOverlayServiceReloadRecolors(t *testing.T) {
	svc, st, _ := newTestOverlays(t)
	ctx := context.Background()

	res, err := svc.Colors(ctx, feature.Parcel, "total_value")
	require.NoError(t, err)
	require.Len(t, res.Colors, 3)

	st.rows[feature.Parcel] = append(st.rows[feature.Parcel],
		feature.Row{Key: "D", Label: "4 Main St", Geometry: squareWKB(t, -89.394, 43.07), Metrics: metricsWith(4000)})
	require.NoError(t, svc.Reload(feature.Parcel))

	fc, res, err := svc.GeoJSON(ctx, feature.Parcel, "total_value")
	require.NoError(t, err)
	require.Len(t, fc.Features, 4)
	assert.Len(t, res.Colors, 4)
	for _, f := range fc.Features {
		assert.NotEmpty(t, f.Properties["fillColor"], f.Properties["feature_id"])
	}

	res, err = svc.Colors(ctx, feature.Parcel, "total_value")
	require.NoError(t, err)
	assert.Len(t, res.Colors, 4)

	assert.ErrorIs(t, svc.Reload(feature.AlderDistrict), ErrUnknownOverlay)
}

func TestOverlayServiceRejectsUnknowns(t *testing.T) {
	svc, _, _ := newTestOverlays(t)
	ctx := context.Background()

	_, err := svc.Collection(ctx, feature.AlderDistrict)
	assert.ErrorIs(t, err, ErrUnknownOverlay)

	_, err = svc.Resolve("alder-districts")
	assert.ErrorIs(t, err, ErrUnknownOverlay)

	got, err := svc.Resolve("Area Plans")
	require.NoError(t, err)
	assert.Equal(t, feature.AreaPlan, got)

	_, err = svc.Colors(ctx, feature.Parcel, "height")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestOverlayServiceGeoJSONAndTile(t *testing.T) {
	svc, _, _ := newTestOverlays(t)
	ctx := context.Background()

	fc, res, err := svc.GeoJSON(ctx, feature.Parcel, feature.TotalValue)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)
	assert.Len(t, res.Colors, 3)
	assert.Equal(t, res.CSS()[0], fc.Features[0].Properties["fillColor"])

	data, err := svc.Tile(ctx, feature.Parcel, feature.TotalValue, maptile.At(orb.Point{-89.3995, 43.0705}, 14))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	sums := svc.Summaries()
	require.Len(t, sums, 2)
	assert.True(t, sums[0].Loaded)
	assert.Equal(t, 3, sums[0].Features)
	assert.Len(t, sums[0].Bounds, 4)
	assert.False(t, sums[1].Loaded)
}

func TestNewOverlayServiceValidates(t *testing.T) {
	cfgs := append(testConfigs(), testConfigs()[0])
	_, err := NewOverlayService(newFakeStore(t), cfgs, nil, nil)
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	svc, _, m := newTestOverlays(t)
	mgr := NewSessionManager(svc, m, time.Hour, nil)
	ctx := context.Background()

	s, err := mgr.Create(ctx, feature.Parcel, "")
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions))

	ch := s.Bridge().Subscribe()

	err = mgr.Event(s.ID, "click", func(s *Session) error {
		return s.Controller().ClickFeatureID("A")
	})
	require.NoError(t, err)

	u := <-ch
	assert.Len(t, u.Individual, 1)

	require.NoError(t, mgr.Do(s.ID, func(s *Session) error {
		st := s.State()
		assert.Equal(t, DefaultMetric, st.Metric)
		assert.Equal(t, selection.Individual, st.Mode)
		assert.Equal(t, "idle", st.GroupState)
		require.Len(t, st.Selected, 1)
		assert.Equal(t, selection.SelectedOutline, st.Marks["A"].LineColor)
		return nil
	}))

	assert.True(t, mgr.Close(s.ID))
	_, ok := <-ch
	assert.False(t, ok, "closing a session disconnects subscribers")
	assert.False(t, mgr.Close(s.ID))

	err = mgr.Do(s.ID, func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionComparisonFollowsGroups(t *testing.T) {
	svc, _, _ := newTestOverlays(t)
	mgr := NewSessionManager(svc, nil, time.Hour, nil)
	s, err := mgr.Create(context.Background(), feature.Parcel, "")
	require.NoError(t, err)

	confirmBoth := func(a, b string) func(*Session) error {
		return func(s *Session) error {
			c := s.Controller()
			for _, step := range []func() error{
				func() error { return c.ClickFeatureID(a) },
				c.Confirm,
				func() error { return c.ClickFeatureID(b) },
				c.Confirm,
			} {
				if err := step(); err != nil {
					return err
				}
			}
			return nil
		}
	}
	comparison := func() *bridge.Comparison {
		var u bridge.Update
		require.NoError(t, mgr.Do(s.ID, func(s *Session) error {
			u = s.Comparison()
			return nil
		}))
		return u.Comparison
	}

	require.NoError(t, mgr.Do(s.ID, func(s *Session) error { return s.Controller().SetMode(selection.Group) }))
	require.NoError(t, mgr.Do(s.ID, confirmBoth("A", "B")))
	assert.Nil(t, comparison(), "confirmed but not compared")

	require.NoError(t, mgr.Do(s.ID, func(s *Session) error { return s.Controller().Compare() }))
	require.NotNil(t, comparison())

	require.NoError(t, mgr.Do(s.ID, func(s *Session) error { return s.Controller().Reset() }))
	assert.Nil(t, comparison())
	assert.NotNil(t, s.Bridge().Latest().Comparison, "no sync happens on reset")

	require.NoError(t, mgr.Do(s.ID, confirmBoth("B", "C")))
	assert.Nil(t, comparison(), "stale groups do not match the new ones")
}

func TestSessionRejectionsAreCounted(t *testing.T) {
	svc, _, m := newTestOverlays(t)
	mgr := NewSessionManager(svc, m, 0, nil)
	s, err := mgr.Create(context.Background(), feature.Parcel, feature.TotalValue)
	require.NoError(t, err)

	err = mgr.Event(s.ID, "confirm", func(s *Session) error { return s.Controller().Confirm() })
	assert.ErrorIs(t, err, selection.ErrWrongMode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("wrong_mode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("confirm")))
}

func TestSessionReloadDiscardsSelection(t *testing.T) {
	svc, _, _ := newTestOverlays(t)
	mgr := NewSessionManager(svc, nil, 0, nil)
	ctx := context.Background()
	s, err := mgr.Create(ctx, feature.Parcel, "")
	require.NoError(t, err)

	require.NoError(t, mgr.Do(s.ID, func(s *Session) error {
		require.NoError(t, s.Controller().SetMode(selection.Group))
		require.NoError(t, s.Controller().ClickFeatureID("A"))
		require.NoError(t, mgr.Reload(ctx, s, feature.AreaPlan, ""))

		st := s.State()
		assert.Equal(t, feature.AreaPlan, st.Overlay)
		assert.Equal(t, selection.Individual, st.Mode)
		assert.Empty(t, st.Marks)
		return s.Controller().ClickFeatureID("Downtown")
	}))

	err = mgr.Do(s.ID, func(s *Session) error {
		return mgr.Reload(ctx, s, feature.Parcel, "height")
	})
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestSessionSweep(t *testing.T) {
	svc, _, _ := newTestOverlays(t)
	mgr := NewSessionManager(svc, nil, time.Minute, nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return now }

	old, err := mgr.Create(context.Background(), feature.Parcel, "")
	require.NoError(t, err)
	now = now.Add(50 * time.Second)
	fresh, err := mgr.Create(context.Background(), feature.Parcel, "")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, mgr.Sweep())
	_, err = mgr.Get(old.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = mgr.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestShapeHistory(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	years := []store.TaxYear{
		{TaxYear: 2022, CityTax: f(900), SchoolTax: f(2400), CountyTax: f(450), MATCTax: f(250)},
		{TaxYear: 2023, CityTax: f(1000), SchoolTax: f(2500), CountyTax: nil, MATCTax: f(300)},
	}

	h := ShapeHistory("P1", years, BySource)
	assert.True(t, h.TrendAvailable)
	require.Len(t, h.Breakdown, 8)
	assert.Equal(t, SourceAmount{Year: 2022, Source: "City", Amount: f(900), Color: "#1f77b4", Text: "$900"}, h.Breakdown[0])
	assert.Equal(t, "City", h.Breakdown[1].Source)
	assert.Equal(t, 2023, h.Breakdown[1].Year)
	assert.Equal(t, "N/A", h.Breakdown[5].Text, "missing county tax in 2023")

	h = ShapeHistory("P1", years, ByYear)
	assert.Equal(t, ByYear, h.GroupBy)
	assert.Equal(t, []string{"City", "School", "County", "MATC"},
		[]string{h.Breakdown[0].Source, h.Breakdown[1].Source, h.Breakdown[2].Source, h.Breakdown[3].Source})
	assert.Equal(t, 2023, h.Breakdown[4].Year)

	h = ShapeHistory("P1", years[:1], "")
	assert.False(t, h.TrendAvailable)
	assert.Empty(t, h.Breakdown)
	assert.Equal(t, "At least 2 years of data required to show trends", h.Message)

	h = ShapeHistory("P1", nil, BySource)
	assert.NotNil(t, h.Years)
	assert.Equal(t, "No historical data available for this parcel", h.Message)
}

func TestGlossary(t *testing.T) {
	sections, err := Glossary()
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, "metrics", sections[0].Key)
	assert.Len(t, sections[0].Terms, 4)

	hits := SearchGlossary(sections, "alder")
	require.Len(t, hits, 1)
	assert.Equal(t, "overlay_types", hits[0].Key)
	assert.Equal(t, "Alder District", hits[0].Terms[0].Name)

	assert.Equal(t, sections, SearchGlossary(sections, " "))
}

func TestDefaultOverlays(t *testing.T) {
	f, err := LoadOverlayFile("", "gs://gold")
	require.NoError(t, err)
	assert.Equal(t, "gs://gold/fact_parcels.parquet", f.Sources.Parcels)
	require.Len(t, f.Overlays, 3)
	for _, o := range f.Overlays {
		assert.NoError(t, o.Validate())
	}
}

func TestOverlayServiceArchive(t *testing.T) {
	svc, _, _ := newTestOverlays(t)

	a, err := svc.Archive(context.Background(), feature.Parcel, feature.NetTaxesPerSqft, 14, 14)
	require.NoError(t, err)
	assert.Positive(t, a.Len())

	_, err = svc.Archive(context.Background(), feature.Parcel, "height", 14, 14)
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestNewLegend(t *testing.T) {
	svc, _, _ := newTestOverlays(t)
	res, err := svc.Colors(context.Background(), feature.Parcel, feature.TotalValue)
	require.NoError(t, err)

	l := NewLegend(feature.TotalValue, res)
	assert.Equal(t, feature.TotalValue, l.Metric)
	assert.Len(t, l.Colors, 5)
	assert.Less(t, l.Low, l.High)
	assert.Equal(t, "$1,040", l.LowText)
	assert.Equal(t, "rgba(189, 189, 189, 0.30)", l.Missing)

	assert.Equal(t, "1,000 sq ft", FormatMetric(feature.LotSize, 1000))
	assert.Equal(t, "$0.25", FormatMetric(feature.NetTaxesPerSqft, 0.25))
	assert.Equal(t, "0.87", FormatMetric(feature.AlignmentIndex, 0.871))
}
