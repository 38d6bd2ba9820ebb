// Package storetest provides an in-memory store.Store for handler tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/joeblew999/plat-parcels/internal/feature"
	"github.com/joeblew999/plat-parcels/internal/store"
)

// Memory is a store.Store backed by maps. Zero value is not usable; use New.
type Memory struct {
	mu      sync.Mutex
	Rows    map[feature.OverlayType][]feature.Row
	Parcels map[string]*store.Parcel
	Tax     map[string][]store.TaxYear
	Loads   int
}

var _ store.Store = (*Memory)(nil)

// New returns an empty store.
func New() *Memory {
	return &Memory{
		Rows:    map[feature.OverlayType][]feature.Row{},
		Parcels: map[string]*store.Parcel{},
		Tax:     map[string][]store.TaxYear{},
	}
}

// Square returns the WKB of a small square with its south-west corner at
// (lon, lat).
func Square(lon, lat float64) []byte {
	const d = 0.001
	b, err := wkb.Marshal(orb.Polygon{{{lon, lat}, {lon + d, lat}, {lon + d, lat + d}, {lon, lat + d}, {lon, lat}}})
	if err != nil {
		panic(err)
	}
	return b
}

// Metrics returns parcel metrics derived from a total value.
func Metrics(total float64) feature.Metrics {
	m := feature.MissingMetrics()
	m.TotalValue = total
	m.LandValue = total / 2
	m.LotSize = 1000
	m.NetTaxes = total / 50
	m.AlignmentIndex = 1
	return m
}

// Fixture returns a store holding three parcels and two area plans.
func Fixture() *Memory {
	m := New()
	m.Rows[feature.Parcel] = []feature.Row{
		{Key: "P1", Label: "101 Main St", Geometry: Square(-89.400, 43.07), Metrics: Metrics(100000)},
		{Key: "P2", Label: "103 Main St", Geometry: Square(-89.398, 43.07), Metrics: Metrics(200000)},
		{Key: "P3", Label: "7 Elm Ave", Geometry: Square(-89.396, 43.07), Metrics: Metrics(300000)},
	}
	m.Rows[feature.AreaPlan] = []feature.Row{
		{Key: "Downtown", Label: "Downtown", Geometry: Square(-89.38, 43.07), Metrics: Metrics(9e6)},
		{Key: "Northside", Label: "Northside", Geometry: Square(-89.37, 43.10), Metrics: Metrics(5e6)},
	}
	house, name, typ := "101", "Main", "St"
	taxes, shifted := 2000.0, 2100.0
	m.Parcels["P1"] = &store.Parcel{
		ParcelID: "P1", HouseNumber: &house, StreetName: &name, StreetType: &typ,
		NetTaxes: &taxes, LandValueShiftTaxes: &shifted,
	}
	m.Tax["P1"] = []store.TaxYear{
		{TaxYear: 2022, NetTax: ptr(1900), CityTax: ptr(800), CountyTax: ptr(300), SchoolTax: ptr(700), MATCTax: ptr(100)},
		{TaxYear: 2023, NetTax: ptr(2000), CityTax: ptr(850), CountyTax: ptr(300), SchoolTax: ptr(750), MATCTax: ptr(100)},
	}
	return m
}

func ptr(v float64) *float64 { return &v }

// LoadOverlay returns the configured rows of cfg.Type.
func (m *Memory) LoadOverlay(_ context.Context, cfg store.OverlayConfig) ([]feature.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loads++
	rows, ok := m.Rows[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("no rows for %s", cfg.Type)
	}
	return rows, nil
}

// SearchAddresses matches parcel labels case-insensitively, prefix
// matches first.
func (m *Memory) SearchAddresses(_ context.Context, term string, limit int) ([]store.AddressMatch, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if len(term) < store.MinSearchLength {
		return []store.AddressMatch{}, nil
	}
	out := []store.AddressMatch{}
	for _, r := range m.Rows[feature.Parcel] {
		if strings.Contains(strings.ToLower(r.Label), term) {
			out = append(out, store.AddressMatch{Address: r.Label, ParcelID: r.Key})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi := strings.HasPrefix(strings.ToLower(out[i].Address), term)
		pj := strings.HasPrefix(strings.ToLower(out[j].Address), term)
		if pi != pj {
			return pi
		}
		return out[i].Address < out[j].Address
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Parcel returns a parcel or store.ErrNotFound.
func (m *Memory) Parcel(_ context.Context, id string) (*store.Parcel, error) {
	p, ok := m.Parcels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// TaxHistory returns the rows of id; unknown parcels have none.
func (m *Memory) TaxHistory(_ context.Context, id string) ([]store.TaxYear, error) {
	return append([]store.TaxYear(nil), m.Tax[id]...), nil
}

func (m *Memory) Close() error { return nil }
