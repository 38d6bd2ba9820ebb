package service

import (
	"context"

	"github.com/joeblew999/plat-parcels/internal/format"
	"github.com/joeblew999/plat-parcels/internal/store"
)

// MinTrendYears is the number of tax years needed to show trends.
const MinTrendYears = 2

// TaxSources are the tax-source labels in display order.
var TaxSources = []string{"City", "School", "County", "MATC"}

// SourceColors are the chart colors of TaxSources.
var SourceColors = map[string]string{
	"City":   "#1f77b4",
	"School": "#2ca02c",
	"County": "#ff7f0e",
	"MATC":   "#d62728",
}

// GroupBy orders the tax-source breakdown.
type GroupBy string

const (
	BySource GroupBy = "source"
	ByYear   GroupBy = "year"
)

// SourceAmount is one bar of the tax-source breakdown.
type SourceAmount struct {
	Year   int      `json:"year" doc:"Tax year" example:"2023"`
	Source string   `json:"source" enum:"City,School,County,MATC" doc:"Taxing authority"`
	Amount *float64 `json:"amount" doc:"Tax dollars, null when unknown"`
	Color  string   `json:"color" doc:"Chart color of the source"`
	Text   string   `json:"text" doc:"Formatted amount" example:"$1,204"`
}

// History is a parcel's tax roll shaped for charts.
type History struct {
	ParcelID       string          `json:"parcelId" doc:"Parcel identifier"`
	Years          []store.TaxYear `json:"years" doc:"Tax roll rows ordered by year"`
	TrendAvailable bool            `json:"trendAvailable" doc:"Whether at least two years exist"`
	Message        string          `json:"message,omitempty" doc:"Why trends are not shown"`
	GroupBy        GroupBy         `json:"groupBy" enum:"source,year" doc:"Breakdown ordering"`
	Breakdown      []SourceAmount  `json:"breakdown" doc:"Long-format tax amounts by source and year"`
}

// HistoryService shapes tax roll history.
type HistoryService struct {
	store store.Store
}

// NewHistoryService wraps st.
func NewHistoryService(st store.Store) *HistoryService {
	return &HistoryService{store: st}
}

// History loads and shapes the tax roll of parcelID.
func (s *HistoryService) History(ctx context.Context, parcelID string, by GroupBy) (*History, error) {
	years, err := s.store.TaxHistory(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	return ShapeHistory(parcelID, years, by), nil
}

// ShapeHistory builds a History from rows already ordered by year.
func ShapeHistory(parcelID string, years []store.TaxYear, by GroupBy) *History {
	if by != ByYear {
		by = BySource
	}
	h := &History{
		ParcelID:       parcelID,
		Years:          years,
		TrendAvailable: len(years) >= MinTrendYears,
		GroupBy:        by,
		Breakdown:      []SourceAmount{},
	}
	if h.Years == nil {
		h.Years = []store.TaxYear{}
	}
	switch {
	case len(years) == 0:
		h.Message = "No historical data available for this parcel"
		return h
	case !h.TrendAvailable:
		h.Message = "At least 2 years of data required to show trends"
		return h
	}

	amount := func(y store.TaxYear, source string) SourceAmount {
		var v *float64
		switch source {
		case "City":
			v = y.CityTax
		case "School":
			v = y.SchoolTax
		case "County":
			v = y.CountyTax
		case "MATC":
			v = y.MATCTax
		}
		text := format.NA
		if v != nil {
			text = format.Currency(*v)
		}
		return SourceAmount{Year: y.TaxYear, Source: source, Amount: v, Color: SourceColors[source], Text: text}
	}

	if by == BySource {
		for _, src := range TaxSources {
			for _, y := range years {
				h.Breakdown = append(h.Breakdown, amount(y, src))
			}
		}
		return h
	}
	for _, y := range years {
		for _, src := range TaxSources {
			h.Breakdown = append(h.Breakdown, amount(y, src))
		}
	}
	return h
}
