package service

import (
	"github.com/joeblew999/plat-parcels/internal/colormap"
	"github.com/joeblew999/plat-parcels/internal/feature"
	"github.com/joeblew999/plat-parcels/internal/format"
)

// legendStops are the ramp positions shown in a legend.
var legendStops = []float64{0, 0.25, 0.5, 0.75, 1}

// NewLegend describes the scale res was colored with.
func NewLegend(metric string, res colormap.Result) Legend {
	l := Legend{
		Metric:   metric,
		Low:      res.LowClip,
		High:     res.HighClip,
		Missing:  colormap.Missing.CSS(),
		LowText:  FormatMetric(metric, res.LowClip),
		HighText: FormatMetric(metric, res.HighClip),
	}
	for _, t := range legendStops {
		l.Colors = append(l.Colors, colormap.Ramp(t).CSS())
	}
	return l
}

// FormatMetric renders v in the unit of metric.
func FormatMetric(metric string, v float64) string {
	switch metric {
	case feature.TotalValue, feature.LandValue, feature.NetTaxes:
		return format.Currency(v)
	case feature.LotSize:
		return format.Sqft(v)
	case feature.AlignmentIndex:
		return format.Number(v, 2)
	}
	return format.Dollars(v)
}
