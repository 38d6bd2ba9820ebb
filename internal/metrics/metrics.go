// Package metrics holds the prometheus collectors for the explorer.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-parcels/internal/selection"
)

const namespace = "parcels"

// Metrics is a set of collectors registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	Events          *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	DroppedSyncs    prometheus.Counter
	FeaturesDropped *prometheus.CounterVec
	FeaturesLoaded  *prometheus.GaugeVec
	Sessions        prometheus.Gauge
	TileDuration    prometheus.Histogram
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_events_total",
			Help:      "Selection events processed, by kind.",
		}, []string{"event"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_rejections_total",
			Help:      "Selection operations rejected, by reason.",
		}, []string{"reason"}),
		DroppedSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_sync_dropped_total",
			Help:      "Host updates not delivered to a slow subscriber.",
		}),
		FeaturesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_dropped_total",
			Help:      "Overlay rows dropped for unusable geometry.",
		}, []string{"overlay"}),
		FeaturesLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "features_loaded",
			Help:      "Features held in memory per overlay.",
		}, []string{"overlay"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "map_sessions",
			Help:      "Open map sessions.",
		}),
		TileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tile_encode_seconds",
			Help:      "Time to encode one vector tile.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.Events, m.Rejections, m.DroppedSyncs,
		m.FeaturesDropped, m.FeaturesLoaded, m.Sessions, m.TileDuration,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent counts one selection event and, if err is a rejection, its
// reason.
func (m *Metrics) ObserveEvent(event string, err error) {
	m.Events.WithLabelValues(event).Inc()
	if err != nil && selection.IsRejection(err) {
		m.Rejections.WithLabelValues(RejectionReason(err)).Inc()
	}
}

// RejectionReason maps a rejection error to a short label value.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, selection.ErrOverlayMismatch):
		return "overlay_mismatch"
	case errors.Is(err, selection.ErrClaimedByOtherGroup):
		return "claimed"
	case errors.Is(err, selection.ErrEmptyGroup):
		return "empty_group"
	case errors.Is(err, selection.ErrNotRouted):
		return "not_routed"
	case errors.Is(err, selection.ErrUnknownFeature):
		return "unknown_feature"
	case errors.Is(err, selection.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, selection.ErrWrongMode):
		return "wrong_mode"
	}
	return "other"
}
