// Package service contains business logic for the parcel explorer.
package service

import (
	"github.com/joeblew999/plat-parcels/internal/bridge"
	"github.com/joeblew999/plat-parcels/internal/feature"
	"github.com/joeblew999/plat-parcels/internal/selection"
)

// OverlaySummary describes one configured overlay.
// Huma reads the tags for OpenAPI and validation.
type OverlaySummary struct {
	Type             feature.OverlayType `json:"type" doc:"Overlay identifier" example:"parcel"`
	Title            string              `json:"title" doc:"Display name" example:"Parcels"`
	DisplayNameField string              `json:"displayNameField" doc:"Property holding the feature label" example:"address"`
	Loaded           bool                `json:"loaded" doc:"Whether features are held in memory"`
	Features         int                 `json:"features" doc:"Number of features loaded" example:"72514"`
	Bounds           []float64           `json:"bounds,omitempty" doc:"minLon, minLat, maxLon, maxLat" example:"-89.57,43.0,-89.25,43.19"`
}

// Legend describes the color scale of a colored overlay.
type Legend struct {
	Metric   string   `json:"metric" doc:"Metric the colors encode" example:"net_taxes_per_sqft"`
	Low      float64  `json:"low" doc:"Value mapped to the first color (2nd percentile)"`
	High     float64  `json:"high" doc:"Value mapped to the last color (98th percentile)"`
	Colors   []string `json:"colors" doc:"Ramp stops from low to high"`
	Missing  string   `json:"missing" doc:"Color of features without a value"`
	LowText  string   `json:"lowText" doc:"Formatted low value" example:"$0.41"`
	HighText string   `json:"highText" doc:"Formatted high value" example:"$3.87"`
}

// SessionState is the full state of one map widget.
type SessionState struct {
	ID             string                     `json:"id" doc:"Session identifier"`
	Overlay        feature.OverlayType        `json:"overlay" doc:"Overlay the widget shows" example:"parcel"`
	Metric         string                     `json:"metric" doc:"Metric the fill colors encode" example:"net_taxes_per_sqft"`
	Mode           selection.Mode             `json:"mode" enum:"individual,group" doc:"Selection mode"`
	GroupState     string                     `json:"groupState" enum:"idle,selecting_g1,selecting_g2,complete" doc:"Group comparison state"`
	Selected       []bridge.Feature           `json:"selected" doc:"Individual selection, oldest first"`
	Groups         [2][]bridge.Feature        `json:"groups" doc:"Working contents of Group 1 and Group 2"`
	ConfirmLabel   string                     `json:"confirmLabel,omitempty" doc:"Label of the confirm control" example:"Confirm Group 1"`
	ConfirmEnabled bool                       `json:"confirmEnabled" doc:"Whether confirm is currently allowed"`
	CompareVisible bool                       `json:"compareVisible" doc:"Whether the compare control is shown"`
	Marks          map[string]selection.Paint `json:"marks" doc:"Visual state of marked features by feature ID"`
	Host           any                        `json:"host" doc:"Last payload pushed to the host application"`
}
