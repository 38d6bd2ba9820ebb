package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-parcels/internal/feature"
	"github.com/joeblew999/plat-parcels/internal/service"
	"github.com/joeblew999/plat-parcels/internal/tiles"
)

type OverlayInput struct {
	Overlay string `path:"overlay" enum:"parcel,area_plan,alder_district" doc:"Overlay identifier"`
	Metric  string `query:"metric" enum:"total_value,land_value,lot_size,net_taxes,net_taxes_per_sqft,taxes_per_city_street_sqft,land_value_per_sqft,alignment_index" default:"net_taxes_per_sqft" doc:"Metric the fill colors encode"`
}

// FeaturesBody is a colored overlay ready for the map surface.
type FeaturesBody struct {
	Overlay    feature.OverlayType `json:"overlay" doc:"Overlay identifier"`
	Legend     service.Legend      `json:"legend" doc:"Color scale"`
	Collection any                 `json:"collection" doc:"GeoJSON FeatureCollection; each feature carries fillColor"`
}

type FeaturesOutput struct {
	Body FeaturesBody
}

type ReloadInput struct {
	Overlay string `path:"overlay" enum:"parcel,area_plan,alder_district" doc:"Overlay identifier"`
}

type TileInput struct {
	OverlayInput
	Z uint32 `path:"z" maximum:"22" doc:"Zoom level"`
	X uint32 `path:"x" doc:"Tile column"`
	Y string `path:"y" pattern:"^[0-9]+(\\.mvt)?$" doc:"Tile row, optionally suffixed .mvt" example:"5873.mvt"`
}

type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	CacheControl    string `header:"Cache-Control"`
	Body            []byte
}

// RegisterOverlays registers overlay listing and GeoJSON routes.
func (h *APIHandler) RegisterOverlays(api huma.API) {
	huma.Get(api, "/api/v1/overlays", h.GetOverlays, huma.OperationTags("overlays"))
	huma.Get(api, "/api/v1/overlays/{overlay}/features", h.GetFeatures, huma.OperationTags("overlays"))
	huma.Register(api, huma.Operation{
		OperationID:   "reload-overlay",
		Method:        http.MethodPost,
		Path:          "/api/v1/overlays/{overlay}/reload",
		Summary:       "Reload overlay",
		Description:   "Drops the cached features and colors so the next request reads the source again. Open sessions keep their features.",
		Tags:          []string{"overlays"},
		DefaultStatus: http.StatusNoContent,
	}, h.ReloadOverlay)
}

// RegisterTiles registers the vector tile route.
func (h *APIHandler) RegisterTiles(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-tile",
		Method:      http.MethodGet,
		Path:        "/tiles/{overlay}/{z}/{x}/{y}",
		Summary:     "Get vector tile",
		Description: "Gzipped Mapbox Vector Tile of the colored overlay. Empty tiles return 204.",
		Tags:        []string{"tiles"},
		Responses: map[string]*huma.Response{
			"200": {Description: "Vector tile", Content: map[string]*huma.MediaType{
				"application/vnd.mapbox-vector-tile": {},
			}},
			"204": {Description: "No features in tile"},
		},
	}, h.GetTile)
}

func (h *APIHandler) GetOverlays(ctx context.Context, input *struct{}) (*struct{ Body []service.OverlaySummary }, error) {
	return &struct{ Body []service.OverlaySummary }{Body: h.svc.Overlays.Summaries()}, nil
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *OverlayInput) (*FeaturesOutput, error) {
	t, err := h.svc.Overlays.Resolve(input.Overlay)
	if err != nil {
		return nil, h.httpError("features", err)
	}
	fc, res, err := h.svc.Overlays.GeoJSON(ctx, t, input.Metric)
	if err != nil {
		return nil, h.httpError("features", err)
	}
	return &FeaturesOutput{Body: FeaturesBody{
		Overlay:    t,
		Legend:     service.NewLegend(input.Metric, res),
		Collection: fc,
	}}, nil
}

func (h *APIHandler) ReloadOverlay(ctx context.Context, input *ReloadInput) (*struct{}, error) {
	t, err := h.svc.Overlays.Resolve(input.Overlay)
	if err == nil {
		err = h.svc.Overlays.Reload(t)
	}
	if err != nil {
		return nil, h.httpError("reload", err)
	}
	return nil, nil
}

func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	t, err := h.svc.Overlays.Resolve(input.Overlay)
	if err != nil {
		return nil, h.httpError("tile", err)
	}
	y, err := strconv.ParseUint(strings.TrimSuffix(input.Y, ".mvt"), 10, 32)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid tile row", err)
	}
	if input.Z > tiles.MaxZoom {
		return nil, huma.Error422UnprocessableEntity("zoom out of range")
	}
	tile := maptile.New(input.X, uint32(y), maptile.Zoom(input.Z))
	if !tile.Valid() {
		return nil, huma.Error422UnprocessableEntity("tile out of range")
	}
	data, err := h.svc.Overlays.Tile(ctx, t, input.Metric, tile)
	if err != nil {
		return nil, h.httpError("tile", err)
	}
	if len(data) == 0 {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{
		Status:          http.StatusOK,
		ContentType:     "application/vnd.mapbox-vector-tile",
		ContentEncoding: "gzip",
		CacheControl:    "public, max-age=300",
		Body:            data,
	}, nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
