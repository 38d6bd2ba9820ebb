package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-parcels/internal/feature"
	"github.com/joeblew999/plat-parcels/internal/service"
)

// Info is what the server reports about its own wiring.
type Info struct {
	DataDir string
	Backend string
	Cache   bool
}

type InfoHandler struct {
	info     Info
	overlays *service.OverlayService
}

func NewInfoHandler(info Info, overlays *service.OverlayService) *InfoHandler {
	return &InfoHandler{info: info, overlays: overlays}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string                `json:"name" doc:"Service name"`
	Version  string                `json:"version" doc:"Service version"`
	DataDir  string                `json:"data_dir" doc:"Data directory path, empty for in-memory"`
	Backend  string                `json:"backend" enum:"duckdb,postgis" doc:"Data store backend"`
	Cache    bool                  `json:"cache" doc:"Whether parcel lookups are cached in Redis"`
	Overlays []feature.OverlayType `json:"overlays" doc:"Configured overlays"`
	Metrics  []string              `json:"metrics" doc:"Metrics an overlay can be colored by"`
	Features []string              `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "plat-parcels",
		Version:  Version,
		DataDir:  h.info.DataDir,
		Backend:  h.info.Backend,
		Cache:    h.info.Cache,
		Overlays: []feature.OverlayType{},
		Metrics:  feature.MetricNames,
		Features: []string{"geoparquet", "mvt", "duckdb", "datastar", "group-comparison"},
	}
	if h.overlays != nil {
		body.Overlays = h.overlays.Types()
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
