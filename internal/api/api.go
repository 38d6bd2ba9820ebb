// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-parcels/internal/compare"
	"github.com/joeblew999/plat-parcels/internal/selection"
	"github.com/joeblew999/plat-parcels/internal/service"
	"github.com/joeblew999/plat-parcels/internal/store"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Overlays *service.OverlayService
	Sessions *service.SessionManager
	History  *service.HistoryService
	Store    store.Store
}

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
	log *zap.Logger
}

func NewAPIHandler(svc *Services, log *zap.Logger) *APIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIHandler{svc: svc, log: log.Named("api")}
}

// RegisterRoutes registers every REST route.
func RegisterRoutes(api huma.API, svc *Services, info Info, log *zap.Logger) {
	huma.AutoRegister(api, NewAPIHandler(svc, log))
	NewInfoHandler(info, svc.Overlays).RegisterRoutes(api)
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

// httpError maps service errors onto Huma status errors. Unknown errors
// are logged and reported as 500 without detail.
func (h *APIHandler) httpError(op string, err error) error {
	return mapError(h.log, op, err)
}

func mapError(log *zap.Logger, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrSessionNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrUnknownOverlay), errors.Is(err, service.ErrUnknownMetric),
		errors.Is(err, selection.ErrUnknownMode):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, compare.ErrIncomplete), selection.IsRejection(err):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, context.Canceled):
		return huma.Error503ServiceUnavailable("request canceled")
	}
	log.Error("request failed", zap.String("op", op), zap.Error(err))
	return huma.Error500InternalServerError("internal error")
}
