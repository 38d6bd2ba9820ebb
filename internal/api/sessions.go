package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-parcels/internal/bridge"
	"github.com/joeblew999/plat-parcels/internal/compare"
	"github.com/joeblew999/plat-parcels/internal/humastar"
	"github.com/joeblew999/plat-parcels/internal/selection"
	"github.com/joeblew999/plat-parcels/internal/service"
)

// Action templates for session links. The map routes live in mapui.
var (
	modeAction       = humastar.ActionDef{Rel: "mode", Pattern: "/api/v1/map/%s/mode", Method: http.MethodPost}
	confirmAction    = humastar.ActionDef{Rel: "confirm", Pattern: "/api/v1/map/%s/confirm", Method: http.MethodPost}
	resetAction      = humastar.ActionDef{Rel: "reset", Pattern: "/api/v1/map/%s/reset", Method: http.MethodPost, Title: "Reset groups"}
	compareAction    = humastar.ActionDef{Rel: "compare", Pattern: "/api/v1/map/%s/compare", Method: http.MethodPost, Title: "Compare groups"}
	comparisonAction = humastar.ActionDef{Rel: "comparison", Pattern: "/api/v1/sessions/%s/compare", Method: http.MethodGet, Title: "Comparison table"}
	eventsAction     = humastar.ActionDef{Rel: "monitor", Pattern: "/api/v1/map/%s/events", Method: http.MethodGet, Title: "Host updates"}
)

type SessionIDInput struct {
	SID string `path:"sid" doc:"Session identifier"`
}

type CreateSessionInput struct {
	Body struct {
		Overlay string `json:"overlay,omitempty" enum:"parcel,area_plan,alder_district" default:"parcel" doc:"Overlay to show"`
		Metric  string `json:"metric,omitempty" enum:"total_value,land_value,lot_size,net_taxes,net_taxes_per_sqft,taxes_per_city_street_sqft,land_value_per_sqft,alignment_index" default:"net_taxes_per_sqft" doc:"Metric the fill colors encode"`
	}
}

// SessionBody is a session snapshot. Its Link headers advertise the
// actions valid in the current state.
type SessionBody struct {
	service.SessionState
	Comparable bool `json:"comparable" doc:"Whether a comparison table is available"`
}

type SessionOutput struct {
	Body SessionBody
}

type CreateSessionOutput struct {
	Location string `header:"Location"`
	Body     SessionBody
}

type CompareOutput struct {
	Body compare.Table
}

// Actions implements humastar.Actor.
func (b SessionBody) Actions() []humastar.Action {
	title := "Switch to group mode"
	if b.Mode == selection.Group {
		title = "Switch to individual mode"
	}
	actions := []humastar.Action{
		modeAction.For(b.ID, title),
		eventsAction.For(b.ID, ""),
	}
	if b.Mode == selection.Group {
		if b.ConfirmEnabled {
			actions = append(actions, confirmAction.For(b.ID, b.ConfirmLabel))
		}
		actions = append(actions, resetAction.For(b.ID, ""))
		if b.CompareVisible {
			actions = append(actions, compareAction.For(b.ID, ""))
		}
	}
	if b.Comparable {
		actions = append(actions, comparisonAction.For(b.ID, ""))
	}
	return actions
}

// RegisterSessions registers map session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Create map session",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateSession)
	huma.Get(api, "/api/v1/sessions/{sid}", h.GetSession, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{sid}", h.DeleteSession, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{sid}/compare", h.GetComparison, huma.OperationTags("sessions"))
}

func (h *APIHandler) CreateSession(ctx context.Context, input *CreateSessionInput) (*CreateSessionOutput, error) {
	overlay := input.Body.Overlay
	if overlay == "" {
		overlay = "parcel"
	}
	t, err := h.svc.Overlays.Resolve(overlay)
	if err != nil {
		return nil, h.httpError("create session", err)
	}
	s, err := h.svc.Sessions.Create(ctx, t, input.Body.Metric)
	if err != nil {
		return nil, h.httpError("create session", err)
	}
	body, err := h.snapshot(s.ID)
	if err != nil {
		return nil, h.httpError("create session", err)
	}
	return &CreateSessionOutput{Location: "/api/v1/sessions/" + s.ID, Body: body}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionIDInput) (*SessionOutput, error) {
	body, err := h.snapshot(input.SID)
	if err != nil {
		return nil, h.httpError("get session", err)
	}
	return &SessionOutput{Body: body}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *SessionIDInput) (*struct{}, error) {
	if !h.svc.Sessions.Close(input.SID) {
		return nil, huma.Error404NotFound("session not found")
	}
	return nil, nil
}

func (h *APIHandler) GetComparison(ctx context.Context, input *SessionIDInput) (*CompareOutput, error) {
	var u bridge.Update
	err := h.svc.Sessions.Do(input.SID, func(s *service.Session) error {
		u = s.Comparison()
		return nil
	})
	if err != nil {
		return nil, h.httpError("compare", err)
	}
	table, err := compare.Build(u)
	if err != nil {
		return nil, h.httpError("compare", err)
	}
	return &CompareOutput{Body: table}, nil
}

// snapshot reads the body of session id under its lock. A session swept or
// deleted since the caller looked it up is ErrSessionNotFound.
func (h *APIHandler) snapshot(id string) (SessionBody, error) {
	var body SessionBody
	err := h.svc.Sessions.Do(id, func(s *service.Session) error {
		body = sessionBody(s)
		return nil
	})
	return body, err
}

// sessionBody snapshots s. Call inside SessionManager.Do.
func sessionBody(s *service.Session) SessionBody {
	_, err := compare.Build(s.Comparison())
	return SessionBody{SessionState: s.State(), Comparable: err == nil}
}
