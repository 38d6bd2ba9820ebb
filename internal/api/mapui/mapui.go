// Package mapui contains Datastar SSE handlers for the map widget. Every
// event handler applies one selection event to a session and streams the
// resulting widget state back as signals and HTML fragments.
package mapui

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-parcels/internal/bridge"
	"github.com/joeblew999/plat-parcels/internal/compare"
	"github.com/joeblew999/plat-parcels/internal/humastar"
	"github.com/joeblew999/plat-parcels/internal/selection"
	"github.com/joeblew999/plat-parcels/internal/service"
	"github.com/joeblew999/plat-parcels/internal/templates"
)

// Element selectors patched by the handlers.
const (
	BadgeSelector   = "#selection-badge"
	ListSelector    = "#selection-list"
	Group1Selector  = "#group-1-list"
	Group2Selector  = "#group-2-list"
	CompareSelector = "#compare-table"
)

// EventInput carries the session ID and the raw Datastar signals.
type EventInput struct {
	SID     string `path:"sid" doc:"Session identifier"`
	RawBody []byte
}

func (i *EventInput) signals() (humastar.Signals, error) {
	s, err := humastar.ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return s, nil
}

type StreamInput struct {
	SID string `path:"sid" doc:"Session identifier"`
}

// MapHandler serves the map widget.
type MapHandler struct {
	humastar.Handler
	sessions *service.SessionManager
	overlays *service.OverlayService
	log      *zap.Logger
}

func NewMapHandler(sessions *service.SessionManager, overlays *service.OverlayService, renderer *templates.Renderer, log *zap.Logger) *MapHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MapHandler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		overlays: overlays,
		log:      log.Named("mapui"),
	}
}

func (h *MapHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/map/{sid}/click", h.Click, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/{sid}/mode", h.Mode, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/{sid}/confirm", h.Confirm, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/{sid}/reset", h.Reset, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/{sid}/compare", h.Compare, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/{sid}/overlay", h.Overlay, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/{sid}/events", h.Events, huma.OperationTags("map"))
}

// Click selects or deselects a feature. Signals: featureId (business key)
// or id (surface ID).
func (h *MapHandler) Click(ctx context.Context, input *EventInput) (*huma.StreamResponse, error) {
	signals, err := input.signals()
	if err != nil {
		return nil, err
	}
	key := signals.String("featureId")
	if key == "" && !signals.Has("id") {
		return nil, huma.Error400BadRequest("featureId or id is required")
	}
	return h.event(input.SID, "click", func(s *service.Session) error {
		if key != "" {
			return s.Controller().ClickFeatureID(key)
		}
		return s.Controller().Click(int64(signals.Int("id")))
	})
}

// Mode switches selection mode. Signals: mode.
func (h *MapHandler) Mode(ctx context.Context, input *EventInput) (*huma.StreamResponse, error) {
	signals, err := input.signals()
	if err != nil {
		return nil, err
	}
	mode, err := selection.ParseMode(signals.String("mode"))
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	return h.event(input.SID, "mode", func(s *service.Session) error {
		return s.Controller().SetMode(mode)
	})
}

func (h *MapHandler) Confirm(ctx context.Context, input *EventInput) (*huma.StreamResponse, error) {
	return h.event(input.SID, "confirm", func(s *service.Session) error {
		return s.Controller().Confirm()
	})
}

func (h *MapHandler) Reset(ctx context.Context, input *EventInput) (*huma.StreamResponse, error) {
	return h.event(input.SID, "reset", func(s *service.Session) error {
		return s.Controller().Reset()
	})
}

func (h *MapHandler) Compare(ctx context.Context, input *EventInput) (*huma.StreamResponse, error) {
	return h.event(input.SID, "compare", func(s *service.Session) error {
		return s.Controller().Compare()
	})
}

// Overlay switches the overlay or coloring metric, discarding the
// selection. Signals: overlay, metric.
func (h *MapHandler) Overlay(ctx context.Context, input *EventInput) (*huma.StreamResponse, error) {
	signals, err := input.signals()
	if err != nil {
		return nil, err
	}
	name := signals.String("overlay")
	metric := signals.String("metric")
	return h.event(input.SID, "overlay", func(s *service.Session) error {
		t := s.Overlay()
		if name != "" {
			var err error
			if t, err = h.overlays.Resolve(name); err != nil {
				return err
			}
		}
		return h.sessions.Reload(ctx, s, t, metric)
	})
}

// event applies fn to the session and streams the resulting state. Only an
// unknown session fails the request; rejections become a warning signal
// and other failures an error signal.
func (h *MapHandler) event(sid, name string, fn func(*service.Session) error) (*huma.StreamResponse, error) {
	var st service.SessionState
	var shown bridge.Update
	err := h.sessions.Event(sid, name, func(s *service.Session) error {
		err := fn(s)
		st = s.State()
		shown = s.Comparison()
		return err
	})
	if errors.Is(err, service.ErrSessionNotFound) {
		return nil, huma.Error404NotFound(err.Error())
	}
	if err != nil && !selection.IsRejection(err) {
		h.log.Error("map event failed", zap.String("event", name), zap.String("session", sid), zap.Error(err))
	}
	return h.Stream(func(sse humastar.SSE) {
		signals := stateSignals(st)
		switch {
		case err == nil:
			signals["warning"] = ""
		case selection.IsRejection(err):
			signals["warning"] = warningText(err)
		default:
			signals["error"] = err.Error()
		}
		sse.Signals(signals)
		h.patchState(sse, st, shown)
	}), nil
}

// Events streams host updates until the client disconnects or the session
// is closed.
func (h *MapHandler) Events(ctx context.Context, input *StreamInput) (*huma.StreamResponse, error) {
	s, err := h.sessions.Get(input.SID)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	b := s.Bridge()
	return h.Stream(func(sse humastar.SSE) {
		ch := b.Subscribe()
		defer b.Unsubscribe(ch)

		var shown bridge.Update
		if err := h.sessions.Do(input.SID, func(s *service.Session) error {
			shown = s.Comparison()
			return nil
		}); err != nil {
			return
		}
		h.pushSignals(sse, b.Latest())
		sse.Patch(h.renderCompare(shown), CompareSelector)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-ch:
				if !ok {
					return
				}
				h.pushUpdate(sse, u)
			}
		}
	}), nil
}

// pushUpdate forwards a fresh host push. A push always matches the widget,
// so its comparison is rendered as is.
func (h *MapHandler) pushUpdate(sse humastar.SSE, u bridge.Update) {
	h.pushSignals(sse, u)
	sse.Patch(h.renderCompare(u), CompareSelector)
}

func (h *MapHandler) pushSignals(sse humastar.SSE, u bridge.Update) {
	sse.Signals(map[string]any{
		"selected_features": u.Value(),
		"hostSeq":           u.Seq,
	})
	sse.DispatchCustomEvent("selection-changed", map[string]any{
		"seq": u.Seq, "mode": u.Mode,
	})
}

// patchState re-renders the widget controls. shown is the comparison the
// widget still stands behind, see Session.Comparison.
func (h *MapHandler) patchState(sse humastar.SSE, st service.SessionState, shown bridge.Update) {
	sse.Patch(h.Render("badge", badgeData(st)), BadgeSelector)
	if st.Mode == selection.Group {
		sse.Patch(h.renderList(st.Groups[0], "Group 1 is empty", "Click features to add them to Group 1"), Group1Selector)
		sse.Patch(h.renderList(st.Groups[1], "Group 2 is empty", "Confirm Group 1, then click features for Group 2"), Group2Selector)
		sse.Patch("", ListSelector)
	} else {
		sse.Patch(h.renderList(st.Selected, "Nothing selected", fmt.Sprintf("Click up to %d features to compare them", selection.MaxIndividual)), ListSelector)
	}
	sse.Patch(h.renderCompare(shown), CompareSelector)
}

func (h *MapHandler) renderList(features []bridge.Feature, emptyTitle, emptyMsg string) string {
	items := make([]any, len(features))
	for i, f := range features {
		items[i] = f
	}
	return h.Render("selection-list", map[string]any{
		"Items": items, "EmptyTitle": emptyTitle, "EmptyMessage": emptyMsg,
	})
}

func (h *MapHandler) renderCompare(u bridge.Update) string {
	table, err := compare.Build(u)
	if err != nil {
		return ""
	}
	return h.Render("compare-table", table)
}

// stateSignals are the Datastar signals mirroring the widget state.
func stateSignals(st service.SessionState) map[string]any {
	return map[string]any{
		"mode":              st.Mode,
		"groupState":        st.GroupState,
		"overlay":           st.Overlay,
		"metric":            st.Metric,
		"confirmLabel":      st.ConfirmLabel,
		"confirmEnabled":    st.ConfirmEnabled,
		"compareVisible":    st.CompareVisible,
		"marks":             st.Marks,
		"selected_features": st.Host,
	}
}

// badgeData feeds the "badge" fragment.
func badgeData(st service.SessionState) map[string]any {
	return map[string]any{
		"Mode":   st.Mode,
		"Count":  len(st.Selected),
		"Max":    selection.MaxIndividual,
		"Status": groupStatus(st),
	}
}

func groupStatus(st service.SessionState) string {
	switch st.GroupState {
	case selection.SelectingG1.String():
		return fmt.Sprintf("Selecting Group 1 (%d)", len(st.Groups[0]))
	case selection.SelectingG2.String():
		return fmt.Sprintf("Selecting Group 2 (%d)", len(st.Groups[1]))
	case selection.Complete.String():
		return "Groups confirmed"
	}
	return "Group mode"
}

func warningText(err error) string {
	switch {
	case errors.Is(err, selection.ErrOverlayMismatch):
		return "All selected features must come from the same overlay"
	case errors.Is(err, selection.ErrClaimedByOtherGroup):
		return "That feature already belongs to the other group"
	case errors.Is(err, selection.ErrEmptyGroup):
		return "Select at least one feature before confirming"
	case errors.Is(err, selection.ErrUnknownFeature):
		return "Unknown feature"
	}
	return "That action is not available right now"
}
