package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-parcels/internal/format"
	"github.com/joeblew999/plat-parcels/internal/humastar"
	"github.com/joeblew999/plat-parcels/internal/service"
	"github.com/joeblew999/plat-parcels/internal/store"
)

type SearchInput struct {
	Q      string `query:"q" minLength:"2" required:"true" doc:"Address fragment" example:"main st"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int    `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
}

type SearchOutput struct {
	Body humastar.PageBody[store.AddressMatch]
}

type ParcelIDInput struct {
	ID string `path:"id" doc:"Parcel identifier" example:"070923101019"`
}

// ParcelBody is a parcel record plus its display strings.
type ParcelBody struct {
	store.Parcel
	Address   string `json:"address" doc:"Formatted street address" example:"123 N Main St"`
	TaxChange string `json:"tax_change" doc:"Change in taxes under a land value tax" example:"↑ +$120 (+4.0%)"`
}

type ParcelOutput struct {
	Body ParcelBody
}

type HistoryInput struct {
	ParcelIDInput
	GroupBy service.GroupBy `query:"groupBy" enum:"source,year" default:"source" doc:"Breakdown ordering"`
}

type HistoryOutput struct {
	Body *service.History
}

type GlossaryInput struct {
	Q string `query:"q" doc:"Case-insensitive filter on term and definition"`
}

type GlossaryOutput struct {
	Body []service.GlossarySection
}

// RegisterParcels registers parcel lookup routes.
func (h *APIHandler) RegisterParcels(api huma.API) {
	huma.Get(api, humastar.SearchPath, h.SearchParcels, huma.OperationTags("parcels"))
	huma.Get(api, "/api/v1/parcels/{id}", h.GetParcel, huma.OperationTags("parcels"))
	huma.Get(api, "/api/v1/parcels/{id}/history", h.GetHistory, huma.OperationTags("parcels"))
}

// RegisterGlossary registers the glossary route.
func (h *APIHandler) RegisterGlossary(api huma.API) {
	huma.Get(api, "/api/v1/glossary", h.GetGlossary, huma.OperationTags("glossary"))
}

func (h *APIHandler) SearchParcels(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	matches, err := h.svc.Store.SearchAddresses(ctx, input.Q, store.DefaultSearchLimit)
	if err != nil {
		return nil, h.httpError("search", err)
	}
	return &SearchOutput{Body: humastar.Page(matches, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetParcel(ctx context.Context, input *ParcelIDInput) (*ParcelOutput, error) {
	p, err := h.svc.Store.Parcel(ctx, input.ID)
	if err != nil {
		return nil, h.httpError("parcel", err)
	}
	house, dir, name, typ, unit := p.AddressParts()
	return &ParcelOutput{Body: ParcelBody{
		Parcel: *p,
		Address: format.Address(format.AddressParts{
			HouseNumber: house, StreetDir: dir, StreetName: name, StreetType: typ, Unit: unit,
		}),
		TaxChange: format.TaxChange(orNaN(p.NetTaxes), orNaN(p.LandValueShiftTaxes)),
	}}, nil
}

func (h *APIHandler) GetHistory(ctx context.Context, input *HistoryInput) (*HistoryOutput, error) {
	hist, err := h.svc.History.History(ctx, input.ID, input.GroupBy)
	if err != nil {
		return nil, h.httpError("history", err)
	}
	return &HistoryOutput{Body: hist}, nil
}

func (h *APIHandler) GetGlossary(ctx context.Context, input *GlossaryInput) (*GlossaryOutput, error) {
	sections, err := service.Glossary()
	if err != nil {
		return nil, h.httpError("glossary", err)
	}
	return &GlossaryOutput{Body: service.SearchGlossary(sections, input.Q)}, nil
}
