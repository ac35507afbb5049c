package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapbridge/internal/model"
)

type MarkerOutput struct {
	Body model.MarkerOptions
}

type MarkersOutput struct {
	Body []model.MarkerOptions
}

type AnimateBody struct {
	Path     []model.LngLat `json:"path" minItems:"1" doc:"Positions visited in order"`
	Duration int            `json:"duration,omitempty" minimum:"1" default:"2000" doc:"Total duration in milliseconds"`
}

type PopupBody struct {
	At      model.LngLat        `json:"at" doc:"Popup anchor position"`
	HTML    string              `json:"html" doc:"Popup content"`
	Options *model.PopupOptions `json:"options,omitempty"`
}

// RegisterMarkers registers marker routes.
func (h *Handler) RegisterMarkers(api huma.API) {
	huma.Get(api, "/api/v1/maps/{id}/markers", h.ListMarkers, huma.OperationTags("markers"))
	huma.Post(api, "/api/v1/maps/{id}/markers", h.AddMarker, huma.OperationTags("markers"), withStatus(http.StatusCreated))
	huma.Get(api, "/api/v1/maps/{id}/markers/{item}", h.GetMarker, huma.OperationTags("markers"))
	huma.Patch(api, "/api/v1/maps/{id}/markers/{item}", h.UpdateMarker, huma.OperationTags("markers"))
	huma.Delete(api, "/api/v1/maps/{id}/markers/{item}", h.RemoveMarker, huma.OperationTags("markers"))
	huma.Post(api, "/api/v1/maps/{id}/markers/{item}/animate", h.AnimateMarker, huma.OperationTags("markers"))
}

func (h *Handler) ListMarkers(ctx context.Context, input *MapInput) (*MarkersOutput, error) {
	markers, err := h.bridge.Markers(ctx, input.ID)
	if err != nil {
		return nil, h.fail(err)
	}
	return &MarkersOutput{Body: markers}, nil
}

func (h *Handler) AddMarker(ctx context.Context, input *struct {
	MapInput
	Body model.MarkerOptions
}) (*CreatedOutput, error) {
	id, err := h.bridge.AddMarker(ctx, input.ID, input.Body)
	if err != nil {
		return nil, h.fail(err)
	}
	return created(id, "Marker added"), nil
}

func (h *Handler) GetMarker(ctx context.Context, input *ItemInput) (*MarkerOutput, error) {
	m, err := h.bridge.Marker(ctx, input.ID, input.Item)
	if err != nil {
		return nil, h.fail(err)
	}
	return &MarkerOutput{Body: m}, nil
}

func (h *Handler) UpdateMarker(ctx context.Context, input *struct {
	ItemInput
	Body model.MarkerUpdate
}) (*MarkerOutput, error) {
	if err := h.bridge.UpdateMarker(ctx, input.ID, input.Item, input.Body); err != nil {
		return nil, h.fail(err)
	}
	return h.GetMarker(ctx, &input.ItemInput)
}

func (h *Handler) RemoveMarker(ctx context.Context, input *ItemInput) (*MessageOutput, error) {
	if err := h.bridge.RemoveMarker(ctx, input.ID, input.Item); err != nil {
		return nil, h.fail(err)
	}
	return message("Marker removed"), nil
}

func (h *Handler) AnimateMarker(ctx context.Context, input *struct {
	ItemInput
	Body AnimateBody
}) (*MessageOutput, error) {
	if err := h.bridge.AnimateMarker(ctx, input.ID, input.Item, input.Body.Path, input.Body.Duration); err != nil {
		return nil, h.fail(err)
	}
	return message("Marker animating"), nil
}

// RegisterPopups registers free-standing popup routes.
func (h *Handler) RegisterPopups(api huma.API) {
	huma.Post(api, "/api/v1/maps/{id}/popups", h.ShowPopup, huma.OperationTags("popups"), withStatus(http.StatusCreated))
	huma.Delete(api, "/api/v1/maps/{id}/popups/{item}", h.ClosePopup, huma.OperationTags("popups"))
}

func (h *Handler) ShowPopup(ctx context.Context, input *struct {
	MapInput
	Body PopupBody
}) (*CreatedOutput, error) {
	id, err := h.bridge.ShowPopup(ctx, input.ID, input.Body.At, input.Body.HTML, input.Body.Options)
	if err != nil {
		return nil, h.fail(err)
	}
	return created(id, "Popup shown"), nil
}

func (h *Handler) ClosePopup(ctx context.Context, input *ItemInput) (*MessageOutput, error) {
	if err := h.bridge.ClosePopup(ctx, input.ID, input.Item); err != nil {
		return nil, h.fail(err)
	}
	return message("Popup closed"), nil
}
