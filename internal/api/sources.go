package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/model"
)

type SourceBody struct {
	ID         string          `json:"id" minLength:"1" doc:"Source id, unique within the map" example:"parks"`
	Definition json.RawMessage `json:"definition" doc:"Source definition document"`
}

type SourceDataBody struct {
	Data json.RawMessage `json:"data" doc:"GeoJSON replacing the source data"`
}

type SourcesOutput struct {
	Body []bridge.SourceInfo
}

type LayerBody struct {
	Layer  json.RawMessage `json:"layer" doc:"Layer definition document"`
	Before string          `json:"before,omitempty" doc:"Insert below this layer"`
}

type LayersOutput struct {
	Body []model.LayerDefinition
}

type PropertyInput struct {
	ItemInput
	Name string `path:"name" doc:"Property name" example:"fill-color"`
	Body struct {
		Value json.RawMessage `json:"value" doc:"Property value or expression"`
	}
}

// RegisterSources registers source routes.
func (h *Handler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/maps/{id}/sources", h.ListSources, huma.OperationTags("sources"))
	huma.Post(api, "/api/v1/maps/{id}/sources", h.AddSource, huma.OperationTags("sources"), withStatus(http.StatusCreated))
	huma.Put(api, "/api/v1/maps/{id}/sources/{item}/data", h.UpdateSource, huma.OperationTags("sources"))
	huma.Delete(api, "/api/v1/maps/{id}/sources/{item}", h.RemoveSource, huma.OperationTags("sources"))
}

func (h *Handler) ListSources(ctx context.Context, input *MapInput) (*SourcesOutput, error) {
	sources, err := h.bridge.Sources(ctx, input.ID)
	if err != nil {
		return nil, h.fail(err)
	}
	return &SourcesOutput{Body: sources}, nil
}

func (h *Handler) AddSource(ctx context.Context, input *struct {
	MapInput
	Body SourceBody
}) (*CreatedOutput, error) {
	id, err := h.bridge.AddSource(ctx, input.ID, input.Body.ID, input.Body.Definition)
	if err != nil {
		return nil, h.fail(err)
	}
	return created(id, "Source added"), nil
}

func (h *Handler) UpdateSource(ctx context.Context, input *struct {
	ItemInput
	Body SourceDataBody
}) (*MessageOutput, error) {
	if err := h.bridge.UpdateSource(ctx, input.ID, input.Item, input.Body.Data); err != nil {
		return nil, h.fail(err)
	}
	return message("Source data replaced"), nil
}

func (h *Handler) RemoveSource(ctx context.Context, input *ItemInput) (*MessageOutput, error) {
	if err := h.bridge.RemoveSource(ctx, input.ID, input.Item); err != nil {
		return nil, h.fail(err)
	}
	return message("Source removed"), nil
}

// RegisterLayers registers layer and layer property routes.
func (h *Handler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/maps/{id}/layers", h.ListLayers, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/maps/{id}/layers", h.AddLayer, huma.OperationTags("layers"), withStatus(http.StatusCreated))
	huma.Delete(api, "/api/v1/maps/{id}/layers/{item}", h.RemoveLayer, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/maps/{id}/layers/{item}/visibility", h.SetLayerVisibility, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/maps/{id}/layers/{item}/paint/{name}", h.SetPaintProperty, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/maps/{id}/layers/{item}/layout/{name}", h.SetLayoutProperty, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/maps/{id}/layers/{item}/filter", h.SetFilter, huma.OperationTags("layers"))
}

func (h *Handler) ListLayers(ctx context.Context, input *MapInput) (*LayersOutput, error) {
	layers, err := h.bridge.Layers(ctx, input.ID)
	if err != nil {
		return nil, h.fail(err)
	}
	return &LayersOutput{Body: layers}, nil
}

func (h *Handler) AddLayer(ctx context.Context, input *struct {
	MapInput
	Body LayerBody
}) (*CreatedOutput, error) {
	id, err := h.bridge.AddLayer(ctx, input.ID, input.Body.Layer, input.Body.Before)
	if err != nil {
		return nil, h.fail(err)
	}
	return created(id, "Layer added"), nil
}

func (h *Handler) RemoveLayer(ctx context.Context, input *ItemInput) (*MessageOutput, error) {
	if err := h.bridge.RemoveLayer(ctx, input.ID, input.Item); err != nil {
		return nil, h.fail(err)
	}
	return message("Layer removed"), nil
}

func (h *Handler) SetLayerVisibility(ctx context.Context, input *struct {
	ItemInput
	Body struct {
		Visible bool `json:"visible"`
	}
}) (*MessageOutput, error) {
	if err := h.bridge.SetLayerVisibility(ctx, input.ID, input.Item, input.Body.Visible); err != nil {
		return nil, h.fail(err)
	}
	return message("Layer visibility set"), nil
}

func (h *Handler) SetPaintProperty(ctx context.Context, input *PropertyInput) (*MessageOutput, error) {
	if err := h.bridge.SetPaintProperty(ctx, input.ID, input.Item, input.Name, input.Body.Value); err != nil {
		return nil, h.fail(err)
	}
	return message("Paint property set"), nil
}

func (h *Handler) SetLayoutProperty(ctx context.Context, input *PropertyInput) (*MessageOutput, error) {
	if err := h.bridge.SetLayoutProperty(ctx, input.ID, input.Item, input.Name, input.Body.Value); err != nil {
		return nil, h.fail(err)
	}
	return message("Layout property set"), nil
}

func (h *Handler) SetFilter(ctx context.Context, input *struct {
	ItemInput
	Body struct {
		Filter json.RawMessage `json:"filter" doc:"Filter expression; null clears it"`
	}
}) (*MessageOutput, error) {
	if err := h.bridge.SetFilter(ctx, input.ID, input.Item, input.Body.Filter); err != nil {
		return nil, h.fail(err)
	}
	return message("Filter set"), nil
}
