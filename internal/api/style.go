package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapbridge/internal/model"
)

type FitBody struct {
	Bounds  model.MapBounds         `json:"bounds"`
	Options *model.FitBoundsOptions `json:"options,omitempty"`
}

type ScalarBody struct {
	Value float64 `json:"value" doc:"New value"`
}

// RegisterStyle registers style, lighting, terrain and overlay routes.
func (h *Handler) RegisterStyle(api huma.API) {
	huma.Put(api, "/api/v1/maps/{id}/style", h.SetStyle, huma.OperationTags("style"))
	huma.Put(api, "/api/v1/maps/{id}/light", h.SetLight, huma.OperationTags("style"))
	huma.Put(api, "/api/v1/maps/{id}/fog", h.SetFog, huma.OperationTags("style"))
	huma.Post(api, "/api/v1/maps/{id}/terrain", h.EnableTerrain, huma.OperationTags("style"))
	huma.Delete(api, "/api/v1/maps/{id}/terrain", h.DisableTerrain, huma.OperationTags("style"))
	huma.Post(api, "/api/v1/maps/{id}/buildings", h.Add3DBuildings, huma.OperationTags("style"))
	huma.Post(api, "/api/v1/maps/{id}/traffic", h.EnableTraffic, huma.OperationTags("style"))
	huma.Delete(api, "/api/v1/maps/{id}/traffic", h.DisableTraffic, huma.OperationTags("style"))
}

func (h *Handler) SetStyle(ctx context.Context, input *struct {
	MapInput
	Body struct {
		Style string `json:"style" doc:"Style URL" example:"mapbox://styles/mapbox/dark-v11"`
	}
}) (*MessageOutput, error) {
	if err := h.bridge.SetStyle(ctx, input.ID, input.Body.Style); err != nil {
		return nil, h.fail(err)
	}
	return message("Style set"), nil
}

func (h *Handler) SetLight(ctx context.Context, input *struct {
	MapInput
	Body model.LightOptions
}) (*MessageOutput, error) {
	if err := h.bridge.SetLight(ctx, input.ID, input.Body); err != nil {
		return nil, h.fail(err)
	}
	return message("Light set"), nil
}

func (h *Handler) SetFog(ctx context.Context, input *struct {
	MapInput
	Body *model.FogOptions `required:"false" doc:"Fog settings; omit to clear"`
}) (*MessageOutput, error) {
	if err := h.bridge.SetFog(ctx, input.ID, input.Body); err != nil {
		return nil, h.fail(err)
	}
	return message("Fog set"), nil
}

func (h *Handler) EnableTerrain(ctx context.Context, input *struct {
	MapInput
	Body *model.TerrainOptions `required:"false"`
}) (*MessageOutput, error) {
	opts := model.DefaultTerrainOptions()
	if input.Body != nil {
		opts = *input.Body
	}
	if err := h.bridge.EnableTerrain(ctx, input.ID, opts); err != nil {
		return nil, h.fail(err)
	}
	return message("Terrain enabled"), nil
}

func (h *Handler) DisableTerrain(ctx context.Context, input *MapInput) (*MessageOutput, error) {
	if err := h.bridge.DisableTerrain(ctx, input.ID); err != nil {
		return nil, h.fail(err)
	}
	return message("Terrain disabled"), nil
}

func (h *Handler) Add3DBuildings(ctx context.Context, input *MapInput) (*MessageOutput, error) {
	if err := h.bridge.Add3DBuildings(ctx, input.ID); err != nil {
		return nil, h.fail(err)
	}
	return message("3D buildings added"), nil
}

func (h *Handler) EnableTraffic(ctx context.Context, input *MapInput) (*MessageOutput, error) {
	if err := h.bridge.EnableTraffic(ctx, input.ID); err != nil {
		return nil, h.fail(err)
	}
	return message("Traffic enabled"), nil
}

func (h *Handler) DisableTraffic(ctx context.Context, input *MapInput) (*MessageOutput, error) {
	if err := h.bridge.DisableTraffic(ctx, input.ID); err != nil {
		return nil, h.fail(err)
	}
	return message("Traffic disabled"), nil
}

// RegisterCamera registers camera routes.
func (h *Handler) RegisterCamera(api huma.API) {
	huma.Post(api, "/api/v1/maps/{id}/camera/jump", h.JumpTo, huma.OperationTags("camera"))
	huma.Post(api, "/api/v1/maps/{id}/camera/ease", h.EaseTo, huma.OperationTags("camera"))
	huma.Post(api, "/api/v1/maps/{id}/camera/fly", h.FlyTo, huma.OperationTags("camera"))
	huma.Post(api, "/api/v1/maps/{id}/camera/fit", h.FitBounds, huma.OperationTags("camera"))
	huma.Put(api, "/api/v1/maps/{id}/camera/zoom", h.SetZoom, huma.OperationTags("camera"))
	huma.Put(api, "/api/v1/maps/{id}/camera/bearing", h.SetBearing, huma.OperationTags("camera"))
	huma.Put(api, "/api/v1/maps/{id}/camera/pitch", h.SetPitch, huma.OperationTags("camera"))
	huma.Put(api, "/api/v1/maps/{id}/max-bounds", h.SetMaxBounds, huma.OperationTags("camera"))
}

type CameraInput struct {
	MapInput
	Body model.CameraOptions
}

type ScalarInput struct {
	MapInput
	Body ScalarBody
}

func (h *Handler) camera(ctx context.Context, input *CameraInput, fn func(context.Context, string, model.CameraOptions) error) (*MessageOutput, error) {
	if err := fn(ctx, input.ID, input.Body); err != nil {
		return nil, h.fail(err)
	}
	return message("Camera moved"), nil
}

func (h *Handler) JumpTo(ctx context.Context, input *CameraInput) (*MessageOutput, error) {
	return h.camera(ctx, input, h.bridge.JumpTo)
}

func (h *Handler) EaseTo(ctx context.Context, input *CameraInput) (*MessageOutput, error) {
	return h.camera(ctx, input, h.bridge.EaseTo)
}

func (h *Handler) FlyTo(ctx context.Context, input *CameraInput) (*MessageOutput, error) {
	return h.camera(ctx, input, h.bridge.FlyTo)
}

func (h *Handler) FitBounds(ctx context.Context, input *struct {
	MapInput
	Body FitBody
}) (*MessageOutput, error) {
	var opts model.FitBoundsOptions
	if input.Body.Options != nil {
		opts = *input.Body.Options
	}
	if err := h.bridge.FitBounds(ctx, input.ID, input.Body.Bounds, opts); err != nil {
		return nil, h.fail(err)
	}
	return message("Camera moved"), nil
}

func (h *Handler) scalar(ctx context.Context, input *ScalarInput, fn func(context.Context, string, float64) error) (*MessageOutput, error) {
	if err := fn(ctx, input.ID, input.Body.Value); err != nil {
		return nil, h.fail(err)
	}
	return message("Camera updated"), nil
}

func (h *Handler) SetZoom(ctx context.Context, input *ScalarInput) (*MessageOutput, error) {
	return h.scalar(ctx, input, h.bridge.SetZoom)
}

func (h *Handler) SetBearing(ctx context.Context, input *ScalarInput) (*MessageOutput, error) {
	return h.scalar(ctx, input, h.bridge.SetBearing)
}

func (h *Handler) SetPitch(ctx context.Context, input *ScalarInput) (*MessageOutput, error) {
	return h.scalar(ctx, input, h.bridge.SetPitch)
}

func (h *Handler) SetMaxBounds(ctx context.Context, input *struct {
	MapInput
	Body struct {
		Bounds *model.MapBounds `json:"bounds,omitempty" doc:"Panning limit; omit to lift it"`
	}
}) (*MessageOutput, error) {
	if err := h.bridge.SetMaxBounds(ctx, input.ID, input.Body.Bounds); err != nil {
		return nil, h.fail(err)
	}
	return message("Max bounds set"), nil
}
