package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/model"
)

type ControlBody struct {
	Type     string          `json:"type" enum:"navigation,geolocate,fullscreen,scale,attribution,custom" example:"navigation"`
	Position string          `json:"position,omitempty" enum:"top-left,top-right,bottom-left,bottom-right" doc:"Corner; top-right when empty"`
	Options  json.RawMessage `json:"options,omitempty" doc:"Control options"`
}

type ControlsOutput struct {
	Body []bridge.ControlInfo
}

type PluginsOutput struct {
	Body []model.PluginKind
}

type PluginKindInput struct {
	MapInput
	Kind string `path:"kind" enum:"draw,geocoder,directions,compare"`
}

type RouteBody struct {
	Origin      model.LngLat   `json:"origin"`
	Destination model.LngLat   `json:"destination"`
	Waypoints   []model.LngLat `json:"waypoints,omitempty"`
}

type FeaturesOutput struct {
	Body json.RawMessage
}

type ImageOutput struct {
	Body struct {
		DataURL string `json:"dataUrl" doc:"PNG data URL of the map canvas"`
	}
}

// RegisterControls registers control routes.
func (h *Handler) RegisterControls(api huma.API) {
	huma.Get(api, "/api/v1/maps/{id}/controls", h.ListControls, huma.OperationTags("controls"))
	huma.Post(api, "/api/v1/maps/{id}/controls", h.AddControl, huma.OperationTags("controls"), withStatus(http.StatusCreated))
	huma.Delete(api, "/api/v1/maps/{id}/controls/{item}", h.RemoveControl, huma.OperationTags("controls"))
	huma.Post(api, "/api/v1/maps/{id}/geolocate", h.TrackUserLocation, huma.OperationTags("controls"), withStatus(http.StatusCreated))
}

func (h *Handler) ListControls(ctx context.Context, input *MapInput) (*ControlsOutput, error) {
	controls, err := h.bridge.Controls(ctx, input.ID)
	if err != nil {
		return nil, h.fail(err)
	}
	return &ControlsOutput{Body: controls}, nil
}

func (h *Handler) AddControl(ctx context.Context, input *struct {
	MapInput
	Body ControlBody
}) (*CreatedOutput, error) {
	c, err := bridge.NewControl(input.Body.Type, input.Body.Options)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	id, err := h.bridge.AddControl(ctx, input.ID, c, input.Body.Position)
	if err != nil {
		return nil, h.fail(err)
	}
	return created(id, "Control added"), nil
}

func (h *Handler) RemoveControl(ctx context.Context, input *ItemInput) (*MessageOutput, error) {
	if err := h.bridge.RemoveControl(ctx, input.ID, input.Item); err != nil {
		return nil, h.fail(err)
	}
	return message("Control removed"), nil
}

func (h *Handler) TrackUserLocation(ctx context.Context, input *MapInput) (*CreatedOutput, error) {
	id, err := h.bridge.TrackUserLocation(ctx, input.ID)
	if err != nil {
		return nil, h.fail(err)
	}
	return created(id, "Tracking user location"), nil
}

// RegisterPlugins registers plugin loading and plugin command routes.
func (h *Handler) RegisterPlugins(api huma.API) {
	huma.Get(api, "/api/v1/maps/{id}/plugins", h.ListPlugins, huma.OperationTags("plugins"))
	huma.Post(api, "/api/v1/maps/{id}/plugins/draw", h.LoadDraw, huma.OperationTags("plugins"), withStatus(http.StatusCreated))
	huma.Post(api, "/api/v1/maps/{id}/plugins/geocoder", h.LoadGeocoder, huma.OperationTags("plugins"), withStatus(http.StatusCreated))
	huma.Post(api, "/api/v1/maps/{id}/plugins/directions", h.LoadDirections, huma.OperationTags("plugins"), withStatus(http.StatusCreated))
	huma.Post(api, "/api/v1/maps/{id}/plugins/compare", h.LoadCompare, huma.OperationTags("plugins"), withStatus(http.StatusCreated))
	huma.Delete(api, "/api/v1/maps/{id}/plugins/{kind}", h.UnloadPlugin, huma.OperationTags("plugins"))

	huma.Get(api, "/api/v1/maps/{id}/draw/features", h.DrawnFeatures, huma.OperationTags("plugins"))
	huma.Delete(api, "/api/v1/maps/{id}/draw/features", h.ClearDrawnFeatures, huma.OperationTags("plugins"))
	huma.Put(api, "/api/v1/maps/{id}/draw/mode", h.SetDrawMode, huma.OperationTags("plugins"))
	huma.Put(api, "/api/v1/maps/{id}/directions/route", h.SetDirectionsRoute, huma.OperationTags("plugins"))
	huma.Delete(api, "/api/v1/maps/{id}/directions/route", h.ClearDirectionsRoute, huma.OperationTags("plugins"))
	huma.Put(api, "/api/v1/maps/{id}/geocoder/input", h.SetGeocoderInput, huma.OperationTags("plugins"))
	huma.Delete(api, "/api/v1/maps/{id}/geocoder/input", h.ClearGeocoderInput, huma.OperationTags("plugins"))
}

func (h *Handler) ListPlugins(ctx context.Context, input *MapInput) (*PluginsOutput, error) {
	plugins, err := h.bridge.Plugins(ctx, input.ID)
	if err != nil {
		return nil, h.fail(err)
	}
	return &PluginsOutput{Body: plugins}, nil
}

func (h *Handler) loadPlugin(ctx context.Context, mapID string, opts model.PluginOptions) (*CreatedOutput, error) {
	id, err := h.bridge.LoadPlugin(ctx, mapID, opts)
	if err != nil {
		return nil, h.fail(err)
	}
	return created(id, "Plugin loaded"), nil
}

func (h *Handler) LoadDraw(ctx context.Context, input *struct {
	MapInput
	Body *model.DrawOptions `required:"false"`
}) (*CreatedOutput, error) {
	opts := model.DefaultDrawOptions()
	if input.Body != nil {
		opts = *input.Body
	}
	return h.loadPlugin(ctx, input.ID, opts)
}

func (h *Handler) LoadGeocoder(ctx context.Context, input *struct {
	MapInput
	Body *model.GeocoderOptions `required:"false"`
}) (*CreatedOutput, error) {
	opts := model.DefaultGeocoderOptions()
	if input.Body != nil {
		opts = *input.Body
	}
	return h.loadPlugin(ctx, input.ID, opts)
}

func (h *Handler) LoadDirections(ctx context.Context, input *struct {
	MapInput
	Body *model.DirectionsOptions `required:"false"`
}) (*CreatedOutput, error) {
	opts := model.DefaultDirectionsOptions()
	if input.Body != nil {
		opts = *input.Body
	}
	return h.loadPlugin(ctx, input.ID, opts)
}

func (h *Handler) LoadCompare(ctx context.Context, input *struct {
	MapInput
	Body model.CompareOptions
}) (*CreatedOutput, error) {
	return h.loadPlugin(ctx, input.ID, input.Body)
}

func (h *Handler) UnloadPlugin(ctx context.Context, input *PluginKindInput) (*MessageOutput, error) {
	if err := h.bridge.UnloadPlugin(ctx, input.ID, model.PluginKind(input.Kind)); err != nil {
		return nil, h.fail(err)
	}
	return message("Plugin unloaded"), nil
}

func (h *Handler) DrawnFeatures(ctx context.Context, input *MapInput) (*FeaturesOutput, error) {
	fc, err := h.bridge.DrawnFeatures(ctx, input.ID)
	if err != nil {
		return nil, h.fail(err)
	}
	return &FeaturesOutput{Body: fc}, nil
}

func (h *Handler) ClearDrawnFeatures(ctx context.Context, input *MapInput) (*MessageOutput, error) {
	if err := h.bridge.ClearDrawnFeatures(ctx, input.ID); err != nil {
		return nil, h.fail(err)
	}
	return message("Drawn features cleared"), nil
}

func (h *Handler) SetDrawMode(ctx context.Context, input *struct {
	MapInput
	Body struct {
		Mode string `json:"mode" example:"draw_polygon"`
	}
}) (*MessageOutput, error) {
	if err := h.bridge.SetDrawMode(ctx, input.ID, input.Body.Mode); err != nil {
		return nil, h.fail(err)
	}
	return message("Draw mode set"), nil
}

func (h *Handler) SetDirectionsRoute(ctx context.Context, input *struct {
	MapInput
	Body RouteBody
}) (*MessageOutput, error) {
	b := input.Body
	if err := h.bridge.SetDirectionsRoute(ctx, input.ID, b.Origin, b.Destination, b.Waypoints); err != nil {
		return nil, h.fail(err)
	}
	return message("Route set"), nil
}

func (h *Handler) ClearDirectionsRoute(ctx context.Context, input *MapInput) (*MessageOutput, error) {
	if err := h.bridge.ClearDirectionsRoute(ctx, input.ID); err != nil {
		return nil, h.fail(err)
	}
	return message("Route cleared"), nil
}

func (h *Handler) SetGeocoderInput(ctx context.Context, input *struct {
	MapInput
	Body struct {
		Query string `json:"query" example:"Paris"`
	}
}) (*MessageOutput, error) {
	if err := h.bridge.SetGeocoderInput(ctx, input.ID, input.Body.Query); err != nil {
		return nil, h.fail(err)
	}
	return message("Geocoder query set"), nil
}

func (h *Handler) ClearGeocoderInput(ctx context.Context, input *MapInput) (*MessageOutput, error) {
	if err := h.bridge.ClearGeocoderInput(ctx, input.ID); err != nil {
		return nil, h.fail(err)
	}
	return message("Geocoder cleared"), nil
}

// RegisterQueries registers feature query and capture routes.
func (h *Handler) RegisterQueries(api huma.API) {
	huma.Post(api, "/api/v1/maps/{id}/features/rendered", h.QueryRenderedFeatures, huma.OperationTags("queries"))
	huma.Post(api, "/api/v1/maps/{id}/sources/{item}/features", h.QuerySourceFeatures, huma.OperationTags("queries"))
	huma.Get(api, "/api/v1/maps/{id}/image", h.MapImage, huma.OperationTags("queries"))
}

func (h *Handler) QueryRenderedFeatures(ctx context.Context, input *struct {
	MapInput
	Body struct {
		Point   *model.ScreenPoint `json:"point,omitempty" doc:"Pixel to query; the whole viewport when omitted"`
		Options model.QueryOptions `json:"options,omitempty"`
	}
}) (*FeaturesOutput, error) {
	features, err := h.bridge.QueryRenderedFeatures(ctx, input.ID, input.Body.Point, input.Body.Options)
	if err != nil {
		return nil, h.fail(err)
	}
	return &FeaturesOutput{Body: features}, nil
}

func (h *Handler) QuerySourceFeatures(ctx context.Context, input *struct {
	ItemInput
	Body model.SourceQueryOptions `required:"false"`
}) (*FeaturesOutput, error) {
	features, err := h.bridge.QuerySourceFeatures(ctx, input.ID, input.Item, input.Body)
	if err != nil {
		return nil, h.fail(err)
	}
	return &FeaturesOutput{Body: features}, nil
}

func (h *Handler) MapImage(ctx context.Context, input *MapInput) (*ImageOutput, error) {
	img, err := h.bridge.MapImage(ctx, input.ID)
	if err != nil {
		return nil, h.fail(err)
	}
	out := &ImageOutput{}
	out.Body.DataURL = img
	return out, nil
}
