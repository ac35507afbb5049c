package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/humastar"
	"github.com/joeblew999/plat-mapbridge/internal/model"
)

// MapBody is a map summary with the actions available on it.
type MapBody struct {
	bridge.MapInfo
}

// Actions lists what can be done with the map in its current state.
func (m MapBody) Actions() []humastar.Action {
	base := "/api/v1/maps/" + m.ID
	actions := []humastar.Action{
		{Rel: "destroy", Href: base, Method: http.MethodDelete},
		{Rel: "resize", Href: base + "/resize", Method: http.MethodPost},
		{Rel: "add-marker", Href: base + "/markers", Method: http.MethodPost, Schema: "/schemas/MarkerOptions.json"},
		{Rel: "add-source", Href: base + "/sources", Method: http.MethodPost},
		{Rel: "add-layer", Href: base + "/layers", Method: http.MethodPost, Schema: "/schemas/LayerDefinition.json"},
	}
	if m.Relay == bridge.Uninitialized.String() {
		actions = append(actions, humastar.Action{Rel: "setup", Href: base + "/relay", Method: http.MethodPost})
	}
	if m.Terrain {
		actions = append(actions, humastar.Action{Rel: "disable-terrain", Href: base + "/terrain", Method: http.MethodDelete})
	} else {
		actions = append(actions, humastar.Action{Rel: "enable-terrain", Href: base + "/terrain", Method: http.MethodPost})
	}
	return actions
}

type MapOutput struct {
	Body MapBody
}

type MapsOutput struct {
	Body []string
}

type ViewportOutput struct {
	Body model.Viewport
}

func withStatus(code int) func(o *huma.Operation) {
	return func(o *huma.Operation) { o.DefaultStatus = code }
}

// RegisterMaps registers map lifecycle routes.
func (h *Handler) RegisterMaps(api huma.API) {
	huma.Get(api, "/api/v1/maps", h.ListMaps, huma.OperationTags("maps"))
	huma.Post(api, "/api/v1/maps", h.InitializeMap, huma.OperationTags("maps"), withStatus(http.StatusCreated))
	huma.Get(api, "/api/v1/maps/{id}", h.GetMap, huma.OperationTags("maps"))
	huma.Delete(api, "/api/v1/maps/{id}", h.DestroyMap, huma.OperationTags("maps"))
	huma.Post(api, "/api/v1/maps/{id}/relay", h.SetupRelay, huma.OperationTags("maps"))
	huma.Post(api, "/api/v1/maps/{id}/resize", h.ResizeMap, huma.OperationTags("maps"))
	huma.Get(api, "/api/v1/maps/{id}/viewport", h.GetViewport, huma.OperationTags("maps"))
}

func (h *Handler) ListMaps(ctx context.Context, input *struct{}) (*MapsOutput, error) {
	return &MapsOutput{Body: h.bridge.Maps()}, nil
}

func (h *Handler) InitializeMap(ctx context.Context, input *struct{ Body model.MapOptions }) (*MapOutput, error) {
	if err := h.bridge.Initialize(ctx, input.Body); err != nil {
		return nil, h.fail(err)
	}
	return h.GetMap(ctx, &MapInput{ID: input.Body.Container})
}

func (h *Handler) GetMap(ctx context.Context, input *MapInput) (*MapOutput, error) {
	info, err := h.bridge.Info(ctx, input.ID)
	if err != nil {
		return nil, h.fail(err)
	}
	return &MapOutput{Body: MapBody{info}}, nil
}

func (h *Handler) DestroyMap(ctx context.Context, input *MapInput) (*MessageOutput, error) {
	if err := h.bridge.Destroy(ctx, input.ID); err != nil {
		return nil, h.fail(err)
	}
	return message("Map destroyed"), nil
}

func (h *Handler) SetupRelay(ctx context.Context, input *MapInput) (*MessageOutput, error) {
	if err := h.bridge.Setup(ctx, input.ID, nil); err != nil {
		return nil, h.fail(err)
	}
	return message("Event relay subscribed"), nil
}

func (h *Handler) ResizeMap(ctx context.Context, input *MapInput) (*MessageOutput, error) {
	if err := h.bridge.Resize(ctx, input.ID); err != nil {
		return nil, h.fail(err)
	}
	return message("Map resized"), nil
}

func (h *Handler) GetViewport(ctx context.Context, input *MapInput) (*ViewportOutput, error) {
	vp, err := h.bridge.Viewport(ctx, input.ID)
	if err != nil {
		return nil, h.fail(err)
	}
	return &ViewportOutput{Body: vp}, nil
}

// RegisterEvents registers the per-map event stream.
func (h *Handler) RegisterEvents(api huma.API) {
	if h.bus == nil {
		return
	}
	huma.Get(api, "/api/v1/maps/{id}/events", h.StreamEvents, huma.OperationTags("events"))
}

// StreamEvents relays the map's events as Datastar SSE until the client
// goes away.
func (h *Handler) StreamEvents(ctx context.Context, input *MapInput) (*huma.StreamResponse, error) {
	if _, err := h.bridge.Info(ctx, input.ID); err != nil {
		return nil, h.fail(err)
	}
	sub := h.bus.Subscribe(input.ID)
	return humastar.Stream(func(ctx context.Context, sse humastar.SSE) {
		defer h.bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if err := sse.Event(ev); err != nil {
					h.logger.Debug("event stream closed", "map_id", input.ID, "error", err)
					return
				}
			}
		}
	}), nil
}
