package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/model"
)

type InfoBody struct {
	Name     string             `json:"name" doc:"Service name"`
	Version  string             `json:"version" doc:"Service version"`
	Maps     int                `json:"maps" doc:"Live maps"`
	Plugins  []model.PluginKind `json:"plugins" doc:"Loadable plugins"`
	Controls []string           `json:"controls" doc:"Control types"`
}

// RegisterInfo registers the service info route.
func (h *Handler) RegisterInfo(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

func (h *Handler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-mapbridge",
		Version:  Version,
		Maps:     len(h.bridge.Maps()),
		Plugins:  model.PluginKinds(),
		Controls: bridge.ControlTypes(),
	}}, nil
}
