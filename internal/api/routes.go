// Package api exposes bridge operations as a Huma HTTP API.
package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mapbridge/internal/bridge"
	"github.com/joeblew999/plat-mapbridge/internal/errutil"
	"github.com/joeblew999/plat-mapbridge/internal/stream"
)

// Version is reported by the health and info endpoints.
const Version = "0.1.0"

// Handler holds the API handlers. Methods named Register* add one route
// group each.
type Handler struct {
	bridge *bridge.Bridge
	bus    *stream.Bus
	logger *slog.Logger
}

// NewHandler creates the handlers. A nil bus disables the event stream.
func NewHandler(b *bridge.Bridge, bus *stream.Bus, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bridge: b, bus: bus, logger: logger}
}

// Register adds every route group to api.
func (h *Handler) Register(api huma.API) {
	h.RegisterHealth(api)
	h.RegisterInfo(api)
	h.RegisterMaps(api)
	h.RegisterEvents(api)
	h.RegisterMarkers(api)
	h.RegisterPopups(api)
	h.RegisterSources(api)
	h.RegisterLayers(api)
	h.RegisterStyle(api)
	h.RegisterCamera(api)
	h.RegisterControls(api)
	h.RegisterPlugins(api)
	h.RegisterQueries(api)
}

// Shared inputs and bodies.

type MapInput struct {
	ID string `path:"id" doc:"Map id" example:"m1"`
}

type ItemInput struct {
	MapInput
	Item string `path:"item" doc:"Handle id" example:"a"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type MessageOutput struct {
	Body MessageBody
}

type CreatedBody struct {
	ID      string `json:"id" doc:"Handle id"`
	Message string `json:"message" doc:"Result message"`
}

type CreatedOutput struct {
	Body CreatedBody
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

func message(msg string) *MessageOutput {
	return &MessageOutput{Body: MessageBody{Message: msg}}
}

func created(id, msg string) *CreatedOutput {
	return &CreatedOutput{Body: CreatedBody{ID: id, Message: msg}}
}

// RegisterHealth registers the health check.
func (h *Handler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *Handler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

// fail maps a bridge error to an HTTP error.
func (h *Handler) fail(err error) error {
	switch {
	case bridge.IsNotFound(err):
		return huma.Error404NotFound(err.Error())
	case bridge.IsValidation(err):
		return huma.Error422UnprocessableEntity(err.Error())
	case bridge.IsDoubleInitialization(err):
		return huma.Error409Conflict(err.Error())
	case bridge.IsUpstream(err):
		errutil.LogError(h.logger, "map library command failed", err)
		return huma.Error502BadGateway(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(err.Error())
	}
	errutil.LogError(h.logger, "request failed", err)
	return huma.Error500InternalServerError(err.Error())
}
