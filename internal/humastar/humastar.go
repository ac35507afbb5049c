// Package humastar bridges Huma streaming responses with the Datastar SSE
// protocol. Map events are sent as Datastar custom events so the page can
// react to them; camera state is mirrored into signals.
package humastar

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-mapbridge/internal/model"
)

// MapEvent is the custom event name map events are dispatched under.
const MapEvent = "map-event"

// SSE wraps a Datastar generator.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE creates an SSE helper from a Huma streaming context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Stream returns a streaming response that runs fn with a ready SSE helper.
func Stream(fn func(ctx context.Context, sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			fn(humaCtx.Context(), NewSSE(humaCtx))
		},
	}
}

// Event dispatches a map event. Move and zoom events also patch the camera
// signals under maps.<id>.
func (s SSE) Event(ev model.Event) error {
	if err := s.DispatchCustomEvent(MapEvent, ev); err != nil {
		return err
	}
	if signals := cameraSignals(ev); signals != nil {
		return s.MarshalAndPatchSignals(signals)
	}
	return nil
}

// Error sends an error signal.
func (s SSE) Error(msg string) error {
	return s.MarshalAndPatchSignals(map[string]any{"error": msg})
}

func cameraSignals(ev model.Event) map[string]any {
	switch data := ev.Data.(type) {
	case model.MapMoveEvent:
		return map[string]any{"maps": map[string]any{ev.MapID: map[string]any{
			"longitude": data.Longitude,
			"latitude":  data.Latitude,
			"zoom":      data.Zoom,
			"bearing":   data.Bearing,
			"pitch":     data.Pitch,
		}}}
	case model.MapZoomEvent:
		return map[string]any{"maps": map[string]any{ev.MapID: map[string]any{"zoom": data.Zoom}}}
	}
	return nil
}
