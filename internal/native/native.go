// Package native declares the imperative API of the wrapped map library as
// seen by the bridge. The browser package implements it over a websocket to
// the page hosting the map; nativetest provides a recording fake.
package native

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/joeblew999/plat-mapbridge/internal/model"
)

// ErrRemoved is returned by calls against a map, marker or plugin that has
// already been removed.
var ErrRemoved = errors.New("native object removed")

// Handler receives native events. Handlers run on the library's event loop
// and must not block.
type Handler func(Event)

// Event is a raw event raised by the map library, a control or a plugin.
type Event struct {
	Type      model.EventKind `json:"type"`
	LngLat    *model.LngLat   `json:"lngLat,omitempty"`
	Camera    *model.Camera   `json:"camera,omitempty"`
	Features  json.RawMessage `json:"features,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
	Coords    *Coords         `json:"coords,omitempty"`
	MarkerID  string          `json:"markerId,omitempty"`
	PlaceName string          `json:"placeName,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Distance  float64         `json:"distance,omitempty"`
	Duration  float64         `json:"duration,omitempty"`
}

// Coords is a geolocation fix.
type Coords struct {
	Longitude        float64  `json:"longitude"`
	Latitude         float64  `json:"latitude"`
	Accuracy         float64  `json:"accuracy"`
	Altitude         *float64 `json:"altitude,omitempty"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy,omitempty"`
	Heading          *float64 `json:"heading,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`
}

// StyleLayer is a layer of the active style as reported by the library.
type StyleLayer struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Source    string `json:"source,omitempty"`
	TextField bool   `json:"textField,omitempty"`
}

// ControlSpec describes a control to mount. Type is one of the library's
// built-in controls or "custom", in which case HTML is its content.
type ControlSpec struct {
	Type    string `json:"type"`
	Options any    `json:"options,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// Library loads the map library and creates maps.
type Library interface {
	// Load fetches and evaluates the library bundle.
	Load(ctx context.Context) error
	// LoadPlugin fetches an optional plugin module.
	LoadPlugin(ctx context.Context, kind model.PluginKind) error
	NewMap(ctx context.Context, opts model.MapOptions) (Map, error)
}

// Map is a live map instance.
type Map interface {
	On(kind model.EventKind, h Handler) (off func())

	AddControl(ctx context.Context, spec ControlSpec, position string) (Control, error)
	NewMarker(ctx context.Context, id string, opts model.MarkerOptions) (Marker, error)
	NewPopup(ctx context.Context, at model.LngLat, html string, opts model.PopupOptions) (Popup, error)

	AddSource(ctx context.Context, id string, doc json.RawMessage) error
	RemoveSource(ctx context.Context, id string) error
	SetSourceData(ctx context.Context, id string, data json.RawMessage) error

	AddLayer(ctx context.Context, doc json.RawMessage, before string) error
	RemoveLayer(ctx context.Context, id string) error
	SetPaintProperty(ctx context.Context, layer, name string, value json.RawMessage) error
	SetLayoutProperty(ctx context.Context, layer, name string, value json.RawMessage) error
	SetFilter(ctx context.Context, layer string, filter json.RawMessage) error

	SetStyle(ctx context.Context, style string) error
	StyleLayers(ctx context.Context) ([]StyleLayer, error)
	SetLight(ctx context.Context, opts model.LightOptions) error
	// SetFog applies fog; nil clears it.
	SetFog(ctx context.Context, opts *model.FogOptions) error
	// SetTerrain drapes the map over a DEM source; an empty source clears it.
	SetTerrain(ctx context.Context, source string, exaggeration float64) error

	JumpTo(ctx context.Context, opts model.CameraOptions) error
	EaseTo(ctx context.Context, opts model.CameraOptions) error
	FlyTo(ctx context.Context, opts model.CameraOptions) error
	FitBounds(ctx context.Context, bounds model.MapBounds, opts model.FitBoundsOptions) error
	SetZoom(ctx context.Context, zoom float64) error
	SetBearing(ctx context.Context, bearing float64) error
	SetPitch(ctx context.Context, pitch float64) error
	// SetMaxBounds constrains panning; nil removes the constraint.
	SetMaxBounds(ctx context.Context, bounds *model.MapBounds) error

	Viewport(ctx context.Context) (model.Viewport, error)
	// QueryRenderedFeatures returns a GeoJSON feature array. A nil point
	// queries the whole viewport.
	QueryRenderedFeatures(ctx context.Context, at *model.ScreenPoint, opts model.QueryOptions) (json.RawMessage, error)
	QuerySourceFeatures(ctx context.Context, source string, opts model.SourceQueryOptions) (json.RawMessage, error)
	// CanvasImage returns the rendered map as a PNG data URL.
	CanvasImage(ctx context.Context) (string, error)

	AddPlugin(ctx context.Context, opts model.PluginOptions) (Plugin, error)

	Resize(ctx context.Context) error
	Remove(ctx context.Context) error
}

// Marker is a live marker.
type Marker interface {
	SetLngLat(ctx context.Context, at model.LngLat) error
	SetDraggable(ctx context.Context, draggable bool) error
	SetRotation(ctx context.Context, rotation float64) error
	SetPopupHTML(ctx context.Context, html string) error
	// Animate moves the marker along path over duration milliseconds.
	Animate(ctx context.Context, path []model.LngLat, duration int) error
	Remove(ctx context.Context) error
}

// Popup is an open popup. It raises popup.close when the page closes it.
type Popup interface {
	On(kind model.EventKind, h Handler) func()
	Remove(ctx context.Context) error
}

// Control is a mounted control.
type Control interface {
	On(kind model.EventKind, h Handler) (off func())
	// Trigger activates the control, e.g. starts geolocation tracking.
	Trigger(ctx context.Context) error
	Remove(ctx context.Context) error
}

// Plugin is a plugin instance attached to a map.
type Plugin interface {
	On(kind model.EventKind, h Handler) (off func())
	// Invoke calls a plugin method and returns its JSON result.
	Invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error)
	Remove(ctx context.Context) error
}
