package browser

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/joeblew999/plat-mapbridge/internal/ids"
	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
)

// Map is a map living in the page. Map commands target the container id;
// markers, popups, controls and plugins get a page handle of their own.
type Map struct {
	lib     *Library
	id      string
	removed atomic.Bool
}

var _ native.Map = (*Map)(nil)

func (m *Map) call(ctx context.Context, op string, args, out any) error {
	if m.removed.Load() {
		return native.ErrRemoved
	}
	return m.lib.call(ctx, "map."+op, m.id, args, out)
}

func (m *Map) On(kind model.EventKind, h native.Handler) func() {
	return m.lib.on(m.id, kind, h)
}

func (m *Map) AddControl(ctx context.Context, spec native.ControlSpec, position string) (native.Control, error) {
	h := ids.WithPrefix("control")
	args := map[string]any{"handle": h, "spec": spec, "position": position}
	if err := m.call(ctx, "addControl", args, nil); err != nil {
		return nil, err
	}
	return &Control{handle: handle{lib: m.lib, id: h}}, nil
}

func (m *Map) NewMarker(ctx context.Context, id string, opts model.MarkerOptions) (native.Marker, error) {
	h := ids.WithPrefix("marker")
	args := map[string]any{"handle": h, "id": id, "options": opts}
	if err := m.call(ctx, "newMarker", args, nil); err != nil {
		return nil, err
	}
	return &Marker{handle: handle{lib: m.lib, id: h}}, nil
}

func (m *Map) NewPopup(ctx context.Context, at model.LngLat, html string, opts model.PopupOptions) (native.Popup, error) {
	h := ids.WithPrefix("popup")
	args := map[string]any{"handle": h, "at": at, "html": html, "options": opts}
	if err := m.call(ctx, "newPopup", args, nil); err != nil {
		return nil, err
	}
	return &Popup{handle: handle{lib: m.lib, id: h}}, nil
}

func (m *Map) AddSource(ctx context.Context, id string, doc json.RawMessage) error {
	return m.call(ctx, "addSource", map[string]any{"id": id, "source": doc}, nil)
}

func (m *Map) RemoveSource(ctx context.Context, id string) error {
	return m.call(ctx, "removeSource", map[string]any{"id": id}, nil)
}

func (m *Map) SetSourceData(ctx context.Context, id string, data json.RawMessage) error {
	return m.call(ctx, "setSourceData", map[string]any{"id": id, "data": data}, nil)
}

func (m *Map) AddLayer(ctx context.Context, doc json.RawMessage, before string) error {
	return m.call(ctx, "addLayer", map[string]any{"layer": doc, "before": before}, nil)
}

func (m *Map) RemoveLayer(ctx context.Context, id string) error {
	return m.call(ctx, "removeLayer", map[string]any{"id": id}, nil)
}

func (m *Map) SetPaintProperty(ctx context.Context, layer, name string, value json.RawMessage) error {
	return m.call(ctx, "setPaintProperty", map[string]any{"layer": layer, "name": name, "value": value}, nil)
}

func (m *Map) SetLayoutProperty(ctx context.Context, layer, name string, value json.RawMessage) error {
	return m.call(ctx, "setLayoutProperty", map[string]any{"layer": layer, "name": name, "value": value}, nil)
}

func (m *Map) SetFilter(ctx context.Context, layer string, filter json.RawMessage) error {
	if len(filter) == 0 {
		filter = json.RawMessage("null")
	}
	return m.call(ctx, "setFilter", map[string]any{"layer": layer, "filter": filter}, nil)
}

func (m *Map) SetStyle(ctx context.Context, style string) error {
	return m.call(ctx, "setStyle", map[string]any{"style": style}, nil)
}

func (m *Map) StyleLayers(ctx context.Context) ([]native.StyleLayer, error) {
	var layers []native.StyleLayer
	err := m.call(ctx, "styleLayers", nil, &layers)
	return layers, err
}

func (m *Map) SetLight(ctx context.Context, opts model.LightOptions) error {
	return m.call(ctx, "setLight", map[string]any{"light": opts}, nil)
}

func (m *Map) SetFog(ctx context.Context, opts *model.FogOptions) error {
	return m.call(ctx, "setFog", map[string]any{"fog": opts}, nil)
}

func (m *Map) SetTerrain(ctx context.Context, source string, exaggeration float64) error {
	return m.call(ctx, "setTerrain", map[string]any{"source": source, "exaggeration": exaggeration}, nil)
}

func (m *Map) JumpTo(ctx context.Context, opts model.CameraOptions) error {
	return m.call(ctx, "jumpTo", map[string]any{"camera": opts}, nil)
}

func (m *Map) EaseTo(ctx context.Context, opts model.CameraOptions) error {
	return m.call(ctx, "easeTo", map[string]any{"camera": opts}, nil)
}

func (m *Map) FlyTo(ctx context.Context, opts model.CameraOptions) error {
	return m.call(ctx, "flyTo", map[string]any{"camera": opts}, nil)
}

func (m *Map) FitBounds(ctx context.Context, bounds model.MapBounds, opts model.FitBoundsOptions) error {
	return m.call(ctx, "fitBounds", map[string]any{"bounds": bounds.ToArray(), "options": opts}, nil)
}

func (m *Map) SetZoom(ctx context.Context, zoom float64) error {
	return m.call(ctx, "setZoom", map[string]any{"value": zoom}, nil)
}

func (m *Map) SetBearing(ctx context.Context, bearing float64) error {
	return m.call(ctx, "setBearing", map[string]any{"value": bearing}, nil)
}

func (m *Map) SetPitch(ctx context.Context, pitch float64) error {
	return m.call(ctx, "setPitch", map[string]any{"value": pitch}, nil)
}

func (m *Map) SetMaxBounds(ctx context.Context, bounds *model.MapBounds) error {
	var arr *[4]float64
	if bounds != nil {
		a := bounds.ToArray()
		arr = &a
	}
	return m.call(ctx, "setMaxBounds", map[string]any{"bounds": arr}, nil)
}

func (m *Map) Viewport(ctx context.Context) (model.Viewport, error) {
	var v model.Viewport
	err := m.call(ctx, "viewport", nil, &v)
	return v, err
}

func (m *Map) QueryRenderedFeatures(ctx context.Context, at *model.ScreenPoint, opts model.QueryOptions) (json.RawMessage, error) {
	var out json.RawMessage
	err := m.call(ctx, "queryRenderedFeatures", map[string]any{"point": at, "options": opts}, &out)
	return out, err
}

func (m *Map) QuerySourceFeatures(ctx context.Context, source string, opts model.SourceQueryOptions) (json.RawMessage, error) {
	var out json.RawMessage
	err := m.call(ctx, "querySourceFeatures", map[string]any{"source": source, "options": opts}, &out)
	return out, err
}

func (m *Map) CanvasImage(ctx context.Context) (string, error) {
	var img string
	err := m.call(ctx, "canvasImage", nil, &img)
	return img, err
}

func (m *Map) AddPlugin(ctx context.Context, opts model.PluginOptions) (native.Plugin, error) {
	h := ids.WithPrefix(string(opts.PluginKind()))
	args := map[string]any{"handle": h, "kind": opts.PluginKind(), "options": opts}
	if err := m.call(ctx, "addPlugin", args, nil); err != nil {
		return nil, err
	}
	return &Plugin{handle: handle{lib: m.lib, id: h}}, nil
}

func (m *Map) Resize(ctx context.Context) error {
	return m.call(ctx, "resize", nil, nil)
}

func (m *Map) Remove(ctx context.Context) error {
	if err := m.call(ctx, "remove", nil, nil); err != nil {
		return err
	}
	m.removed.Store(true)
	m.lib.forgetTarget(m.id)
	return nil
}

// handle is a page object addressed by its generated handle id.
type handle struct {
	lib     *Library
	id      string
	removed atomic.Bool
}

func (h *handle) call(ctx context.Context, op string, args, out any) error {
	if h.removed.Load() {
		return native.ErrRemoved
	}
	return h.lib.call(ctx, op, h.id, args, out)
}

func (h *handle) remove(ctx context.Context, op string) error {
	if err := h.call(ctx, op, nil, nil); err != nil {
		return err
	}
	h.removed.Store(true)
	h.lib.forgetTarget(h.id)
	return nil
}

// Marker is a marker living in the page.
type Marker struct{ handle }

func (m *Marker) SetLngLat(ctx context.Context, at model.LngLat) error {
	return m.call(ctx, "marker.setLngLat", map[string]any{"at": at}, nil)
}

func (m *Marker) SetDraggable(ctx context.Context, draggable bool) error {
	return m.call(ctx, "marker.setDraggable", map[string]any{"value": draggable}, nil)
}

func (m *Marker) SetRotation(ctx context.Context, rotation float64) error {
	return m.call(ctx, "marker.setRotation", map[string]any{"value": rotation}, nil)
}

func (m *Marker) SetPopupHTML(ctx context.Context, html string) error {
	return m.call(ctx, "marker.setPopup", map[string]any{"html": html}, nil)
}

func (m *Marker) Animate(ctx context.Context, path []model.LngLat, duration int) error {
	return m.call(ctx, "marker.animate", map[string]any{"path": path, "duration": duration}, nil)
}

func (m *Marker) Remove(ctx context.Context) error { return m.remove(ctx, "marker.remove") }

// Popup is an open popup in the page. Its events target its handle.
type Popup struct{ handle }

func (p *Popup) On(kind model.EventKind, h native.Handler) func() {
	return p.lib.on(p.id, kind, h)
}

func (p *Popup) Remove(ctx context.Context) error { return p.remove(ctx, "popup.remove") }

// Control is a mounted control in the page. Its events target its handle.
type Control struct{ handle }

func (c *Control) On(kind model.EventKind, h native.Handler) func() {
	return c.lib.on(c.id, kind, h)
}

func (c *Control) Trigger(ctx context.Context) error {
	return c.call(ctx, "control.trigger", nil, nil)
}

func (c *Control) Remove(ctx context.Context) error { return c.remove(ctx, "control.remove") }

// Plugin is a plugin instance in the page. Its events target its handle.
type Plugin struct{ handle }

func (p *Plugin) On(kind model.EventKind, h native.Handler) func() {
	return p.lib.on(p.id, kind, h)
}

func (p *Plugin) Invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	var out json.RawMessage
	err := p.call(ctx, "plugin.invoke", map[string]any{"method": method, "args": args}, &out)
	if err == nil && len(out) == 0 {
		out = json.RawMessage("null")
	}
	return out, err
}

func (p *Plugin) Remove(ctx context.Context) error { return p.remove(ctx, "plugin.remove") }
