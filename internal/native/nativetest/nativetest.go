// Package nativetest provides a recording in-memory fake of the native map
// library for tests.
package nativetest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
)

// Library is a fake native.Library. Every call against it, or against the
// maps, markers, popups, controls and plugins it creates, is recorded as
// "op:target" (for example "addSource:parks" or "marker.remove:a").
type Library struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]error
	gates    map[string]chan struct{}
	maps     map[string]*Map
}

var _ native.Library = (*Library)(nil)

// New creates an empty fake library.
func New() *Library {
	return &Library{
		failures: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		maps:     make(map[string]*Map),
	}
}

// Fail makes calls matching key return err. Key is either an op name
// ("addSource") or a full call ("addSource:parks"). A nil err clears it.
func (l *Library) Fail(key string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.failures, key)
		return
	}
	l.failures[key] = err
}

// Block makes calls matching key wait until the returned release func is
// called or their context ends.
func (l *Library) Block(key string) (release func()) {
	gate := make(chan struct{})
	l.mu.Lock()
	l.gates[key] = gate
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			if l.gates[key] == gate {
				delete(l.gates, key)
			}
			l.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns a copy of the recorded calls in order.
func (l *Library) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Count returns how many recorded calls equal call, or have op name call
// when it carries no target.
func (l *Library) Count(call string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == call || (!strings.Contains(call, ":") && opName(c) == call) {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (l *Library) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

// Map returns the live fake map with the given container id.
func (l *Library) Map(id string) *Map {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maps[id]
}

func opName(call string) string {
	op, _, _ := strings.Cut(call, ":")
	return op
}

// record logs a call, waits on any gate for it, then returns its injected
// failure.
func (l *Library) record(ctx context.Context, op, target string) error {
	call := op
	if target != "" {
		call = op + ":" + target
	}

	l.mu.Lock()
	l.calls = append(l.calls, call)
	gate, ok := l.gates[call]
	if !ok {
		gate, ok = l.gates[op]
	}
	l.mu.Unlock()

	if ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.failures[call]; ok {
		return err
	}
	return l.failures[op]
}

func (l *Library) Load(ctx context.Context) error {
	return l.record(ctx, "load", "")
}

func (l *Library) LoadPlugin(ctx context.Context, kind model.PluginKind) error {
	return l.record(ctx, "loadPlugin", string(kind))
}

func (l *Library) NewMap(ctx context.Context, opts model.MapOptions) (native.Map, error) {
	if err := l.record(ctx, "newMap", opts.Container); err != nil {
		return nil, err
	}
	m := &Map{
		lib:      l,
		id:       opts.Container,
		handlers: newHandlers(),
		sources:  make(map[string]json.RawMessage),
		style:    opts.Style,
		viewport: model.Viewport{Camera: model.Camera{Zoom: opts.Zoom, Bearing: opts.Bearing, Pitch: opts.Pitch}},
	}
	if opts.Center != nil {
		m.viewport.Center = *opts.Center
	}
	l.mu.Lock()
	l.maps[opts.Container] = m
	l.mu.Unlock()
	return m, nil
}

// handlers is a per-kind handler table shared by maps, controls and plugins.
type handlers struct {
	mu   sync.Mutex
	next int
	byID map[model.EventKind]map[int]native.Handler
}

func newHandlers() *handlers {
	return &handlers{byID: make(map[model.EventKind]map[int]native.Handler)}
}

func (h *handlers) on(kind model.EventKind, fn native.Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byID[kind] == nil {
		h.byID[kind] = make(map[int]native.Handler)
	}
	h.next++
	id := h.next
	h.byID[kind][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.byID[kind], id)
	}
}

func (h *handlers) emit(ev native.Event) {
	h.mu.Lock()
	fns := make([]native.Handler, 0, len(h.byID[ev.Type]))
	for _, fn := range h.byID[ev.Type] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (h *handlers) count(kind model.EventKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byID[kind])
}

// Map is a fake native.Map.
type Map struct {
	lib      *Library
	id       string
	handlers *handlers

	mu          sync.Mutex
	sources     map[string]json.RawMessage
	layers      []string
	style       string
	styleLayers []native.StyleLayer
	viewport    model.Viewport
	plugins     []*Plugin
	controls    []*Control
	removed     bool
}

var _ native.Map = (*Map)(nil)

// Emit raises a native event on the map.
func (m *Map) Emit(ev native.Event) { m.handlers.emit(ev) }

// Handlers returns how many handlers are attached for kind.
func (m *Map) Handlers(kind model.EventKind) int { return m.handlers.count(kind) }

// SetStyleLayers sets the layers StyleLayers reports for the active style.
func (m *Map) SetStyleLayers(layers []native.StyleLayer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.styleLayers = layers
}

// SetViewport sets the viewport Viewport reports.
func (m *Map) SetViewport(v model.Viewport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewport = v
}

// Sources returns the ids of sources currently on the map.
func (m *Map) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sources))
	for id := range m.sources {
		ids = append(ids, id)
	}
	return ids
}

// Layers returns the ids of user layers in draw order.
func (m *Map) Layers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.layers...)
}

// Style returns the active style URL.
func (m *Map) Style() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.style
}

// Plugin returns the most recently added plugin of kind.
func (m *Map) Plugin(kind model.PluginKind) *Plugin {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.plugins) - 1; i >= 0; i-- {
		if m.plugins[i].kind == kind {
			return m.plugins[i]
		}
	}
	return nil
}

// Controls returns the mounted controls in mount order.
func (m *Map) Controls() []*Control {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Control(nil), m.controls...)
}

// Removed reports whether Remove was called.
func (m *Map) Removed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed
}

func (m *Map) call(ctx context.Context, op, target string) error {
	m.mu.Lock()
	removed := m.removed
	m.mu.Unlock()
	if removed {
		return native.ErrRemoved
	}
	return m.lib.record(ctx, op, target)
}

func (m *Map) On(kind model.EventKind, h native.Handler) func() {
	return m.handlers.on(kind, h)
}

func (m *Map) AddControl(ctx context.Context, spec native.ControlSpec, position string) (native.Control, error) {
	if err := m.call(ctx, "addControl", spec.Type); err != nil {
		return nil, err
	}
	c := &Control{lib: m.lib, Spec: spec, Position: position, handlers: newHandlers()}
	m.mu.Lock()
	m.controls = append(m.controls, c)
	m.mu.Unlock()
	return c, nil
}

func (m *Map) NewMarker(ctx context.Context, id string, opts model.MarkerOptions) (native.Marker, error) {
	if err := m.call(ctx, "newMarker", id); err != nil {
		return nil, err
	}
	return &Marker{lib: m.lib, ID: id, Options: opts, At: opts.Position()}, nil
}

func (m *Map) NewPopup(ctx context.Context, at model.LngLat, html string, opts model.PopupOptions) (native.Popup, error) {
	if err := m.call(ctx, "newPopup", fmt.Sprintf("%g,%g", at.Lng, at.Lat)); err != nil {
		return nil, err
	}
	return &Popup{lib: m.lib, HTML: html, handlers: newHandlers()}, nil
}

func (m *Map) AddSource(ctx context.Context, id string, doc json.RawMessage) error {
	if err := m.call(ctx, "addSource", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("there is already a source with id %q", id)
	}
	m.sources[id] = doc
	return nil
}

func (m *Map) RemoveSource(ctx context.Context, id string) error {
	if err := m.call(ctx, "removeSource", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, id)
	return nil
}

func (m *Map) SetSourceData(ctx context.Context, id string, data json.RawMessage) error {
	return m.call(ctx, "setSourceData", id)
}

func (m *Map) AddLayer(ctx context.Context, doc json.RawMessage, before string) error {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return err
	}
	if err := m.call(ctx, "addLayer", head.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range m.layers {
		if id == before {
			m.layers = append(m.layers[:i], append([]string{head.ID}, m.layers[i:]...)...)
			return nil
		}
	}
	m.layers = append(m.layers, head.ID)
	return nil
}

func (m *Map) RemoveLayer(ctx context.Context, id string) error {
	if err := m.call(ctx, "removeLayer", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.layers {
		if l == id {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Map) SetPaintProperty(ctx context.Context, layer, name string, value json.RawMessage) error {
	return m.call(ctx, "setPaintProperty", layer+"."+name)
}

func (m *Map) SetLayoutProperty(ctx context.Context, layer, name string, value json.RawMessage) error {
	return m.call(ctx, "setLayoutProperty", layer+"."+name)
}

func (m *Map) SetFilter(ctx context.Context, layer string, filter json.RawMessage) error {
	return m.call(ctx, "setFilter", layer)
}

func (m *Map) SetStyle(ctx context.Context, style string) error {
	if err := m.call(ctx, "setStyle", style); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.style = style
	m.sources = make(map[string]json.RawMessage)
	m.layers = nil
	return nil
}

func (m *Map) StyleLayers(ctx context.Context) ([]native.StyleLayer, error) {
	if err := m.call(ctx, "styleLayers", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]native.StyleLayer(nil), m.styleLayers...), nil
}

func (m *Map) SetLight(ctx context.Context, opts model.LightOptions) error {
	return m.call(ctx, "setLight", "")
}

func (m *Map) SetFog(ctx context.Context, opts *model.FogOptions) error {
	if opts == nil {
		return m.call(ctx, "setFog", "none")
	}
	return m.call(ctx, "setFog", "")
}

func (m *Map) SetTerrain(ctx context.Context, source string, exaggeration float64) error {
	if source == "" {
		return m.call(ctx, "setTerrain", "none")
	}
	return m.call(ctx, "setTerrain", source)
}

func (m *Map) move(ctx context.Context, op string, opts model.CameraOptions) error {
	target := ""
	if opts.Essential {
		target = "essential"
	}
	if err := m.call(ctx, op, target); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if opts.Center != nil {
		m.viewport.Center = *opts.Center
	}
	if opts.Zoom != nil {
		m.viewport.Zoom = *opts.Zoom
	}
	if opts.Bearing != nil {
		m.viewport.Bearing = *opts.Bearing
	}
	if opts.Pitch != nil {
		m.viewport.Pitch = *opts.Pitch
	}
	return nil
}

func (m *Map) JumpTo(ctx context.Context, opts model.CameraOptions) error {
	return m.move(ctx, "jumpTo", opts)
}

func (m *Map) EaseTo(ctx context.Context, opts model.CameraOptions) error {
	return m.move(ctx, "easeTo", opts)
}

func (m *Map) FlyTo(ctx context.Context, opts model.CameraOptions) error {
	return m.move(ctx, "flyTo", opts)
}

func (m *Map) FitBounds(ctx context.Context, bounds model.MapBounds, opts model.FitBoundsOptions) error {
	if err := m.call(ctx, "fitBounds", ""); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewport.Bounds = bounds
	return nil
}

func (m *Map) SetZoom(ctx context.Context, zoom float64) error {
	if err := m.call(ctx, "setZoom", ""); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewport.Zoom = zoom
	return nil
}

func (m *Map) SetBearing(ctx context.Context, bearing float64) error {
	if err := m.call(ctx, "setBearing", ""); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewport.Bearing = bearing
	return nil
}

func (m *Map) SetPitch(ctx context.Context, pitch float64) error {
	if err := m.call(ctx, "setPitch", ""); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewport.Pitch = pitch
	return nil
}

func (m *Map) SetMaxBounds(ctx context.Context, bounds *model.MapBounds) error {
	if bounds == nil {
		return m.call(ctx, "setMaxBounds", "none")
	}
	return m.call(ctx, "setMaxBounds", "")
}

func (m *Map) Viewport(ctx context.Context) (model.Viewport, error) {
	if err := m.call(ctx, "viewport", ""); err != nil {
		return model.Viewport{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport, nil
}

func (m *Map) QueryRenderedFeatures(ctx context.Context, at *model.ScreenPoint, opts model.QueryOptions) (json.RawMessage, error) {
	if err := m.call(ctx, "queryRenderedFeatures", strings.Join(opts.Layers, ",")); err != nil {
		return nil, err
	}
	return json.RawMessage(`[]`), nil
}

func (m *Map) QuerySourceFeatures(ctx context.Context, source string, opts model.SourceQueryOptions) (json.RawMessage, error) {
	if err := m.call(ctx, "querySourceFeatures", source); err != nil {
		return nil, err
	}
	return json.RawMessage(`[]`), nil
}

func (m *Map) CanvasImage(ctx context.Context) (string, error) {
	if err := m.call(ctx, "canvasImage", ""); err != nil {
		return "", err
	}
	return "data:image/png;base64,iVBORw0KGgo=", nil
}

func (m *Map) AddPlugin(ctx context.Context, opts model.PluginOptions) (native.Plugin, error) {
	if err := m.call(ctx, "addPlugin", string(opts.PluginKind())); err != nil {
		return nil, err
	}
	p := &Plugin{lib: m.lib, kind: opts.PluginKind(), Options: opts, handlers: newHandlers()}
	m.mu.Lock()
	m.plugins = append(m.plugins, p)
	m.mu.Unlock()
	return p, nil
}

func (m *Map) Resize(ctx context.Context) error {
	return m.call(ctx, "resize", "")
}

func (m *Map) Remove(ctx context.Context) error {
	if err := m.call(ctx, "removeMap", m.id); err != nil {
		return err
	}
	m.mu.Lock()
	m.removed = true
	m.mu.Unlock()

	m.lib.mu.Lock()
	if m.lib.maps[m.id] == m {
		delete(m.lib.maps, m.id)
	}
	m.lib.mu.Unlock()
	return nil
}

// Marker is a fake native.Marker.
type Marker struct {
	lib     *Library
	ID      string
	Options model.MarkerOptions

	mu  sync.Mutex
	At  model.LngLat
	Rot float64
}

func (m *Marker) Position() model.LngLat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.At
}

func (m *Marker) SetLngLat(ctx context.Context, at model.LngLat) error {
	if err := m.lib.record(ctx, "marker.setLngLat", m.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.At = at
	return nil
}

func (m *Marker) SetDraggable(ctx context.Context, draggable bool) error {
	return m.lib.record(ctx, "marker.setDraggable", m.ID)
}

func (m *Marker) SetRotation(ctx context.Context, rotation float64) error {
	if err := m.lib.record(ctx, "marker.setRotation", m.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rot = rotation
	return nil
}

func (m *Marker) SetPopupHTML(ctx context.Context, html string) error {
	return m.lib.record(ctx, "marker.setPopup", m.ID)
}

func (m *Marker) Animate(ctx context.Context, path []model.LngLat, duration int) error {
	if err := m.lib.record(ctx, "marker.animate", m.ID); err != nil {
		return err
	}
	if len(path) > 0 {
		m.mu.Lock()
		m.At = path[len(path)-1]
		m.mu.Unlock()
	}
	return nil
}

func (m *Marker) Remove(ctx context.Context) error {
	return m.lib.record(ctx, "marker.remove", m.ID)
}

// Popup is a fake native.Popup.
type Popup struct {
	lib      *Library
	HTML     string
	handlers *handlers
}

// Emit raises an event from the popup.
func (p *Popup) Emit(ev native.Event) { p.handlers.emit(ev) }

func (p *Popup) On(kind model.EventKind, h native.Handler) func() {
	return p.handlers.on(kind, h)
}

func (p *Popup) Remove(ctx context.Context) error {
	return p.lib.record(ctx, "popup.remove", "")
}

// Control is a fake native.Control.
type Control struct {
	lib      *Library
	Spec     native.ControlSpec
	Position string
	handlers *handlers
}

// Emit raises an event from the control.
func (c *Control) Emit(ev native.Event) { c.handlers.emit(ev) }

func (c *Control) On(kind model.EventKind, h native.Handler) func() {
	return c.handlers.on(kind, h)
}

func (c *Control) Trigger(ctx context.Context) error {
	return c.lib.record(ctx, "control.trigger", c.Spec.Type)
}

func (c *Control) Remove(ctx context.Context) error {
	return c.lib.record(ctx, "control.remove", c.Spec.Type)
}

// Plugin is a fake native.Plugin. Invoke results can be preset per method.
type Plugin struct {
	lib      *Library
	kind     model.PluginKind
	Options  model.PluginOptions
	handlers *handlers

	mu      sync.Mutex
	results map[string]json.RawMessage
}

// Emit raises an event from the plugin.
func (p *Plugin) Emit(ev native.Event) { p.handlers.emit(ev) }

// Handlers returns how many handlers are attached for kind.
func (p *Plugin) Handlers(kind model.EventKind) int { return p.handlers.count(kind) }

// SetResult presets the result Invoke returns for method.
func (p *Plugin) SetResult(method string, result json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.results == nil {
		p.results = make(map[string]json.RawMessage)
	}
	p.results[method] = result
}

func (p *Plugin) On(kind model.EventKind, h native.Handler) func() {
	return p.handlers.on(kind, h)
}

func (p *Plugin) Invoke(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if err := p.lib.record(ctx, string(p.kind)+"."+method, ""); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.results[method]; ok {
		return r, nil
	}
	return json.RawMessage(`null`), nil
}

func (p *Plugin) Remove(ctx context.Context) error {
	return p.lib.record(ctx, "plugin.remove", string(p.kind))
}
