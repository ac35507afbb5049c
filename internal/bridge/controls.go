package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/ids"
	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
)

// Control types.
const (
	ControlNavigation  = "navigation"
	ControlGeolocate   = "geolocate"
	ControlFullscreen  = "fullscreen"
	ControlScale       = "scale"
	ControlAttribution = "attribution"
	ControlCustom      = "custom"
)

// ControlTypes lists every control type NewControl accepts.
func ControlTypes() []string {
	return []string{ControlNavigation, ControlGeolocate, ControlFullscreen, ControlScale, ControlAttribution, ControlCustom}
}

// Control is a map control. The set of variants is fixed: Navigation,
// Geolocate, Fullscreen, Scale, Attribution and Custom.
type Control interface {
	// OnAdd mounts the control on m at a corner position.
	OnAdd(ctx context.Context, m native.Map, position string) (native.Control, error)
	// OnRemove unmounts it.
	OnRemove(ctx context.Context, c native.Control) error

	controlType() string
}

type unmount struct{}

func (unmount) OnRemove(ctx context.Context, c native.Control) error { return c.Remove(ctx) }

// NavigationControl shows zoom buttons and a compass.
type NavigationControl struct {
	unmount
	ShowCompass    bool `json:"showCompass"`
	ShowZoom       bool `json:"showZoom"`
	VisualizePitch bool `json:"visualizePitch"`
}

func (c NavigationControl) OnAdd(ctx context.Context, m native.Map, position string) (native.Control, error) {
	return m.AddControl(ctx, native.ControlSpec{Type: ControlNavigation, Options: c}, position)
}

func (NavigationControl) controlType() string { return ControlNavigation }

// GeolocateControl locates the user. Its fixes are relayed as geolocate
// events.
type GeolocateControl struct {
	unmount
	model.GeolocateOptions
}

func (c GeolocateControl) OnAdd(ctx context.Context, m native.Map, position string) (native.Control, error) {
	return m.AddControl(ctx, native.ControlSpec{Type: ControlGeolocate, Options: c.GeolocateOptions}, position)
}

func (GeolocateControl) controlType() string { return ControlGeolocate }

// FullscreenControl toggles fullscreen display.
type FullscreenControl struct {
	unmount
}

func (c FullscreenControl) OnAdd(ctx context.Context, m native.Map, position string) (native.Control, error) {
	return m.AddControl(ctx, native.ControlSpec{Type: ControlFullscreen}, position)
}

func (FullscreenControl) controlType() string { return ControlFullscreen }

// ScaleControl shows a distance scale.
type ScaleControl struct {
	unmount
	model.ScaleOptions
}

func (c ScaleControl) OnAdd(ctx context.Context, m native.Map, position string) (native.Control, error) {
	return m.AddControl(ctx, native.ControlSpec{Type: ControlScale, Options: c.ScaleOptions}, position)
}

func (ScaleControl) controlType() string { return ControlScale }

// AttributionControl shows data attributions.
type AttributionControl struct {
	unmount
	model.AttributionOptions
}

func (c AttributionControl) OnAdd(ctx context.Context, m native.Map, position string) (native.Control, error) {
	return m.AddControl(ctx, native.ControlSpec{Type: ControlAttribution, Options: c.AttributionOptions}, position)
}

func (AttributionControl) controlType() string { return ControlAttribution }

// CustomControl mounts caller-provided HTML in a control container.
type CustomControl struct {
	unmount
	HTML      string `json:"html"`
	ClassName string `json:"className,omitempty"`
}

func (c CustomControl) OnAdd(ctx context.Context, m native.Map, position string) (native.Control, error) {
	return m.AddControl(ctx, native.ControlSpec{
		Type:    ControlCustom,
		HTML:    c.HTML,
		Options: map[string]string{"className": c.ClassName},
	}, position)
}

func (CustomControl) controlType() string { return ControlCustom }

// NewControl builds a control variant from its type name and JSON options.
func NewControl(kind string, options json.RawMessage) (Control, error) {
	decode := func(v any) error {
		if len(options) == 0 {
			return nil
		}
		return json.Unmarshal(options, v)
	}

	switch kind {
	case ControlNavigation:
		c := NavigationControl{ShowCompass: true, ShowZoom: true}
		if err := decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case ControlGeolocate:
		c := GeolocateControl{GeolocateOptions: model.GeolocateOptions{
			EnableHighAccuracy: true, TrackUserLocation: true, ShowUserHeading: true,
		}}
		if err := decode(&c.GeolocateOptions); err != nil {
			return nil, err
		}
		return c, nil
	case ControlFullscreen:
		return FullscreenControl{}, nil
	case ControlScale:
		c := ScaleControl{ScaleOptions: model.ScaleOptions{MaxWidth: 100, Unit: "metric"}}
		if err := decode(&c.ScaleOptions); err != nil {
			return nil, err
		}
		return c, nil
	case ControlAttribution:
		c := AttributionControl{}
		if err := decode(&c.AttributionOptions); err != nil {
			return nil, err
		}
		return c, nil
	case ControlCustom:
		c := CustomControl{}
		if err := decode(&c); err != nil {
			return nil, err
		}
		if c.HTML == "" {
			return nil, fmt.Errorf("custom control needs html")
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown control type %q", kind)
}

type controlRecord struct {
	control  Control
	native   native.Control
	position string
	detach   func()
}

// ControlInfo describes a mounted control.
type ControlInfo struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Position string `json:"position"`
}

// AddControl mounts a control and returns its generated id. An empty
// position uses the top-right corner.
func (b *Bridge) AddControl(ctx context.Context, mapID string, c Control, position string) (id string, err error) {
	defer func(start time.Time) { b.observe("addControl", mapID, start, err) }(time.Now())

	if c == nil {
		return "", invalid(mapID, "control is required")
	}
	if position == "" {
		position = model.TopRight
	}
	if !model.ValidPosition(position) {
		return "", invalid(mapID, "invalid control position %q", position)
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return "", err
	}
	defer unlock()

	return b.mountControl(ctx, inst, c, position)
}

func (b *Bridge) mountControl(ctx context.Context, inst *instance, c Control, position string) (string, error) {
	nc, err := c.OnAdd(ctx, inst.m, position)
	if err != nil {
		return "", upstream(inst.id, "add control", err)
	}
	rec := &controlRecord{control: c, native: nc, position: position, detach: func() {}}
	if c.controlType() == ControlGeolocate {
		rec.detach = inst.relay.Attach(nc, model.EventGeolocate, model.EventError)
	}
	id := ids.WithPrefix("control")
	b.registry.Register(inst.id, KindControl, id, rec)
	b.syncMetrics()
	return id, nil
}

// RemoveControl unmounts a control.
func (b *Bridge) RemoveControl(ctx context.Context, mapID, id string) (err error) {
	defer func(start time.Time) { b.observe("removeControl", mapID, start, err) }(time.Now())

	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := resolveAs[*controlRecord](b.registry, mapID, KindControl, id)
	if err != nil {
		return err
	}
	if err := rec.control.OnRemove(ctx, rec.native); err != nil {
		return upstream(mapID, "remove control", err)
	}
	rec.detach()
	b.registry.Unregister(mapID, KindControl, id)
	b.syncMetrics()
	return nil
}

// Controls lists the mounted controls in mount order.
func (b *Bridge) Controls(ctx context.Context, mapID string) ([]ControlInfo, error) {
	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []ControlInfo
	for _, id := range b.registry.List(mapID, KindControl) {
		if rec, err := resolveAs[*controlRecord](b.registry, mapID, KindControl, id); err == nil {
			out = append(out, ControlInfo{ID: id, Type: rec.control.controlType(), Position: rec.position})
		}
	}
	return out, nil
}

// TrackUserLocation starts tracking with the map's first geolocate control,
// mounting one with default options when there is none. It returns the
// control id. Fixes arrive as geolocate events.
func (b *Bridge) TrackUserLocation(ctx context.Context, mapID string) (id string, err error) {
	defer func(start time.Time) { b.observe("trackUserLocation", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return "", err
	}
	defer unlock()

	var rec *controlRecord
	for _, cid := range b.registry.List(mapID, KindControl) {
		r, err := resolveAs[*controlRecord](b.registry, mapID, KindControl, cid)
		if err == nil && r.control.controlType() == ControlGeolocate {
			id, rec = cid, r
			break
		}
	}
	if rec == nil {
		c, _ := NewControl(ControlGeolocate, nil)
		if id, err = b.mountControl(ctx, inst, c, model.TopRight); err != nil {
			return "", err
		}
		rec, _ = resolveAs[*controlRecord](b.registry, mapID, KindControl, id)
	}
	if err := rec.native.Trigger(ctx); err != nil {
		return "", upstream(mapID, "track user location", err)
	}
	return id, nil
}
