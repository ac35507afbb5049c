package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
)

// Draw modes accepted by SetDrawMode.
var drawModes = map[string]bool{
	"simple_select":    true,
	"direct_select":    true,
	"draw_point":       true,
	"draw_line_string": true,
	"draw_polygon":     true,
	"static":           true,
}

type pluginRecord struct {
	kind   model.PluginKind
	native native.Plugin
	opts   model.PluginOptions
	detach func()
}

// pluginEvents are the event kinds each plugin raises.
func pluginEvents(kind model.PluginKind) []model.EventKind {
	switch kind {
	case model.PluginDraw:
		return []model.EventKind{model.EventDrawCreate, model.EventDrawUpdate, model.EventDrawDelete}
	case model.PluginGeocoder:
		return []model.EventKind{model.EventGeocoderResult, model.EventError}
	case model.PluginDirections:
		return []model.EventKind{model.EventDirectionsRoute, model.EventError}
	}
	return nil
}

func validatePlugin(mapID string, opts model.PluginOptions) error {
	if opts == nil {
		return invalid(mapID, "plugin options are required")
	}
	kind := opts.PluginKind()
	if !kind.Valid() {
		return invalid(mapID, "unknown plugin kind %q", kind)
	}

	switch o := opts.(type) {
	case model.DrawOptions:
		if o.DefaultMode != "" && !drawModes[o.DefaultMode] {
			return invalid(mapID, "unknown draw mode %q", o.DefaultMode)
		}
		if o.Position != "" && !model.ValidPosition(o.Position) {
			return invalid(mapID, "invalid draw position %q", o.Position)
		}
	case model.GeocoderOptions:
		if o.Limit < 0 || o.Limit > 10 {
			return invalid(mapID, "geocoder limit %d out of range [1, 10]", o.Limit)
		}
		if len(o.Proximity) != 0 {
			if len(o.Proximity) != 2 {
				return invalid(mapID, "geocoder proximity must be [lng, lat]")
			}
			if err := model.ValidateLngLat(o.Proximity[0], o.Proximity[1]); err != nil {
				return invalidWrap(mapID, err, "invalid geocoder proximity")
			}
		}
	case model.DirectionsOptions:
		if o.Unit != "" && o.Unit != "metric" && o.Unit != "imperial" {
			return invalid(mapID, "directions unit must be metric or imperial")
		}
	case model.CompareOptions:
		if o.OtherMap == "" {
			return invalid(mapID, "compare needs the other map id")
		}
		if o.OtherMap == mapID {
			return invalid(mapID, "a map cannot be compared with itself")
		}
	}
	return nil
}

// LoadPlugin attaches a plugin to the map and returns its handle id, which
// is the plugin kind. The plugin module is fetched on first use. Concurrent
// loads of the same kind on the same map share one load and its outcome; a
// failed load can be retried.
func (b *Bridge) LoadPlugin(ctx context.Context, mapID string, opts model.PluginOptions) (id string, err error) {
	defer func(start time.Time) { b.observe("loadPlugin", mapID, start, err) }(time.Now())

	if err := validatePlugin(mapID, opts); err != nil {
		return "", err
	}
	kind := opts.PluginKind()

	if o, ok := opts.(model.CompareOptions); ok {
		_, unlockOther, err := b.acquire(ctx, o.OtherMap)
		if err != nil {
			return "", err
		}
		unlockOther()
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return "", err
	}
	if b.registry.Has(mapID, KindPlugin, string(kind)) {
		unlock()
		return string(kind), nil
	}
	if _, loading := inst.loading[kind]; !loading {
		inst.loading[kind] = opts
	}
	unlock()

	return b.joinPluginLoad(ctx, inst, kind)
}

// joinPluginLoad waits for the in-flight load of kind on inst, starting it
// if none is running. The load itself is not cancelled with ctx.
func (b *Bridge) joinPluginLoad(ctx context.Context, inst *instance, kind model.PluginKind) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := inst.plugins.DoChan(string(kind), func() (any, error) {
		return b.attachPlugin(detached, inst, kind)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *Bridge) attachPlugin(ctx context.Context, inst *instance, kind model.PluginKind) (string, error) {
	id := string(kind)

	inst.mu.Lock()
	opts, pending := inst.loading[kind]
	switch {
	case inst.destroyed:
		inst.mu.Unlock()
		return "", mapNotFound(inst.id)
	case b.registry.Has(inst.id, KindPlugin, id):
		delete(inst.loading, kind)
		inst.mu.Unlock()
		return id, nil
	case !pending:
		inst.mu.Unlock()
		return "", notFound(inst.id, KindPlugin, id)
	}
	inst.mu.Unlock()

	loadErr := b.loadModule(ctx, kind)

	inst.mu.Lock()
	defer inst.mu.Unlock()
	delete(inst.loading, kind)

	if loadErr != nil {
		return "", upstream(inst.id, "load "+id+" plugin", loadErr)
	}
	if inst.destroyed {
		return "", mapNotFound(inst.id)
	}

	p, err := inst.m.AddPlugin(ctx, opts)
	if err != nil {
		return "", upstream(inst.id, "add "+id+" plugin", err)
	}
	rec := &pluginRecord{kind: kind, native: p, opts: opts, detach: func() {}}
	if kinds := pluginEvents(kind); len(kinds) > 0 {
		rec.detach = inst.relay.Attach(p, kinds...)
	}
	b.registry.Register(inst.id, KindPlugin, id, rec)
	b.syncMetrics()
	b.logger.Info("plugin attached", "map_id", inst.id, "kind", kind)
	return id, nil
}

// withPlugin runs fn against the map's plugin of kind, first joining its
// load if one is in flight.
func (b *Bridge) withPlugin(ctx context.Context, mapID string, kind model.PluginKind, fn func(*instance, *pluginRecord) error) error {
	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	rec, err := resolveAs[*pluginRecord](b.registry, mapID, KindPlugin, string(kind))
	if err == nil {
		defer unlock()
		return fn(inst, rec)
	}
	if _, loading := inst.loading[kind]; !loading {
		unlock()
		return err
	}
	unlock()

	if _, err := b.joinPluginLoad(ctx, inst, kind); err != nil {
		return err
	}

	inst, unlock, err = b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()
	rec, err = resolveAs[*pluginRecord](b.registry, mapID, KindPlugin, string(kind))
	if err != nil {
		return err
	}
	return fn(inst, rec)
}

// UnloadPlugin detaches a plugin from the map. The module stays cached.
func (b *Bridge) UnloadPlugin(ctx context.Context, mapID string, kind model.PluginKind) (err error) {
	defer func(start time.Time) { b.observe("unloadPlugin", mapID, start, err) }(time.Now())

	return b.withPlugin(ctx, mapID, kind, func(inst *instance, rec *pluginRecord) error {
		if err := rec.native.Remove(ctx); err != nil {
			return upstream(mapID, "remove "+string(kind)+" plugin", err)
		}
		rec.detach()
		b.registry.Unregister(mapID, KindPlugin, string(kind))
		b.syncMetrics()
		return nil
	})
}

// Plugins lists the kinds of attached plugins in load order.
func (b *Bridge) Plugins(ctx context.Context, mapID string) ([]model.PluginKind, error) {
	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []model.PluginKind
	for _, id := range b.registry.List(mapID, KindPlugin) {
		out = append(out, model.PluginKind(id))
	}
	return out, nil
}

func (b *Bridge) invoke(ctx context.Context, op, mapID string, kind model.PluginKind, method string, args ...any) (result json.RawMessage, err error) {
	defer func(start time.Time) { b.observe(op, mapID, start, err) }(time.Now())

	err = b.withPlugin(ctx, mapID, kind, func(_ *instance, rec *pluginRecord) error {
		r, err := rec.native.Invoke(ctx, method, args...)
		if err != nil {
			return upstream(mapID, op, err)
		}
		result = r
		return nil
	})
	return result, err
}

// DrawnFeatures returns everything drawn so far as a GeoJSON feature
// collection.
func (b *Bridge) DrawnFeatures(ctx context.Context, mapID string) (json.RawMessage, error) {
	r, err := b.invoke(ctx, "drawnFeatures", mapID, model.PluginDraw, "getAll")
	if err != nil {
		return nil, err
	}
	if len(r) == 0 || string(r) == "null" {
		return json.RawMessage(`{"type":"FeatureCollection","features":[]}`), nil
	}
	return r, nil
}

// ClearDrawnFeatures deletes every drawn feature.
func (b *Bridge) ClearDrawnFeatures(ctx context.Context, mapID string) error {
	_, err := b.invoke(ctx, "clearDrawnFeatures", mapID, model.PluginDraw, "deleteAll")
	return err
}

// SetDrawMode switches the drawing mode, e.g. draw_polygon.
func (b *Bridge) SetDrawMode(ctx context.Context, mapID, mode string) error {
	if !drawModes[mode] {
		return invalid(mapID, "unknown draw mode %q", mode)
	}
	_, err := b.invoke(ctx, "setDrawMode", mapID, model.PluginDraw, "changeMode", mode)
	return err
}

// SetDirectionsRoute sets the route origin, destination and optional
// waypoints.
func (b *Bridge) SetDirectionsRoute(ctx context.Context, mapID string, origin, destination model.LngLat, waypoints []model.LngLat) error {
	for _, p := range append([]model.LngLat{origin, destination}, waypoints...) {
		if err := p.Validate(); err != nil {
			return invalidWrap(mapID, err, "invalid route position")
		}
	}
	args := []any{origin.ToArray(), destination.ToArray()}
	if len(waypoints) > 0 {
		wp := make([][2]float64, len(waypoints))
		for i, p := range waypoints {
			wp[i] = p.ToArray()
		}
		args = append(args, wp)
	}
	_, err := b.invoke(ctx, "setDirectionsRoute", mapID, model.PluginDirections, "setRoute", args...)
	return err
}

// ClearDirectionsRoute removes the route.
func (b *Bridge) ClearDirectionsRoute(ctx context.Context, mapID string) error {
	_, err := b.invoke(ctx, "clearDirectionsRoute", mapID, model.PluginDirections, "removeRoutes")
	return err
}

// SetGeocoderInput fills the geocoder search box and runs the search.
func (b *Bridge) SetGeocoderInput(ctx context.Context, mapID, query string) error {
	if query == "" {
		return invalid(mapID, "geocoder query is required")
	}
	_, err := b.invoke(ctx, "setGeocoderInput", mapID, model.PluginGeocoder, "query", query)
	return err
}

// ClearGeocoderInput empties the geocoder search box.
func (b *Bridge) ClearGeocoderInput(ctx context.Context, mapID string) error {
	_, err := b.invoke(ctx, "clearGeocoderInput", mapID, model.PluginGeocoder, "clear")
	return err
}
