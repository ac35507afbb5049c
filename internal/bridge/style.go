package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/model"
)

// Well-known ids of the sources and layers the style helpers manage.
const (
	TerrainSourceID   = "mapbox-dem"
	TrafficSourceID   = "mapbox-traffic"
	TrafficLayerID    = "traffic-street"
	BuildingsLayerID  = "3d-buildings"
	BuildingsSourceID = "composite"
)

func terrainSource() json.RawMessage {
	maxZoom := 14
	doc, _ := model.Document(model.RasterDEMSource{
		Type:     model.SourceRasterDEM,
		URL:      "mapbox://mapbox.mapbox-terrain-dem-v1",
		TileSize: 512,
		MaxZoom:  &maxZoom,
	})
	return doc
}

func trafficSource() json.RawMessage {
	doc, _ := model.Document(model.VectorSource{
		Type: model.SourceVector,
		URL:  "mapbox://mapbox.mapbox-traffic-v1",
	})
	return doc
}

func trafficLayer() model.LayerDefinition {
	return model.LayerDefinition{
		ID:          TrafficLayerID,
		Type:        model.LayerLine,
		Source:      TrafficSourceID,
		SourceLayer: "traffic",
		Filter:      json.RawMessage(`["all",["==","$type","LineString"]]`),
		Paint: map[string]any{
			"line-width": 2,
			"line-color": []any{
				"case",
				[]any{"==", "low", []any{"get", "congestion"}}, "green",
				[]any{"==", "moderate", []any{"get", "congestion"}}, "yellow",
				[]any{"==", "heavy", []any{"get", "congestion"}}, "orange",
				[]any{"==", "severe", []any{"get", "congestion"}}, "red",
				"blue",
			},
		},
	}
}

func buildingsLayer() model.LayerDefinition {
	minZoom := 15.0
	ramp := func(prop string) []any {
		return []any{"interpolate", []any{"linear"}, []any{"zoom"}, 15, 0, 15.05, []any{"get", prop}}
	}
	return model.LayerDefinition{
		ID:          BuildingsLayerID,
		Type:        model.LayerFillExtrusion,
		Source:      BuildingsSourceID,
		SourceLayer: "building",
		Filter:      json.RawMessage(`["==","extrude","true"]`),
		MinZoom:     &minZoom,
		Paint: map[string]any{
			"fill-extrusion-color":   "#aaa",
			"fill-extrusion-height":  ramp("height"),
			"fill-extrusion-base":    ramp("min_height"),
			"fill-extrusion-opacity": 0.6,
		},
	}
}

// SetStyle replaces the map style. The library drops user sources and
// layers with the old style, so their registry entries go too.
func (b *Bridge) SetStyle(ctx context.Context, mapID, style string) (err error) {
	defer func(start time.Time) { b.observe("setStyle", mapID, start, err) }(time.Now())

	if !validStyleURL(style) {
		return invalid(mapID, "style %q is not a mapbox:// or http(s) URL", style)
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := inst.m.SetStyle(ctx, style); err != nil {
		return upstream(mapID, "set style", err)
	}
	b.registry.Clear(mapID, KindLayer)
	b.registry.Clear(mapID, KindSource)
	inst.opts.Style = style
	inst.terrain = false
	inst.traffic = false
	b.syncMetrics()
	return nil
}

func validStyleURL(s string) bool {
	for _, prefix := range []string{"mapbox://", "https://", "http://"} {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) {
			return true
		}
	}
	return false
}

// SetLight sets the style's light.
func (b *Bridge) SetLight(ctx context.Context, mapID string, opts model.LightOptions) (err error) {
	defer func(start time.Time) { b.observe("setLight", mapID, start, err) }(time.Now())

	if opts.Anchor != "" && opts.Anchor != "map" && opts.Anchor != "viewport" {
		return invalid(mapID, "light anchor must be map or viewport")
	}
	if opts.Intensity != nil && (*opts.Intensity < 0 || *opts.Intensity > 1) {
		return invalid(mapID, "light intensity %v out of range [0, 1]", *opts.Intensity)
	}
	if opts.Position != nil && len(opts.Position) != 3 {
		return invalid(mapID, "light position must be [radial, azimuthal, polar]")
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := inst.m.SetLight(ctx, opts); err != nil {
		return upstream(mapID, "set light", err)
	}
	return nil
}

// SetFog sets the style's fog; nil removes it.
func (b *Bridge) SetFog(ctx context.Context, mapID string, opts *model.FogOptions) (err error) {
	defer func(start time.Time) { b.observe("setFog", mapID, start, err) }(time.Now())

	if opts != nil && opts.Range != nil && len(opts.Range) != 2 {
		return invalid(mapID, "fog range must be [start, end]")
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := inst.m.SetFog(ctx, opts); err != nil {
		return upstream(mapID, "set fog", err)
	}
	return nil
}

// EnableTerrain adds the DEM source if needed, drapes the map over it and,
// when opts.Sky is set, applies the sky fog.
func (b *Bridge) EnableTerrain(ctx context.Context, mapID string, opts model.TerrainOptions) (err error) {
	defer func(start time.Time) { b.observe("enableTerrain", mapID, start, err) }(time.Now())

	if opts.Exaggeration < 0 {
		return invalid(mapID, "terrain exaggeration must not be negative")
	}
	if opts.Exaggeration == 0 {
		opts.Exaggeration = model.DefaultTerrainOptions().Exaggeration
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if !b.registry.Has(mapID, KindSource, TerrainSourceID) {
		doc := terrainSource()
		if err := inst.m.AddSource(ctx, TerrainSourceID, doc); err != nil {
			return upstream(mapID, "add terrain source", err)
		}
		b.registry.Register(mapID, KindSource, TerrainSourceID, &sourceRecord{Type: model.SourceRasterDEM, Doc: doc})
	}
	if err := inst.m.SetTerrain(ctx, TerrainSourceID, opts.Exaggeration); err != nil {
		return upstream(mapID, "set terrain", err)
	}
	if opts.Sky {
		fog := model.SkyFog()
		if err := inst.m.SetFog(ctx, &fog); err != nil {
			return upstream(mapID, "set sky fog", err)
		}
	}
	inst.terrain = true
	b.syncMetrics()
	return nil
}

// DisableTerrain flattens the map and removes the DEM source.
func (b *Bridge) DisableTerrain(ctx context.Context, mapID string) (err error) {
	defer func(start time.Time) { b.observe("disableTerrain", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := inst.m.SetTerrain(ctx, "", 0); err != nil {
		return upstream(mapID, "clear terrain", err)
	}
	if b.registry.Has(mapID, KindSource, TerrainSourceID) {
		if err := inst.m.RemoveSource(ctx, TerrainSourceID); err != nil {
			return upstream(mapID, "remove terrain source", err)
		}
		b.registry.Unregister(mapID, KindSource, TerrainSourceID)
	}
	inst.terrain = false
	b.syncMetrics()
	return nil
}

// Add3DBuildings extrudes the style's building footprints, below the first
// label layer so labels stay on top.
func (b *Bridge) Add3DBuildings(ctx context.Context, mapID string) (err error) {
	defer func(start time.Time) { b.observe("add3DBuildings", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if b.registry.Has(mapID, KindLayer, BuildingsLayerID) {
		return nil
	}
	layers, err := inst.m.StyleLayers(ctx)
	if err != nil {
		return upstream(mapID, "list style layers", err)
	}
	before := ""
	for _, l := range layers {
		if l.Type == model.LayerSymbol && l.TextField {
			before = l.ID
			break
		}
	}

	def := buildingsLayer()
	doc, err := model.Document(def)
	if err != nil {
		return invalidWrap(mapID, err, "encode buildings layer")
	}
	return b.addLayer(ctx, inst, def, doc, before)
}

// EnableTraffic adds the live traffic source and its street layer.
func (b *Bridge) EnableTraffic(ctx context.Context, mapID string) (err error) {
	defer func(start time.Time) { b.observe("enableTraffic", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if !b.registry.Has(mapID, KindSource, TrafficSourceID) {
		doc := trafficSource()
		if err := inst.m.AddSource(ctx, TrafficSourceID, doc); err != nil {
			return upstream(mapID, "add traffic source", err)
		}
		b.registry.Register(mapID, KindSource, TrafficSourceID, &sourceRecord{Type: model.SourceVector, Doc: doc})
	}
	if !b.registry.Has(mapID, KindLayer, TrafficLayerID) {
		def := trafficLayer()
		doc, err := model.Document(def)
		if err != nil {
			return invalidWrap(mapID, err, "encode traffic layer")
		}
		if err := b.addLayer(ctx, inst, def, doc, ""); err != nil {
			return err
		}
	}
	inst.traffic = true
	b.syncMetrics()
	return nil
}

// DisableTraffic removes the traffic layer. The source stays for a quick
// re-enable.
func (b *Bridge) DisableTraffic(ctx context.Context, mapID string) (err error) {
	defer func(start time.Time) { b.observe("disableTraffic", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if b.registry.Has(mapID, KindLayer, TrafficLayerID) {
		if err := inst.m.RemoveLayer(ctx, TrafficLayerID); err != nil {
			return upstream(mapID, "remove traffic layer", err)
		}
		b.registry.Unregister(mapID, KindLayer, TrafficLayerID)
	}
	inst.traffic = false
	b.syncMetrics()
	return nil
}
