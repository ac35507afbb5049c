package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
	"github.com/joeblew999/plat-mapbridge/internal/schema"
)

type sourceRecord struct {
	Type string
	Doc  json.RawMessage
}

type layerRecord struct {
	Def    model.LayerDefinition
	Doc    json.RawMessage
	Before string
}

// SourceInfo describes a registered source.
type SourceInfo struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Doc  json.RawMessage `json:"definition"`
}

// AddSource adds a source definition under id. Adding an existing id is a
// no-op.
func (b *Bridge) AddSource(ctx context.Context, mapID, id string, doc json.RawMessage) (_ string, err error) {
	defer func(start time.Time) { b.observe("addSource", mapID, start, err) }(time.Now())

	if id == "" {
		return "", invalid(mapID, "source id is required")
	}
	if err := b.validator.Source(doc); err != nil {
		return "", invalidWrap(mapID, err, "invalid source "+id)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return "", invalidWrap(mapID, err, "invalid source "+id)
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return "", err
	}
	defer unlock()

	if b.registry.Has(mapID, KindSource, id) {
		return id, nil
	}
	if err := inst.m.AddSource(ctx, id, doc); err != nil {
		return "", upstream(mapID, "add source", err)
	}
	b.registry.Register(mapID, KindSource, id, &sourceRecord{Type: head.Type, Doc: doc})
	b.syncMetrics()
	return id, nil
}

// UpdateSource replaces the data of a GeoJSON source.
func (b *Bridge) UpdateSource(ctx context.Context, mapID, id string, data json.RawMessage) (err error) {
	defer func(start time.Time) { b.observe("updateSource", mapID, start, err) }(time.Now())

	if err := model.ValidateGeoJSON(data); err != nil {
		return invalidWrap(mapID, err, "invalid source data")
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := resolveAs[*sourceRecord](b.registry, mapID, KindSource, id)
	if err != nil {
		return err
	}
	if rec.Type != model.SourceGeoJSON {
		return invalid(mapID, "source %q is %s, only geojson sources take data updates", id, rec.Type)
	}
	if err := inst.m.SetSourceData(ctx, id, data); err != nil {
		return upstream(mapID, "update source", err)
	}

	var doc map[string]json.RawMessage
	if json.Unmarshal(rec.Doc, &doc) == nil {
		doc["data"] = data
		if updated, err := json.Marshal(doc); err == nil {
			rec.Doc = updated
		}
	}
	return nil
}

// RemoveSource removes every layer drawing from the source, then the source.
func (b *Bridge) RemoveSource(ctx context.Context, mapID, id string) (err error) {
	defer func(start time.Time) { b.observe("removeSource", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := resolveAs[*sourceRecord](b.registry, mapID, KindSource, id); err != nil {
		return err
	}
	for _, layerID := range b.registry.List(mapID, KindLayer) {
		rec, err := resolveAs[*layerRecord](b.registry, mapID, KindLayer, layerID)
		if err != nil || rec.Def.Source != id {
			continue
		}
		if err := inst.m.RemoveLayer(ctx, layerID); err != nil {
			return upstream(mapID, "remove layer "+layerID, err)
		}
		b.registry.Unregister(mapID, KindLayer, layerID)
	}
	if err := inst.m.RemoveSource(ctx, id); err != nil {
		return upstream(mapID, "remove source", err)
	}
	b.registry.Unregister(mapID, KindSource, id)
	b.syncMetrics()
	return nil
}

// Sources lists the registered sources in creation order.
func (b *Bridge) Sources(ctx context.Context, mapID string) ([]SourceInfo, error) {
	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []SourceInfo
	for _, id := range b.registry.List(mapID, KindSource) {
		if rec, err := resolveAs[*sourceRecord](b.registry, mapID, KindSource, id); err == nil {
			out = append(out, SourceInfo{ID: id, Type: rec.Type, Doc: rec.Doc})
		}
	}
	return out, nil
}

// AddLayer adds a layer definition, optionally before another layer. The
// layer's source must already be registered. Adding an existing id is a
// no-op.
func (b *Bridge) AddLayer(ctx context.Context, mapID string, doc json.RawMessage, before string) (_ string, err error) {
	defer func(start time.Time) { b.observe("addLayer", mapID, start, err) }(time.Now())

	if err := b.validator.Layer(doc); err != nil {
		return "", invalidWrap(mapID, err, "invalid layer")
	}
	var def model.LayerDefinition
	if err := json.Unmarshal(doc, &def); err != nil {
		return "", invalidWrap(mapID, err, "invalid layer")
	}
	if err := schema.Filter(def.Filter); err != nil {
		return "", invalidWrap(mapID, err, "invalid layer "+def.ID)
	}
	if def.NeedsSource() && def.Source == "" {
		return "", invalid(mapID, "layer %q needs a source", def.ID)
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return "", err
	}
	defer unlock()

	if b.registry.Has(mapID, KindLayer, def.ID) {
		return def.ID, nil
	}
	if def.NeedsSource() && !b.registry.Has(mapID, KindSource, def.Source) {
		return "", invalid(mapID, "layer %q references unknown source %q", def.ID, def.Source)
	}
	if before != "" {
		ok, err := b.layerExists(ctx, inst, before)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", invalid(mapID, "layer %q cannot be inserted before unknown layer %q", def.ID, before)
		}
	}
	if err := b.addLayer(ctx, inst, def, doc, before); err != nil {
		return "", err
	}
	return def.ID, nil
}

func (b *Bridge) addLayer(ctx context.Context, inst *instance, def model.LayerDefinition, doc json.RawMessage, before string) error {
	if err := inst.m.AddLayer(ctx, doc, before); err != nil {
		return upstream(inst.id, "add layer", err)
	}
	b.registry.Register(inst.id, KindLayer, def.ID, &layerRecord{Def: def, Doc: doc, Before: before})
	b.syncMetrics()
	return nil
}

// RemoveLayer removes a layer.
func (b *Bridge) RemoveLayer(ctx context.Context, mapID, id string) (err error) {
	defer func(start time.Time) { b.observe("removeLayer", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := resolveAs[*layerRecord](b.registry, mapID, KindLayer, id); err != nil {
		return err
	}
	if err := inst.m.RemoveLayer(ctx, id); err != nil {
		return upstream(mapID, "remove layer", err)
	}
	b.registry.Unregister(mapID, KindLayer, id)
	b.syncMetrics()
	return nil
}

// Layers lists the registered layers in creation order.
func (b *Bridge) Layers(ctx context.Context, mapID string) ([]model.LayerDefinition, error) {
	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []model.LayerDefinition
	for _, id := range b.registry.List(mapID, KindLayer) {
		if rec, err := resolveAs[*layerRecord](b.registry, mapID, KindLayer, id); err == nil {
			out = append(out, rec.Def)
		}
	}
	return out, nil
}

// layerExists reports whether id is a registered layer or a layer of the
// active style.
func (b *Bridge) layerExists(ctx context.Context, inst *instance, id string) (bool, error) {
	if b.registry.Has(inst.id, KindLayer, id) {
		return true, nil
	}
	layers, err := inst.m.StyleLayers(ctx)
	if err != nil {
		return false, upstream(inst.id, "list style layers", err)
	}
	for _, l := range layers {
		if l.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// layerCommand runs fn against a layer that is registered or part of the
// active style.
func (b *Bridge) layerCommand(ctx context.Context, mapID, layer string, fn func(native.Map) error) error {
	if layer == "" {
		return invalid(mapID, "layer id is required")
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	ok, err := b.layerExists(ctx, inst, layer)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(mapID, KindLayer, layer)
	}
	return fn(inst.m)
}

// SetLayerVisibility shows or hides a layer.
func (b *Bridge) SetLayerVisibility(ctx context.Context, mapID, layer string, visible bool) (err error) {
	defer func(start time.Time) { b.observe("setLayerVisibility", mapID, start, err) }(time.Now())

	value := model.Hidden
	if visible {
		value = model.Visible
	}
	raw, _ := json.Marshal(value)
	return b.layerCommand(ctx, mapID, layer, func(m native.Map) error {
		if err := m.SetLayoutProperty(ctx, layer, "visibility", raw); err != nil {
			return upstream(mapID, "set layer visibility", err)
		}
		return nil
	})
}

// SetPaintProperty sets one paint property of a layer.
func (b *Bridge) SetPaintProperty(ctx context.Context, mapID, layer, name string, value json.RawMessage) (err error) {
	defer func(start time.Time) { b.observe("setPaintProperty", mapID, start, err) }(time.Now())

	if name == "" {
		return invalid(mapID, "property name is required")
	}
	if err := schema.Value(value); err != nil {
		return invalidWrap(mapID, err, "invalid paint property "+name)
	}
	return b.layerCommand(ctx, mapID, layer, func(m native.Map) error {
		if err := m.SetPaintProperty(ctx, layer, name, value); err != nil {
			return upstream(mapID, "set paint property", err)
		}
		return nil
	})
}

// SetLayoutProperty sets one layout property of a layer.
func (b *Bridge) SetLayoutProperty(ctx context.Context, mapID, layer, name string, value json.RawMessage) (err error) {
	defer func(start time.Time) { b.observe("setLayoutProperty", mapID, start, err) }(time.Now())

	if name == "" {
		return invalid(mapID, "property name is required")
	}
	if err := schema.Value(value); err != nil {
		return invalidWrap(mapID, err, "invalid layout property "+name)
	}
	return b.layerCommand(ctx, mapID, layer, func(m native.Map) error {
		if err := m.SetLayoutProperty(ctx, layer, name, value); err != nil {
			return upstream(mapID, "set layout property", err)
		}
		return nil
	})
}

// SetFilter replaces a layer's filter. An empty filter clears it.
func (b *Bridge) SetFilter(ctx context.Context, mapID, layer string, filter json.RawMessage) (err error) {
	defer func(start time.Time) { b.observe("setFilter", mapID, start, err) }(time.Now())

	if err := schema.Filter(filter); err != nil {
		return invalidWrap(mapID, err, "invalid filter")
	}
	return b.layerCommand(ctx, mapID, layer, func(m native.Map) error {
		if err := m.SetFilter(ctx, layer, filter); err != nil {
			return upstream(mapID, "set filter", err)
		}
		return nil
	})
}
