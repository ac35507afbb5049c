package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/schema"
)

// QueryRenderedFeatures returns the rendered features at a screen point, or
// in the whole viewport when at is nil, as a GeoJSON feature array.
func (b *Bridge) QueryRenderedFeatures(ctx context.Context, mapID string, at *model.ScreenPoint, opts model.QueryOptions) (_ json.RawMessage, err error) {
	defer func(start time.Time) { b.observe("queryRenderedFeatures", mapID, start, err) }(time.Now())

	if err := schema.Filter(opts.Filter); err != nil {
		return nil, invalidWrap(mapID, err, "invalid query filter")
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, layer := range opts.Layers {
		ok, err := b.layerExists(ctx, inst, layer)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, notFound(mapID, KindLayer, layer)
		}
	}

	features, err := inst.m.QueryRenderedFeatures(ctx, at, opts)
	if err != nil {
		return nil, upstream(mapID, "query rendered features", err)
	}
	return features, nil
}

// QuerySourceFeatures returns the features of a source, rendered or not.
func (b *Bridge) QuerySourceFeatures(ctx context.Context, mapID, source string, opts model.SourceQueryOptions) (_ json.RawMessage, err error) {
	defer func(start time.Time) { b.observe("querySourceFeatures", mapID, start, err) }(time.Now())

	if source == "" {
		return nil, invalid(mapID, "source id is required")
	}
	if err := schema.Filter(opts.Filter); err != nil {
		return nil, invalidWrap(mapID, err, "invalid query filter")
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !b.registry.Has(mapID, KindSource, source) && source != BuildingsSourceID {
		return nil, notFound(mapID, KindSource, source)
	}
	features, err := inst.m.QuerySourceFeatures(ctx, source, opts)
	if err != nil {
		return nil, upstream(mapID, "query source features", err)
	}
	return features, nil
}

// MapImage captures the rendered map as a PNG data URL.
func (b *Bridge) MapImage(ctx context.Context, mapID string) (_ string, err error) {
	defer func(start time.Time) { b.observe("mapImage", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return "", err
	}
	defer unlock()

	img, err := inst.m.CanvasImage(ctx)
	if err != nil {
		return "", upstream(mapID, "capture map image", err)
	}
	return img, nil
}
