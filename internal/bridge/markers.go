package bridge

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/ids"
	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
)

// markerRecord is a registered marker. Its options track the live state;
// drag events update the position from the native loop.
type markerRecord struct {
	native native.Marker

	mu   sync.Mutex
	opts model.MarkerOptions
}

func (r *markerRecord) snapshot() model.MarkerOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}

func (r *markerRecord) moved(at model.LngLat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.Longitude, r.opts.Latitude = at.Lng, at.Lat
}

// AddMarker places a marker and returns its id. An empty id is generated.
// Adding an id that already exists returns it without touching the map.
func (b *Bridge) AddMarker(ctx context.Context, mapID string, opts model.MarkerOptions) (id string, err error) {
	defer func(start time.Time) { b.observe("addMarker", mapID, start, err) }(time.Now())

	if err := opts.Validate(); err != nil {
		return "", invalidWrap(mapID, err, "invalid marker")
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return "", err
	}
	defer unlock()

	if opts.ID == "" {
		opts.ID = ids.WithPrefix("marker")
	}
	if b.registry.Has(mapID, KindMarker, opts.ID) {
		return opts.ID, nil
	}

	opts = opts.WithDefaults()
	m, err := inst.m.NewMarker(ctx, opts.ID, opts)
	if err != nil {
		return "", upstream(mapID, "add marker", err)
	}
	b.registry.Register(mapID, KindMarker, opts.ID, &markerRecord{native: m, opts: opts})
	b.syncMetrics()
	return opts.ID, nil
}

// UpdateMarker changes a marker's position, draggability, rotation or popup
// text. Fields left nil keep their value.
func (b *Bridge) UpdateMarker(ctx context.Context, mapID, id string, u model.MarkerUpdate) (err error) {
	defer func(start time.Time) { b.observe("updateMarker", mapID, start, err) }(time.Now())

	if err := u.Validate(); err != nil {
		return invalidWrap(mapID, err, "invalid marker update")
	}

	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := resolveAs[*markerRecord](b.registry, mapID, KindMarker, id)
	if err != nil {
		return err
	}

	if u.Longitude != nil {
		at := model.LngLat{Lng: *u.Longitude, Lat: *u.Latitude}
		if err := rec.native.SetLngLat(ctx, at); err != nil {
			return upstream(mapID, "move marker", err)
		}
		rec.moved(at)
	}
	if u.Draggable != nil {
		if err := rec.native.SetDraggable(ctx, *u.Draggable); err != nil {
			return upstream(mapID, "set marker draggable", err)
		}
		rec.mu.Lock()
		rec.opts.Draggable = *u.Draggable
		rec.mu.Unlock()
	}
	if u.Rotation != nil {
		if err := rec.native.SetRotation(ctx, *u.Rotation); err != nil {
			return upstream(mapID, "rotate marker", err)
		}
		rec.mu.Lock()
		rec.opts.Rotation = *u.Rotation
		rec.mu.Unlock()
	}
	if u.PopupText != nil {
		if err := rec.native.SetPopupHTML(ctx, *u.PopupText); err != nil {
			return upstream(mapID, "set marker popup", err)
		}
		rec.mu.Lock()
		rec.opts.PopupText = *u.PopupText
		rec.mu.Unlock()
	}
	return nil
}

// RemoveMarker removes a marker and frees its id.
func (b *Bridge) RemoveMarker(ctx context.Context, mapID, id string) (err error) {
	defer func(start time.Time) { b.observe("removeMarker", mapID, start, err) }(time.Now())

	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := resolveAs[*markerRecord](b.registry, mapID, KindMarker, id)
	if err != nil {
		return err
	}
	if err := rec.native.Remove(ctx); err != nil {
		return upstream(mapID, "remove marker", err)
	}
	b.registry.Unregister(mapID, KindMarker, id)
	b.syncMetrics()
	return nil
}

// Marker returns the current state of a marker.
func (b *Bridge) Marker(ctx context.Context, mapID, id string) (model.MarkerOptions, error) {
	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return model.MarkerOptions{}, err
	}
	defer unlock()

	rec, err := resolveAs[*markerRecord](b.registry, mapID, KindMarker, id)
	if err != nil {
		return model.MarkerOptions{}, err
	}
	return rec.snapshot(), nil
}

// Markers returns every marker of a map in creation order.
func (b *Bridge) Markers(ctx context.Context, mapID string) ([]model.MarkerOptions, error) {
	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []model.MarkerOptions
	for _, id := range b.registry.List(mapID, KindMarker) {
		if rec, err := resolveAs[*markerRecord](b.registry, mapID, KindMarker, id); err == nil {
			out = append(out, rec.snapshot())
		}
	}
	return out, nil
}

// AnimateMarker moves a marker along path over duration milliseconds. The
// recorded position is the end of the path.
func (b *Bridge) AnimateMarker(ctx context.Context, mapID, id string, path []model.LngLat, duration int) (err error) {
	defer func(start time.Time) { b.observe("animateMarker", mapID, start, err) }(time.Now())

	if len(path) < 2 {
		return invalid(mapID, "animation path needs at least 2 positions")
	}
	for i, p := range path {
		if err := p.Validate(); err != nil {
			return invalidWrap(mapID, err, "invalid path position "+strconv.Itoa(i))
		}
	}
	if duration <= 0 {
		duration = defaultDuration
	}

	_, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := resolveAs[*markerRecord](b.registry, mapID, KindMarker, id)
	if err != nil {
		return err
	}
	if err := rec.native.Animate(ctx, path, duration); err != nil {
		return upstream(mapID, "animate marker", err)
	}
	rec.moved(path[len(path)-1])
	return nil
}
