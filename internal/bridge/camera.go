package bridge

import (
	"context"
	"math"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
)

// Camera defaults.
const (
	defaultDuration   = 1000
	defaultFitPadding = 50
	defaultFitMaxZoom = 15
	maxZoom           = 24
	maxPitch          = 85
)

func validateCamera(mapID string, opts model.CameraOptions) error {
	if opts.Center != nil {
		if err := opts.Center.Validate(); err != nil {
			return invalidWrap(mapID, err, "invalid camera center")
		}
	}
	if opts.Zoom != nil && (*opts.Zoom < 0 || *opts.Zoom > maxZoom) {
		return invalid(mapID, "zoom %v out of range [0, %d]", *opts.Zoom, maxZoom)
	}
	if opts.Pitch != nil && (*opts.Pitch < 0 || *opts.Pitch > maxPitch) {
		return invalid(mapID, "pitch %v out of range [0, %d]", *opts.Pitch, maxPitch)
	}
	if opts.Duration < 0 {
		return invalid(mapID, "duration must not be negative")
	}
	return nil
}

// move issues a camera command. Moves are fire-and-forget: the library runs
// the animation and the command returns once it has been handed over.
func (b *Bridge) move(ctx context.Context, op, mapID string, opts model.CameraOptions, fn func(native.Map, model.CameraOptions) error) (err error) {
	defer func(start time.Time) { b.observe(op, mapID, start, err) }(time.Now())

	if err := validateCamera(mapID, opts); err != nil {
		return err
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := fn(inst.m, opts); err != nil {
		return upstream(mapID, op, err)
	}
	return nil
}

// JumpTo moves the camera without animation.
func (b *Bridge) JumpTo(ctx context.Context, mapID string, opts model.CameraOptions) error {
	return b.move(ctx, "jumpTo", mapID, opts, func(m native.Map, o model.CameraOptions) error {
		return m.JumpTo(ctx, o)
	})
}

// EaseTo animates the camera. A zero duration uses one second. Essential
// forces the animation under reduced-motion preferences.
func (b *Bridge) EaseTo(ctx context.Context, mapID string, opts model.CameraOptions) error {
	if opts.Duration == 0 {
		opts.Duration = defaultDuration
	}
	return b.move(ctx, "easeTo", mapID, opts, func(m native.Map, o model.CameraOptions) error {
		return m.EaseTo(ctx, o)
	})
}

// FlyTo animates the camera along a flight path. A zero duration uses one
// second. Essential forces the animation under reduced-motion preferences.
func (b *Bridge) FlyTo(ctx context.Context, mapID string, opts model.CameraOptions) error {
	if opts.Duration == 0 {
		opts.Duration = defaultDuration
	}
	return b.move(ctx, "flyTo", mapID, opts, func(m native.Map, o model.CameraOptions) error {
		return m.FlyTo(ctx, o)
	})
}

// FitBounds moves the camera to show bounds. Zero padding and max zoom use
// 50 pixels and zoom 15.
func (b *Bridge) FitBounds(ctx context.Context, mapID string, bounds model.MapBounds, opts model.FitBoundsOptions) (err error) {
	defer func(start time.Time) { b.observe("fitBounds", mapID, start, err) }(time.Now())

	if err := bounds.Validate(); err != nil {
		return invalidWrap(mapID, err, "invalid bounds")
	}
	if opts.Padding < 0 {
		return invalid(mapID, "padding must not be negative")
	}
	if opts.Padding == 0 {
		opts.Padding = defaultFitPadding
	}
	if opts.MaxZoom == 0 {
		opts.MaxZoom = defaultFitMaxZoom
	}
	if opts.MaxZoom < 0 || opts.MaxZoom > maxZoom {
		return invalid(mapID, "max zoom %v out of range [0, %d]", opts.MaxZoom, maxZoom)
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := inst.m.FitBounds(ctx, bounds, opts); err != nil {
		return upstream(mapID, "fit bounds", err)
	}
	return nil
}

// scalar runs a single-value camera setter after a range check.
func (b *Bridge) scalar(ctx context.Context, op, mapID string, v, lo, hi float64, fn func(native.Map) error) (err error) {
	defer func(start time.Time) { b.observe(op, mapID, start, err) }(time.Now())

	if math.IsNaN(v) || v < lo || v > hi {
		return invalid(mapID, "%s value %v out of range [%v, %v]", op, v, lo, hi)
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := fn(inst.m); err != nil {
		return upstream(mapID, op, err)
	}
	return nil
}

// SetZoom sets the zoom level.
func (b *Bridge) SetZoom(ctx context.Context, mapID string, zoom float64) error {
	return b.scalar(ctx, "setZoom", mapID, zoom, 0, maxZoom, func(m native.Map) error {
		return m.SetZoom(ctx, zoom)
	})
}

// SetBearing sets the bearing in degrees.
func (b *Bridge) SetBearing(ctx context.Context, mapID string, bearing float64) error {
	return b.scalar(ctx, "setBearing", mapID, bearing, -360, 360, func(m native.Map) error {
		return m.SetBearing(ctx, bearing)
	})
}

// SetPitch sets the pitch in degrees.
func (b *Bridge) SetPitch(ctx context.Context, mapID string, pitch float64) error {
	return b.scalar(ctx, "setPitch", mapID, pitch, 0, maxPitch, func(m native.Map) error {
		return m.SetPitch(ctx, pitch)
	})
}

// SetMaxBounds restricts panning to bounds; nil lifts the restriction.
func (b *Bridge) SetMaxBounds(ctx context.Context, mapID string, bounds *model.MapBounds) (err error) {
	defer func(start time.Time) { b.observe("setMaxBounds", mapID, start, err) }(time.Now())

	if bounds != nil {
		if err := bounds.Validate(); err != nil {
			return invalidWrap(mapID, err, "invalid max bounds")
		}
	}

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := inst.m.SetMaxBounds(ctx, bounds); err != nil {
		return upstream(mapID, "set max bounds", err)
	}
	inst.opts.MaxBounds = bounds
	return nil
}
