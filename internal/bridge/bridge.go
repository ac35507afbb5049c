// Package bridge connects a host application to live instances of the
// wrapped map library. It keeps a registry of native handles per map,
// dispatches typed commands against the native API and relays native events
// back to the host.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joeblew999/plat-mapbridge/internal/errutil"
	"github.com/joeblew999/plat-mapbridge/internal/logging"
	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
	"github.com/joeblew999/plat-mapbridge/internal/schema"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithValidator sets the document validator.
func WithValidator(v *schema.Validator) Option {
	return func(b *Bridge) { b.validator = v }
}

// WithSink sets the sink used by Setup when the caller passes none.
func WithSink(s Sink) Option {
	return func(b *Bridge) { b.sink = s }
}

// WithAccessToken sets the access token used when map options carry none.
func WithAccessToken(token string) Option {
	return func(b *Bridge) { b.accessToken = token }
}

// WithDefaultStyle sets the style used when map options carry none.
func WithDefaultStyle(style string) Option {
	return func(b *Bridge) { b.defaultStyle = style }
}

// Bridge dispatches commands to map instances and relays their events.
// Commands for one map are serialized; commands for different maps run
// concurrently.
type Bridge struct {
	lib          native.Library
	registry     *Registry
	logger       *slog.Logger
	metrics      *Metrics
	validator    *schema.Validator
	sink         Sink
	accessToken  string
	defaultStyle string

	flights singleflight.Group

	mu        sync.Mutex
	instances map[string]*instance
	libReady  bool
	modules   map[model.PluginKind]bool
}

// instance is one live map.
type instance struct {
	id    string
	opts  model.MapOptions
	ready chan struct{} // closed when initialization finishes
	err   error         // initialization failure, set before ready closes

	mu        sync.Mutex
	m         native.Map
	relay     *Relay
	destroyed bool
	loading   map[model.PluginKind]model.PluginOptions
	plugins   singleflight.Group
	terrain   bool
	traffic   bool
}

// New creates a bridge over a native library.
func New(lib native.Library, opts ...Option) *Bridge {
	b := &Bridge{
		lib:          lib,
		registry:     NewRegistry(),
		logger:       logging.Discard(),
		sink:         discardSink{},
		defaultStyle: model.StyleStreets,
		instances:    make(map[string]*instance),
		modules:      make(map[model.PluginKind]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.validator == nil {
		b.validator = schema.NewValidator()
	}
	return b
}

// Registry returns the bridge's handle registry.
func (b *Bridge) Registry() *Registry { return b.registry }

// Maps returns the ids of live maps.
func (b *Bridge) Maps() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.instances))
	for id, inst := range b.instances {
		select {
		case <-inst.ready:
			if inst.err == nil {
				ids = append(ids, id)
			}
		default:
		}
	}
	return ids
}

// observe records metrics and logs the outcome of a command.
func (b *Bridge) observe(op, mapID string, start time.Time, err error) {
	b.metrics.recordCommand(op, err, time.Since(start))
	switch {
	case err == nil:
		b.logger.Debug("command", "op", op, "map_id", mapID, "duration", time.Since(start))
	case IsUpstream(err):
		errutil.LogError(b.logger, op+" failed", err)
	default:
		b.logger.Debug("command rejected", "op", op, "map_id", mapID, "error", err)
	}
}

// loadLibrary bootstraps the map library once. Concurrent callers share the
// in-flight load; a failed load is retried by the next caller.
func (b *Bridge) loadLibrary(ctx context.Context) error {
	b.mu.Lock()
	ready := b.libReady
	b.mu.Unlock()
	if ready {
		return nil
	}

	detached := context.WithoutCancel(ctx)
	ch := b.flights.DoChan("library", func() (any, error) {
		if err := b.lib.Load(detached); err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.libReady = true
		b.mu.Unlock()
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loadModule fetches a plugin module once per bridge.
func (b *Bridge) loadModule(ctx context.Context, kind model.PluginKind) error {
	b.mu.Lock()
	loaded := b.modules[kind]
	b.mu.Unlock()
	if loaded {
		return nil
	}

	_, err, _ := b.flights.Do("module/"+string(kind), func() (any, error) {
		err := b.lib.LoadPlugin(ctx, kind)
		b.metrics.recordPluginLoad(string(kind), err)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.modules[kind] = true
		b.mu.Unlock()
		return nil, nil
	})
	return err
}

// Initialize creates the map for opts.Container. Initializing an id that is
// live or still initializing waits for that instance instead of creating a
// second one.
func (b *Bridge) Initialize(ctx context.Context, opts model.MapOptions) (err error) {
	defer func(start time.Time) { b.observe("initialize", opts.Container, start, err) }(time.Now())

	if opts.Container == "" {
		return invalid("", "container is required")
	}
	if opts.Center != nil {
		if err := opts.Center.Validate(); err != nil {
			return invalidWrap(opts.Container, err, "invalid center")
		}
	}
	if opts.Zoom < 0 || opts.Zoom > 24 {
		return invalid(opts.Container, "zoom %v out of range [0, 24]", opts.Zoom)
	}
	if opts.Pitch < 0 || opts.Pitch > 85 {
		return invalid(opts.Container, "pitch %v out of range [0, 85]", opts.Pitch)
	}
	if opts.MaxBounds != nil {
		if err := opts.MaxBounds.Validate(); err != nil {
			return invalidWrap(opts.Container, err, "invalid max bounds")
		}
	}
	if opts.AccessToken == "" {
		opts.AccessToken = b.accessToken
	}
	if opts.Style == "" {
		opts.Style = b.defaultStyle
	}

	b.mu.Lock()
	if inst, ok := b.instances[opts.Container]; ok {
		b.mu.Unlock()
		select {
		case <-inst.ready:
			return inst.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	inst := &instance{
		id:      opts.Container,
		opts:    opts,
		ready:   make(chan struct{}),
		loading: make(map[model.PluginKind]model.PluginOptions),
	}
	b.instances[inst.id] = inst
	b.mu.Unlock()

	m, err := b.create(ctx, opts)
	if err != nil {
		b.mu.Lock()
		delete(b.instances, inst.id)
		b.mu.Unlock()
		inst.err = err
		close(inst.ready)
		return err
	}

	inst.m = m
	inst.relay = newRelay(inst.id, opts.Zoom, b.logger, b.metrics)
	inst.relay.onDragEnd = func(markerID string, at model.LngLat) {
		if rec, err := resolveAs[*markerRecord](b.registry, inst.id, KindMarker, markerID); err == nil {
			rec.moved(at)
		}
	}
	close(inst.ready)
	b.syncMetrics()
	return nil
}

func (b *Bridge) create(ctx context.Context, opts model.MapOptions) (native.Map, error) {
	if err := b.loadLibrary(ctx); err != nil {
		return nil, upstream(opts.Container, "load library", err)
	}
	m, err := b.lib.NewMap(ctx, opts)
	if err != nil {
		return nil, upstream(opts.Container, "create map", err)
	}
	return m, nil
}

// acquire waits for the map's initialization and locks it for one command.
func (b *Bridge) acquire(ctx context.Context, mapID string) (*instance, func(), error) {
	b.mu.Lock()
	inst, ok := b.instances[mapID]
	b.mu.Unlock()
	if !ok {
		return nil, nil, mapNotFound(mapID)
	}

	select {
	case <-inst.ready:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	if inst.err != nil {
		return nil, nil, mapNotFound(mapID)
	}

	inst.mu.Lock()
	if inst.destroyed {
		inst.mu.Unlock()
		return nil, nil, mapNotFound(mapID)
	}
	return inst, inst.mu.Unlock, nil
}

// Setup subscribes the map's event relay to sink, or to the bridge's sink
// when sink is nil. It succeeds once per map.
func (b *Bridge) Setup(ctx context.Context, mapID string, sink Sink) (err error) {
	defer func(start time.Time) { b.observe("setup", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if sink == nil {
		sink = b.sink
	}
	return inst.relay.Subscribe(inst.m, sink)
}

// RelayState returns the state of a map's event relay.
func (b *Bridge) RelayState(ctx context.Context, mapID string) (RelayState, error) {
	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return TornDown, err
	}
	defer unlock()
	return inst.relay.State(), nil
}

// Destroy tears the map down: markers and popups are removed natively, the
// remaining handles are forgotten, the native map is removed and the id is
// released for reuse.
func (b *Bridge) Destroy(ctx context.Context, mapID string) (err error) {
	defer func(start time.Time) { b.observe("destroy", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}

	for _, id := range b.registry.List(mapID, KindMarker) {
		if rec, rerr := resolveAs[*markerRecord](b.registry, mapID, KindMarker, id); rerr == nil {
			if rerr := rec.native.Remove(ctx); rerr != nil {
				b.logger.Warn("marker removal failed during teardown", "map_id", mapID, "id", id, "error", rerr)
			}
		}
	}
	for _, id := range b.registry.List(mapID, KindPopup) {
		if rec, rerr := resolveAs[*popupRecord](b.registry, mapID, KindPopup, id); rerr == nil {
			if rerr := rec.native.Remove(ctx); rerr != nil {
				b.logger.Warn("popup removal failed during teardown", "map_id", mapID, "id", id, "error", rerr)
			}
		}
	}
	b.registry.Clear(mapID, KindMarker)
	b.registry.Clear(mapID, KindPopup)
	for _, kind := range []Kind{KindSource, KindLayer, KindControl, KindPlugin} {
		b.registry.Clear(mapID, kind)
	}

	if rerr := inst.m.Remove(ctx); rerr != nil {
		err = upstream(mapID, "remove map", rerr)
	}

	inst.destroyed = true
	b.registry.Drop(mapID)
	b.mu.Lock()
	if b.instances[mapID] == inst {
		delete(b.instances, mapID)
	}
	b.mu.Unlock()
	unlock()

	// Outside the instance lock: a sink may issue commands while draining.
	inst.relay.Close()
	b.syncMetrics()
	return err
}

// Resize tells the map its container changed size.
func (b *Bridge) Resize(ctx context.Context, mapID string) (err error) {
	defer func(start time.Time) { b.observe("resize", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := inst.m.Resize(ctx); err != nil {
		return upstream(mapID, "resize", err)
	}
	return nil
}

// Viewport returns the current camera, bounds and motion state.
func (b *Bridge) Viewport(ctx context.Context, mapID string) (_ model.Viewport, err error) {
	defer func(start time.Time) { b.observe("viewport", mapID, start, err) }(time.Now())

	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return model.Viewport{}, err
	}
	defer unlock()

	v, err := inst.m.Viewport(ctx)
	if err != nil {
		return model.Viewport{}, upstream(mapID, "viewport", err)
	}
	return v, nil
}

func (b *Bridge) syncMetrics() {
	if b.metrics == nil {
		return
	}
	b.metrics.syncHandles(b.registry, len(b.Maps()))
}

// MapInfo summarizes a live map.
type MapInfo struct {
	ID      string           `json:"id"`
	Style   string           `json:"style"`
	Relay   string           `json:"relay"`
	Terrain bool             `json:"terrain"`
	Traffic bool             `json:"traffic"`
	Handles map[Kind]int     `json:"handles"`
	Plugins []string         `json:"plugins,omitempty"`
	Options model.MapOptions `json:"options"`
}

// Info returns a summary of a live map.
func (b *Bridge) Info(ctx context.Context, mapID string) (MapInfo, error) {
	inst, unlock, err := b.acquire(ctx, mapID)
	if err != nil {
		return MapInfo{}, err
	}
	defer unlock()

	info := MapInfo{
		ID:      mapID,
		Style:   inst.opts.Style,
		Relay:   inst.relay.State().String(),
		Terrain: inst.terrain,
		Traffic: inst.traffic,
		Handles: make(map[Kind]int),
		Plugins: b.registry.List(mapID, KindPlugin),
		Options: inst.opts,
	}
	info.Options.AccessToken = ""
	for _, k := range Kinds() {
		info.Handles[k] = len(b.registry.List(mapID, k))
	}
	return info, nil
}
