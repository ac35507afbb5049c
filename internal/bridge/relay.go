package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joeblew999/plat-mapbridge/internal/model"
	"github.com/joeblew999/plat-mapbridge/internal/native"
)

// Sink receives forwarded events. Deliver is called from one goroutine per
// event kind; returned errors are logged and never reach the map.
type Sink interface {
	Deliver(ctx context.Context, ev model.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev model.Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev model.Event) error { return f(ctx, ev) }

// discardSink drops every event.
type discardSink struct{}

func (discardSink) Deliver(context.Context, model.Event) error { return nil }

// RelayState is the lifecycle state of a relay.
type RelayState int

const (
	Uninitialized RelayState = iota
	Subscribed
	TornDown
)

func (s RelayState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Subscribed:
		return "subscribed"
	case TornDown:
		return "torn_down"
	}
	return fmt.Sprintf("RelayState(%d)", int(s))
}

// eventSource is anything native events can be subscribed on: a map, a
// control or a plugin.
type eventSource interface {
	On(kind model.EventKind, h native.Handler) (off func())
}

// Relay forwards native events of one map to a sink. Each event kind gets
// its own ordered lane and worker, so a slow kind never delays another.
type Relay struct {
	mapID   string
	sink    Sink
	logger  *slog.Logger
	metrics *Metrics

	// onDragEnd lets the bridge track marker positions moved by the user.
	onDragEnd func(markerID string, at model.LngLat)

	mu       sync.Mutex
	state    RelayState
	lanes    map[model.EventKind]*lane
	offs     []func()
	lastZoom float64
	wg       sync.WaitGroup
}

func newRelay(mapID string, zoom float64, logger *slog.Logger, metrics *Metrics) *Relay {
	return &Relay{
		mapID:    mapID,
		sink:     discardSink{},
		logger:   logger.With("map_id", mapID),
		metrics:  metrics,
		lanes:    make(map[model.EventKind]*lane),
		lastZoom: zoom,
	}
}

// State returns the relay's lifecycle state.
func (r *Relay) State() RelayState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe attaches the relay to every map-level event kind and starts
// forwarding to sink. It succeeds exactly once.
func (r *Relay) Subscribe(m eventSource, sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Subscribed:
		return errDoubleSetup(r.mapID)
	case TornDown:
		return mapNotFound(r.mapID)
	}
	if sink != nil {
		r.sink = sink
	}
	for _, kind := range model.MapEventKinds() {
		r.offs = append(r.offs, m.On(kind, r.handle))
	}
	r.state = Subscribed
	return nil
}

// Attach subscribes the relay to kinds raised by a control or plugin. Events
// raised before Subscribe are discarded. The returned func detaches.
func (r *Relay) Attach(src eventSource, kinds ...model.EventKind) (detach func()) {
	offs := make([]func(), 0, len(kinds))
	for _, kind := range kinds {
		offs = append(offs, src.On(kind, r.handle))
	}

	var once sync.Once
	detach = func() {
		once.Do(func() {
			for _, off := range offs {
				off()
			}
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == TornDown {
		detach()
		return func() {}
	}
	r.offs = append(r.offs, detach)
	return detach
}

// Close detaches from every source, then drains and stops the lanes.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.state == TornDown {
		r.mu.Unlock()
		return
	}
	r.state = TornDown
	offs := r.offs
	r.offs = nil
	lanes := r.lanes
	r.lanes = make(map[model.EventKind]*lane)
	r.mu.Unlock()

	for _, off := range offs {
		off()
	}
	for _, l := range lanes {
		l.close()
	}
	r.wg.Wait()
}

// handle runs on the native event loop: it snapshots the event and queues
// it without blocking.
func (r *Relay) handle(ev native.Event) {
	r.mu.Lock()
	if r.state != Subscribed {
		r.mu.Unlock()
		r.metrics.recordDropped(string(ev.Type))
		return
	}

	data := r.snapshot(ev)
	l, ok := r.lanes[ev.Type]
	if !ok {
		l = newLane()
		r.lanes[ev.Type] = l
		r.wg.Add(1)
		go r.run(ev.Type, l)
	}
	l.seq++
	out := model.Event{
		MapID: r.mapID,
		Kind:  ev.Type,
		Seq:   l.seq,
		Time:  time.Now().UTC(),
		Data:  data,
	}
	l.push(out)
	r.mu.Unlock()

	if ev.Type == model.EventMarkerDragEnd && ev.LngLat != nil && r.onDragEnd != nil {
		r.onDragEnd(ev.MarkerID, *ev.LngLat)
	}
}

// snapshot extracts the typed payload for an event. Called with r.mu held.
func (r *Relay) snapshot(ev native.Event) any {
	var at model.LngLat
	if ev.LngLat != nil {
		at = *ev.LngLat
	}
	var cam model.Camera
	if ev.Camera != nil {
		cam = *ev.Camera
	}

	switch ev.Type {
	case model.EventClick, model.EventDoubleClick:
		return model.MapClickEvent{Longitude: at.Lng, Latitude: at.Lat, Features: ev.Features}
	case model.EventMouseEnter, model.EventMouseLeave, model.EventMouseMove,
		model.EventTouchStart, model.EventTouchEnd:
		return model.MouseMoveEvent{Longitude: at.Lng, Latitude: at.Lat}
	case model.EventMove:
		return model.MapMoveEvent{
			Longitude: cam.Center.Lng,
			Latitude:  cam.Center.Lat,
			Zoom:      cam.Zoom,
			Bearing:   cam.Bearing,
			Pitch:     cam.Pitch,
		}
	case model.EventZoom:
		prev := r.lastZoom
		r.lastZoom = cam.Zoom
		return model.MapZoomEvent{Zoom: cam.Zoom, PreviousZoom: prev}
	case model.EventRotate:
		return model.RotateEvent{Bearing: cam.Bearing}
	case model.EventPitch:
		return model.PitchEvent{Pitch: cam.Pitch}
	case model.EventError:
		return model.MapErrorEvent{Message: ev.Error, Code: ev.Code}
	case model.EventDrawCreate, model.EventDrawUpdate, model.EventDrawDelete:
		action := model.DrawAction(ev.Type[len("draw."):])
		features := string(ev.Features)
		if features == "" {
			features = "[]"
		}
		return model.DrawEvent{Action: action, GeoJSON: features}
	case model.EventGeolocate:
		if ev.Coords == nil {
			return model.GeolocationEvent{}
		}
		c := ev.Coords
		return model.GeolocationEvent{
			Longitude:        c.Longitude,
			Latitude:         c.Latitude,
			Accuracy:         c.Accuracy,
			Altitude:         c.Altitude,
			AltitudeAccuracy: c.AltitudeAccuracy,
			Heading:          c.Heading,
			Speed:            c.Speed,
		}
	case model.EventMarkerDragEnd:
		return model.MarkerDragEvent{MarkerID: ev.MarkerID, Longitude: at.Lng, Latitude: at.Lat}
	case model.EventGeocoderResult:
		return model.GeocoderEvent{PlaceName: ev.PlaceName, Longitude: at.Lng, Latitude: at.Lat, Result: ev.Result}
	case model.EventDirectionsRoute:
		return model.DirectionsEvent{Route: ev.Result, Distance: ev.Distance, Duration: ev.Duration}
	}
	return nil
}

func (r *Relay) run(kind model.EventKind, l *lane) {
	defer r.wg.Done()
	for {
		batch, ok := l.pop()
		for _, ev := range batch {
			r.deliver(ev)
		}
		if !ok {
			return
		}
	}
}

func (r *Relay) deliver(ev model.Event) {
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("sink panic: %v", p)
			}
		}()
		return r.sink.Deliver(context.Background(), ev)
	}()
	r.metrics.recordEvent(string(ev.Kind), err)
	if err != nil {
		r.logger.Warn("event delivery failed", "kind", ev.Kind, "seq", ev.Seq, "error", err)
	}
}

// lane is an unbounded FIFO of events for one kind. The native loop never
// blocks on it and nothing is dropped.
type lane struct {
	mu     sync.Mutex
	queue  []model.Event
	closed bool
	wake   chan struct{}
	seq    uint64
}

func newLane() *lane {
	return &lane{wake: make(chan struct{}, 1)}
}

func (l *lane) push(ev model.Event) {
	l.mu.Lock()
	l.queue = append(l.queue, ev)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *lane) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// pop waits for queued events. ok is false once the lane is closed and the
// returned batch is the last.
func (l *lane) pop() (batch []model.Event, ok bool) {
	for {
		l.mu.Lock()
		if len(l.queue) > 0 || l.closed {
			batch, l.queue = l.queue, nil
			closed := l.closed
			l.mu.Unlock()
			return batch, !closed
		}
		l.mu.Unlock()
		<-l.wake
	}
}
