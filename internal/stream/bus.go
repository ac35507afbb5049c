// Package stream fans map events out to host subscribers.
package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joeblew999/plat-mapbridge/internal/logging"
	"github.com/joeblew999/plat-mapbridge/internal/model"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithRegisterer registers the bus's drop and subscriber metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(b *Bus) {
		b.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapbridge",
			Subsystem: "stream",
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber was too slow.",
		}, []string{"kind"})
		b.subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mapbridge",
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Current event stream subscribers.",
		})
		reg.MustRegister(b.dropped, b.subscribers)
	}
}

// Subscription receives the events of one map, or of every map when MapID
// is empty.
type Subscription struct {
	MapID string
	C     <-chan model.Event

	ch chan model.Event
}

// Bus is a fan-out pub/sub for map events. It is a bridge sink: Deliver
// never blocks, and a subscriber whose queue is full misses the event.
type Bus struct {
	logger *slog.Logger
	buffer int

	dropped     *prometheus.CounterVec
	subscribers prometheus.Gauge

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBus creates an event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		logger: logging.Discard(),
		buffer: DefaultBuffer,
		subs:   make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Deliver publishes ev to the subscribers of its map.
func (b *Bus) Deliver(_ context.Context, ev model.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if s.MapID != "" && s.MapID != ev.MapID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.logger.Warn("subscriber too slow, event dropped",
				"map_id", ev.MapID, "kind", ev.Kind, "seq", ev.Seq)
			if b.dropped != nil {
				b.dropped.WithLabelValues(string(ev.Kind)).Inc()
			}
		}
	}
	return nil
}

// Subscribe registers a subscriber for mapID; an empty id receives every
// map's events.
func (b *Bus) Subscribe(mapID string) *Subscription {
	ch := make(chan model.Event, b.buffer)
	s := &Subscription{MapID: mapID, C: ch, ch: ch}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()
	if b.subscribers != nil {
		b.subscribers.Set(float64(n))
	}
	return s
}

// Unsubscribe removes a subscriber and closes its channel. It is safe to
// call more than once.
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[s]
	delete(b.subs, s)
	n := len(b.subs)
	b.mu.Unlock()
	if !ok {
		return
	}
	close(s.ch)
	if b.subscribers != nil {
		b.subscribers.Set(float64(n))
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
