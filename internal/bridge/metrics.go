package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for command metrics.
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusInvalid  = "invalid"
	StatusUpstream = "upstream"
	StatusError    = "error"
)

// Metrics are the bridge's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	eventsForwarded *prometheus.CounterVec
	eventsFailed    *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	pluginLoads     *prometheus.CounterVec
	handles         *prometheus.GaugeVec
	maps            prometheus.Gauge
}

// NewMetrics creates the bridge collectors and registers them with reg.
// Panics if registration fails (following prometheus convention).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapbridge_commands_total",
			Help: "Total number of bridge commands by operation and status",
		}, []string{"op", "status"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mapbridge_command_duration_seconds",
			Help:    "Bridge command duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		eventsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapbridge_events_forwarded_total",
			Help: "Total number of native events delivered to the host sink",
		}, []string{"kind"}),
		eventsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapbridge_events_failed_total",
			Help: "Total number of events the host sink rejected",
		}, []string{"kind"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapbridge_events_dropped_total",
			Help: "Total number of native events raised outside a subscription",
		}, []string{"kind"}),
		pluginLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapbridge_plugin_loads_total",
			Help: "Total number of plugin module loads by kind and result",
		}, []string{"kind", "result"}),
		handles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mapbridge_handles",
			Help: "Live registry handles by kind",
		}, []string{"kind"}),
		maps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mapbridge_maps",
			Help: "Live map instances",
		}),
	}
	reg.MustRegister(
		m.commands, m.commandDuration,
		m.eventsForwarded, m.eventsFailed, m.eventsDropped,
		m.pluginLoads, m.handles, m.maps,
	)
	return m
}

func (m *Metrics) recordCommand(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(op, statusOf(err)).Inc()
	m.commandDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) recordEvent(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.eventsFailed.WithLabelValues(kind).Inc()
		return
	}
	m.eventsForwarded.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordDropped(kind string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordPluginLoad(kind string, err error) {
	if m == nil {
		return
	}
	result := StatusSuccess
	if err != nil {
		result = StatusError
	}
	m.pluginLoads.WithLabelValues(kind, result).Inc()
}

// syncHandles publishes the registry's handle counts.
func (m *Metrics) syncHandles(r *Registry, liveMaps int) {
	if m == nil {
		return
	}
	for _, k := range Kinds() {
		m.handles.WithLabelValues(string(k)).Set(float64(r.Count(k)))
	}
	m.maps.Set(float64(liveMaps))
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case IsNotFound(err):
		return StatusNotFound
	case IsValidation(err):
		return StatusInvalid
	case IsUpstream(err):
		return StatusUpstream
	}
	return StatusError
}
