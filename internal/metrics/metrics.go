// Package metrics exposes Prometheus instrumentation for the coordinator,
// the broadcast surfaces, and the notification pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every metric the service emits.
type Collector struct {
	ticks        prometheus.Counter
	tickDuration prometheus.Histogram
	transitions  *prometheus.CounterVec
	broadcasts   *prometheus.CounterVec
	dropped      prometheus.Counter
	observers    prometheus.Gauge
	notifySent   prometheus.Counter
	notifyFailed prometheus.Counter
}

// NewCollector creates and registers all metrics on the given registerer.
// Pass prometheus.DefaultRegisterer outside tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cueline_ticks_total",
			Help: "Total number of coordinator heartbeat ticks",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cueline_tick_duration_seconds",
			Help:    "Duration of a heartbeat tick in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cueline_transitions_total",
			Help: "Total number of run-state transitions by operation",
		}, []string{"op"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cueline_broadcasts_total",
			Help: "Total number of events dispatched to observers by type",
		}, []string{"event"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cueline_events_dropped_total",
			Help: "Total number of events dropped because the bus buffer was full",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cueline_observers_connected",
			Help: "Current number of connected stream observers",
		}),
		notifySent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cueline_notifications_sent_total",
			Help: "Total number of chat notifications delivered",
		}),
		notifyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cueline_notifications_failed_total",
			Help: "Total number of chat notification deliveries that failed",
		}),
	}

	reg.MustRegister(
		c.ticks,
		c.tickDuration,
		c.transitions,
		c.broadcasts,
		c.dropped,
		c.observers,
		c.notifySent,
		c.notifyFailed,
	)
	return c
}

// RecordTick records one heartbeat tick and its duration.
func (c *Collector) RecordTick(d time.Duration) {
	c.ticks.Inc()
	c.tickDuration.Observe(d.Seconds())
}

// RecordTransition records a run-state command by operation name.
func (c *Collector) RecordTransition(op string) {
	c.transitions.WithLabelValues(op).Inc()
}

// RecordBroadcast records one event fan-out by event type.
func (c *Collector) RecordBroadcast(event string) {
	c.broadcasts.WithLabelValues(event).Inc()
}

// RecordDropped records an event lost to a full bus buffer.
func (c *Collector) RecordDropped() {
	c.dropped.Inc()
}

// ObserverConnected adjusts the connected-observer gauge.
func (c *Collector) ObserverConnected(delta int) {
	c.observers.Add(float64(delta))
}

// RecordNotifications records the outcome counts of one bulk send.
func (c *Collector) RecordNotifications(sent, failed int) {
	c.notifySent.Add(float64(sent))
	c.notifyFailed.Add(float64(failed))
}
