// Package metrics holds the Prometheus collectors for the booking flows.
// Every method is safe to call on a nil receiver so components can run
// without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clinic"

// Booking outcomes.
const (
	OutcomeCreated     = "created"
	OutcomeConflict    = "conflict"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
)

type BookingMetrics struct {
	bookings  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	discovery *prometheus.CounterVec
	occupied  prometheus.Gauge
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Appointment booking attempts by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "reserve_duration_seconds",
			Help:      "Latency of the slot reservation write.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		discovery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "requests_total",
			Help:      "Discovery call submissions by outcome.",
		}, []string{"outcome"}),
		occupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "occupied_slots",
			Help:      "Occupied slots in the current booking window, as seen by the live feed.",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.latency, m.discovery, m.occupied)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, reserveDuration time.Duration) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
	if reserveDuration > 0 {
		m.latency.WithLabelValues(outcome).Observe(reserveDuration.Seconds())
	}
}

func (m *BookingMetrics) ObserveDiscovery(outcome string) {
	if m == nil {
		return
	}
	m.discovery.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) SetOccupied(n int) {
	if m == nil {
		return
	}
	m.occupied.Set(float64(n))
}

type NotificationMetrics struct {
	outcomes *prometheus.CounterVec
	sends    *prometheus.CounterVec
	duration prometheus.Histogram
	depth    prometheus.Gauge
	dropped  prometheus.Counter
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	m := &NotificationMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "dispatch_total",
			Help:      "Notification dispatches by kind and outcome.",
		}, []string{"kind", "outcome"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sends_total",
			Help:      "Individual email sends by recipient and result.",
		}, []string{"recipient", "result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent delivering both messages of a notification.",
			Buckets:   prometheus.DefBuckets,
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_depth",
			Help:      "Notifications waiting in the in-process queue.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "dropped_total",
			Help:      "Notifications rejected because the queue was full or stopped.",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outcomes, m.sends, m.duration, m.depth, m.dropped)
	return m
}

func (m *NotificationMetrics) ObserveDispatch(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind, outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *NotificationMetrics) ObserveSend(recipient string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sends.WithLabelValues(recipient, result).Inc()
}

func (m *NotificationMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.depth.Set(float64(n))
}

func (m *NotificationMetrics) IncDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
