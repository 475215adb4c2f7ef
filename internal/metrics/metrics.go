// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RawEvents counts directional changes seen on the volume signal
	RawEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volume_counter_raw_events_total",
			Help: "Raw volume changes by direction",
		},
		[]string{"direction"},
	)

	// AcceptedEvents counts debounced events delivered to the counter
	AcceptedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volume_counter_accepted_events_total",
			Help: "Accepted events by direction and origin (volume or control)",
		},
		[]string{"direction", "source"},
	)

	// DroppedEvents counts raw events suppressed by the debounce window
	DroppedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "volume_counter_dropped_events_total",
			Help: "Raw events dropped inside the debounce window",
		},
	)

	// CounterValue is the current counter value
	CounterValue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "volume_counter_value",
			Help: "Current counter value",
		},
	)

	// Observing is 1 while the volume signal is being watched
	Observing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "volume_counter_observing",
			Help: "Whether volume observation is active (1) or not (0)",
		},
	)

	// StoreErrors counts persistence failures by operation
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volume_counter_store_errors_total",
			Help: "Counter persistence failures by operation (load/save)",
		},
		[]string{"operation"},
	)
)
