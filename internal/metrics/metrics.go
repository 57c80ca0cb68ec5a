// Package metrics defines the Prometheus instrumentation for the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the daemon's Prometheus collectors.
type Metrics struct {
	Events           *prometheus.CounterVec
	InvalidSamples   *prometheus.CounterVec
	OutOfOrderInputs *prometheus.CounterVec
	ClockRegressions prometheus.Counter
	PublishFailures  prometheus.Counter
	Temperature      *prometheus.GaugeVec
	DoorOpen         prometheus.Gauge
	PowerPresent     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coldchain_events_total",
			Help: "State-change events emitted, by type.",
		}, []string{"type"}),
		InvalidSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coldchain_invalid_samples_total",
			Help: "Temperature samples rejected as sensor faults, by channel.",
		}, []string{"channel"}),
		OutOfOrderInputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coldchain_out_of_order_inputs_total",
			Help: "Inputs rejected for violating per-channel ordering, by domain.",
		}, []string{"domain"}),
		ClockRegressions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coldchain_clock_regressions_total",
			Help: "Wall-clock updates that were clamped to preserve monotonicity.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coldchain_publish_failures_total",
			Help: "MQTT publish attempts that returned an error.",
		}),
		Temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coldchain_temperature_celsius",
			Help: "Latest accepted temperature reading, by channel.",
		}, []string{"channel"}),
		DoorOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coldchain_door_open",
			Help: "1 while the door is open, 0 while closed.",
		}),
		PowerPresent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coldchain_power_present",
			Help: "1 while mains power is present, 0 during an outage.",
		}),
	}
	reg.MustRegister(
		m.Events,
		m.InvalidSamples,
		m.OutOfOrderInputs,
		m.ClockRegressions,
		m.PublishFailures,
		m.Temperature,
		m.DoorOpen,
		m.PowerPresent,
	)
	return m
}
