// Package metrics exposes Prometheus collectors for the polling hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts completed cycles by outcome
	// (success, connect_failure, link_dropped, read_incomplete).
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartstall_cycles_total",
			Help: "Total number of poll cycles by outcome",
		},
		[]string{"result"},
	)

	// ConnectAttemptsTotal counts individual connect attempts.
	ConnectAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartstall_connect_attempts_total",
			Help: "Total number of connect attempts issued to the radio",
		},
	)

	// ReadRetriesTotal counts attribute reads that had to be retried.
	ReadRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartstall_read_retries_total",
			Help: "Total number of attribute read retries by attribute",
		},
		[]string{"attribute"},
	)

	// PublishesTotal counts snapshot publish decisions
	// (published, suppressed, error).
	PublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartstall_publishes_total",
			Help: "Total number of snapshot publish decisions by result",
		},
		[]string{"result"},
	)

	// ScansTotal counts global discovery scans.
	ScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartstall_scans_total",
			Help: "Total number of global discovery scans",
		},
	)

	// RegistryFullTotal counts sightings dropped because the registry was full.
	RegistryFullTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartstall_registry_full_total",
			Help: "Total number of new peripherals dropped at registry capacity",
		},
	)

	// RegistryDevices tracks the number of known peripherals.
	RegistryDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartstall_registry_devices",
			Help: "Number of peripherals in the device registry",
		},
	)

	// DeviceFailures tracks the consecutive failure count per device.
	DeviceFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartstall_device_consecutive_failures",
			Help: "Consecutive failed cycles per peripheral",
		},
		[]string{"device"},
	)

	// Phase is 1 for the current state machine phase and 0 for the others.
	Phase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartstall_hub_phase",
			Help: "Current connection state machine phase (1 = active)",
		},
		[]string{"phase"},
	)

	// CycleDuration tracks wall time from connect to disconnect.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartstall_cycle_duration_seconds",
			Help:    "Duration of poll cycles from connect to disconnect in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// RecordCycle counts a finished cycle with the given outcome.
func RecordCycle(result string, seconds float64) {
	CyclesTotal.WithLabelValues(result).Inc()
	if seconds > 0 {
		CycleDuration.Observe(seconds)
	}
}

// RecordPublish counts a publish decision.
func RecordPublish(result string) {
	PublishesTotal.WithLabelValues(result).Inc()
}

// RecordDevice updates the failure gauge for one device.
func RecordDevice(device string, failures int) {
	DeviceFailures.WithLabelValues(device).Set(float64(failures))
}

// SetPhase marks phase as the active one among all.
func SetPhase(phase string, all []string) {
	for _, p := range all {
		v := 0.0
		if p == phase {
			v = 1
		}
		Phase.WithLabelValues(p).Set(v)
	}
}
