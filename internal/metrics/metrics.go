// Package metrics records what a qb invocation did so CI pipelines can
// scrape it through the node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for Operation.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder owns a private registry. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	commands    *prometheus.HistogramVec
	resolutions *prometheus.CounterVec
}

// New creates a Recorder with all qb metrics registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qb_operations_total",
				Help: "Total number of qb operations by outcome",
			},
			[]string{"operation", "result"},
		),
		commands: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qb_external_command_duration_seconds",
				Help:    "Duration of external tool invocations in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"tool"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qb_credential_resolutions_total",
				Help: "Field credential resolutions by the source that answered",
			},
			[]string{"source"},
		),
	}
	r.registry.MustRegister(r.operations, r.commands, r.resolutions)
	return r
}

// Operation counts one finished operation.
func (r *Recorder) Operation(name string, err error) {
	if r == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	r.operations.WithLabelValues(name, result).Inc()
}

// Command observes how long an external tool ran since start.
func (r *Recorder) Command(tool string, start time.Time) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(tool).Observe(time.Since(start).Seconds())
}

// Resolution counts a credential answered by source.
func (r *Recorder) Resolution(source string) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(source).Inc()
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteFile writes the registry in text exposition format. The write is
// atomic, as required by the textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
