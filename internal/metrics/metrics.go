// Package metrics holds the deployment run metrics. A one-shot process cannot
// be scraped, so the registry is flushed to a node_exporter textfile instead.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "deployer"

// Recorder is safe to use as a nil pointer; all methods become no-ops.
type Recorder struct {
	registry *prometheus.Registry
	attempts *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.GaugeVec
	gasUsed  *prometheus.GaugeVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Deployment runs started, by contract.",
		}, []string{"contract"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Deployment runs that failed, by contract and error category.",
		}, []string{"contract", "category"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Wall time of the last deployment run.",
		}, []string{"contract"}),
		gasUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gas_used",
			Help:      "Gas used by the last confirmed deployment transaction.",
		}, []string{"contract"}),
	}
	r.registry.MustRegister(r.attempts, r.failures, r.duration, r.gasUsed)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Attempt(contract string) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(contract).Inc()
}

func (r *Recorder) Failure(contract, category string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(contract, category).Inc()
}

func (r *Recorder) Duration(contract string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(contract).Set(elapsed.Seconds())
}

func (r *Recorder) GasUsed(contract string, gas uint64) {
	if r == nil {
		return
	}
	r.gasUsed.WithLabelValues(contract).Set(float64(gas))
}

// WriteTextfile atomically writes the registry to path in the text
// exposition format. An empty path disables the export.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
