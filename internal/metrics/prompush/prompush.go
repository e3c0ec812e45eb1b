// Package prompush is a metrics.Backend that collects into a private
// Prometheus registry and pushes it to a Pushgateway on Flush. The
// pipeline label doubles as the Pushgateway grouping key, so only stage,
// status, kind and table become Prometheus labels.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"gpetl/internal/metrics"
)

// DefaultJob is the Pushgateway job used when none is configured.
const DefaultJob = "gpetl"

// Backend is a Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	job        string
	reg        *prometheus.Registry

	stages   *prometheus.CounterVec
	duration *prometheus.SummaryVec
	records  *prometheus.CounterVec
	tables   *prometheus.CounterVec
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend registers the collectors. gatewayURL is required.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if job == "" {
		job = DefaultJob
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		job:        job,
		reg:        prometheus.NewRegistry(),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StageTotal,
			Help: "Pipeline stage executions by stage and status.",
		}, []string{"pipeline", "stage", "status"}),
		duration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StageDuration,
			Help:       "Pipeline stage duration in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"pipeline", "stage", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records by kind (extracted, transformed, loaded, join_misses, duplicates).",
		}, []string{"pipeline", "kind"}),
		tables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.TablesTotal,
			Help: "Table and collection writes by status.",
		}, []string{"pipeline", "table", "status"}),
	}
	for name, c := range map[string]prometheus.Collector{
		"stage counter":  b.stages,
		"stage summary":  b.duration,
		"record counter": b.records,
		"table counter":  b.tables,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// Registry exposes the underlying registry for gathering.
func (b *Backend) Registry() *prometheus.Registry { return b.reg }

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, l metrics.Labels) {
	switch name {
	case metrics.StageTotal:
		b.stages.WithLabelValues(l["pipeline"], l["stage"], l["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.records.WithLabelValues(l["pipeline"], l["kind"]).Add(delta)
	case metrics.TablesTotal:
		b.tables.WithLabelValues(l["pipeline"], l["table"], l["status"]).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, l metrics.Labels) {
	if name != metrics.StageDuration {
		return
	}
	b.duration.WithLabelValues(l["pipeline"], l["stage"], l["status"]).Observe(value)
}

// Flush pushes the registry to the Pushgateway, replacing the job's group.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.job).Gatherer(b.reg).Push()
}
