// Package metrics records pipeline instrumentation behind a narrow Backend
// interface. The default backend is a no-op, so call sites never check
// whether metrics are configured; concrete systems (Prometheus Pushgateway,
// DogStatsD) live in subpackages and are installed with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the helpers below.
const (
	StageTotal    = "gpetl_stage_total"
	StageDuration = "gpetl_stage_duration_seconds"
	RecordsTotal  = "gpetl_records_total"
	TablesTotal   = "gpetl_tables_total"
)

// Record kinds used with RecordRows.
const (
	KindExtracted   = "extracted"
	KindTransformed = "transformed"
	KindLoaded      = "loaded"
	KindJoinMisses  = "join_misses"
	KindDuplicates  = "duplicates"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is implemented by each metrics system.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics; backends that stream may return nil.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b leaves the current backend in place.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Reset restores the no-op backend.
func Reset() {
	mu.Lock()
	backend = nopBackend{}
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the installed backend.
func Flush() error { return current().Flush() }

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStage counts one execution of a pipeline stage (extract, transform,
// load, aggregate, render) and observes its duration.
func RecordStage(pipeline, stage string, err error, d time.Duration) {
	lbls := Labels{"pipeline": pipeline, "stage": stage, "status": status(err)}
	b := current()
	b.IncCounter(StageTotal, 1, lbls)
	b.ObserveHistogram(StageDuration, d.Seconds(), lbls)
}

// RecordRows adds n to the record counter of the given kind. Non-positive
// n is ignored.
func RecordRows(pipeline, kind string, n int64) {
	if n <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(n), Labels{"pipeline": pipeline, "kind": kind})
}

// RecordTable counts one table or collection write attempt.
func RecordTable(pipeline, table string, err error) {
	current().IncCounter(TablesTotal, 1, Labels{"pipeline": pipeline, "table": table, "status": status(err)})
}

// Time runs fn and records it as stage.
func Time(pipeline, stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	RecordStage(pipeline, stage, err, time.Since(start))
	return err
}
