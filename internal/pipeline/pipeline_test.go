package pipeline

import (
	"context"
	"errors"
	"sync"

	"gpetl/internal/metrics"
	"gpetl/internal/model"
	"gpetl/internal/records"
	"gpetl/internal/source"
	"gpetl/internal/storage"
)

// fakeRepo records every Write and fails the tables listed in fail.
type fakeRepo struct {
	mu     sync.Mutex
	writes []storage.Table
	fail   map[string]error
	closed bool
}

func (f *fakeRepo) Write(_ context.Context, t storage.Table, _ storage.Strategy) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, t)
	if err := f.fail[t.Name]; err != nil {
		return 0, err
	}
	return int64(len(t.Rows)), nil
}

func (f *fakeRepo) Close() { f.closed = true }

func (f *fakeRepo) names() []string {
	out := make([]string, len(f.writes))
	for i, t := range f.writes {
		out[i] = t.Name
	}
	return out
}

// fakeDocs records the last written collection.
type fakeDocs struct {
	collection string
	docs       []model.PatientDocument
	strategy   storage.Strategy
	err        error
	calls      int
}

func (f *fakeDocs) Write(_ context.Context, coll string, docs []model.PatientDocument, s storage.Strategy) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	f.collection, f.docs, f.strategy = coll, docs, s
	return int64(len(docs)), nil
}

func (f *fakeDocs) Close(context.Context) error { return nil }

// countingBackend sums counters by name and label value.
type countingBackend struct {
	mu     sync.Mutex
	counts map[string]float64
}

func (b *countingBackend) IncCounter(name string, delta float64, l metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := name + "/" + l["pipeline"] + "/" + l["kind"] + l["stage"] + l["table"] + "/" + l["status"]
	b.counts[key] += delta
}

func (b *countingBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (b *countingBackend) Flush() error                                     { return nil }

func (b *countingBackend) get(key string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[key]
}

var errBoom = errors.New("boom")

func practiceRecord(key, name string, score float64, cat int64) records.Record {
	return records.Record{
		model.ColPracticeKey:     key,
		model.ColPracticeName:    name,
		model.ColLatitude:        55.9,
		model.ColLongitude:       -3.2,
		model.ColPopulation:      int64(1000),
		model.ColScoreOverall:    score,
		model.ColCategoryOverall: cat,
		model.ColRankHealth:      3.0,
		model.ColCategoryHealth:  int64(1),
		model.ColRankAccess:      4.0,
		model.ColCategoryAccess:  int64(2),
	}
}

// oltp is the three-patient scenario plus one patient whose practice is
// missing and one whose TEC key is missing.
func oltp() *source.Memory {
	return &source.Memory{Tables: map[string][]records.Record{
		source.QueryPatients: {
			{model.ColPatientID: int64(1), model.ColPracticeKey: "A", model.ColTECKey: int64(1)},
			{model.ColPatientID: int64(2), model.ColPracticeKey: "A", model.ColTECKey: int64(2)},
			{model.ColPatientID: int64(3), model.ColPracticeKey: "B", model.ColTECKey: int64(1)},
			{model.ColPatientID: int64(4), model.ColPracticeKey: "Z", model.ColTECKey: int64(1)},
			{model.ColPatientID: int64(5), model.ColPracticeKey: "B", model.ColTECKey: int64(9)},
		},
		source.QueryPractices: {
			practiceRecord("A", "Alpha Surgery", 20, 2),
			practiceRecord("B", "Beta Practice", 40, 4),
		},
		source.QueryTECStatus: {
			{model.ColTECKey: int64(1), model.ColTecOrNo: "TEC"},
			{model.ColTECKey: int64(2), model.ColTecOrNo: "No"},
		},
	}}
}
