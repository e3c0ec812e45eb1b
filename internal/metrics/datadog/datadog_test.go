package datadog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpetl/internal/metrics"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls   []call
	flushed int
	closed  bool
}

func (f *fakeClient) Count(name string, v int64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"count", name, float64(v), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, v float64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"histogram", name, v, tags})
	return nil
}

func (f *fakeClient) Flush() error { f.flushed++; return nil }
func (f *fakeClient) Close() error { f.closed = true; return nil }

func TestNewBackendRequiresAddr(t *testing.T) {
	_, err := NewBackend(Config{})
	require.Error(t, err)
}

func TestNewBackendUDP(t *testing.T) {
	// UDP dialing does not need a listening agent.
	b, err := NewBackend(Config{Addr: "127.0.0.1:8125", Namespace: "gpetl.", Tags: []string{"env:test"}})
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestBackendForwardsWithSortedTags(t *testing.T) {
	fc := &fakeClient{}
	b := &Backend{client: fc}
	metrics.SetBackend(b)
	t.Cleanup(metrics.Reset)

	metrics.RecordRows("olap", metrics.KindLoaded, 12)
	b.ObserveHistogram(metrics.StageDuration, 0.25, metrics.Labels{"stage": "load", "pipeline": "olap"})
	require.NoError(t, metrics.Flush())
	require.NoError(t, b.Close())

	require.Len(t, fc.calls, 2)
	assert.Equal(t, call{"count", metrics.RecordsTotal, 12, []string{"kind:loaded", "pipeline:olap"}}, fc.calls[0])
	assert.Equal(t, call{"histogram", metrics.StageDuration, 0.25, []string{"pipeline:olap", "stage:load"}}, fc.calls[1])
	assert.Equal(t, 1, fc.flushed)
	assert.True(t, fc.closed)
}

func TestTagsEmpty(t *testing.T) {
	assert.Nil(t, tags(nil))
}
