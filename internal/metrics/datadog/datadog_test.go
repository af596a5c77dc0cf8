package datadog

import (
	"testing"

	"heartprep/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls  []call
	closed bool
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"hist", name, value, tags})
	return nil
}

func (f *fakeClient) Close() error { f.closed = true; return nil }

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := NewBackend(Config{})
	require.Error(t, err)
}

func TestBackend_ForwardsWithSortedTags(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.RowsTotal, 7.9, metrics.Labels{"kind": "inserted", "job": "load"})
	b.ObserveHistogram(metrics.StepDuration, 1.5, metrics.Labels{"step": "query"})
	require.NoError(t, b.Flush())

	require.Len(t, fc.calls, 2)
	assert.Equal(t, call{"count", metrics.RowsTotal, 7, []string{"job:load", "kind:inserted"}}, fc.calls[0])
	assert.Equal(t, call{"hist", metrics.StepDuration, 1.5, []string{"step:query"}}, fc.calls[1])
	assert.True(t, fc.closed)
}

func TestTags_Empty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, tags(nil))
}
