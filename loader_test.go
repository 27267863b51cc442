package bitmap

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader_NilDecoder(t *testing.T) {
	_, err := NewLoader(nil)
	assert.Error(t, err)
}

func TestNewLoader_Options(t *testing.T) {
	shared := NewRasterCache(1 << 20)
	l, err := NewLoader(newFakeDecoder(),
		WithCache(shared),
		WithCacheBudget(5),
		WithBlocking(true),
		WithWorkers(2),
		WithVerticalCenter(3),
	)
	require.NoError(t, err)
	defer l.Close()

	assert.Same(t, shared, l.Cache())
	assert.Equal(t, int64(1<<20), l.Cache().Budget(), "supplied cache keeps its budget")
	assert.True(t, l.Cache().Blocking())
	assert.Equal(t, 1.0, l.verticalCenter)
	require.NotNil(t, l.executor)
	assert.Equal(t, 2, l.executor.Workers())
}

func TestLoader_WorkerPool(t *testing.T) {
	l, err := NewLoader(newFakeDecoder(), WithWorkers(4))
	require.NoError(t, err)
	defer l.Close()

	keys := []string{"a", "b", "c", "square"}
	tasks := make([]*DecodeTask, 0, len(keys))
	for _, k := range keys {
		task, err := l.Load(Request{Key: fakeSource{k}, Width: 50, Height: 50})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	for _, task := range tasks {
		h, err := Await(t.Context(), task.Events())
		require.NoError(t, err)
		defer h.Release()
		assert.Equal(t, 50, h.Raster().Width())
	}
	assert.Equal(t, len(keys), l.Cache().Len())
}

func TestLoader_CloseUnblocksWaitingTasks(t *testing.T) {
	l, err := NewLoader(newFakeDecoder(), WithWorkers(1), WithBlocking(true))
	require.NoError(t, err)

	task, err := l.Load(Request{Key: fakeSource{"a"}, Width: 100, Height: 100})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return l.Cache().Waiters() == 1 },
		5*time.Second, time.Millisecond)

	l.Close()

	h, err := Await(t.Context(), task.Events())
	require.NoError(t, err, "task proceeds with a fresh buffer once blocking is off")
	h.Release()

	_, err = l.Load(Request{Key: fakeSource{"b"}, Width: 100, Height: 100})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoader_Metrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	l := newTestLoader(t, newFakeDecoder(), WithMetrics(reg, "thumbs"))

	task, err := l.Load(Request{Key: fakeSource{"a"}, Width: 100, Height: 100})
	require.NoError(t, err)
	h, err := Await(t.Context(), task.Events())
	require.NoError(t, err)
	defer h.Release()

	n, err := testutil.GatherAndCount(reg, "thumbs_cache_entries", "thumbs_cache_puts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(reg, "thumbs_decode_queued_tasks")
	require.NoError(t, err)
	assert.Zero(t, n, "injected schedulers have no queue to export")

	_, err = NewLoader(newFakeDecoder(), WithScheduler(Inline), WithMetrics(reg, "thumbs"))
	assert.Error(t, err, "duplicate registration")
}

func TestLoader_MetricsQueueDepth(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	l, err := NewLoader(newFakeDecoder(), WithWorkers(1), WithMetrics(reg, "thumbs"))
	require.NoError(t, err)
	defer l.Close()

	expected := `
# HELP thumbs_decode_queued_tasks Decode tasks waiting for a worker
# TYPE thumbs_decode_queued_tasks gauge
thumbs_decode_queued_tasks 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "thumbs_decode_queued_tasks"))
}
