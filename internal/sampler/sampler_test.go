package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arjfabian/hostpulse/internal/metrics"
)

// scriptedReader returns the queued readings in order and repeats the last
// one once the queue is drained.
type scriptedReader struct {
	mu       sync.Mutex
	readings []reading
	calls    int
}

type reading struct {
	value float64
	err   error
}

func (r *scriptedReader) read(context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	if i >= len(r.readings) {
		i = len(r.readings) - 1
	}
	r.calls++
	return r.readings[i].value, r.readings[i].err
}

func (r *scriptedReader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newRegistry(t *testing.T) *metrics.Registry {
	t.Helper()
	reg := metrics.NewRegistry()
	require.NoError(t, reg.RegisterGauge(metrics.CPUUsage, "CPU usage percentage"))
	return reg
}

func TestSamplePublishesAndLogs(t *testing.T) {
	reg := newRegistry(t)
	core, logs := observer.New(zapcore.InfoLevel)
	r := &scriptedReader{readings: []reading{{value: 12.345}}}

	s := New(reg, zap.New(core), WithReader(r.read))
	v, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.345, v)

	got, err := reg.Get(metrics.CPUUsage)
	require.NoError(t, err)
	assert.Equal(t, 12.345, got)

	entries := logs.FilterMessage("CPU usage").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "12.35%", entries[0].ContextMap()["usage"])
}

func TestSampleErrorKeepsPreviousValue(t *testing.T) {
	reg := newRegistry(t)
	r := &scriptedReader{readings: []reading{
		{value: 40},
		{err: errors.New("/proc/stat unreadable")},
	}}
	s := New(reg, zap.NewNop(), WithReader(r.read))

	_, err := s.Sample(context.Background())
	require.NoError(t, err)

	_, err = s.Sample(context.Background())
	var se *SampleError
	require.ErrorAs(t, err, &se)

	got, err := reg.Get(metrics.CPUUsage)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got)
}

func TestSampleUnregisteredGauge(t *testing.T) {
	r := &scriptedReader{readings: []reading{{value: 1}}}
	s := New(metrics.NewRegistry(), zap.NewNop(), WithReader(r.read))

	_, err := s.Sample(context.Background())
	assert.ErrorIs(t, err, metrics.ErrUnknownMetric)
}

func TestRunSurvivesReadErrors(t *testing.T) {
	reg := newRegistry(t)
	core, logs := observer.New(zapcore.InfoLevel)
	r := &scriptedReader{readings: []reading{
		{err: errors.New("transient")},
		{err: errors.New("transient")},
		{value: 55.5},
	}}
	s := New(reg, zap.New(core), WithReader(r.read), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		v, err := reg.Get(metrics.CPUUsage)
		return err == nil && v == 55.5
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sampler did not stop after cancel")
	}

	assert.GreaterOrEqual(t, r.count(), 3)
	assert.Equal(t, 2, logs.FilterMessage("CPU sample failed, keeping previous value").Len())
}

func TestRunStopsOnUnregisteredGauge(t *testing.T) {
	r := &scriptedReader{readings: []reading{{value: 1}}}
	s := New(metrics.NewRegistry(), zap.NewNop(), WithReader(r.read), WithInterval(time.Millisecond))

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, metrics.ErrUnknownMetric)
}

func TestReadCPUPercent(t *testing.T) {
	if _, err := readCPUPercent(context.Background()); err != nil {
		t.Skipf("cpu counters unavailable: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	v, err := readCPUPercent(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 0.0)
}

func TestNonPositiveIntervalFallsBackToDefault(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		s := New(newRegistry(t), zap.NewNop(), WithInterval(d))
		assert.Equal(t, DefaultInterval, s.interval)
	}

	r := &scriptedReader{readings: []reading{{value: 9}}}
	reg := newRegistry(t)
	s := New(reg, zap.NewNop(), WithReader(r.read), WithInterval(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return r.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sampler did not stop after cancel")
	}
}
