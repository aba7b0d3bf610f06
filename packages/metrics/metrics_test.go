package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.Start()

	m.Record("quote/create", 100*time.Millisecond, nil)
	m.Record("quote/create", 150*time.Millisecond, nil)
	m.Record("quote/get", 200*time.Millisecond, nil)
	m.Record("quote/get", 50*time.Millisecond, errors.New("boom"))

	m.Stop()

	s := m.Summary()
	assert.Equal(t, int64(4), s.Count)
	assert.Equal(t, int64(3), s.Success)
	assert.Equal(t, int64(1), s.Errors)
	assert.InDelta(t, 0.25, s.ErrorRate(), 0.0001)
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.Min), float64(time.Millisecond))
	assert.InDelta(t, float64(200*time.Millisecond), float64(s.Max), float64(time.Millisecond))

	require.Len(t, s.Steps, 2)
	assert.Equal(t, "quote/create", s.Steps[0].Name)
	assert.Equal(t, int64(2), s.Steps[0].Count)
	assert.Equal(t, int64(1), s.Steps[1].Errors)
}

func TestMetricsEmpty(t *testing.T) {
	s := New().Summary()

	assert.Zero(t, s.Count)
	assert.Zero(t, s.P95)
	assert.Zero(t, s.ErrorRate())
}

func TestMetricsClampsOutliers(t *testing.T) {
	m := New()
	m.Record("", 0, nil)
	m.Record("", 2*time.Minute, nil)

	s := m.Summary()
	assert.Equal(t, time.Microsecond, s.Min)
	assert.InDelta(t, float64(time.Minute), float64(s.Max), float64(100*time.Millisecond))
	assert.Empty(t, s.Steps)
}

func TestMetricsConcurrentRecord(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record("step", time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), m.Summary().Count)
}
