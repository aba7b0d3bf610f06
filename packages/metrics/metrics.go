// Package metrics aggregates step latencies of a run into HDR histograms.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics collects step latencies. It is safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	total   atomic.Int64
	success atomic.Int64
	errors  atomic.Int64

	// latencies in microseconds, 1us to 60s, 3 significant digits
	histogram *hdrhistogram.Histogram
	perStep   map[string]*stepMetrics

	startTime time.Time
	endTime   time.Time
}

type stepMetrics struct {
	total     int64
	errors    int64
	histogram *hdrhistogram.Histogram
}

func New() *Metrics {
	return &Metrics{
		histogram: newHistogram(),
		perStep:   make(map[string]*stepMetrics),
	}
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)
}

func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

// Record adds one sent step. name groups latencies, usually scenario/step.
func (m *Metrics) Record(name string, duration time.Duration, err error) {
	m.total.Add(1)
	if err != nil {
		m.errors.Add(1)
	} else {
		m.success.Add(1)
	}

	latencyUs := clamp(duration.Microseconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.histogram.RecordValue(latencyUs)

	if name == "" {
		return
	}
	sm, ok := m.perStep[name]
	if !ok {
		sm = &stepMetrics{histogram: newHistogram()}
		m.perStep[name] = sm
	}
	sm.total++
	if err != nil {
		sm.errors++
	}
	_ = sm.histogram.RecordValue(latencyUs)
}

func clamp(us int64) int64 {
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

type Summary struct {
	Duration time.Duration `json:"duration"`
	Count    int64         `json:"count"`
	Success  int64         `json:"success"`
	Errors   int64         `json:"errors"`

	Min  time.Duration `json:"min"`
	Max  time.Duration `json:"max"`
	Mean time.Duration `json:"mean"`
	P50  time.Duration `json:"p50"`
	P95  time.Duration `json:"p95"`
	P99  time.Duration `json:"p99"`

	Steps []*StepSummary `json:"steps,omitempty"`
}

type StepSummary struct {
	Name   string        `json:"name"`
	Count  int64         `json:"count"`
	Errors int64         `json:"errors"`
	P50    time.Duration `json:"p50"`
	P95    time.Duration `json:"p95"`
	Mean   time.Duration `json:"mean"`
}

// Summary returns the aggregate so far, per-step entries sorted by name.
func (m *Metrics) Summary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() && !m.startTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	s := &Summary{
		Duration: duration,
		Count:    m.total.Load(),
		Success:  m.success.Load(),
		Errors:   m.errors.Load(),
	}
	if s.Count == 0 {
		return s
	}

	s.Min = micros(m.histogram.Min())
	s.Max = micros(m.histogram.Max())
	s.Mean = micros(int64(m.histogram.Mean()))
	s.P50 = micros(m.histogram.ValueAtQuantile(50))
	s.P95 = micros(m.histogram.ValueAtQuantile(95))
	s.P99 = micros(m.histogram.ValueAtQuantile(99))

	names := make([]string, 0, len(m.perStep))
	for name := range m.perStep {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sm := m.perStep[name]
		s.Steps = append(s.Steps, &StepSummary{
			Name:   name,
			Count:  sm.total,
			Errors: sm.errors,
			P50:    micros(sm.histogram.ValueAtQuantile(50)),
			P95:    micros(sm.histogram.ValueAtQuantile(95)),
			Mean:   micros(int64(sm.histogram.Mean())),
		})
	}
	return s
}

// ErrorRate is errors over count, 0 for an empty run.
func (s *Summary) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Count)
}

func micros(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
