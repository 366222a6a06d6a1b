// Package metrics holds the counters, gauges and histograms that ethlayer
// records while building handler bundles and serving direct calls. Counter
// and Gauge are lock-free; Histogram takes a mutex per observation.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Counter only goes up.
type Counter struct {
	name  string
	value atomic.Int64
}

func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n. Non-positive n is ignored.
func (c *Counter) Add(n int64) {
	if n > 0 {
		c.value.Add(n)
	}
}

func (c *Counter) Value() int64 { return c.value.Load() }
func (c *Counter) Name() string { return c.name }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	value atomic.Int64
}

func NewGauge(name string) *Gauge {
	return &Gauge{name: name}
}

func (g *Gauge) Set(v int64)     { g.value.Store(v) }
func (g *Gauge) Inc()            { g.value.Add(1) }
func (g *Gauge) Dec()            { g.value.Add(-1) }
func (g *Gauge) Value() int64    { return g.value.Load() }
func (g *Gauge) Name() string    { return g.name }
func (g *Gauge) Add(delta int64) { g.value.Add(delta) }

// Histogram tracks count, sum and extremes of observed values.
type Histogram struct {
	name  string
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

func NewHistogram(name string) *Histogram {
	return &Histogram{name: name, min: math.MaxFloat64, max: -math.MaxFloat64}
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.count++
	h.sum += v
	h.min = math.Min(h.min, v)
	h.max = math.Max(h.max, v)
	h.mu.Unlock()
}

// HistogramSnapshot is a consistent view of a Histogram.
type HistogramSnapshot struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// Mean is zero for an empty snapshot.
func (s HistogramSnapshot) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Snapshot reads all fields under one lock. Min and Max are zero when
// nothing has been observed.
func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return HistogramSnapshot{}
	}
	return HistogramSnapshot{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
}

func (h *Histogram) Count() int64 { return h.Snapshot().Count }
func (h *Histogram) Sum() float64 { return h.Snapshot().Sum }
func (h *Histogram) Name() string { return h.name }

// Timer records elapsed milliseconds into a Histogram on Stop.
type Timer struct {
	start time.Time
	hist  *Histogram
}

func NewTimer(h *Histogram) *Timer {
	return &Timer{start: time.Now(), hist: h}
}

func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	if t.hist != nil {
		t.hist.Observe(float64(d.Microseconds()) / 1000)
	}
	return d
}
