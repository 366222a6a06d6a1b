package metrics

import (
	"sort"
	"sync"
)

// Registry holds metrics by name with get-or-create semantics, so callers
// never check for nil.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// DefaultRegistry backs the metrics declared in standard.go.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// getOrCreate looks name up under the read lock and falls back to a
// double-checked insert under the write lock.
func getOrCreate[M any](r *Registry, m map[string]*M, name string, mk func(string) *M) *M {
	r.mu.RLock()
	v, ok := m[name]
	r.mu.RUnlock()
	if ok {
		return v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok = m[name]; ok {
		return v
	}
	v = mk(name)
	m[name] = v
	return v
}

func (r *Registry) Counter(name string) *Counter {
	return getOrCreate(r, r.counters, name, NewCounter)
}

func (r *Registry) Gauge(name string) *Gauge {
	return getOrCreate(r, r.gauges, name, NewGauge)
}

func (r *Registry) Histogram(name string) *Histogram {
	return getOrCreate(r, r.histograms, name, NewHistogram)
}

// Visitor receives every registered metric in name order. Nil callbacks
// are skipped.
type Visitor struct {
	Counter   func(*Counter)
	Gauge     func(*Gauge)
	Histogram func(*Histogram)
}

// Each walks the registry. The set is copied first so callbacks may touch
// the registry.
func (r *Registry) Each(v Visitor) {
	r.mu.RLock()
	counters := sortedValues(r.counters)
	gauges := sortedValues(r.gauges)
	hists := sortedValues(r.histograms)
	r.mu.RUnlock()

	if v.Counter != nil {
		for _, c := range counters {
			v.Counter(c)
		}
	}
	if v.Gauge != nil {
		for _, g := range gauges {
			v.Gauge(g)
		}
	}
	if v.Histogram != nil {
		for _, h := range hists {
			v.Histogram(h)
		}
	}
}

// Snapshot returns current values keyed by name: int64 for counters and
// gauges, HistogramSnapshot for histograms.
func (r *Registry) Snapshot() map[string]any {
	snap := make(map[string]any)
	r.Each(Visitor{
		Counter:   func(c *Counter) { snap[c.Name()] = c.Value() },
		Gauge:     func(g *Gauge) { snap[g.Name()] = g.Value() },
		Histogram: func(h *Histogram) { snap[h.Name()] = h.Snapshot() },
	})
	return snap
}

func sortedValues[M any](m map[string]*M) []*M {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*M, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
