package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes a Registry to Prometheus. Descriptions are produced at
// scrape time since the registry grows lazily, which makes this an
// unchecked collector.
type Collector struct {
	registry  *Registry
	namespace string
}

// NewCollector wraps r. Metric names are prefixed with namespace.
func NewCollector(r *Registry, namespace string) *Collector {
	return &Collector{registry: r, namespace: namespace}
}

// Describe sends nothing.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.registry.Each(Visitor{
		Counter: func(m *Counter) {
			ch <- prometheus.MustNewConstMetric(c.desc(m.Name(), "counter"), prometheus.CounterValue, float64(m.Value()))
		},
		Gauge: func(m *Gauge) {
			ch <- prometheus.MustNewConstMetric(c.desc(m.Name(), "gauge"), prometheus.GaugeValue, float64(m.Value()))
		},
		Histogram: func(m *Histogram) {
			s := m.Snapshot()
			ch <- prometheus.MustNewConstSummary(c.desc(m.Name(), "summary"), uint64(s.Count), s.Sum, nil)
		},
	})
}

func (c *Collector) desc(name, kind string) *prometheus.Desc {
	return prometheus.NewDesc(PromName(c.namespace, name), kind+" "+name, nil, nil)
}

// PromName converts a dotted metric name into a Prometheus identifier.
func PromName(namespace, name string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_")
	name = r.Replace(name)
	if namespace == "" {
		return name
	}
	return namespace + "_" + name
}

// NewPrometheusRegistry returns a Prometheus registry carrying r plus the
// Go runtime and process collectors.
func NewPrometheusRegistry(r *Registry, namespace string) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(r, namespace),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves DefaultRegistry in the Prometheus text format.
func Handler(namespace string) http.Handler {
	return promhttp.HandlerFor(NewPrometheusRegistry(DefaultRegistry, namespace), promhttp.HandlerOpts{})
}
