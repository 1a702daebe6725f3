package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var _ MetricFactory = (*PrometheusFactory)(nil)

// PrometheusFactory creates metrics registered with a Prometheus
// registerer. Dotted names become underscored; counters get a _total
// suffix. Asking twice for the same name returns the same collector.
type PrometheusFactory struct {
	reg     prometheus.Registerer
	buckets []float64

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory creates a factory on reg. A nil reg uses the
// default registerer.
func NewPrometheusFactory(reg prometheus.Registerer) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{
		reg:        reg,
		buckets:    prometheus.ExponentialBuckets(1, 4, 10),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// WithBuckets overrides the histogram buckets for collectors created
// afterwards.
func (f *PrometheusFactory) WithBuckets(buckets []float64) *PrometheusFactory {
	f.buckets = buckets
	return f
}

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricName(name) + "_total",
		Help: "Count of " + name + ".",
	})
	f.reg.MustRegister(c)
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricName(name),
		Help:    "Distribution of " + name + ".",
		Buckets: f.buckets,
	})
	f.reg.MustRegister(h)
	f.histograms[name] = h
	return h
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
