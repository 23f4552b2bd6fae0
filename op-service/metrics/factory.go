package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Factory registers metrics with a registry and remembers what it registered, for documentation.
type Factory interface {
	NewCounter(opts prometheus.CounterOpts) prometheus.Counter
	NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec
	NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge
	NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec
	NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram
	NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec
	Document() []DocumentedMetric
}

type DocumentedMetric struct {
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Help   string   `json:"help"`
	Labels []string `json:"labels"`
}

type documentor struct {
	mu      sync.Mutex
	metrics []DocumentedMetric
	factory promauto.Factory
}

func With(registry *prometheus.Registry) Factory {
	return &documentor{
		factory: promauto.With(registry),
	}
}

func (d *documentor) add(typ, ns, sub, name, help string, labels []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics = append(d.metrics, DocumentedMetric{
		Type:   typ,
		Name:   fullName(ns, sub, name),
		Help:   help,
		Labels: labels,
	})
}

func (d *documentor) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	d.add("counter", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, nil)
	return d.factory.NewCounter(opts)
}

func (d *documentor) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	d.add("counter", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, labelNames)
	return d.factory.NewCounterVec(opts, labelNames)
}

func (d *documentor) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	d.add("gauge", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, nil)
	return d.factory.NewGauge(opts)
}

func (d *documentor) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	d.add("gauge", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, labelNames)
	return d.factory.NewGaugeVec(opts, labelNames)
}

func (d *documentor) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	d.add("histogram", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, nil)
	return d.factory.NewHistogram(opts)
}

func (d *documentor) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	d.add("histogram", opts.Namespace, opts.Subsystem, opts.Name, opts.Help, labelNames)
	return d.factory.NewHistogramVec(opts, labelNames)
}

func (d *documentor) Document() []DocumentedMetric {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DocumentedMetric(nil), d.metrics...)
}

func fullName(ns, subsystem, name string) string {
	out := ns
	if subsystem != "" {
		out += "_" + subsystem
	}
	return out + "_" + name
}
