package prometheus

import (
	"net/http"

	"github.com/huigrowth/careauth"
	"github.com/huigrowth/careauth/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter is a [prometheus.Collector] over a store's snapshot.
// Descriptors are index-aligned with the internaldefs definitions.
type PrometheusExporter struct {
	source     internaldefs.Source
	counters   []*prometheus.Desc
	histograms []*prometheus.Desc
	dropped    *prometheus.Desc
	registry   *prometheus.Registry
}

var _ prometheus.Collector = (*PrometheusExporter)(nil)

// NewPrometheusExporter creates an exporter reading from store.
func NewPrometheusExporter(store *careauth.Store) *PrometheusExporter {
	return NewPrometheusExporterFromSource(store)
}

// NewPrometheusExporterFromSource creates an exporter over any snapshot
// source.
func NewPrometheusExporterFromSource(source internaldefs.Source) *PrometheusExporter {
	p := &PrometheusExporter{
		source: source,
		dropped: prometheus.NewDesc(
			internaldefs.NotificationsDroppedName,
			"Notifications dropped due to dispatcher backpressure.",
			nil, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		p.counters = append(p.counters, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.HistogramDefs {
		p.histograms = append(p.histograms, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}

	p.registry = prometheus.NewRegistry()
	p.registry.MustRegister(p)
	return p
}

func (p *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range p.counters {
		ch <- d
	}
	for _, d := range p.histograms {
		ch <- d
	}
	ch <- p.dropped
}

// Collect emits nothing when the source has metrics disabled.
func (p *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	if p == nil || p.source == nil {
		return
	}

	r := internaldefs.Read(p.source)
	if r.Empty() {
		return
	}

	for i, d := range p.counters {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(r.Counters[i]))
	}
	for i, d := range p.histograms {
		h := r.Histograms[i]
		if !h.Present {
			continue
		}
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for j, le := range internaldefs.HistogramUpperBounds {
			buckets[le] = h.Cumulative[j]
		}
		// The store keeps no sum.
		ch <- prometheus.MustNewConstHistogram(d, h.Count(), 0, buckets)
	}
	ch <- prometheus.MustNewConstMetric(p.dropped, prometheus.CounterValue, float64(r.Dropped))
}

// Registry returns the private registry Handler serves.
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the exporter in the Prometheus exposition format.
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
