package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "botpack"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	assemblyDuration prom.Histogram
	assemblyOutcome  *prom.CounterVec
	injectedBytes    prom.Histogram
	archiveBytes     prom.Histogram
	moduleSelected   *prom.CounterVec
	catalogSize      prom.Gauge
	syncResults      *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	sizeBuckets := prom.ExponentialBuckets(1024, 4, 10) // 1KiB .. 256MiB

	pr := &PrometheusRecorder{
		assemblyDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "assembly_duration_seconds",
			Help:      "Duration of package assemblies",
			Buckets:   prom.DefBuckets,
		}),
		assemblyOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "assembly_outcomes_total",
			Help:      "Assembly outcomes by result or failure category",
		}, []string{"outcome"}),
		injectedBytes: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "injected_bytes",
			Help:      "Uncompressed module bytes injected per successful assembly",
			Buckets:   sizeBuckets,
		}),
		archiveBytes: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "archive_bytes",
			Help:      "Size of delivered archives",
			Buckets:   sizeBuckets,
		}),
		moduleSelected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "module_selections_total",
			Help:      "Times each module was included in a delivered package",
		}, []string{"module"}),
		catalogSize: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_modules",
			Help:      "Number of selectable modules at the last catalog read",
		}),
		syncResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "module_sync_results_total",
			Help:      "Module root sync results by success/failure",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.assemblyDuration, pr.assemblyOutcome, pr.injectedBytes, pr.archiveBytes,
		pr.moduleSelected, pr.catalogSize, pr.syncResults)
	return pr
}

func (p *PrometheusRecorder) ObserveAssemblyDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.assemblyDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncAssemblyOutcome(outcome OutcomeLabel) {
	if p == nil {
		return
	}
	p.assemblyOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveInjectedBytes(n int64) {
	if p == nil {
		return
	}
	p.injectedBytes.Observe(float64(n))
}

func (p *PrometheusRecorder) ObserveArchiveBytes(n int64) {
	if p == nil {
		return
	}
	p.archiveBytes.Observe(float64(n))
}

func (p *PrometheusRecorder) IncModuleSelected(module string) {
	if p == nil {
		return
	}
	p.moduleSelected.WithLabelValues(module).Inc()
}

func (p *PrometheusRecorder) SetCatalogSize(n int) {
	if p == nil {
		return
	}
	p.catalogSize.Set(float64(n))
}

func (p *PrometheusRecorder) IncSyncResult(success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.syncResults.WithLabelValues(res).Inc()
}
