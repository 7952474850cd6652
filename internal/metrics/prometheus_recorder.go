package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "assetmanifest"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	passDuration   prom.Histogram
	emits          *prom.CounterVec
	entries        *prom.GaugeVec
	filteredAssets prom.Counter
	hookFailures   *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		passDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration from pass start to manifest emission",
			Buckets:   prom.DefBuckets,
		}),
		emits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "manifest_emits_total",
			Help:      "Manifest passes by outcome",
		}, []string{"outcome"}),
		entries: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "manifest_entries",
			Help:      "Number of entries in the last emitted manifest",
		}, []string{"file"}),
		filteredAssets: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "filtered_assets_total",
			Help:      "Files excluded from manifests by filter callbacks",
		}),
		hookFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "hook_failures_total",
			Help:      "Manifest hook taps that returned an error",
		}, []string{"hook"}),
	}
	reg.MustRegister(pr.passDuration, pr.emits, pr.entries, pr.filteredAssets, pr.hookFailures)
	return pr
}

func (p *PrometheusRecorder) ObservePassDuration(d time.Duration) {
	if p == nil || p.passDuration == nil {
		return
	}
	p.passDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncManifestEmit(outcome EmitOutcome) {
	if p == nil || p.emits == nil {
		return
	}
	p.emits.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetManifestEntries(file string, n int) {
	if p == nil || p.entries == nil {
		return
	}
	p.entries.WithLabelValues(file).Set(float64(n))
}

func (p *PrometheusRecorder) IncFilteredAssets(n int) {
	if p == nil || p.filteredAssets == nil || n <= 0 {
		return
	}
	p.filteredAssets.Add(float64(n))
}

func (p *PrometheusRecorder) IncHookFailure(hook string) {
	if p == nil || p.hookFailures == nil {
		return
	}
	p.hookFailures.WithLabelValues(hook).Inc()
}
