// Package metrics exposes Prometheus collectors for deployment activity.
// The cluster agent serves them over /metrics; the CLI registers them so
// long-lived dispatch workers can be scraped too.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the engine's Prometheus collectors. The zero value is not
// usable; call New. All methods are safe on a nil receiver so callers can
// skip wiring metrics entirely.
type Metrics struct {
	registry            *prometheus.Registry
	hookDurationSeconds *prometheus.HistogramVec
	hooksTotal          *prometheus.CounterVec
	progressTotal       *prometheus.CounterVec
	chartRolloutsTotal  *prometheus.CounterVec
	lastDeploymentGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		hookDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "launchbay_hook_duration_seconds",
			Help:    "Duration of lifecycle hooks in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"scope_kind", "action"}),
		hooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchbay_hooks_total",
			Help: "Total lifecycle hooks executed by scope kind, action and result.",
		}, []string{"scope_kind", "action", "result"}),
		progressTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchbay_progress_notifications_total",
			Help: "Total progress notifications emitted by scope kind.",
		}, []string{"scope_kind"}),
		chartRolloutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "launchbay_chart_rollouts_total",
			Help: "Total cluster chart rollouts by chart name and result.",
		}, []string{"chart", "result"}),
		lastDeploymentGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "launchbay_last_successful_deployment_timestamp",
			Help: "Unix timestamp of the last successful environment deployment.",
		}),
	}

	registry.MustRegister(
		m.hookDurationSeconds,
		m.hooksTotal,
		m.progressTotal,
		m.chartRolloutsTotal,
		m.lastDeploymentGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveHook records one completed lifecycle hook.
func (m *Metrics) ObserveHook(scopeKind, action string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.hookDurationSeconds.WithLabelValues(scopeKind, action).Observe(duration.Seconds())
	m.hooksTotal.WithLabelValues(scopeKind, action, resultLabel(err)).Inc()
}

// IncProgress counts one progress notification for the given scope kind.
func (m *Metrics) IncProgress(scopeKind string) {
	if m == nil {
		return
	}
	m.progressTotal.WithLabelValues(scopeKind).Inc()
}

// IncChartRollout counts one cluster chart rollout.
func (m *Metrics) IncChartRollout(chart string, err error) {
	if m == nil {
		return
	}
	m.chartRolloutsTotal.WithLabelValues(chart, resultLabel(err)).Inc()
}

// SetLastSuccessfulDeployment records when an environment last converged.
func (m *Metrics) SetLastSuccessfulDeployment(t time.Time) {
	if m == nil {
		return
	}
	m.lastDeploymentGauge.Set(float64(t.Unix()))
}
