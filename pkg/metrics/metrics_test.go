package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUpdates(t *testing.T) {
	m := New()

	m.ObserveHook("application", "create", 3*time.Second, nil)
	m.ObserveHook("application", "create", time.Second, errors.New("boom"))
	m.IncProgress("database")
	m.IncProgress("database")
	m.IncChartRollout("cluster-autoscaler", nil)
	m.SetLastSuccessfulDeployment(time.Unix(100, 0))

	if got := testutil.ToFloat64(m.hooksTotal.WithLabelValues("application", "create", "success")); got != 1 {
		t.Fatalf("expected 1 successful hook, got %v", got)
	}
	if got := testutil.ToFloat64(m.hooksTotal.WithLabelValues("application", "create", "error")); got != 1 {
		t.Fatalf("expected 1 failed hook, got %v", got)
	}
	if got := testutil.ToFloat64(m.progressTotal.WithLabelValues("database")); got != 2 {
		t.Fatalf("expected 2 progress notifications, got %v", got)
	}
	if got := testutil.ToFloat64(m.chartRolloutsTotal.WithLabelValues("cluster-autoscaler", "success")); got != 1 {
		t.Fatalf("expected 1 chart rollout, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastDeploymentGauge); got != 100 {
		t.Fatalf("expected last deployment 100, got %v", got)
	}
	if count := testutil.CollectAndCount(m.hookDurationSeconds); count == 0 {
		t.Fatalf("expected hook duration histogram to be collected")
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.ObserveHook("container", "delete", time.Second, nil)
	m.IncProgress("router")
	m.IncChartRollout("ingress-nginx", errors.New("boom"))
	m.SetLastSuccessfulDeployment(time.Now())
	if m.Handler() == nil {
		t.Fatal("nil metrics should still return a handler")
	}
}
