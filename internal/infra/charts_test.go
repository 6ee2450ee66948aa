package infra

import (
	"reflect"
	"testing"
)

func names(cfg Config, flags Flags) [][]string {
	var out [][]string
	for _, level := range ChartsToDeploy(cfg, flags) {
		var lvl []string
		for _, chart := range level {
			lvl = append(lvl, chart.Name)
		}
		out = append(out, lvl)
	}
	return out
}

func TestChartsToDeployDeterministic(t *testing.T) {
	cfg := Config{TemplateDir: "/opt/templates", Namespace: "launchbay-system"}
	flags := Flags{MetricsHistory: true}

	first := names(cfg, flags)
	for i := 0; i < 10; i++ {
		if got := names(cfg, flags); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced %v, want stable %v", i, got, first)
		}
	}
}

func TestChartsToDeployBaseLevels(t *testing.T) {
	cfg := Config{TemplateDir: "/opt/templates", Namespace: "launchbay-system"}

	got := names(cfg, Flags{})
	want := [][]string{
		{"storage-classes", "cluster-cni"},
		{"cluster-autoscaler", "iam-auth-mapper"},
		{"ingress-nginx", "cert-manager"},
		{"external-dns", "cluster-agent"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("levels = %v, want %v", got, want)
	}
}

func TestFeatureFlagsOnlyAppend(t *testing.T) {
	cfg := Config{TemplateDir: "/opt/templates", Namespace: "launchbay-system"}

	base := names(cfg, Flags{})
	flagged := names(cfg, Flags{MetricsHistory: true, LogHistory: true})

	if len(flagged) != len(base) {
		t.Fatalf("level count changed: %d -> %d", len(base), len(flagged))
	}

	// Every base chart keeps its level and relative position.
	for i, level := range base {
		j := 0
		for _, name := range flagged[i] {
			if j < len(level) && name == level[j] {
				j++
			}
		}
		if j != len(level) {
			t.Errorf("level %d reordered: base %v, flagged %v", i+1, level, flagged[i])
		}
	}

	found := map[string]bool{}
	for _, name := range flagged[1] {
		found[name] = true
	}
	if !found["metrics-history"] || !found["log-history"] {
		t.Errorf("optional charts missing from their designated level: %v", flagged[1])
	}
}

func TestChartPathsAndNamespace(t *testing.T) {
	cfg := Config{TemplateDir: "/opt/templates", Namespace: "launchbay-system"}

	for _, level := range ChartsToDeploy(cfg, Flags{}) {
		for _, chart := range level {
			if chart.Namespace != "launchbay-system" {
				t.Errorf("chart %s namespace = %q", chart.Name, chart.Namespace)
			}
			want := "/opt/templates/infra/" + chart.Name
			if chart.Path != want {
				t.Errorf("chart %s path = %q, want %q", chart.Name, chart.Path, want)
			}
			if chart.Timeout != defaultChartTimeout {
				t.Errorf("chart %s timeout = %v, want default", chart.Name, chart.Timeout)
			}
		}
	}
}
