package infra

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/thelaunchbay/launchbay-engine/pkg/helm"
)

func writeOverrides(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write overrides: %v", err)
	}
	return path
}

func TestLoadOverrides(t *testing.T) {
	path := writeOverrides(t, `
ingress-nginx:
  controller.service.type: LoadBalancer
  controller.replicaCount: "3"
cluster-autoscaler:
  replicas: "2"
`)

	got, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides() error = %v", err)
	}

	want := map[string][]helm.Value{
		"ingress-nginx": {
			{Key: "controller.replicaCount", Value: "3"},
			{Key: "controller.service.type", Value: "LoadBalancer"},
		},
		"cluster-autoscaler": {
			{Key: "replicas", Value: "2"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("overrides = %v, want %v", got, want)
	}
}

func TestLoadOverridesRejectsUnknownChart(t *testing.T) {
	path := writeOverrides(t, "ingress-ngnix:\n  replicas: \"3\"\n")

	_, err := LoadOverrides(path)
	if err == nil || !strings.Contains(err.Error(), "unknown chart") {
		t.Errorf("error = %v, want unknown chart rejection", err)
	}
}

func TestLoadOverridesMalformedYAML(t *testing.T) {
	path := writeOverrides(t, "ingress-nginx: [not a map\n")

	if _, err := LoadOverrides(path); err == nil {
		t.Error("LoadOverrides() accepted malformed YAML")
	}
}

func TestLoadOverridesMissingFile(t *testing.T) {
	if _, err := LoadOverrides(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadOverrides() accepted a missing file")
	}
}

func TestChartsToDeployAppliesOverrides(t *testing.T) {
	cfg := Config{
		TemplateDir: "/opt/templates",
		Namespace:   "launchbay-system",
		Overrides: map[string][]helm.Value{
			"cert-manager": {{Key: "installCRDs", Value: "true"}},
		},
	}

	for _, level := range ChartsToDeploy(cfg, Flags{}) {
		for _, chart := range level {
			if chart.Name == "cert-manager" {
				if len(chart.Values) != 1 || chart.Values[0].Key != "installCRDs" {
					t.Errorf("cert-manager values = %v, want the override", chart.Values)
				}
				return
			}
		}
	}
	t.Fatal("cert-manager chart not found")
}
