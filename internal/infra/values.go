package infra

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/thelaunchbay/launchbay-engine/pkg/helm"
)

// LoadOverrides reads per-chart value overrides from a YAML file keyed by
// chart name:
//
//	cluster-autoscaler:
//	  replicas: "2"
//	ingress-nginx:
//	  controller.service.type: LoadBalancer
//
// Values are returned sorted by key so rollouts stay deterministic.
// Overrides for charts outside the catalogue are rejected, catching
// typos before anything reaches the cluster.
func LoadOverrides(path string) (map[string][]helm.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}

	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file %s: %w", path, err)
	}

	known := make(map[string]bool, len(catalogue))
	for _, e := range catalogue {
		known[e.name] = true
	}

	overrides := make(map[string][]helm.Value, len(raw))
	for chart, values := range raw {
		if !known[chart] {
			return nil, fmt.Errorf("overrides reference unknown chart %q", chart)
		}

		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			overrides[chart] = append(overrides[chart], helm.Value{Key: key, Value: values[key]})
		}
	}
	return overrides, nil
}
