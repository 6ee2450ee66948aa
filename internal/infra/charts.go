// Package infra rolls out the cluster infrastructure charts an
// environment depends on: storage, networking, autoscaling, ingress and
// observability agents. Charts are ordered into dependency levels; a
// level only starts once every chart of the previous level deployed
// successfully.
package infra

import (
	"path/filepath"
	"time"

	"github.com/thelaunchbay/launchbay-engine/pkg/helm"
)

// defaultChartTimeout bounds individual infrastructure chart installs.
const defaultChartTimeout = 10 * time.Minute

// Flags toggles the optional infrastructure features.
type Flags struct {
	// MetricsHistory installs the metrics retention stack.
	MetricsHistory bool

	// LogHistory installs the log retention stack.
	LogHistory bool
}

// Config locates and parameterizes the infrastructure charts.
type Config struct {
	// TemplateDir is the root holding infra chart directories.
	TemplateDir string

	// Namespace receives every infrastructure release.
	Namespace string

	// ChartTimeout bounds each helm invocation; zero uses the default.
	ChartTimeout time.Duration

	// Overrides carries per-chart value overrides, keyed by chart name.
	Overrides map[string][]helm.Value
}

// entry statically assigns one chart to its dependency level. Level
// numbers reflect dependency depth, not position: storage classes and the
// CNI ship first, the autoscaler and IAM mapper need them, the ingress
// controller and cert-manager follow, and the agents at the end need an
// ingress-provisioned load balancer and DNS records to exist.
type entry struct {
	name    string
	level   int
	enabled func(Flags) bool
}

// catalogue is the full ordered chart set. Optional charts carry an
// enabled predicate; their flag only ever appends them to their
// designated level, it never reorders the rest.
var catalogue = []entry{
	{name: "storage-classes", level: 1},
	{name: "cluster-cni", level: 1},
	{name: "cluster-autoscaler", level: 3},
	{name: "iam-auth-mapper", level: 3},
	{name: "metrics-history", level: 3, enabled: func(f Flags) bool { return f.MetricsHistory }},
	{name: "log-history", level: 3, enabled: func(f Flags) bool { return f.LogHistory }},
	{name: "ingress-nginx", level: 5},
	{name: "cert-manager", level: 5},
	{name: "external-dns", level: 6},
	{name: "cluster-agent", level: 6},
}

// ChartsToDeploy orders the infrastructure charts into dependency levels
// for the given feature flags. Output is deterministic: same flags, same
// levels, same membership, same order.
func ChartsToDeploy(cfg Config, flags Flags) [][]helm.Chart {
	timeout := cfg.ChartTimeout
	if timeout <= 0 {
		timeout = defaultChartTimeout
	}

	byLevel := make(map[int][]helm.Chart)
	maxLevel := 0
	for _, e := range catalogue {
		if e.enabled != nil && !e.enabled(flags) {
			continue
		}
		byLevel[e.level] = append(byLevel[e.level], helm.Chart{
			Name:      e.name,
			Path:      filepath.Join(cfg.TemplateDir, "infra", e.name),
			Namespace: cfg.Namespace,
			Values:    cfg.Overrides[e.name],
			Timeout:   timeout,
		})
		if e.level > maxLevel {
			maxLevel = e.level
		}
	}

	levels := make([][]helm.Chart, 0, maxLevel)
	for level := 1; level <= maxLevel; level++ {
		if charts := byLevel[level]; len(charts) > 0 {
			levels = append(levels, charts)
		}
	}
	return levels
}
