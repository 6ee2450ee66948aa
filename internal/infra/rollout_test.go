package infra

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/helm"
)

// fakeReleaser records install order and fails the configured charts.
type fakeReleaser struct {
	mu        sync.Mutex
	installed []string
	failing   map[string]bool
}

func (f *fakeReleaser) UpgradeInstall(_ context.Context, chart helm.Chart) error {
	f.mu.Lock()
	f.installed = append(f.installed, chart.Name)
	f.mu.Unlock()
	if f.failing[chart.Name] {
		return errors.New("install failed")
	}
	return nil
}

func (f *fakeReleaser) History(context.Context, string, string) ([]helm.HistoryRow, error) {
	return []helm.HistoryRow{{Revision: 1, Status: "deployed"}}, nil
}

func (f *fakeReleaser) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.installed {
		if n == name {
			return true
		}
	}
	return false
}

func threeLevels() [][]helm.Chart {
	return [][]helm.Chart{
		{{Name: "storage-classes", Namespace: "infra"}, {Name: "cluster-cni", Namespace: "infra"}},
		{{Name: "ingress-nginx", Namespace: "infra"}},
		{{Name: "cluster-agent", Namespace: "infra"}},
	}
}

func TestRolloutDeploysAllLevelsInOrder(t *testing.T) {
	fake := &fakeReleaser{}
	ro := NewRollout(fake, "exec-1")

	if err := ro.Deploy(context.Background(), threeLevels()); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if len(fake.installed) != 4 {
		t.Fatalf("installed = %v, want 4 charts", fake.installed)
	}

	pos := map[string]int{}
	for i, name := range fake.installed {
		pos[name] = i
	}
	if pos["ingress-nginx"] < pos["storage-classes"] || pos["ingress-nginx"] < pos["cluster-cni"] {
		t.Errorf("level 2 chart deployed before level 1 finished: %v", fake.installed)
	}
	if pos["cluster-agent"] < pos["ingress-nginx"] {
		t.Errorf("level 3 chart deployed before level 2 finished: %v", fake.installed)
	}
}

func TestRolloutAbortsAfterLevelFailure(t *testing.T) {
	fake := &fakeReleaser{failing: map[string]bool{"ingress-nginx": true}}
	ro := NewRollout(fake, "exec-1")

	err := ro.Deploy(context.Background(), threeLevels())
	if err == nil {
		t.Fatal("Deploy() expected error")
	}
	if fake.has("cluster-agent") {
		t.Errorf("chart after the failing level was deployed: %v", fake.installed)
	}

	engErr, ok := engine.AsError(err)
	if !ok {
		t.Fatalf("error = %v, want engine error", err)
	}
	if engErr.Scope.Kind != engine.ScopeKindEngine {
		t.Errorf("scope = %v, want engine", engErr.Scope)
	}
	if !strings.Contains(engErr.Message, "level 2") {
		t.Errorf("message = %q, want failing level number", engErr.Message)
	}
}

func TestRolloutFailsOnUnsuccessfulHistory(t *testing.T) {
	fake := &noHistoryReleaser{}
	ro := NewRollout(fake, "exec-1")

	err := ro.Deploy(context.Background(), [][]helm.Chart{{{Name: "storage-classes", Namespace: "infra"}}})
	if err == nil {
		t.Fatal("Deploy() expected error for chart with no successful history")
	}
	if !strings.Contains(err.Error(), "no successful deployment history") {
		t.Errorf("error = %v", err)
	}
}

type noHistoryReleaser struct{}

func (*noHistoryReleaser) UpgradeInstall(context.Context, helm.Chart) error {
	return nil
}

func (*noHistoryReleaser) History(context.Context, string, string) ([]helm.HistoryRow, error) {
	return []helm.HistoryRow{{Revision: 1, Status: "failed"}}, nil
}
