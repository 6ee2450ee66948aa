package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"

	_ "github.com/thelaunchbay/launchbay-engine/builtin/aws"
	"github.com/thelaunchbay/launchbay-engine/internal/orchestrator"
	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/events"
	"github.com/thelaunchbay/launchbay-engine/pkg/service"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

const testDefinition = `
project = "shop"

cluster {
  id            = "c-7281"
  provider      = "aws"
  kubeconfig    = "/etc/launchbay/kubeconfig"
  template_dir  = "/opt/launchbay/templates"
  workspace_dir = "/var/lib/launchbay"
}

environment "prod" {
  kind = "production"

  application "storefront" {
    id    = "za8fd219"
    image = "shop/storefront:1.4.2"
  }

  database "orders" {
    id     = "db9153a7"
    engine = "postgresql"
  }
}
`

type publishedEvent struct {
	suffix string
	event  events.DeploymentEvent
}

type fakePublisher struct {
	published []publishedEvent
}

func (f *fakePublisher) PublishDeploymentEvent(suffix string, event events.DeploymentEvent) error {
	f.published = append(f.published, publishedEvent{suffix: suffix, event: event})
	return nil
}

func (f *fakePublisher) PublishLogLine(events.LogLine) error { return nil }
func (f *fakePublisher) PublishLogEnd(events.LogEnd) error   { return nil }

func (f *fakePublisher) suffixes() []string {
	out := make([]string, len(f.published))
	for i, p := range f.published {
		out[i] = p.suffix
	}
	return out
}

type runRecord struct {
	tgt *target.Target
	env *orchestrator.Environment
}

func newTask(taskType TaskType) Task {
	return Task{
		Type:          taskType,
		ExecutionID:   "exec-1",
		EnvironmentID: "prod",
		Definition:    base64.StdEncoding.EncodeToString([]byte(testDefinition)),
	}
}

func TestHandleDeployTask(t *testing.T) {
	var runs []runRecord
	pub := &fakePublisher{}
	handler := NewHandler(hclog.NewNullLogger(),
		WithPublisher(pub),
		WithRunFunc(func(_ context.Context, tgt *target.Target, env *orchestrator.Environment) error {
			runs = append(runs, runRecord{tgt: tgt, env: env})
			return nil
		}))

	if err := handler.Handle(context.Background(), newTask(TaskDeployEnvironment)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs) != 1 {
		t.Fatalf("expected 1 orchestration pass, got %d", len(runs))
	}
	run := runs[0]
	if run.tgt.ExecutionID != "exec-1" || run.tgt.Namespace != "shop-prod" {
		t.Errorf("unexpected target: %+v", run.tgt)
	}
	if run.tgt.Kind != target.ManagedServices {
		t.Errorf("expected managed-services target, got %q", run.tgt.Kind)
	}
	if len(run.env.Stateful) != 1 || len(run.env.Stateless) != 1 {
		t.Errorf("unexpected environment shape: %d stateful, %d stateless",
			len(run.env.Stateful), len(run.env.Stateless))
	}
	// Deploy keeps the definition's actions (create by default).
	if got := run.env.Stateless[0].Action(); got != service.ActionCreate {
		t.Errorf("expected create action, got %q", got)
	}

	want := []string{events.SubjectDeploymentStarted, events.SubjectDeploymentSucceeded}
	got := pub.suffixes()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("unexpected event sequence %v, want %v", got, want)
	}
}

const routedDefinition = `
project = "shop"

cluster {
  id            = "c-7281"
  provider      = "aws"
  kubeconfig    = "/etc/launchbay/kubeconfig"
  template_dir  = "/opt/launchbay/templates"
  workspace_dir = "/var/lib/launchbay"
}

environment "prod" {
  kind = "production"

  application "storefront" {
    id    = "za8fd219"
    image = "shop/storefront:1.4.2"
  }

  router "edge" {
    id = "rt4466aa"

    route "/" {
      service = "storefront"
      port    = 8080
    }
  }
}
`

type fakeDomainResolver struct {
	domain string
	asked  []string
}

func (f *fakeDomainResolver) AskDomain(_ context.Context, serviceID string) (string, error) {
	f.asked = append(f.asked, serviceID)
	return f.domain, nil
}

func routedTask() Task {
	return Task{
		Type:          TaskDeployEnvironment,
		ExecutionID:   "exec-1",
		EnvironmentID: "prod",
		Definition:    base64.StdEncoding.EncodeToString([]byte(routedDefinition)),
	}
}

func TestHandleAllocatesOmittedRouterDomain(t *testing.T) {
	var runs []runRecord
	resolver := &fakeDomainResolver{domain: "edge.lb.example.com"}
	handler := NewHandler(hclog.NewNullLogger(),
		WithDomainResolver(resolver),
		WithRunFunc(func(_ context.Context, tgt *target.Target, env *orchestrator.Environment) error {
			runs = append(runs, runRecord{tgt: tgt, env: env})
			return nil
		}))

	if err := handler.Handle(context.Background(), routedTask()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resolver.asked) != 1 || resolver.asked[0] != "rt4466aa" {
		t.Errorf("asked = %v, want the router id once", resolver.asked)
	}
	if len(runs) != 1 || len(runs[0].env.Stateless) != 2 {
		t.Fatalf("expected an orchestration pass over application and router")
	}
}

func TestHandleOmittedRouterDomainWithoutResolver(t *testing.T) {
	handler := NewHandler(hclog.NewNullLogger(),
		WithRunFunc(func(context.Context, *target.Target, *orchestrator.Environment) error {
			t.Fatal("orchestrator should not run")
			return nil
		}))

	err := handler.Handle(context.Background(), routedTask())
	if err == nil {
		t.Fatal("expected an error for an unresolvable router domain")
	}
	if !strings.Contains(err.Error(), "no control plane is configured") {
		t.Errorf("error = %v, want the missing-resolver message", err)
	}
}

func TestHandlePauseTaskOverridesActions(t *testing.T) {
	var runs []runRecord
	handler := NewHandler(hclog.NewNullLogger(),
		WithRunFunc(func(_ context.Context, tgt *target.Target, env *orchestrator.Environment) error {
			runs = append(runs, runRecord{tgt: tgt, env: env})
			return nil
		}))

	if err := handler.Handle(context.Background(), newTask(TaskPauseEnvironment)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, svc := range runs[0].env.Services() {
		if svc.Action() != service.ActionPause {
			t.Errorf("service %s action = %q, want pause", svc.ID(), svc.Action())
		}
	}
}

func TestHandleDeleteTaskPublishesDestroyed(t *testing.T) {
	pub := &fakePublisher{}
	handler := NewHandler(hclog.NewNullLogger(),
		WithPublisher(pub),
		WithRunFunc(func(context.Context, *target.Target, *orchestrator.Environment) error {
			return nil
		}))

	if err := handler.Handle(context.Background(), newTask(TaskDeleteEnvironment)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := pub.suffixes()
	want := []string{
		events.SubjectDeploymentStarted,
		events.SubjectDeploymentSucceeded,
		events.SubjectEnvironmentDestroyed,
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected event sequence %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHandleFailurePublishesFailedWithScope(t *testing.T) {
	pub := &fakePublisher{}
	runErr := engine.NewUser(engine.ApplicationScope("storefront"), "exec-1", "pods never became ready", nil)
	handler := NewHandler(hclog.NewNullLogger(),
		WithPublisher(pub),
		WithRunFunc(func(context.Context, *target.Target, *orchestrator.Environment) error {
			return runErr
		}))

	err := handler.Handle(context.Background(), newTask(TaskDeployEnvironment))
	if !errors.Is(err, runErr) {
		t.Fatalf("expected the run error, got %v", err)
	}

	got := pub.suffixes()
	if len(got) != 2 || got[1] != events.SubjectDeploymentFailed {
		t.Fatalf("unexpected event sequence %v", got)
	}
	failed := pub.published[1].event
	if failed.Status != events.StatusFailed || failed.Scope == "" {
		t.Errorf("unexpected failed event: %+v", failed)
	}
}

func TestHandleUnknownEnvironment(t *testing.T) {
	handler := NewHandler(hclog.NewNullLogger(),
		WithRunFunc(func(context.Context, *target.Target, *orchestrator.Environment) error {
			t.Fatal("orchestrator should not run")
			return nil
		}))

	task := newTask(TaskDeployEnvironment)
	task.EnvironmentID = "staging"

	if err := handler.Handle(context.Background(), task); err == nil {
		t.Fatal("expected an error for an unknown environment")
	}
}

func TestProcessOutcomes(t *testing.T) {
	newSubscriber := func(runErr error) *Subscriber {
		handler := NewHandler(hclog.NewNullLogger(),
			WithRunFunc(func(context.Context, *target.Target, *orchestrator.Environment) error {
				return runErr
			}))
		return NewSubscriber(nil, "lb.tasks", "launchbay-engine", handler, hclog.NewNullLogger())
	}

	taskPayload := func(t *testing.T) []byte {
		data, err := json.Marshal(newTask(TaskDeployEnvironment))
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	t.Run("success acks", func(t *testing.T) {
		if got := newSubscriber(nil).Process(context.Background(), taskPayload(t)); got != OutcomeAck {
			t.Errorf("expected ack, got %v", got)
		}
	})

	t.Run("malformed payload acks", func(t *testing.T) {
		if got := newSubscriber(nil).Process(context.Background(), []byte(`{`)); got != OutcomeAck {
			t.Errorf("expected ack, got %v", got)
		}
	})

	t.Run("user cause acks", func(t *testing.T) {
		runErr := engine.NewUser(engine.ApplicationScope("storefront"), "exec-1", "bad port", nil)
		if got := newSubscriber(runErr).Process(context.Background(), taskPayload(t)); got != OutcomeAck {
			t.Errorf("expected ack, got %v", got)
		}
	})

	t.Run("internal failure naks", func(t *testing.T) {
		runErr := engine.NewInternal(engine.KubernetesScope(), "exec-1", "apiserver unreachable", nil)
		if got := newSubscriber(runErr).Process(context.Background(), taskPayload(t)); got != OutcomeNak {
			t.Errorf("expected nak, got %v", got)
		}
	})
}
