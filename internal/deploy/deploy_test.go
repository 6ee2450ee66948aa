package deploy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/helm"
	"github.com/thelaunchbay/launchbay-engine/pkg/kube"
	"github.com/thelaunchbay/launchbay-engine/pkg/retry"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
	"github.com/thelaunchbay/launchbay-engine/pkg/terraform"
)

const (
	readyPods = `{"items":[{"metadata":{"name":"pod-1"},"status":{"phase":"Running","conditions":[{"type":"Ready","status":"True"}]}}]}`

	notReadyPods = `{"items":[{"metadata":{"name":"pod-1"},"status":{"phase":"Pending","conditions":[{"type":"Ready","status":"False"}]}}]}`

	deployedHistory = `[{"revision":1,"status":"deployed"}]`

	failedHistory = `[{"revision":1,"status":"failed"}]`
)

type toolCall struct {
	tool string
	args []string
}

// fakeRunner dispatches every external invocation through handle while
// recording the call order.
type fakeRunner struct {
	calls  []toolCall
	handle func(tool string, args []string) ([]byte, error)
}

func (f *fakeRunner) run(_ context.Context, _ []string, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, toolCall{tool: name, args: args})
	if f.handle == nil {
		return nil, nil
	}
	return f.handle(name, args)
}

// invocations lists "tool subcommand" for every recorded call, with
// terraform's -chdir flag skipped.
func (f *fakeRunner) invocations() []string {
	var out []string
	for _, c := range f.calls {
		args := c.args
		if c.tool == "terraform" && len(args) > 0 && strings.HasPrefix(args[0], "-chdir=") {
			args = args[1:]
		}
		sub := ""
		if len(args) > 0 {
			sub = args[0]
		}
		out = append(out, c.tool+" "+sub)
	}
	return out
}

func (f *fakeRunner) count(prefix string) int {
	n := 0
	for _, inv := range f.invocations() {
		if strings.HasPrefix(inv, prefix) {
			n++
		}
	}
	return n
}

// defaultHandle answers every tool with success: helm history reports a
// deployed revision and kubectl reports ready pods.
func defaultHandle(tool string, args []string) ([]byte, error) {
	if tool == "helm" && args[0] == "history" {
		return []byte(deployedHistory), nil
	}
	if tool == "kubectl" && args[0] == "get" && args[1] == "pods" {
		return []byte(readyPods), nil
	}
	return nil, nil
}

func newTestDeployer(t *testing.T, tgt *target.Target, fake *fakeRunner) *Deployer {
	t.Helper()
	if fake.handle == nil {
		fake.handle = defaultHandle
	}
	return New(tgt,
		WithHelm(helm.NewExecutor(tgt.Cluster.KubeconfigPath, nil, helm.WithRunFunc(fake.run))),
		WithKube(kube.NewClient(tgt.Cluster.KubeconfigPath, nil, kube.WithRunFunc(fake.run))),
		WithTerraformFactory(func(workdir string, env []string, opts ...terraform.Option) *terraform.Executor {
			opts = append(opts, terraform.WithRunFunc(fake.run),
				terraform.WithInitSchedule(retry.Fibonacci(time.Millisecond, 1)))
			return terraform.NewExecutor(workdir, env, opts...)
		}),
		WithReadinessSchedule(retry.Fibonacci(time.Millisecond, 2)),
		WithRenderFunc(func(src, dst string, data interface{}) error { return nil }),
	)
}

func selfHostedTarget() *target.Target {
	return &target.Target{
		Kind: target.SelfHosted,
		Cluster: target.Cluster{
			KubeconfigPath: "/tmp/kubeconfig",
			TemplateDir:    "/opt/templates",
			WorkspaceDir:   "/tmp/workspace",
		},
		EnvironmentID: "env1",
		ExecutionID:   "exec-1",
	}
}

func managedTarget() *target.Target {
	tgt := selfHostedTarget()
	tgt.Kind = target.ManagedServices
	return tgt
}

func appRelease() Release {
	return Release{
		Scope:          engine.ApplicationScope("storefront"),
		Name:           "application-storefront-za8fd219",
		TemplateDir:    "/opt/templates/charts/application",
		Workdir:        "/tmp/workspace/za8fd219/chart",
		Namespace:      "proj1-env1",
		Selector:       "applicationId=za8fd219",
		FailureMessage: "application storefront failed to start - check your port configuration",
	}
}

func TestDeployStatelessSequence(t *testing.T) {
	fake := &fakeRunner{}
	d := newTestDeployer(t, selfHostedTarget(), fake)

	if err := d.DeployStateless(context.Background(), appRelease()); err != nil {
		t.Fatalf("DeployStateless() error = %v", err)
	}

	want := []string{"kubectl create", "helm upgrade", "helm history", "kubectl get"}
	got := fake.invocations()
	if len(got) != len(want) {
		t.Fatalf("invocations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("invocation %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDeployStatelessNamespaceTTL(t *testing.T) {
	fake := &fakeRunner{}
	tgt := selfHostedTarget()
	tgt.ResourceExpiration = time.Hour
	d := newTestDeployer(t, tgt, fake)

	if err := d.DeployStateless(context.Background(), appRelease()); err != nil {
		t.Fatalf("DeployStateless() error = %v", err)
	}

	labeled := false
	for _, c := range fake.calls {
		if c.tool == "kubectl" && c.args[0] == "label" {
			labeled = true
			found := false
			for _, arg := range c.args {
				if arg == "ttl=3600" {
					found = true
				}
			}
			if !found {
				t.Errorf("label args = %v, want ttl=3600", c.args)
			}
		}
	}
	if !labeled {
		t.Error("expected kubectl label namespace invocation")
	}
}

func TestDeployStatelessNoSuccessfulRevision(t *testing.T) {
	fake := &fakeRunner{handle: func(tool string, args []string) ([]byte, error) {
		if tool == "helm" && args[0] == "history" {
			return []byte(failedHistory), nil
		}
		return nil, nil
	}}
	d := newTestDeployer(t, selfHostedTarget(), fake)

	err := d.DeployStateless(context.Background(), appRelease())
	if err == nil {
		t.Fatal("DeployStateless() expected error")
	}
	engErr, ok := engine.AsError(err)
	if !ok {
		t.Fatalf("error = %v, want engine error", err)
	}
	if engErr.Cause != engine.CauseUser {
		t.Errorf("cause = %v, want user", engErr.Cause)
	}
	if !strings.Contains(engErr.Message, "check your port configuration") {
		t.Errorf("message = %q, want the caller-supplied failure message", engErr.Message)
	}
	if n := fake.count("kubectl get"); n != 0 {
		t.Errorf("pod readiness polled %d times after failed history, want 0", n)
	}
}

func TestDeployStatelessPodsNeverReady(t *testing.T) {
	fake := &fakeRunner{handle: func(tool string, args []string) ([]byte, error) {
		if tool == "helm" && args[0] == "history" {
			return []byte(deployedHistory), nil
		}
		if tool == "kubectl" && args[0] == "get" {
			return []byte(notReadyPods), nil
		}
		return nil, nil
	}}
	d := newTestDeployer(t, selfHostedTarget(), fake)

	err := d.DeployStateless(context.Background(), appRelease())
	if err == nil {
		t.Fatal("DeployStateless() expected error")
	}
	if !strings.Contains(err.Error(), "still not ready after several retries") {
		t.Errorf("error = %v, want readiness exhaustion message", err)
	}
	if n := fake.count("kubectl get"); n != 2 {
		t.Errorf("readiness polls = %d, want exactly the schedule's 2 attempts", n)
	}
}

func TestDeleteStatelessSkipsUninstallWithoutSuccessfulRevision(t *testing.T) {
	fake := &fakeRunner{handle: func(tool string, args []string) ([]byte, error) {
		if tool == "helm" && args[0] == "history" {
			return []byte("Error: release: not found"), errors.New("exit status 1")
		}
		return nil, nil
	}}
	d := newTestDeployer(t, selfHostedTarget(), fake)

	if err := d.DeleteStateless(context.Background(), appRelease(), false); err != nil {
		t.Fatalf("DeleteStateless() error = %v", err)
	}
	if n := fake.count("helm uninstall"); n != 0 {
		t.Errorf("uninstall invoked %d times for a release with no history, want 0", n)
	}
}

func TestDeleteStatelessUninstalls(t *testing.T) {
	fake := &fakeRunner{}
	d := newTestDeployer(t, selfHostedTarget(), fake)

	if err := d.DeleteStateless(context.Background(), appRelease(), false); err != nil {
		t.Fatalf("DeleteStateless() error = %v", err)
	}
	if n := fake.count("helm uninstall"); n != 1 {
		t.Errorf("uninstall invocations = %d, want 1", n)
	}
}

func TestDeleteStatelessCollectsDiagnosticsOnFailure(t *testing.T) {
	fake := &fakeRunner{}
	d := newTestDeployer(t, selfHostedTarget(), fake)

	if err := d.DeleteStateless(context.Background(), appRelease(), true); err != nil {
		t.Fatalf("DeleteStateless() error = %v", err)
	}

	for _, inv := range []string{"kubectl describe", "kubectl logs", "kubectl get"} {
		if fake.count(inv) == 0 {
			t.Errorf("expected %s during diagnostics collection", inv)
		}
	}
	got := fake.invocations()
	if got[len(got)-1] != "helm uninstall" {
		t.Errorf("last invocation = %q, want helm uninstall after diagnostics", got[len(got)-1])
	}
}

func databaseSpec() StatefulSpec {
	return StatefulSpec{
		Scope:           engine.DatabaseScope("orders-db"),
		ServiceID:       "db9153a7",
		CommonModuleDir: "/opt/templates/terraform/common",
		ModuleDir:       "/opt/templates/terraform/postgresql",
		ExternalName: Release{
			Scope:          engine.DatabaseScope("orders-db"),
			Name:           "database-orders-db-db9153a7-extname",
			TemplateDir:    "/opt/templates/charts/external-name",
			Workdir:        "/tmp/workspace/db9153a7/external-name",
			Namespace:      "proj1-env1",
			FailureMessage: "database orders-db endpoint service failed to deploy",
		},
		SelfHosted: Release{
			Scope:          engine.DatabaseScope("orders-db"),
			Name:           "database-orders-db-db9153a7",
			TemplateDir:    "/opt/templates/charts/postgresql",
			Workdir:        "/tmp/workspace/db9153a7/chart",
			Namespace:      "proj1-env1",
			Selector:       "databaseId=db9153a7",
			FailureMessage: "database orders-db failed to start",
		},
	}
}

func TestDeployStatefulManaged(t *testing.T) {
	fake := &fakeRunner{}
	d := newTestDeployer(t, managedTarget(), fake)

	if err := d.DeployStateful(context.Background(), databaseSpec()); err != nil {
		t.Fatalf("DeployStateful() error = %v", err)
	}

	want := []string{
		"terraform init", "terraform validate", "terraform plan", "terraform apply",
		"kubectl create", "helm upgrade", "helm history",
	}
	got := fake.invocations()
	if len(got) != len(want) {
		t.Fatalf("invocations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("invocation %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDeployStatefulManagedDryRun(t *testing.T) {
	fake := &fakeRunner{}
	tgt := managedTarget()
	tgt.DryRun = true
	d := newTestDeployer(t, tgt, fake)

	if err := d.DeployStateful(context.Background(), databaseSpec()); err != nil {
		t.Fatalf("DeployStateful() error = %v", err)
	}

	if n := fake.count("terraform apply"); n != 0 {
		t.Errorf("terraform apply invoked %d times under dry run, want 0", n)
	}
	if n := fake.count("terraform plan"); n != 1 {
		t.Errorf("terraform plan invocations = %d, want 1", n)
	}
	if n := fake.count("helm upgrade"); n != 0 {
		t.Errorf("external-name release installed under dry run")
	}
}

func TestDeployStatefulSelfHosted(t *testing.T) {
	fake := &fakeRunner{}
	d := newTestDeployer(t, selfHostedTarget(), fake)

	if err := d.DeployStateful(context.Background(), databaseSpec()); err != nil {
		t.Fatalf("DeployStateful() error = %v", err)
	}

	if n := fake.count("terraform"); n != 0 {
		t.Errorf("terraform invoked %d times on the self-hosted path, want 0", n)
	}
	if n := fake.count("helm upgrade"); n != 1 {
		t.Errorf("helm upgrade invocations = %d, want 1", n)
	}
}

func TestDeleteStatefulManaged(t *testing.T) {
	fake := &fakeRunner{}
	d := newTestDeployer(t, managedTarget(), fake)

	if err := d.DeleteStateful(context.Background(), databaseSpec(), false); err != nil {
		t.Fatalf("DeleteStateful() error = %v", err)
	}

	got := fake.invocations()
	applyIdx, destroyIdx, secretIdx := -1, -1, -1
	for i, inv := range got {
		switch {
		case inv == "terraform apply":
			applyIdx = i
		case inv == "terraform destroy":
			destroyIdx = i
		case inv == "kubectl delete":
			secretIdx = i
		}
	}
	if applyIdx == -1 || destroyIdx == -1 || applyIdx > destroyIdx {
		t.Errorf("invocations = %v, want a fresh apply before destroy", got)
	}
	if secretIdx == -1 || secretIdx < destroyIdx {
		t.Errorf("invocations = %v, want state secret deleted after destroy", got)
	}

	deleted := false
	for _, c := range fake.calls {
		if c.tool == "kubectl" && c.args[0] == "delete" {
			for _, arg := range c.args {
				if arg == "tfstate-default-db9153a7" {
					deleted = true
				}
			}
		}
	}
	if !deleted {
		t.Error("expected deletion of secret tfstate-default-db9153a7")
	}
}

// toolSink collects streamed process output per tool.
type toolSink struct {
	buffers map[string]*bytes.Buffer
}

func newToolSink() *toolSink {
	return &toolSink{buffers: map[string]*bytes.Buffer{}}
}

func (s *toolSink) writer(tool string) io.Writer {
	buf, ok := s.buffers[tool]
	if !ok {
		buf = &bytes.Buffer{}
		s.buffers[tool] = buf
	}
	return buf
}

func (s *toolSink) output(tool string) string {
	if buf, ok := s.buffers[tool]; ok {
		return buf.String()
	}
	return ""
}

func TestDeployStatelessStreamsHelmOutput(t *testing.T) {
	fake := &fakeRunner{handle: func(tool string, args []string) ([]byte, error) {
		if tool == "helm" && args[0] == "upgrade" {
			return []byte("Release \"application-storefront-za8fd219\" has been upgraded.\n"), nil
		}
		return defaultHandle(tool, args)
	}}
	sink := newToolSink()
	tgt := selfHostedTarget()
	d := New(tgt,
		WithToolOutput(sink.writer),
		WithHelmOptions(helm.WithRunFunc(fake.run)),
		WithKube(kube.NewClient(tgt.Cluster.KubeconfigPath, nil, kube.WithRunFunc(fake.run))),
		WithReadinessSchedule(retry.Fibonacci(time.Millisecond, 2)),
		WithRenderFunc(func(src, dst string, data interface{}) error { return nil }),
	)

	if err := d.DeployStateless(context.Background(), appRelease()); err != nil {
		t.Fatalf("DeployStateless() error = %v", err)
	}

	got := sink.output("helm")
	if !strings.Contains(got, "has been upgraded") {
		t.Errorf("streamed helm output = %q, want the upgrade output", got)
	}
	if strings.Contains(got, "revision") {
		t.Errorf("streamed helm output = %q, history reads should not be streamed", got)
	}
}

func TestDeployStatefulStreamsTerraformOutput(t *testing.T) {
	fake := &fakeRunner{handle: func(tool string, args []string) ([]byte, error) {
		if tool == "terraform" {
			return []byte("Apply complete! Resources: 1 added, 0 changed, 0 destroyed.\n"), nil
		}
		return defaultHandle(tool, args)
	}}
	sink := newToolSink()
	tgt := managedTarget()
	d := New(tgt,
		WithToolOutput(sink.writer),
		WithHelmOptions(helm.WithRunFunc(fake.run)),
		WithKube(kube.NewClient(tgt.Cluster.KubeconfigPath, nil, kube.WithRunFunc(fake.run))),
		WithTerraformFactory(func(workdir string, env []string, opts ...terraform.Option) *terraform.Executor {
			opts = append(opts, terraform.WithRunFunc(fake.run),
				terraform.WithInitSchedule(retry.Fibonacci(time.Millisecond, 1)))
			return terraform.NewExecutor(workdir, env, opts...)
		}),
		WithReadinessSchedule(retry.Fibonacci(time.Millisecond, 2)),
		WithRenderFunc(func(src, dst string, data interface{}) error { return nil }),
	)

	if err := d.DeployStateful(context.Background(), databaseSpec()); err != nil {
		t.Fatalf("DeployStateful() error = %v", err)
	}
	if got := sink.output("terraform"); !strings.Contains(got, "Apply complete") {
		t.Errorf("streamed terraform output = %q, want the apply output", got)
	}
}

func TestPauseStatefulManagedIsNoOp(t *testing.T) {
	fake := &fakeRunner{}
	d := newTestDeployer(t, managedTarget(), fake)

	if err := d.PauseStateful(context.Background(), databaseSpec()); err != nil {
		t.Fatalf("PauseStateful() error = %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("invocations = %v, want none for managed pause", fake.invocations())
	}
}

func TestPauseStatefulSelfHostedScalesToZero(t *testing.T) {
	fake := &fakeRunner{}
	d := newTestDeployer(t, selfHostedTarget(), fake)

	if err := d.PauseStateful(context.Background(), databaseSpec()); err != nil {
		t.Fatalf("PauseStateful() error = %v", err)
	}

	if len(fake.calls) != 1 || fake.calls[0].args[0] != "scale" {
		t.Fatalf("invocations = %v, want a single kubectl scale", fake.invocations())
	}
	zero := false
	for i, arg := range fake.calls[0].args {
		if arg == "--replicas" && i+1 < len(fake.calls[0].args) && fake.calls[0].args[i+1] == "0" {
			zero = true
		}
	}
	if !zero {
		t.Errorf("scale args = %v, want --replicas 0", fake.calls[0].args)
	}
}
