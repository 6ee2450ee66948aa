// Package deploy implements the shared deployment algorithms: stateless
// services always converge through helm inside the cluster, stateful
// services converge through terraform against managed cloud services or
// through helm depending on the deployment target.
package deploy

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/helm"
	"github.com/thelaunchbay/launchbay-engine/pkg/kube"
	"github.com/thelaunchbay/launchbay-engine/pkg/render"
	"github.com/thelaunchbay/launchbay-engine/pkg/retry"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
	"github.com/thelaunchbay/launchbay-engine/pkg/terraform"
)

// defaultReadiness bounds pod-readiness polling after a helm upgrade.
// Slow-pulling images need a few minutes of headroom.
const (
	defaultReadinessBase     = 3 * time.Second
	defaultReadinessAttempts = 40
)

// diagnosticsLogTail caps the pod log lines collected into a failure
// report.
const diagnosticsLogTail = 100

// TerraformFactory builds a terraform executor over one working
// directory. Injected so tests can observe invocations.
type TerraformFactory func(workdir string, env []string, opts ...terraform.Option) *terraform.Executor

// Deployer runs the deployment algorithms against one target.
type Deployer struct {
	tgt        *target.Target
	helm       *helm.Executor
	helmOpts   []helm.Option
	kube       *kube.Client
	tf         TerraformFactory
	toolOutput func(tool string) io.Writer
	readiness  retry.Schedule
	renderDir  func(src, dst string, data interface{}) error
}

// Option customizes deployer behavior.
type Option func(*Deployer)

// WithHelm overrides the helm executor.
func WithHelm(e *helm.Executor) Option {
	return func(d *Deployer) {
		d.helm = e
	}
}

// WithKube overrides the kubectl client.
func WithKube(c *kube.Client) Option {
	return func(d *Deployer) {
		d.kube = c
	}
}

// WithHelmOptions appends options to the default helm executor. Ignored
// when WithHelm replaces the executor outright.
func WithHelmOptions(opts ...helm.Option) Option {
	return func(d *Deployer) {
		d.helmOpts = append(d.helmOpts, opts...)
	}
}

// WithTerraformFactory overrides how terraform executors are built.
func WithTerraformFactory(f TerraformFactory) Option {
	return func(d *Deployer) {
		d.tf = f
	}
}

// WithToolOutput streams raw helm and terraform output for the pass to
// the writers f resolves. A nil writer disables streaming for that tool.
func WithToolOutput(f func(tool string) io.Writer) Option {
	return func(d *Deployer) {
		d.toolOutput = f
	}
}

// WithReadinessSchedule overrides the pod-readiness retry schedule.
func WithReadinessSchedule(s retry.Schedule) Option {
	return func(d *Deployer) {
		d.readiness = s
	}
}

// WithRenderFunc overrides how template directories are rendered.
func WithRenderFunc(f func(src, dst string, data interface{}) error) Option {
	return func(d *Deployer) {
		d.renderDir = f
	}
}

// New builds a Deployer for the target. Executors inherit the cluster's
// kubeconfig and the provider's credential environment.
func New(tgt *target.Target, opts ...Option) *Deployer {
	d := &Deployer{
		tgt:       tgt,
		tf:        terraform.NewExecutor,
		readiness: retry.Fibonacci(defaultReadinessBase, defaultReadinessAttempts),
		renderDir: render.Dir,
	}
	for _, opt := range opts {
		opt(d)
	}

	env := tgt.CredentialsEnv()
	if d.helm == nil {
		helmOpts := d.helmOpts
		if w := d.toolWriter("helm"); w != nil {
			helmOpts = append(helmOpts, helm.WithOutputWriter(w))
		}
		d.helm = helm.NewExecutor(tgt.Cluster.KubeconfigPath, env, helmOpts...)
	}
	if d.kube == nil {
		d.kube = kube.NewClient(tgt.Cluster.KubeconfigPath, env)
	}
	return d
}

// toolWriter resolves the streaming writer for one tool, or nil.
func (d *Deployer) toolWriter(tool string) io.Writer {
	if d.toolOutput == nil {
		return nil
	}
	return d.toolOutput(tool)
}

// Release describes one helm release a service converges: its source
// templates, the render data, and how to verify the result.
type Release struct {
	// Scope attributes failures to the owning service.
	Scope engine.Scope

	// Name is the helm release name.
	Name string

	// TemplateDir is the chart template source directory.
	TemplateDir string

	// Workdir is where the rendered chart lands.
	Workdir string

	// Namespace is the target namespace, created if absent.
	Namespace string

	// Data is the typed template context.
	Data interface{}

	// Values are ordered --set overrides.
	Values []helm.Value

	// ValuesFiles are environment-specific override files.
	ValuesFiles []string

	// Timeout bounds the helm invocation.
	Timeout time.Duration

	// Selector matches the release's pods for readiness and diagnostics.
	// Empty skips readiness verification (e.g. external-name services
	// that run no pods).
	Selector string

	// FailureMessage is the user-facing message raised when the release
	// never produces a successful revision or its pods never turn ready.
	FailureMessage string
}

func logger(ctx context.Context) hclog.Logger {
	if l := hclog.FromContext(ctx); l != nil {
		return l
	}
	return hclog.Default()
}

// DeployStateless renders, installs and verifies one in-cluster release:
// render the chart workspace, ensure the namespace (with a ttl label when
// the pass carries a resource expiration), helm upgrade, inspect the
// release history, then poll pod readiness under a bounded schedule.
func (d *Deployer) DeployStateless(ctx context.Context, rel Release) error {
	log := logger(ctx)
	log.Info("deploying release", "release", rel.Name, "namespace", rel.Namespace)

	if err := d.renderDir(rel.TemplateDir, rel.Workdir, rel.Data); err != nil {
		return engine.NewInternal(rel.Scope, d.tgt.ExecutionID,
			fmt.Sprintf("failed to render chart templates for %s", rel.Name), err)
	}

	if err := d.kube.EnsureNamespace(ctx, rel.Namespace, d.tgt.TTLSeconds()); err != nil {
		return engine.NewInternal(engine.KubernetesScope(), d.tgt.ExecutionID,
			fmt.Sprintf("failed to ensure namespace %s", rel.Namespace), err)
	}

	chart := helm.Chart{
		Name:        rel.Name,
		Path:        rel.Workdir,
		Namespace:   rel.Namespace,
		Values:      rel.Values,
		ValuesFiles: rel.ValuesFiles,
		Timeout:     rel.Timeout,
	}
	if err := d.helm.UpgradeInstall(ctx, chart); err != nil {
		return engine.NewInternal(rel.Scope, d.tgt.ExecutionID,
			fmt.Sprintf("helm upgrade of %s failed", rel.Name), err)
	}

	rows, err := d.helm.History(ctx, rel.Name, rel.Namespace)
	if err != nil {
		return engine.NewInternal(rel.Scope, d.tgt.ExecutionID,
			fmt.Sprintf("failed to read helm history for %s", rel.Name), err)
	}
	if !helm.HasSuccessfulRow(rows) {
		return engine.NewUser(rel.Scope, d.tgt.ExecutionID, rel.FailureMessage, nil)
	}

	if rel.Selector == "" {
		return nil
	}
	return d.waitPodsReady(ctx, rel)
}

func (d *Deployer) waitPodsReady(ctx context.Context, rel Release) error {
	log := logger(ctx)
	log.Info("waiting for pods to become ready", "release", rel.Name, "selector", rel.Selector)

	err := retry.Do(ctx, d.readiness, func(ctx context.Context) error {
		ready, err := d.kube.PodsReady(ctx, rel.Namespace, rel.Selector)
		if err != nil {
			return err
		}
		if !ready {
			return retry.Transientf("pods matching %s are not ready yet", rel.Selector)
		}
		return nil
	})
	if err == nil {
		log.Info("pods are ready", "release", rel.Name)
		return nil
	}
	if retry.IsTransient(err) {
		return engine.NewUser(rel.Scope, d.tgt.ExecutionID,
			fmt.Sprintf("%s: pods are still not ready after several retries", rel.FailureMessage), err)
	}
	return engine.NewInternal(rel.Scope, d.tgt.ExecutionID,
		fmt.Sprintf("failed to verify pod readiness for %s", rel.Name), err)
}

// DeleteStateless removes one in-cluster release. When the deletion
// compensates a failed creation, diagnostics are collected first so the
// failure report survives the teardown. Uninstall is skipped when the
// release never produced a successful revision: there is nothing real to
// remove and helm would error on the absent release.
func (d *Deployer) DeleteStateless(ctx context.Context, rel Release, dueToError bool) error {
	log := logger(ctx)
	log.Info("deleting release", "release", rel.Name, "namespace", rel.Namespace, "due_to_error", dueToError)

	if dueToError && rel.Selector != "" {
		report := d.kube.Diagnostics(ctx, rel.Namespace, rel.Selector)
		log.Error("collected failure diagnostics before deletion",
			"release", rel.Name, "diagnostics", report)
	}

	rows, err := d.helm.History(ctx, rel.Name, rel.Namespace)
	if err != nil {
		return engine.NewInternal(rel.Scope, d.tgt.ExecutionID,
			fmt.Sprintf("failed to read helm history for %s", rel.Name), err)
	}
	if !helm.HasSuccessfulRow(rows) {
		log.Info("no successful helm revision found, skipping uninstall", "release", rel.Name)
		return nil
	}

	if err := d.helm.Uninstall(ctx, rel.Name, rel.Namespace); err != nil {
		return engine.NewInternal(rel.Scope, d.tgt.ExecutionID,
			fmt.Sprintf("helm uninstall of %s failed", rel.Name), err)
	}
	return nil
}

// PauseWorkload scales the release's workloads to zero replicas,
// preserving volumes and configuration for a later resume.
func (d *Deployer) PauseWorkload(ctx context.Context, scope engine.Scope, namespace, selector string) error {
	if err := d.kube.ScaleBySelector(ctx, namespace, selector, 0); err != nil {
		return engine.NewInternal(scope, d.tgt.ExecutionID,
			fmt.Sprintf("failed to scale workloads matching %s to zero", selector), err)
	}
	return nil
}

// PodsReady reports whether the selector matches only ready pods.
func (d *Deployer) PodsReady(ctx context.Context, namespace, selector string) (bool, error) {
	return d.kube.PodsReady(ctx, namespace, selector)
}

// Diagnostics returns the in-cluster failure report for a selector. Only
// self-hosted workloads can be introspected; managed-service failures
// surface provider-side messages only.
func (d *Deployer) Diagnostics(ctx context.Context, namespace, selector string) string {
	return d.kube.Diagnostics(ctx, namespace, selector)
}

// PodLogs fetches recent logs for a selector, for user-facing reports.
func (d *Deployer) PodLogs(ctx context.Context, namespace, selector string) (string, error) {
	return d.kube.PodLogs(ctx, namespace, selector, diagnosticsLogTail)
}
