package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/thelaunchbay/launchbay-engine/pkg/controlplane"
	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/metrics"
	"github.com/thelaunchbay/launchbay-engine/pkg/progress"
	"github.com/thelaunchbay/launchbay-engine/pkg/service"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

// StepReporter receives per-service deployment-step transitions.
// Satisfied by *controlplane.Client.
type StepReporter interface {
	UpdateStep(ctx context.Context, update controlplane.StepUpdate) error
}

// Orchestrator executes one orchestration pass over an environment.
// Services are driven sequentially; the only concurrency is the progress
// reporter's notifier goroutine.
type Orchestrator struct {
	logger   hclog.Logger
	reporter *progress.Reporter
	metrics  *metrics.Metrics
	steps    StepReporter
}

// Option customizes orchestrator behavior.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger hclog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithReporter emits periodic progress while hooks run.
func WithReporter(r *progress.Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = r
	}
}

// WithMetrics records hook durations and results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithStepReporter reports step transitions to the control plane.
func WithStepReporter(r StepReporter) Option {
	return func(o *Orchestrator) {
		o.steps = r
	}
}

// New builds an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{logger: hclog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run drives every service of the environment through its requested
// action. The first fatal error stops the pass and is returned; services
// requesting nothing are skipped without invoking any hook.
func (o *Orchestrator) Run(ctx context.Context, tgt *target.Target, env *Environment) error {
	log := o.logger.With("environment", env.ID, "execution_id", tgt.ExecutionID)
	ctx = hclog.WithContext(ctx, log)

	resources := env.RequiredResources()
	log.Info("starting orchestration pass",
		"namespace", tgt.Namespace,
		"target", string(tgt.Kind),
		"services", len(env.Services()),
		"required_cpu_milli", resources.CPUMilli,
		"required_ram_mib", resources.RAMInMiB,
		"required_pods", resources.Instances)

	for _, svc := range env.Services() {
		if err := o.runService(ctx, tgt, svc); err != nil {
			log.Error("orchestration pass failed",
				"service", svc.Name(), "action", string(svc.Action()), "error", err)
			return err
		}
	}

	log.Info("orchestration pass completed")
	return nil
}

// runService executes exactly one hook triple for the service's action:
// the run phase, then the check phase on success. A check failure still
// counts as a deployment failure even though the resource was created.
// The error phase compensates either failure; its own failure is logged
// without masking the original error.
func (o *Orchestrator) runService(ctx context.Context, tgt *target.Target, svc service.Lifecycle) error {
	action := svc.Action()
	if action == service.ActionNothing {
		return nil
	}

	log := hclog.FromContext(ctx)
	if log == nil {
		log = o.logger
	}
	log.Info("executing lifecycle action", "service", svc.Name(), "kind", string(svc.Kind()), "action", string(action))

	step := stepFor(svc, action)
	o.reportStep(ctx, tgt, svc, step, controlplane.StepInProgress, nil)
	err := o.executePhase(ctx, tgt, svc, action, service.PhaseRun)
	if err != nil {
		o.reportStep(ctx, tgt, svc, step, controlplane.StepFailed, err)
	} else {
		o.reportStep(ctx, tgt, svc, step, controlplane.StepCompleted, nil)
		o.reportStep(ctx, tgt, svc, controlplane.StepCheck, controlplane.StepInProgress, nil)
		err = o.executePhase(ctx, tgt, svc, action, service.PhaseCheck)
		if err != nil {
			o.reportStep(ctx, tgt, svc, controlplane.StepCheck, controlplane.StepFailed, err)
		} else {
			o.reportStep(ctx, tgt, svc, controlplane.StepCheck, controlplane.StepCompleted, nil)
		}
	}
	if err == nil {
		return nil
	}

	if compErr := o.executePhase(ctx, tgt, svc, action, service.PhaseError); compErr != nil {
		log.Error("compensation hook failed",
			"service", svc.Name(), "action", string(action), "error", compErr)
	}

	if _, ok := engine.AsError(err); ok {
		return err
	}
	return engine.NewInternal(svc.Scope(), tgt.ExecutionID,
		fmt.Sprintf("%s of %s failed", action, svc.Name()), err)
}

// stepFor maps an action to its control-plane step. Databases provision
// managed resources before anything can be checked; every other create
// is a plain deploy.
func stepFor(svc service.Lifecycle, action service.Action) controlplane.Step {
	if action == service.ActionDelete {
		return controlplane.StepDelete
	}
	if svc.Kind() == service.KindDatabase {
		return controlplane.StepProvision
	}
	return controlplane.StepDeploy
}

// reportStep forwards one step transition. Reporting failures never fail
// the pass.
func (o *Orchestrator) reportStep(ctx context.Context, tgt *target.Target, svc service.Lifecycle, step controlplane.Step, status controlplane.StepStatus, cause error) {
	if o.steps == nil {
		return
	}
	update := controlplane.StepUpdate{
		ExecutionID: tgt.ExecutionID,
		ServiceID:   svc.ID(),
		Step:        step,
		Status:      status,
	}
	if cause != nil {
		update.Error = cause.Error()
	}
	if err := o.steps.UpdateStep(ctx, update); err != nil {
		o.logger.Warn("failed to report deployment step",
			"service", svc.ID(), "step", string(step), "status", string(status), "error", err)
	}
}

func (o *Orchestrator) executePhase(ctx context.Context, tgt *target.Target, svc service.Lifecycle, action service.Action, phase service.Phase) error {
	run := func(ctx context.Context) error {
		start := time.Now()
		err := svc.Execute(ctx, tgt, action, phase)
		o.metrics.ObserveHook(string(svc.Scope().Kind), string(action), time.Since(start), err)
		return err
	}

	if o.reporter == nil || phase != service.PhaseRun {
		return run(ctx)
	}

	info := progress.Info{
		ExecutionID: tgt.ExecutionID,
		Scope:       svc.Scope(),
		Message:     fmt.Sprintf("%s of %s is still in progress", action, svc.Name()),
	}
	return o.reporter.Track(ctx, info, run)
}
