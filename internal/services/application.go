package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thelaunchbay/launchbay-engine/internal/deploy"
	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/render"
	"github.com/thelaunchbay/launchbay-engine/pkg/retry"
	"github.com/thelaunchbay/launchbay-engine/pkg/service"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

// checkSchedule bounds the post-deployment readiness confirmation. The
// deploy algorithm already waited for readiness, so the check is a fast
// re-verification.
var checkSchedule = retry.Fibonacci(3*time.Second, 5)

// ApplicationConfig describes one platform-built application.
type ApplicationConfig struct {
	ID                   string
	LongID               uuid.UUID
	Name                 string
	Action               service.Action
	Version              string
	ImageNameWithTag     string
	PrivatePort          int
	CPUMilli             int
	RAMInMiB             int
	Instances            int
	EnvironmentVariables []render.EnvVar
	Storage              []render.Storage
	HelmTimeout          time.Duration

	// DeployerFactory overrides how deployment algorithms are built.
	DeployerFactory DeployerFactory
}

// Application is a platform-built workload, always deployed in-cluster.
type Application struct {
	cfg         ApplicationConfig
	deployerFor DeployerFactory
}

// NewApplication builds an application service from its configuration.
func NewApplication(cfg ApplicationConfig) *Application {
	factory := cfg.DeployerFactory
	if factory == nil {
		factory = defaultDeployerFactory
	}
	return &Application{cfg: cfg, deployerFor: factory}
}

// ID implements service.Service.
func (a *Application) ID() string { return a.cfg.ID }

// Name implements service.Service.
func (a *Application) Name() string { return a.cfg.Name }

// Kind implements service.Service.
func (a *Application) Kind() service.Kind { return service.KindApplication }

// Action implements service.Service.
func (a *Application) Action() service.Action { return a.cfg.Action }

// Scope implements service.Service.
func (a *Application) Scope() engine.Scope { return engine.ApplicationScope(a.cfg.Name) }

// Resources implements service.Sizer.
func (a *Application) Resources() service.Resources {
	return service.Resources{
		CPUMilli:  a.cfg.CPUMilli * a.cfg.Instances,
		RAMInMiB:  a.cfg.RAMInMiB * a.cfg.Instances,
		Instances: a.cfg.Instances,
	}
}

func (a *Application) release(tgt *target.Target) deploy.Release {
	return deploy.Release{
		Scope:       a.Scope(),
		Name:        service.ReleaseName(a),
		TemplateDir: tgt.TemplatePath("charts", "application"),
		Workdir:     tgt.WorkspacePath(a.cfg.ID, "chart"),
		Namespace:   tgt.Namespace,
		Data: render.ApplicationContext{
			ID:                          a.cfg.ID,
			Name:                        a.cfg.Name,
			Namespace:                   tgt.Namespace,
			KubeconfigPath:              tgt.Cluster.KubeconfigPath,
			ImageNameWithTag:            a.cfg.ImageNameWithTag,
			EnvironmentVariables:        a.cfg.EnvironmentVariables,
			Storage:                     a.cfg.Storage,
			CPUMilli:                    a.cfg.CPUMilli,
			RAMInMiB:                    a.cfg.RAMInMiB,
			Replicas:                    a.cfg.Instances,
			ResourceExpirationInSeconds: tgt.TTLSeconds(),
		},
		Timeout:  a.cfg.HelmTimeout,
		Selector: service.Selector(a),
		FailureMessage: fmt.Sprintf(
			"application %s failed to start - check your port configuration and application logs", a.cfg.Name),
	}
}

// Execute implements service.Lifecycle.
func (a *Application) Execute(ctx context.Context, tgt *target.Target, action service.Action, phase service.Phase) error {
	d := a.deployerFor(tgt, a)
	rel := a.release(tgt)

	table := hookTable{
		service.ActionCreate: {
			service.PhaseRun: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeployStateless(ctx, rel)
			},
			service.PhaseCheck: func(ctx context.Context, d *deploy.Deployer) error {
				return confirmReady(ctx, d, tgt, rel)
			},
			service.PhaseError: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeleteStateless(ctx, rel, true)
			},
		},
		service.ActionPause: {
			service.PhaseRun: func(ctx context.Context, d *deploy.Deployer) error {
				return d.PauseWorkload(ctx, a.Scope(), tgt.Namespace, rel.Selector)
			},
		},
		service.ActionDelete: {
			service.PhaseRun: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeleteStateless(ctx, rel, false)
			},
		},
	}
	return dispatch(ctx, d, a.Kind(), table, action, phase)
}

// confirmReady re-verifies pod readiness as a creation post-condition.
func confirmReady(ctx context.Context, d *deploy.Deployer, tgt *target.Target, rel deploy.Release) error {
	err := retry.Do(ctx, checkSchedule, func(ctx context.Context) error {
		ready, err := d.PodsReady(ctx, rel.Namespace, rel.Selector)
		if err != nil {
			return err
		}
		if !ready {
			return retry.Transientf("pods matching %s are not ready", rel.Selector)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if retry.IsTransient(err) {
		return engine.NewUser(rel.Scope, tgt.ExecutionID,
			fmt.Sprintf("%s is still not ready after several retries", rel.Name), err)
	}
	return engine.NewInternal(rel.Scope, tgt.ExecutionID,
		fmt.Sprintf("failed to verify readiness of %s", rel.Name), err)
}
