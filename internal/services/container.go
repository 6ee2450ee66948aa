package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thelaunchbay/launchbay-engine/internal/deploy"
	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/render"
	"github.com/thelaunchbay/launchbay-engine/pkg/service"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

// ContainerConfig describes one registry-supplied container workload.
type ContainerConfig struct {
	ID                   string
	LongID               uuid.UUID
	Name                 string
	Action               service.Action
	RegistryURL          string
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

// Container runs a user-supplied image from an external registry,
// always in-cluster.
type Container struct {
	cfg         ContainerConfig
	deployerFor DeployerFactory
}

// NewContainer builds a container service from its configuration.
func NewContainer(cfg ContainerConfig) *Container {
	factory := cfg.DeployerFactory
	if factory == nil {
		factory = defaultDeployerFactory
	}
	return &Container{cfg: cfg, deployerFor: factory}
}

// ID implements service.Service.
func (c *Container) ID() string { return c.cfg.ID }

// Name implements service.Service.
func (c *Container) Name() string { return c.cfg.Name }

// Kind implements service.Service.
func (c *Container) Kind() service.Kind { return service.KindContainer }

// Action implements service.Service.
func (c *Container) Action() service.Action { return c.cfg.Action }

// Scope implements service.Service.
func (c *Container) Scope() engine.Scope { return engine.ContainerScope(c.cfg.Name) }

// Resources implements service.Sizer.
func (c *Container) Resources() service.Resources {
	return service.Resources{
		CPUMilli:  c.cfg.CPUMilli * c.cfg.Instances,
		RAMInMiB:  c.cfg.RAMInMiB * c.cfg.Instances,
		Instances: c.cfg.Instances,
	}
}

// Image returns the full image reference the container runs.
func (c *Container) Image() string {
	if c.cfg.RegistryURL == "" {
		return c.cfg.ImageNameWithTag
	}
	return c.cfg.RegistryURL + "/" + c.cfg.ImageNameWithTag
}

func (c *Container) release(tgt *target.Target) deploy.Release {
	return deploy.Release{
		Scope:       c.Scope(),
		Name:        service.ReleaseName(c),
		TemplateDir: tgt.TemplatePath("charts", "container"),
		Workdir:     tgt.WorkspacePath(c.cfg.ID, "chart"),
		Namespace:   tgt.Namespace,
		Data: render.ContainerContext{
			ID:                          c.cfg.ID,
			Name:                        c.cfg.Name,
			Namespace:                   tgt.Namespace,
			KubeconfigPath:              tgt.Cluster.KubeconfigPath,
			RegistryURL:                 c.cfg.RegistryURL,
			ImageNameWithTag:            c.cfg.ImageNameWithTag,
			EnvironmentVariables:        c.cfg.EnvironmentVariables,
			Storage:                     c.cfg.Storage,
			CPUMilli:                    c.cfg.CPUMilli,
			RAMInMiB:                    c.cfg.RAMInMiB,
			Replicas:                    c.cfg.Instances,
			ResourceExpirationInSeconds: tgt.TTLSeconds(),
		},
		Timeout:  c.cfg.HelmTimeout,
		Selector: service.Selector(c),
		FailureMessage: fmt.Sprintf(
			"container %s failed to start - check that the image exists and your port configuration is correct", c.cfg.Name),
	}
}

// Execute implements service.Lifecycle.
func (c *Container) Execute(ctx context.Context, tgt *target.Target, action service.Action, phase service.Phase) error {
	d := c.deployerFor(tgt, c)
	rel := c.release(tgt)

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
				return d.PauseWorkload(ctx, c.Scope(), tgt.Namespace, rel.Selector)
			},
		},
		service.ActionDelete: {
			service.PhaseRun: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeleteStateless(ctx, rel, false)
			},
		},
	}
	return dispatch(ctx, d, c.Kind(), table, action, phase)
}
