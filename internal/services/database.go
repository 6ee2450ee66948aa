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

// DatabaseConfig describes one database service. Engine selects the
// chart and terraform module directories, e.g. "postgresql" or "redis".
type DatabaseConfig struct {
	ID            string
	LongID        uuid.UUID
	Name          string
	Action        service.Action
	Engine        string
	Version       string
	FQDN          string
	Login         string
	Password      string
	Port          int
	DiskSizeInGiB int
	CPUMilli      int
	RAMInMiB      int
	HelmTimeout   time.Duration

	// DeployerFactory overrides how deployment algorithms are built.
	DeployerFactory DeployerFactory
}

// Database is the stateful service variant: the deployment target
// decides whether it converges through terraform as a managed cloud
// resource or through helm as an in-cluster workload.
type Database struct {
	cfg         DatabaseConfig
	deployerFor DeployerFactory
}

// NewDatabase builds a database service from its configuration.
func NewDatabase(cfg DatabaseConfig) *Database {
	factory := cfg.DeployerFactory
	if factory == nil {
		factory = defaultDeployerFactory
	}
	return &Database{cfg: cfg, deployerFor: factory}
}

// ID implements service.Service.
func (db *Database) ID() string { return db.cfg.ID }

// Name implements service.Service.
func (db *Database) Name() string { return db.cfg.Name }

// Kind implements service.Service.
func (db *Database) Kind() service.Kind { return service.KindDatabase }

// Action implements service.Service.
func (db *Database) Action() service.Action { return db.cfg.Action }

// Scope implements service.Service.
func (db *Database) Scope() engine.Scope { return engine.DatabaseScope(db.cfg.Name) }

// Resources implements service.Sizer. The orchestrator zeroes this
// contribution when the database runs as a managed service.
func (db *Database) Resources() service.Resources {
	return service.Resources{
		CPUMilli:  db.cfg.CPUMilli,
		RAMInMiB:  db.cfg.RAMInMiB,
		Instances: 1,
	}
}

func (db *Database) renderContext(tgt *target.Target) render.DatabaseContext {
	return render.DatabaseContext{
		ID:                          db.cfg.ID,
		Name:                        db.cfg.Name,
		Namespace:                   tgt.Namespace,
		KubeconfigPath:              tgt.Cluster.KubeconfigPath,
		Version:                     db.cfg.Version,
		FQDN:                        db.cfg.FQDN,
		Login:                       db.cfg.Login,
		Password:                    db.cfg.Password,
		Port:                        db.cfg.Port,
		DiskSizeInGiB:               db.cfg.DiskSizeInGiB,
		CPUMilli:                    db.cfg.CPUMilli,
		RAMInMiB:                    db.cfg.RAMInMiB,
		ResourceExpirationInSeconds: tgt.TTLSeconds(),
	}
}

func (db *Database) spec(tgt *target.Target) deploy.StatefulSpec {
	data := db.renderContext(tgt)
	return deploy.StatefulSpec{
		Scope:           db.Scope(),
		ServiceID:       db.cfg.ID,
		Data:            data,
		CommonModuleDir: tgt.TemplatePath("terraform", "common"),
		ModuleDir:       tgt.TemplatePath("terraform", db.cfg.Engine),
		ExternalName: deploy.Release{
			Scope:       db.Scope(),
			Name:        service.ReleaseName(db) + "-extname",
			TemplateDir: tgt.TemplatePath("charts", "external-name"),
			Workdir:     tgt.WorkspacePath(db.cfg.ID, "external-name"),
			Namespace:   tgt.Namespace,
			Data:        data,
			Timeout:     db.cfg.HelmTimeout,
			FailureMessage: fmt.Sprintf(
				"database %s endpoint service failed to deploy", db.cfg.Name),
		},
		SelfHosted: deploy.Release{
			Scope:       db.Scope(),
			Name:        service.ReleaseName(db),
			TemplateDir: tgt.TemplatePath("charts", db.cfg.Engine),
			Workdir:     tgt.WorkspacePath(db.cfg.ID, "chart"),
			Namespace:   tgt.Namespace,
			Data:        data,
			ValuesFiles: []string{tgt.TemplatePath("values", db.cfg.Engine+".yaml")},
			Timeout:     db.cfg.HelmTimeout,
			Selector:    service.Selector(db),
			FailureMessage: fmt.Sprintf(
				"database %s failed to start - check its resource and disk configuration", db.cfg.Name),
		},
	}
}

// Execute implements service.Lifecycle.
func (db *Database) Execute(ctx context.Context, tgt *target.Target, action service.Action, phase service.Phase) error {
	d := db.deployerFor(tgt, db)
	spec := db.spec(tgt)

	table := hookTable{
		service.ActionCreate: {
			service.PhaseRun: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeployStateful(ctx, spec)
			},
			service.PhaseCheck: func(ctx context.Context, d *deploy.Deployer) error {
				// Managed databases are verified provider-side by
				// terraform; only in-cluster workloads can be probed.
				if tgt.Kind == target.ManagedServices {
					return nil
				}
				return confirmReady(ctx, d, tgt, spec.SelfHosted)
			},
			service.PhaseError: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeleteStateful(ctx, spec, true)
			},
		},
		service.ActionPause: {
			service.PhaseRun: func(ctx context.Context, d *deploy.Deployer) error {
				return d.PauseStateful(ctx, spec)
			},
		},
		service.ActionDelete: {
			service.PhaseRun: func(ctx context.Context, d *deploy.Deployer) error {
				return d.DeleteStateful(ctx, spec, false)
			},
		},
	}
	return dispatch(ctx, d, db.Kind(), table, action, phase)
}
