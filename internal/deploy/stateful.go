package deploy

import (
	"context"
	"fmt"

	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
	"github.com/thelaunchbay/launchbay-engine/pkg/terraform"
)

// StatefulSpec describes one stateful service deployment. The managed
// path renders terraform modules plus an external-name release exposing
// the provider-side endpoint in-cluster; the self-hosted path is the
// stateless algorithm over the resource chart with environment value
// overrides.
type StatefulSpec struct {
	// Scope attributes failures to the owning service.
	Scope engine.Scope

	// ServiceID keys the terraform workspace and state secret.
	ServiceID string

	// Data is the typed template context shared by every rendered
	// directory of this service.
	Data interface{}

	// CommonModuleDir holds provider/backend terraform templates shared
	// by every managed resource.
	CommonModuleDir string

	// ModuleDir holds the resource-specific terraform templates.
	ModuleDir string

	// ExternalName is the helm release mapping the managed endpoint to an
	// in-cluster service name. Selector stays empty: it runs no pods.
	ExternalName Release

	// SelfHosted is the in-cluster release used when the target is not
	// managed.
	SelfHosted Release
}

// tfStateSecret names the kubernetes secret terraform stores its state
// in for one service.
func tfStateSecret(serviceID string) string {
	return fmt.Sprintf("tfstate-default-%s", serviceID)
}

func (d *Deployer) terraformFor(spec StatefulSpec) *terraform.Executor {
	workdir := d.tgt.WorkspacePath(spec.ServiceID, "terraform")
	var opts []terraform.Option
	if d.tgt.Cluster.PluginCacheDir != "" {
		opts = append(opts, terraform.WithPluginCacheDir(d.tgt.Cluster.PluginCacheDir))
	}
	if w := d.toolWriter("terraform"); w != nil {
		opts = append(opts, terraform.WithOutputWriter(w))
	}
	return d.tf(workdir, d.tgt.CredentialsEnv(), opts...)
}

func (d *Deployer) renderTerraform(spec StatefulSpec) error {
	workdir := d.tgt.WorkspacePath(spec.ServiceID, "terraform")
	if err := d.renderDir(spec.CommonModuleDir, workdir, spec.Data); err != nil {
		return engine.NewInternal(spec.Scope, d.tgt.ExecutionID,
			"failed to render common terraform templates", err)
	}
	if err := d.renderDir(spec.ModuleDir, workdir, spec.Data); err != nil {
		return engine.NewInternal(spec.Scope, d.tgt.ExecutionID,
			"failed to render resource terraform templates", err)
	}
	return nil
}

// DeployStateful converges one stateful service. ManagedServices targets
// run the terraform sequence (apply skipped under dry-run) and install
// the external-name release; SelfHosted targets run the stateless
// algorithm over the resource chart.
func (d *Deployer) DeployStateful(ctx context.Context, spec StatefulSpec) error {
	log := logger(ctx)

	if d.tgt.Kind != target.ManagedServices {
		return d.DeployStateless(ctx, spec.SelfHosted)
	}

	log.Info("deploying managed service", "service", spec.ServiceID)

	if err := d.renderTerraform(spec); err != nil {
		return err
	}

	if err := d.terraformFor(spec).InitValidatePlanApply(ctx, d.tgt.DryRun); err != nil {
		return engine.NewInternal(engine.CloudProviderScope(), d.tgt.ExecutionID,
			fmt.Sprintf("failed to provision managed service %s", spec.ServiceID), err)
	}
	if d.tgt.DryRun {
		log.Info("dry run requested, skipping external-name release", "service", spec.ServiceID)
		return nil
	}

	return d.DeployStateless(ctx, spec.ExternalName)
}

// DeleteStateful tears one stateful service down. The managed path runs a
// fresh apply before destroy so destroy computes against the complete
// resource set, then removes the terraform state secret; the external-name
// release goes last. The self-hosted path mirrors stateless deletion.
func (d *Deployer) DeleteStateful(ctx context.Context, spec StatefulSpec, dueToError bool) error {
	log := logger(ctx)

	if d.tgt.Kind != target.ManagedServices {
		return d.DeleteStateless(ctx, spec.SelfHosted, dueToError)
	}

	log.Info("deleting managed service", "service", spec.ServiceID, "due_to_error", dueToError)

	if err := d.renderTerraform(spec); err != nil {
		return err
	}

	if err := d.terraformFor(spec).InitValidateDestroy(ctx); err != nil {
		return engine.NewInternal(engine.CloudProviderScope(), d.tgt.ExecutionID,
			fmt.Sprintf("failed to destroy managed service %s", spec.ServiceID), err)
	}

	if err := d.kube.DeleteSecret(ctx, spec.ExternalName.Namespace, tfStateSecret(spec.ServiceID)); err != nil {
		return engine.NewInternal(engine.KubernetesScope(), d.tgt.ExecutionID,
			fmt.Sprintf("failed to delete terraform state secret for %s", spec.ServiceID), err)
	}

	return d.DeleteStateless(ctx, spec.ExternalName, false)
}

// PauseStateful pauses one stateful service. Pausing a managed service is
// a deliberate no-op: the provider bills it either way, so there is no
// cost to reclaim. Self-hosted services scale to zero replicas, keeping
// their volumes.
func (d *Deployer) PauseStateful(ctx context.Context, spec StatefulSpec) error {
	log := logger(ctx)

	if d.tgt.Kind == target.ManagedServices {
		log.Info("pause is a no-op for managed services", "service", spec.ServiceID)
		return nil
	}
	return d.PauseWorkload(ctx, spec.Scope, spec.SelfHosted.Namespace, spec.SelfHosted.Selector)
}
