// Package target defines the deployment target: the single dispatch point
// deciding whether a stateful service converges through terraform against
// managed cloud services or through helm inside the cluster. Stateless
// services always take the helm path regardless of the target kind.
package target

import (
	"io"
	"path/filepath"
	"time"

	"github.com/thelaunchbay/launchbay-engine/pkg/provider"
)

// Kind tags the two target shapes.
type Kind string

const (
	// ManagedServices provisions stateful services as cloud-provider
	// managed resources (RDS and friends) via terraform.
	ManagedServices Kind = "managed-services"

	// SelfHosted runs stateful services as helm workloads inside the
	// target cluster.
	SelfHosted Kind = "self-hosted"
)

// Cluster is the Kubernetes cluster a target deploys into, together with
// the directories the engine works out of.
type Cluster struct {
	// ID identifies the cluster on the platform.
	ID string

	// Name is the user-facing cluster name.
	Name string

	// KubeconfigPath reaches the cluster's API server.
	KubeconfigPath string

	// Provider supplies credentials for helm, terraform and kubectl
	// invocations against this cluster's cloud account.
	Provider provider.Provider

	// TemplateDir is the root of chart and terraform-module templates.
	TemplateDir string

	// WorkspaceDir is where rendered per-service directories land.
	WorkspaceDir string

	// PluginCacheDir is handed to terraform as TF_PLUGIN_CACHE_DIR when
	// set, sharing provider downloads across working directories.
	PluginCacheDir string
}

// Target selects the execution backend for one orchestration pass and
// carries the pass's execution context.
type Target struct {
	// Kind routes stateful services: ManagedServices to terraform,
	// SelfHosted to helm.
	Kind Kind

	// Cluster is the cluster stateless (and self-hosted stateful)
	// workloads deploy into.
	Cluster Cluster

	// EnvironmentID identifies the environment being converged.
	EnvironmentID string

	// Namespace is the environment's namespace, stable for the
	// environment's lifetime.
	Namespace string

	// ExecutionID identifies this orchestration pass; it tags every
	// error and progress notification the pass produces.
	ExecutionID string

	// DryRun computes plans without applying them.
	DryRun bool

	// ResourceExpiration labels created namespaces with a ttl so
	// short-lived environments get reaped. Zero means no expiration.
	ResourceExpiration time.Duration

	// LogSink resolves the writer receiving raw helm and terraform
	// output for one service during the pass. Nil disables streaming.
	LogSink func(serviceID, tool string) io.Writer
}

// CredentialsEnv returns the provider credential variables to inject into
// executor invocations, or nil when the cluster has no provider.
func (t *Target) CredentialsEnv() []string {
	if t.Cluster.Provider == nil {
		return nil
	}
	return t.Cluster.Provider.CredentialsEnvironmentVariables()
}

// TTLSeconds converts the resource expiration to whole seconds for the
// namespace ttl label. Zero means the label is not applied.
func (t *Target) TTLSeconds() int {
	return int(t.ResourceExpiration / time.Second)
}

// TemplatePath resolves a template subdirectory under the cluster's
// template root.
func (t *Target) TemplatePath(parts ...string) string {
	return filepath.Join(append([]string{t.Cluster.TemplateDir}, parts...)...)
}

// WorkspacePath resolves a rendered-output subdirectory under the
// cluster's workspace root.
func (t *Target) WorkspacePath(parts ...string) string {
	return filepath.Join(append([]string{t.Cluster.WorkspaceDir}, parts...)...)
}
