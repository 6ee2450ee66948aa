package config

// Config is the root of a launchbay.hcl environment definition.
type Config struct {
	// Project is the project name.
	Project string `hcl:"project,attr"`

	// Variables contains variable definitions.
	Variables []*VariableConfig `hcl:"variable,block"`

	// Cluster describes the target Kubernetes cluster.
	Cluster *ClusterConfig `hcl:"cluster,block"`

	// Environments contains environment definitions.
	Environments []*EnvironmentConfig `hcl:"environment,block"`
}

// VariableConfig represents an HCL variable block definition
type VariableConfig struct {
	// Name is the variable name (block label)
	Name string `hcl:"name,label"`

	// Type is the variable type (string, number, bool, etc.)
	Type string `hcl:"type,optional"`

	// Sensitive marks the variable as sensitive (suppresses logging)
	Sensitive bool `hcl:"sensitive,optional"`

	// Default is the default value if not provided
	Default string `hcl:"default,optional"`

	// Env is a list of environment variable names to check for value
	Env []string `hcl:"env,optional"`

	// Description documents the variable purpose
	Description string `hcl:"description,optional"`
}

// ClusterConfig describes the cluster every environment in the file
// deploys into.
type ClusterConfig struct {
	// ID identifies the cluster on the platform.
	ID string `hcl:"id,attr"`

	// Name is the user-facing cluster name.
	Name string `hcl:"name,optional"`

	// Provider is the registered cloud provider name (e.g. "aws").
	Provider string `hcl:"provider,attr"`

	// ProviderSettings configures the provider (region, credentials).
	ProviderSettings map[string]string `hcl:"provider_settings,optional"`

	// Kubeconfig is the path to the cluster's kubeconfig.
	Kubeconfig string `hcl:"kubeconfig,attr"`

	// TemplateDir is the root of chart and terraform-module templates.
	TemplateDir string `hcl:"template_dir,attr"`

	// WorkspaceDir is where rendered per-service directories land.
	WorkspaceDir string `hcl:"workspace_dir,attr"`

	// PluginCacheDir is handed to terraform as TF_PLUGIN_CACHE_DIR.
	PluginCacheDir string `hcl:"plugin_cache_dir,optional"`
}

// EnvironmentConfig represents one environment block.
type EnvironmentConfig struct {
	// ID is the environment identifier (block label).
	ID string `hcl:"id,label"`

	// Name is the user-facing environment name. Defaults to the ID.
	Name string `hcl:"name,optional"`

	// Kind is "production" or "development".
	Kind string `hcl:"kind,attr"`

	// Expiration is an optional resource ttl, e.g. "2h".
	Expiration string `hcl:"expiration,optional"`

	// Applications are platform-built stateless workloads.
	Applications []*ApplicationConfig `hcl:"application,block"`

	// Containers are prebuilt-image stateless workloads.
	Containers []*ContainerConfig `hcl:"container,block"`

	// Databases are the environment's stateful services.
	Databases []*DatabaseConfig `hcl:"database,block"`

	// Routers expose HTTP routes onto stateless services.
	Routers []*RouterConfig `hcl:"router,block"`
}

// ApplicationConfig represents an application block.
type ApplicationConfig struct {
	// Name is the application name (block label).
	Name string `hcl:"name,label"`

	// ID is the short service identifier.
	ID string `hcl:"id,attr"`

	// LongID is an optional UUID; generated when omitted.
	LongID string `hcl:"long_id,optional"`

	// Action is the lifecycle action: create, pause, delete or nothing.
	Action string `hcl:"action,optional"`

	// Version is the application version being deployed.
	Version string `hcl:"version,optional"`

	// Image is the image reference including tag.
	Image string `hcl:"image,attr"`

	// Port is the private port the workload listens on.
	Port int `hcl:"port,optional"`

	// CPU is the per-instance CPU request in millicores.
	CPU int `hcl:"cpu,optional"`

	// RAM is the per-instance memory request in MiB.
	RAM int `hcl:"ram,optional"`

	// Instances is the replica count.
	Instances int `hcl:"instances,optional"`

	// Env contains environment variables for the workload.
	Env map[string]string `hcl:"env,optional"`

	// Storage contains persistent volume requests.
	Storage []*StorageConfig `hcl:"storage,block"`

	// Timeout bounds the helm rollout, e.g. "5m".
	Timeout string `hcl:"timeout,optional"`
}

// ContainerConfig represents a container block. Containers pull their
// image from an external registry instead of the platform build.
type ContainerConfig struct {
	Name string `hcl:"name,label"`

	ID     string `hcl:"id,attr"`
	LongID string `hcl:"long_id,optional"`
	Action string `hcl:"action,optional"`

	// RegistryURL is the registry hosting the image.
	RegistryURL string `hcl:"registry_url,attr"`

	// Image is the image reference including tag, relative to the registry.
	Image string `hcl:"image,attr"`

	Port      int               `hcl:"port,optional"`
	CPU       int               `hcl:"cpu,optional"`
	RAM       int               `hcl:"ram,optional"`
	Instances int               `hcl:"instances,optional"`
	Env       map[string]string `hcl:"env,optional"`
	Storage   []*StorageConfig  `hcl:"storage,block"`
	Timeout   string            `hcl:"timeout,optional"`
}

// DatabaseConfig represents a database block.
type DatabaseConfig struct {
	Name string `hcl:"name,label"`

	ID     string `hcl:"id,attr"`
	LongID string `hcl:"long_id,optional"`
	Action string `hcl:"action,optional"`

	// Engine is the database engine, e.g. "postgresql".
	Engine string `hcl:"engine,attr"`

	// Version is the engine version.
	Version string `hcl:"version,optional"`

	// FQDN is the stable hostname applications reach the database at.
	FQDN string `hcl:"fqdn,optional"`

	// Login and Password are the admin credentials.
	Login    string `hcl:"login,optional"`
	Password string `hcl:"password,optional"`

	// Port is the database port.
	Port int `hcl:"port,optional"`

	// DiskSize is the requested disk size in GiB.
	DiskSize int `hcl:"disk_size,optional"`

	CPU     int    `hcl:"cpu,optional"`
	RAM     int    `hcl:"ram,optional"`
	Timeout string `hcl:"timeout,optional"`
}

// RouterConfig represents a router block.
type RouterConfig struct {
	Name string `hcl:"name,label"`

	ID     string `hcl:"id,attr"`
	LongID string `hcl:"long_id,optional"`
	Action string `hcl:"action,optional"`

	// DefaultDomain is the platform-assigned domain. When omitted the
	// control plane is asked to allocate one before the pass builds.
	DefaultDomain string `hcl:"default_domain,optional"`

	// CustomDomains are user-owned domains pointing at the router.
	CustomDomains []string `hcl:"custom_domains,optional"`

	// Routes map HTTP paths to in-cluster services.
	Routes []*RouteConfig `hcl:"route,block"`

	Timeout string `hcl:"timeout,optional"`
}

// RouteConfig maps one HTTP path to a service.
type RouteConfig struct {
	// Path is the HTTP path prefix (block label).
	Path string `hcl:"path,label"`

	// Service is the target in-cluster service name.
	Service string `hcl:"service,attr"`

	// Port is the target service port.
	Port int `hcl:"port,attr"`
}

// StorageConfig represents one persistent volume request.
type StorageConfig struct {
	// Name is the volume name (block label).
	Name string `hcl:"name,label"`

	// ID is an optional volume identifier; defaults to the name.
	ID string `hcl:"id,optional"`

	// Type is the storage class, e.g. "ssd".
	Type string `hcl:"type,optional"`

	// Size is the requested size in GiB.
	Size int `hcl:"size,attr"`

	// MountPoint is where the volume mounts inside the workload.
	MountPoint string `hcl:"mount_point,attr"`
}

// GetEnvironment returns an environment by ID.
func (c *Config) GetEnvironment(id string) *EnvironmentConfig {
	for _, env := range c.Environments {
		if env.ID == id {
			return env
		}
	}
	return nil
}

// ListEnvironmentIDs returns all environment IDs in definition order.
func (c *Config) ListEnvironmentIDs() []string {
	ids := make([]string, len(c.Environments))
	for i, env := range c.Environments {
		ids[i] = env.ID
	}
	return ids
}
