package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/thelaunchbay/launchbay-engine/internal/orchestrator"
	"github.com/thelaunchbay/launchbay-engine/internal/services"
	"github.com/thelaunchbay/launchbay-engine/pkg/provider"
	"github.com/thelaunchbay/launchbay-engine/pkg/render"
	"github.com/thelaunchbay/launchbay-engine/pkg/service"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

// BuildTarget assembles the deployment target for one orchestration pass
// over the given environment. The provider named by the cluster block
// must be registered.
func BuildTarget(cfg *Config, envCfg *EnvironmentConfig, executionID string, dryRun bool) (*target.Target, error) {
	prov, err := provider.New(cfg.Cluster.Provider, cfg.Cluster.ProviderSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cloud provider: %w", err)
	}

	env, err := BuildEnvironment(cfg, envCfg)
	if err != nil {
		return nil, err
	}

	var expiration time.Duration
	if envCfg.Expiration != "" {
		expiration, err = time.ParseDuration(envCfg.Expiration)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration: %w", err)
		}
	}

	return &target.Target{
		Kind: env.TargetKind(),
		Cluster: target.Cluster{
			ID:             cfg.Cluster.ID,
			Name:           cfg.Cluster.Name,
			KubeconfigPath: cfg.Cluster.Kubeconfig,
			Provider:       prov,
			TemplateDir:    cfg.Cluster.TemplateDir,
			WorkspaceDir:   cfg.Cluster.WorkspaceDir,
			PluginCacheDir: cfg.Cluster.PluginCacheDir,
		},
		EnvironmentID:      envCfg.ID,
		Namespace:          env.Namespace(),
		ExecutionID:        executionID,
		DryRun:             dryRun,
		ResourceExpiration: expiration,
	}, nil
}

// BuildEnvironment converts an environment block into the orchestrator
// aggregate, instantiating every declared service.
func BuildEnvironment(cfg *Config, envCfg *EnvironmentConfig) (*orchestrator.Environment, error) {
	name := envCfg.Name
	if name == "" {
		name = envCfg.ID
	}

	env := &orchestrator.Environment{
		ProjectID: cfg.Project,
		ID:        envCfg.ID,
		Name:      name,
		Kind:      orchestrator.Kind(envCfg.Kind),
	}

	for _, db := range envCfg.Databases {
		svc, err := buildDatabase(db)
		if err != nil {
			return nil, fmt.Errorf("database %q: %w", db.Name, err)
		}
		env.Stateful = append(env.Stateful, svc)
	}

	for _, app := range envCfg.Applications {
		svc, err := buildApplication(app)
		if err != nil {
			return nil, fmt.Errorf("application %q: %w", app.Name, err)
		}
		env.Stateless = append(env.Stateless, svc)
	}

	for _, container := range envCfg.Containers {
		svc, err := buildContainer(container)
		if err != nil {
			return nil, fmt.Errorf("container %q: %w", container.Name, err)
		}
		env.Stateless = append(env.Stateless, svc)
	}

	for _, router := range envCfg.Routers {
		svc, err := buildRouter(router)
		if err != nil {
			return nil, fmt.Errorf("router %q: %w", router.Name, err)
		}
		env.Stateless = append(env.Stateless, svc)
	}

	return env, nil
}

func buildApplication(app *ApplicationConfig) (service.Lifecycle, error) {
	action, err := buildAction(app.Action)
	if err != nil {
		return nil, err
	}
	longID, err := buildLongID(app.LongID)
	if err != nil {
		return nil, err
	}
	timeout, err := buildTimeout(app.Timeout)
	if err != nil {
		return nil, err
	}

	return services.NewApplication(services.ApplicationConfig{
		ID:                   app.ID,
		LongID:               longID,
		Name:                 app.Name,
		Action:               action,
		Version:              app.Version,
		ImageNameWithTag:     app.Image,
		PrivatePort:          app.Port,
		CPUMilli:             app.CPU,
		RAMInMiB:             app.RAM,
		Instances:            app.Instances,
		EnvironmentVariables: buildEnvVars(app.Env),
		Storage:              buildStorage(app.Storage),
		HelmTimeout:          timeout,
	}), nil
}

func buildContainer(container *ContainerConfig) (service.Lifecycle, error) {
	action, err := buildAction(container.Action)
	if err != nil {
		return nil, err
	}
	longID, err := buildLongID(container.LongID)
	if err != nil {
		return nil, err
	}
	timeout, err := buildTimeout(container.Timeout)
	if err != nil {
		return nil, err
	}

	return services.NewContainer(services.ContainerConfig{
		ID:                   container.ID,
		LongID:               longID,
		Name:                 container.Name,
		Action:               action,
		RegistryURL:          container.RegistryURL,
		ImageNameWithTag:     container.Image,
		PrivatePort:          container.Port,
		CPUMilli:             container.CPU,
		RAMInMiB:             container.RAM,
		Instances:            container.Instances,
		EnvironmentVariables: buildEnvVars(container.Env),
		Storage:              buildStorage(container.Storage),
		HelmTimeout:          timeout,
	}), nil
}

func buildDatabase(db *DatabaseConfig) (service.Lifecycle, error) {
	action, err := buildAction(db.Action)
	if err != nil {
		return nil, err
	}
	longID, err := buildLongID(db.LongID)
	if err != nil {
		return nil, err
	}
	timeout, err := buildTimeout(db.Timeout)
	if err != nil {
		return nil, err
	}

	return services.NewDatabase(services.DatabaseConfig{
		ID:            db.ID,
		LongID:        longID,
		Name:          db.Name,
		Action:        action,
		Engine:        db.Engine,
		Version:       db.Version,
		FQDN:          db.FQDN,
		Login:         db.Login,
		Password:      db.Password,
		Port:          db.Port,
		DiskSizeInGiB: db.DiskSize,
		CPUMilli:      db.CPU,
		RAMInMiB:      db.RAM,
		HelmTimeout:   timeout,
	}), nil
}

func buildRouter(router *RouterConfig) (service.Lifecycle, error) {
	action, err := buildAction(router.Action)
	if err != nil {
		return nil, err
	}
	longID, err := buildLongID(router.LongID)
	if err != nil {
		return nil, err
	}
	timeout, err := buildTimeout(router.Timeout)
	if err != nil {
		return nil, err
	}
	if router.DefaultDomain == "" {
		return nil, fmt.Errorf("no default domain: declare default_domain or resolve one through the control plane")
	}

	routes := make([]render.Route, 0, len(router.Routes))
	for _, route := range router.Routes {
		routes = append(routes, render.Route{
			Path:        route.Path,
			ServiceName: route.Service,
			ServicePort: route.Port,
		})
	}

	return services.NewRouter(services.RouterConfig{
		ID:            router.ID,
		LongID:        longID,
		Name:          router.Name,
		Action:        action,
		DefaultDomain: router.DefaultDomain,
		CustomDomains: router.CustomDomains,
		Routes:        routes,
		HelmTimeout:   timeout,
	}), nil
}

// buildAction defaults an omitted action to create: a service declared
// in the definition should exist.
func buildAction(raw string) (service.Action, error) {
	if raw == "" {
		return service.ActionCreate, nil
	}
	return service.ParseAction(raw)
}

func buildLongID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid long_id: %w", err)
	}
	return id, nil
}

func buildTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	return d, nil
}

// buildEnvVars converts an env map to a sorted slice so rendered charts
// are deterministic across runs.
func buildEnvVars(m map[string]string) []render.EnvVar {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]render.EnvVar, 0, len(keys))
	for _, k := range keys {
		out = append(out, render.EnvVar{Key: k, Value: m[k]})
	}
	return out
}

func buildStorage(blocks []*StorageConfig) []render.Storage {
	if len(blocks) == 0 {
		return nil
	}
	out := make([]render.Storage, 0, len(blocks))
	for _, s := range blocks {
		id := s.ID
		if id == "" {
			id = s.Name
		}
		out = append(out, render.Storage{
			ID:          id,
			Name:        s.Name,
			StorageType: s.Type,
			SizeInGiB:   s.Size,
			MountPoint:  s.MountPoint,
		})
	}
	return out
}
