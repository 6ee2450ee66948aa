package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/thelaunchbay/launchbay-engine/pkg/service"
)

// Validate validates an environment definition and returns an error if invalid
func Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration is nil")
	}

	if config.Project == "" {
		return fmt.Errorf("project name is required")
	}

	if !isValidName(config.Project) {
		return fmt.Errorf("project name must contain only alphanumeric characters, hyphens, and underscores")
	}

	if config.Cluster == nil {
		return fmt.Errorf("a cluster block is required")
	}
	if err := validateCluster(config.Cluster); err != nil {
		return fmt.Errorf("cluster validation failed: %w", err)
	}

	if len(config.Environments) == 0 {
		return fmt.Errorf("at least one environment must be defined")
	}

	seen := make(map[string]bool)
	for _, env := range config.Environments {
		if seen[env.ID] {
			return fmt.Errorf("duplicate environment id: %q", env.ID)
		}
		seen[env.ID] = true

		if err := validateEnvironment(env); err != nil {
			return fmt.Errorf("environment %q validation failed: %w", env.ID, err)
		}
	}

	return nil
}

func validateCluster(cluster *ClusterConfig) error {
	if cluster.ID == "" {
		return fmt.Errorf("cluster id is required")
	}
	if cluster.Provider == "" {
		return fmt.Errorf("cluster provider is required")
	}
	if cluster.Kubeconfig == "" {
		return fmt.Errorf("cluster kubeconfig is required")
	}
	if cluster.TemplateDir == "" {
		return fmt.Errorf("cluster template_dir is required")
	}
	if cluster.WorkspaceDir == "" {
		return fmt.Errorf("cluster workspace_dir is required")
	}
	return nil
}

func validateEnvironment(env *EnvironmentConfig) error {
	if env.ID == "" {
		return fmt.Errorf("environment id is required")
	}
	if !isValidName(env.ID) {
		return fmt.Errorf("environment id must contain only alphanumeric characters, hyphens, and underscores")
	}

	switch env.Kind {
	case "production", "development":
	default:
		return fmt.Errorf("environment kind must be \"production\" or \"development\", got %q", env.Kind)
	}

	if env.Expiration != "" {
		if _, err := time.ParseDuration(env.Expiration); err != nil {
			return fmt.Errorf("invalid expiration: %w", err)
		}
	}

	total := len(env.Applications) + len(env.Containers) + len(env.Databases) + len(env.Routers)
	if total == 0 {
		return fmt.Errorf("at least one service must be defined")
	}

	ids := make(map[string]bool)
	claim := func(id string) error {
		if id == "" {
			return fmt.Errorf("service id is required")
		}
		if ids[id] {
			return fmt.Errorf("duplicate service id: %q", id)
		}
		ids[id] = true
		return nil
	}

	for _, app := range env.Applications {
		if err := claim(app.ID); err != nil {
			return err
		}
		if err := validateService(app.Name, app.Action, app.Timeout); err != nil {
			return err
		}
		if app.Image == "" {
			return fmt.Errorf("application %q: image is required", app.Name)
		}
	}

	for _, container := range env.Containers {
		if err := claim(container.ID); err != nil {
			return err
		}
		if err := validateService(container.Name, container.Action, container.Timeout); err != nil {
			return err
		}
		if container.RegistryURL == "" {
			return fmt.Errorf("container %q: registry_url is required", container.Name)
		}
		if container.Image == "" {
			return fmt.Errorf("container %q: image is required", container.Name)
		}
	}

	for _, db := range env.Databases {
		if err := claim(db.ID); err != nil {
			return err
		}
		if err := validateService(db.Name, db.Action, db.Timeout); err != nil {
			return err
		}
		if db.Engine == "" {
			return fmt.Errorf("database %q: engine is required", db.Name)
		}
	}

	for _, router := range env.Routers {
		if err := claim(router.ID); err != nil {
			return err
		}
		if err := validateService(router.Name, router.Action, router.Timeout); err != nil {
			return err
		}
		for _, route := range router.Routes {
			if route.Service == "" {
				return fmt.Errorf("router %q: route %q needs a service", router.Name, route.Path)
			}
			if route.Port <= 0 {
				return fmt.Errorf("router %q: route %q needs a positive port", router.Name, route.Path)
			}
		}
	}

	return nil
}

func validateService(name, action, timeout string) error {
	if name == "" {
		return fmt.Errorf("service name is required")
	}
	if !isValidName(name) {
		return fmt.Errorf("service name %q must contain only alphanumeric characters, hyphens, and underscores", name)
	}
	if action != "" {
		if _, err := service.ParseAction(action); err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}
	}
	if timeout != "" {
		if _, err := time.ParseDuration(timeout); err != nil {
			return fmt.Errorf("service %q: invalid timeout: %w", name, err)
		}
	}
	return nil
}

// isValidName checks if a name contains only valid characters
func isValidName(name string) bool {
	if name == "" {
		return false
	}

	for _, ch := range name {
		if !isAlphaNumericOrDash(ch) {
			return false
		}
	}

	return true
}

// isAlphaNumericOrDash checks if a character is alphanumeric or a dash
func isAlphaNumericOrDash(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' ||
		ch == '_'
}

// FormatError formats a validation error with helpful context
func FormatError(err error, configPath string) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	sb.WriteString(fmt.Sprintf("  File: %s\n", configPath))
	sb.WriteString(fmt.Sprintf("  Error: %s\n", err.Error()))

	return sb.String()
}
