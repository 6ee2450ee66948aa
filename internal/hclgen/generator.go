// Package hclgen generates starter launchbay.hcl environment definitions.
// The output is plain HCL text the config package parses back; generation
// stays string-based so the emitted file reads like a hand-written one,
// comments included.
package hclgen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Params parameterizes one generated definition. Zero values fall back to
// sensible defaults; only Project, ClusterID and Provider are required.
type Params struct {
	// Project is the project name.
	Project string

	// ClusterID identifies the target cluster on the platform.
	ClusterID string

	// Provider is the registered cloud provider name (aws, gcp, scaleway).
	Provider string

	// Region is the provider region, stored in provider_settings.
	Region string

	// Kubeconfig is the path to the cluster's kubeconfig.
	Kubeconfig string

	// TemplateDir and WorkspaceDir locate chart templates and rendered
	// output.
	TemplateDir  string
	WorkspaceDir string

	// EnvironmentID names the generated environment block.
	EnvironmentID string

	// Kind is "production" or "development".
	Kind string

	// AppName and AppID describe the single generated application.
	AppName string
	AppID   string

	// Image is the application image reference.
	Image string

	// Port is the private port the application listens on.
	Port int

	// Instances is the replica count.
	Instances int

	// Env contains environment variables for the application.
	Env map[string]string
}

// GenerateDefinition renders params into launchbay.hcl content.
func GenerateDefinition(params Params) (string, error) {
	if params.Project == "" {
		return "", fmt.Errorf("project is required")
	}
	if params.ClusterID == "" {
		return "", fmt.Errorf("cluster ID is required")
	}
	if params.Provider == "" {
		return "", fmt.Errorf("provider is required")
	}

	if params.Kubeconfig == "" {
		params.Kubeconfig = "~/.kube/config"
	}
	if params.TemplateDir == "" {
		params.TemplateDir = "./templates"
	}
	if params.WorkspaceDir == "" {
		params.WorkspaceDir = "./workspace"
	}
	if params.EnvironmentID == "" {
		params.EnvironmentID = "dev"
	}
	if params.Kind == "" {
		params.Kind = "development"
	}
	if params.AppName == "" {
		params.AppName = params.Project
	}
	if params.AppID == "" {
		params.AppID = params.AppName
	}
	if params.Image == "" {
		params.Image = params.AppName + ":latest"
	}
	if params.Port == 0 {
		params.Port = 8080
	}
	if params.Instances == 0 {
		params.Instances = 1
	}

	var hcl strings.Builder

	hcl.WriteString(fmt.Sprintf("project = %q\n\n", params.Project))

	hcl.WriteString("cluster {\n")
	hcl.WriteString(fmt.Sprintf("  id            = %q\n", params.ClusterID))
	hcl.WriteString(fmt.Sprintf("  provider      = %q\n", params.Provider))
	if params.Region != "" {
		hcl.WriteString("  provider_settings = {\n")
		hcl.WriteString(fmt.Sprintf("    region = %q\n", params.Region))
		hcl.WriteString("  }\n")
	}
	hcl.WriteString(fmt.Sprintf("  kubeconfig    = %q\n", params.Kubeconfig))
	hcl.WriteString(fmt.Sprintf("  template_dir  = %q\n", params.TemplateDir))
	hcl.WriteString(fmt.Sprintf("  workspace_dir = %q\n", params.WorkspaceDir))
	hcl.WriteString("}\n\n")

	hcl.WriteString(fmt.Sprintf("environment %q {\n", params.EnvironmentID))
	hcl.WriteString(fmt.Sprintf("  kind = %q\n\n", params.Kind))
	hcl.WriteString(generateApplicationBlock(params))
	hcl.WriteString("}\n")

	return hcl.String(), nil
}

func generateApplicationBlock(params Params) string {
	var hcl strings.Builder

	hcl.WriteString(fmt.Sprintf("  application %q {\n", params.AppName))
	hcl.WriteString(fmt.Sprintf("    id        = %q\n", params.AppID))
	hcl.WriteString(fmt.Sprintf("    image     = %q\n", params.Image))
	hcl.WriteString(fmt.Sprintf("    port      = %d\n", params.Port))
	hcl.WriteString(fmt.Sprintf("    instances = %d\n", params.Instances))

	if len(params.Env) > 0 {
		keys := make([]string, 0, len(params.Env))
		for key := range params.Env {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		hcl.WriteString("    env = {\n")
		for _, key := range keys {
			hcl.WriteString(fmt.Sprintf("      %s = %q\n", key, params.Env[key]))
		}
		hcl.WriteString("    }\n")
	}

	hcl.WriteString("  }\n")
	return hcl.String()
}

// WriteDefinition writes the generated definition into directory as
// launchbay.hcl, creating the directory when missing, and returns the
// written path. An existing file is never overwritten.
func WriteDefinition(params Params, directory string) (string, error) {
	if directory == "" {
		return "", fmt.Errorf("directory is required")
	}

	content, err := GenerateDefinition(params)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(directory, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(directory, "launchbay.hcl")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("definition already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write definition: %w", err)
	}

	return path, nil
}
