package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	hclfunc "github.com/thelaunchbay/launchbay-engine/internal/hclfunc"
)

// ParseFile parses an HCL environment definition and returns a Config
func ParseFile(path string) (*Config, error) {
	// Resolve absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("environment definition not found: %s", absPath)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(absPath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	// PASS 1: Decode with empty context to extract variable definitions
	var partialConfig Config
	emptyCtx := hclfunc.NewEvalContext(nil)
	diags = gohcl.DecodeBody(file.Body, emptyCtx, &partialConfig)
	// Diagnostics are expected here from unresolved var.X references;
	// pass 1 only needs the variable definitions.

	resolvedVars := resolveVariables(partialConfig.Variables)

	// PASS 2: Re-decode with resolved variables in context
	var config Config
	evalCtx := hclfunc.NewEvalContextWithVars(resolvedVars)
	diags = gohcl.DecodeBody(file.Body, evalCtx, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode environment definition: %s", diags.Error())
	}

	processEnvVars(&config)

	return &config, nil
}

// ParseBytes parses an HCL environment definition from a byte slice
func ParseBytes(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}

	var partialConfig Config
	emptyCtx := hclfunc.NewEvalContext(nil)
	diags = gohcl.DecodeBody(file.Body, emptyCtx, &partialConfig)

	resolvedVars := resolveVariables(partialConfig.Variables)

	var config Config
	evalCtx := hclfunc.NewEvalContextWithVars(resolvedVars)
	diags = gohcl.DecodeBody(file.Body, evalCtx, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode environment definition: %s", diags.Error())
	}

	processEnvVars(&config)

	return &config, nil
}

// processEnvVars expands env("VAR") and ${VAR} references in the string
// fields where operators put secrets and machine-specific paths.
func processEnvVars(config *Config) {
	if config.Cluster != nil {
		config.Cluster.Kubeconfig = expandEnvVars(config.Cluster.Kubeconfig)
		for key, value := range config.Cluster.ProviderSettings {
			config.Cluster.ProviderSettings[key] = expandEnvVars(value)
		}
	}

	for _, env := range config.Environments {
		for _, app := range env.Applications {
			expandEnvMap(app.Env)
		}
		for _, container := range env.Containers {
			expandEnvMap(container.Env)
		}
		for _, db := range env.Databases {
			db.Login = expandEnvVars(db.Login)
			db.Password = expandEnvVars(db.Password)
		}
	}
}

func expandEnvMap(m map[string]string) {
	for key, value := range m {
		m[key] = expandEnvVars(value)
	}
}

// resolveVariables resolves variable values from their definitions
// It checks environment variables specified in the Env field
func resolveVariables(variables []*VariableConfig) map[string]string {
	resolved := make(map[string]string)

	for _, v := range variables {
		if v == nil {
			continue
		}

		var value string

		// Check environment variables in order
		for _, envName := range v.Env {
			if envVal := os.Getenv(envName); envVal != "" {
				value = envVal
				break
			}
		}

		// Fall back to default if no env var found
		if value == "" && v.Default != "" {
			value = v.Default
		}

		resolved[v.Name] = value
	}

	return resolved
}

// expandEnvVars expands environment variable references in a string
// Supports both ${VAR} and env("VAR") syntax
func expandEnvVars(s string) string {
	// Handle env("VAR") syntax
	if strings.Contains(s, "env(") {
		// Match env("VAR_NAME") or env('VAR_NAME')
		re := regexp.MustCompile(`env\(["']([^"']+)["']\)`)
		s = re.ReplaceAllStringFunc(s, func(match string) string {
			submatch := re.FindStringSubmatch(match)
			if len(submatch) > 1 {
				return os.Getenv(submatch[1])
			}
			return match
		})
	}

	// Handle ${VAR} syntax
	return os.ExpandEnv(s)
}

// LoadConfigFile is a convenience function that parses and validates an
// environment definition
func LoadConfigFile(path string) (*Config, error) {
	config, err := ParseFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}
