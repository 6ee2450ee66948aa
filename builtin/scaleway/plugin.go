// Package scaleway registers the Scaleway cloud provider.
package scaleway

import (
	"context"
	"fmt"

	"github.com/thelaunchbay/launchbay-engine/pkg/provider"
)

// Config holds the Scaleway credentials and placement used for deployments.
type Config struct {
	// AccessKey is the Scaleway API access key.
	AccessKey string

	// SecretKey is the Scaleway API secret key.
	SecretKey string

	// ProjectID is the Scaleway project the resources belong to.
	ProjectID string

	// Region is the Scaleway region, e.g. "fr-par".
	Region string

	// Zone is the availability zone, e.g. "fr-par-1" (optional).
	Zone string
}

// Provider implements the Scaleway cloud provider.
type Provider struct {
	config *Config
}

// New builds the provider from flat settings.
func New(settings map[string]string) (provider.Provider, error) {
	return &Provider{config: &Config{
		AccessKey: settings["access_key"],
		SecretKey: settings["secret_key"],
		ProjectID: settings["project_id"],
		Region:    settings["region"],
		Zone:      settings["zone"],
	}}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string {
	return "scaleway"
}

// Region implements provider.Provider.
func (p *Provider) Region() string {
	return p.config.Region
}

// CredentialsEnvironmentVariables implements provider.Provider.
func (p *Provider) CredentialsEnvironmentVariables() []string {
	env := []string{
		fmt.Sprintf("SCW_ACCESS_KEY=%s", p.config.AccessKey),
		fmt.Sprintf("SCW_SECRET_KEY=%s", p.config.SecretKey),
		fmt.Sprintf("SCW_DEFAULT_PROJECT_ID=%s", p.config.ProjectID),
		fmt.Sprintf("SCW_DEFAULT_REGION=%s", p.config.Region),
	}
	if p.config.Zone != "" {
		env = append(env, fmt.Sprintf("SCW_DEFAULT_ZONE=%s", p.config.Zone))
	}
	return env
}

// Validate implements provider.Provider.
func (p *Provider) Validate(_ context.Context) error {
	if p.config.AccessKey == "" {
		return fmt.Errorf("access_key is required")
	}
	if p.config.SecretKey == "" {
		return fmt.Errorf("secret_key is required")
	}
	if p.config.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if p.config.Region == "" {
		return fmt.Errorf("region is required")
	}
	return nil
}

func init() {
	provider.Register("scaleway", New)
}
