// Package gcp registers the Google Cloud Platform cloud provider.
package gcp

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"

	"github.com/thelaunchbay/launchbay-engine/pkg/provider"
)

// scope requested when checking the supplied credentials.
const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Config holds the GCP credentials and placement used for deployments.
type Config struct {
	// CredentialsJSON is the service-account key file content.
	CredentialsJSON string

	// Project is the GCP project ID. Falls back to the project embedded
	// in the credentials when empty.
	Project string

	// Region is the GCP region, e.g. "europe-west1".
	Region string
}

// Provider implements the GCP cloud provider.
type Provider struct {
	config *Config
}

// New builds the provider from flat settings.
func New(settings map[string]string) (provider.Provider, error) {
	return &Provider{config: &Config{
		CredentialsJSON: settings["credentials_json"],
		Project:         settings["project"],
		Region:          settings["region"],
	}}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string {
	return "gcp"
}

// Region implements provider.Provider.
func (p *Provider) Region() string {
	return p.config.Region
}

// CredentialsEnvironmentVariables implements provider.Provider. The
// variables are understood by terraform's google provider and gcloud.
func (p *Provider) CredentialsEnvironmentVariables() []string {
	return []string{
		fmt.Sprintf("GOOGLE_CREDENTIALS=%s", p.config.CredentialsJSON),
		fmt.Sprintf("GOOGLE_PROJECT=%s", p.project()),
		fmt.Sprintf("GOOGLE_REGION=%s", p.config.Region),
	}
}

func (p *Provider) project() string {
	if p.config.Project != "" {
		return p.config.Project
	}
	creds, err := google.CredentialsFromJSON(context.Background(), []byte(p.config.CredentialsJSON), cloudPlatformScope)
	if err != nil {
		return ""
	}
	return creds.ProjectID
}

// Validate implements provider.Provider. The supplied key material is
// parsed through the oauth2 credential loader, so malformed or truncated
// key files fail here instead of midway through a terraform apply.
func (p *Provider) Validate(ctx context.Context) error {
	if p.config.CredentialsJSON == "" {
		return fmt.Errorf("credentials_json is required")
	}
	if p.config.Region == "" {
		return fmt.Errorf("region is required")
	}

	creds, err := google.CredentialsFromJSON(ctx, []byte(p.config.CredentialsJSON), cloudPlatformScope)
	if err != nil {
		return fmt.Errorf("invalid google credentials: %w", err)
	}
	if p.config.Project == "" && creds.ProjectID == "" {
		return fmt.Errorf("project is required when the credentials carry no project")
	}
	return nil
}

func init() {
	provider.Register("gcp", New)
}
