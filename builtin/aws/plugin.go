// Package aws registers the Amazon Web Services cloud provider.
package aws

import (
	"context"
	"fmt"

	"github.com/thelaunchbay/launchbay-engine/pkg/provider"
)

// Config holds the AWS credentials and region used for deployments.
type Config struct {
	// AccessKeyID is the AWS access key ID.
	AccessKeyID string

	// SecretAccessKey is the AWS secret access key.
	SecretAccessKey string

	// SessionToken is an optional STS session token.
	SessionToken string

	// Region is the AWS region, e.g. "eu-west-3".
	Region string
}

// Provider implements the AWS cloud provider.
type Provider struct {
	config *Config
}

// New builds the provider from flat settings.
func New(settings map[string]string) (provider.Provider, error) {
	return &Provider{config: &Config{
		AccessKeyID:     settings["access_key_id"],
		SecretAccessKey: settings["secret_access_key"],
		SessionToken:    settings["session_token"],
		Region:          settings["region"],
	}}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string {
	return "aws"
}

// Region implements provider.Provider.
func (p *Provider) Region() string {
	return p.config.Region
}

// CredentialsEnvironmentVariables implements provider.Provider. The
// variables are understood by terraform's AWS provider, the AWS CLI and
// IAM-authenticated kubeconfigs alike.
func (p *Provider) CredentialsEnvironmentVariables() []string {
	env := []string{
		fmt.Sprintf("AWS_ACCESS_KEY_ID=%s", p.config.AccessKeyID),
		fmt.Sprintf("AWS_SECRET_ACCESS_KEY=%s", p.config.SecretAccessKey),
		fmt.Sprintf("AWS_DEFAULT_REGION=%s", p.config.Region),
	}
	if p.config.SessionToken != "" {
		env = append(env, fmt.Sprintf("AWS_SESSION_TOKEN=%s", p.config.SessionToken))
	}
	return env
}

// Validate implements provider.Provider.
func (p *Provider) Validate(_ context.Context) error {
	if p.config.AccessKeyID == "" {
		return fmt.Errorf("access_key_id is required")
	}
	if p.config.SecretAccessKey == "" {
		return fmt.Errorf("secret_access_key is required")
	}
	if p.config.Region == "" {
		return fmt.Errorf("region is required")
	}
	return nil
}

func init() {
	provider.Register("aws", New)
}
