// Package registry verifies container image references before an
// orchestration pass mutates anything: a typo in an image tag should
// fail the preflight, not a half-deployed environment.
package registry

import (
	"context"
	"fmt"
	"time"

	registrytypes "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/hashicorp/go-hclog"
)

// inspectTimeout bounds one manifest lookup.
const inspectTimeout = 15 * time.Second

// APIClient is the docker surface the checker needs. Satisfied by
// *client.Client.
type APIClient interface {
	DistributionInspect(ctx context.Context, image, encodedRegistryAuth string) (registrytypes.DistributionInspect, error)
	Close() error
}

// ClientFactory opens a docker API client.
type ClientFactory func() (APIClient, error)

func defaultClientFactory() (APIClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return cli, nil
}

// Checker resolves image manifests through the local docker daemon.
type Checker struct {
	newClient ClientFactory
	logger    hclog.Logger
}

// Option customizes checker behavior.
type Option func(*Checker)

// WithClientFactory overrides how docker clients are opened.
func WithClientFactory(factory ClientFactory) Option {
	return func(c *Checker) {
		c.newClient = factory
	}
}

// NewChecker builds a Checker.
func NewChecker(logger hclog.Logger, opts ...Option) *Checker {
	if logger == nil {
		logger = hclog.Default()
	}
	c := &Checker{newClient: defaultClientFactory, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImageExists verifies that the image reference resolves to a manifest
// in its registry. The failure is user-actionable: the reference is
// wrong or the registry needs credentials.
func (c *Checker) ImageExists(ctx context.Context, image string) error {
	if image == "" {
		return fmt.Errorf("image reference is required")
	}

	cli, err := c.newClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	inspect, err := cli.DistributionInspect(ctx, image, "")
	if err != nil {
		return fmt.Errorf("image %s cannot be resolved - check the image name, tag and registry credentials: %w", image, err)
	}

	c.logger.Debug("image manifest resolved", "image", image, "digest", string(inspect.Descriptor.Digest))
	return nil
}

// VerifyAll checks every image and returns the first failure.
func (c *Checker) VerifyAll(ctx context.Context, images []string) error {
	for _, image := range images {
		if err := c.ImageExists(ctx, image); err != nil {
			return err
		}
		c.logger.Info("image verified", "image", image)
	}
	return nil
}
