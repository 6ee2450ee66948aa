package config

import (
	"context"
	"fmt"
)

// DomainResolver allocates a default domain for a router. Satisfied by
// the control plane client.
type DomainResolver interface {
	AskDomain(ctx context.Context, serviceID string) (string, error)
}

// ResolveRouterDomains fills in the default domain of every router that
// omits default_domain, asking the control plane for the platform
// allocation. Routers declaring a domain keep it. Without a resolver an
// omitted domain is a configuration error.
func ResolveRouterDomains(ctx context.Context, env *EnvironmentConfig, resolver DomainResolver) error {
	for _, router := range env.Routers {
		if router.DefaultDomain != "" {
			continue
		}
		if resolver == nil {
			return fmt.Errorf("router %q: default_domain is omitted and no control plane is configured to allocate one", router.Name)
		}
		domain, err := resolver.AskDomain(ctx, router.ID)
		if err != nil {
			return fmt.Errorf("router %q: failed to resolve default domain: %w", router.Name, err)
		}
		if domain == "" {
			return fmt.Errorf("router %q: control plane allocated an empty domain", router.Name)
		}
		router.DefaultDomain = domain
	}
	return nil
}
