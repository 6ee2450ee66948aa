// Package provider defines the cloud-provider capability surface and the
// registry builtin providers install themselves into. Credentials are
// exposed as environment variables rather than recovered from concrete
// provider types, so the deploy path never needs to know which cloud it is
// talking to.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Provider is one cloud platform the engine can deploy to.
type Provider interface {
	// Name is the registry key, e.g. "aws".
	Name() string

	// Region returns the configured provider region.
	Region() string

	// CredentialsEnvironmentVariables returns KEY=value pairs injected
	// into every helm, terraform and kubectl invocation.
	CredentialsEnvironmentVariables() []string

	// Validate checks the configuration is complete and usable.
	Validate(ctx context.Context) error
}

// Factory builds a configured Provider from flat settings, typically
// decoded from a cluster block in the environment definition.
type Factory func(settings map[string]string) (Provider, error)

// Registry manages the collection of registered provider factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Global registry instance
var globalRegistry = &Registry{
	factories: make(map[string]Factory),
}

// Register registers a provider factory in the global registry.
func Register(name string, factory Factory) {
	globalRegistry.Register(name, factory)
}

// New builds a provider from the global registry.
func New(name string, settings map[string]string) (Provider, error) {
	return globalRegistry.New(name, settings)
}

// List returns all registered provider names from the global registry.
func List() []string {
	return globalRegistry.List()
}

// Register registers a provider factory in the registry.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if factory == nil {
		return
	}
	r.factories[name] = factory
}

// New builds a provider by name.
func (r *Registry) New(name string, settings map[string]string) (Provider, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("cloud provider not found: %s (registered: %v)", name, r.List())
	}
	return factory(settings)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
