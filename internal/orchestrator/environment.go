// Package orchestrator drives every service of an environment through
// its requested lifecycle action, one service at a time, aggregating
// resource requirements and surfacing the first fatal error.
package orchestrator

import (
	"fmt"

	"github.com/thelaunchbay/launchbay-engine/pkg/service"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

// Kind classifies an environment. Production routes stateful services to
// managed cloud resources; development keeps everything in-cluster.
type Kind string

const (
	Production  Kind = "production"
	Development Kind = "development"
)

// Environment owns the ordered services of one deployable environment.
type Environment struct {
	// ProjectID identifies the owning project.
	ProjectID string

	// ID identifies the environment within the project.
	ID string

	// Name is the user-facing environment name.
	Name string

	// Kind selects the stateful backend.
	Kind Kind

	// Stateful services (databases) converge before stateless ones so
	// applications find their dependencies up.
	Stateful []service.Lifecycle

	// Stateless services (applications, containers, routers) always run
	// in-cluster.
	Stateless []service.Lifecycle
}

// Namespace derives the environment's namespace. It is deterministic and
// stable for the environment's lifetime.
func (e *Environment) Namespace() string {
	return fmt.Sprintf("%s-%s", e.ProjectID, e.ID)
}

// TargetKind maps the environment kind to the stateful dispatch tag.
func (e *Environment) TargetKind() target.Kind {
	if e.Kind == Production {
		return target.ManagedServices
	}
	return target.SelfHosted
}

// Services returns every service in convergence order: stateful first,
// then stateless.
func (e *Environment) Services() []service.Lifecycle {
	out := make([]service.Lifecycle, 0, len(e.Stateful)+len(e.Stateless))
	out = append(out, e.Stateful...)
	out = append(out, e.Stateless...)
	return out
}

// RequiredResources sums the cluster capacity the environment needs:
// stateless plus stateful contributions. Production environments zero
// the stateful share, since managed services consume no cluster
// capacity.
func (e *Environment) RequiredResources() service.Resources {
	var total service.Resources
	for _, svc := range e.Stateless {
		if sizer, ok := svc.(service.Sizer); ok {
			total = total.Add(sizer.Resources())
		}
	}
	if e.Kind == Production {
		return total
	}
	for _, svc := range e.Stateful {
		if sizer, ok := svc.(service.Sizer); ok {
			total = total.Add(sizer.Resources())
		}
	}
	return total
}
