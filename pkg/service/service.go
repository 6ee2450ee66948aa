// Package service defines the lifecycle model every deployable implements:
// the action vocabulary, the three hook phases, and the capability table
// declaring which (kind, action) pairs are supported.
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/helm"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

// Kind identifies what sort of workload a service is.
type Kind string

const (
	KindApplication Kind = "application"
	KindContainer   Kind = "container"
	KindDatabase    Kind = "database"
	KindRouter      Kind = "router"
)

// Action is a requested lifecycle transition.
type Action string

const (
	ActionCreate  Action = "create"
	ActionPause   Action = "pause"
	ActionDelete  Action = "delete"
	ActionNothing Action = "nothing"

	// Extended stateful actions. Declared first-class so requests for
	// them fail uniformly through the capability table instead of
	// scattered unimplemented bodies.
	ActionBackup    Action = "backup"
	ActionClone     Action = "clone"
	ActionUpgrade   Action = "upgrade"
	ActionDowngrade Action = "downgrade"
)

// Phase is one hook of an action's triple: run does the work, check
// verifies post-conditions, error compensates after a failure.
type Phase string

const (
	PhaseRun   Phase = "run"
	PhaseCheck Phase = "check"
	PhaseError Phase = "error"
)

// ParseAction converts the wire/CLI spelling of an action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCreate, ActionPause, ActionDelete, ActionNothing,
		ActionBackup, ActionClone, ActionUpgrade, ActionDowngrade:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action: %q", s)
}

// capabilities maps each kind to its supported actions. ActionNothing is
// universally supported and invokes no hooks.
var capabilities = map[Kind]map[Action]bool{
	KindApplication: {
		ActionCreate: true, ActionPause: true, ActionDelete: true, ActionNothing: true,
	},
	KindContainer: {
		ActionCreate: true, ActionPause: true, ActionDelete: true, ActionNothing: true,
	},
	KindDatabase: {
		ActionCreate: true, ActionPause: true, ActionDelete: true, ActionNothing: true,
	},
	KindRouter: {
		ActionCreate: true, ActionPause: true, ActionDelete: true, ActionNothing: true,
	},
}

// Supported reports whether kind implements action.
func Supported(kind Kind, action Action) bool {
	return capabilities[kind][action]
}

// SupportedActions returns the actions kind implements, sorted.
func SupportedActions(kind Kind) []Action {
	actions := make([]Action, 0, len(capabilities[kind]))
	for action := range capabilities[kind] {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// NotSupportedError builds the uniform error for an unsupported pair.
func NotSupportedError(kind Kind, action Action) error {
	return fmt.Errorf("%s does not support action %q (supported: %v)", kind, action, SupportedActions(kind))
}

// Service is the identity every deployable exposes.
type Service interface {
	// ID is the platform identifier, stable across executions.
	ID() string

	// Name is the user-facing name.
	Name() string

	// Kind reports the workload sort.
	Kind() Kind

	// Action is the transition requested for the current orchestration
	// pass.
	Action() Action

	// Scope attributes errors and progress to this service instance.
	Scope() engine.Scope
}

// Lifecycle executes hook phases. Implementations dispatch on (action,
// phase) internally; the orchestrator guarantees check only runs after a
// successful run phase, and error only after a failure.
type Lifecycle interface {
	Service

	// Execute runs one hook phase of one action against the target.
	Execute(ctx context.Context, tgt *target.Target, action Action, phase Phase) error
}

// Stateless reports whether the kind always deploys through helm.
// Stateful kinds route through terraform when the target is managed.
func Stateless(kind Kind) bool {
	return kind != KindDatabase
}

// ReleaseName computes the helm release name for a service, e.g.
// "application-storefront-za8fd219", truncated to the engine-wide limit.
func ReleaseName(s Service) string {
	return helm.ReleaseName(string(s.Kind()), s.Name(), s.ID())
}

// Selector returns the label selector matching the service's pods.
func Selector(s Service) string {
	return fmt.Sprintf("%sId=%s", s.Kind(), s.ID())
}
