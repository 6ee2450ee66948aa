// Package services holds the concrete deployables the orchestrator
// drives: applications, containers, routers and databases. Each one maps
// lifecycle (action, phase) pairs onto the shared deployment algorithms.
package services

import (
	"context"
	"io"

	"github.com/thelaunchbay/launchbay-engine/internal/deploy"
	"github.com/thelaunchbay/launchbay-engine/pkg/service"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

// DeployerFactory builds the deployment algorithms one service runs
// against a target. Tests inject factories returning deployers over
// fake executors.
type DeployerFactory func(tgt *target.Target, svc service.Service) *deploy.Deployer

// defaultDeployerFactory connects the target's log sink, when present,
// so tool output is streamed attributed to the executing service.
func defaultDeployerFactory(tgt *target.Target, svc service.Service) *deploy.Deployer {
	var opts []deploy.Option
	if tgt.LogSink != nil {
		serviceID := svc.ID()
		opts = append(opts, deploy.WithToolOutput(func(tool string) io.Writer {
			return tgt.LogSink(serviceID, tool)
		}))
	}
	return deploy.New(tgt, opts...)
}

// hook is one phase implementation of one action.
type hook func(ctx context.Context, d *deploy.Deployer) error

// hookTable maps (action, phase) to implementations. Missing entries are
// deliberate no-ops: the action is supported but the phase has nothing to
// do (e.g. pause has no post-condition to verify).
type hookTable map[service.Action]map[service.Phase]hook

// dispatch runs exactly one hook. ActionNothing runs none; unsupported
// actions fail uniformly through the capability table.
func dispatch(ctx context.Context, d *deploy.Deployer, kind service.Kind, table hookTable, action service.Action, phase service.Phase) error {
	if action == service.ActionNothing {
		return nil
	}
	if !service.Supported(kind, action) {
		return service.NotSupportedError(kind, action)
	}
	h := table[action][phase]
	if h == nil {
		return nil
	}
	return h(ctx, d)
}
