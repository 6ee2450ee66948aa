package dispatch

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/thelaunchbay/launchbay-engine/internal/config"
	"github.com/thelaunchbay/launchbay-engine/internal/orchestrator"
	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/events"
	"github.com/thelaunchbay/launchbay-engine/pkg/service"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

// RunFunc executes one orchestration pass. Injectable for tests.
type RunFunc func(ctx context.Context, tgt *target.Target, env *orchestrator.Environment) error

// Handler turns decoded tasks into orchestration passes and reports
// their outcome as deployment events.
type Handler struct {
	logger    hclog.Logger
	publisher events.Publisher
	domains   config.DomainResolver
	run       RunFunc
}

// HandlerOption customizes handler behavior.
type HandlerOption func(*Handler)

// WithPublisher emits deployment lifecycle events for each task.
func WithPublisher(pub events.Publisher) HandlerOption {
	return func(h *Handler) {
		h.publisher = pub
	}
}

// WithDomainResolver allocates default domains for routers that omit
// one in the carried definition.
func WithDomainResolver(r config.DomainResolver) HandlerOption {
	return func(h *Handler) {
		h.domains = r
	}
}

// WithRunFunc overrides how the orchestration pass runs.
func WithRunFunc(run RunFunc) HandlerOption {
	return func(h *Handler) {
		h.run = run
	}
}

// NewHandler builds a task handler.
func NewHandler(logger hclog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = hclog.Default()
	}
	h := &Handler{logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	if h.run == nil {
		h.run = func(ctx context.Context, tgt *target.Target, env *orchestrator.Environment) error {
			return orchestrator.New(orchestrator.WithLogger(h.logger)).Run(ctx, tgt, env)
		}
	}
	return h
}

// Handle executes one task end to end: decode the carried definition,
// apply the task's action to every service, run the orchestrator and
// publish the outcome.
func (h *Handler) Handle(ctx context.Context, task Task) error {
	log := h.logger.With("task", string(task.Type), "execution_id", task.ExecutionID, "environment", task.EnvironmentID)
	log.Info("handling task", "attempt", int(task.Attempt), "requested_by", string(task.RequestedBy))

	defBytes, err := task.DefinitionBytes()
	if err != nil {
		return err
	}

	cfg, err := config.ParseBytes(defBytes, "definition.hcl")
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	envCfg := cfg.GetEnvironment(task.EnvironmentID)
	if envCfg == nil {
		return fmt.Errorf("environment %s not found in definition (available: %v)",
			task.EnvironmentID, cfg.ListEnvironmentIDs())
	}

	applyTaskAction(envCfg, task.Type)

	if err := config.ResolveRouterDomains(ctx, envCfg, h.domains); err != nil {
		return err
	}

	env, err := config.BuildEnvironment(cfg, envCfg)
	if err != nil {
		return err
	}
	tgt, err := config.BuildTarget(cfg, envCfg, task.ExecutionID, task.DryRun)
	if err != nil {
		return err
	}

	h.publish(func(pub events.Publisher) error {
		return pub.PublishDeploymentEvent(events.SubjectDeploymentStarted, events.DeploymentEvent{
			ExecutionID:   task.ExecutionID,
			EnvironmentID: task.EnvironmentID,
			Status:        events.StatusInProgress,
		})
	})

	runErr := h.run(ctx, tgt, env)
	if runErr != nil {
		h.publish(func(pub events.Publisher) error {
			event := events.DeploymentEvent{
				ExecutionID:   task.ExecutionID,
				EnvironmentID: task.EnvironmentID,
				Status:        events.StatusFailed,
				Message:       runErr.Error(),
			}
			if engErr, ok := engine.AsError(runErr); ok {
				event.Scope = engErr.Scope.String()
			}
			return pub.PublishDeploymentEvent(events.SubjectDeploymentFailed, event)
		})
		return runErr
	}

	h.publish(func(pub events.Publisher) error {
		return pub.PublishDeploymentEvent(events.SubjectDeploymentSucceeded, events.DeploymentEvent{
			ExecutionID:   task.ExecutionID,
			EnvironmentID: task.EnvironmentID,
			Status:        events.StatusSucceeded,
		})
	})

	if task.Type == TaskDeleteEnvironment {
		h.publish(func(pub events.Publisher) error {
			return pub.PublishDeploymentEvent(events.SubjectEnvironmentDestroyed, events.DeploymentEvent{
				ExecutionID:   task.ExecutionID,
				EnvironmentID: task.EnvironmentID,
				Status:        events.StatusSucceeded,
			})
		})
	}

	log.Info("task completed")
	return nil
}

// publish runs one publish attempt, dropping failures: losing an event
// must not fail the pass it describes.
func (h *Handler) publish(send func(events.Publisher) error) {
	if h.publisher == nil {
		return
	}
	if err := send(h.publisher); err != nil {
		h.logger.Warn("failed to publish deployment event", "error", err)
	}
}

// applyTaskAction overrides every service action for pause and delete
// tasks. Deploy tasks keep the actions declared in the definition.
func applyTaskAction(env *config.EnvironmentConfig, taskType TaskType) {
	var action service.Action
	switch taskType {
	case TaskPauseEnvironment:
		action = service.ActionPause
	case TaskDeleteEnvironment:
		action = service.ActionDelete
	default:
		return
	}

	for _, app := range env.Applications {
		app.Action = string(action)
	}
	for _, container := range env.Containers {
		container.Action = string(action)
	}
	for _, db := range env.Databases {
		db.Action = string(action)
	}
	for _, router := range env.Routers {
		router.Action = string(action)
	}
}
