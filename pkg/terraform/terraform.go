// Package terraform drives the terraform CLI against one working directory
// of rendered module files. State access is always scoped to a single
// directory per service, so there is never more than one writer per state.
package terraform

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/thelaunchbay/launchbay-engine/pkg/retry"
)

// planFile is the saved plan consumed by apply.
const planFile = "tf_plan"

// RunFunc executes one external command with extra environment variables
// appended to the inherited environment, returning combined output.
type RunFunc func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

func defaultRun(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

// Executor runs terraform in one working directory. Provider credentials are
// injected as environment variables on every invocation; init is retried
// because provider-registry downloads fail transiently.
type Executor struct {
	workdir        string
	env            []string
	pluginCacheDir string
	initSchedule   retry.Schedule
	run            RunFunc
	output         io.Writer
}

// Option customizes executor behavior.
type Option func(*Executor)

// WithRunFunc overrides how external commands are executed.
func WithRunFunc(run RunFunc) Option {
	return func(e *Executor) {
		e.run = run
	}
}

// WithPluginCacheDir shares provider plugins across working directories via
// TF_PLUGIN_CACHE_DIR, avoiding redundant downloads.
func WithPluginCacheDir(dir string) Option {
	return func(e *Executor) {
		e.pluginCacheDir = dir
	}
}

// WithOutputWriter streams the raw output of every terraform invocation
// to w as it runs.
func WithOutputWriter(w io.Writer) Option {
	return func(e *Executor) {
		e.output = w
	}
}

// WithInitSchedule overrides the retry schedule applied to terraform init.
func WithInitSchedule(s retry.Schedule) Option {
	return func(e *Executor) {
		e.initSchedule = s
	}
}

// NewExecutor builds an Executor over workdir. env holds additional
// variables (typically provider credentials) appended to every invocation.
func NewExecutor(workdir string, env []string, opts ...Option) *Executor {
	e := &Executor{
		workdir:      workdir,
		env:          env,
		initSchedule: retry.Fibonacci(3*time.Second, 3),
		run:          defaultRun,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) environment() []string {
	env := e.env
	if e.pluginCacheDir != "" {
		env = append(append([]string{}, env...), "TF_PLUGIN_CACHE_DIR="+e.pluginCacheDir)
	}
	return env
}

func (e *Executor) exec(ctx context.Context, args ...string) (string, error) {
	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	full := append([]string{"-chdir=" + e.workdir}, args...)
	logger.Debug("executing terraform", "args", full)

	output, err := e.run(ctx, e.environment(), "terraform", full...)
	if e.output != nil && len(output) > 0 {
		// Write failures are swallowed; losing streamed output must not
		// fail the invocation.
		_, _ = e.output.Write(output)
	}
	return string(output), err
}

// Init prepares the working directory, retrying under the init schedule.
func (e *Executor) Init(ctx context.Context) error {
	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	logger.Info("initializing terraform", "workdir", e.workdir)

	var lastErr error
	err := retry.Do(ctx, e.initSchedule, func(ctx context.Context) error {
		output, runErr := e.exec(ctx, "init")
		if runErr != nil {
			lastErr = fmt.Errorf("terraform init failed: %w\noutput: %s", runErr, output)
			logger.Warn("terraform init failed, will retry", "workdir", e.workdir, "error", runErr)
			return retry.Transient("terraform init failed")
		}
		return nil
	})
	if err != nil {
		if lastErr != nil {
			logger.Error("terraform init failed after retries", "workdir", e.workdir, "error", lastErr)
			return lastErr
		}
		return err
	}
	return nil
}

// Validate checks the rendered configuration.
func (e *Executor) Validate(ctx context.Context) error {
	output, err := e.exec(ctx, "validate")
	if err != nil {
		return fmt.Errorf("terraform validate failed: %w\noutput: %s", err, output)
	}
	return nil
}

// Plan computes and saves an execution plan.
func (e *Executor) Plan(ctx context.Context) error {
	output, err := e.exec(ctx, "plan", "-out="+planFile)
	if err != nil {
		return fmt.Errorf("terraform plan failed: %w\noutput: %s", err, output)
	}
	return nil
}

// Apply applies the saved plan.
func (e *Executor) Apply(ctx context.Context) error {
	output, err := e.exec(ctx, "apply", "-auto-approve", planFile)
	if err != nil {
		return fmt.Errorf("terraform apply failed: %w\noutput: %s", err, output)
	}
	return nil
}

// Destroy removes every resource tracked by the state.
func (e *Executor) Destroy(ctx context.Context) error {
	output, err := e.exec(ctx, "destroy", "-auto-approve")
	if err != nil {
		return fmt.Errorf("terraform destroy failed: %w\noutput: %s", err, output)
	}
	return nil
}

// InitValidatePlanApply runs the standard converge sequence. Under dry-run
// the plan is still computed but apply is skipped.
func (e *Executor) InitValidatePlanApply(ctx context.Context, dryRun bool) error {
	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	if err := e.Init(ctx); err != nil {
		return err
	}
	if err := e.Validate(ctx); err != nil {
		return err
	}
	if err := e.Plan(ctx); err != nil {
		return err
	}
	if dryRun {
		logger.Info("dry run requested, skipping terraform apply", "workdir", e.workdir)
		return nil
	}
	if err := e.Apply(ctx); err != nil {
		return err
	}

	logger.Info("terraform apply completed", "workdir", e.workdir)
	return nil
}

// InitValidateDestroy tears everything down. A fresh apply runs first so
// destroy computes against the complete, current resource set.
func (e *Executor) InitValidateDestroy(ctx context.Context) error {
	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	if err := e.InitValidatePlanApply(ctx, false); err != nil {
		return err
	}
	if err := e.Destroy(ctx); err != nil {
		return err
	}

	logger.Info("terraform destroy completed", "workdir", e.workdir)
	return nil
}
