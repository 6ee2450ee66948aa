// Package helm drives the helm CLI for release management. Helm is treated
// as a black-box executor: the engine renders chart directories elsewhere,
// then converges releases here and reads back revision history to decide
// whether a deployment truly landed.
package helm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// maxReleaseNameLength keeps release names under Helm's 53-character limit
// with headroom for generated resource suffixes.
const maxReleaseNameLength = 50

// ReleaseName joins the given parts with dashes and truncates the result to
// the engine-wide release name limit.
func ReleaseName(parts ...string) string {
	name := strings.Join(parts, "-")
	if len(name) > maxReleaseNameLength {
		name = name[:maxReleaseNameLength]
	}
	return name
}

// Value is one ordered --set override.
type Value struct {
	Key   string
	Value string
}

// Chart describes a single Helm release to converge: the rendered chart
// directory, its target namespace and value overrides. Charts are built per
// rollout and never persisted.
type Chart struct {
	// Name is the release name.
	Name string

	// Path is the rendered chart directory.
	Path string

	// Namespace is the target namespace. It must already exist; namespace
	// creation is the caller's job.
	Namespace string

	// Values are ordered --set overrides, applied after ValuesFiles.
	Values []Value

	// ValuesFiles are -f files passed in order (optional).
	ValuesFiles []string

	// Timeout is passed to helm --timeout; zero uses helm's default.
	Timeout time.Duration
}

// HistoryRow is one revision from `helm history -o json`.
type HistoryRow struct {
	Revision    int    `json:"revision"`
	Updated     string `json:"updated"`
	Status      string `json:"status"`
	Chart       string `json:"chart"`
	AppVersion  string `json:"app_version"`
	Description string `json:"description"`
}

// Deployed reports whether this revision reached the cluster successfully.
// Superseded revisions deployed successfully before being replaced.
func (r HistoryRow) Deployed() bool {
	return r.Status == "deployed" || r.Status == "superseded"
}

// HasSuccessfulRow reports whether at least one revision ever deployed.
func HasSuccessfulRow(rows []HistoryRow) bool {
	for _, row := range rows {
		if row.Deployed() {
			return true
		}
	}
	return false
}

// RunFunc executes one external command with extra environment variables
// appended to the inherited environment, returning combined output.
type RunFunc func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

func defaultRun(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

// Executor invokes helm against one cluster. Provider credentials are
// injected as environment variables on every invocation.
type Executor struct {
	kubeconfigPath string
	env            []string
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

// WithOutputWriter streams the raw output of mutating helm invocations
// to w as they run. History reads are not streamed.
func WithOutputWriter(w io.Writer) Option {
	return func(e *Executor) {
		e.output = w
	}
}

// NewExecutor builds an Executor for the cluster reachable through
// kubeconfigPath. env holds additional variables (typically provider
// credentials) appended to every helm invocation.
func NewExecutor(kubeconfigPath string, env []string, opts ...Option) *Executor {
	e := &Executor{
		kubeconfigPath: kubeconfigPath,
		env:            env,
		run:            defaultRun,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// emit forwards process output to the configured writer. Write failures
// are swallowed; losing streamed output must not fail the invocation.
func (e *Executor) emit(output []byte) {
	if e.output == nil || len(output) == 0 {
		return
	}
	_, _ = e.output.Write(output)
}

// UpgradeInstall converges the release described by chart via
// `helm upgrade --install`. The chart's namespace must already exist.
func (e *Executor) UpgradeInstall(ctx context.Context, chart Chart) error {
	if chart.Name == "" {
		return fmt.Errorf("release name is required")
	}
	if chart.Path == "" {
		return fmt.Errorf("chart path is required")
	}
	if chart.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}

	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	logger.Info("upgrading helm release", "release", chart.Name, "namespace", chart.Namespace)

	args := []string{"upgrade", "--install", chart.Name, chart.Path,
		"--namespace", chart.Namespace,
		"--kubeconfig", e.kubeconfigPath}
	for _, file := range chart.ValuesFiles {
		args = append(args, "-f", file)
	}
	for _, value := range chart.Values {
		args = append(args, "--set", fmt.Sprintf("%s=%s", value.Key, value.Value))
	}
	if chart.Timeout > 0 {
		args = append(args, "--timeout", chart.Timeout.String())
	}

	logger.Debug("executing helm upgrade", "args", args)

	output, err := e.run(ctx, e.env, "helm", args...)
	outputStr := string(output)
	e.emit(output)

	if err != nil {
		logger.Error("helm upgrade failed", "release", chart.Name, "error", err, "output", outputStr)
		return fmt.Errorf("helm upgrade failed: %w\noutput: %s", err, outputStr)
	}

	logger.Info("helm release upgraded successfully", "release", chart.Name, "namespace", chart.Namespace)
	logger.Debug("helm upgrade output", "output", outputStr)

	return nil
}

// History returns the release's revisions, oldest first. A release that has
// never been installed yields an empty history and no error.
func (e *Executor) History(ctx context.Context, release, namespace string) ([]HistoryRow, error) {
	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	args := []string{"history", release,
		"--namespace", namespace,
		"--kubeconfig", e.kubeconfigPath,
		"-o", "json"}

	logger.Debug("executing helm history", "args", args)

	output, err := e.run(ctx, e.env, "helm", args...)
	outputStr := string(output)

	if err != nil {
		// A never-installed release is not an error for callers: deploy
		// checks emptiness, delete skips uninstall.
		if strings.Contains(strings.ToLower(outputStr), "release: not found") {
			logger.Debug("helm release has no history", "release", release)
			return nil, nil
		}
		logger.Error("helm history failed", "release", release, "error", err, "output", outputStr)
		return nil, fmt.Errorf("helm history failed: %w\noutput: %s", err, outputStr)
	}

	var rows []HistoryRow
	if err := json.Unmarshal(output, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse helm history output: %w\noutput: %s", err, outputStr)
	}

	return rows, nil
}

// Uninstall removes the release. An already-absent release is not an error.
func (e *Executor) Uninstall(ctx context.Context, release, namespace string) error {
	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	logger.Info("uninstalling helm release", "release", release, "namespace", namespace)

	args := []string{"uninstall", release,
		"--namespace", namespace,
		"--kubeconfig", e.kubeconfigPath}

	logger.Debug("executing helm uninstall", "args", args)

	output, err := e.run(ctx, e.env, "helm", args...)
	outputStr := string(output)
	e.emit(output)

	if err != nil {
		if strings.Contains(strings.ToLower(outputStr), "release: not found") {
			logger.Info("helm release does not exist, nothing to uninstall", "release", release)
			return nil
		}
		logger.Error("helm uninstall failed", "release", release, "error", err, "output", outputStr)
		return fmt.Errorf("helm uninstall failed: %w\noutput: %s", err, outputStr)
	}

	logger.Info("helm release uninstalled successfully", "release", release)
	logger.Debug("helm uninstall output", "output", outputStr)

	return nil
}
