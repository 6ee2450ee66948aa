// Package kube wraps the kubectl CLI for the narrow set of cluster
// operations the engine needs: namespace management, workload scaling,
// pod readiness and failure diagnostics, and secret cleanup.
package kube

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// RunFunc executes one external command with extra environment variables
// appended to the inherited environment, returning combined output.
type RunFunc func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

func defaultRun(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

// Client invokes kubectl against one cluster.
type Client struct {
	kubeconfigPath string
	env            []string
	run            RunFunc
}

// Option customizes client behavior.
type Option func(*Client)

// WithRunFunc overrides how external commands are executed.
func WithRunFunc(run RunFunc) Option {
	return func(c *Client) {
		c.run = run
	}
}

// NewClient builds a Client for the cluster reachable through
// kubeconfigPath. env holds additional variables appended to every
// invocation.
func NewClient(kubeconfigPath string, env []string, opts ...Option) *Client {
	c := &Client{
		kubeconfigPath: kubeconfigPath,
		env:            env,
		run:            defaultRun,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) exec(ctx context.Context, args ...string) (string, error) {
	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	full := append(args, "--kubeconfig", c.kubeconfigPath)
	logger.Debug("executing kubectl", "args", full)

	output, err := c.run(ctx, c.env, "kubectl", full...)
	return string(output), err
}

// EnsureNamespace creates the namespace if it does not exist. When
// ttlSeconds is positive a ttl label carrying the expiration is merged onto
// the namespace, so cluster janitors can reap expired environments. Calling
// it repeatedly is not an error.
func (c *Client) EnsureNamespace(ctx context.Context, name string, ttlSeconds int) error {
	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	if name == "" {
		return fmt.Errorf("namespace name is required")
	}

	output, err := c.exec(ctx, "create", "namespace", name)
	if err != nil {
		if strings.Contains(strings.ToLower(output), "already exists") {
			logger.Debug("namespace already exists", "namespace", name)
		} else {
			logger.Error("namespace creation failed", "namespace", name, "error", err, "output", output)
			return fmt.Errorf("kubectl create namespace failed: %w\noutput: %s", err, output)
		}
	} else {
		logger.Info("namespace created", "namespace", name)
	}

	if ttlSeconds <= 0 {
		return nil
	}

	label := "ttl=" + strconv.Itoa(ttlSeconds)
	output, err = c.exec(ctx, "label", "namespace", name, label, "--overwrite")
	if err != nil {
		logger.Error("namespace labeling failed", "namespace", name, "error", err, "output", output)
		return fmt.Errorf("kubectl label namespace failed: %w\noutput: %s", err, output)
	}

	logger.Debug("namespace ttl label applied", "namespace", name, "ttl_seconds", ttlSeconds)
	return nil
}

// ScaleBySelector scales every Deployment and StatefulSet matching the
// label selector to the given replica count.
func (c *Client) ScaleBySelector(ctx context.Context, namespace, selector string, replicas int) error {
	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	logger.Info("scaling workloads", "namespace", namespace, "selector", selector, "replicas", replicas)

	output, err := c.exec(ctx, "scale", "deployment,statefulset",
		"--namespace", namespace,
		"--selector", selector,
		"--replicas", strconv.Itoa(replicas))
	if err != nil {
		logger.Error("scale failed", "namespace", namespace, "selector", selector, "error", err, "output", output)
		return fmt.Errorf("kubectl scale failed: %w\noutput: %s", err, output)
	}

	logger.Debug("scale output", "output", output)
	return nil
}

type podList struct {
	Items []pod `json:"items"`
}

type pod struct {
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Status podStatus `json:"status"`
}

type podStatus struct {
	Phase             string            `json:"phase"`
	Conditions        []podCondition    `json:"conditions"`
	ContainerStatuses []containerStatus `json:"containerStatuses"`
}

type podCondition struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type containerStatus struct {
	Name         string `json:"name"`
	Ready        bool   `json:"ready"`
	RestartCount int    `json:"restartCount"`
	LastState    struct {
		Terminated *terminatedState `json:"terminated"`
	} `json:"lastState"`
}

type terminatedState struct {
	ExitCode int    `json:"exitCode"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

func (p pod) ready() bool {
	for _, cond := range p.Status.Conditions {
		if cond.Type == "Ready" {
			return cond.Status == "True"
		}
	}
	return false
}

func (c *Client) pods(ctx context.Context, namespace, selector string) ([]pod, error) {
	output, err := c.exec(ctx, "get", "pods",
		"--namespace", namespace,
		"--selector", selector,
		"-o", "json")
	if err != nil {
		return nil, fmt.Errorf("kubectl get pods failed: %w\noutput: %s", err, output)
	}

	var list podList
	if err := json.Unmarshal([]byte(output), &list); err != nil {
		return nil, fmt.Errorf("failed to parse pod list: %w", err)
	}
	return list.Items, nil
}

// PodsReady reports whether the selector matches at least one pod and all
// matched pods have a true Ready condition.
func (c *Client) PodsReady(ctx context.Context, namespace, selector string) (bool, error) {
	pods, err := c.pods(ctx, namespace, selector)
	if err != nil {
		return false, err
	}
	if len(pods) == 0 {
		return false, nil
	}
	for _, p := range pods {
		if !p.ready() {
			return false, nil
		}
	}
	return true, nil
}

// PodLogs fetches the last tail lines from every container matching the
// selector.
func (c *Client) PodLogs(ctx context.Context, namespace, selector string, tail int) (string, error) {
	output, err := c.exec(ctx, "logs",
		"--namespace", namespace,
		"--selector", selector,
		"--all-containers=true",
		"--tail", strconv.Itoa(tail))
	if err != nil {
		return "", fmt.Errorf("kubectl logs failed: %w\noutput: %s", err, output)
	}
	return output, nil
}

// DescribePods returns the kubectl describe output for matching pods.
func (c *Client) DescribePods(ctx context.Context, namespace, selector string) (string, error) {
	output, err := c.exec(ctx, "describe", "pods",
		"--namespace", namespace,
		"--selector", selector)
	if err != nil {
		return "", fmt.Errorf("kubectl describe pods failed: %w\noutput: %s", err, output)
	}
	return output, nil
}

// AbnormalEvents returns non-Normal events for the namespace, oldest first.
func (c *Client) AbnormalEvents(ctx context.Context, namespace string) (string, error) {
	output, err := c.exec(ctx, "get", "events",
		"--namespace", namespace,
		"--field-selector", "type!=Normal",
		"--sort-by", ".lastTimestamp")
	if err != nil {
		return "", fmt.Errorf("kubectl get events failed: %w\noutput: %s", err, output)
	}
	return output, nil
}

// LastTerminationReasons collects the most recent container termination
// reasons for matching pods, capped at limit entries. Crash-looping images
// show up here with reasons like OOMKilled or Error plus the exit code.
func (c *Client) LastTerminationReasons(ctx context.Context, namespace, selector string, limit int) ([]string, error) {
	pods, err := c.pods(ctx, namespace, selector)
	if err != nil {
		return nil, err
	}

	var reasons []string
	for _, p := range pods {
		for _, cs := range p.Status.ContainerStatuses {
			term := cs.LastState.Terminated
			if term == nil {
				continue
			}
			reason := fmt.Sprintf("pod %s container %s: %s (exit code %d, restarts %d)",
				p.Metadata.Name, cs.Name, term.Reason, term.ExitCode, cs.RestartCount)
			if term.Message != "" {
				reason += ": " + term.Message
			}
			reasons = append(reasons, reason)
			if len(reasons) >= limit {
				return reasons, nil
			}
		}
	}
	return reasons, nil
}

// DeleteSecret removes a named secret. An already-absent secret is not an
// error.
func (c *Client) DeleteSecret(ctx context.Context, namespace, name string) error {
	logger := hclog.FromContext(ctx)
	if logger == nil {
		logger = hclog.Default()
	}

	logger.Info("deleting secret", "namespace", namespace, "secret", name)

	output, err := c.exec(ctx, "delete", "secret", name, "--namespace", namespace)
	if err != nil {
		if strings.Contains(strings.ToLower(output), "not found") {
			logger.Debug("secret does not exist, nothing to delete", "secret", name)
			return nil
		}
		logger.Error("secret deletion failed", "secret", name, "error", err, "output", output)
		return fmt.Errorf("kubectl delete secret failed: %w\noutput: %s", err, output)
	}

	return nil
}

// Diagnostics gathers pod describe output, recent logs, abnormal events and
// last termination reasons into one report. Collection is best effort: a
// failing probe contributes its error text instead of aborting the report.
// Only self-hosted workloads can be introspected this way; managed-service
// failures surface provider-side messages only.
func (c *Client) Diagnostics(ctx context.Context, namespace, selector string) string {
	var b strings.Builder

	section := func(title, content string, err error) {
		b.WriteString("--- ")
		b.WriteString(title)
		b.WriteString(" ---\n")
		if err != nil {
			fmt.Fprintf(&b, "collection failed: %s\n", err)
			return
		}
		b.WriteString(strings.TrimRight(content, "\n"))
		b.WriteString("\n")
	}

	describe, err := c.DescribePods(ctx, namespace, selector)
	section("pod describe", describe, err)

	logs, err := c.PodLogs(ctx, namespace, selector, 100)
	section("pod logs", logs, err)

	events, err := c.AbnormalEvents(ctx, namespace)
	section("abnormal events", events, err)

	reasons, err := c.LastTerminationReasons(ctx, namespace, selector, 10)
	section("last terminations", strings.Join(reasons, "\n"), err)

	return b.String()
}
