// Package controlplane reports deployment progress to the LaunchBay
// control plane and resolves the platform-side data the engine needs,
// such as default router domains.
package controlplane

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/thelaunchbay/launchbay-engine/pkg/httpclient"
)

// Step is one reportable phase of a service's deployment.
type Step string

const (
	StepProvision Step = "provision"
	StepDeploy    Step = "deploy"
	StepCheck     Step = "check"
	StepDelete    Step = "delete"
)

// StepStatus is the state of one step.
type StepStatus string

const (
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// StepUpdate is the payload for one step transition.
type StepUpdate struct {
	ExecutionID string     `json:"executionId"`
	ServiceID   string     `json:"serviceId"`
	Step        Step       `json:"step"`
	Status      StepStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
}

// Client talks to the control plane API with bearer-token
// authentication.
type Client struct {
	http   *httpclient.BaseClient
	logger hclog.Logger
}

// NewClient builds a control-plane client. Both the URL and token are
// required.
func NewClient(baseURL, accessToken string, logger hclog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("control plane URL cannot be empty")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("access token cannot be empty")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	base := httpclient.NewBaseClient(baseURL, 30*time.Second)
	base.SetHeader("Authorization", "Bearer "+accessToken)

	return &Client{http: base, logger: logger}, nil
}

// UpdateStep reports one deployment-step transition.
func (c *Client) UpdateStep(ctx context.Context, update StepUpdate) error {
	if update.ExecutionID == "" {
		return fmt.Errorf("executionID cannot be empty")
	}
	if update.ServiceID == "" {
		return fmt.Errorf("serviceID cannot be empty")
	}
	if update.Step == "" {
		return fmt.Errorf("step cannot be empty")
	}
	if update.Status == "" {
		return fmt.Errorf("status cannot be empty")
	}

	c.logger.Debug("updating deployment step",
		"execution_id", update.ExecutionID,
		"service_id", update.ServiceID,
		"step", string(update.Step),
		"status", string(update.Status))

	err := c.http.DoJSON(ctx, http.MethodPut, "/api/engine/deployment-step", update, nil)
	if err != nil {
		return fmt.Errorf("failed to update deployment step: %w", err)
	}

	c.logger.Info("deployment step updated",
		"execution_id", update.ExecutionID,
		"service_id", update.ServiceID,
		"step", string(update.Step),
		"status", string(update.Status))
	return nil
}

// AskDomain requests the default domain allocated to a router.
func (c *Client) AskDomain(ctx context.Context, serviceID string) (string, error) {
	if serviceID == "" {
		return "", fmt.Errorf("serviceID cannot be empty")
	}

	var resp struct {
		Domain string `json:"domain"`
	}
	path := "/api/engine/ask-domain?" + url.Values{"serviceId": {serviceID}}.Encode()
	if err := c.http.DoJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to ask domain: %w", err)
	}

	c.logger.Info("domain allocated", "service_id", serviceID, "domain", resp.Domain)
	return resp.Domain, nil
}
