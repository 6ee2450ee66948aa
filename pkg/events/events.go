// Package events publishes deployment lifecycle events and process
// output to NATS JetStream, so the control plane and watching CLIs can
// follow an orchestration pass in real time.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"

	"github.com/thelaunchbay/launchbay-engine/pkg/progress"
)

// Subject suffixes (without prefix)
const (
	SubjectDeploymentStarted    = "deployment.started"
	SubjectDeploymentProgress   = "deployment.progress"
	SubjectDeploymentSucceeded  = "deployment.succeeded"
	SubjectDeploymentFailed     = "deployment.failed"
	SubjectEnvironmentDestroyed = "environment.destroyed"
	SubjectDeployLog            = "deploy.log"
	SubjectDeployLogEnd         = "deploy.log.end"
)

// Status classifies a deployment event.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
)

// DeploymentEvent is the payload for deployment lifecycle events.
type DeploymentEvent struct {
	ExecutionID   string `json:"executionId"`
	EnvironmentID string `json:"environmentId"`
	ServiceID     string `json:"serviceId,omitempty"`
	Scope         string `json:"scope,omitempty"`
	Status        Status `json:"status"`
	Message       string `json:"message,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// LogLine is one line of helm/terraform/kubectl process output.
type LogLine struct {
	ExecutionID string `json:"executionId"`
	ServiceID   string `json:"serviceId,omitempty"`
	Tool        string `json:"tool"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"`
	Sequence    int    `json:"sequence"`
}

// LogEnd signals the end of an execution's log stream.
type LogEnd struct {
	ExecutionID string `json:"executionId"`
	Status      Status `json:"status"`
}

// Publisher is the event surface the engine depends on. Satisfied by
// *Client; fakes record events in tests.
type Publisher interface {
	PublishDeploymentEvent(subjectSuffix string, event DeploymentEvent) error
	PublishLogLine(line LogLine) error
	PublishLogEnd(end LogEnd) error
}

// publishFunc sends one marshalled payload to a subject.
type publishFunc func(subject string, data []byte) error

// Client publishes engine events over one NATS connection with NKey
// authentication. Subjects carry an optional prefix for namespace
// isolation (e.g. "lb" makes "lb.deployment.succeeded").
type Client struct {
	conn    *nats.Conn
	logger  hclog.Logger
	prefix  string
	publish publishFunc
}

// Option customizes client behavior.
type Option func(*Client)

// WithPublishFunc overrides the transport, for tests.
func WithPublishFunc(publish publishFunc) Option {
	return func(c *Client) {
		c.publish = publish
	}
}

// NewClient connects to NATS with NKey authentication. prefix scopes
// every subject; empty means no prefix.
func NewClient(servers, nkeySeed, prefix string, logger hclog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = hclog.Default()
	}

	c := &Client{logger: logger, prefix: prefix}
	for _, opt := range opts {
		opt(c)
	}
	if c.publish != nil {
		return c, nil
	}

	kp, err := nkeys.FromSeed([]byte(nkeySeed))
	if err != nil {
		return nil, fmt.Errorf("failed to parse NKey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}

	auth := nats.Nkey(pub, func(nonce []byte) ([]byte, error) {
		sig, err := kp.Sign(nonce)
		if err != nil {
			return nil, fmt.Errorf("failed to sign nonce: %w", err)
		}
		return sig, nil
	})

	connOpts := []nats.Option{
		auth,
		nats.MaxReconnects(5),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(servers, connOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected to NATS", "servers", servers, "prefix", prefix)

	c.conn = nc
	c.publish = func(subject string, data []byte) error {
		js, err := nc.JetStream()
		if err != nil {
			return fmt.Errorf("failed to get JetStream context: %w", err)
		}
		if _, err := js.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", subject, err)
		}
		if err := nc.Flush(); err != nil {
			// The message already landed in JetStream; a flush failure
			// only delays delivery.
			logger.Warn("failed to flush NATS connection", "subject", subject, "error", err)
		}
		return nil
	}
	return c, nil
}

// Conn exposes the underlying NATS connection so callers can subscribe
// on the same authenticated session. Nil when the client was built with
// an injected publish function.
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

func (c *Client) withPrefix(subject string) string {
	if c.prefix == "" {
		return subject
	}
	return c.prefix + "." + subject
}

func (c *Client) publishJSON(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := c.publish(subject, data); err != nil {
		c.logger.Error("failed to publish event", "subject", subject, "error", err)
		return err
	}
	c.logger.Debug("published event", "subject", subject)
	return nil
}

// PublishDeploymentEvent implements Publisher. subjectSuffix selects the
// event class; use the Started/Succeeded/Failed helpers for common ones.
func (c *Client) PublishDeploymentEvent(subjectSuffix string, event DeploymentEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	return c.publishJSON(c.withPrefix(subjectSuffix), event)
}

// PublishStarted publishes a deployment started event.
func (c *Client) PublishStarted(event DeploymentEvent) error {
	event.Status = StatusInProgress
	return c.PublishDeploymentEvent(SubjectDeploymentStarted, event)
}

// PublishProgress publishes an in-progress event.
func (c *Client) PublishProgress(event DeploymentEvent) error {
	event.Status = StatusInProgress
	return c.PublishDeploymentEvent(SubjectDeploymentProgress, event)
}

// PublishSucceeded publishes a deployment succeeded event.
func (c *Client) PublishSucceeded(event DeploymentEvent) error {
	event.Status = StatusSucceeded
	return c.PublishDeploymentEvent(SubjectDeploymentSucceeded, event)
}

// PublishFailed publishes a deployment failed event.
func (c *Client) PublishFailed(event DeploymentEvent) error {
	event.Status = StatusFailed
	return c.PublishDeploymentEvent(SubjectDeploymentFailed, event)
}

// PublishEnvironmentDestroyed publishes an environment destroyed event.
func (c *Client) PublishEnvironmentDestroyed(event DeploymentEvent) error {
	return c.PublishDeploymentEvent(SubjectEnvironmentDestroyed, event)
}

// PublishLogLine implements Publisher. Lines go to an execution-scoped
// subject so watchers subscribe to one deployment only.
func (c *Client) PublishLogLine(line LogLine) error {
	if line.Timestamp == 0 {
		line.Timestamp = time.Now().UnixMilli()
	}
	subject := fmt.Sprintf("%s.%s", c.withPrefix(SubjectDeployLog), line.ExecutionID)
	return c.publishJSON(subject, line)
}

// PublishLogEnd implements Publisher.
func (c *Client) PublishLogEnd(end LogEnd) error {
	subject := fmt.Sprintf("%s.%s", c.withPrefix(SubjectDeployLogEnd), end.ExecutionID)
	return c.publishJSON(subject, end)
}

// Close drains and closes the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		c.conn.Drain()
		c.conn.Close()
		c.logger.Info("NATS connection closed")
	}
	return nil
}

// Listener adapts the publisher to the progress.Listener interface, so
// periodic in-progress notifications reach event subscribers.
type Listener struct {
	publisher     Publisher
	environmentID string
	logger        hclog.Logger
}

// NewListener builds a progress listener publishing through pub.
func NewListener(pub Publisher, environmentID string, logger hclog.Logger) *Listener {
	if logger == nil {
		logger = hclog.Default()
	}
	return &Listener{publisher: pub, environmentID: environmentID, logger: logger}
}

// Progress implements progress.Listener. Publish failures are logged and
// dropped: losing a liveness ping must not fail a deployment.
func (l *Listener) Progress(info progress.Info) {
	event := DeploymentEvent{
		ExecutionID:   info.ExecutionID,
		EnvironmentID: l.environmentID,
		Scope:         info.Scope.String(),
		Status:        StatusInProgress,
		Message:       info.Message,
	}
	if err := l.publisher.PublishDeploymentEvent(SubjectDeploymentProgress, event); err != nil {
		l.logger.Warn("failed to publish progress event", "error", err)
	}
}
