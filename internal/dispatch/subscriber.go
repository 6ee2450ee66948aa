package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/nats-io/nats.go"

	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
)

// DefaultTaskTimeout bounds one orchestration pass in agent mode.
const DefaultTaskTimeout = 2 * time.Hour

// Outcome is the subscriber's verdict on one message.
type Outcome int

const (
	// OutcomeAck removes the message: handled, or retrying cannot help.
	OutcomeAck Outcome = iota

	// OutcomeNak requeues the message for another attempt.
	OutcomeNak
)

// Subscriber consumes environment tasks from a NATS queue group, so
// multiple engine instances share the work without double delivery.
type Subscriber struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	handler *Handler
	logger  hclog.Logger
	subject string
	queue   string
	timeout time.Duration
}

// SubscriberOption customizes subscriber behavior.
type SubscriberOption func(*Subscriber)

// WithTaskTimeout bounds the handling of one task.
func WithTaskTimeout(timeout time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		s.timeout = timeout
	}
}

// NewSubscriber builds a subscriber on the given connection.
func NewSubscriber(conn *nats.Conn, subject, queue string, handler *Handler, logger hclog.Logger, opts ...SubscriberOption) *Subscriber {
	if logger == nil {
		logger = hclog.Default()
	}
	s := &Subscriber{
		conn:    conn,
		handler: handler,
		logger:  logger,
		subject: subject,
		queue:   queue,
		timeout: DefaultTaskTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes and handles tasks until Drain is called. Handling is
// synchronous per message: a queue member works one task at a time.
func (s *Subscriber) Start(ctx context.Context) error {
	sub, err := s.conn.QueueSubscribe(s.subject, s.queue, func(msg *nats.Msg) {
		switch s.Process(ctx, msg.Data) {
		case OutcomeNak:
			if err := msg.Nak(); err != nil {
				s.logger.Warn("failed to nak task", "error", err)
			}
		default:
			if err := msg.Ack(); err != nil {
				s.logger.Warn("failed to ack task", "error", err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	s.sub = sub
	s.logger.Info("subscribed to task subject", "subject", s.subject, "queue", s.queue)
	return nil
}

// Process handles one raw task payload and decides its fate. Malformed
// payloads and user-cause failures ack: redelivery cannot fix either.
// Internal failures nak for another attempt.
func (s *Subscriber) Process(ctx context.Context, data []byte) Outcome {
	task, err := DecodeTask(data)
	if err != nil {
		s.logger.Error("dropping malformed task", "error", err)
		return OutcomeAck
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.handler.Handle(ctx, task); err != nil {
		if engine.IsUserCause(err) {
			s.logger.Error("task failed with user cause",
				"task", string(task.Type), "execution_id", task.ExecutionID, "error", err)
			return OutcomeAck
		}
		s.logger.Error("task failed, requeueing",
			"task", string(task.Type), "execution_id", task.ExecutionID, "error", err)
		return OutcomeNak
	}
	return OutcomeAck
}

// Drain stops delivery and waits for the in-flight handler to finish.
func (s *Subscriber) Drain() error {
	if s.sub == nil {
		return nil
	}
	if err := s.sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	s.logger.Info("task subscription drained", "subject", s.subject)
	return nil
}
