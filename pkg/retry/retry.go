// Package retry runs flaky sub-operations under a bounded Fibonacci delay
// schedule. It is used for DNS propagation checks, load-balancer address
// discovery, pod-readiness polling and terraform init flakiness; lifecycle
// hooks themselves are never retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Schedule is a bounded delay sequence: Fibonacci growth starting at Base,
// allowing at most Attempts operation attempts in total. Attempt counts are
// call-site tunables; fast checks use ~5, slow convergence such as
// load-balancer provisioning uses 10-60.
type Schedule struct {
	Base     time.Duration
	Attempts int
}

// Fibonacci builds a schedule with the engine-wide default growth curve.
func Fibonacci(base time.Duration, attempts int) Schedule {
	return Schedule{Base: base, Attempts: attempts}
}

// fibonacciBackOff yields Base, Base, then the sum of the two previous
// delays, stopping once Attempts-1 delays have been handed out so that the
// operation runs exactly Attempts times. Delays saturate instead of
// overflowing for very long schedules.
type fibonacciBackOff struct {
	base      time.Duration
	attempts  int
	curr      time.Duration
	next      time.Duration
	remaining int
}

func (b *fibonacciBackOff) Reset() {
	b.curr = b.base
	b.next = b.base
	b.remaining = b.attempts - 1
}

func (b *fibonacciBackOff) NextBackOff() time.Duration {
	if b.remaining <= 0 {
		return backoff.Stop
	}
	b.remaining--

	d := b.curr
	sum := b.curr + b.next
	if sum < b.next {
		sum = b.next
	}
	b.curr, b.next = b.next, sum
	return d
}

// transientError marks an operation outcome as retryable. Any other error
// stops the executor immediately.
type transientError struct {
	msg string
}

func (e *transientError) Error() string {
	return e.msg
}

// Transient returns a retryable error: Do will attempt the operation again
// if the schedule is not exhausted.
func Transient(msg string) error {
	return &transientError{msg: msg}
}

// Transientf is Transient with formatting.
func Transientf(format string, args ...interface{}) error {
	return &transientError{msg: fmt.Sprintf(format, args...)}
}

// IsTransient reports whether err marks a retryable outcome.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// Do runs op under the schedule. The operation result contract:
//
//   - nil: success, Do returns nil
//   - Transient error: retry after the next scheduled delay
//   - any other error: terminal, returned immediately
//
// Exhausting the schedule returns the last transient error; context
// cancellation returns ctx.Err(). Results are captured by closure, so op
// must be safe to call up to Schedule.Attempts times.
func Do(ctx context.Context, s Schedule, op func(context.Context) error) error {
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}

	fib := &fibonacciBackOff{base: s.Base, attempts: attempts}
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(fib, ctx))
}
