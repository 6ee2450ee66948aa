// Package progress emits periodic liveness notifications around
// long-running infrastructure operations, so operators watching a
// deployment see activity while helm or terraform converge in silence.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/metrics"
)

// DefaultInterval is the notification cadence used across the engine.
const DefaultInterval = 10 * time.Second

// Info describes one in-flight operation for listeners.
type Info struct {
	ExecutionID string
	Scope       engine.Scope
	Message     string
}

// Listener receives progress notifications. Implementations must be safe
// for concurrent use; notifications are delivered from the reporter's
// ticker goroutine.
type Listener interface {
	Progress(info Info)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Info)

// Progress implements Listener.
func (f ListenerFunc) Progress(info Info) {
	f(info)
}

// MultiListener fans out notifications to multiple listeners.
type MultiListener struct {
	listeners []Listener
}

// NewMultiListener creates a listener that dispatches to all provided
// listeners, skipping nil entries.
func NewMultiListener(listeners ...Listener) *MultiListener {
	filtered := make([]Listener, 0, len(listeners))
	for _, listener := range listeners {
		if listener == nil {
			continue
		}
		filtered = append(filtered, listener)
	}
	return &MultiListener{listeners: filtered}
}

// Progress implements Listener.
func (m *MultiListener) Progress(info Info) {
	for _, listener := range m.listeners {
		listener.Progress(info)
	}
}

// LogListener writes notifications through the engine logger.
type LogListener struct {
	logger hclog.Logger
}

// NewLogListener builds a listener over the given logger.
func NewLogListener(logger hclog.Logger) *LogListener {
	if logger == nil {
		logger = hclog.Default()
	}
	return &LogListener{logger: logger}
}

// Progress implements Listener.
func (l *LogListener) Progress(info Info) {
	l.logger.Info(info.Message,
		"execution_id", info.ExecutionID,
		"scope", info.Scope.String())
}

// MetricsListener counts notifications per scope kind.
type MetricsListener struct {
	metrics *metrics.Metrics
}

// NewMetricsListener builds a listener over the given collectors.
func NewMetricsListener(m *metrics.Metrics) *MetricsListener {
	return &MetricsListener{metrics: m}
}

// Progress implements Listener.
func (l *MetricsListener) Progress(info Info) {
	l.metrics.IncProgress(string(info.Scope.Kind))
}

// Ticker is the minimal interface needed for driving the reporter loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// Reporter runs operations while notifying a listener at a fixed cadence.
type Reporter struct {
	interval      time.Duration
	listener      Listener
	tickerFactory func(time.Duration) Ticker
}

// Option customizes reporter behavior.
type Option func(*Reporter)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(r *Reporter) {
		r.tickerFactory = factory
	}
}

// NewReporter constructs a Reporter notifying listener every interval.
// A non-positive interval falls back to DefaultInterval.
func NewReporter(interval time.Duration, listener Listener, opts ...Option) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if listener == nil {
		listener = ListenerFunc(func(Info) {})
	}
	r := &Reporter{
		interval: interval,
		listener: listener,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Track runs op while emitting info on every tick. The first notification
// fires one full interval after the operation starts. When op returns the
// ticker goroutine is signalled through a one-shot channel: at most one
// more notification may land after completion, and none after Track
// itself returns. The operation error passes through unchanged.
func (r *Reporter) Track(ctx context.Context, info Info, op func(context.Context) error) error {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := r.tickerFactory(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C():
				r.listener.Progress(info)
			}
		}
	}()

	err := op(ctx)
	close(done)
	wg.Wait()
	return err
}
